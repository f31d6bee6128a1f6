package encode

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"dvrmerge/config"
	"dvrmerge/dvr"
	"dvrmerge/overlay"
)

// fakeProber serves canned probe results keyed by path.
type fakeProber struct {
	infos map[string]Info
	errs  map[string]error
}

func (f *fakeProber) Probe(path string) (Info, error) {
	if err, ok := f.errs[path]; ok {
		return Info{}, err
	}
	return f.infos[path], nil
}

func testConfig(variant config.Variant) config.Config {
	return config.Config{
		Variant:          variant,
		OutputFPS:        30,
		CRF:              20,
		Preset:           "veryfast",
		TileWidth:        1920,
		TileHeight:       1080,
		CropBottomPx:     170,
		FFmpegLogLevel:   "info",
		FallbackDuration: 60,
		FontSize:         100,
	}
}

func quadSegment() dvr.Segment {
	start, _ := time.Parse("2006-01-02_15-04-05", "2025-11-17_14-25-37")
	return dvr.Segment{
		Name:      "2025-11-17_14-25-37",
		Dir:       "/in/2025-11-17_14-25-37",
		StartTime: start,
		Cameras: map[dvr.Camera]string{
			dvr.CameraFront: "/in/seg/f.mp4",
			dvr.CameraBack:  "/in/seg/b.mp4",
			dvr.CameraLeft:  "/in/seg/l.mp4",
			dvr.CameraRight: "/in/seg/r.mp4",
		},
	}
}

func newTestBuilder(cfg config.Config, prober Prober) *Builder {
	cfg.DrawTimestamp = false
	return NewBuilder(cfg, prober, overlay.NewGenerator(cfg))
}

func hasArgPair(args []string, flag, value string) bool {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag && args[i+1] == value {
			return true
		}
	}
	return false
}

func TestBuildQuadPicksFirstAudioDonor(t *testing.T) {
	seg := quadSegment()
	prober := &fakeProber{infos: map[string]Info{
		"/in/seg/f.mp4": {HasAudio: true, Duration: 59.5},
		"/in/seg/b.mp4": {HasAudio: true, Duration: 60.1},
		"/in/seg/l.mp4": {HasAudio: false, Duration: 60.0},
		"/in/seg/r.mp4": {HasAudio: false, Duration: 58.9},
	}}
	b := newTestBuilder(testConfig(config.VariantQuad), prober)

	job, reason, err := b.Build(seg, "/out/2025-11-17_14-25-37.mp4")
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if job == nil {
		t.Fatalf("Build skipped unexpectedly: %s", reason)
	}

	if job.AudioSource != "front" {
		t.Errorf("audio source = %q, want front (highest priority donor)", job.AudioSource)
	}
	if !hasArgPair(job.Args, "-map", "0:a:0?") {
		t.Errorf("args missing front audio map, got %v", job.Args)
	}
	if job.Duration != 58.9 {
		t.Errorf("duration = %v, want minimum across cameras 58.9", job.Duration)
	}
	if !hasArgPair(job.Args, "-map", "[vout]") {
		t.Errorf("args missing video map")
	}

	fc := argValue(t, job.Args, "-filter_complex")
	for _, want := range []string{"hstack=inputs=2", "vstack=inputs=2", "pad=1920:1080"} {
		if !strings.Contains(fc, want) {
			t.Errorf("filter_complex missing %q: %s", want, fc)
		}
	}
	if strings.Contains(strings.Join(job.Args, " "), "anullsrc") {
		t.Errorf("silence input present despite audio donor")
	}
	if !contains(job.Args, "-shortest") {
		t.Errorf("args missing -shortest")
	}
	if job.PartialPath != "/out/2025-11-17_14-25-37.partial.mp4" {
		t.Errorf("partial path = %q", job.PartialPath)
	}
	if job.Args[len(job.Args)-1] != job.PartialPath {
		t.Errorf("encoder target = %q, want partial path", job.Args[len(job.Args)-1])
	}
}

func TestBuildQuadSkipsIncompleteSegment(t *testing.T) {
	seg := quadSegment()
	delete(seg.Cameras, dvr.CameraLeft)
	delete(seg.Cameras, dvr.CameraRight)

	b := newTestBuilder(testConfig(config.VariantQuad), &fakeProber{})
	job, reason, err := b.Build(seg, "/out/x.mp4")
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if job != nil {
		t.Fatalf("expected skip, got job")
	}
	if !strings.Contains(reason, "left") || !strings.Contains(reason, "right") {
		t.Errorf("skip reason %q does not name the missing cameras", reason)
	}
}

func TestBuildFrontSynthesizesSilence(t *testing.T) {
	seg := quadSegment()
	prober := &fakeProber{infos: map[string]Info{
		"/in/seg/f.mp4": {HasAudio: false, Duration: 61.2},
	}}
	b := newTestBuilder(testConfig(config.VariantFront), prober)

	job, reason, err := b.Build(seg, "/out/x.mp4")
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if job == nil {
		t.Fatalf("Build skipped unexpectedly: %s", reason)
	}

	if job.AudioSource != SilenceSource {
		t.Errorf("audio source = %q, want %q", job.AudioSource, SilenceSource)
	}
	joined := strings.Join(job.Args, " ")
	if !strings.Contains(joined, "anullsrc=r=48000:cl=stereo") {
		t.Errorf("args missing silence source: %s", joined)
	}
	if !hasArgPair(job.Args, "-t", "61.200") {
		t.Errorf("silence not bounded to the estimated duration: %s", joined)
	}
	if !hasArgPair(job.Args, "-map", "1:a:0") {
		t.Errorf("args missing silence audio map: %s", joined)
	}

	fc := argValue(t, job.Args, "-filter_complex")
	if !strings.Contains(fc, "crop=iw:ih-170:0:0") {
		t.Errorf("filter_complex missing bottom crop: %s", fc)
	}
	if strings.Contains(fc, "hstack") {
		t.Errorf("front variant must not stack: %s", fc)
	}
}

func TestBuildFrontIgnoresOtherCameras(t *testing.T) {
	seg := quadSegment()
	delete(seg.Cameras, dvr.CameraBack)
	delete(seg.Cameras, dvr.CameraLeft)
	delete(seg.Cameras, dvr.CameraRight)

	prober := &fakeProber{infos: map[string]Info{
		"/in/seg/f.mp4": {HasAudio: true, Duration: 30},
	}}
	b := newTestBuilder(testConfig(config.VariantFront), prober)

	job, reason, err := b.Build(seg, "/out/x.mp4")
	if err != nil || job == nil {
		t.Fatalf("front variant should encode a front-only segment, got job=%v reason=%q err=%v", job, reason, err)
	}
}

func TestBuildFailsOnUnprobeableCamera(t *testing.T) {
	seg := quadSegment()
	prober := &fakeProber{
		infos: map[string]Info{
			"/in/seg/f.mp4": {HasAudio: true, Duration: 60},
		},
		errs: map[string]error{
			"/in/seg/b.mp4": fmt.Errorf("moov atom not found"),
		},
	}
	b := newTestBuilder(testConfig(config.VariantQuad), prober)

	job, _, err := b.Build(seg, "/out/x.mp4")
	if err == nil {
		t.Fatalf("expected error for unprobeable camera, got job=%v", job)
	}
	if !strings.Contains(err.Error(), "back") {
		t.Errorf("error %q does not name the bad camera", err)
	}
}

func TestBuildUsesFallbackDurationWhenUnknown(t *testing.T) {
	seg := quadSegment()
	prober := &fakeProber{infos: map[string]Info{
		"/in/seg/f.mp4": {HasAudio: true},
		"/in/seg/b.mp4": {},
		"/in/seg/l.mp4": {},
		"/in/seg/r.mp4": {},
	}}
	b := newTestBuilder(testConfig(config.VariantQuad), prober)

	job, _, err := b.Build(seg, "/out/x.mp4")
	if err != nil || job == nil {
		t.Fatalf("Build failed: %v", err)
	}
	if job.Duration != 60 {
		t.Errorf("duration = %v, want fallback 60", job.Duration)
	}
}

func TestEncoderQualityArgs(t *testing.T) {
	seg := quadSegment()
	prober := &fakeProber{infos: map[string]Info{
		"/in/seg/f.mp4": {HasAudio: true, Duration: 60},
		"/in/seg/b.mp4": {Duration: 60},
		"/in/seg/l.mp4": {Duration: 60},
		"/in/seg/r.mp4": {Duration: 60},
	}}
	b := newTestBuilder(testConfig(config.VariantQuad), prober)

	job, _, err := b.Build(seg, "/out/x.mp4")
	if err != nil || job == nil {
		t.Fatalf("Build failed: %v", err)
	}

	for flag, want := range map[string]string{
		"-c:v":       "libx264",
		"-preset":    "veryfast",
		"-crf":       "20",
		"-pix_fmt":   "yuv420p",
		"-profile:v": "high",
		"-level:v":   "5.1",
		"-c:a":       "aac",
		"-b:a":       "160k",
		"-r":         "30",
	} {
		if !hasArgPair(job.Args, flag, want) {
			t.Errorf("args missing %s %s", flag, want)
		}
	}
}

func TestPartialPath(t *testing.T) {
	if got := PartialPath("/out/a.mp4"); got != "/out/a.partial.mp4" {
		t.Errorf("PartialPath = %q", got)
	}
	if got := PartialPath("/out/list"); got != "/out/list.partial" {
		t.Errorf("PartialPath = %q", got)
	}
}

func argValue(t *testing.T, args []string, flag string) string {
	t.Helper()
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	t.Fatalf("args missing %s", flag)
	return ""
}

func contains(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

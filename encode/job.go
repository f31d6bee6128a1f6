// Package encode turns discovered segments into ffmpeg invocations, monitors
// the encoder's progress stream, and assembles the per-date concatenation.
package encode

import (
	"fmt"
	"strings"

	"dvrmerge/config"
	"dvrmerge/dvr"
	"dvrmerge/overlay"
)

// SilenceSource is the audio source name recorded when no camera carries an
// audio stream and silent audio is synthesized instead.
const SilenceSource = "silence"

// Job is a complete, runnable encode for one segment. It is ephemeral:
// built, executed, and forgotten; only the output file persists.
type Job struct {
	Segment     dvr.Segment
	OutputPath  string  // final segment output
	PartialPath string  // temp path the encoder writes to; renamed on success
	AudioSource string  // donor camera name, or SilenceSource
	Duration    float64 // estimated seconds, progress display only
	Args        []string
}

// Builder constructs segment encode jobs for the configured variant.
type Builder struct {
	cfg     config.Config
	prober  Prober
	overlay *overlay.Generator
}

// NewBuilder wires a job builder with its probing collaborator and overlay
// generator.
func NewBuilder(cfg config.Config, prober Prober, gen *overlay.Generator) *Builder {
	return &Builder{cfg: cfg, prober: prober, overlay: gen}
}

// requiredCameras returns the cameras a segment must provide to be encodable.
func (b *Builder) requiredCameras() []dvr.Camera {
	if b.cfg.Variant == config.VariantFront {
		return []dvr.Camera{dvr.CameraFront}
	}
	return dvr.AllCameras
}

// Build produces the encode job for one segment. Three outcomes:
//   - (job, "", nil): the segment is encodable
//   - (nil, reason, nil): the segment is skipped (missing cameras); the
//     pipeline counts it and moves on
//   - (nil, "", err): a required input could not be probed; the whole run
//     stops rather than producing a silently incomplete daily archive
func (b *Builder) Build(seg dvr.Segment, outputPath string) (*Job, string, error) {
	var missing []string
	for _, cam := range b.requiredCameras() {
		if !seg.HasCamera(cam) {
			missing = append(missing, string(cam))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Sprintf("missing cameras: %s", strings.Join(missing, ", ")), nil
	}

	infos := make(map[dvr.Camera]Info)
	for _, cam := range b.requiredCameras() {
		info, err := b.prober.Probe(seg.Cameras[cam])
		if err != nil {
			return nil, "", fmt.Errorf("segment %s: %s camera unusable: %w", seg.Name, cam, err)
		}
		infos[cam] = info
	}

	audioCam, hasDonor := pickAudioDonor(b.requiredCameras(), infos)
	duration := b.estimateDuration(infos)

	job := &Job{
		Segment:     seg,
		OutputPath:  outputPath,
		PartialPath: PartialPath(outputPath),
		AudioSource: SilenceSource,
		Duration:    duration,
	}
	if hasDonor {
		job.AudioSource = string(audioCam)
	}

	if b.cfg.Variant == config.VariantFront {
		job.Args = b.frontArgs(seg, job, hasDonor)
	} else {
		job.Args = b.quadArgs(seg, job, audioCam, hasDonor)
	}
	return job, "", nil
}

// pickAudioDonor tests cameras in fixed priority order and returns the first
// with a confirmed audio stream.
func pickAudioDonor(order []dvr.Camera, infos map[dvr.Camera]Info) (dvr.Camera, bool) {
	for _, cam := range order {
		if infos[cam].HasAudio {
			return cam, true
		}
	}
	return "", false
}

// estimateDuration picks the duration used for the progress percentage. The
// minimum across cameras guards against percent > 100 when one camera's file
// outruns the others; the output itself is bounded by -shortest anyway.
func (b *Builder) estimateDuration(infos map[dvr.Camera]Info) float64 {
	min := 0.0
	for _, info := range infos {
		if info.Duration <= 0 {
			continue
		}
		if min == 0 || info.Duration < min {
			min = info.Duration
		}
	}
	if min == 0 {
		return b.cfg.FallbackDuration
	}
	return min
}

// commonArgs are the invocation flags shared by both variants, including the
// key=value progress stream on stderr.
func (b *Builder) commonArgs() []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", b.cfg.FFmpegLogLevel,
		"-stats",
		"-progress", "pipe:2",
		"-fflags", "+genpts",
		"-avoid_negative_ts", "make_zero",
	}
}

// quadArgs composes the 2x2 tiled invocation: each camera padded (never
// scaled) to the tile size with centered black bars, front|back on top,
// left|right below, output exactly 2x tile width by 2x tile height.
func (b *Builder) quadArgs(seg dvr.Segment, job *Job, audioCam dvr.Camera, hasDonor bool) []string {
	args := b.commonArgs()

	// Input order fixes the stream indices used below.
	inputOrder := []dvr.Camera{dvr.CameraFront, dvr.CameraBack, dvr.CameraLeft, dvr.CameraRight}
	for _, cam := range inputOrder {
		args = append(args, "-i", seg.Cameras[cam])
	}
	if !hasDonor {
		args = append(args, "-f", "lavfi", "-t", fmt.Sprintf("%.3f", job.Duration),
			"-i", "anullsrc=r=48000:cl=stereo")
	}

	pad := fmt.Sprintf("pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black", b.cfg.TileWidth, b.cfg.TileHeight)
	labels := []string{"v_f", "v_b", "v_l", "v_r"}
	fg := make([]string, 0, 8)
	for i, label := range labels {
		fg = append(fg, fmt.Sprintf("[%d:v]setpts=N/(%d*TB),%s,setsar=1[%s]",
			i, b.cfg.OutputFPS, pad, label))
	}
	fg = append(fg,
		"[v_f][v_b]hstack=inputs=2[top]",
		"[v_l][v_r]hstack=inputs=2[bot]",
		"[top][bot]vstack=inputs=2[vstacked]",
	)
	// Overlay coordinates are relative to the final stacked frame, so the
	// drawtext step always comes after the layout.
	if expr := b.overlay.ForFolder(seg.Name); expr != "" {
		fg = append(fg, fmt.Sprintf("[vstacked]%s[vout]", expr))
	} else {
		fg = append(fg, "[vstacked]copy[vout]")
	}

	args = append(args, "-filter_complex", strings.Join(fg, ";"), "-map", "[vout]")

	if hasDonor {
		idx := map[dvr.Camera]string{
			dvr.CameraFront: "0", dvr.CameraBack: "1", dvr.CameraLeft: "2", dvr.CameraRight: "3",
		}[audioCam]
		args = append(args, "-map", idx+":a:0?")
	} else {
		args = append(args, "-map", "4:a:0")
	}

	args = append(args, "-r", fmt.Sprintf("%d", b.cfg.OutputFPS), "-shortest")
	args = append(args, b.encoderArgs("5.1")...)
	return append(args, job.PartialPath)
}

// frontArgs composes the single-camera invocation: CFR timeline, fixed crop
// off the bottom edge (width unchanged), optional overlay.
func (b *Builder) frontArgs(seg dvr.Segment, job *Job, hasDonor bool) []string {
	args := b.commonArgs()
	args = append(args, "-i", seg.Cameras[dvr.CameraFront])
	if !hasDonor {
		args = append(args, "-f", "lavfi", "-t", fmt.Sprintf("%.3f", job.Duration),
			"-i", "anullsrc=r=48000:cl=stereo")
	}

	fg := []string{fmt.Sprintf("[0:v]setpts=N/(%d*TB),crop=iw:ih-%d:0:0,setsar=1[v0]",
		b.cfg.OutputFPS, b.cfg.CropBottomPx)}
	if expr := b.overlay.ForFolder(seg.Name); expr != "" {
		fg = append(fg, fmt.Sprintf("[v0]%s[vout]", expr))
	} else {
		fg = append(fg, "[v0]copy[vout]")
	}

	args = append(args, "-filter_complex", strings.Join(fg, ";"), "-map", "[vout]")

	if hasDonor {
		args = append(args, "-map", "0:a:0?")
	} else {
		args = append(args, "-map", "1:a:0")
	}

	args = append(args, "-r", fmt.Sprintf("%d", b.cfg.OutputFPS), "-shortest")
	args = append(args, b.encoderArgs("4.2")...)
	return append(args, job.PartialPath)
}

// encoderArgs returns the fixed quality/codec tail shared by both variants.
// yuv420p maximizes player compatibility; level differs because the quad
// output is a 4K frame.
func (b *Builder) encoderArgs(level string) []string {
	return []string{
		"-c:v", "libx264",
		"-preset", b.cfg.Preset,
		"-crf", fmt.Sprintf("%d", b.cfg.CRF),
		"-pix_fmt", "yuv420p",
		"-profile:v", "high",
		"-level:v", level,
		"-c:a", "aac",
		"-b:a", "160k",
	}
}

// PartialPath returns the temporary path an output is encoded to before the
// rename that finalizes it. Interrupted runs leave only .partial files
// behind, which the skip-existing check ignores.
func PartialPath(outputPath string) string {
	if strings.HasSuffix(outputPath, ".mp4") {
		return strings.TrimSuffix(outputPath, ".mp4") + ".partial.mp4"
	}
	return outputPath + ".partial"
}

package encode

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dvrmerge/config"
)

func TestManifestRoundTripPreservesOrder(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "concat_list.txt")

	paths := []string{
		filepath.Join(dir, "2025-11-17_08-00-00.mp4"),
		filepath.Join(dir, "2025-11-17_07-00-00.mp4"), // deliberately out of lexical order
		filepath.Join(dir, "2025-11-17_09-30-00.mp4"),
	}

	if err := WriteManifest(paths, manifest); err != nil {
		t.Fatalf("WriteManifest failed: %v", err)
	}

	got, err := ReadManifest(manifest)
	if err != nil {
		t.Fatalf("ReadManifest failed: %v", err)
	}
	if len(got) != len(paths) {
		t.Fatalf("got %d entries, want %d", len(got), len(paths))
	}
	for i := range paths {
		if got[i] != paths[i] {
			t.Errorf("entry %d = %q, want %q (order must be preserved)", i, got[i], paths[i])
		}
	}
}

func TestManifestEscapesSingleQuotes(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "list.txt")
	quoted := filepath.Join(dir, "driver's seat.mp4")

	if err := WriteManifest([]string{quoted}, manifest); err != nil {
		t.Fatalf("WriteManifest failed: %v", err)
	}

	raw, err := os.ReadFile(manifest)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `'\''`) {
		t.Errorf("single quote not escaped: %s", raw)
	}

	got, err := ReadManifest(manifest)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != quoted {
		t.Errorf("round trip = %v, want %q", got, quoted)
	}
}

func TestManifestUsesAbsolutePaths(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "list.txt")

	if err := WriteManifest([]string{"relative.mp4"}, manifest); err != nil {
		t.Fatalf("WriteManifest failed: %v", err)
	}

	got, err := ReadManifest(manifest)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || !filepath.IsAbs(got[0]) {
		t.Errorf("manifest entry %v not absolute", got)
	}
}

func TestConcatArgs(t *testing.T) {
	cfg := config.Config{FFmpegLogLevel: "info"}
	args := ConcatArgs(cfg, "/work/list.txt", "/out/final.mp4")

	for flag, want := range map[string]string{
		"-f":        "concat",
		"-safe":     "0",
		"-i":        "/work/list.txt",
		"-c":        "copy",
		"-movflags": "+faststart",
		"-progress": "pipe:2",
	} {
		if !hasArgPair(args, flag, want) {
			t.Errorf("args missing %s %s: %v", flag, want, args)
		}
	}
	if args[len(args)-1] != "/out/final.mp4" {
		t.Errorf("output path = %q, want last argument", args[len(args)-1])
	}
	for _, a := range args {
		if a == "-c:v" || a == "libx264" {
			t.Errorf("concat must not re-encode, found %q", a)
		}
	}
}

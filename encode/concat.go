package encode

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dvrmerge/config"
)

// WriteManifest writes the concat demuxer list: one "file '<abs path>'" line
// per segment output, in the exact order given. The concat step performs no
// reordering, so this order IS the final video's timeline.
func WriteManifest(segmentPaths []string, manifestPath string) error {
	lines := make([]string, 0, len(segmentPaths))
	for _, p := range segmentPaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %v", p, err)
		}
		// Single quotes inside paths must be escaped for ffmpeg's parser.
		escaped := strings.ReplaceAll(abs, "'", `'\''`)
		lines = append(lines, fmt.Sprintf("file '%s'", escaped))
	}
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(manifestPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write concat manifest %s: %v", manifestPath, err)
	}
	return nil
}

// ReadManifest returns the paths referenced by a concat manifest, in order.
// Used for post-run auditing and tests.
func ReadManifest(manifestPath string) ([]string, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "file '") || !strings.HasSuffix(line, "'") {
			continue
		}
		inner := strings.TrimSuffix(strings.TrimPrefix(line, "file '"), "'")
		paths = append(paths, strings.ReplaceAll(inner, `'\''`, "'"))
	}
	return paths, nil
}

// ConcatArgs builds the stream-copy concatenation invocation for a date.
// Nothing is re-encoded: samples are repackaged, which is safe because every
// segment output came from the same job builder with the same settings.
func ConcatArgs(cfg config.Config, manifestPath, outputPath string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "info",
		"-stats",
		"-progress", "pipe:2",
		"-f", "concat",
		"-safe", "0",
		"-i", manifestPath,
		"-c", "copy",
		"-movflags", "+faststart",
		outputPath,
	}
}

package encode

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Info is what the prober learns about one media file. Duration 0 means
// unknown; callers substitute a display-only fallback.
type Info struct {
	HasAudio bool
	Duration float64 // seconds
}

// Prober inspects a media file for audio presence and duration.
//
// An error return means the file could not be probed at all (bad or
// unreadable file); unparsable probe output degrades to "no information"
// instead. The two are different failure classes: the former fails a
// segment's build loudly, the latter only costs progress accuracy.
type Prober interface {
	Probe(path string) (Info, error)
}

// FFProbe runs the ffprobe binary synchronously.
type FFProbe struct {
	binary string
}

// NewFFProbe returns a prober using the given ffprobe binary.
func NewFFProbe(binary string) *FFProbe {
	return &FFProbe{binary: binary}
}

// Probe returns audio presence and duration for path.
func (p *FFProbe) Probe(path string) (Info, error) {
	hasAudio, err := p.hasAudioStream(path)
	if err != nil {
		return Info{}, err
	}

	info := Info{HasAudio: hasAudio}

	// A duration failure never blocks encoding; it only degrades the
	// progress percentage to the fallback estimate.
	if dur, err := p.duration(path); err == nil && dur > 0 {
		info.Duration = dur
	}
	return info, nil
}

func (p *FFProbe) hasAudioStream(path string) (bool, error) {
	cmd := exec.Command(p.binary,
		"-v", "error",
		"-select_streams", "a",
		"-show_entries", "stream=index",
		"-of", "json",
		path)
	output, err := cmd.Output()
	if err != nil {
		return false, fmt.Errorf("ffprobe failed for %s: %v", path, err)
	}

	var result struct {
		Streams []json.RawMessage `json:"streams"`
	}
	if err := json.Unmarshal(output, &result); err != nil {
		// Probed fine but the output is not what we expect; treat as no
		// audio information rather than a bad file.
		return false, nil
	}
	return len(result.Streams) > 0, nil
}

func (p *FFProbe) duration(path string) (float64, error) {
	cmd := exec.Command(p.binary,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=nw=1:nk=1",
		path)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration failed for %s: %v", path, err)
	}

	dur, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("unparsable duration %q for %s", strings.TrimSpace(string(output)), path)
	}
	return dur, nil
}

// Package dvr discovers loop-recording segments on a dashcam dump and groups
// them by calendar date. Discovery is a pure filter over directory names:
// anything that does not match the DVR naming grammar is ignored, never an
// error.
package dvr

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Camera identifies one of the four DVR camera positions.
type Camera string

const (
	CameraFront Camera = "front"
	CameraBack  Camera = "back"
	CameraLeft  Camera = "left"
	CameraRight Camera = "right"
)

// AllCameras lists every camera position in audio-donor priority order.
var AllCameras = []Camera{CameraFront, CameraBack, CameraLeft, CameraRight}

// Folder name like: 2025-11-17_14-25-37
var folderRe = regexp.MustCompile(`^(?P<date>\d{4}-\d{2}-\d{2})_(?P<time>\d{2}-\d{2}-\d{2})$`)

// File name like: DVR_LoopRecording_2025-11-17_14-25-37_front_camera.mp4
var fileRe = regexp.MustCompile(`(?i)^DVR_LoopRecording_` +
	`(?P<date>\d{4}-\d{2}-\d{2})_` +
	`(?P<time>\d{2}-\d{2}-\d{2})_` +
	`(?P<cam>front|back|left|right)_camera\.mp4$`)

const timestampLayout = "2006-01-02_15-04-05"

// Segment is one event-triggered recording instance: a timestamp-named
// folder with up to four camera files. Immutable after discovery.
type Segment struct {
	Name      string            // folder base name, e.g. 2025-11-17_14-25-37
	Dir       string            // absolute or root-relative folder path
	StartTime time.Time         // parsed from the folder name, second resolution
	Cameras   map[Camera]string // present camera files only
}

// Date returns the calendar date the segment belongs to. It is taken
// straight from the folder name, not wall-clock adjusted.
func (s Segment) Date() string {
	return s.StartTime.Format("2006-01-02")
}

// HasCamera reports whether a camera file was discovered for this segment.
func (s Segment) HasCamera(cam Camera) bool {
	_, ok := s.Cameras[cam]
	return ok
}

// ParseFolderName parses a YYYY-MM-DD_HH-MM-SS folder name. The boolean is
// false for names outside the grammar.
func ParseFolderName(name string) (time.Time, bool) {
	if !folderRe.MatchString(name) {
		return time.Time{}, false
	}
	ts, err := time.Parse(timestampLayout, name)
	if err != nil {
		// Matches the pattern but is not a real timestamp (e.g. month 13).
		return time.Time{}, false
	}
	return ts, true
}

// parseCameraFile returns the camera position encoded in a recording file
// name, or false when the name is outside the grammar.
func parseCameraFile(name string) (Camera, bool) {
	m := fileRe.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	cam := Camera(strings.ToLower(m[fileRe.SubexpIndex("cam")]))
	return cam, true
}

// ScanRoot scans root for segment folders and groups them by calendar date.
// Each date's segments are sorted by start timestamp ascending; identical
// timestamps cannot occur under the DVR naming scheme, but if they do the
// folder path breaks the tie so the order stays deterministic.
func ScanRoot(root string) (map[string][]Segment, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to list input root %s: %w", root, err)
	}

	grouped := make(map[string][]Segment)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		ts, ok := ParseFolderName(entry.Name())
		if !ok {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		cams, err := scanCameraFiles(dir)
		if err != nil {
			return nil, err
		}
		seg := Segment{
			Name:      entry.Name(),
			Dir:       dir,
			StartTime: ts,
			Cameras:   cams,
		}
		grouped[seg.Date()] = append(grouped[seg.Date()], seg)
	}

	for _, segments := range grouped {
		sort.Slice(segments, func(i, j int) bool {
			if !segments[i].StartTime.Equal(segments[j].StartTime) {
				return segments[i].StartTime.Before(segments[j].StartTime)
			}
			return segments[i].Dir < segments[j].Dir
		})
	}
	return grouped, nil
}

// scanCameraFiles enumerates one segment folder. A folder may hold 0-4
// recognized camera files; completeness is judged later by the job builder,
// not here.
func scanCameraFiles(dir string) (map[Camera]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list segment folder %s: %w", dir, err)
	}
	cams := make(map[Camera]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		cam, ok := parseCameraFile(entry.Name())
		if !ok {
			continue
		}
		cams[cam] = filepath.Join(dir, entry.Name())
	}
	return cams, nil
}

// SortedDates returns the dates of a scan result in ascending order.
func SortedDates(groups map[string][]Segment) []string {
	dates := make([]string, 0, len(groups))
	for date := range groups {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}

package dvr

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func mkSegmentFolder(t *testing.T, root, name string, cams ...string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create segment folder: %v", err)
	}
	for _, cam := range cams {
		fname := "DVR_LoopRecording_" + name + "_" + cam + "_camera.mp4"
		if err := os.WriteFile(filepath.Join(dir, fname), []byte("x"), 0644); err != nil {
			t.Fatalf("Failed to create camera file: %v", err)
		}
	}
	return dir
}

func TestParseFolderName(t *testing.T) {
	ts, ok := ParseFolderName("2025-11-17_14-25-37")
	if !ok {
		t.Fatal("expected valid folder name to parse")
	}
	want := time.Date(2025, 11, 17, 14, 25, 37, 0, time.UTC)
	if !ts.Equal(want) {
		t.Errorf("parsed %v, want %v", ts, want)
	}

	invalid := []string{
		"2025-11-17",
		"2025-11-17_14-25",
		"20251117_142537",
		"2025-11-17 14-25-37",
		"x2025-11-17_14-25-37",
		"2025-13-40_99-99-99", // matches the pattern but not a real time
	}
	for _, name := range invalid {
		if _, ok := ParseFolderName(name); ok {
			t.Errorf("expected %q to be rejected", name)
		}
	}
}

func TestScanRootFiltersNonMatchingFolders(t *testing.T) {
	root := t.TempDir()
	mkSegmentFolder(t, root, "2025-11-17_14-25-37", "front")
	// Noise that must be ignored, not an error.
	if err := os.MkdirAll(filepath.Join(root, "System Volume Information"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "2025-11-17"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	groups, err := ScanRoot(root)
	if err != nil {
		t.Fatalf("ScanRoot failed: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected 1 date group, got %d", len(groups))
	}
	if len(groups["2025-11-17"]) != 1 {
		t.Errorf("expected 1 segment for 2025-11-17, got %d", len(groups["2025-11-17"]))
	}
}

func TestScanRootChronologicalOrder(t *testing.T) {
	root := t.TempDir()
	// Created out of order on purpose.
	mkSegmentFolder(t, root, "2025-11-17_18-00-00", "front")
	mkSegmentFolder(t, root, "2025-11-17_06-30-12", "front")
	mkSegmentFolder(t, root, "2025-11-17_12-15-44", "front")
	mkSegmentFolder(t, root, "2025-11-18_01-00-00", "front")

	groups, err := ScanRoot(root)
	if err != nil {
		t.Fatalf("ScanRoot failed: %v", err)
	}

	segs := groups["2025-11-17"]
	if len(segs) != 3 {
		t.Fatalf("expected 3 segments on 2025-11-17, got %d", len(segs))
	}
	wantOrder := []string{"2025-11-17_06-30-12", "2025-11-17_12-15-44", "2025-11-17_18-00-00"}
	for i, want := range wantOrder {
		if segs[i].Name != want {
			t.Errorf("segment %d: got %s, want %s", i, segs[i].Name, want)
		}
	}
	if len(groups["2025-11-18"]) != 1 {
		t.Errorf("expected 1 segment on 2025-11-18, got %d", len(groups["2025-11-18"]))
	}
}

func TestScanCameraFiles(t *testing.T) {
	root := t.TempDir()
	dir := mkSegmentFolder(t, root, "2025-11-17_14-25-37", "front", "back", "left", "right")
	// Extra files that do not match the grammar.
	for _, junk := range []string{
		"DVR_LoopRecording_2025-11-17_14-25-37_top_camera.mp4",
		"DVR_LoopRecording_2025-11-17_14-25-37_front_camera.jpg",
		"thumbnail.png",
	} {
		if err := os.WriteFile(filepath.Join(dir, junk), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	groups, err := ScanRoot(root)
	if err != nil {
		t.Fatalf("ScanRoot failed: %v", err)
	}
	seg := groups["2025-11-17"][0]
	if len(seg.Cameras) != 4 {
		t.Fatalf("expected 4 cameras, got %d (%v)", len(seg.Cameras), seg.Cameras)
	}
	for _, cam := range AllCameras {
		if !seg.HasCamera(cam) {
			t.Errorf("missing camera %s", cam)
		}
	}
}

func TestScanCameraFilesCaseInsensitive(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "2025-11-17_14-25-37")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	fname := "DVR_LoopRecording_2025-11-17_14-25-37_FRONT_camera.MP4"
	if err := os.WriteFile(filepath.Join(dir, fname), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	groups, err := ScanRoot(root)
	if err != nil {
		t.Fatalf("ScanRoot failed: %v", err)
	}
	seg := groups["2025-11-17"][0]
	if !seg.HasCamera(CameraFront) {
		t.Error("expected upper-case camera file to be recognized as front")
	}
}

func TestIncompleteSegmentIsNotFiltered(t *testing.T) {
	root := t.TempDir()
	mkSegmentFolder(t, root, "2025-11-17_14-25-37", "front", "back")

	groups, err := ScanRoot(root)
	if err != nil {
		t.Fatalf("ScanRoot failed: %v", err)
	}
	// The locator defers the completeness decision to the job builder.
	if len(groups["2025-11-17"]) != 1 {
		t.Fatalf("incomplete segment must still be discovered")
	}
	if len(groups["2025-11-17"][0].Cameras) != 2 {
		t.Errorf("expected 2 cameras, got %d", len(groups["2025-11-17"][0].Cameras))
	}
}

func TestSortedDates(t *testing.T) {
	groups := map[string][]Segment{
		"2025-11-18": nil,
		"2025-11-16": nil,
		"2025-11-17": nil,
	}
	dates := SortedDates(groups)
	want := []string{"2025-11-16", "2025-11-17", "2025-11-18"}
	for i := range want {
		if dates[i] != want[i] {
			t.Fatalf("dates not sorted: got %v", dates)
		}
	}
}

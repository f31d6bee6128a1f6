package overlay

import (
	"log"
	"os"
	"path/filepath"
)

// FindFontFile returns a usable .ttf path for drawtext, preferring the
// explicitly configured file, then a list of fonts commonly present on Linux
// and Windows machines. Returns "" when nothing exists; drawtext then falls
// back to a font name, which may fail on fontconfig-less ffmpeg builds.
func FindFontFile(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return filepath.ToSlash(explicit)
		}
		log.Printf("Warning: configured font file does not exist: %s", explicit)
	}

	for _, candidate := range fontCandidates() {
		if _, err := os.Stat(candidate); err == nil {
			return filepath.ToSlash(candidate)
		}
	}

	log.Println("WARNING: No suitable font file found; drawtext may fail on this ffmpeg build.")
	log.Println("         Fix: set TIMESTAMP_FONTFILE to a real .ttf path or disable DRAW_TIMESTAMP.")
	return ""
}

func fontCandidates() []string {
	candidates := []string{
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
		"/usr/share/fonts/truetype/freefont/FreeSans.ttf",
		"/usr/share/fonts/TTF/DejaVuSans.ttf",
		"/System/Library/Fonts/Helvetica.ttc",
	}

	windir := os.Getenv("WINDIR")
	if windir == "" {
		windir = `C:\Windows`
	}
	fontsDir := filepath.Join(windir, "Fonts")
	for _, name := range []string{"arial.ttf", "Arial.ttf", "calibri.ttf", "segoeui.ttf", "tahoma.ttf"} {
		candidates = append(candidates, filepath.Join(fontsDir, name))
	}
	return candidates
}

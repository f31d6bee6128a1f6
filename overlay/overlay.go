// Package overlay builds the drawtext expression that burns a running
// timestamp into the composed frame. The rendered text reads
// "YYYY-MM-DD HH:MM:SSxFF" where the clock advances with elapsed output
// time from the segment's shifted start and FF is the output frame index
// within the current second.
package overlay

import (
	"fmt"
	"strings"
	"time"

	"dvrmerge/config"
	"dvrmerge/dvr"
)

// Generator derives drawtext filter expressions from segment start times.
// It is immutable; the font file is resolved once at construction.
type Generator struct {
	cfg      config.Config
	fontFile string // resolved path, empty when falling back to a font name
}

// NewGenerator resolves the overlay font and returns a generator. When the
// overlay is enabled but no usable font file exists, a warning is logged by
// FindFontFile and drawtext falls back to a font name (which some builds
// cannot resolve).
func NewGenerator(cfg config.Config) *Generator {
	g := &Generator{cfg: cfg}
	if cfg.DrawTimestamp {
		g.fontFile = FindFontFile(cfg.FontFile)
	}
	return g
}

// Enabled reports whether overlays are generated at all.
func (g *Generator) Enabled() bool {
	return g.cfg.DrawTimestamp
}

// ForFolder builds the overlay for a segment folder name, or "" when the
// overlay is disabled or the name does not parse. A missing overlay never
// blocks encoding.
func (g *Generator) ForFolder(folderName string) string {
	if !g.cfg.DrawTimestamp {
		return ""
	}
	start, ok := dvr.ParseFolderName(folderName)
	if !ok {
		return ""
	}
	return g.Build(start)
}

// Build composes the drawtext filter for a segment starting at start. The
// configured hour shift is applied once here; the clock then advances with
// output time only. Output is byte-identical for identical inputs.
func (g *Generator) Build(start time.Time) string {
	adjusted := start.Add(time.Duration(g.cfg.TimestampShiftHours) * time.Hour)
	dateText := adjusted.Format("2006-01-02")

	// Seconds since midnight of the shifted start, the base the running
	// clock counts from.
	baseSec := adjusted.Hour()*3600 + adjusted.Minute()*60 + adjusted.Second()

	hh := fmt.Sprintf(`trunc((t+%d)/3600)`, baseSec)
	mm := fmt.Sprintf(`mod(trunc((t+%d)/60)\,60)`, baseSec)
	ss := fmt.Sprintf(`mod(trunc(t+%d)\,60)`, baseSec)
	ff := fmt.Sprintf(`mod(n\,%d)`, g.cfg.OutputFPS)

	// Consumers parse exported frames at fixed width, so two-digit fields
	// must always render as two digits. Some ffmpeg 4.4 builds mishandle
	// %02d padding inside eif, so each field prints its tens digit and ones
	// digit separately.
	text := fmt.Sprintf(`%s %s\:%s\:%sx%s`,
		dateText, twoDigits(hh), twoDigits(mm), twoDigits(ss), twoDigits(ff))

	box := "0"
	boxColor := "black@0"
	if g.cfg.TimestampBox {
		box = "1"
		boxColor = fmt.Sprintf("black@%g", g.cfg.TimestampBoxOpacity)
	}

	return "drawtext=" +
		g.fontOption() +
		fmt.Sprintf("text='%s':", text) +
		fmt.Sprintf("fontsize=%d:", g.cfg.FontSize) +
		"fontcolor=white:" +
		"shadowcolor=black:shadowx=3:shadowy=3:" +
		fmt.Sprintf("box=%s:", box) +
		fmt.Sprintf("boxcolor=%s:", boxColor) +
		fmt.Sprintf("boxborderw=%d:", g.cfg.TimestampBoxBorder) +
		"x=(w-text_w)/2:" +
		fmt.Sprintf("y=h-text_h-%d", g.cfg.TimestampPaddingY)
}

// twoDigits prints a numeric expression as exactly two decimal digits.
func twoDigits(expr string) string {
	return fmt.Sprintf(`%%{eif\:trunc((%s)/10)\:d}%%{eif\:mod((%s)\,10)\:d}`, expr, expr)
}

func (g *Generator) fontOption() string {
	if g.fontFile != "" {
		// Drive letters and other ':' occurrences must be escaped for the
		// ffmpeg option parser.
		escaped := strings.ReplaceAll(strings.ReplaceAll(g.fontFile, `\`, "/"), ":", `\:`)
		return fmt.Sprintf("fontfile='%s':", escaped)
	}
	return fmt.Sprintf("font='%s':", g.cfg.FontName)
}

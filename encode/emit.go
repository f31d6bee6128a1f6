package encode

import (
	"fmt"
	"log"
	"time"

	"github.com/schollz/progressbar/v3"
)

// emitter throttles and renders status for one monitored process. On a real
// terminal it drives a progress bar (or in-place line updates when the total
// is unknown); everywhere else it prints plain lines, additionally gated by
// a minimum percent step so unattended runs don't flood logs.
type emitter struct {
	m          *Monitor
	st         Status
	total      float64
	elapsed    float64
	hasElapsed bool

	lastEmit time.Time
	lastPct  float64

	bar *progressbar.ProgressBar
}

func (m *Monitor) newEmitter(st Status, total float64) *emitter {
	em := &emitter{
		m:       m,
		st:      st,
		total:   total,
		lastPct: -1e9,
	}
	if m.tty && total > 0 {
		em.bar = progressbar.NewOptions(100,
			progressbar.OptionSetDescription(fmt.Sprintf("%s %s", st.Stage, st.Name)),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(m.cfg.TTYMinInterval),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionSetRenderBlankState(true),
		)
	}
	return em
}

func (e *emitter) minInterval() time.Duration {
	if e.m.tty {
		return e.m.cfg.TTYMinInterval
	}
	return e.m.cfg.NonTTYMinInterval
}

// update records a new elapsed output time and maybe emits.
func (e *emitter) update(elapsed float64, final bool) {
	e.elapsed = elapsed
	e.hasElapsed = true
	e.emit(final)
}

// force emits regardless of throttling (heartbeats, completion).
func (e *emitter) force() {
	e.emit(true)
}

// finish emits the terminal status line once the process has exited cleanly.
func (e *emitter) finish() {
	if e.bar != nil {
		if _, known := Percent(e.elapsed, e.total); known {
			_ = e.bar.Set(100)
		}
		_ = e.bar.Finish()
		fmt.Println()
		return
	}
	e.emit(true)
}

// diagnostic surfaces a noteworthy encoder line verbatim.
func (e *emitter) diagnostic(line string) {
	if e.bar != nil {
		_ = e.bar.Clear()
	}
	log.Printf("[ffmpeg] %s", line)
}

func (e *emitter) emit(force bool) {
	now := time.Now()
	if !force && now.Sub(e.lastEmit) < e.minInterval() {
		return
	}

	pct, pctKnown := Percent(e.elapsed, e.total)
	if !e.hasElapsed {
		pctKnown = false
	}

	// Non-interactive output additionally requires meaningful advance so a
	// multi-hour run doesn't fill the log with near-identical lines.
	if !e.m.tty && !force && pctKnown && pct-e.lastPct < e.m.cfg.NonTTYMinPctStep {
		return
	}

	if e.bar != nil {
		if pctKnown {
			_ = e.bar.Set(int(pct))
		}
	} else {
		line := FormatStatusLine(e.st, pct, pctKnown, e.elapsed, e.hasElapsed)
		if e.m.tty {
			// In-place update; the trailing padding clears leftovers from a
			// longer previous line.
			fmt.Printf("\r%-200s", line)
			if force {
				fmt.Println()
			}
		} else {
			fmt.Println(line)
		}
	}

	e.lastEmit = now
	if pctKnown {
		e.lastPct = pct
	}
}

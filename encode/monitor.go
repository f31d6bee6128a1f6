package encode

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"

	"dvrmerge/config"
)

// ProgressParser consumes the encoder's stderr one line at a time and keeps
// the elapsed output time. Lines follow either the key=value progress
// protocol or free-form diagnostics; the parser separates the two.
//
// The elapsed time arrives in two representations: out_time_ms (integer
// microseconds, despite the name) and out_time (HH:MM:SS.ffffff). They are
// never trusted simultaneously; once the microsecond form has been seen the
// timecode form is ignored for the rest of the run.
type ProgressParser struct {
	elapsed   float64
	hasTime   bool
	sawMicros bool
	sawAny    bool
	ended     bool
}

// Protocol keys are bare words (out_time_ms, speed, stream_0_0_q, ...).
// Stats and diagnostic lines also contain '=' but their "key" carries spaces
// or brackets, or their value holds further pairs.
var progressKeyRe = regexp.MustCompile(`^[A-Za-z0-9_.]+$`)

// ParseLine feeds one stderr line. Returns true when the line belonged to
// the progress protocol, false for diagnostics/noise.
func (p *ProgressParser) ParseLine(line string) bool {
	line = strings.TrimSpace(line)
	key, value, found := strings.Cut(line, "=")
	if !found {
		return false
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if !progressKeyRe.MatchString(key) || strings.Contains(value, "=") {
		return false
	}

	switch key {
	case "out_time_ms", "out_time_us":
		micros, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return true
		}
		p.elapsed = float64(micros) / 1e6
		p.hasTime = true
		p.sawMicros = true
		p.sawAny = true
	case "out_time":
		if p.sawMicros {
			return true
		}
		if secs, ok := parseTimecode(value); ok {
			p.elapsed = secs
			p.hasTime = true
		}
		p.sawAny = true
	case "progress":
		p.sawAny = true
		if value == "end" {
			p.ended = true
		}
	default:
		// Other protocol keys (fps, bitrate, speed, ...) carry no timing
		// state we need, but they still count as protocol traffic.
		p.sawAny = true
	}
	return true
}

// Elapsed returns the current output time in seconds, if one has been seen.
func (p *ProgressParser) Elapsed() (float64, bool) {
	return p.elapsed, p.hasTime
}

// SawProgress reports whether any protocol line arrived at all.
func (p *ProgressParser) SawProgress() bool { return p.sawAny }

// Ended reports whether the encoder emitted progress=end.
func (p *ProgressParser) Ended() bool { return p.ended }

// parseTimecode parses HH:MM:SS.ffffff into seconds.
func parseTimecode(value string) (float64, bool) {
	parts := strings.Split(value, ":")
	if len(parts) < 3 {
		return 0, false
	}
	hh, err1 := strconv.Atoi(parts[0])
	mm, err2 := strconv.Atoi(parts[1])
	ss, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}
	return float64(hh)*3600 + float64(mm)*60 + ss, true
}

// Percent derives percent-complete from elapsed output time and a known
// total. Unknown total means unknown percent, never a guess.
func Percent(elapsed, total float64) (float64, bool) {
	if total <= 0 {
		return 0, false
	}
	pct := elapsed / total * 100
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct, true
}

// isNoteworthy picks the diagnostic lines worth surfacing to the operator
// out of the encoder's frame-log noise.
func isNoteworthy(line string) bool {
	low := strings.ToLower(line)
	for _, marker := range []string{"error", "invalid", "warning", "fontconfig"} {
		if strings.Contains(low, marker) {
			return true
		}
	}
	return false
}

// Status describes where in the overall run a monitored process sits; it is
// only used to render human-readable progress lines.
type Status struct {
	Stage       string // ENCODE, CONCAT, REUSE
	HeaderLabel string // "Date-time" for segments, "Date" for concats
	Name        string // segment folder name or date
	Date        string
	DateIdx     int
	DateTotal   int
	SegIdx      int
	SegTotal    int
}

func fmtPct(x float64) string {
	return fmt.Sprintf("%5.1f%%", x)
}

func ratioPct(i, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(i) / float64(total) * 100
}

func fmtTimeMMSS(seconds float64, known bool) string {
	if !known || seconds < 0 {
		return "t=??:??"
	}
	mm := int(seconds) / 60
	ss := int(seconds) % 60
	return fmt.Sprintf("t=%02d:%02d", mm, ss)
}

// FormatStatusLine renders one compact status line: date progress, segment
// progress, stage, percent within the current file, and output timestamp.
func FormatStatusLine(st Status, pct float64, pctKnown bool, elapsed float64, elapsedKnown bool) string {
	filePct := "  ?.?%"
	if pctKnown {
		filePct = fmtPct(pct)
	}
	return fmt.Sprintf("date %s [%d/%d %s] | seg [%d/%d %s] | stage %s | progress %s %s %s",
		st.Date, st.DateIdx, st.DateTotal, fmtPct(ratioPct(st.DateIdx, st.DateTotal)),
		st.SegIdx, st.SegTotal, fmtPct(ratioPct(st.SegIdx, st.SegTotal)),
		st.Stage, filePct, fmtTimeMMSS(elapsed, elapsedKnown), st.Name)
}

// Monitor runs one external encoder process at a time and renders its
// progress. Exactly two things happen concurrently: the process itself and
// the stderr read loop; the monitor never writes to the process's input.
type Monitor struct {
	cfg config.Config
	tty bool
}

// NewMonitor builds a monitor, detecting whether stdout is a real terminal
// to pick the throttling mode.
func NewMonitor(cfg config.Config) *Monitor {
	return &Monitor{
		cfg: cfg,
		tty: isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()),
	}
}

// Run starts the encoder with the given argv and blocks until it exits,
// parsing the progress stream and emitting throttled status. totalDur <= 0
// means the total is unknown and percent is reported as unknown. A non-zero
// exit is returned as an error naming the exit code and the full invocation.
func (m *Monitor) Run(binary string, args []string, st Status, totalDur float64) error {
	if st.Name != "" {
		fmt.Printf("\n>> %s: %s\n", st.HeaderLabel, st.Name)
	} else {
		fmt.Printf("\n>> %s\n", st.HeaderLabel)
	}
	if m.cfg.ShowCommand {
		fmt.Printf("   CMD: %s %s\n", binary, strings.Join(args, " "))
	}

	cmd := exec.Command(binary, args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open stderr pipe: %v", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %v", binary, err)
	}

	lines := make(chan string, 64)
	var eg errgroup.Group
	eg.Go(func() error {
		defer close(lines)
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		return scanner.Err()
	})

	em := m.newEmitter(st, totalDur)
	parser := &ProgressParser{}

	idle := time.NewTimer(m.cfg.HeartbeatInterval)
	defer idle.Stop()

readLoop:
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				break readLoop
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(m.cfg.HeartbeatInterval)

			if parser.ParseLine(line) {
				if elapsed, ok := parser.Elapsed(); ok {
					em.update(elapsed, parser.Ended())
				}
			} else if t := strings.TrimSpace(line); t != "" && isNoteworthy(t) {
				em.diagnostic(t)
			}
		case <-idle.C:
			// The encoder went quiet but is presumed alive; say so and keep
			// waiting. Stalls are informational, never a reason to kill.
			em.force()
			log.Printf("...still running (no output for %v)...", m.cfg.HeartbeatInterval)
			idle.Reset(m.cfg.HeartbeatInterval)
		}
	}

	if readErr := eg.Wait(); readErr != nil {
		log.Printf("Warning: error reading encoder output: %v", readErr)
	}

	waitErr := cmd.Wait()
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			return fmt.Errorf("%s exited with code %d (cmd: %s %s)",
				binary, exitErr.ExitCode(), binary, strings.Join(args, " "))
		}
		return fmt.Errorf("%s failed: %v (cmd: %s %s)", binary, waitErr, binary, strings.Join(args, " "))
	}

	// The last throttled line may be stale; force a final emission so a
	// finished encode reads 100% instead of wherever the throttle stopped.
	if parser.SawProgress() {
		em.finish()
	}
	return nil
}

// Package service orchestrates a combine run: discover segments, encode each
// one, concatenate per date, and record everything in the run catalog.
package service

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"dvrmerge/config"
	"dvrmerge/database"
	"dvrmerge/dvr"
	"dvrmerge/encode"
	"dvrmerge/metrics"
	"dvrmerge/overlay"
	"dvrmerge/storage"
)

// JobRunner executes one external encoder process and reports its progress.
// Satisfied by encode.Monitor; tests substitute a fake.
type JobRunner interface {
	Run(binary string, args []string, st encode.Status, totalDur float64) error
}

// Pipeline ties discovery, encoding, concatenation, cataloging and upload
// together for one configured variant.
type Pipeline struct {
	cfg       config.Config
	db        database.Database
	prober    encode.Prober
	builder   *encode.Builder
	runner    JobRunner
	uploader  storage.Uploader
	collector *metrics.MetricsCollector
}

// NewPipeline wires the default collaborators: ffprobe prober, overlay
// generator, job builder and process monitor. The uploader stays nil unless
// uploads are enabled.
func NewPipeline(cfg config.Config, db database.Database) (*Pipeline, error) {
	prober := encode.NewFFProbe(cfg.FFprobePath)
	gen := overlay.NewGenerator(cfg)

	p := &Pipeline{
		cfg:       cfg,
		db:        db,
		prober:    prober,
		builder:   encode.NewBuilder(cfg, prober, gen),
		runner:    encode.NewMonitor(cfg),
		collector: metrics.NewMetricsCollector(),
	}

	if cfg.UploadEnabled {
		up, err := storage.NewS3Storage(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize upload storage: %v", err)
		}
		p.uploader = up
	}
	return p, nil
}

// runCounters aggregates segment outcomes across a whole run.
type runCounters struct {
	built   int
	reused  int
	skipped int
}

// Run performs one full combine pass over the input tree. Encoder failures
// and unprobeable inputs abort the run; missing-camera segments are counted
// and skipped.
func (p *Pipeline) Run() error {
	start := time.Now()
	runID := uuid.New().String()

	if err := p.db.CreateRun(database.Run{
		ID:        runID,
		Variant:   string(p.cfg.Variant),
		StartedAt: start,
		Status:    database.RunRunning,
	}); err != nil {
		return err
	}

	counters, dates, err := p.runAllDates(runID)

	status := database.RunCompleted
	errMsg := ""
	if err != nil {
		status = database.RunFailed
		errMsg = err.Error()
	}
	if dbErr := p.db.FinishRun(runID, status, dates,
		counters.built, counters.reused, counters.skipped, errMsg); dbErr != nil {
		log.Printf("Warning: failed to finalize run record: %v", dbErr)
	}

	if err != nil {
		return err
	}
	p.logRunAudit(runID)
	log.Printf("Run %s: %d dates, %d built, %d reused, %d skipped, done in %ds",
		runID, dates, counters.built, counters.reused, counters.skipped,
		int(time.Since(start).Seconds()))
	return nil
}

// logRunAudit replays the catalog's view of a finished run so an operator can
// audit it from the log alone, without opening the database.
func (p *Pipeline) logRunAudit(runID string) {
	encodes, err := p.db.ListSegmentEncodes(runID)
	if err != nil {
		log.Printf("Warning: failed to list segment encodes for audit: %v", err)
		return
	}
	for _, enc := range encodes {
		switch enc.Status {
		case database.SegmentSkipped:
			log.Printf("Audit: %s segment %s skipped (%s)", enc.Date, enc.SegmentName, enc.SkipReason)
		case database.SegmentReused:
			log.Printf("Audit: %s segment %s reused from %s", enc.Date, enc.SegmentName, enc.OutputPath)
		}
	}

	outputs, err := p.db.ListDateOutputs(runID)
	if err != nil {
		log.Printf("Warning: failed to list date outputs for audit: %v", err)
		return
	}
	for _, out := range outputs {
		if out.UploadURL != "" {
			log.Printf("Audit: %s -> %s (%.2f MB, uploaded to %s)",
				out.Date, out.OutputPath, float64(out.SizeBytes)/1024/1024, out.UploadURL)
		} else {
			log.Printf("Audit: %s -> %s (%.2f MB)",
				out.Date, out.OutputPath, float64(out.SizeBytes)/1024/1024)
		}
	}

	for _, dm := range p.collector.GetAllMetrics() {
		log.Print(dm.GetSummary())
	}
}

func (p *Pipeline) runAllDates(runID string) (runCounters, int, error) {
	var counters runCounters

	byDate, err := dvr.ScanRoot(p.cfg.InputDir)
	if err != nil {
		return counters, 0, fmt.Errorf("failed to scan %s: %v", p.cfg.InputDir, err)
	}

	dates := dvr.SortedDates(byDate)
	if len(dates) == 0 {
		log.Printf("No recording folders found under %s", p.cfg.InputDir)
		return counters, 0, nil
	}
	log.Printf("Found %d date(s) with %d segment folder(s) total", len(dates), countSegments(byDate))

	for di, date := range dates {
		if err := p.processDate(runID, date, byDate[date], di+1, len(dates), &counters); err != nil {
			return counters, len(dates), err
		}
	}
	return counters, len(dates), nil
}

func countSegments(byDate map[string][]dvr.Segment) int {
	n := 0
	for _, segs := range byDate {
		n += len(segs)
	}
	return n
}

// processDate builds every encodable segment of one date and concatenates the
// results into the final per-date video.
func (p *Pipeline) processDate(runID, date string, segs []dvr.Segment, dateIdx, dateTotal int, counters *runCounters) error {
	dm := p.collector.StartDate(date)
	defer dm.Finalize()

	finalPath := p.cfg.DateOutputPath(date)
	if p.cfg.SkipExisting && isUsableOutput(finalPath) {
		log.Printf("Date %s: final output already exists, skipping (%s)", date, finalPath)
		counters.skipped += len(segs)
		dm.CountSegment(0, 0, len(segs))
		return nil
	}

	workDir := p.cfg.WorkDir(date)
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("failed to create work dir %s: %v", workDir, err)
	}

	var built, reused, skipped int
	var segmentOutputs []string

	dm.StartEncode()
	for si, seg := range segs {
		segOut := filepath.Join(workDir, seg.Name+".mp4")
		st := encode.Status{
			Stage:       "ENCODE",
			HeaderLabel: "Date-time",
			Name:        seg.Name,
			Date:        date,
			DateIdx:     dateIdx,
			DateTotal:   dateTotal,
			SegIdx:      si + 1,
			SegTotal:    len(segs),
		}

		if p.cfg.SkipExisting && isUsableOutput(segOut) {
			fmt.Printf("\n>> %s: %s\n   REUSE %s\n", st.HeaderLabel, seg.Name, segOut)
			segmentOutputs = append(segmentOutputs, segOut)
			reused++
			p.recordSegment(runID, date, seg.Name, database.SegmentReused, "", "", 0, segOut)
			continue
		}

		job, skipReason, err := p.builder.Build(seg, segOut)
		if err != nil {
			p.recordSegment(runID, date, seg.Name, database.SegmentFailed, "", "", 0, "")
			return err
		}
		if job == nil {
			log.Printf("Skipping segment %s: %s", seg.Name, skipReason)
			skipped++
			p.recordSegment(runID, date, seg.Name, database.SegmentSkipped, skipReason, "", 0, "")
			continue
		}

		segStart := time.Now()
		if err := p.runner.Run(p.cfg.FFmpegPath, job.Args, st, job.Duration); err != nil {
			p.recordSegment(runID, date, seg.Name, database.SegmentFailed, "", job.AudioSource, job.Duration, "")
			return fmt.Errorf("segment %s: %v", seg.Name, err)
		}
		log.Printf("Segment %s done in %ds (audio: %s)", seg.Name, int(time.Since(segStart).Seconds()), job.AudioSource)
		// The encoder wrote to the partial path; the rename is what makes the
		// output visible to reuse checks and the concat step.
		if err := os.Rename(job.PartialPath, job.OutputPath); err != nil {
			return fmt.Errorf("failed to finalize segment output %s: %v", job.OutputPath, err)
		}

		segmentOutputs = append(segmentOutputs, job.OutputPath)
		built++
		p.recordSegment(runID, date, seg.Name, database.SegmentBuilt, "", job.AudioSource, job.Duration, job.OutputPath)
	}
	dm.EndEncode()

	counters.built += built
	counters.reused += reused
	counters.skipped += skipped
	dm.CountSegment(built, reused, skipped)
	log.Printf("Date %s: %d built, %d reused, %d skipped", date, built, reused, skipped)

	if len(segmentOutputs) == 0 {
		log.Printf("Date %s: no encodable segments, no output produced", date)
		return nil
	}

	if err := p.concatDate(runID, date, segmentOutputs, finalPath, workDir, dateIdx, dateTotal, dm); err != nil {
		return err
	}

	if p.uploader != nil {
		dm.StartUpload()
		url, err := p.uploader.UploadDateVideo(finalPath, date)
		dm.EndUpload()
		if err != nil {
			// Uploads are best-effort; the local artifact is the deliverable.
			log.Printf("Warning: upload failed for %s: %v", finalPath, err)
		} else if dbErr := p.db.UpdateDateOutputUpload(runID, date, url); dbErr != nil {
			log.Printf("Warning: failed to record upload URL: %v", dbErr)
		}
	}
	return nil
}

// concatDate stream-copies the segment outputs, in order, into the final
// per-date video, then records the artifact.
func (p *Pipeline) concatDate(runID, date string, segmentOutputs []string, finalPath, workDir string, dateIdx, dateTotal int, dm *metrics.DateMetrics) error {
	manifestPath := filepath.Join(workDir, fmt.Sprintf("concat_segments_%s.txt", date))
	if err := encode.WriteManifest(segmentOutputs, manifestPath); err != nil {
		return err
	}

	// Sum the segment durations so the concat progress bar has a total.
	dm.StartProbe()
	totalDur := 0.0
	for _, out := range segmentOutputs {
		if info, err := p.prober.Probe(out); err == nil {
			totalDur += info.Duration
		}
	}
	dm.EndProbe()

	partial := encode.PartialPath(finalPath)
	st := encode.Status{
		Stage:       "CONCAT",
		HeaderLabel: "Date",
		Name:        date,
		Date:        date,
		DateIdx:     dateIdx,
		DateTotal:   dateTotal,
		SegIdx:      len(segmentOutputs),
		SegTotal:    len(segmentOutputs),
	}

	dm.StartConcat()
	err := p.runner.Run(p.cfg.FFmpegPath, encode.ConcatArgs(p.cfg, manifestPath, partial), st, totalDur)
	dm.EndConcat()
	if err != nil {
		return fmt.Errorf("concat for %s: %v", date, err)
	}
	if err := os.Rename(partial, finalPath); err != nil {
		return fmt.Errorf("failed to finalize %s: %v", finalPath, err)
	}

	var size int64
	if fi, err := os.Stat(finalPath); err == nil {
		size = fi.Size()
	}
	log.Printf("Date %s: wrote %s (%.2f MB from %d segments)",
		date, finalPath, float64(size)/1024/1024, len(segmentOutputs))

	if err := p.db.RecordDateOutput(database.DateOutput{
		RunID:      runID,
		Date:       date,
		OutputPath: finalPath,
		SizeBytes:  size,
	}); err != nil {
		log.Printf("Warning: failed to record date output: %v", err)
	}
	return nil
}

func (p *Pipeline) recordSegment(runID, date, name, status, skipReason, audioSource string, duration float64, outputPath string) {
	if err := p.db.RecordSegmentEncode(database.SegmentEncode{
		RunID:       runID,
		Date:        date,
		SegmentName: name,
		Status:      status,
		SkipReason:  skipReason,
		AudioSource: audioSource,
		Duration:    duration,
		OutputPath:  outputPath,
	}); err != nil {
		log.Printf("Warning: failed to record segment %s: %v", name, err)
	}
}

// isUsableOutput reports whether a previous run left a finished, non-empty
// output at path. Partial files never match because they live under a
// different name until the finishing rename.
func isUsableOutput(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Size() > 0
}

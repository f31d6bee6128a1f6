package metrics

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// DateMetrics tracks timing for the processing stages of one calendar date
type DateMetrics struct {
	Date            string
	StartTime       time.Time
	ProbeStartTime  *time.Time
	ProbeEndTime    *time.Time
	ProbeDuration   time.Duration
	EncodeStartTime *time.Time
	EncodeEndTime   *time.Time
	EncodeDuration  time.Duration
	ConcatStartTime *time.Time
	ConcatEndTime   *time.Time
	ConcatDuration  time.Duration
	UploadStartTime *time.Time
	UploadEndTime   *time.Time
	UploadDuration  time.Duration
	SegmentsBuilt   int
	SegmentsReused  int
	SegmentsSkipped int
	TotalDuration   time.Duration
	mu              sync.Mutex
}

// NewDateMetrics creates a new metrics instance for a date
func NewDateMetrics(date string) *DateMetrics {
	return &DateMetrics{
		Date:      date,
		StartTime: time.Now(),
	}
}

// StartProbe marks the start of the feasibility/probe pass
func (m *DateMetrics) StartProbe() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.ProbeStartTime = &now
	log.Printf("[Metrics] Date %s: Starting segment probing", m.Date)
}

// EndProbe marks the end of the feasibility/probe pass
func (m *DateMetrics) EndProbe() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ProbeStartTime != nil {
		now := time.Now()
		m.ProbeEndTime = &now
		m.ProbeDuration = now.Sub(*m.ProbeStartTime)
		log.Printf("[Metrics] Date %s: Segment probing completed in %v", m.Date, m.ProbeDuration)
	}
}

// StartEncode marks the start of per-segment encoding
func (m *DateMetrics) StartEncode() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.EncodeStartTime = &now
	log.Printf("[Metrics] Date %s: Starting segment encoding", m.Date)
}

// EndEncode marks the end of per-segment encoding
func (m *DateMetrics) EndEncode() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EncodeStartTime != nil {
		now := time.Now()
		m.EncodeEndTime = &now
		m.EncodeDuration = now.Sub(*m.EncodeStartTime)
		log.Printf("[Metrics] Date %s: Segment encoding completed in %v", m.Date, m.EncodeDuration)
	}
}

// StartConcat marks the start of the stream-copy concatenation
func (m *DateMetrics) StartConcat() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.ConcatStartTime = &now
	log.Printf("[Metrics] Date %s: Starting concatenation", m.Date)
}

// EndConcat marks the end of the stream-copy concatenation
func (m *DateMetrics) EndConcat() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ConcatStartTime != nil {
		now := time.Now()
		m.ConcatEndTime = &now
		m.ConcatDuration = now.Sub(*m.ConcatStartTime)
		log.Printf("[Metrics] Date %s: Concatenation completed in %v", m.Date, m.ConcatDuration)
	}
}

// StartUpload marks the start of the final artifact upload
func (m *DateMetrics) StartUpload() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.UploadStartTime = &now
	log.Printf("[Metrics] Date %s: Starting upload", m.Date)
}

// EndUpload marks the end of the final artifact upload
func (m *DateMetrics) EndUpload() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UploadStartTime != nil {
		now := time.Now()
		m.UploadEndTime = &now
		m.UploadDuration = now.Sub(*m.UploadStartTime)
		log.Printf("[Metrics] Date %s: Upload completed in %v", m.Date, m.UploadDuration)
	}
}

// CountSegment bumps the per-date segment counters
func (m *DateMetrics) CountSegment(built, reused, skipped int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SegmentsBuilt += built
	m.SegmentsReused += reused
	m.SegmentsSkipped += skipped
}

// Finalize calculates total duration and logs summary
func (m *DateMetrics) Finalize() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalDuration = time.Since(m.StartTime)
	log.Printf("[Metrics] Date %s: Processing completed - Total: %v, Probe: %v, Encode: %v, Concat: %v, Upload: %v",
		m.Date,
		m.TotalDuration,
		m.ProbeDuration,
		m.EncodeDuration,
		m.ConcatDuration,
		m.UploadDuration)
}

// GetSummary returns a formatted summary of all metrics
func (m *DateMetrics) GetSummary() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	summary := fmt.Sprintf("Processing Metrics for %s:\n", m.Date)
	summary += fmt.Sprintf("  Total Duration: %v\n", m.TotalDuration)
	summary += fmt.Sprintf("  Segments: %d built, %d reused, %d skipped\n",
		m.SegmentsBuilt, m.SegmentsReused, m.SegmentsSkipped)

	if m.ProbeDuration > 0 {
		summary += fmt.Sprintf("  Probing: %v\n", m.ProbeDuration)
	}

	if m.EncodeDuration > 0 {
		summary += fmt.Sprintf("  Encoding: %v\n", m.EncodeDuration)
	}

	if m.ConcatDuration > 0 {
		summary += fmt.Sprintf("  Concatenation: %v\n", m.ConcatDuration)
	}

	if m.UploadDuration > 0 {
		summary += fmt.Sprintf("  Upload: %v\n", m.UploadDuration)
	}

	return summary
}

// MetricsCollector manages metrics across the dates of a run
type MetricsCollector struct {
	metrics map[string]*DateMetrics
	mu      sync.RWMutex
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		metrics: make(map[string]*DateMetrics),
	}
}

// StartDate creates metrics for a new date
func (c *MetricsCollector) StartDate(date string) *DateMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	metrics := NewDateMetrics(date)
	c.metrics[date] = metrics
	return metrics
}

// GetMetrics retrieves metrics for a date
func (c *MetricsCollector) GetMetrics(date string) *DateMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.metrics[date]
}

// GetAllMetrics returns all collected metrics
func (c *MetricsCollector) GetAllMetrics() map[string]*DateMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// Create a copy to avoid race conditions
	result := make(map[string]*DateMetrics)
	for k, v := range c.metrics {
		result[k] = v
	}
	return result
}

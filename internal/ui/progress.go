package ui

import (
	"sync"
	"time"
)

// speedWindow is the minimum interval between throughput samples.
const speedWindow = 250 * time.Millisecond

// ProgressTracker manages progress state across ingestion stages.
// It is safe for concurrent use.
type ProgressTracker struct {
	mu         sync.RWMutex
	stage      Stage
	current    int
	total      int
	message    string
	startTime  time.Time
	stageStart time.Time
	timings    map[Stage]time.Duration
	errors     []ErrorEvent
	warnings   []ErrorEvent

	lastCurrent int
	lastSample  time.Time
	speed       SpeedStats
	samples     int
	sparkline   *Sparkline
}

// SpeedStats contains records/sec throughput.
type SpeedStats struct {
	Current float64
	Avg     float64
	Peak    float64
}

// ProgressStats contains a snapshot of current progress.
type ProgressStats struct {
	Stage      Stage
	Current    int
	Total      int
	Progress   float64
	Message    string
	Elapsed    time.Duration
	ErrorCount int
	WarnCount  int
	Speed      SpeedStats
}

// NewProgressTracker creates a tracker positioned at StageFetching.
func NewProgressTracker() *ProgressTracker {
	now := time.Now()
	return &ProgressTracker{
		stage:      StageFetching,
		startTime:  now,
		stageStart: now,
		lastSample: now,
		timings:    make(map[Stage]time.Duration),
		sparkline:  NewSparkline(60),
	}
}

// SetStage transitions to a new stage, closing the timing of the previous one.
func (p *ProgressTracker) SetStage(stage Stage, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if stage != p.stage {
		p.timings[p.stage] += now.Sub(p.stageStart)
		p.stageStart = now
	}
	p.stage = stage
	p.total = total
	p.current = 0
	p.message = ""

	p.lastCurrent = 0
	p.lastSample = now
	p.speed = SpeedStats{}
	p.samples = 0
	p.sparkline.Clear()
}

// Update updates progress within the current stage.
func (p *ProgressTracker) Update(current int, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = current
	if message != "" {
		p.message = message
	}

	now := time.Now()
	elapsed := now.Sub(p.lastSample)
	if elapsed < speedWindow {
		return
	}
	if delta := current - p.lastCurrent; delta > 0 {
		rate := float64(delta) / elapsed.Seconds()
		p.samples++
		p.speed.Current = rate
		if p.samples == 1 {
			p.speed.Avg = rate
		} else {
			p.speed.Avg = 0.2*rate + 0.8*p.speed.Avg
		}
		if rate > p.speed.Peak {
			p.speed.Peak = rate
		}
		p.sparkline.Add(rate)
	}
	p.lastCurrent = current
	p.lastSample = now
}

// SetTotal changes the item count of the current stage.
func (p *ProgressTracker) SetTotal(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
}

// AddError records an error or warning.
func (p *ProgressTracker) AddError(event ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.IsWarn {
		p.warnings = append(p.warnings, event)
	} else {
		p.errors = append(p.errors, event)
	}
}

// Progress returns the fraction of the current stage done, in [0, 1].
func (p *ProgressTracker) Progress() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.progressLocked()
}

func (p *ProgressTracker) progressLocked() float64 {
	if p.total == 0 {
		return 0
	}
	progress := float64(p.current) / float64(p.total)
	if progress > 1 {
		return 1
	}
	return progress
}

// Elapsed returns time since tracker creation.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return time.Since(p.startTime)
}

// Stats returns a snapshot.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return ProgressStats{
		Stage:      p.stage,
		Current:    p.current,
		Total:      p.total,
		Progress:   p.progressLocked(),
		Message:    p.message,
		Elapsed:    time.Since(p.startTime),
		ErrorCount: len(p.errors),
		WarnCount:  len(p.warnings),
		Speed:      p.speed,
	}
}

// StageTimings returns the time spent in each finished stage. The stage in
// progress is included up to now.
func (p *ProgressTracker) StageTimings() map[Stage]time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[Stage]time.Duration, len(p.timings)+1)
	for s, d := range p.timings {
		out[s] = d
	}
	if p.stage != StageComplete {
		out[p.stage] += time.Since(p.stageStart)
	}
	return out
}

// Errors returns the recorded errors.
func (p *ProgressTracker) Errors() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]ErrorEvent(nil), p.errors...)
}

// Warnings returns the recorded warnings.
func (p *ProgressTracker) Warnings() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]ErrorEvent(nil), p.warnings...)
}

// RenderSparkline returns the throughput sparkline.
func (p *ProgressTracker) RenderSparkline(width int) string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if width <= 0 {
		return p.sparkline.Render()
	}
	return p.sparkline.RenderWithWidth(width)
}

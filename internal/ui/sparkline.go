package ui

import "strings"

// sparkChars are the eight bar heights, lowest first.
var sparkChars = []rune("▁▂▃▄▅▆▇█")

// Sparkline keeps the most recent samples and renders them as block bars.
type Sparkline struct {
	samples []float64
	size    int
	total   int
}

// NewSparkline creates a sparkline retaining size samples.
func NewSparkline(size int) *Sparkline {
	if size <= 0 {
		size = 60
	}
	return &Sparkline{size: size}
}

// Add appends a sample, evicting the oldest once full.
func (s *Sparkline) Add(v float64) {
	if v < 0 {
		v = 0
	}
	s.total++
	if len(s.samples) == s.size {
		copy(s.samples, s.samples[1:])
		s.samples[len(s.samples)-1] = v
		return
	}
	s.samples = append(s.samples, v)
}

// Render draws every retained sample.
func (s *Sparkline) Render() string {
	return s.RenderWithWidth(s.size)
}

// RenderWithWidth draws the newest width samples, scaled to their own maximum
// and left-padded with spaces when fewer samples exist.
func (s *Sparkline) RenderWithWidth(width int) string {
	if width <= 0 {
		return ""
	}
	window := s.samples
	if len(window) > width {
		window = window[len(window)-width:]
	}

	peak := 0.0
	for _, v := range window {
		peak = max(peak, v)
	}

	var sb strings.Builder
	sb.Grow(width * 3)
	sb.WriteString(strings.Repeat(" ", width-len(window)))
	for _, v := range window {
		idx := 0
		if peak > 0 {
			idx = int(v / peak * float64(len(sparkChars)-1))
		}
		sb.WriteRune(sparkChars[idx])
	}
	return sb.String()
}

// Clear drops all samples.
func (s *Sparkline) Clear() {
	s.samples = s.samples[:0]
	s.total = 0
}

// Count returns the number of samples added since the last Clear.
func (s *Sparkline) Count() int {
	return s.total
}

// Max returns the largest retained sample.
func (s *Sparkline) Max() float64 {
	peak := 0.0
	for _, v := range s.samples {
		peak = max(peak, v)
	}
	return peak
}

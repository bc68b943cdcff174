package logging

import "strings"

// ProgressSampler suppresses repetitive progress logs. It emits when the
// elapsed percentage crosses a bucket boundary or when the active tool changes.
type ProgressSampler struct {
	bucketSize float64
	lastTool   string
	lastBucket int
}

// NewProgressSampler constructs a sampler with the given bucket width in
// percent (default 10).
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether a progress sample should be logged. A negative
// percent means unknown and only tool changes are considered.
func (s *ProgressSampler) ShouldLog(percent float64, tool string) bool {
	if s == nil {
		return true
	}
	tool = strings.TrimSpace(tool)
	emit := false
	if tool != "" && tool != s.lastTool {
		s.lastTool = tool
		s.lastBucket = -1
		emit = true
	}
	if percent >= 0 {
		if percent > 100 {
			percent = 100
		}
		bucket := int(percent / s.bucketSize)
		if bucket > s.lastBucket {
			s.lastBucket = bucket
			emit = true
		}
	}
	return emit
}

// Reset clears the sampler state.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastTool = ""
	s.lastBucket = -1
}

package models

import (
	"time"

	"github.com/google/uuid"
)

type StopReason string

const (
	StopExhausted    StopReason = "EXHAUSTED"
	StopCapReached   StopReason = "CAP_REACHED"
	StopKnownStreak  StopReason = "KNOWN_STREAK"
	StopCancelled    StopReason = "CANCELLED"
	StopSourceFailed StopReason = "SOURCE_FAILED" // the extractor could not continue
)

// Summary is the per-run tally handed to the notifiers once a run completes.
type Summary struct {
	RunID          string     `json:"run_id"`
	Source         string     `json:"source"`
	OutputPath     string     `json:"output_path"`
	Succeeded      int        `json:"succeeded"`
	Duplicates     int        `json:"duplicates_skipped"`
	Failed         int        `json:"failed_extractions"`
	SessionSkipped int        `json:"session_skipped"`
	Unprotected    int        `json:"unprotected"` // saved without an identifier
	KnownStreak    int        `json:"known_streak"`
	StopReason     StopReason `json:"stop_reason"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     time.Time  `json:"finished_at"`
}

func NewSummary(source, outputPath string, now time.Time) *Summary {
	return &Summary{
		RunID:      uuid.NewString(),
		Source:     source,
		OutputPath: outputPath,
		StopReason: StopExhausted,
		StartedAt:  now,
	}
}

func (s *Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

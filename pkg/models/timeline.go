package models

import "time"

// TimelineEntry is one human-readable line in the ordered progress log.
// Sequence is assigned at append time and defines the total order;
// timestamps are informational only.
type TimelineEntry struct {
	Sequence  uint64    `json:"sequence"`
	Type      string    `json:"type"`
	Subtype   string    `json:"subtype"`
	Content   string    `json:"content"`
	StageID   string    `json:"stage_id,omitempty"`
	SubTask   string    `json:"sub_task,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

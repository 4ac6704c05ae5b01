package progress

import (
	"time"

	"github.com/pulseline/pulseline/pkg/models"
)

// timeline is the append-only progress log. Sequence numbers are handed
// out at append time so the total order survives identical timestamps.
type timeline struct {
	entries []models.TimelineEntry
	seq     uint64
}

func newTimeline() *timeline {
	return &timeline{entries: make([]models.TimelineEntry, 0, 64)}
}

func (t *timeline) append(entryType, subtype, content, stageID, subTask string, ts time.Time) {
	t.seq++

	t.entries = append(t.entries, models.TimelineEntry{
		Sequence:  t.seq,
		Type:      entryType,
		Subtype:   subtype,
		Content:   content,
		StageID:   stageID,
		SubTask:   subTask,
		Timestamp: ts,
	})
}

func (t *timeline) snapshot() []models.TimelineEntry {
	out := make([]models.TimelineEntry, len(t.entries))
	copy(out, t.entries)

	return out
}

func (t *timeline) reset() {
	t.entries = t.entries[:0]
	t.seq = 0
}

package progress

import (
	"context"
	"fmt"

	"github.com/pulseline/pulseline/pkg/events"
	"github.com/pulseline/pulseline/pkg/models"
	"github.com/pulseline/pulseline/pkg/notify"
)

func (e *Engine) reduceTokenStream(ctx context.Context, event *events.Event) {
	source := firstString(event, "source", "tool", "name")
	if source == "" {
		e.logger.WarnContext(ctx, "Dropping token-stream event without source", "subtype", string(event.Subtype))

		return
	}

	// Identity must combine source and step: the same source streams in
	// several steps, and keying by name alone silently overwrites across
	// steps.
	stepNumber, _ := event.Int("step_number")
	key := models.TokenStreamKey{Source: source, StepNumber: stepNumber}

	switch event.Subtype {
	case events.SubtypeStart:
		e.tokenStreamStart(event, key)
	case events.SubtypeToken:
		e.tokenStreamToken(event, key)
	case events.SubtypeEnd:
		e.tokenStreamEnd(event, key)
	case events.SubtypeError:
		e.tokenStreamError(ctx, event, key)
	}
}

func (e *Engine) tokenStreamStart(event *events.Event, key models.TokenStreamKey) {
	if existing, ok := e.streams[key]; ok && existing.Status.IsTerminal() {
		return
	}

	startedAt := event.Timestamp

	e.streams[key] = &models.TokenStream{
		Key:       key,
		Status:    models.TokenStreamStatusStreaming,
		Chunks:    make([]string, 0, 32),
		StartedAt: &startedAt,
	}

	content := fmt.Sprintf("Streaming started: %s (step %d)", key.Source, key.StepNumber)
	e.timeline.append(string(event.Level), string(event.Subtype), content, "", key.Source, event.Timestamp)
}

func (e *Engine) tokenStreamToken(event *events.Event, key models.TokenStreamKey) {
	stream, ok := e.streams[key]
	if !ok {
		// Token before start: create the stream implicitly so chunks from
		// a reconnect gap are not lost.
		startedAt := event.Timestamp
		stream = &models.TokenStream{
			Key:       key,
			Status:    models.TokenStreamStatusStreaming,
			Chunks:    make([]string, 0, 32),
			StartedAt: &startedAt,
		}
		e.streams[key] = stream
	}

	if stream.Status.IsTerminal() {
		return
	}

	chunk := firstString(event, "token", "content", "chunk")

	stream.Chunks = append(stream.Chunks, chunk)
	stream.ChunkCount++

	if stream.FirstChunkAt == nil {
		firstAt := event.Timestamp
		stream.FirstChunkAt = &firstAt

		if stream.StartedAt != nil {
			stream.TimeToFirstChunk = firstAt.Sub(*stream.StartedAt).Seconds()
		}
	}

	// Only every tokenTimelineStride-th chunk reaches the timeline.
	if stream.ChunkCount%tokenTimelineStride == 1 {
		content := fmt.Sprintf("Streaming %s: %d chunks", key.Source, stream.ChunkCount)
		e.timeline.append(string(event.Level), string(event.Subtype), content, "", key.Source, event.Timestamp)
	}
}

func (e *Engine) tokenStreamEnd(event *events.Event, key models.TokenStreamKey) {
	stream, ok := e.streams[key]
	if !ok || stream.Status.IsTerminal() {
		return
	}

	stream.Status = models.TokenStreamStatusCompleted

	if elapsed, ok := event.Float("elapsed_time"); ok {
		stream.ElapsedTime = elapsed
	} else if stream.StartedAt != nil {
		stream.ElapsedTime = event.Timestamp.Sub(*stream.StartedAt).Seconds()
	}

	content := fmt.Sprintf("Streaming finished: %s (%d chunks)", key.Source, stream.ChunkCount)
	e.timeline.append(string(event.Level), string(event.Subtype), content, "", key.Source, event.Timestamp)
}

func (e *Engine) tokenStreamError(ctx context.Context, event *events.Event, key models.TokenStreamKey) {
	stream, ok := e.streams[key]
	if !ok {
		stream = &models.TokenStream{Key: key}
		e.streams[key] = stream
	}

	stream.Status = models.TokenStreamStatusError
	stream.Error = event.String("error")

	content := "Streaming failed: " + key.Source
	if stream.Error != "" {
		content += " (" + stream.Error + ")"
	}

	e.timeline.append(string(event.Level), string(event.Subtype), content, "", key.Source, event.Timestamp)
	e.notifyLocked(ctx, notify.KindStreamFailed, map[string]any{
		"source":      key.Source,
		"step_number": key.StepNumber,
		"error":       stream.Error,
	})
}

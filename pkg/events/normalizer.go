package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// BatchType is the envelope type carrying an ordered array of raw
// sub-messages.
const BatchType = "batch"

var (
	ErrMissingType = errors.New("message has no type")
	ErrUnknownType = errors.New("unknown message type")
	ErrNotBatch    = errors.New("message is not a batch envelope")
)

// Decode parses a raw JSON payload into the generic message form used
// by Normalize and Unbatch.
func Decode(payload []byte) (map[string]any, error) {
	var msg map[string]any
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode raw message: %w", err)
	}

	return msg, nil
}

// Normalize converts one raw message into the canonical event form.
//
// Two wire shapes are accepted: a legacy flat type string ("node_start")
// resolved through the alias table, or a unified {type, subtype} pair
// where type is already a canonical level. Payload fields may sit at the
// top level or nested under "data"; nested fields win on conflict since
// they are the more specific payload.
func Normalize(msg map[string]any) (*Event, error) {
	rawType, _ := msg["type"].(string)
	if rawType == "" {
		return nil, ErrMissingType
	}

	rawSubtype, _ := msg["subtype"].(string)

	kind, ok := resolveKind(rawType, rawSubtype)
	if !ok {
		return nil, fmt.Errorf("%w: type=%q subtype=%q", ErrUnknownType, rawType, rawSubtype)
	}

	fields := make(map[string]any, len(msg))

	for k, v := range msg {
		switch k {
		case "type", "subtype", "data":
			continue
		}

		fields[k] = v
	}

	if data, ok := msg["data"].(map[string]any); ok {
		for k, v := range data {
			fields[k] = v
		}
	}

	event := &Event{
		Level:       kind.Level,
		Subtype:     kind.Subtype,
		ExecutionID: executionID(fields),
		Timestamp:   eventTimestamp(fields),
		Fields:      fields,
	}

	return event, nil
}

// IsBatch reports whether a raw message is a batch envelope.
func IsBatch(msg map[string]any) bool {
	t, _ := msg["type"].(string)

	return t == BatchType
}

// Unbatch expands a batch envelope into its raw sub-messages, preserving
// array order. The sub-messages live either at the top-level "messages"
// key or nested under "data".
func Unbatch(msg map[string]any) ([]map[string]any, error) {
	if !IsBatch(msg) {
		return nil, ErrNotBatch
	}

	raw, ok := msg["messages"].([]any)
	if !ok {
		if data, dok := msg["data"].(map[string]any); dok {
			raw, ok = data["messages"].([]any)
		}
	}

	if !ok {
		return nil, errors.New("batch envelope has no messages array")
	}

	messages := make([]map[string]any, 0, len(raw))

	for _, item := range raw {
		sub, ok := item.(map[string]any)
		if !ok {
			continue
		}

		messages = append(messages, sub)
	}

	return messages, nil
}

func resolveKind(rawType, rawSubtype string) (Kind, bool) {
	if rawSubtype != "" {
		kind := Kind{Level: Level(rawType), Subtype: Subtype(rawSubtype)}
		if IsValidKind(kind) {
			return kind, true
		}

		return Kind{}, false
	}

	return LegacyKind(rawType)
}

func executionID(fields map[string]any) string {
	if id, ok := fields["execution_id"].(string); ok {
		return id
	}

	if id, ok := fields["executionId"].(string); ok {
		return id
	}

	return ""
}

func eventTimestamp(fields map[string]any) time.Time {
	if raw, ok := fields["timestamp"].(string); ok {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			return ts
		}
	}

	return time.Now().UTC()
}

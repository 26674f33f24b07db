package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotObject is returned when a streamed message is valid JSON but not an
// object.
var ErrNotObject = errors.New("incident message is not a JSON object")

// RawMessage is an unprocessed incident message from the source topic.
type RawMessage struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// ParseMessage decodes a message holding one raw incident object and
// normalizes it. Unlike NormalizeRecords, which silently drops non-objects
// from a dataset, a message that cannot carry a record is an error so the
// pipeline can count and skip it.
func ParseMessage(msg RawMessage) (Incident, error) {
	dec := json.NewDecoder(bytes.NewReader(msg.Value))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return Incident{}, fmt.Errorf("parse incident message: %w", err)
	}
	rec, ok := asRecord(v)
	if !ok {
		return Incident{}, ErrNotObject
	}
	return NormalizeRecord(rec), nil
}

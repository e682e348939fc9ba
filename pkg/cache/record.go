package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Sternrassler/render-cache/pkg/head"
)

// Record is one cached render.
type Record struct {
	// Content is the rendered document body
	Content string `json:"content"`

	// StatusCode is the status served on a cache hit
	StatusCode int `json:"status_code"`

	// Headers are replayed on a cache hit; never nil once stored
	Headers map[string]string `json:"headers"`

	// OriginalHead is the head produced by the renderer, kept for audit
	OriginalHead head.Head `json:"original_head"`

	// Overrides is what the document asked to replace, kept for audit
	Overrides head.Overrides `json:"overrides"`

	// Timestamp is the time of the last upsert
	Timestamp time.Time `json:"timestamp"`
}

// NewRecord builds a record from a rendered document and its resolved heads.
func NewRecord(content string, merged, original head.Head, overrides head.Overrides) *Record {
	merged = merged.Clone()
	return &Record{
		Content:      content,
		StatusCode:   merged.StatusCode,
		Headers:      merged.Headers,
		OriginalHead: original.Clone(),
		Overrides:    overrides,
	}
}

// Head returns the status and headers to serve for the record.
func (r *Record) Head() head.Head {
	return head.Head{StatusCode: r.StatusCode, Headers: r.Headers}.Clone()
}

func (r *Record) validate() error {
	if r == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}
	if r.StatusCode <= 0 {
		return fmt.Errorf("%w: missing status code", ErrInvalidRecord)
	}
	return nil
}

func encodeRecord(r *Record) ([]byte, error) {
	stored := *r
	if stored.Headers == nil {
		stored.Headers = map[string]string{}
	}
	if stored.OriginalHead.Headers == nil {
		stored.OriginalHead.Headers = map[string]string{}
	}
	if stored.Overrides.Headers == nil {
		stored.Overrides.Headers = map[string]string{}
	}
	data, err := json.Marshal(&stored)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return data, nil
}

func decodeRecord(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if r.Headers == nil {
		r.Headers = map[string]string{}
	}
	return &r, nil
}

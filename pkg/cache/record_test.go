package cache

import (
	"reflect"
	"testing"

	"github.com/Sternrassler/render-cache/pkg/head"
)

func TestNewRecord(t *testing.T) {
	status := 404
	original := head.Head{StatusCode: 200, Headers: map[string]string{"A": "1"}}
	merged := head.Head{StatusCode: 404, Headers: map[string]string{"A": "1", "X-Custom": "yes"}}
	overrides := head.Overrides{StatusCode: &status, Headers: map[string]string{"X-Custom": "yes"}}

	r := NewRecord("<html></html>", merged, original, overrides)

	if r.StatusCode != 404 {
		t.Errorf("StatusCode = %d, want 404", r.StatusCode)
	}
	if !reflect.DeepEqual(r.Headers, merged.Headers) {
		t.Errorf("Headers = %v, want %v", r.Headers, merged.Headers)
	}
	if !reflect.DeepEqual(r.OriginalHead, original) {
		t.Errorf("OriginalHead = %+v, want %+v", r.OriginalHead, original)
	}

	// the record owns its maps
	merged.Headers["A"] = "changed"
	original.Headers["A"] = "changed"
	if r.Headers["A"] != "1" || r.OriginalHead.Headers["A"] != "1" {
		t.Error("record shares header maps with its inputs")
	}
}

func TestRecord_Head(t *testing.T) {
	r := &Record{StatusCode: 301, Headers: map[string]string{"Location": "/x"}}

	h := r.Head()
	want := head.Head{StatusCode: 301, Headers: map[string]string{"Location": "/x"}}
	if !reflect.DeepEqual(h, want) {
		t.Errorf("Head = %+v, want %+v", h, want)
	}

	h.Headers["Location"] = "/y"
	if r.Headers["Location"] != "/x" {
		t.Error("Head shares the record's header map")
	}
}

func TestDecodeRecord_NilHeaders(t *testing.T) {
	r, err := decodeRecord([]byte(`{"content":"x","status_code":200}`))
	if err != nil {
		t.Fatalf("decodeRecord failed: %v", err)
	}
	if r.Headers == nil {
		t.Error("Headers is nil, want empty map")
	}
}

func TestStoreError(t *testing.T) {
	err := &StoreError{Op: "get", Partition: "a.com", Key: "a.com/x", Err: ErrNotFound}
	want := `cache get "a.com/x" in partition "a.com": cache record not found`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	initErr := &StoreError{Op: "init", Partition: "a.com", Err: ErrNotFound}
	want = `cache init partition "a.com": cache record not found`
	if initErr.Error() != want {
		t.Errorf("Error() = %q, want %q", initErr.Error(), want)
	}
}

package intercept

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResult_Write(t *testing.T) {
	w := httptest.NewRecorder()

	err := Respond(http.StatusNotFound, "<p>gone</p>", map[string]string{
		"Content-Type": "text/html",
		"X-Custom":     "yes",
	}).Write(w)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if w.Body.String() != "<p>gone</p>" {
		t.Errorf("body = %q", w.Body.String())
	}
	if got := w.Header().Get("X-Custom"); got != "yes" {
		t.Errorf("X-Custom = %q, want yes", got)
	}
}

func TestResult_WriteKeepsHeaderCase(t *testing.T) {
	w := httptest.NewRecorder()

	if err := Respond(http.StatusOK, "", map[string]string{"x-lower": "1"}).Write(w); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if got := w.Header()["x-lower"]; len(got) != 1 || got[0] != "1" {
		t.Errorf("x-lower = %v, want [1]", got)
	}
}

func TestResult_WriteContinue(t *testing.T) {
	w := httptest.NewRecorder()

	if err := Continue().Write(w); !errors.Is(err, ErrNoResponse) {
		t.Errorf("err = %v, want ErrNoResponse", err)
	}
	if w.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", w.Body.String())
	}
}

func TestAction_String(t *testing.T) {
	tests := []struct {
		action Action
		want   string
	}{
		{ActionContinue, "continue"},
		{ActionRespond, "respond"},
		{Action(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.action.String(); got != tt.want {
			t.Errorf("Action(%d).String() = %q, want %q", tt.action, got, tt.want)
		}
	}
}

func TestRequestFromHTTP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/http://example.com/app%23!/items", nil)
	r.Header.Set("User-Agent", "crawler")

	req := RequestFromHTTP(r)

	if req.URL != "/http://example.com/app%23!/items" {
		t.Errorf("URL = %q", req.URL)
	}
	if req.Method != http.MethodGet {
		t.Errorf("Method = %q", req.Method)
	}
	if req.Header.Get("User-Agent") != "crawler" {
		t.Errorf("Header not carried over")
	}
}

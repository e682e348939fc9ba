package intercept

import (
	"errors"
	"io"
	"net/http"
	"sort"
)

// ErrNoResponse is returned when writing a Continue result.
var ErrNoResponse = errors.New("result carries no response")

// Action tells the host pipeline what to do after a hook.
type Action int

const (
	// ActionContinue hands control to the next pipeline stage.
	ActionContinue Action = iota

	// ActionRespond answers the request with the result's response.
	ActionRespond
)

// String returns the metric/log label for the action.
func (a Action) String() string {
	switch a {
	case ActionContinue:
		return "continue"
	case ActionRespond:
		return "respond"
	default:
		return "unknown"
	}
}

// Result is the outcome of a hook.
type Result struct {
	Action     Action
	StatusCode int
	Body       string
	Headers    map[string]string
}

// Continue returns a result that lets the pipeline proceed.
func Continue() Result {
	return Result{Action: ActionContinue}
}

// Respond returns a result that answers the request.
func Respond(statusCode int, body string, headers map[string]string) Result {
	return Result{
		Action:     ActionRespond,
		StatusCode: statusCode,
		Body:       body,
		Headers:    headers,
	}
}

// Responded reports whether the result answers the request.
func (r Result) Responded() bool {
	return r.Action == ActionRespond
}

// Write sends the result to w: headers first, then status and body.
func (r Result) Write(w http.ResponseWriter) error {
	if !r.Responded() {
		return ErrNoResponse
	}

	names := make([]string, 0, len(r.Headers))
	for name := range r.Headers {
		names = append(names, name)
	}
	sort.Strings(names)

	// header names are kept as stored, without canonicalization
	header := w.Header()
	for _, name := range names {
		header[name] = []string{r.Headers[name]}
	}

	w.WriteHeader(r.StatusCode)
	_, err := io.WriteString(w, r.Body)
	return err
}

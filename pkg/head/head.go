// Package head models HTTP response heads and resolves the override
// directives that rendered pages embed as <meta> elements.
package head

// Field is a single response header as emitted by the renderer.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Head is a response status code together with its headers.
// Header names are case-sensitive keys.
type Head struct {
	// StatusCode is the HTTP status to send
	StatusCode int `json:"status_code"`

	// Headers maps header name to value
	Headers map[string]string `json:"headers"`
}

// FromFields builds a Head from an ordered header list.
// When a name occurs more than once the later field wins.
func FromFields(statusCode int, fields []Field) Head {
	headers := make(map[string]string, len(fields))
	for _, f := range fields {
		headers[f.Name] = f.Value
	}
	return Head{
		StatusCode: statusCode,
		Headers:    headers,
	}
}

// Clone returns a deep copy of the head. A nil header map becomes empty.
func (h Head) Clone() Head {
	headers := make(map[string]string, len(h.Headers))
	for name, value := range h.Headers {
		headers[name] = value
	}
	return Head{
		StatusCode: h.StatusCode,
		Headers:    headers,
	}
}

// Overrides is the part of a head that a document asked to replace.
type Overrides struct {
	// StatusCode is nil when the document carried no valid status directive
	StatusCode *int `json:"status_code,omitempty"`

	// Headers holds every header directive, later directives winning
	Headers map[string]string `json:"headers"`
}

// Empty reports whether the overrides change nothing.
func (o Overrides) Empty() bool {
	return o.StatusCode == nil && len(o.Headers) == 0
}

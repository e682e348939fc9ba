package intercept

import "net/http"

// Request is the part of an inbound request the hooks look at.
type Request struct {
	// URL is the raw request path, possibly with query
	URL string

	// Method is the HTTP method
	Method string

	// Header carries the request headers
	Header http.Header
}

// RequestFromHTTP extracts a Request from r. The unparsed request URI is
// used when available so that escaped fragment markers survive.
func RequestFromHTTP(r *http.Request) Request {
	uri := r.RequestURI
	if uri == "" {
		uri = r.URL.RequestURI()
	}
	return Request{
		URL:    uri,
		Method: r.Method,
		Header: r.Header,
	}
}

package head

import (
	"fmt"
	"iter"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Meta names recognised as override directives.
const (
	// MetaHeader carries a "Name: value" header override.
	MetaHeader = "prerender-header"

	// MetaStatusCode carries a numeric status code override.
	MetaStatusCode = "prerender-status-code"
)

// Kind identifies what a directive overrides.
type Kind int

const (
	// KindHeader overrides a single response header.
	KindHeader Kind = iota + 1

	// KindStatusCode overrides the response status code.
	KindStatusCode
)

// String returns the metric/log label for the kind.
func (k Kind) String() string {
	switch k {
	case KindHeader:
		return "header"
	case KindStatusCode:
		return "status_code"
	default:
		return "unknown"
	}
}

// Directive is one override instruction found in a document.
type Directive struct {
	Kind    Kind
	Payload string
}

// Scanner extracts override directives from a rendered document.
//
// The returned sequence yields directives in document order. It is finite
// and may be ranged over more than once.
type Scanner interface {
	Scan(document string) (iter.Seq[Directive], error)
}

// HTMLScanner finds directives in <meta name="..." content="..."> elements
// of an HTML document.
type HTMLScanner struct{}

// Scan parses the document once and returns a lazy walk over its tree.
func (HTMLScanner) Scan(document string) (iter.Seq[Directive], error) {
	root, err := html.Parse(strings.NewReader(document))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return func(yield func(Directive) bool) {
		walk(root, yield)
	}, nil
}

// walk visits n and its descendants depth-first, which is document order.
// It returns false once yield asks to stop.
func walk(n *html.Node, yield func(Directive) bool) bool {
	if n.Type == html.ElementNode && n.DataAtom == atom.Meta {
		if d, ok := metaDirective(n); ok && !yield(d) {
			return false
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if !walk(child, yield) {
			return false
		}
	}
	return true
}

func metaDirective(n *html.Node) (Directive, bool) {
	var name, content string
	hasContent := false
	for _, attr := range n.Attr {
		switch attr.Key {
		case "name":
			name = attr.Val
		case "content":
			content = attr.Val
			hasContent = true
		}
	}
	if !hasContent {
		return Directive{}, false
	}

	switch strings.ToLower(strings.TrimSpace(name)) {
	case MetaHeader:
		return Directive{Kind: KindHeader, Payload: content}, true
	case MetaStatusCode:
		return Directive{Kind: KindStatusCode, Payload: content}, true
	default:
		return Directive{}, false
	}
}

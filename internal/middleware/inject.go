package middleware

import (
	"bytes"
	"mime"
	"net/http"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// bodyCloseOffset returns the byte offset of the last </body> end tag in
// page, or -1 if there is none. Tags inside comments, scripts and attribute
// values are not matched.
func bodyCloseOffset(page []byte) int {
	z := html.NewTokenizer(bytes.NewReader(page))
	offset, found := 0, -1

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return found
		}
		raw := len(z.Raw())
		if tt == html.EndTagToken {
			name, _ := z.TagName()
			if atom.Lookup(name) == atom.Body {
				found = offset
			}
		}
		offset += raw
	}
}

// injectFragment places fragment before the closing body tag, or at the end of the
// page when there is none.
func injectFragment(page []byte, fragment string) []byte {
	at := bodyCloseOffset(page)
	if at < 0 {
		out := make([]byte, 0, len(page)+len(fragment))
		out = append(out, page...)
		return append(out, fragment...)
	}

	out := make([]byte, 0, len(page)+len(fragment))
	out = append(out, page[:at]...)
	out = append(out, fragment...)
	return append(out, page[at:]...)
}

// isHTML reports whether the response headers describe an HTML document that
// can be rewritten.
func isHTML(h http.Header) bool {
	if h.Get("Content-Encoding") != "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(h.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// bodyAllowed reports whether a response with this status may carry a body.
func bodyAllowed(method string, status int) bool {
	if method == http.MethodHead {
		return false
	}
	switch {
	case status >= 100 && status < 200:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}

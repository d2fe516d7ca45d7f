package middleware

import (
	"bytes"
	"net/http"
	"strconv"
)

// bufferedWriter holds the response until the debug report has been
// rendered. Headers go straight to the underlying writer's map.
type bufferedWriter struct {
	w           http.ResponseWriter
	body        bytes.Buffer
	status      int
	wroteHeader bool
}

func newBufferedWriter(w http.ResponseWriter) *bufferedWriter {
	return &bufferedWriter{w: w, status: http.StatusOK}
}

func (b *bufferedWriter) Header() http.Header {
	return b.w.Header()
}

func (b *bufferedWriter) WriteHeader(code int) {
	if b.wroteHeader {
		return
	}
	b.status = code
	b.wroteHeader = true
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	if !b.wroteHeader {
		b.WriteHeader(http.StatusOK)
	}
	if b.Header().Get("Content-Type") == "" {
		b.Header().Set("Content-Type", http.DetectContentType(p))
	}
	return b.body.Write(p)
}

// written reports whether the handler produced any output.
func (b *bufferedWriter) written() bool {
	return b.wroteHeader || b.body.Len() > 0
}

// flush sends the status and body. Content-Length is only rewritten when
// the body grew; a handler's own value (HEAD included) is left alone.
func (b *bufferedWriter) flush(body []byte) error {
	if len(body) != b.body.Len() {
		b.Header().Set("Content-Length", strconv.Itoa(len(body)))
	}
	b.w.WriteHeader(b.status)
	if len(body) == 0 {
		return nil
	}
	_, err := b.w.Write(body)
	return err
}

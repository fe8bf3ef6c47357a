package middleware

import (
	"bytes"
	"net/http"
)

// bufferedResponse holds a downstream response until the idempotency filter
// has decided what to add to it.
type bufferedResponse struct {
	header      http.Header
	status      int
	body        bytes.Buffer
	wroteHeader bool
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{header: make(http.Header)}
}

func (b *bufferedResponse) Header() http.Header {
	return b.header
}

func (b *bufferedResponse) WriteHeader(status int) {
	if b.wroteHeader {
		return
	}
	b.status = status
	b.wroteHeader = true
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if !b.wroteHeader {
		b.WriteHeader(http.StatusOK)
	}
	return b.body.Write(p)
}

// StatusCode returns the status written by the handler, 200 if it wrote none.
func (b *bufferedResponse) StatusCode() int {
	if !b.wroteHeader {
		return http.StatusOK
	}
	return b.status
}

func (b *bufferedResponse) successful() bool {
	s := b.StatusCode()
	return s >= 200 && s < 300
}

// flushTo copies the buffered response onto w, keeping headers already set on w.
func (b *bufferedResponse) flushTo(w http.ResponseWriter) {
	dst := w.Header()
	for k, vv := range b.header {
		dst[k] = append([]string(nil), vv...)
	}
	w.WriteHeader(b.StatusCode())
	_, _ = w.Write(b.body.Bytes())
}

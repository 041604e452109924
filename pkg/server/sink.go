package server

import (
	"errors"
	"net/http"
	"sync"

	"github.com/Suhaibinator/SRest/pkg/common"
)

// ErrResponseAlreadyWritten is returned when a flow tries to write a second response.
var ErrResponseAlreadyWritten = errors.New("server: response already written")

// flowWriter is the sink of one flow. The first Write goes to the transport;
// later writes are rejected. It may be written from any goroutine.
type flowWriter struct {
	w       http.ResponseWriter
	mu      sync.Mutex
	written bool
	status  int
	done    chan struct{}
}

func newFlowWriter(w http.ResponseWriter) *flowWriter {
	return &flowWriter{w: w, done: make(chan struct{})}
}

// Write implements common.Sink.
func (f *flowWriter) Write(resp *common.Response) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.written {
		return ErrResponseAlreadyWritten
	}
	f.written = true
	f.status = resp.StatusCode
	defer close(f.done)

	h := f.w.Header()
	for k, vs := range resp.Header {
		h[k] = append([]string(nil), vs...)
	}
	body, _ := resp.Body.([]byte)
	if len(body) > 0 && h.Get("Content-Type") == "" {
		h.Set("Content-Type", http.DetectContentType(body))
	}
	f.w.WriteHeader(resp.StatusCode)
	if len(body) > 0 {
		_, err := f.w.Write(body)
		return err
	}
	return nil
}

// abandon marks the flow as finished without writing, so that late writes
// from a handler still running are dropped.
func (f *flowWriter) abandon() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.written {
		f.written = true
		close(f.done)
	}
}

// writeStatus writes a plain-text error on behalf of the server, unless the
// flow has already written.
func (f *flowWriter) writeStatus(code int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.written {
		return false
	}
	f.written = true
	f.status = code
	close(f.done)
	http.Error(f.w, http.StatusText(code), code)
	return true
}

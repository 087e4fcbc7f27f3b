package server

import (
	"fmt"
	"net/http"
	"sync"
)

// StreamHandler serves the camera frames published by the game as MJPEG.
// Every viewer gets the newest frame; frames published while a viewer is
// still writing are skipped for that viewer.
type StreamHandler struct {
	mu      sync.Mutex
	frame   []byte
	seq     uint64
	notify  chan struct{}
	viewers int
	done    chan struct{}
	once    sync.Once
}

// NewStreamHandler creates a stream with no frame yet.
func NewStreamHandler() *StreamHandler {
	return &StreamHandler{
		notify: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// PublishFrame implements app.FrameSink.
func (h *StreamHandler) PublishFrame(jpeg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frame = jpeg
	h.seq++
	close(h.notify)
	h.notify = make(chan struct{})
}

// Watching reports whether any viewer is connected, so the game can skip
// encoding frames nobody sees.
func (h *StreamHandler) Watching() bool {
	return h.Viewers() > 0
}

// Viewers returns the number of connected stream viewers.
func (h *StreamHandler) Viewers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.viewers
}

// Close ends every stream.
func (h *StreamHandler) Close() {
	h.once.Do(func() { close(h.done) })
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	h.mu.Lock()
	h.viewers++
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		h.viewers--
		h.mu.Unlock()
	}()

	var sent uint64
	for {
		h.mu.Lock()
		frame, seq, wait := h.frame, h.seq, h.notify
		h.mu.Unlock()

		if frame != nil && seq != sent {
			if err := writePart(w, frame); err != nil {
				return
			}
			sent = seq
		}

		select {
		case <-r.Context().Done():
			return
		case <-h.done:
			return
		case <-wait:
		}
	}
}

func writePart(w http.ResponseWriter, frame []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame)); err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}
	if _, err := fmt.Fprint(w, "\r\n"); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

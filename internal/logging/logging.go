// Package logging configures the process-wide structured logger: a
// plain-text, timestamped line format written to a size-rotated file under
// the library root.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxSizeMB  = 5
	maxBackups = 3
	logDirName = ".slidemanager/logs"
	logFile    = "backend.log"
)

var initOnce sync.Once

// Init sets up the default slog logger to write to
// <libraryRoot>/.slidemanager/logs/backend.log, rotating at 5 MiB with 3
// backups kept, plus a copy to stderr. Safe to call more than once per
// process (e.g. "serve" and "worker" sharing init); later calls are no-ops.
func Init(libraryRoot string) error {
	var initErr error
	initOnce.Do(func() {
		dir := filepath.Join(libraryRoot, logDirName)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			initErr = fmt.Errorf("creating log directory: %w", err)
			return
		}

		rotator := &lumberjack.Logger{
			Filename:   filepath.Join(dir, logFile),
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
		}

		handler := newLineHandler(io.MultiWriter(rotator, os.Stderr))
		slog.SetDefault(slog.New(handler))
	})
	return initErr
}

// lineHandler renders records as "timestamp [LEVEL] name: message", the
// plain-text format backend.log carries.
type lineHandler struct {
	w     io.Writer
	mu    *sync.Mutex
	attrs []slog.Attr
}

func newLineHandler(w io.Writer) *lineHandler {
	return &lineHandler{w: w, mu: &sync.Mutex{}}
}

func (h *lineHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *lineHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	name := "slidemanager"
	msg := r.Message
	for _, a := range h.attrs {
		if a.Key == "logger" {
			name = a.Value.String()
		} else {
			msg += " " + a.String()
		}
	}
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "logger" {
			name = a.Value.String()
		} else {
			msg += " " + a.String()
		}
		return true
	})

	_, err := fmt.Fprintf(h.w, "%s [%s] %s: %s\n",
		r.Time.Format("2006-01-02 15:04:05,000"), r.Level.String(), name, msg)
	return err
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &lineHandler{w: h.w, mu: h.mu, attrs: append(append([]slog.Attr{}, h.attrs...), attrs...)}
}

func (h *lineHandler) WithGroup(string) slog.Handler { return h }

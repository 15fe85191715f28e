// Package replay records every round's event stream as a compressed
// JSONL file, one file per round, for postmortems and balancing.
package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Recorder writes one zstd-compressed JSONL file per round. A Recorder
// with an empty directory is disabled and drops everything silently,
// so the room loop never branches on configuration.
type Recorder struct {
	dir string

	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

// NewRecorder creates a recorder rooted at dir. Empty dir disables it.
func NewRecorder(dir string) *Recorder {
	return &Recorder{dir: dir}
}

// Enabled reports whether a directory is configured.
func (r *Recorder) Enabled() bool {
	return r != nil && r.dir != ""
}

// BeginRound closes the current file, if any, and opens a fresh one
// for the given room and round.
func (r *Recorder) BeginRound(roomCode string, round int) error {
	if !r.Enabled() {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return err
	}
	stamp := time.Now().UTC().Format("20060102-150405")
	path := filepath.Join(r.dir, fmt.Sprintf("%s-r%d-%s.jsonl.zst", roomCode, round, stamp))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	r.f = f
	r.enc = enc
	r.w = bufio.NewWriterSize(enc, 64*1024)
	return nil
}

// Write appends one JSONL entry to the current round file. Writes
// before BeginRound, or on a disabled recorder, are dropped.
func (r *Recorder) Write(v any) error {
	if !r.Enabled() {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.w == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := r.w.Write(b); err != nil {
		return err
	}
	if err := r.w.WriteByte('\n'); err != nil {
		return err
	}
	return r.w.Flush()
}

// Close flushes and closes the current round file.
func (r *Recorder) Close() error {
	if !r.Enabled() {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeLocked()
}

func (r *Recorder) closeLocked() error {
	var err1 error
	if r.w != nil {
		_ = r.w.Flush()
	}
	if r.enc != nil {
		err1 = r.enc.Close()
		r.enc = nil
	}
	if r.f != nil {
		_ = r.f.Close()
		r.f = nil
	}
	r.w = nil
	return err1
}

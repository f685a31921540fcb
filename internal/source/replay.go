package source

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

const maxReplayLine = 4 << 20

// Replay reads JSONL events from a recorded session file.
type Replay struct {
	path string
	// Speed scales gaze timestamps to wall time. Zero replays as fast as possible.
	Speed float64
}

// NewReplay creates a replay source for the file at path.
func NewReplay(path string, speed float64) *Replay {
	return &Replay{path: path, Speed: speed}
}

// Open opens the file and starts streaming its events.
func (r *Replay) Open(ctx context.Context) (Stream, error) {
	file, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open replay: %w", err)
	}
	return NewReaderStream(ctx, file, r.Speed), nil
}

// ReaderStream streams events decoded from JSONL input.
type ReaderStream struct {
	events chan Event
	done   chan struct{}
	closer io.Closer
	speed  float64

	once sync.Once
	mu   sync.Mutex
	err  error
}

// NewReaderStream starts decoding rd. Blank lines and lines starting with '#' are skipped.
func NewReaderStream(ctx context.Context, rd io.Reader, speed float64) *ReaderStream {
	s := &ReaderStream{
		events: make(chan Event),
		done:   make(chan struct{}),
		speed:  speed,
	}
	if c, ok := rd.(io.Closer); ok {
		s.closer = c
	}
	go s.readLoop(ctx, rd)
	return s
}

// Events returns the event channel.
func (s *ReaderStream) Events() <-chan Event {
	return s.events
}

// Err returns the error that ended the stream, if any.
func (s *ReaderStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops reading and releases the underlying reader.
func (s *ReaderStream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		if s.closer != nil {
			err = s.closer.Close()
		}
	})
	return err
}

func (s *ReaderStream) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *ReaderStream) readLoop(ctx context.Context, rd io.Reader) {
	defer close(s.events)

	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 64*1024), maxReplayLine)
	lineNo := 0
	var prevTs int64
	hasPrev := false
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		ev, err := Decode(line)
		if err != nil {
			s.setErr(fmt.Errorf("line %d: %w", lineNo, err))
			return
		}
		if ev.Kind == KindGaze && s.speed > 0 {
			if hasPrev && ev.Gaze.TimestampMs > prevTs {
				wait := time.Duration(float64(ev.Gaze.TimestampMs-prevTs)/s.speed) * time.Millisecond
				if !s.sleep(ctx, wait) {
					return
				}
			}
			prevTs = ev.Gaze.TimestampMs
			hasPrev = true
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		case <-ctx.Done():
			s.setErr(ctx.Err())
			return
		}
	}
	if err := scanner.Err(); err != nil {
		select {
		case <-s.done:
		default:
			s.setErr(fmt.Errorf("failed to read replay: %w", err))
		}
	}
}

func (s *ReaderStream) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-s.done:
		return false
	case <-ctx.Done():
		s.setErr(ctx.Err())
		return false
	}
}

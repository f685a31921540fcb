package session

import (
	"context"
	"fmt"
	"time"

	"github.com/verte-zerg/readaid/internal/source"
)

// tickInterval is how often the clock advances between gaze samples.
const tickInterval = 50 * time.Millisecond

// Run acquires the stream from src and processes its events in arrival order
// until the stream ends or ctx is done. Between samples the clock advances by
// the wall time elapsed since the last sample. Once the stream ends, Run waits
// for analysis calls already in flight.
func (s *Session) Run(ctx context.Context, src source.Source) error {
	stream, err := src.Open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil {
			// Best-effort release of the stream.
			_ = cerr
		}
	}()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	events := stream.Events()
	for events != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			s.HandleEvent(ev)
		case resp := <-s.responses:
			s.HandleResponse(resp)
		case <-s.dismissals:
			s.Dismiss()
		case snap := <-s.regionUpdates:
			s.HandleRegions(snap)
		case <-ticker.C:
			s.tick()
		}
	}

	if err := s.drain(ctx); err != nil {
		return err
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("stream failed: %w", err)
	}
	return nil
}

// HandleEvent routes one source event.
func (s *Session) HandleEvent(ev source.Event) {
	switch ev.Kind {
	case source.KindGaze:
		s.HandleGaze(ev.Gaze)
	case source.KindFace:
		s.HandleFace(ev.Face)
	case source.KindFaceFrame:
		s.HandleFaceFrame(ev.FaceFrame)
	case source.KindRegions:
		s.HandleRegions(ev.Regions)
	case source.KindDismiss:
		s.Dismiss()
	}
}

func (s *Session) tick() {
	if !s.hasSample {
		return
	}
	elapsed := s.wallNow().Sub(s.lastSampleAt).Milliseconds()
	s.Advance(s.lastSampleMs + elapsed)
}

func (s *Session) drain(ctx context.Context) error {
	for s.dispatcher.InFlight() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case resp := <-s.responses:
			s.HandleResponse(resp)
		}
	}
	return nil
}

package source

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMessage = 1 << 20
)

// ConnStream reads events from a WebSocket connection and writes updates back on it.
type ConnStream struct {
	conn   *websocket.Conn
	events chan Event
	done   chan struct{}
	logger zerolog.Logger

	writeMu sync.Mutex
	once    sync.Once
	mu      sync.Mutex
	err     error
}

// NewConnStream starts reading from an upgraded connection.
func NewConnStream(conn *websocket.Conn, logger zerolog.Logger) *ConnStream {
	s := &ConnStream{
		conn:   conn,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
		logger: logger.With().Str("component", "ws-stream").Logger(),
	}
	go s.readLoop()
	go s.pingLoop()
	return s
}

// Events returns the event channel.
func (s *ConnStream) Events() <-chan Event {
	return s.events
}

// Err returns the read error that ended the stream. A normal close reports nil.
func (s *ConnStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Send writes v as a JSON text message.
func (s *ConnStream) Send(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteJSON(v)
}

// Close sends a close frame and releases the connection.
func (s *ConnStream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		s.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if werr := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); werr != nil {
			// Best-effort close frame; peer may already be gone.
			_ = werr
		}
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}

func (s *ConnStream) readLoop() {
	defer close(s.events)

	s.conn.SetReadLimit(maxMessage)
	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.setErr(err)
		return
	}
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !s.closed() {
				s.setErr(err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		ev, err := Decode(data)
		if err != nil {
			s.logger.Warn().Err(err).Msg("dropping malformed message")
			continue
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}

func (s *ConnStream) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			s.writeMu.Unlock()
			if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
				s.logger.Debug().Err(err).Msg("ping failed")
				return
			}
		}
	}
}

func (s *ConnStream) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *ConnStream) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

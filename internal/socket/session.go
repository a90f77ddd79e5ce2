// Package socket runs a single-attempt WebSocket session: connect, send one
// JSON message, log whatever the server sends back and log how the
// connection ended. There is no reconnection; create a new Session to retry.
package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Defaults for the message sent on open.
const (
	DefaultAction = "audio-compression"
	DefaultData   = "hello world"

	closeWriteTimeout = 5 * time.Second
	closeReadTimeout  = 10 * time.Second
)

// State is the connection state of a Session.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	default:
		return "CLOSED"
	}
}

// Message is the payload sent once the connection is open.
type Message struct {
	Action string `json:"action"`
	Data   string `json:"data"`
}

// CloseEvent describes how the connection ended. WasClean is false when the
// connection dropped without a closing handshake (code 1006).
type CloseEvent struct {
	WasClean bool
	Code     int
	Reason   string
}

// Session is one WebSocket connection to a fixed URL.
type Session struct {
	url     string
	message Message
	dialer  *websocket.Dialer
	logger  zerolog.Logger
	state   atomic.Int32

	// closeWait bounds how long a cancelled session waits for the server's
	// close reply before dropping the connection.
	closeWait time.Duration
}

// NewSession creates a Session that will send msg to url. Nothing is dialed
// until Run.
func NewSession(url string, msg Message, logger zerolog.Logger) *Session {
	return &Session{
		url:       url,
		message:   msg,
		dialer:    websocket.DefaultDialer,
		logger:    logger,
		closeWait: closeReadTimeout,
	}
}

// State returns the current connection state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Run dials, sends the message and reads until the connection closes. It
// returns an error only when the connection could not be established or the
// message could not be sent; how the connection closed is reported in the
// CloseEvent and the log. Cancelling ctx starts a normal closing handshake.
func (s *Session) Run(ctx context.Context) (CloseEvent, error) {
	s.state.Store(int32(StateConnecting))

	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		s.state.Store(int32(StateClosed))
		s.logError(err)
		return CloseEvent{}, fmt.Errorf("dial %s: %w", s.url, err)
	}
	defer conn.Close()

	s.state.Store(int32(StateOpen))
	s.logger.Info().Str("url", s.url).Msg("[open] Connection established")

	payload, err := json.Marshal(s.message)
	if err != nil {
		return CloseEvent{}, fmt.Errorf("encode message: %w", err)
	}
	s.logger.Info().Msg("Sending to server")
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		s.state.Store(int32(StateClosed))
		s.logError(err)
		return CloseEvent{}, fmt.Errorf("send message: %w", err)
	}

	done := make(chan struct{})
	defer close(done)
	go s.closeOnCancel(ctx, conn, done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			ev := ClassifyClose(err)
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				s.logError(err)
			}
			s.state.Store(int32(StateClosed))
			s.LogClose(ev)
			return ev, nil
		}
		s.logger.Info().Msgf("[message] Data received from server: %s", data)
	}
}

// closeOnCancel starts the closing handshake when ctx is cancelled. The read
// loop owns every read method, so the wait for the server's reply is bounded
// by closing the connection rather than by a read deadline.
func (s *Session) closeOnCancel(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	select {
	case <-ctx.Done():
	case <-done:
		return
	}

	s.state.Store(int32(StateClosing))
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout)); err != nil {
		s.logger.Debug().Err(err).Msg("Close frame not sent")
	}

	timer := time.AfterFunc(s.closeWait, func() {
		s.logger.Debug().Dur("wait", s.closeWait).Msg("No close reply from server")
		conn.Close()
	})
	<-done
	timer.Stop()
}

// ClassifyClose turns the error that ended a read loop into a CloseEvent.
func ClassifyClose(err error) CloseEvent {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Code != websocket.CloseAbnormalClosure {
		return CloseEvent{WasClean: true, Code: closeErr.Code, Reason: closeErr.Text}
	}
	return CloseEvent{WasClean: false, Code: websocket.CloseAbnormalClosure}
}

// LogClose logs ev as a clean closure or as a dropped connection.
func (s *Session) LogClose(ev CloseEvent) {
	if ev.WasClean {
		s.logger.Info().
			Int("code", ev.Code).
			Str("reason", ev.Reason).
			Msgf("[close] Connection closed cleanly, code=%d reason=%s", ev.Code, ev.Reason)
		return
	}
	// Server process killed or network down; code is 1006.
	s.logger.Warn().Int("code", ev.Code).Msg("[close] Connection died")
}

func (s *Session) logError(err error) {
	s.logger.Error().Msgf("[error] %s", err.Error())
}

// Package stream subscribes to an account trade feed over websocket.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"walletledger/internal/logging"
)

const (
	DefaultURL    = "wss://pumpportal.fun/api/data"
	DefaultMethod = "subscribeAccountTrade"
)

// DisconnectError reports a session that was established and then dropped.
type DisconnectError struct {
	Session string
	Uptime  time.Duration
	Err     error
}

func (e *DisconnectError) Error() string {
	return fmt.Sprintf("stream session %s dropped after %s: %v", e.Session, e.Uptime.Round(time.Millisecond), e.Err)
}

func (e *DisconnectError) Unwrap() error { return e.Err }

// Handler receives every text frame of a session in arrival order.
type Handler func(ctx context.Context, payload []byte)

// Options configure the websocket client.
type Options struct {
	URL              string
	Method           string
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	Header           http.Header
}

// Monitor dials one websocket session per watched address.
type Monitor struct {
	opts   Options
	dialer *websocket.Dialer
	logger zerolog.Logger
}

// NewMonitor builds a Monitor.
func NewMonitor(opts Options, logger zerolog.Logger) *Monitor {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.Method == "" {
		opts.Method = DefaultMethod
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = opts.HandshakeTimeout

	return &Monitor{
		opts:   opts,
		dialer: &dialer,
		logger: logging.Component(logger, "stream"),
	}
}

type subscribeRequest struct {
	Method string   `json:"method"`
	Keys   []string `json:"keys"`
}

// Watch subscribes to address and feeds frames to handle until the session
// fails or ctx is cancelled. It always returns a non-nil error.
func (m *Monitor) Watch(ctx context.Context, alias, address string, handle Handler) error {
	session := uuid.NewString()
	log := m.logger.With().Str("alias", alias).Str("address", address).Str("session", session).Logger()

	conn, resp, err := m.dialer.DialContext(ctx, m.opts.URL, m.opts.Header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: status %d: %w", m.opts.URL, resp.StatusCode, err)
		}
		return fmt.Errorf("dial %s: %w", m.opts.URL, err)
	}
	connectedAt := time.Now()

	var closeOnce sync.Once
	closeConn := func() { closeOnce.Do(func() { _ = conn.Close() }) }
	defer closeConn()

	if err := conn.WriteJSON(subscribeRequest{Method: m.opts.Method, Keys: []string{address}}); err != nil {
		return fmt.Errorf("subscribe %s: %w", address, err)
	}
	log.Info().Msg("stream subscribed")

	readTimeout := 2 * m.opts.PingInterval
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	stop := make(chan struct{})
	defer close(stop)
	go m.keepAlive(ctx, conn, stop, closeConn, log)

	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				log.Info().Msg("stream closed")
				return ctx.Err()
			}
			return &DisconnectError{Session: session, Uptime: time.Since(connectedAt), Err: err}
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		if msgType != websocket.TextMessage {
			continue
		}
		if !json.Valid(payload) {
			log.Error().Str("payload", string(payload)).Msg("non-json frame skipped")
			continue
		}
		handle(ctx, payload)
	}
}

// keepAlive pings on a fixed period and closes the connection on cancellation
// so the blocked read returns.
func (m *Monitor) keepAlive(ctx context.Context, conn *websocket.Conn, stop <-chan struct{}, closeConn func(), log zerolog.Logger) {
	ticker := time.NewTicker(m.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			deadline := time.Now().Add(time.Second)
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
			closeConn()
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(m.opts.HandshakeTimeout)); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					log.Warn().Err(err).Msg("ping failed")
				}
			}
		}
	}
}

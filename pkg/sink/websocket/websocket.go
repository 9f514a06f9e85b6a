// Package websocket adapts gorilla/websocket into a streamgate.Sink. It
// dials out to a ws/wss URL and writes one binary frame per serialized
// event frame. Optional application-level ACK can be enabled via New's
// requireAck argument.
package websocket

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/streamgate/streamgate"
)

// Sink writes serialized event frames to a WebSocket connection.
type Sink struct {
	mu   sync.Mutex
	conn *websocket.Conn

	url               string
	headers           map[string]string
	subprotocols      []string
	connectTimeout    time.Duration
	writeTimeout      time.Duration
	heartbeatInterval time.Duration
	requireAck        bool
	tlsCfg            *tls.Config
	pinSHA256         string
	logger            streamgate.Logger

	dialer websocket.Dialer
}

// New creates a new WebSocket sink.
func New(url string, headers map[string]string, subprotocols []string, connectTimeout, writeTimeout, heartbeatInterval time.Duration, requireAck bool, logger streamgate.Logger) *Sink {
	d := websocket.Dialer{Subprotocols: subprotocols}
	return &Sink{
		url:               url,
		headers:           headers,
		subprotocols:      subprotocols,
		connectTimeout:    connectTimeout,
		writeTimeout:      writeTimeout,
		heartbeatInterval: heartbeatInterval,
		requireAck:        requireAck,
		dialer:            d,
		logger:            logger,
	}
}

// SetTLSConfig configures TLS options and optional certificate pinning.
func (s *Sink) SetTLSConfig(cfg *tls.Config, pinSHA256 string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tlsCfg = cfg
	s.pinSHA256 = pinSHA256
}

func (s *Sink) ensureConn(ctx context.Context) error {
	if s.conn != nil {
		return nil
	}
	hdr := http.Header{}
	for k, v := range s.headers {
		hdr.Set(k, v)
	}
	cctx, cancel := context.WithTimeout(ctx, s.connectTimeout)
	defer cancel()
	if s.tlsCfg != nil {
		s.dialer.TLSClientConfig = s.tlsCfg
	}
	c, _, err := s.dialer.DialContext(cctx, s.url, hdr)
	if err != nil {
		return fmt.Errorf("websocket sink: dial: %w", err)
	}
	if s.pinSHA256 != "" {
		if tc, ok := c.UnderlyingConn().(*tls.Conn); ok {
			st := tc.ConnectionState()
			if len(st.PeerCertificates) > 0 {
				sum := sha256.Sum256(st.PeerCertificates[0].Raw)
				got := base64.StdEncoding.EncodeToString(sum[:])
				if got != s.pinSHA256 {
					_ = c.Close()
					return errors.New("websocket sink: tls pin mismatch")
				}
			}
		}
	}
	s.conn = c
	return nil
}

func (s *Sink) OnEvent(ctx context.Context, port string, ev streamgate.Event, ser streamgate.Serializer, startNS int64) ([]streamgate.SinkReply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureConn(ctx); err != nil {
		return nil, err
	}

	frames, err := ser.SerializeForStream(ev.Payload, ev.IngestNS, ev.StreamID)
	if err != nil {
		return nil, fmt.Errorf("websocket sink: serialize: %w", err)
	}

	for _, f := range frames {
		if s.heartbeatInterval > 0 {
			_ = s.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(s.writeTimeout))
		}
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
		if err := s.conn.WriteMessage(websocket.BinaryMessage, f); err != nil {
			_ = s.conn.Close()
			s.conn = nil
			return nil, fmt.Errorf("websocket sink: write: %w", err)
		}

		if s.requireAck {
			if err := s.awaitAck(ev.EventID); err != nil {
				return nil, err
			}
		}
	}
	return nil, nil
}

func (s *Sink) awaitAck(eventID string) error {
	_ = s.conn.SetReadDeadline(time.Now().Add(s.writeTimeout))
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("websocket sink: read ack: %w", err)
	}
	var a struct {
		Ack   string `json:"ack"`
		Ok    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &a); err != nil {
		return fmt.Errorf("websocket sink: decode ack: %w", err)
	}
	if !a.Ok || strings.TrimSpace(a.Ack) != eventID {
		if a.Error != "" {
			return errors.New(a.Error)
		}
		return errors.New("websocket sink: ack failed or mismatched id")
	}
	return nil
}

func (s *Sink) OnSignal(ctx context.Context, sig streamgate.Signal, ser streamgate.Serializer) ([]streamgate.SinkReply, error) {
	return nil, nil
}

func (s *Sink) Metrics(timestamp int64) []streamgate.MetricsEvent { return nil }

func (s *Sink) OnStart(ctx context.Context) error  { return s.ensureConn(ctx) }
func (s *Sink) OnPause(ctx context.Context) error  { return nil }
func (s *Sink) OnResume(ctx context.Context) error { return nil }
func (s *Sink) OnStop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}
func (s *Sink) OnConnectionLost(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	return nil
}
func (s *Sink) OnConnectionEstablished(ctx context.Context) error { return s.ensureConn(ctx) }

func (s *Sink) AutoAck() bool      { return true }
func (s *Sink) Asynchronous() bool { return false }

// Ping writes a control ping frame, dialing first if necessary.
func (s *Sink) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		if err := s.ensureConn(ctx); err != nil {
			return err
		}
	}
	deadline := time.Now().Add(s.writeTimeout)
	return s.conn.WriteControl(websocket.PingMessage, []byte("ping"), deadline)
}

// Package mqtt adapts Eclipse Paho into a streamgate.Sink.
package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"strconv"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/streamgate/streamgate"
)

// Sink publishes serialized event frames to an MQTT topic.
type Sink struct {
	client paho.Client
	opts   *paho.ClientOptions
	topic  string
	qos    byte
	retain bool
	logger streamgate.Logger
}

// New creates a new MQTT sink. Expected config keys:
// broker_url (or url), topic, client_id, username, password (optional),
// qos (0|1|2, default 1), retain (default false), clean_session
// (default true), keepalive (duration or seconds),
// tls_insecure_skip_verify.
func New(cfg map[string]string, logger streamgate.Logger) (*Sink, error) {
	brokerURL := strings.TrimSpace(cfg["broker_url"])
	if brokerURL == "" {
		brokerURL = strings.TrimSpace(cfg["url"])
	}
	if brokerURL == "" {
		return nil, fmt.Errorf("mqtt sink: broker_url is required")
	}
	topic := strings.TrimSpace(cfg["topic"])
	if topic == "" {
		return nil, fmt.Errorf("mqtt sink: topic is required")
	}

	opts := paho.NewClientOptions().AddBroker(brokerURL)
	opts.SetClientID(strings.TrimSpace(cfg["client_id"]))
	if u := strings.TrimSpace(cfg["username"]); u != "" {
		opts.SetUsername(u)
		opts.SetPassword(cfg["password"])
	}

	cleanSession := true
	if v := strings.TrimSpace(cfg["clean_session"]); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cleanSession = b
		}
	}
	opts.SetCleanSession(cleanSession)

	keepAlive := 30 * time.Second
	if v := strings.TrimSpace(cfg["keepalive"]); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			keepAlive = d
		} else if n, err := strconv.Atoi(v); err == nil {
			keepAlive = time.Duration(n) * time.Second
		}
	}
	opts.SetKeepAlive(keepAlive)

	if strings.HasPrefix(brokerURL, "ssl://") || strings.HasPrefix(brokerURL, "tls://") || strings.HasPrefix(brokerURL, "wss://") {
		tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
		if roots, err := x509.SystemCertPool(); err == nil && roots != nil {
			tlsCfg.RootCAs = roots
		}
		if v := strings.TrimSpace(cfg["tls_insecure_skip_verify"]); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				tlsCfg.InsecureSkipVerify = b
			}
		}
		opts.SetTLSConfig(tlsCfg)
	}

	qos := byte(1)
	if v := strings.TrimSpace(cfg["qos"]); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 2 {
			qos = byte(n)
		}
	}

	retain := false
	if v := strings.TrimSpace(cfg["retain"]); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			retain = b
		}
	}

	return &Sink{opts: opts, topic: topic, qos: qos, retain: retain, logger: logger}, nil
}

func (s *Sink) ensureClient(ctx context.Context) error {
	if s.client != nil && s.client.IsConnectionOpen() {
		return nil
	}
	c := paho.NewClient(s.opts)
	token := c.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return fmt.Errorf("mqtt sink: connect timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt sink: connect failed: %w", err)
	}
	s.client = c
	return nil
}

func (s *Sink) OnEvent(ctx context.Context, port string, ev streamgate.Event, ser streamgate.Serializer, startNS int64) ([]streamgate.SinkReply, error) {
	if err := s.ensureClient(ctx); err != nil {
		return nil, err
	}
	frames, err := ser.SerializeForStream(ev.Payload, ev.IngestNS, ev.StreamID)
	if err != nil {
		return nil, fmt.Errorf("mqtt sink: serialize: %w", err)
	}
	for _, f := range frames {
		token := s.client.Publish(s.topic, s.qos, s.retain, f)
		done := make(chan struct{})
		go func() {
			token.Wait()
			close(done)
		}()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-done:
			if err := token.Error(); err != nil {
				return nil, fmt.Errorf("mqtt sink: publish failed: %w", err)
			}
		}
	}
	return nil, nil
}

func (s *Sink) OnSignal(ctx context.Context, sig streamgate.Signal, ser streamgate.Serializer) ([]streamgate.SinkReply, error) {
	return nil, nil
}

func (s *Sink) Metrics(timestamp int64) []streamgate.MetricsEvent { return nil }

func (s *Sink) OnStart(ctx context.Context) error { return s.ensureClient(ctx) }
func (s *Sink) OnPause(ctx context.Context) error { return nil }
func (s *Sink) OnResume(ctx context.Context) error { return nil }
func (s *Sink) OnStop(ctx context.Context) error {
	if s.client != nil {
		s.client.Disconnect(250)
		s.client = nil
	}
	return nil
}
func (s *Sink) OnConnectionLost(ctx context.Context) error        { return nil }
func (s *Sink) OnConnectionEstablished(ctx context.Context) error { return s.ensureClient(ctx) }

func (s *Sink) AutoAck() bool      { return true }
func (s *Sink) Asynchronous() bool { return false }

// Ping ensures the client is connected.
func (s *Sink) Ping(ctx context.Context) error {
	return s.ensureClient(ctx)
}

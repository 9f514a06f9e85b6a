// Command connectord runs one connector sink: it loads a YAML config,
// wires the configured pkg/sink/* implementation into a sinkmanager.Manager,
// optionally joins the Raft-backed cluster control plane, and serves
// /health and /metrics until it receives SIGINT/SIGTERM.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/streamgate/streamgate"
	"github.com/streamgate/streamgate/internal/cluster"
	"github.com/streamgate/streamgate/internal/config"
	"github.com/streamgate/streamgate/internal/observability"
	"github.com/streamgate/streamgate/internal/sinkmanager"
	"github.com/streamgate/streamgate/internal/version"
	"github.com/streamgate/streamgate/pkg/sink/file"
	httpsink "github.com/streamgate/streamgate/pkg/sink/http"
	"github.com/streamgate/streamgate/pkg/sink/kafka"
	"github.com/streamgate/streamgate/pkg/sink/mqtt"
	"github.com/streamgate/streamgate/pkg/sink/nats"
	"github.com/streamgate/streamgate/pkg/sink/rabbitmq"
	"github.com/streamgate/streamgate/pkg/sink/redis"
	"github.com/streamgate/streamgate/pkg/sink/s3"
	"github.com/streamgate/streamgate/pkg/sink/stdout"
	"github.com/streamgate/streamgate/pkg/sink/websocket"
)

func main() {
	configPath := flag.String("config", "connector.yaml", "path to the connector's YAML configuration")
	httpAddr := flag.String("http-addr", ":9090", "address to serve /health and /metrics on")
	versionFlag := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("connectord %s\n", version.Version)
		return
	}

	if v := os.Getenv("STREAMGATE_CONFIG"); v != "" && *configPath == "connector.yaml" {
		*configPath = v
	}
	if v := os.Getenv("STREAMGATE_HTTP_ADDR"); v != "" && *httpAddr == ":9090" {
		*httpAddr = v
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connectord: %v\n", err)
		os.Exit(1)
	}

	if cfg.Observability.LogSampleN > 1 {
		os.Setenv("STREAMGATE_LOG_SAMPLE_N", strconv.Itoa(cfg.Observability.LogSampleN))
	}
	logger := sinkmanager.NewDefaultLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitOTLP(ctx, cfg.Observability.OTLP)
	if err != nil {
		logger.Error("otlp init failed", "err", err)
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	sink, err := buildSink(ctx, cfg.Sink, logger)
	if err != nil {
		logger.Error("build sink failed", "err", err)
		os.Exit(1)
	}

	mgr, err := sinkmanager.New(sinkmanager.Config{
		ConnectorID:       cfg.Connector.ID,
		QSize:             cfg.Connector.QSize,
		Codec:             cfg.Serializer.Codec,
		CodecConfig:       cfg.Serializer.CodecConfig,
		Postprocessors:    cfg.Serializer.Postprocessors,
		MetricsIntervalNS: cfg.Connector.MetricsIntervalNS,
	}, sink, logger)
	if err != nil {
		logger.Error("sink manager init failed", "err", err)
		os.Exit(1)
	}

	var meshMgr *cluster.MeshManager
	var node *cluster.Node
	if cfg.Cluster.Enabled {
		meshMgr = cluster.NewMeshManager(logger)
		node, err = cluster.NewNode(cluster.NodeConfig{
			NodeID:    cfg.Cluster.NodeID,
			BindAddr:  cfg.Cluster.BindAddr,
			DataDir:   cfg.Cluster.DataDir,
			Bootstrap: cfg.Cluster.Bootstrap,
			Logger:    logger,
		})
		if err != nil {
			logger.Error("cluster node init failed", "err", err)
			os.Exit(1)
		}
		defer node.Shutdown()
		for _, addr := range cfg.Cluster.Join {
			meshMgr.Register(cluster.Member{ID: addr, Endpoint: addr, Status: "joining"})
		}
	}

	go mgr.Run(ctx)

	srv := newHTTPServer(*httpAddr, mgr, node, meshMgr, logger)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", "err", err)
		}
	}()

	logger.Info("connectord started", "connector_id", cfg.Connector.ID, "sink_type", cfg.Sink.Type)

	<-ctx.Done()
	logger.Info("connectord shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)

	drainReply := make(chan streamgate.SinkDrained, 1)
	mgr.Inbox() <- sinkmanager.SinkMsg{Kind: sinkmanager.MsgDrain, DrainReply: drainReply}
	select {
	case <-drainReply:
	case <-time.After(cfg.Connector.DrainTimeout):
	}
	mgr.Inbox() <- sinkmanager.SinkMsg{Kind: sinkmanager.MsgStop}
}

// buildSink constructs the concrete streamgate.Sink named by cfg.Type,
// reading its settings from cfg.Settings. Unknown types fail fast.
func buildSink(ctx context.Context, cfg config.SinkConfig, logger streamgate.Logger) (streamgate.Sink, error) {
	s := cfg.Settings
	switch strings.ToLower(cfg.Type) {
	case "stdout":
		return stdout.New(logger), nil
	case "kafka":
		brokers := strings.Split(s["brokers"], ",")
		return kafka.New(brokers, s["topic"], s["username"], s["password"], logger), nil
	case "redis":
		return redis.New(s["addr"], s["password"], s["stream"], logger), nil
	case "nats":
		return nats.New(s["url"], s["subject"], s["username"], s["password"], s["token"], logger)
	case "rabbitmq-queue":
		return rabbitmq.NewQueueSink(s["url"], s["queue"], logger)
	case "rabbitmq-stream":
		return rabbitmq.NewStreamSink(s["url"], s["stream"], logger)
	case "mqtt":
		return mqtt.New(s, logger)
	case "s3":
		return s3.New(ctx, s["region"], s["bucket"], s["key_prefix"], s["access_key"], s["secret_key"], s["endpoint"], s["suffix"], s["content_type"], logger)
	case "http":
		return httpsink.New(s["url"], headersFromSettings(s), logger), nil
	case "websocket":
		connectTimeout := durationOr(s["connect_timeout"], 5*time.Second)
		writeTimeout := durationOr(s["write_timeout"], 5*time.Second)
		heartbeat := durationOr(s["heartbeat_interval"], 0)
		requireAck := s["require_ack"] == "true"
		return websocket.New(s["url"], headersFromSettings(s), nil, connectTimeout, writeTimeout, heartbeat, requireAck, logger), nil
	case "file":
		return file.New(s["path"], logger)
	case "failover":
		return nil, fmt.Errorf("sink: failover must be composed programmatically, not via type=failover")
	default:
		return nil, fmt.Errorf("sink: unknown type %q", cfg.Type)
	}
}

func headersFromSettings(s map[string]string) map[string]string {
	headers := make(map[string]string)
	for k, v := range s {
		if strings.HasPrefix(k, "header_") {
			headers[strings.TrimPrefix(k, "header_")] = v
		}
	}
	return headers
}

func durationOr(v string, fallback time.Duration) time.Duration {
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// newHTTPServer exposes operational endpoints: health, Prometheus
// metrics, and the mesh receive hook sibling clusters POST events to.
func newHTTPServer(addr string, mgr *sinkmanager.Manager, node *cluster.Node, mesh *cluster.MeshManager, logger streamgate.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	if node != nil {
		mux.HandleFunc("GET /api/cluster/members", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(mesh.Members())
		})
	}

	mux.HandleFunc("POST /api/mesh/receive", func(w http.ResponseWriter, r *http.Request) {
		var ev streamgate.Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		select {
		case mgr.Inbox() <- sinkmanager.SinkMsg{Kind: sinkmanager.MsgEvent, Port: sinkmanager.PortIn, Event: ev}:
			w.WriteHeader(http.StatusAccepted)
		default:
			http.Error(w, "sink inbox full", http.StatusServiceUnavailable)
		}
	})

	return &http.Server{Addr: addr, Handler: mux}
}

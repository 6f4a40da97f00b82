// Package server orchestrates all components: NATS client, bridge, traffic journal, HTTP health.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/bridgekit/internal/config"
	"github.com/morezero/bridgekit/internal/demo"
	"github.com/morezero/bridgekit/pkg/bridge"
	"github.com/morezero/bridgekit/pkg/commsutil"
	"github.com/morezero/bridgekit/pkg/events"
	"github.com/morezero/bridgekit/pkg/journal"
	"github.com/morezero/bridgekit/pkg/luaruntime"
)

const logPrefix = "server:server"

// connChecker is the part of *comms.Conn used by health checks.
type connChecker interface {
	IsConnected() bool
}

// trafficStore is the part of *journal.Journal used by HTTP handlers.
type trafficStore interface {
	Recent(ctx context.Context, params journal.RecentParams) ([]events.TrafficEvent, error)
	Ping(ctx context.Context) error
}

// Server is the bridgekit host orchestrator.
type Server struct {
	cfg        *config.Config
	conn       connChecker
	bridge     *bridge.Bridge
	journal    trafficStore
	httpServer *http.Server
}

// SetupLogging installs the default slog handler for level.
func SetupLogging(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

// BridgeOptions maps configuration onto bridge options.
func BridgeOptions(cfg *config.Config, publisher events.Publisher) []bridge.Option {
	opts := []bridge.Option{
		bridge.WithErrorTopic(cfg.ErrorTopic),
		bridge.WithEventName(cfg.EventName),
		bridge.WithEvaluationTimeout(cfg.EvalTimeout),
		bridge.WithPublishTimeout(cfg.PublishTimeout),
		bridge.WithPublisher(publisher),
	}
	if cfg.ScriptFlavor == config.ScriptLua {
		opts = append(opts, bridge.WithScriptBuilder(luaruntime.Script))
	} else {
		opts = append(opts, bridge.WithScriptBuilder(bridge.JavaScriptEvent))
	}
	return opts
}

// Run starts the server, blocks until shutdown signal, then cleans up.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	SetupLogging(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("%s - Starting bridgekit", logPrefix))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &Server{cfg: cfg}

	// Step 1: Connect to NATS
	nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName)
	if err != nil {
		return fmt.Errorf("%s - failed to connect to NATS: %w", logPrefix, err)
	}
	s.conn = nc
	slog.Info(fmt.Sprintf("%s - Connected to NATS at %s", logPrefix, cfg.COMMSURL))

	// Step 2: Traffic publishers (COMMS always, journal when configured)
	publishers := events.MultiPublisher{
		events.NewCommsPublisher(nc, &events.CommsPublisherOpts{TrafficSubject: cfg.TrafficSubject}),
	}
	var closePool func()
	if cfg.JournalEnabled() {
		pool, err := journal.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			nc.Close()
			return fmt.Errorf("%s - failed to connect to database: %w", logPrefix, err)
		}
		if err := journal.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			nc.Close()
			return fmt.Errorf("%s - failed to ensure journal schema: %w", logPrefix, err)
		}
		j := journal.New(pool)
		s.journal = j
		publishers = append(publishers, j)
		closePool = pool.Close
		slog.Info(fmt.Sprintf("%s - Traffic journal enabled", logPrefix))
	}

	// Step 3: Bridge over the evaluate subject, with the demo page handlers
	evaluator := commsutil.NewEvaluator(nc, cfg.EvalSubject, cfg.EvalTimeout)
	s.bridge = bridge.New(evaluator, BridgeOptions(cfg, publishers)...)
	host := demo.NewHost(s.bridge)
	go drainHost(ctx, host)

	// Step 4: Remote messages arrive on the inbound subject
	sub, err := commsutil.SubscribeIntake(nc, cfg.InboundSubject, s.bridge.HandleReceived)
	if err != nil {
		s.close(nc, closePool)
		return err
	}
	slog.Info(fmt.Sprintf("%s - Subscribed to %s", logPrefix, sub.Subject))

	// Step 5: Start HTTP server
	httpAddr := fmt.Sprintf(":%d", cfg.HTTPPort)
	s.httpServer = &http.Server{Addr: httpAddr, Handler: s.routes()}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP server listening on %s", logPrefix, httpAddr))
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()

	slog.Info(fmt.Sprintf("%s - Bridgekit is ready", logPrefix))

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	// Graceful shutdown
	sub.Unsubscribe()
	s.httpServer.Shutdown(ctx)
	cancel()
	s.close(nc, closePool)

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}

func (s *Server) close(nc *comms.Conn, closePool func()) {
	nc.Drain()
	if closePool != nil {
		closePool()
	}
}

// drainHost keeps the demo host buffers empty; the handlers already log each event.
func drainHost(ctx context.Context, host *demo.Host) {
	for {
		select {
		case <-host.Alerts():
		case <-host.Replies():
		case <-ctx.Done():
			return
		}
	}
}

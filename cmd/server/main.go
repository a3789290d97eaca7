package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/ivanzxc/go-realtime-vitals/internal/config"
	"github.com/ivanzxc/go-realtime-vitals/internal/hub"
	"github.com/ivanzxc/go-realtime-vitals/internal/log"
	"github.com/ivanzxc/go-realtime-vitals/internal/stream"
)

type options struct {
	natsURL  string
	prefix   string
	logLevel string
	addr     string
	web      string
	grace    time.Duration
}

// envelopeTypes maps forwarded subject kinds to websocket envelope types.
var envelopeTypes = map[stream.Kind]string{
	stream.KindSnapshots: hub.TypeSnapshot,
	stream.KindAlerts:    hub.TypeAlert,
	stream.KindSummary:   hub.TypeSummary,
}

func main() {
	cfg := config.Load()
	opts := options{}

	root := &cobra.Command{
		Use:   "server",
		Short: "Serve session snapshots and alerts to dashboards over websocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Init(opts.logLevel)
			return run(cmd.Context(), opts)
		},
		SilenceUsage: true,
	}

	f := root.Flags()
	f.StringVar(&opts.natsURL, "nats", cfg.NATSURL, "NATS url")
	f.StringVar(&opts.prefix, "prefix", cfg.SubjectPrefix, "subject prefix")
	f.StringVar(&opts.logLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	f.StringVar(&opts.addr, "addr", cfg.HTTPAddr, "http address")
	f.StringVar(&opts.web, "web", "./web", "static dashboard directory")
	f.DurationVar(&opts.grace, "grace", cfg.ShutdownGrace, "graceful shutdown timeout")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	nc, err := stream.Connect(opts.natsURL, "server")
	if err != nil {
		return err
	}
	defer nc.Drain()

	subjects := stream.NewSubjects(opts.prefix)
	logger := log.With("component", "server")

	h := hub.New(func(session string, payload json.RawMessage) error {
		if session == "" {
			return errors.New("control without session")
		}
		c, err := stream.ParseControl(payload)
		if err != nil {
			return err
		}
		return stream.PublishJSON(nc, subjects.For(stream.KindControl, session), c)
	})

	for kind := range envelopeTypes {
		sub, err := nc.Subscribe(subjects.All(kind), func(msg *nats.Msg) {
			kind, id, err := subjects.Parse(msg.Subject)
			if err != nil {
				logger.Warn("bad subject", "error", err)
				return
			}
			h.Publish(envelopeTypes[kind], id, msg.Data)
		})
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", kind, err)
		}
		defer sub.Unsubscribe()
	}

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.Dir(opts.web)))
	mux.Handle("/ws", h)
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "messages %d\nclients %d\n", h.Sent(), h.Clients())
	})

	server := &http.Server{Addr: opts.addr, Handler: mux}
	errs := make(chan error, 1)
	go func() {
		logger.Info("server running", "addr", opts.addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdown, cancel := context.WithTimeout(context.Background(), opts.grace)
	defer cancel()
	if err := server.Shutdown(shutdown); err != nil {
		logger.Warn("shutdown incomplete", "error", err)
	}
	logger.Info("server stopped")
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/ivanzxc/go-realtime-vitals/internal/alert"
	"github.com/ivanzxc/go-realtime-vitals/internal/config"
	"github.com/ivanzxc/go-realtime-vitals/internal/log"
	"github.com/ivanzxc/go-realtime-vitals/internal/session"
	"github.com/ivanzxc/go-realtime-vitals/internal/stream"
)

type options struct {
	natsURL  string
	prefix   string
	logLevel string
	tuning   string
}

func main() {
	cfg := config.Load()
	opts := options{}

	root := &cobra.Command{
		Use:   "processor",
		Short: "Run rPPG and fatigue analysis for every session publishing frames",
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
	f.StringVar(&opts.tuning, "tuning", cfg.TuningFile, "YAML engine tuning file")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	tuning, err := config.LoadTuning(opts.tuning)
	if err != nil {
		return err
	}

	nc, err := stream.Connect(opts.natsURL, "processor")
	if err != nil {
		return err
	}
	defer nc.Drain()

	subjects := stream.NewSubjects(opts.prefix)
	sink := alert.Fanout{alert.NewLogSink(), alert.NewNATSSink(nc, subjects)}
	manager := session.NewManager(tuning.Session, tuning.Engines(), nc, subjects, sink)
	logger := log.With("component", "processor")

	frames, err := nc.Subscribe(subjects.All(stream.KindFrames), func(msg *nats.Msg) {
		b, err := stream.DecodeBatch(msg.Data)
		if err != nil {
			logger.Warn("bad frame batch", "subject", msg.Subject, "error", err)
			return
		}
		if err := manager.HandleBatch(b); err != nil {
			logger.Warn("batch rejected", "subject", msg.Subject, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe frames: %w", err)
	}
	defer frames.Unsubscribe()

	controls, err := nc.Subscribe(subjects.All(stream.KindControl), func(msg *nats.Msg) {
		_, id, err := subjects.Parse(msg.Subject)
		if err != nil {
			logger.Warn("bad control subject", "error", err)
			return
		}
		c, err := stream.ParseControl(msg.Data)
		if err != nil {
			logger.Warn("bad control", "session", id, "error", err)
			return
		}
		if err := manager.Control(id, c); err != nil {
			logger.Warn("control failed", "session", id, "action", c.Action, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe controls: %w", err)
	}
	defer controls.Unsubscribe()

	logger.Info("processor running", "frames", subjects.All(stream.KindFrames), "tuning", opts.tuning)
	manager.Run(ctx)
	logger.Info("processor stopped")
	return nil
}

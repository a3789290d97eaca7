package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ivanzxc/go-realtime-vitals/internal/capture"
	"github.com/ivanzxc/go-realtime-vitals/internal/config"
	"github.com/ivanzxc/go-realtime-vitals/internal/log"
	sim "github.com/ivanzxc/go-realtime-vitals/internal/signal"
	"github.com/ivanzxc/go-realtime-vitals/internal/stream"
)

type options struct {
	natsURL  string
	prefix   string
	logLevel string
	session  string
	source   string
	device   string
	cascade  string
	fps      float64
	batch    int
	duration time.Duration
	drowsy   bool
	heart    float64
}

func main() {
	cfg := config.Load()
	opts := options{}

	root := &cobra.Command{
		Use:   "producer",
		Short: "Capture frames and publish ROI colour means and facial metrics to NATS",
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
	f.StringVar(&opts.session, "session", "", "session id (default: random UUID)")
	f.StringVarP(&opts.source, "source", "s", "sim", "frame source: sim or webcam")
	f.StringVar(&opts.device, "device", "0", "webcam index or stream URL")
	f.StringVar(&opts.cascade, "cascade", "", "Haar cascade XML for webcam face detection")
	f.Float64Var(&opts.fps, "fps", 30, "frame rate")
	f.IntVarP(&opts.batch, "batch", "b", cfg.BatchSize, "frames per message")
	f.DurationVarP(&opts.duration, "duration", "d", 0, "stop after this much footage (0: until interrupted)")
	f.BoolVar(&opts.drowsy, "drowsy", false, "simulate a drowsy subject")
	f.Float64Var(&opts.heart, "hr", 72, "simulated heart rate in BPM")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openSource(opts options) (capture.Source, error) {
	switch opts.source {
	case "sim":
		subject := sim.DefaultSubject()
		if opts.drowsy {
			subject = sim.DrowsySubject()
		}
		subject.HeartRate = opts.heart
		subject.FPS = opts.fps

		simOpts := []capture.SimOption{capture.Realtime()}
		if opts.duration > 0 {
			simOpts = append(simOpts, capture.Limit(opts.duration))
		}
		return capture.NewSim(subject, simOpts...), nil
	case "webcam":
		return capture.OpenWebcam(capture.WebcamConfig{
			Device:      opts.device,
			CascadePath: opts.cascade,
			FPS:         opts.fps,
		})
	}
	return nil, fmt.Errorf("unknown source %q", opts.source)
}

func run(ctx context.Context, opts options) error {
	nc, err := stream.Connect(opts.natsURL, "producer")
	if err != nil {
		return err
	}
	defer nc.Drain()

	src, err := openSource(opts)
	if err != nil {
		return err
	}
	defer src.Close()

	id := opts.session
	if id == "" {
		id = uuid.NewString()
	}
	subjects := stream.NewSubjects(opts.prefix)
	frames := subjects.For(stream.KindFrames, id)
	logger := log.With("component", "producer", "session", id)
	logger.Info("producer started", "source", opts.source, "subject", frames, "fps", src.FPS())

	var (
		framer  capture.Framer
		batcher = stream.NewBatcher(id, src.FPS(), opts.batch)
		sent    int
		dropped int
	)
	publish := func(b stream.FrameBatch) {
		if err := stream.PublishBatch(nc, frames, b); err != nil {
			logger.Warn("publish failed", "seq", b.Seq, "error", err)
			return
		}
		sent++
	}

	for {
		c, err := src.Read(ctx)
		if err != nil {
			if !errors.Is(err, capture.ErrSourceClosed) && ctx.Err() == nil {
				return fmt.Errorf("read frame: %w", err)
			}
			break
		}
		f, ok := framer.Frame(c)
		if !ok {
			dropped++
			continue
		}
		if b, ok := batcher.Add(f); ok {
			publish(b)
		}
	}

	if b, ok := batcher.Flush(); ok {
		publish(b)
	}
	if err := stream.PublishJSON(nc, subjects.For(stream.KindControl, id), stream.Control{Action: stream.ActionEnd}); err != nil {
		logger.Warn("end control not sent", "error", err)
	}
	logger.Info("producer stopping", "batches", sent, "dropped_frames", dropped)
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ivanzxc/go-realtime-vitals/internal/config"
	"github.com/ivanzxc/go-realtime-vitals/internal/log"
)

func main() {
	cfg := config.Load()
	opts := options{}
	var (
		logLevel string
		asJSON   bool
	)

	root := &cobra.Command{
		Use:   "replay",
		Short: "Run a simulated session through the analysis engines and print its summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Init(logLevel)
			rep, err := replay(cmd.Context(), opts, os.Stderr)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			rep.print(os.Stdout)
			return nil
		},
		SilenceUsage: true,
	}

	f := root.Flags()
	f.StringVar(&logLevel, "log-level", "warn", "debug, info, warn or error")
	f.StringVar(&opts.tuning, "tuning", cfg.TuningFile, "YAML engine tuning file")
	f.StringVar(&opts.session, "session", "", "session id (default: random UUID)")
	f.DurationVarP(&opts.duration, "duration", "d", 2*time.Minute, "footage to simulate")
	f.BoolVar(&opts.drowsy, "drowsy", false, "simulate a drowsy subject")
	f.Float64Var(&opts.heart, "hr", 72, "simulated heart rate in BPM")
	f.IntVar(&opts.width, "width", 160, "frame width")
	f.IntVar(&opts.height, "height", 120, "frame height")
	f.IntVarP(&opts.batch, "batch", "b", cfg.BatchSize, "frames per batch")
	f.BoolVar(&asJSON, "json", false, "print the report as JSON")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

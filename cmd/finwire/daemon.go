package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func daemonCmd() *cobra.Command {
	var fetchInterval time.Duration

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the fetch loop and generation scheduler until stopped",
		Long: `Continuously poll sources and run scheduled agent pipelines.
Designed for running inside a Docker container or as a background service.
Handles SIGINT/SIGTERM for graceful shutdown (finishes the current stage).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

			engine, err := newEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			log.Printf("finwire daemon: starting (fetch every %s)", fetchInterval)

			// Scheduler runs in its own goroutine; ticks are driven by the
			// config file's scheduler settings.
			schedDone := make(chan struct{})
			go func() {
				defer close(schedDone)
				engine.RunDaemon(ctx)
			}()

			// Fetch loop runs here.
			cycle := 1
			for {
				start := time.Now()
				if result, err := engine.FetchAllSources(ctx); err != nil {
					log.Printf("finwire daemon: fetch cycle %d error: %v", cycle, err)
				} else {
					log.Printf("finwire daemon: fetch cycle %d stored %d articles in %s",
						cycle, result.NewArticles, time.Since(start).Round(time.Millisecond))
				}
				cycle++

				// Wait for the next tick or a shutdown signal.
				timer := time.NewTimer(fetchInterval)
				select {
				case <-sig:
					timer.Stop()
					log.Println("finwire daemon: received shutdown signal, exiting")
					cancel()
					<-schedDone
					return nil
				case <-timer.C:
				}
			}
		},
	}

	cmd.Flags().DurationVarP(&fetchInterval, "interval", "i", 15*time.Minute, "duration between fetch cycles (e.g. 5m, 30s, 1h)")
	return cmd
}

package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/breathe/internal/demoapps"
	"github.com/newtron-network/breathe/pkg/config"
	"github.com/newtron-network/breathe/pkg/counters"
	"github.com/newtron-network/breathe/pkg/engine"
	"github.com/newtron-network/breathe/pkg/loader"
	"github.com/newtron-network/breathe/pkg/timeline"
	"github.com/newtron-network/breathe/pkg/util"
)

func newRunCmd() *cobra.Command {
	var (
		watch          bool
		hz             int
		busywait       bool
		tolerant       bool
		duration       time.Duration
		redisAddr      string
		redisPrefix    string
		measureLatency bool
	)

	cmd := &cobra.Command{
		Use:   "run <config.yaml>",
		Short: "Run an engine against a configuration file",
		Long: `Run loads a YAML app/link configuration, starts an engine, and
drives it to completion (or until interrupted with SIGINT/SIGTERM).

With --watch, the configuration file is reloaded on every write and
applied as a live reconfiguration without restarting the process.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setLogLevel()
			path := args[0]

			registry := demoapps.Registry()
			cfg, err := loader.Load(path, registry)
			if err != nil {
				return fmt.Errorf("breathectl: %w", err)
			}

			opts := engine.DefaultOptions()
			opts.Hz = hz
			opts.Busywait = busywait
			opts.Tolerant = tolerant
			opts.Timeline = timeline.New(timeline.LogrusSink{})
			if redisAddr != "" {
				opts.CounterSink = counters.NewRedisSink(redisAddr, redisPrefix)
			}

			e := engine.New(opts)
			if err := e.Configure(cfg); err != nil {
				return fmt.Errorf("breathectl: initial configure: %w", err)
			}

			var changesCh <-chan *config.Configuration
			if watch {
				w, err := loader.NewWatcher(path, registry)
				if err != nil {
					return fmt.Errorf("breathectl: %w", err)
				}
				defer w.Close()

				var errsCh <-chan error
				changesCh, errsCh = w.Watch()
				go func() {
					for err := range errsCh {
						util.Logger.Warnf("breathectl: watch: %v", err)
					}
				}()
			}

			stopping := int32(0)
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				util.Logger.Info("breathectl: shutting down")
				atomic.StoreInt32(&stopping, 1)
			}()

			// An Engine permits exactly one calling goroutine, so a
			// reloaded configuration is applied here, on Main's own
			// breath-loop goroutine, rather than from the watch
			// goroutine directly.
			done := func() bool {
				if changesCh != nil {
					select {
					case newCfg := <-changesCh:
						if err := e.Configure(newCfg); err != nil {
							util.Logger.Warnf("breathectl: reconfigure: %v", err)
						} else {
							util.Logger.Info("breathectl: applied reconfiguration")
						}
					default:
					}
				}
				return atomic.LoadInt32(&stopping) != 0
			}

			return e.Main(engine.MainOptions{
				Done:           done,
				Duration:       duration,
				MeasureLatency: measureLatency,
			})
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "reload configuration on change")
	cmd.Flags().IntVar(&hz, "hz", 0, "fixed breath frequency (0 selects adaptive pacing)")
	cmd.Flags().BoolVar(&busywait, "busywait", false, "disable pacing entirely")
	cmd.Flags().BoolVar(&tolerant, "tolerant", false, "contain app panics instead of aborting")
	cmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long (0 runs until interrupted)")
	cmd.Flags().StringVar(&redisAddr, "redis", "", "Redis address for external counter mirror")
	cmd.Flags().StringVar(&redisPrefix, "redis-prefix", "", "key prefix for the Redis counter mirror")
	cmd.Flags().BoolVar(&measureLatency, "measure-latency", false, "record a per-breath latency histogram")

	return cmd
}

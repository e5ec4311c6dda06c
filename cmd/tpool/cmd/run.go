package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tahsin716/tpool"
	"github.com/tahsin716/tpool/errsink"
	"github.com/tahsin716/tpool/internal/cli"
	"github.com/tahsin716/tpool/internal/config"
)

const metricsShutdownTimeout = 5 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Spawn workers, push a batch of sleeping tasks, then stop and join.",
	Long: `Spawn workers, push a batch of sleeping tasks, then stop and join.

Task i sleeps base-delay + i*step and prints "Iteration #i". Without
--drain the pool is stopped right after the last push, so tasks still
queued at that point never run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := applyRunFlags(cmd, cfg); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var (
			reg     *prometheus.Registry
			metrics *tpool.Metrics
		)
		if cfg.MetricsAddr != "" {
			reg = prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector())

			var err error
			if metrics, err = tpool.NewMetrics("tpool", reg); err != nil {
				return err
			}
		}

		g, gctx := errgroup.WithContext(ctx)
		done := make(chan struct{})

		if reg != nil {
			srv := &http.Server{
				Addr:              cfg.MetricsAddr,
				Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
				ReadHeaderTimeout: 5 * time.Second,
			}
			g.Go(func() error {
				logger.Info("serving metrics", zap.String("addr", cfg.MetricsAddr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("metrics server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				select {
				case <-gctx.Done():
				case <-done:
				}
				shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
		}

		g.Go(func() error {
			defer close(done)

			stats, err := runWorkload(gctx, cfg, console, logger, metrics)
			printSummary(console, stats)
			if ctxErr := ctx.Err(); ctxErr != nil {
				console.Warn("Interrupted")
				return errors.Join(err, ctxErr)
			}
			return err
		})

		return g.Wait()
	},
}

// runWorkload drives one pool through its whole lifecycle and returns the
// final stats together with the collected task failures.
func runWorkload(ctx context.Context, cfg *config.Config, console *cli.Console, logger *zap.Logger, metrics *tpool.Metrics) (tpool.Stats, error) {
	base, step, err := cfg.Delays()
	if err != nil {
		return tpool.Stats{}, err
	}
	mode, err := errsink.ParseErrorMode(cfg.ErrorMode)
	if err != nil {
		return tpool.Stats{}, err
	}
	poolOpts, err := cfg.PoolOptions()
	if err != nil {
		return tpool.Stats{}, err
	}

	workCtx, cancelWork := context.WithCancel(ctx)
	defer cancelWork()

	var pool *tpool.Pool
	sinkOpts := []errsink.Option{errsink.WithErrorMode(mode)}
	if mode == errsink.FailFast {
		sinkOpts = append(sinkOpts, errsink.WithOnFirstError(func(err error) {
			console.Error("Stopping after first failure: %v", err)
			pool.Stop()
			cancelWork()
		}))
	}
	sink := errsink.New(sinkOpts...)

	poolOpts = append(poolOpts,
		tpool.WithLogger(logger),
		tpool.WithMetrics(metrics),
		tpool.WithErrorHandler(func(err error) {
			logger.Warn("task failed", zap.Error(err))
			sink.Handle(err)
		}),
	)

	pool, err = tpool.New(poolOpts...)
	if err != nil {
		return tpool.Stats{}, err
	}

	if err := pool.Spawn(cfg.Concurrency); err != nil {
		return pool.Stats(), err
	}
	console.Info("Spawned %d workers", cfg.Concurrency)

	var wg sync.WaitGroup
	for i := 0; i < cfg.Runs; i++ {
		i := i // per-iteration copy (go directive < 1.22)
		delay := base + time.Duration(i)*step
		fail := cfg.FailEvery > 0 && (i+1)%cfg.FailEvery == 0

		wg.Add(1)
		task := func() error {
			defer wg.Done()

			select {
			case <-time.After(delay):
			case <-workCtx.Done():
				return workCtx.Err()
			}

			console.Info("Iteration #%d", i)
			if fail {
				return fmt.Errorf("iteration %d: simulated failure", i)
			}
			return nil
		}
		if err := pool.PushTask(task); err != nil {
			wg.Done()
			return pool.Stats(), err
		}
	}

	if cfg.Drain {
		drained := make(chan struct{})
		go func() {
			wg.Wait()
			close(drained)
		}()

		select {
		case <-drained:
		case <-workCtx.Done():
		}
	}

	pool.Stop()
	pool.Join()

	return pool.Stats(), sink.Err()
}

func printSummary(console *cli.Console, s tpool.Stats) {
	if s.Failed > 0 {
		console.Warn("%d of %d tasks failed", s.Failed, s.Submitted)
	}
	console.Success("Completed %s/%d tasks, %d never ran, avg %s, max %s",
		console.Bold.Sprint(s.Completed), s.Submitted, s.Pending,
		s.LatencyAvg.Round(time.Millisecond), s.LatencyMax.Round(time.Millisecond))
}

// applyRunFlags copies every explicitly set run flag over the loaded config.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()

	var err error
	set := func(name string, apply func() error) {
		if err == nil && f.Changed(name) {
			err = apply()
		}
	}

	set("concurrency", func() (e error) { cfg.Concurrency, e = f.GetInt("concurrency"); return })
	set("runs", func() (e error) { cfg.Runs, e = f.GetInt("runs"); return })
	set("base-delay", func() (e error) { cfg.BaseDelay, e = f.GetString("base-delay"); return })
	set("step", func() (e error) { cfg.Step, e = f.GetString("step"); return })
	set("drain", func() (e error) { cfg.Drain, e = f.GetBool("drain"); return })
	set("fail-every", func() (e error) { cfg.FailEvery, e = f.GetInt("fail-every"); return })
	set("poll-interval", func() (e error) { cfg.PollInterval, e = f.GetString("poll-interval"); return })
	set("stop-mode", func() (e error) { cfg.StopMode, e = f.GetString("stop-mode"); return })
	set("error-mode", func() (e error) { cfg.ErrorMode, e = f.GetString("error-mode"); return })
	set("lock-os-thread", func() (e error) { cfg.LockOSThread, e = f.GetBool("lock-os-thread"); return })
	set("metrics-addr", func() (e error) { cfg.MetricsAddr, e = f.GetString("metrics-addr"); return })
	if err != nil {
		return err
	}

	return cfg.Validate()
}

func init() {
	d := config.Default()
	f := runCmd.Flags()

	f.IntP("concurrency", "c", d.Concurrency, "number of workers to spawn")
	f.IntP("runs", "n", d.Runs, "number of tasks to push")
	f.String("base-delay", d.BaseDelay, "sleep of the first task")
	f.String("step", d.Step, "extra sleep added per task index")
	f.Bool("drain", d.Drain, "wait for every task to finish before stopping")
	f.Int("fail-every", d.FailEvery, "make every n-th task fail (0 disables)")
	f.String("poll-interval", d.PollInterval, "how long an idle worker waits before re-checking the stop flag")
	f.String("stop-mode", d.StopMode, "stop detection: poll or interrupt")
	f.String("error-mode", d.ErrorMode, "task failures: collect, fail-fast or ignore")
	f.Bool("lock-os-thread", d.LockOSThread, "pin each worker to its own OS thread")
	f.String("metrics-addr", d.MetricsAddr, "serve Prometheus metrics on this address, e.g. :9090")
}

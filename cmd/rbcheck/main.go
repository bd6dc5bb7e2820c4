// rbcheck soaks the red-black tree with randomized workloads and
// validates every invariant along the way.
//
//	rbcheck --shards 8 --ops 100000 --keyspace 4096 --log-level debug
//
// It exits with 1 on the first broken invariant of any shard.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap/zapcore"

	"github.com/benz9527/xcoll/xlog"
)

func main() {
	cfg := soakConfig{}
	fs := pflag.NewFlagSet("rbcheck", pflag.ExitOnError)
	cfg.bindFlags(fs)
	_ = fs.Parse(os.Args[1:])
	if err := cfg.validate(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	os.Exit(runApp(newApp(cfg, xlog.StdErr)))
}

func newApp(cfg soakConfig, writer xlog.LogOutWriterType) *fx.App {
	return fx.New(
		fx.Supply(cfg),
		fx.Provide(
			func(cfg soakConfig) xlog.XLogger {
				return xlog.NewXLogger(
					xlog.WithXLoggerLevel(xlog.ParseLogLevel(cfg.logLevel)),
					xlog.WithXLoggerEncoder(xlog.PlainText),
					xlog.WithXLoggerWriter(writer),
				)
			},
			newWorkerPool,
			newSoakRunner,
		),
		fx.WithLogger(func(logger xlog.XLogger) fxevent.Logger {
			return xlog.NewFxXLogger(logger)
		}),
		fx.Invoke(setMaxProcs, registerSoak),
	)
}

func runApp(app *fx.App) int {
	if err := app.Err(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		return 2
	}

	startCtx, cancel := context.WithTimeout(context.Background(), app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return 1
	}

	sig := <-app.Wait()
	stopCtx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancel()
	if err := app.Stop(stopCtx); err != nil && sig.ExitCode == 0 {
		return 1
	}
	return sig.ExitCode
}

func setMaxProcs(lc fx.Lifecycle, logger xlog.XLogger) error {
	undo, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logger.Logf(zapcore.InfoLevel, format, args...)
	}))
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			undo()
			return nil
		},
	})
	return nil
}

func newWorkerPool(lc fx.Lifecycle, cfg soakConfig, logger xlog.XLogger) (*ants.Pool, error) {
	pool, err := ants.NewPool(cfg.poolSize,
		ants.WithPreAlloc(true),
		ants.WithLogger(xlog.NewAntsXLogger(logger)),
	)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return pool.ReleaseTimeout(3 * time.Second)
		},
	})
	return pool, nil
}

// registerSoak runs the soak in background once the app is started and
// shuts the app down with the soak result as exit code.
func registerSoak(lc fx.Lifecycle, sd fx.Shutdowner, runner *soakRunner, logger xlog.XLogger) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				code := 0
				if err := runner.runAndReport(ctx); err != nil {
					logger.ErrorStack(err, "[rbcheck] soak failed")
					code = 1
				}
				_ = logger.Sync()
				_ = sd.Shutdown(fx.ExitCode(code))
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}

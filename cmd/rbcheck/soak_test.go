package main

import (
	"context"
	"testing"

	"github.com/panjf2000/ants/v2"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/benz9527/xcoll/lib/id"
	"github.com/benz9527/xcoll/xlog"
)

func testSoakConfig() soakConfig {
	return soakConfig{
		shards:     4,
		ops:        2000,
		keySpace:   256,
		seed:       42,
		checkEvery: 1,
		joinEvery:  100,
		poolSize:   2,
		logLevel:   "error",
	}
}

func TestSoakConfig_Flags(t *testing.T) {
	cfg := soakConfig{}
	fs := pflag.NewFlagSet("rbcheck", pflag.ContinueOnError)
	cfg.bindFlags(fs)
	require.NoError(t, fs.Parse([]string{"-s", "3", "--ops=10", "-k", "64", "--join-every", "0", "--log-level", "debug"}))
	require.NoError(t, cfg.validate())
	require.Equal(t, 3, cfg.shards)
	require.Equal(t, 10, cfg.ops)
	require.Equal(t, uint64(64), cfg.keySpace)
	require.Equal(t, 0, cfg.joinEvery)
	require.Equal(t, 1, cfg.checkEvery)
	require.Equal(t, 3, cfg.poolSize)
	require.NotZero(t, cfg.seed)
	require.Equal(t, "debug", cfg.logLevel)
}

func TestSoakConfig_Validate(t *testing.T) {
	testcases := []struct {
		name   string
		modify func(cfg *soakConfig)
	}{
		{"no shards", func(cfg *soakConfig) { cfg.shards = 0 }},
		{"negative ops", func(cfg *soakConfig) { cfg.ops = -1 }},
		{"empty keyspace", func(cfg *soakConfig) { cfg.keySpace = 0 }},
		{"zero check interval", func(cfg *soakConfig) { cfg.checkEvery = 0 }},
		{"negative join interval", func(cfg *soakConfig) { cfg.joinEvery = -1 }},
		{"negative workers", func(cfg *soakConfig) { cfg.poolSize = -1 }},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(tt *testing.T) {
			cfg := testSoakConfig()
			tc.modify(&cfg)
			require.Error(tt, cfg.validate())
		})
	}
}

func TestShard_Run(t *testing.T) {
	cfg := testSoakConfig()
	s := newShard(1, cfg, nil, nil)
	require.NoError(t, s.run(context.Background()))
	require.Equal(t, int64(cfg.ops+1), s.report.checks)
	require.Positive(t, s.report.inserted)
	require.Positive(t, s.report.removed)
	require.Positive(t, s.report.joined+s.report.duplicates)
	require.True(t, s.tree.IsEmpty())
	require.Empty(t, s.shadow)
	require.GreaterOrEqual(t, s.report.disposed, s.report.size)
}

func TestShard_Sequential(t *testing.T) {
	cfg := testSoakConfig()
	seq := id.MonotonicNonZeroID(1 << 20)
	s := newShard(2, cfg, nil, seq)
	require.NoError(t, s.run(context.Background()))
	require.Positive(t, s.report.inserted)
	require.Positive(t, s.report.removed)
	require.Greater(t, s.lastKey, uint64(1<<20))
	require.Greater(t, seq.Number(), s.lastKey)
}

func TestShard_Deterministic(t *testing.T) {
	cfg := testSoakConfig()
	a, b := newShard(3, cfg, nil, nil), newShard(3, cfg, nil, nil)
	require.NoError(t, a.run(context.Background()))
	require.NoError(t, b.run(context.Background()))
	require.Equal(t, a.report, b.report)
}

func TestShard_Interrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := newShard(0, testSoakConfig(), nil, nil)
	err := s.run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSoakRunner_Run(t *testing.T) {
	cfg := testSoakConfig()
	logger := xlog.NewXLogger(
		xlog.WithXLoggerLevel(xlog.LogLevelError),
		xlog.WithXLoggerWriter(xlog.StdErr),
	)
	pool, err := ants.NewPool(cfg.poolSize, ants.WithLogger(xlog.NewAntsXLogger(logger)))
	require.NoError(t, err)
	defer pool.Release()

	reports, err := newSoakRunner(cfg, pool, logger).run(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, cfg.shards)
	for id, report := range reports {
		require.Equal(t, id, report.id)
		require.Equal(t, int64(cfg.ops+1), report.checks)
	}
	require.NoError(t, newSoakRunner(cfg, pool, logger).runAndReport(context.Background()))
}

func TestSoakRunner_ClosedPool(t *testing.T) {
	cfg := testSoakConfig()
	logger := xlog.NewXLogger(
		xlog.WithXLoggerLevel(xlog.LogLevelError),
		xlog.WithXLoggerWriter(xlog.StdErr),
	)
	pool, err := ants.NewPool(cfg.poolSize)
	require.NoError(t, err)
	pool.Release()

	_, err = newSoakRunner(cfg, pool, logger).run(context.Background())
	require.ErrorIs(t, err, ants.ErrPoolClosed)
}

func TestRunApp(t *testing.T) {
	cfg := testSoakConfig()
	cfg.ops = 500
	require.Equal(t, 0, runApp(newApp(cfg, xlog.StdErr)))

	cfg.sequential = true
	require.Equal(t, 0, runApp(newApp(cfg, xlog.StdErr)))
}

package main

import (
	"context"
	"fmt"
	randv2 "math/rand/v2"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/samber/lo"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/benz9527/xcoll/lib/id"
	"github.com/benz9527/xcoll/lib/infra"
	"github.com/benz9527/xcoll/lib/tree"
	"github.com/benz9527/xcoll/xlog"
)

type soakConfig struct {
	shards     int
	ops        int
	keySpace   uint64
	seed       uint64
	checkEvery int
	joinEvery  int
	poolSize   int
	sequential bool
	logLevel   string
}

func (cfg *soakConfig) bindFlags(fs *pflag.FlagSet) {
	fs.IntVarP(&cfg.shards, "shards", "s", 8, "number of independent trees")
	fs.IntVarP(&cfg.ops, "ops", "n", 10_000, "operations per shard")
	fs.Uint64VarP(&cfg.keySpace, "keyspace", "k", 4096, "keys are drawn from [0, keyspace)")
	fs.Uint64Var(&cfg.seed, "seed", 0, "random seed, 0 picks one")
	fs.IntVar(&cfg.checkEvery, "check-every", 1, "validate the invariants every N operations")
	fs.IntVar(&cfg.joinEvery, "join-every", 500, "join a random tree every N operations, 0 disables")
	fs.IntVar(&cfg.poolSize, "workers", 0, "worker pool size, 0 means one worker per shard")
	fs.BoolVar(&cfg.sequential, "sequential", false, "insert ascending keys shared by all the shards")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "debug, info, warn or error")
}

func (cfg *soakConfig) validate() error {
	if cfg.shards <= 0 {
		return infra.NewErrorStack("[rbcheck] shards must be positive")
	}
	if cfg.ops < 0 {
		return infra.NewErrorStack("[rbcheck] ops must not be negative")
	}
	if cfg.keySpace == 0 {
		return infra.NewErrorStack("[rbcheck] keyspace must be positive")
	}
	if cfg.checkEvery <= 0 {
		return infra.NewErrorStack("[rbcheck] check-every must be positive")
	}
	if cfg.joinEvery < 0 {
		return infra.NewErrorStack("[rbcheck] join-every must not be negative")
	}
	if cfg.poolSize < 0 {
		return infra.NewErrorStack("[rbcheck] workers must not be negative")
	}
	if cfg.poolSize == 0 {
		cfg.poolSize = cfg.shards
	}
	if cfg.seed == 0 {
		cfg.seed = randv2.Uint64()
	}
	return nil
}

type shardReport struct {
	id         int
	inserted   int64
	removed    int64
	joined     int64
	duplicates int64
	checks     int64
	disposed   int64
	size       int64
}

// shard drives one tree and mirrors every operation into a plain map.
type shard struct {
	cfg     soakConfig
	rng     *randv2.Rand
	seq     id.Generator
	lastKey uint64
	tree    tree.RBTree[uint64, uint64]
	shadow  map[uint64]uint64
	report  shardReport
}

// newShard draws the inserted keys from seq if not nil, so the tree
// only grows at its right edge. Otherwise, the keys are uniformly
// drawn from the key space.
func newShard(shardID int, cfg soakConfig, logger xlog.XLogger, seq id.Generator) *shard {
	s := &shard{
		cfg:    cfg,
		rng:    randv2.New(randv2.NewPCG(cfg.seed, uint64(shardID))),
		seq:    seq,
		shadow: make(map[uint64]uint64, cfg.keySpace),
		report: shardReport{id: shardID},
	}
	opts := []tree.RBTreeOpt[uint64, uint64]{
		tree.WithRBTreeDestructor[uint64, uint64](func(uint64, uint64) error {
			s.report.disposed++
			return nil
		}),
	}
	if logger != nil {
		opts = append(opts, tree.WithRBTreeLogger[uint64, uint64](logger))
	}
	s.tree = tree.NewRBTree[uint64, uint64](opts...)
	return s
}

func (s *shard) errorf(format string, args ...any) error {
	return infra.NewErrorStack(fmt.Sprintf("[rbcheck] shard %d: ", s.report.id) + fmt.Sprintf(format, args...))
}

func (s *shard) run(ctx context.Context) error {
	for i := 0; i < s.cfg.ops; i++ {
		if err := ctx.Err(); err != nil {
			return infra.WrapErrorStackWithMessage(err, fmt.Sprintf("[rbcheck] shard %d interrupted", s.report.id))
		}
		if err := s.step(i); err != nil {
			return err
		}
		if (i+1)%s.cfg.checkEvery == 0 {
			if err := s.check(); err != nil {
				return err
			}
		}
	}
	if err := s.check(); err != nil {
		return err
	}
	s.report.size = s.tree.Len()
	return s.release()
}

func (s *shard) insertKey() uint64 {
	if s.seq == nil {
		return s.rng.Uint64N(s.cfg.keySpace)
	}
	s.lastKey = s.seq.Number()
	return s.lastKey
}

// probeKey is a key probably present in the tree.
func (s *shard) probeKey() uint64 {
	if s.seq == nil {
		return s.rng.Uint64N(s.cfg.keySpace)
	}
	if s.lastKey == 0 {
		return 0
	}
	return s.lastKey - s.rng.Uint64N(min(s.lastKey, s.cfg.keySpace))
}

func (s *shard) step(i int) error {
	if s.cfg.joinEvery > 0 && (i+1)%s.cfg.joinEvery == 0 {
		return s.join()
	}

	switch p := s.rng.IntN(100); {
	case p < 55:
		key, val := s.insertKey(), s.rng.Uint64()
		_, exists := s.shadow[key]
		if created := s.tree.Insert(key, val); created == exists {
			return s.errorf("insert %d created %t, but present %t", key, created, exists)
		}
		s.shadow[key] = val
		if !exists {
			s.report.inserted++
		}
	case p < 92:
		key := s.probeKey()
		_, exists := s.shadow[key]
		if removed := s.tree.Remove(key); removed != exists {
			return s.errorf("remove %d returned %t, but present %t", key, removed, exists)
		}
		if exists {
			delete(s.shadow, key)
			s.report.removed++
		}
	default:
		node, ok := s.tree.RemoveMin()
		if ok != (len(s.shadow) > 0) {
			return s.errorf("remove min returned %t with %d shadow keys", ok, len(s.shadow))
		}
		if !ok {
			return nil
		}
		if expected := lo.Min(lo.Keys(s.shadow)); node.Key() != expected || node.Val() != s.shadow[expected] {
			return s.errorf("remove min returned %d, expected %d", node.Key(), expected)
		}
		delete(s.shadow, node.Key())
		s.report.removed++
	}
	return nil
}

func (s *shard) join() error {
	srcDisposed := int64(0)
	src := tree.NewRBTree[uint64, uint64](tree.WithRBTreeDestructor[uint64, uint64](func(uint64, uint64) error {
		srcDisposed++
		return nil
	}))
	keys := lo.Uniq(lo.Times(s.rng.IntN(32)+1, func(int) uint64 {
		return s.probeKey()
	}))
	for _, key := range keys {
		src.Insert(key, ^key)
	}
	fresh := lo.Filter(keys, func(key uint64, _ int) bool {
		_, exists := s.shadow[key]
		return !exists
	})

	added, err := tree.JoinE[uint64, uint64](s.tree, src)
	if err != nil {
		return infra.WrapErrorStackWithMessage(err, fmt.Sprintf("[rbcheck] shard %d join", s.report.id))
	}
	if added != int64(len(fresh)) {
		return s.errorf("join added %d, expected %d", added, len(fresh))
	}
	if dups := int64(len(keys) - len(fresh)); srcDisposed != dups {
		return s.errorf("join disposed %d duplicates, expected %d", srcDisposed, dups)
	}
	if !src.IsEmpty() {
		return s.errorf("join left %d elements in the source", src.Len())
	}
	for _, key := range fresh {
		s.shadow[key] = ^key
	}
	s.report.joined += added
	s.report.duplicates += srcDisposed
	return nil
}

func (s *shard) check() error {
	s.report.checks++
	err := multierr.Combine(
		tree.RedViolationValidate[uint64, uint64](s.tree),
		tree.BlackViolationValidate[uint64, uint64](s.tree),
		tree.OrderViolationValidate[uint64, uint64](s.tree),
		tree.SizeViolationValidate[uint64, uint64](s.tree),
	)
	if err != nil {
		return infra.WrapErrorStackWithMessage(err, fmt.Sprintf("[rbcheck] shard %d invariants", s.report.id))
	}
	if s.tree.Len() != int64(len(s.shadow)) {
		return s.errorf("size %d, expected %d", s.tree.Len(), len(s.shadow))
	}
	s.tree.Foreach(func(_ int64, _ tree.RBColor, key uint64, val uint64) bool {
		if expected, ok := s.shadow[key]; !ok || expected != val {
			err = s.errorf("unexpected element {%d : %d}", key, val)
			return false
		}
		return true
	})
	return err
}

func (s *shard) release() error {
	expected := s.report.disposed + s.tree.Len()
	if err := s.tree.Release(); err != nil {
		return err
	}
	if s.report.disposed != expected {
		return s.errorf("release disposed %d, expected %d", s.report.disposed, expected)
	}
	clear(s.shadow)
	return nil
}

type soakRunner struct {
	cfg    soakConfig
	pool   *ants.Pool
	logger xlog.XLogger
}

func newSoakRunner(cfg soakConfig, pool *ants.Pool, logger xlog.XLogger) *soakRunner {
	return &soakRunner{
		cfg:    cfg,
		pool:   pool,
		logger: logger,
	}
}

// run submits every shard to the pool and waits for all of them.
// The shard failures are combined into one error.
func (r *soakRunner) run(ctx context.Context) ([]shardReport, error) {
	var (
		wg      sync.WaitGroup
		lock    sync.Mutex
		err     error
		reports = make([]shardReport, r.cfg.shards)
	)
	appendErr := func(e error) {
		lock.Lock()
		err = multierr.Append(err, e)
		lock.Unlock()
	}

	var seq id.Generator
	if r.cfg.sequential {
		seq = id.MonotonicNonZeroID(0)
	}
	for shardID := 0; shardID < r.cfg.shards; shardID++ {
		s := newShard(shardID, r.cfg, r.logger, seq)
		wg.Add(1)
		if submitErr := r.pool.Submit(func() {
			defer wg.Done()
			runErr := s.run(ctx)
			reports[s.report.id] = s.report
			if runErr != nil {
				appendErr(runErr)
			}
		}); submitErr != nil {
			wg.Done()
			appendErr(infra.WrapErrorStackWithMessage(submitErr, fmt.Sprintf("[rbcheck] shard %d submit", shardID)))
		}
	}
	wg.Wait()
	return reports, err
}

func (r *soakRunner) runAndReport(ctx context.Context) error {
	r.logger.Info("[rbcheck] soak started",
		zap.Int("shards", r.cfg.shards),
		zap.Int("ops", r.cfg.ops),
		zap.Uint64("keyspace", r.cfg.keySpace),
		zap.Uint64("seed", r.cfg.seed),
		zap.Int("workers", r.cfg.poolSize),
		zap.Bool("sequential", r.cfg.sequential),
	)
	reports, err := r.run(ctx)
	for _, report := range reports {
		r.logger.Debug("[rbcheck] shard finished",
			zap.Int("shard", report.id),
			zap.Int64("inserted", report.inserted),
			zap.Int64("removed", report.removed),
			zap.Int64("joined", report.joined),
			zap.Int64("duplicates", report.duplicates),
			zap.Int64("checks", report.checks),
			zap.Int64("disposed", report.disposed),
			zap.Int64("size", report.size),
		)
	}
	if err != nil {
		return err
	}
	r.logger.Info("[rbcheck] soak passed",
		zap.Int64("checks", lo.SumBy(reports, func(report shardReport) int64 {
			return report.checks
		})),
		zap.Int64("joined", lo.SumBy(reports, func(report shardReport) int64 {
			return report.joined
		})),
	)
	return nil
}

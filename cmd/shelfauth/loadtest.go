package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	mrand "math/rand"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/shelfauth"
	"github.com/MrEthical07/shelfauth/identity"
)

type sessionState struct {
	access  string
	refresh string
	mu      sync.Mutex
}

type loadtestOptions struct {
	subjects    int
	concurrency int
	ops         int
	redisAddr   string
}

var loadtestOpts loadtestOptions

var loadtestCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "Measure authenticate and refresh throughput against Redis",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLoadtest(cmd.Context(), cmd.OutOrStdout(), loadtestOpts)
	},
}

func init() {
	rootCmd.AddCommand(loadtestCmd)

	f := loadtestCmd.Flags()
	f.IntVar(&loadtestOpts.subjects, "subjects", 10000, "number of sessions to seed")
	f.IntVar(&loadtestOpts.concurrency, "concurrency", 256, "number of concurrent workers")
	f.IntVar(&loadtestOpts.ops, "ops", 200000, "operations per phase (authenticate + refresh)")
	f.StringVar(&loadtestOpts.redisAddr, "redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
}

// loadVerifier accepts "load:<sub>" so logins never leave the process.
var loadVerifier = identity.VerifierFunc(func(_ context.Context, raw string) (identity.Principal, error) {
	sub, ok := strings.CutPrefix(raw, "load:")
	if !ok || sub == "" {
		return identity.Principal{}, identity.ErrInvalidAssertion
	}
	return identity.Principal{SubjectID: sub, Email: sub + "@load.test", DisplayName: sub}, nil
})

func runLoadtest(ctx context.Context, out io.Writer, opts loadtestOptions) error {
	if opts.subjects <= 0 || opts.concurrency <= 0 || opts.ops <= 0 {
		return errors.New("subjects, concurrency, and ops must be > 0")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	addr := opts.redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("failed to start miniredis: %w", err)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Fprintf(out, "using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Fprintf(out, "using redis at %s\n", addr)
	}
	defer cleanup()

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return err
	}
	cfg := shelfauth.DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = secret
	cfg.Identity.ClientID = "loadtest"
	cfg.Cache.KeyPrefix = "shelf:loadtest:"

	engine, err := shelfauth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithVerifier(loadVerifier).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	states := make([]sessionState, opts.subjects)
	fmt.Fprintf(out, "seeding %d sessions...\n", opts.subjects)
	startSeed := time.Now()
	for i := range states {
		sess, err := engine.Login(ctx, fmt.Sprintf("load:u%d", i))
		if err != nil {
			return fmt.Errorf("seed login failed: %w", err)
		}
		states[i].access = sess.AccessToken
		states[i].refresh = sess.RefreshToken
	}
	fmt.Fprintf(out, "seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	authStats := runAuthenticatePhase(ctx, engine, states, opts.ops, opts.concurrency)
	refreshStats := runRefreshPhase(ctx, engine, states, opts.ops, opts.concurrency)

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "authenticate", authStats)
	printStats(out, "refresh", refreshStats)
	return nil
}

func runAuthenticatePhase(ctx context.Context, engine *shelfauth.Engine, states []sessionState, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := mrand.New(mrand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				state := &states[r.Intn(len(states))]
				state.mu.Lock()
				token := state.access
				state.mu.Unlock()

				t0 := time.Now()
				_, err := engine.Authenticate(ctx, token)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

func runRefreshPhase(ctx context.Context, engine *shelfauth.Engine, states []sessionState, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := mrand.New(mrand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				state := &states[r.Intn(len(states))]

				state.mu.Lock()
				t0 := time.Now()
				sess, err := engine.Refresh(ctx, state.refresh)
				d := time.Since(t0)
				if err == nil {
					state.refresh = sess.RefreshToken
					state.access = sess.AccessToken
				} else {
					atomic.AddInt64(&failures, 1)
				}
				state.mu.Unlock()

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(out io.Writer, name string, s phaseStats) {
	fmt.Fprintf(out, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

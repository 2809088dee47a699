// Command sessiontrust-loadtest measures the Redis token store under concurrent
// lookups and per-account rotations. It uses miniredis unless -redis-addr or
// REDIS_ADDR names a server.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/sessiontrust/session"
)

type accountState struct {
	id    string
	value string
	mu    sync.Mutex
}

func main() {
	var (
		accounts    = flag.Int("accounts", 10000, "number of accounts to seed with one active token each")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase (lookup + rotate)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "st", "token key prefix")
	)
	flag.Parse()

	if *accounts <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "accounts, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var cleanup func()
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		cleanup = mr.Close
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		cleanup = func() {}
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer client.Close()

	store := session.NewRedisStore(client, *prefix)

	states := make([]accountState, *accounts)
	fmt.Printf("seeding %d tokens...\n", *accounts)
	startSeed := time.Now()
	for i := range states {
		states[i].id = uuid.NewString()
		states[i].value = uuid.NewString()
		if err := store.Save(ctx, newToken(states[i].id, states[i].value)); err != nil {
			fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	lookupStats := runPhase(*ops, *concurrency, len(states), func(idx int) error {
		s := &states[idx]
		s.mu.Lock()
		hash := session.HashValue(s.value)
		s.mu.Unlock()
		_, err := store.ByHash(ctx, hash)
		return err
	})
	rotateStats := runPhase(*ops, *concurrency, len(states), func(idx int) error {
		s := &states[idx]
		s.mu.Lock()
		defer s.mu.Unlock()
		next := uuid.NewString()
		if _, err := store.Rotate(ctx, newToken(s.id, next)); err != nil {
			return err
		}
		s.value = next
		return nil
	})

	fmt.Println("---- results ----")
	printStats("lookup", lookupStats)
	printStats("rotate", rotateStats)
}

func newToken(accountID, value string) session.Token {
	now := time.Now()
	return session.NewBearer(uuid.NewString(), accountID, value, now, now.Add(24*time.Hour))
}

// runPhase spreads ops calls of op over concurrency workers, each picking a
// random account index.
func runPhase(ops, concurrency, n int, op func(idx int) error) phaseStats {
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
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				if int(atomic.AddInt64(&cursor, 1)) > ops {
					return
				}
				t0 := time.Now()
				err := op(r.Intn(n))
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
	return computeStats(time.Since(start), latencies, failures)
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
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
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

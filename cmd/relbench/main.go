package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/d60-Lab/chirper/config"
	"github.com/d60-Lab/chirper/internal/app"
	"github.com/d60-Lab/chirper/internal/model"
	"github.com/d60-Lab/chirper/internal/repository"
	"github.com/d60-Lab/chirper/internal/service"
	"github.com/d60-Lab/chirper/pkg/cache"
	"github.com/d60-Lab/chirper/pkg/database"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func envInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// pct 取分位数
func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	xs := append([]time.Duration(nil), vs...)
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
	k := int(math.Ceil(p*float64(len(xs)))) - 1
	if k < 0 {
		k = 0
	}
	if k >= len(xs) {
		k = len(xs) - 1
	}
	return xs[k]
}

// 压测：N 个用户并发关注同一个大 V，统计写入延迟、outbox 落地延迟以及粉丝列表 / 检索的查询延迟
func main() {
	cfg := must(config.Load())
	stores := must(database.Open(cfg))
	defer stores.Close()
	if err := stores.Migrate(); err != nil {
		panic(err)
	}
	client := cache.NewRedis(cfg.Redis)
	defer client.Close()
	a := app.New(cfg, stores, cache.New(client))

	N := envInt("N", 10000)
	CONC := envInt("CONC", 8)
	PAGE := envInt("PAGE", 50)
	ctx := context.Background()

	run := uuid.NewString()[:8]
	signup := func(i int) *model.User {
		name := fmt.Sprintf("b%s_%d", run, i)
		return must(a.Users.Create(ctx, service.CreateUserRequest{Username: name, Email: name + "@example.com", Name: name}))
	}
	celeb := signup(0)
	users := make([]*model.User, N)
	for i := range users {
		users[i] = signup(i + 1)
	}

	// relay 在后台投递，记录每条事件从写入到落地的耗时
	relays := a.Relays(a.Events)
	var (
		mu      sync.Mutex
		landing []time.Duration
		stops   []func(context.Context) error
	)
	for _, r := range relays {
		stops = append(stops, r.Start())
		go func(ch <-chan time.Duration) {
			for d := range ch {
				mu.Lock()
				landing = append(landing, d)
				mu.Unlock()
			}
		}(r.Metrics())
	}

	outbox := repository.NewOutboxRepository(stores.Users)
	var maxPending atomic.Int64
	quitSample := make(chan struct{})
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := outbox.CountByStatus(ctx, model.OutboxPending); err == nil && n > maxPending.Load() {
					maxPending.Store(n)
				}
			case <-quitSample:
				return
			}
		}
	}()

	feed := make(chan int, N)
	for i := 0; i < N; i++ {
		feed <- i
	}
	close(feed)
	lat := make(chan time.Duration, N)
	var failures sync.Map
	t0 := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < CONC; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range feed {
				st := time.Now()
				if err := a.Relations.Follow(ctx, users[i].ID, celeb.ID); err != nil {
					failures.Store(i, err)
				}
				lat <- time.Since(st)
			}
		}()
	}
	wg.Wait()
	close(lat)
	followDur := time.Since(t0)
	followRecs := make([]time.Duration, 0, N)
	for d := range lat {
		followRecs = append(followRecs, d)
	}

	// 等 outbox 清空
	drainStart := time.Now()
	deadline := time.Now().Add(5 * time.Minute)
	for time.Now().Before(deadline) {
		n, err := outbox.CountByStatus(ctx, model.OutboxPending)
		if err == nil && n == 0 {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	drainDur := time.Since(drainStart)
	close(quitSample)
	for _, stop := range stops {
		_ = stop(context.Background())
	}

	q0 := time.Now()
	_, _, _ = a.Relations.ListFollowers(ctx, celeb.ID, 1, PAGE)
	fansDur := time.Since(q0)

	q1 := time.Now()
	_, _ = a.Search.Search(ctx, service.SearchQuery{Query: "b" + run, Page: 1, PerPage: PAGE})
	searchDur := time.Since(q1)

	failed := 0
	failures.Range(func(_, _ interface{}) bool { failed++; return true })

	mu.Lock()
	defer mu.Unlock()
	fmt.Printf("N=%d, CONC=%d, PAGE=%d, failed=%d\n", N, CONC, PAGE, failed)
	fmt.Printf("Follow (edge + outbox) total: %v, per op: %v, p50: %v, p95: %v, p99: %v\n",
		followDur, followDur/time.Duration(N), pct(followRecs, 0.50), pct(followRecs, 0.95), pct(followRecs, 0.99))
	fmt.Printf("Query followers(%d) latency: %v\n", PAGE, fansDur)
	fmt.Printf("Search profiles(%d) latency: %v\n", PAGE, searchDur)
	if len(landing) > 0 {
		fmt.Printf("Outbox landing: samples=%d, p50=%v, p95=%v, p99=%v, maxPending=%d, drain=%v\n",
			len(landing), pct(landing, 0.50), pct(landing, 0.95), pct(landing, 0.99), maxPending.Load(), drainDur)
	}
}

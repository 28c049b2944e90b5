// README: Benchmark test cases for the quote API; includes HTTP, websocket, DB, Redis and performance checks.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client

	// state shared by the session cases, which run in order
	sessionID    string
	alternative  string
	suggestionID string
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name  string
	Focus string
	Run   func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 30 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))

	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-7s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}

	return results
}

func (r *Runner) cases() []TestCase {
	base := r.cfg.BaseURL
	return []TestCase{
		{
			Name:  "Env: Postgres connect",
			Focus: "tariff store reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "SKIP", Note: "db not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Env: Redis connect",
			Focus: "route cache reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: "SKIP", Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Migration: apply (optional)",
			Focus: "apply migration SQL",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.ApplyMigration {
					return Result{Status: "SKIP", Note: "apply-migration=false"}
				}
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				sql, err := os.ReadFile(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, s := range splitSQL(string(sql)) {
					if _, err := r.db.Exec(ctx, s); err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Migration: tables exist",
			Focus: "tables from the migration exist",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "SKIP", Note: "db not configured"}
				}
				tables, err := extractTables(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, t := range tables {
					var exists bool
					err := r.db.QueryRow(ctx,
						"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
						t,
					).Scan(&exists)
					if err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
					if !exists {
						return Result{Status: "FAIL", Note: "missing table: " + t}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Migration: default tariff seeded",
			Focus: "fare_tariffs has the default region",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "SKIP", Note: "db not configured"}
				}
				var base float64
				err := r.db.QueryRow(ctx, "SELECT base_fare FROM fare_tariffs WHERE region='default'").Scan(&base)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS", Note: fmt.Sprintf("base_fare=%.0f", base)}
			},
		},
		httpCaseMethod("API: health", http.MethodGet, base+"/health", nil, []int{200}, nil),
		httpCaseMethod("API: metrics", http.MethodGet, base+"/metrics", nil, []int{200}, []int{404}),

		// Pricing
		httpCase("Pricing: estimate (valid)", base+"/api/price", map[string]any{
			"distance_meters":  8000,
			"duration_seconds": 1200,
		}, []int{200}, []int{404}),
		httpCase("Pricing: distance 0 -> base fare", base+"/api/price", map[string]any{
			"distance_meters":  0,
			"duration_seconds": 0,
		}, []int{200}, []int{404}),
		httpCase("Pricing: negative distance -> 400", base+"/api/price", map[string]any{
			"distance_meters":  -5,
			"duration_seconds": 60,
		}, []int{400}, []int{404}),

		// Session and quote flow
		{
			Name:  "Session: create",
			Focus: "POST /api/sessions",
			Run: func(ctx context.Context, r *Runner) Result {
				var resp struct {
					SessionID string `json:"session_id"`
				}
				status, latency, err := r.doJSON(ctx, http.MethodPost, base+"/api/sessions", nil, &resp)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				if status != http.StatusCreated || resp.SessionID == "" {
					return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
				}
				r.sessionID = resp.SessionID
				return Result{Status: "PASS", Latency: latency, Note: "id=" + resp.SessionID}
			},
		},
		r.sessionCase("Quote: set route", func(ctx context.Context, r *Runner, url string) Result {
			var snap snapshot
			status, latency, err := r.doJSON(ctx, http.MethodPut, url+"/route", map[string]string{
				"pickup": r.cfg.Pickup, "dropoff": r.cfg.Dropoff,
			}, &snap)
			if err != nil {
				return Result{Status: "FAIL", Note: err.Error()}
			}
			if status != http.StatusOK {
				return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
			}
			return Result{Status: "PASS", Latency: latency, Note: "state=" + snap.State}
		}),
		r.sessionCase("Quote: wait for result", func(ctx context.Context, r *Runner, url string) Result {
			var snap snapshot
			status, latency, err := r.doJSON(ctx, http.MethodGet, url+"/quote?wait=true", nil, &snap)
			if err != nil {
				return Result{Status: "FAIL", Note: err.Error()}
			}
			if status != http.StatusOK {
				return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
			}
			switch {
			case snap.State == "ready" && snap.Quote != nil:
				if len(snap.Quote.Alternatives) > 0 {
					r.alternative = snap.Quote.Alternatives[0].Location
				}
				return Result{Status: "PASS", Latency: latency, Note: fmt.Sprintf("fare=%d-%d wait=%dmin alternatives=%d",
					snap.Quote.Price.Min, snap.Quote.Price.Max, snap.Quote.WaitTimeMinutes, len(snap.Quote.Alternatives))}
			case snap.State == "idle":
				return Result{Status: "PENDING", Latency: latency, Note: "route provider not configured"}
			default:
				return Result{Status: "FAIL", Latency: latency, Note: "state=" + snap.State + " " + snap.Error}
			}
		}),
		{
			Name:  "Quote: route cached in redis",
			Focus: "shared route cache populated",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: "SKIP", Note: "redis not configured"}
				}
				keys, _, err := r.redis.Scan(ctx, 0, "rideflow:route:*", 100).Result()
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				if len(keys) == 0 {
					return Result{Status: "PENDING", Note: "no cached routes"}
				}
				return Result{Status: "PASS", Note: fmt.Sprintf("keys=%d", len(keys))}
			},
		},
		r.sessionCase("Quote: select alternative", func(ctx context.Context, r *Runner, url string) Result {
			if r.alternative == "" {
				return Result{Status: "SKIP", Note: "quote has no alternatives"}
			}
			var sel struct {
				Price struct {
					Min int64 `json:"min"`
					Max int64 `json:"max"`
				} `json:"price"`
				WaitTimeMinutes int64 `json:"wait_time_minutes"`
			}
			status, latency, err := r.doJSON(ctx, http.MethodPost, url+"/quote/alternative", map[string]string{"location": r.alternative}, &sel)
			if err != nil {
				return Result{Status: "FAIL", Note: err.Error()}
			}
			if status != http.StatusOK {
				return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
			}
			if sel.Price.Min < 50 || sel.Price.Max < 60 || sel.WaitTimeMinutes < 2 {
				return Result{Status: "FAIL", Latency: latency, Note: "selection below floors"}
			}
			return Result{Status: "PASS", Latency: latency, Note: fmt.Sprintf("fare=%d-%d", sel.Price.Min, sel.Price.Max)}
		}),
		r.sessionCase("Quote: manual refresh", func(ctx context.Context, r *Runner, url string) Result {
			status, latency, err := r.doJSON(ctx, http.MethodPost, url+"/quote/refresh", nil, nil)
			if err != nil {
				return Result{Status: "FAIL", Note: err.Error()}
			}
			if status != http.StatusAccepted {
				return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
			}
			return Result{Status: "PASS", Latency: latency}
		}),
		r.sessionCase("Quote: websocket stream", func(ctx context.Context, r *Runner, url string) Result {
			wsURL := "ws" + strings.TrimPrefix(url, "http") + "/stream"
			start := time.Now()
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
			if err != nil {
				return Result{Status: "FAIL", Note: err.Error()}
			}
			defer conn.Close()
			_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			var snap snapshot
			if err := conn.ReadJSON(&snap); err != nil {
				return Result{Status: "FAIL", Note: err.Error()}
			}
			return Result{Status: "PASS", Latency: time.Since(start), Note: "state=" + snap.State}
		}),
		manualCase("Quote: auto refresh every 30s", "watch the stream for a new last_fetched_at"),
		manualCase("Quote: provider down keeps last quote", "stop the provider and check is_error with the old quote"),

		// Search
		r.sessionCase("Search: debounced suggestions", func(ctx context.Context, r *Runner, url string) Result {
			start := time.Now()
			status, _, err := r.doJSON(ctx, http.MethodPut, url+"/search/dropoff", map[string]string{"query": r.cfg.Query}, nil)
			if err != nil {
				return Result{Status: "FAIL", Note: err.Error()}
			}
			if status != http.StatusOK {
				return Result{Status: "FAIL", Note: fmt.Sprintf("status=%d", status)}
			}
			deadline := time.Now().Add(10 * time.Second)
			for time.Now().Before(deadline) {
				var st searchState
				if _, _, err := r.doJSON(ctx, http.MethodGet, url+"/search/dropoff", nil, &st); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				switch {
				case st.Status == "error":
					return Result{Status: "FAIL", Latency: time.Since(start), Note: st.Error}
				case len(st.Suggestions) > 0:
					r.suggestionID = st.Suggestions[0].ID
					return Result{Status: "PASS", Latency: time.Since(start), Note: fmt.Sprintf("suggestions=%d", len(st.Suggestions))}
				}
				time.Sleep(100 * time.Millisecond)
			}
			return Result{Status: "PENDING", Latency: time.Since(start), Note: "no suggestions (search provider not configured?)"}
		}),
		r.sessionCase("Search: select suggestion", func(ctx context.Context, r *Runner, url string) Result {
			if r.suggestionID == "" {
				return Result{Status: "SKIP", Note: "no suggestion to select"}
			}
			status, latency, err := r.doJSON(ctx, http.MethodPost, url+"/search/dropoff/select", map[string]string{"id": r.suggestionID}, nil)
			if err != nil {
				return Result{Status: "FAIL", Note: err.Error()}
			}
			if status != http.StatusOK {
				return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
			}
			return Result{Status: "PASS", Latency: latency}
		}),
		r.sessionCase("Search: invalid field -> 400", func(ctx context.Context, r *Runner, url string) Result {
			status, latency, err := r.doJSON(ctx, http.MethodGet, url+"/search/stopover", nil, nil)
			if err != nil {
				return Result{Status: "FAIL", Note: err.Error()}
			}
			if status != http.StatusBadRequest {
				return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
			}
			return Result{Status: "PASS", Latency: latency}
		}),
		r.sessionCase("Session: delete", func(ctx context.Context, r *Runner, url string) Result {
			status, latency, err := r.doJSON(ctx, http.MethodDelete, url, nil, nil)
			if err != nil {
				return Result{Status: "FAIL", Note: err.Error()}
			}
			if status != http.StatusNoContent {
				return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
			}
			status, _, err = r.doJSON(ctx, http.MethodGet, url+"/quote", nil, nil)
			if err != nil {
				return Result{Status: "FAIL", Note: err.Error()}
			}
			if status != http.StatusNotFound {
				return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("deleted session status=%d", status)}
			}
			return Result{Status: "PASS", Latency: latency}
		}),
		manualCase("Session: idle eviction", "leave a session idle past RIDEFLOW_SESSION_IDLE and expect 404"),

		// Concurrency
		{
			Name:  "Concurrency: same route across sessions",
			Focus: "concurrent sessions share one provider call",
			Run: func(ctx context.Context, r *Runner) Result {
				return concurrentQuotes(ctx, r, base)
			},
		},

		// Performance
		{
			Name:  "Perf: price estimate throughput",
			Focus: "stateless pricing",
			Run: func(ctx context.Context, r *Runner) Result {
				return perfLoad(ctx, r, base+"/api/price", map[string]any{
					"distance_meters":  8000,
					"duration_seconds": 1200,
				})
			},
		},
	}
}

type snapshot struct {
	State string `json:"state"`
	Error string `json:"error"`
	Quote *struct {
		Price struct {
			Min int64 `json:"min"`
			Max int64 `json:"max"`
		} `json:"price"`
		WaitTimeMinutes int64 `json:"wait_time_minutes"`
		Alternatives    []struct {
			Location string `json:"location"`
		} `json:"alternatives"`
	} `json:"quote"`
}

type searchState struct {
	Status      string `json:"status"`
	Error       string `json:"error"`
	Suggestions []struct {
		ID string `json:"id"`
	} `json:"suggestions"`
}

// sessionCase skips when the create case did not produce a session.
func (r *Runner) sessionCase(name string, run func(ctx context.Context, r *Runner, url string) Result) TestCase {
	return TestCase{
		Name:  name,
		Focus: "session API",
		Run: func(ctx context.Context, r *Runner) Result {
			if r.sessionID == "" {
				return Result{Status: "SKIP", Note: "no session"}
			}
			return run(ctx, r, r.cfg.BaseURL+"/api/sessions/"+r.sessionID)
		},
	}
}

func (r *Runner) doJSON(ctx context.Context, method, url string, body, out any) (int, time.Duration, error) {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = strings.NewReader(string(b))
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	latency := time.Since(start)
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, latency, err
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode, latency, nil
}

func httpCase(name, url string, body any, okStatuses, pendingStatuses []int) TestCase {
	return httpCaseMethod(name, http.MethodPost, url, body, okStatuses, pendingStatuses)
}

func httpCaseMethod(name, method, url string, body any, okStatuses, pendingStatuses []int) TestCase {
	return TestCase{
		Name:  name,
		Focus: "HTTP API",
		Run: func(ctx context.Context, r *Runner) Result {
			status, latency, err := r.doJSON(ctx, method, url, body, nil)
			if err != nil {
				return Result{Status: "FAIL", Note: err.Error()}
			}
			note := fmt.Sprintf("status=%d", status)
			if contains(okStatuses, status) {
				return Result{Status: "PASS", Latency: latency, Note: note}
			}
			if contains(pendingStatuses, status) {
				return Result{Status: "PENDING", Latency: latency, Note: note}
			}
			return Result{Status: "FAIL", Latency: latency, Note: note}
		},
	}
}

func manualCase(name, note string) TestCase {
	return TestCase{
		Name:  name,
		Focus: "Manual",
		Run: func(ctx context.Context, r *Runner) Result {
			return Result{Status: "SKIP", Note: note}
		},
	}
}

func concurrentQuotes(ctx context.Context, r *Runner, base string) Result {
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		ready int
		slow  time.Duration
	)
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var created struct {
				SessionID string `json:"session_id"`
			}
			if _, _, err := r.doJSON(ctx, http.MethodPost, base+"/api/sessions", nil, &created); err != nil || created.SessionID == "" {
				return
			}
			url := base + "/api/sessions/" + created.SessionID
			defer r.doJSON(ctx, http.MethodDelete, url, nil, nil)

			start := time.Now()
			if _, _, err := r.doJSON(ctx, http.MethodPut, url+"/route", map[string]string{
				"pickup": r.cfg.Pickup, "dropoff": r.cfg.Dropoff,
			}, nil); err != nil {
				return
			}
			var snap snapshot
			if _, _, err := r.doJSON(ctx, http.MethodGet, url+"/quote?wait=true", nil, &snap); err != nil {
				return
			}
			elapsed := time.Since(start)
			mu.Lock()
			if snap.State == "ready" {
				ready++
			}
			if elapsed > slow {
				slow = elapsed
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if ready == 0 {
		return Result{Status: "PENDING", Note: "no session reached ready"}
	}
	return Result{Status: "PASS", Latency: slow, Note: fmt.Sprintf("ready=%d/%d", ready, r.cfg.Concurrency)}
}

func perfLoad(ctx context.Context, r *Runner, url string, payload any) Result {
	b, _ := json.Marshal(payload)
	end := time.Now().Add(r.cfg.Duration)
	var count int64
	var errCount int64
	var mu sync.Mutex
	wg := sync.WaitGroup{}

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) {
				req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(b)))
				req.Header.Set("Content-Type", "application/json")
				resp, err := r.httpc.Do(req)
				if err != nil {
					mu.Lock()
					errCount++
					mu.Unlock()
					continue
				}
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				mu.Lock()
				count++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: "FAIL", Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: "PASS", Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}

func contains(list []int, v int) bool {
	for _, i := range list {
		if i == v {
			return true
		}
	}
	return false
}

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	matches := re.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}

func splitSQL(sql string) []string {
	lines := strings.Split(sql, "\n")
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if strings.HasPrefix(l, "--") || l == "" {
			continue
		}
		filtered = append(filtered, line)
	}
	cleaned := strings.Join(filtered, "\n")
	parts := strings.Split(cleaned, ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}

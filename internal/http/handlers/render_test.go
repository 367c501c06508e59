package handlers

import (
	"bytes"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"md2html/internal/config"
	"md2html/internal/infra/cache"
	"md2html/internal/infra/logging"
)

func testRenderCfg() config.Config {
	var cfg config.Config
	cfg.Markdown.UnsafeHTML = true
	cfg.Cache.Enabled = true
	cfg.Cache.TTL = time.Minute
	return cfg
}

type fakeObserver struct {
	mu       sync.Mutex
	outcomes []string
	lookups  []string
}

func (f *fakeObserver) ObserveRequest(outcome string, took time.Duration) {
	f.mu.Lock()
	f.outcomes = append(f.outcomes, outcome)
	f.mu.Unlock()
}

func (f *fakeObserver) ObserveCacheLookup(result string) {
	f.mu.Lock()
	f.lookups = append(f.lookups, result)
	f.mu.Unlock()
}

func doRequest(t *testing.T, app *fiber.App, method, body string) (int, string, string) {
	t.Helper()
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(data), resp.Header.Get("Content-Type")
}

func TestHandleRender_Scenarios(t *testing.T) {
	cfg := testRenderCfg()
	cfg.Server.AllowGetNoop = true

	app := fiber.New()
	app.All("/", HandleMarkdownRender(cfg, nil))

	tests := []struct {
		name   string
		method string
		body   string
		code   int
		want   string
	}{
		{"heading", "POST", `{"data": "# Title"}`, fiber.StatusOK, `{"result":"<h1>Title</h1>"}`},
		{"bold", "POST", `{"data": "**bold**"}`, fiber.StatusOK, `{"result":"<p><strong>bold</strong></p>"}`},
		{"missing data", "POST", `{}`, fiber.StatusOK, `{"result":""}`},
		{"empty body", "POST", ``, fiber.StatusBadRequest, ``},
		{"get noop", "GET", ``, fiber.StatusOK, `{}`},
		{"wrong method", "PATCH", `{"data":"x"}`, fiber.StatusBadRequest, ``},
		{"malformed json", "POST", `not json`, fiber.StatusInternalServerError, ``},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, body, contentType := doRequest(t, app, tc.method, tc.body)
			if code != tc.code {
				t.Fatalf("expected %d got %d (%s)", tc.code, code, body)
			}
			if tc.code == fiber.StatusInternalServerError {
				return
			}
			if body != tc.want {
				t.Fatalf("expected body %q got %q", tc.want, body)
			}
			if tc.code == fiber.StatusOK && contentType != fiber.MIMEApplicationJSON {
				t.Fatalf("expected JSON content type, got %q", contentType)
			}
		})
	}
}

func TestHandleRender_GetRejectedWithoutNoop(t *testing.T) {
	cfg := testRenderCfg()
	cfg.Server.AllowGetNoop = false

	app := fiber.New()
	app.All("/", HandleMarkdownRender(cfg, nil))

	code, body, _ := doRequest(t, app, "GET", "")
	if code != fiber.StatusBadRequest || body != "" {
		t.Fatalf("expected empty 400, got %d %q", code, body)
	}
}

func TestHandleRender_ObserverAndLogs(t *testing.T) {
	var buf bytes.Buffer
	logging.SetLoggerForTest(zerolog.New(&buf))

	obs := &fakeObserver{}
	svc := NewRenderService(testRenderCfg(), nil, obs)
	app := fiber.New()
	app.All("/", svc.HandleRender)

	doRequest(t, app, "POST", `{"data":"x"}`)
	doRequest(t, app, "PUT", `{"data":"x"}`)
	doRequest(t, app, "POST", `{"data":`)

	want := []string{"rendered", "rejected", "fault"}
	if strings.Join(obs.outcomes, ",") != strings.Join(want, ",") {
		t.Fatalf("expected outcomes %v, got %v", want, obs.outcomes)
	}
	if len(obs.lookups) != 0 {
		t.Fatalf("expected no cache lookups without a store, got %v", obs.lookups)
	}
	if !strings.Contains(buf.String(), "Markdown rendered") || !strings.Contains(buf.String(), "Malformed render request") {
		t.Fatalf("expected render and fault logs, got %q", buf.String())
	}
}

func TestHandleRender_CacheHitSkipsRendering(t *testing.T) {
	mrs, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mrs.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mrs.Addr()})
	store := cache.NewRedisStore(rdb)
	cfg := testRenderCfg()
	obs := &fakeObserver{}
	svc := NewRenderService(cfg, store, obs)

	app := fiber.New()
	app.All("/", svc.HandleRender)

	code, first, _ := doRequest(t, app, "POST", `{"data":"# cached"}`)
	if code != fiber.StatusOK {
		t.Fatalf("expected 200 got %d", code)
	}

	// Overwrite the stored entry: a hit must serve it instead of re-rendering.
	keys := mrs.Keys()
	if len(keys) != 1 {
		t.Fatalf("expected one cache entry, got %v", keys)
	}
	if err := mrs.Set(keys[0], "<h1>from cache</h1>"); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	_, second, _ := doRequest(t, app, "POST", `{"data":"# cached"}`)
	if first != `{"result":"<h1>cached</h1>"}` {
		t.Fatalf("unexpected first body %q", first)
	}
	if second != `{"result":"<h1>from cache</h1>"}` {
		t.Fatalf("expected cached body, got %q", second)
	}
	if strings.Join(obs.lookups, ",") != "miss,hit" {
		t.Fatalf("expected miss then hit, got %v", obs.lookups)
	}
}

func TestNewRenderService_CacheDisabledIgnoresStore(t *testing.T) {
	mrs, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mrs.Close()

	cfg := testRenderCfg()
	cfg.Cache.Enabled = false
	svc := NewRenderService(cfg, cache.NewRedisStore(redis.NewClient(&redis.Options{Addr: mrs.Addr()})), nil)

	app := fiber.New()
	app.All("/", svc.HandleRender)
	doRequest(t, app, "POST", `{"data":"# x"}`)

	if n := len(mrs.Keys()); n != 0 {
		t.Fatalf("expected no cache writes when disabled, got %d keys", n)
	}
}

package testdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	cfgpkg "figimap/internal/config"
	"figimap/internal/diag"
	"figimap/pkg/contract"
)

const portfolio = "files/portfolio.csv"

// stubServer 模拟映射服务：首个请求返回 429，其后逐条回显；ticker 仅 Common Stock 变体有数据。
type stubServer struct {
	mu     sync.Mutex
	hits   int
	sizes  []int
	apiKey []string
}

func (s *stubServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits++
	n := s.hits
	s.apiKey = append(s.apiKey, r.Header.Get("X-OPENFIGI-APIKEY"))
	s.mu.Unlock()
	if n == 1 {
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var reqs []contract.MappingRequest
	if err := json.Unmarshal(body, &reqs); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.sizes = append(s.sizes, len(reqs))
	s.mu.Unlock()
	out := make([]contract.MappingResponse, len(reqs))
	for i, q := range reqs {
		if q.IDType == contract.IDExchSymbol && q.SecurityType2 != string(contract.SecCommonStock) {
			out[i] = contract.MappingResponse{Warning: "No identifier found."}
			continue
		}
		out[i] = contract.MappingResponse{Data: []contract.FigiResult{{FIGI: "BBG-" + q.IDValue, Ticker: q.IDValue, ExchCode: q.ExchCode}}}
	}
	w.Header().Set("X-RateLimit-Limit", "25")
	w.Header().Set("X-RateLimit-Remaining", fmt.Sprint(25-n))
	w.Header().Set("X-RateLimit-Reset", "4102444800")
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func baseConfig() cfgpkg.Config {
	cfg := cfgpkg.Defaults()
	cfg.RetryLimit = 2
	cfg.RetryDelayMs = 1
	cfg.MaxRetryDelayMs = 5
	cfg.Logging.Level = "error"
	return cfg
}

func readPortfolio(t *testing.T) string {
	b, err := os.ReadFile(portfolio)
	if err != nil {
		t.Fatalf("read input: %v", err)
	}
	return string(b)
}

func TestE2EOpenFIGIAnonymous(t *testing.T) {
	t.Setenv(cfgpkg.EnvAPIKey, "")
	stub := &stubServer{}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	cfg := baseConfig()
	cfg.BaseURL = srv.URL
	r, err := cfgpkg.Assemble(cfg, diag.Nop())
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if r.TierCap() != contract.TierCapAnonymous {
		t.Fatalf("tier cap = %d, want %d", r.TierCap(), contract.TierCapAnonymous)
	}

	rep, err := r.ResolveText(context.Background(), readPortfolio(t))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(rep.Parsed.Identifiers) != 12 || len(rep.Results) != 12 {
		t.Fatalf("identifiers=%d results=%d, want 12/12", len(rep.Parsed.Identifiers), len(rep.Results))
	}
	found, notFound := rep.Counts()
	if found != 11 || notFound != 1 {
		t.Fatalf("found=%d notFound=%d, want 11/1", found, notFound)
	}
	for i, res := range rep.Results {
		if res.Identifier != rep.Parsed.Identifiers[i] {
			t.Fatalf("result %d out of order: %+v", i, res.Identifier)
		}
	}
	// 8 个非 ticker + 3 个 ticker × 2 变体 = 14 条候选，匿名档位切为 10 + 4
	stub.mu.Lock()
	sizes, hits, keys := append([]int(nil), stub.sizes...), stub.hits, stub.apiKey
	stub.mu.Unlock()
	if hits != 3 {
		t.Fatalf("hits = %d, want 3 (one 429 retry + 2 batches)", hits)
	}
	if len(sizes) != 2 || sizes[0] != 10 || sizes[1] != 4 {
		t.Fatalf("batch sizes = %v, want [10 4]", sizes)
	}
	for _, k := range keys {
		if k != "" {
			t.Fatalf("anonymous tier must not send an API key, got %q", k)
		}
	}
	aapl := rep.Results[5]
	if aapl.Variant != string(contract.SecCommonStock) || aapl.Response.Data[0].FIGI != "BBG-AAPL" || aapl.Response.Data[0].ExchCode != "US" {
		t.Fatalf("ticker merge: %+v", aapl)
	}
	last := rep.Results[11]
	if last.Identifier.Kind != contract.KindUnknown || !strings.Contains(last.Response.Warning, "Could not determine identifier type") {
		t.Fatalf("unknown row: %+v", last)
	}

	info, ok := r.RateLimitSnapshot()
	if !ok || info.Limit != 25 || info.Remaining != 22 {
		t.Fatalf("rate limit snapshot = %+v ok=%v", info, ok)
	}
}

func TestE2EOpenFIGIWithKey(t *testing.T) {
	stub := &stubServer{hits: 1} // 跳过 429
	srv := httptest.NewServer(stub)
	defer srv.Close()

	cfg := baseConfig()
	cfg.BaseURL = srv.URL
	cfg.APIKey = "e2e-key"
	r, err := cfgpkg.Assemble(cfg, diag.Nop())
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if _, err := r.ResolveText(context.Background(), readPortfolio(t)); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	stub.mu.Lock()
	defer stub.mu.Unlock()
	if len(stub.sizes) != 1 || stub.sizes[0] != 14 {
		t.Fatalf("batch sizes = %v, want [14]", stub.sizes)
	}
	if stub.apiKey[0] != "e2e-key" {
		t.Fatalf("api key header = %q", stub.apiKey[0])
	}
}

func TestE2ERateLimitExhausted(t *testing.T) {
	t.Setenv(cfgpkg.EnvAPIKey, "")
	var hits int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cfg := baseConfig()
	cfg.BaseURL = srv.URL
	r, err := cfgpkg.Assemble(cfg, diag.Nop())
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	_, err = r.ResolveText(context.Background(), readPortfolio(t))
	var rle *contract.RateLimitError
	if !errors.As(err, &rle) || !rle.HasRetryAfter || rle.RetryAfter != 7 {
		t.Fatalf("expect rate limit error with Retry-After, got %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	// 首批耗尽重试后中止，后续批次不派发
	if hits != 3 {
		t.Fatalf("hits = %d, want 3", hits)
	}
}

func TestE2EFlakyRecovers(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "flaky.log")
	cfg := baseConfig()
	cfg.Mapper = "flaky"
	cfg.Options.Mapper = map[string]any{"fail_calls": 1, "log_path": logPath}
	r, err := cfgpkg.Assemble(cfg, diag.Nop())
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	text := readPortfolio(t)
	if _, err := r.ResolveText(context.Background(), text); !errors.Is(err, contract.ErrRateLimited) {
		t.Fatalf("first run: expect rate limit error, got %v", err)
	}
	rep, err := r.ResolveText(context.Background(), text)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !rep.Results[0].Found() || rep.Results[0].Response.Data[0].Name != "APPLE INC" {
		t.Fatalf("apple isin: %+v", rep.Results[0])
	}
	logData, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(logData)), "\n")
	if len(lines) != 3 || lines[0] != "rate_limit" || lines[1] != "ok" || lines[2] != "ok" {
		t.Fatalf("unexpected log: %v", lines)
	}
}

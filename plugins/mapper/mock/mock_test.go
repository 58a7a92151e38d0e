package mock

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"figimap/pkg/contract"
)

// TestMockMap 测试 fixture 命中与 warning 兜底
func TestMockMap(t *testing.T) {
	c, err := New(nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	out, err := c.Map(context.Background(), []contract.MappingRequest{
		{IDType: contract.IDExchSymbol, IDValue: "AAPL", ExchCode: "US", SecurityType2: "Common Stock"},
		{IDType: contract.IDExchSymbol, IDValue: "AAPL", ExchCode: "US", SecurityType2: "Preference"},
		{IDType: contract.IDISIN, IDValue: "US0378331005"},
	})
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("响应条数应为 3，实际 %d", len(out))
	}
	if !out[0].HasData() || out[1].HasData() || !out[2].HasData() {
		t.Fatalf("命中情况不符: %+v", out)
	}
	if out[1].Warning != NotFound {
		t.Fatalf("未命中应返回 warning，实际 %+v", out[1])
	}
	if c.Calls() != 1 {
		t.Fatalf("调用次数应为 1")
	}
	if c.TierCap() != contract.TierCapAnonymous {
		t.Fatalf("无 api_key 应为匿名档位")
	}
}

// TestMockValidation 测试空批被拒绝
func TestMockValidation(t *testing.T) {
	c, _ := New(nil)
	if _, err := c.Map(context.Background(), nil); !errors.Is(err, contract.ErrValidation) {
		t.Fatalf("空批应为校验错误，实际 %v", err)
	}
}

// TestMockRateLimit 测试模拟限流快照
func TestMockRateLimit(t *testing.T) {
	raw, _ := json.Marshal(Options{APIKey: "k", RateLimit: 5, Fixtures: map[string][]contract.FigiResult{"X": {{FIGI: "F"}}}})
	c, err := New(raw)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := c.RateLimit(); ok {
		t.Fatalf("首次调用前不应有快照")
	}
	out, _ := c.Map(context.Background(), []contract.MappingRequest{{IDType: contract.IDISIN, IDValue: "X"}})
	if out[0].Data[0].FIGI != "F" {
		t.Fatalf("自定义 fixture 未生效")
	}
	info, ok := c.RateLimit()
	if !ok || info.Limit != 5 || info.Remaining != 4 {
		t.Fatalf("快照不符: %+v", info)
	}
	if c.TierCap() != contract.TierCapWithKey {
		t.Fatalf("有 api_key 应为 100 档")
	}
}

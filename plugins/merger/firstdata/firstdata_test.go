package firstdata

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"figimap/pkg/contract"
)

var (
	tick = contract.DetectedIdentifier{Value: "AAPL", Kind: contract.KindTicker, ExchCode: "US", Confidence: contract.ConfidenceHigh}
	bbg  = contract.DetectedIdentifier{Value: "BBG000B9XRY4", Kind: contract.KindBloombergID, Confidence: contract.ConfidenceHigh}
	isin = contract.DetectedIdentifier{Value: "US0378331005", Kind: contract.KindISIN, Confidence: contract.ConfidenceHigh}

	apple = []contract.FigiResult{{FIGI: "BBG000B9XRY4", Name: "APPLE INC", Ticker: "AAPL", ExchCode: "US"}}
	empty = contract.MappingResponse{Warning: "No identifier found."}
)

// UT-MRG-01: 端到端样例：仅 Common Stock 变体有数据
func TestMergeSample(t *testing.T) {
	outcomes := []contract.Outcome{
		{Origin: 0, Variant: "Common Stock", Response: contract.MappingResponse{Data: apple}},
		{Origin: 0, Variant: "Preference", Response: empty},
		{Origin: 1, Response: contract.MappingResponse{Data: apple}},
		{Origin: 2, Response: contract.MappingResponse{Data: apple}},
	}
	got := New().Merge([]contract.DetectedIdentifier{tick, bbg, isin}, outcomes)
	want := []contract.Resolution{
		{Identifier: tick, Variant: "Common Stock", Response: contract.MappingResponse{Data: apple}},
		{Identifier: bbg, Response: contract.MappingResponse{Data: apple}},
		{Identifier: isin, Response: contract.MappingResponse{Data: apple}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("合并结果不符 (-want +got):\n%s", diff)
	}
}

// UT-MRG-02: 同一 Origin 的空变体先后到达不影响结果
func TestMergeOrderIndependent(t *testing.T) {
	hit := contract.Outcome{Origin: 0, Variant: "Preference", Response: contract.MappingResponse{Data: apple}}
	miss := contract.Outcome{Origin: 0, Variant: "Common Stock", Response: empty}
	m := New()
	a := m.Merge([]contract.DetectedIdentifier{tick}, []contract.Outcome{miss, hit})
	b := m.Merge([]contract.DetectedIdentifier{tick}, []contract.Outcome{hit, miss})
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("顺序不应影响结果:\n%s", diff)
	}
	if a[0].Variant != "Preference" || !a[0].Found() {
		t.Fatalf("应命中 Preference 变体: %+v", a[0])
	}
}

// UT-MRG-03: 首个有数据者胜，后续有数据者不覆盖
func TestMergeFirstDataWins(t *testing.T) {
	other := []contract.FigiResult{{FIGI: "BBG000000002"}}
	got := New().Merge([]contract.DetectedIdentifier{tick}, []contract.Outcome{
		{Origin: 0, Variant: "Common Stock", Response: contract.MappingResponse{Data: apple}},
		{Origin: 0, Variant: "Preference", Response: contract.MappingResponse{Data: other}},
	})
	if got[0].Variant != "Common Stock" || got[0].Response.Data[0].FIGI != apple[0].FIGI {
		t.Fatalf("后到的数据不应覆盖: %+v", got[0])
	}
}

// UT-MRG-04: 均无数据保留首个；无引用则合成 warning
func TestMergeFallbacks(t *testing.T) {
	got := New().Merge([]contract.DetectedIdentifier{tick, isin}, []contract.Outcome{
		{Origin: 0, Variant: "Common Stock", Response: contract.MappingResponse{Error: "Invalid idValue"}},
		{Origin: 0, Variant: "Preference", Response: empty},
		{Origin: 7, Response: contract.MappingResponse{Data: apple}},
	})
	want := []contract.Resolution{
		{Identifier: tick, Variant: "Common Stock", Response: contract.MappingResponse{Error: "Invalid idValue"}},
		{Identifier: isin, Response: contract.MappingResponse{Warning: "No identifier found for US0378331005"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("兜底结果不符 (-want +got):\n%s", diff)
	}
}

package pattern

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"figimap/pkg/contract"
)

// UT-DET-01: 各格式分类与置信度
func TestDetectCascade(t *testing.T) {
	cases := []struct {
		in   string
		want contract.DetectedIdentifier
	}{
		{"US0378331005", contract.DetectedIdentifier{Value: "US0378331005", Kind: contract.KindISIN, Confidence: contract.ConfidenceHigh}},
		{"  US0378331009 ", contract.DetectedIdentifier{Value: "US0378331009", Kind: contract.KindISIN, Confidence: contract.ConfidenceHigh}},
		{"BBG000B9XRY4", contract.DetectedIdentifier{Value: "BBG000B9XRY4", Kind: contract.KindBloombergID, Confidence: contract.ConfidenceHigh}},
		{"037833100", contract.DetectedIdentifier{Value: "037833100", Kind: contract.KindCUSIP, Confidence: contract.ConfidenceMedium}},
		{"2046251", contract.DetectedIdentifier{Value: "2046251", Kind: contract.KindSEDOL, Confidence: contract.ConfidenceMedium}},
		{"aapl us", contract.DetectedIdentifier{Value: "AAPL", Kind: contract.KindTicker, ExchCode: "US", Confidence: contract.ConfidenceHigh}},
		{"ABLI   SS", contract.DetectedIdentifier{Value: "ABLI", Kind: contract.KindTicker, ExchCode: "SS", Confidence: contract.ConfidenceHigh}},
		{"MSFT", contract.DetectedIdentifier{Value: "MSFT", Kind: contract.KindTicker, Confidence: contract.ConfidenceLow}},
		{"brk.b", contract.DetectedIdentifier{Value: "BRK.B", Kind: contract.KindTicker, Confidence: contract.ConfidenceLow}},
		{"hello world!", contract.DetectedIdentifier{Value: "hello world!", Kind: contract.KindUnknown, Confidence: contract.ConfidenceLow}},
		{"", contract.DetectedIdentifier{Value: "", Kind: contract.KindUnknown, Confidence: contract.ConfidenceLow}},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Detect(c.in), "输入 %q", c.in)
	}
}

// UT-DET-02: ISIN 形状一律 High，不校验校验位
func TestDetectISINShapeAlwaysHigh(t *testing.T) {
	for _, s := range []string{"GB0002634946", "XX123456789", "DE000BAY0017", "ZZAAAAAAAAA0"} {
		d := Detect(s)
		if len(s) != 12 {
			assert.NotEqual(t, contract.KindISIN, d.Kind, "%s 长度不符不应为 ISIN", s)
			continue
		}
		assert.Equal(t, contract.KindISIN, d.Kind, s)
		assert.Equal(t, contract.ConfidenceHigh, d.Confidence, s)
	}
}

// UT-DET-03: "<前缀> <两字母>" 恒为带交易所 ticker
func TestDetectTickerExchange(t *testing.T) {
	for _, prefix := range []string{"A", "abc", "X1", "0700", "ABCDEFGHIJ"} {
		for _, ex := range []string{"us", "LN", "Jp"} {
			d := Detect(prefix + " " + ex)
			assert.Equal(t, contract.KindTicker, d.Kind)
			assert.Equal(t, contract.ConfidenceHigh, d.Confidence)
			assert.Equal(t, strings.ToUpper(ex), d.ExchCode)
			assert.Equal(t, strings.ToUpper(prefix), d.Value)
		}
	}
}

// UT-PAR-01: 表头跳过
func TestParseSkipsHeader(t *testing.T) {
	p := Parse("Ticker\nAAPL\nMSFT\n")
	require.Len(t, p.Identifiers, 2)
	assert.Equal(t, "AAPL", p.Identifiers[0].Value)
	assert.Equal(t, "MSFT", p.Identifiers[1].Value)
	assert.Equal(t, "Detected 2 identifiers:\n  - Ticker: 2", p.Summary)
}

// UT-PAR-02: 混合行尾、空行、CSV/TSV 首列
func TestParseLineBreaksAndColumns(t *testing.T) {
	in := "US0378331005,Apple Inc\r\n\r\nBBG000B9XRY4\tfoo\r037833100\n   \n??"
	p := Parse(in)
	require.Len(t, p.Identifiers, 4)
	kinds := []contract.Kind{}
	for _, id := range p.Identifiers {
		kinds = append(kinds, id.Kind)
	}
	assert.Equal(t, []contract.Kind{contract.KindISIN, contract.KindBloombergID, contract.KindCUSIP, contract.KindUnknown}, kinds)
	assert.Equal(t, "Detected 4 identifiers:\n  - ISIN: 1\n  - CUSIP: 1\n  - Bloomberg ID: 1\n  - Unknown: 1", p.Summary)
}

// UT-PAR-03: 端到端样例输入
func TestParseEndToEndSample(t *testing.T) {
	p := Parse("AAPL US\nBBG000B9XRY4\nUS0378331005")
	require.Len(t, p.Identifiers, 3)
	assert.Equal(t, contract.KindTicker, p.Identifiers[0].Kind)
	assert.Equal(t, "US", p.Identifiers[0].ExchCode)
	assert.Equal(t, contract.KindBloombergID, p.Identifiers[1].Kind)
	assert.Equal(t, contract.KindISIN, p.Identifiers[2].Kind)
	for _, id := range p.Identifiers {
		assert.Equal(t, contract.ConfidenceHigh, id.Confidence)
	}
}

func TestParseEmpty(t *testing.T) {
	p := Parse("\n\r\n  ")
	assert.Empty(t, p.Identifiers)
	assert.Equal(t, "Detected 0 identifiers:", p.Summary)
}

func TestShapeValid(t *testing.T) {
	ok, f := ShapeValid(contract.KindISIN, "US0378331005")
	assert.True(t, ok)
	assert.Contains(t, f, "check digit")
	ok, _ = ShapeValid(contract.KindCUSIP, "03783310")
	assert.False(t, ok)
	ok, _ = ShapeValid(contract.KindSEDOL, "2046251")
	assert.True(t, ok)
	ok, _ = ShapeValid(contract.KindBloombergID, "BBG000B9XRY")
	assert.False(t, ok)
	ok, f = ShapeValid(contract.KindTicker, "AAPL")
	assert.False(t, ok)
	assert.Empty(t, f)

	k, ok := ParseKind("bbg")
	assert.True(t, ok)
	assert.Equal(t, contract.KindBloombergID, k)
}

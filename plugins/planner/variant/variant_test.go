package variant

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"figimap/pkg/contract"
)

func ids(kinds ...contract.Kind) []contract.DetectedIdentifier {
	out := make([]contract.DetectedIdentifier, len(kinds))
	for i, k := range kinds {
		out[i] = contract.DetectedIdentifier{Value: "V" + string(rune('A'+i)), Kind: k}
	}
	return out
}

// UT-PLN-01: 端到端样例：tierCap=10 得到 1 批 4 条
func TestPlanSample(t *testing.T) {
	in := []contract.DetectedIdentifier{
		{Value: "AAPL", Kind: contract.KindTicker, ExchCode: "US", Confidence: contract.ConfidenceHigh},
		{Value: "BBG000B9XRY4", Kind: contract.KindBloombergID, Confidence: contract.ConfidenceHigh},
		{Value: "US0378331005", Kind: contract.KindISIN, Confidence: contract.ConfidenceHigh},
	}
	batches, err := New(nil).Plan(in, 10)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	b := batches[0]
	require.Len(t, b, 4)

	assert.Equal(t, contract.MappingRequest{IDType: contract.IDExchSymbol, IDValue: "AAPL", ExchCode: "US", SecurityType2: "Common Stock"}, b[0].Request)
	assert.Equal(t, "Preference", b[1].Request.SecurityType2)
	assert.Equal(t, "US", b[1].Request.ExchCode, "变体应携带相同交易所")
	assert.Equal(t, 0, b[1].Origin)
	assert.Equal(t, contract.IDBBGlobal, b[2].Request.IDType)
	assert.Equal(t, 1, b[2].Origin)
	assert.Empty(t, b[2].Variant)
	assert.Equal(t, contract.IDISIN, b[3].Request.IDType)
	assert.Equal(t, 2, b[3].Origin)
}

// UT-PLN-02: 批长度不超上限，总数 = 非 ticker×1 + ticker×2
func TestPlanCapAndCount(t *testing.T) {
	kinds := []contract.Kind{}
	tickers, others := 0, 0
	for i := 0; i < 57; i++ {
		if i%3 == 0 {
			kinds = append(kinds, contract.KindTicker)
			tickers++
		} else {
			kinds = append(kinds, []contract.Kind{contract.KindISIN, contract.KindCUSIP, contract.KindSEDOL, contract.KindBloombergID}[i%4])
			others++
		}
	}
	for _, capN := range []int{1, 3, 10, 100} {
		batches, err := New(nil).Plan(ids(kinds...), capN)
		require.NoError(t, err)
		total := 0
		lastOrigin := -1
		for _, b := range batches {
			assert.LessOrEqual(t, len(b), capN)
			assert.NotEmpty(t, b)
			total += len(b)
			for _, c := range b {
				assert.GreaterOrEqual(t, c.Origin, lastOrigin, "相对顺序应保持")
				lastOrigin = c.Origin
			}
		}
		assert.Equal(t, others+2*tickers, total, "cap=%d", capN)
	}
}

// UT-PLN-03: 同一 ticker 的变体可跨批
func TestPlanVariantsMaySplit(t *testing.T) {
	batches, err := New(nil).Plan(ids(contract.KindISIN, contract.KindTicker), 2)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, 1, batches[0][1].Origin)
	assert.Equal(t, 1, batches[1][0].Origin)
	assert.Equal(t, "Preference", batches[1][0].Variant)
}

func TestPlanUnknown(t *testing.T) {
	in := ids(contract.KindISIN, contract.KindUnknown, contract.KindCUSIP)
	_, err := New(nil).Plan(in, 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, contract.ErrValidation))

	batches, err := New(&Options{SkipUnknown: true}).Plan(in, 10)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 2)
	assert.Equal(t, 0, batches[0][0].Origin)
	assert.Equal(t, 2, batches[0][1].Origin)
}

func TestPlanBadCap(t *testing.T) {
	_, err := New(nil).Plan(ids(contract.KindISIN), 0)
	assert.Error(t, err)
	_, err = New(nil).Plan(ids(contract.KindISIN), 101)
	assert.Error(t, err)

	batches, err := New(nil).Plan(nil, 10)
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestCustomVariants(t *testing.T) {
	batches, err := New(&Options{TickerVariants: []string{"ADR"}}).Plan(ids(contract.KindTicker), 10)
	require.NoError(t, err)
	require.Len(t, batches[0], 1)
	assert.Equal(t, "ADR", batches[0][0].Request.SecurityType2)
}

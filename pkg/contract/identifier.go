package contract

// Kind: 检测出的标识种类。Unknown 为兜底分支，检测永不失败。
type Kind string

const (
	KindISIN        Kind = "ISIN"
	KindCUSIP       Kind = "CUSIP"
	KindSEDOL       Kind = "SEDOL"
	KindBloombergID Kind = "BLOOMBERG_ID"
	KindTicker      Kind = "TICKER"
	KindUnknown     Kind = "UNKNOWN"
)

// Kinds 为摘要输出的固定顺序。
var Kinds = []Kind{KindISIN, KindCUSIP, KindSEDOL, KindBloombergID, KindTicker, KindUnknown}

// Label 返回人类可读名称。
func (k Kind) Label() string {
	switch k {
	case KindBloombergID:
		return "Bloomberg ID"
	case KindTicker:
		return "Ticker"
	case KindUnknown:
		return "Unknown"
	default:
		return string(k)
	}
}

// IDType 返回该种类对应的协议 idType；Unknown 无对应值，返回 ("", false)。
func (k Kind) IDType() (IDType, bool) {
	switch k {
	case KindISIN:
		return IDISIN, true
	case KindCUSIP:
		return IDCUSIP, true
	case KindSEDOL:
		return IDSEDOL, true
	case KindBloombergID:
		return IDBBGlobal, true
	case KindTicker:
		return IDExchSymbol, true
	default:
		return "", false
	}
}

// Confidence: 检测置信度。
//   - High: 具备前缀特征的格式（ISIN、Bloomberg ID）或明确的 ticker+交易所组合；
//   - Medium: 形状正确但无校验位验证（CUSIP、SEDOL）；
//   - Low: 无交易所限定的裸 ticker 与 Unknown。
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// DetectedIdentifier: 检测器产出的不可变记录。
// Value 为规范化后的 token（去空白；ticker 大写）。
type DetectedIdentifier struct {
	Value      string     `json:"value"`
	Kind       Kind       `json:"type"`
	ExchCode   string     `json:"exchCode,omitempty"`
	Confidence Confidence `json:"confidence"`
}

// Label 返回 "VALUE [EXCH]" 形式的展示名。
func (d DetectedIdentifier) Label() string {
	if d.ExchCode == "" {
		return d.Value
	}
	return d.Value + " [" + d.ExchCode + "]"
}

// Parsed: 文本/CSV 解析结果。
type Parsed struct {
	Identifiers []DetectedIdentifier `json:"identifiers"`
	Summary     string               `json:"summary"`
}

// Candidate: 候选请求（变体）。Origin 指回原始标识在输入序列中的位置，
// 批次拆分与乱序完成后仍可据此还原。
type Candidate struct {
	Request MappingRequest
	Origin  int
	Variant string // 仅 ticker 变体非空，如 "Common Stock"
}

// Batch: 一次远端调用携带的候选序列；长度不超过档位上限。
type Batch []Candidate

// Requests 提取批内请求（保持顺序）。
func (b Batch) Requests() []MappingRequest {
	out := make([]MappingRequest, len(b))
	for i, c := range b {
		out[i] = c.Request
	}
	return out
}

// Outcome: 单个候选的远端响应及其回指信息。
type Outcome struct {
	Response MappingResponse
	Origin   int
	Variant  string
}

// Resolution: 合并后每个原始标识对应的唯一结果。
type Resolution struct {
	Identifier DetectedIdentifier `json:"identifier"`
	Response   MappingResponse    `json:"response"`
	Variant    string             `json:"variant,omitempty"` // 命中数据的变体标签（若有）
}

// Found 报告是否解析出数据。
func (r Resolution) Found() bool { return r.Response.HasData() }

package pattern

import (
	"regexp"
	"strings"

	"figimap/pkg/contract"
)

// 形状规则（仅“形状有效”，不校验 ISIN/CUSIP/SEDOL 校验位）。
var (
	isinRe       = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{9}[0-9]$`)
	bbgRe        = regexp.MustCompile(`^BBG[A-Z0-9]{9}$`)
	cusipRe      = regexp.MustCompile(`^[A-Z0-9]{9}$`)
	sedolRe      = regexp.MustCompile(`^[A-Z0-9]{7}$`)
	tickerExchRe = regexp.MustCompile(`(?i)^([A-Z0-9]+)\s+([A-Z]{2})$`)
	bareTickerRe = regexp.MustCompile(`^[A-Z]{1,5}$`)
	looseTickRe  = regexp.MustCompile(`(?i)^[A-Z0-9.]{1,10}$`)
)

// Detect 将单个 token 归类为带置信度的标识。
// 全函数：任何输入都有结果，无法识别时返回 Unknown/Low。
// 判定顺序（先匹配者胜）：ISIN → Bloomberg ID → CUSIP → SEDOL → ticker+交易所 → 裸 ticker → 宽松 ticker → Unknown。
// "BBG" + 9 位同样满足 ISIN 形状（国家码 BB），此时按 Bloomberg ID 前缀签名归类。
func Detect(raw string) contract.DetectedIdentifier {
	s := strings.TrimSpace(raw)
	switch {
	case isinRe.MatchString(s) && !bbgRe.MatchString(s):
		return contract.DetectedIdentifier{Value: s, Kind: contract.KindISIN, Confidence: contract.ConfidenceHigh}
	case bbgRe.MatchString(s):
		return contract.DetectedIdentifier{Value: s, Kind: contract.KindBloombergID, Confidence: contract.ConfidenceHigh}
	case cusipRe.MatchString(s):
		return contract.DetectedIdentifier{Value: s, Kind: contract.KindCUSIP, Confidence: contract.ConfidenceMedium}
	case sedolRe.MatchString(s):
		return contract.DetectedIdentifier{Value: s, Kind: contract.KindSEDOL, Confidence: contract.ConfidenceMedium}
	}
	if m := tickerExchRe.FindStringSubmatch(s); m != nil {
		return contract.DetectedIdentifier{
			Value:      strings.ToUpper(m[1]),
			Kind:       contract.KindTicker,
			ExchCode:   strings.ToUpper(m[2]),
			Confidence: contract.ConfidenceHigh,
		}
	}
	if bareTickerRe.MatchString(s) {
		return contract.DetectedIdentifier{Value: s, Kind: contract.KindTicker, Confidence: contract.ConfidenceLow}
	}
	if looseTickRe.MatchString(s) {
		return contract.DetectedIdentifier{Value: strings.ToUpper(s), Kind: contract.KindTicker, Confidence: contract.ConfidenceLow}
	}
	return contract.DetectedIdentifier{Value: s, Kind: contract.KindUnknown, Confidence: contract.ConfidenceLow}
}

// ShapeValid 报告 value 是否符合 kind 的固定字符形状，并返回期望格式说明。
// 仅支持 ISIN/CUSIP/SEDOL/Bloomberg ID；其余种类返回 (false, "")。
func ShapeValid(kind contract.Kind, value string) (bool, string) {
	switch kind {
	case contract.KindISIN:
		return isinRe.MatchString(value), "2 letter country code + 9 alphanumeric characters + 1 check digit"
	case contract.KindCUSIP:
		return cusipRe.MatchString(value), "9 alphanumeric characters"
	case contract.KindSEDOL:
		return sedolRe.MatchString(value), "7 alphanumeric characters"
	case contract.KindBloombergID:
		return bbgRe.MatchString(value), "BBG + 9 alphanumeric characters"
	default:
		return false, ""
	}
}

// ParseKind 将用户输入的种类名（大小写不敏感，允许 BBG/BLOOMBERG 简写）映射为 Kind。
func ParseKind(s string) (contract.Kind, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ISIN":
		return contract.KindISIN, true
	case "CUSIP":
		return contract.KindCUSIP, true
	case "SEDOL":
		return contract.KindSEDOL, true
	case "BLOOMBERG_ID", "BLOOMBERG", "BBG":
		return contract.KindBloombergID, true
	case "TICKER":
		return contract.KindTicker, true
	default:
		return contract.KindUnknown, false
	}
}

// Detector 以包级规则实现 contract.Detector（无状态）。
type Detector struct{}

// New 创建 Detector。
func New() Detector { return Detector{} }

func (Detector) Detect(raw string) contract.DetectedIdentifier { return Detect(raw) }

func (Detector) Parse(text string) contract.Parsed { return Parse(text) }

var _ contract.Detector = Detector{}

package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"figimap/pkg/contract"
)

// 文本渲染（纯函数，无 I/O，JSON 除外）：
// - Response: 单个映射响应；
// - Resolution / Batch: 自动检测检索的单条与批量结果；
// - ParseDetails / Validation / RateLimit: 解析明细、形状校验与限流快照。

const notFoundMark = "⚠️ NOT FOUND"

// Response 渲染单个映射响应：error 优先，其次 warning，再次空结果，最后逐条结果。
func Response(r contract.MappingResponse) string {
	switch {
	case r.Error != "":
		return "Error: " + r.Error
	case r.Warning != "":
		return "Warning: " + r.Warning
	case !r.HasData():
		return "No results found"
	}
	parts := make([]string, len(r.Data))
	for i, d := range r.Data {
		var b strings.Builder
		fmt.Fprintf(&b, "Result %d:\n  FIGI: %s", i+1, d.FIGI)
		line := func(label, v string) {
			if v != "" {
				fmt.Fprintf(&b, "\n  %s: %s", label, v)
			}
		}
		line("Name", d.Name)
		line("Ticker", d.Ticker)
		line("Exchange", d.ExchCode)
		line("Market Sector", string(d.MarketSector))
		line("Security Type", string(d.SecurityType))
		line("Composite FIGI", d.CompositeFIGI)
		line("Share Class FIGI", d.ShareClassFIGI)
		parts[i] = b.String()
	}
	return strings.Join(parts, "\n\n")
}

// Detected 渲染检测结果一行："TYPE (Exchange: X) [conf confidence]"。
func Detected(id contract.DetectedIdentifier) string {
	var b strings.Builder
	b.WriteString(string(id.Kind))
	if id.ExchCode != "" {
		fmt.Fprintf(&b, " (Exchange: %s)", id.ExchCode)
	}
	fmt.Fprintf(&b, " [%s confidence]", id.Confidence)
	return b.String()
}

// Resolution 渲染单标识自动检测检索结果。
func Resolution(res contract.Resolution) string {
	var b strings.Builder
	b.WriteString("Detected type: " + Detected(res.Identifier) + "\n\n")
	if !res.Found() {
		fmt.Fprintf(&b, "%s: %q", notFoundMark, res.Identifier.Value)
		if res.Identifier.ExchCode != "" {
			b.WriteString(" on exchange " + res.Identifier.ExchCode)
		}
		b.WriteString(" returned no results.\n\n")
	}
	b.WriteString(Response(res.Response))
	return b.String()
}

// UnknownIdentifier 为无法识别类型时的提示。
func UnknownIdentifier(raw string) string {
	return fmt.Sprintf("Could not determine identifier type for %q. Please use a specific search or provide more context.", raw)
}

// ParseDetails 渲染摘要与逐条检测明细。
func ParseDetails(p contract.Parsed) string {
	lines := make([]string, len(p.Identifiers))
	for i, id := range p.Identifiers {
		lines[i] = fmt.Sprintf("%d. %q → %s", i+1, id.Value, Detected(id))
	}
	return p.Summary + "\n\nDetails:\n" + strings.Join(lines, "\n")
}

// Batch 渲染批量检索报告。Unknown 标识未被派发，不列入结果区。
func Batch(summary string, results []contract.Resolution) string {
	var found, notFound, blocks []string
	n := 0
	for _, r := range results {
		if r.Identifier.Kind == contract.KindUnknown {
			continue
		}
		n++
		label := r.Identifier.Label()
		status := " " + notFoundMark
		if r.Found() {
			found = append(found, label)
			status = ""
			if r.Variant != "" {
				status = " (" + r.Variant + ")"
			}
		} else {
			notFound = append(notFound, label)
		}
		blocks = append(blocks, fmt.Sprintf("[%d] %s: %s%s\n%s", n, r.Identifier.Kind, label, status, Response(r.Response)))
	}
	if n == 0 {
		return summary + "\n\nNo valid identifiers found to search."
	}
	var b strings.Builder
	b.WriteString(summary + "\n\n")
	b.WriteString(strings.Join(blocks, "\n\n---\n\n"))
	fmt.Fprintf(&b, "\n\n---\nResults: %d found, %d not found", len(found), len(notFound))
	if len(notFound) > 0 {
		b.WriteString("\n⚠️ Not found:")
		for _, l := range notFound {
			b.WriteString("\n  - " + l)
		}
	}
	return b.String()
}

// Mapped 渲染原始映射的请求/响应对。
func Mapped(reqs []contract.MappingRequest, resps []contract.MappingResponse) string {
	parts := make([]string, 0, len(resps))
	for i, r := range resps {
		parts = append(parts, fmt.Sprintf("[%d] %s: %s\n%s", i+1, reqs[i].IDType, reqs[i].IDValue, Response(r)))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// Validation 渲染形状校验结论。
func Validation(kind contract.Kind, value string, ok bool, format string) string {
	if ok {
		return fmt.Sprintf("Valid %s: %q", kind, value)
	}
	return fmt.Sprintf("Invalid %s: %q\nExpected format: %s", kind, value, format)
}

// RateLimit 渲染限流快照；now 用于相对时间。
func RateLimit(info contract.RateLimitInfo, ok bool, now time.Time) string {
	if !ok {
		return "No rate limit information available. Make a request first to get rate limit data."
	}
	return strings.Join([]string{
		"OpenFIGI API Rate Limit Status:",
		fmt.Sprintf("  Limit: %s requests", humanize.Comma(int64(info.Limit))),
		fmt.Sprintf("  Remaining: %s requests", humanize.Comma(int64(info.Remaining))),
		fmt.Sprintf("  Resets: %s (%s)", info.Reset.UTC().Format("2006-01-02T15:04:05.000Z"), humanize.RelTime(info.Reset, now, "ago", "from now")),
	}, "\n")
}

// JSON 以缩进 JSON 写出 v（--json 输出）。
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

package pattern

import (
	"fmt"
	"regexp"
	"strings"

	"figimap/pkg/contract"
)

var (
	lineBreakRe = regexp.MustCompile(`\r\n|\r|\n`)
	columnRe    = regexp.MustCompile(`[,\t]`)
)

// headerKeywords: 首个非空行（小写后）包含其一即视为表头。
// 启发式：数据行恰好含这些词时也会被当作表头跳过。
var headerKeywords = []string{"ticker", "isin", "cusip", "sedol", "symbol", "identifier"}

// Parse 将自由文本/CSV 输入解析为检测结果序列与按种类计数的摘要。
// 任意行边界（CR/LF/CRLF）切分，丢弃空行；每行取第一个逗号或制表符分隔列。
func Parse(text string) contract.Parsed {
	lines := nonBlankLines(text)
	if len(lines) > 0 && looksLikeHeader(lines[0]) {
		lines = lines[1:]
	}

	ids := make([]contract.DetectedIdentifier, 0, len(lines))
	for _, ln := range lines {
		v := strings.TrimSpace(columnRe.Split(ln, 2)[0])
		if v == "" {
			continue
		}
		ids = append(ids, Detect(v))
	}
	return contract.Parsed{Identifiers: ids, Summary: Summarize(ids)}
}

// Summarize 渲染按固定种类顺序的计数摘要；计数为 0 的种类省略。
func Summarize(ids []contract.DetectedIdentifier) string {
	counts := make(map[contract.Kind]int, len(contract.Kinds))
	for _, id := range ids {
		counts[id.Kind]++
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Detected %d identifiers:", len(ids))
	for _, k := range contract.Kinds {
		if n := counts[k]; n > 0 {
			fmt.Fprintf(&b, "\n  - %s: %d", k.Label(), n)
		}
	}
	return b.String()
}

func nonBlankLines(text string) []string {
	raw := lineBreakRe.Split(text, -1)
	out := raw[:0]
	for _, ln := range raw {
		if strings.TrimSpace(ln) != "" {
			out = append(out, ln)
		}
	}
	return out
}

func looksLikeHeader(line string) bool {
	l := strings.ToLower(strings.TrimSpace(line))
	for _, kw := range headerKeywords {
		if strings.Contains(l, kw) {
			return true
		}
	}
	return false
}

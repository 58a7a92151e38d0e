package contract

// Detector: 标识分类与文本解析。
// 约束：全函数，任何输入都有结果；无法识别的 token 归为 Unknown/Low，从不返回错误。
type Detector interface {
	Detect(raw string) DetectedIdentifier
	Parse(text string) Parsed
}

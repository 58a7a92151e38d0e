package contract

// Merger: 将多变体的远端响应按原始标识收敛为唯一结果。
// 约束：
//  1. 输出与 ids 一一对应、顺序一致；
//  2. 同一 Origin 下优先取“第一个”带非空 data 的响应；均无 data 时取首个响应；
//  3. 无任何响应引用的 Origin 合成仅含 warning 的响应。
type Merger interface {
	Merge(ids []DetectedIdentifier, outcomes []Outcome) []Resolution
}

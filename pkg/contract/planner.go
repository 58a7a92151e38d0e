package contract

// Planner: 将检测结果展开为候选请求并切分为批。
// 约束：
//  1. 每批长度 <= tierCap；
//  2. Ticker 展开为多个变体，其余种类恰为一个请求；
//  3. 每个候选保留 Origin 回指；
//  4. 批间、批内保持展开序列的相对顺序（同一 ticker 的变体可落入不同批）。
type Planner interface {
	Plan(ids []DetectedIdentifier, tierCap int) ([]Batch, error)
}

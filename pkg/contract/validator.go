package contract

import "strings"

// 校验库函数（纯函数，无 I/O）：
// - ValidateRequest: 单条请求的字段约束；
// - ValidateBatch:   批长度（协议绝对上下限）+ 逐条校验，错误携带失败索引。

// ValidateRequest 校验单条请求；返回的 *ValidationError 未绑定索引。
func ValidateRequest(r MappingRequest) *ValidationError {
	if !r.IDType.Valid() {
		return &ValidationError{Msg: "idType: unknown value " + quote(string(r.IDType)), Index: -1}
	}
	if strings.TrimSpace(r.IDValue) == "" {
		return &ValidationError{Msg: "idValue: must be a non-empty string", Index: -1}
	}
	if r.Currency != "" && len(r.Currency) != 3 {
		return &ValidationError{Msg: "currency: must be exactly 3 characters", Index: -1}
	}
	if r.StateCode != "" && len(r.StateCode) != 2 {
		return &ValidationError{Msg: "stateCode: must be exactly 2 characters", Index: -1}
	}
	if r.MarketSecDes != "" && !r.MarketSecDes.Valid() {
		return &ValidationError{Msg: "marketSecDes: unknown value " + quote(string(r.MarketSecDes)), Index: -1}
	}
	if r.SecurityType != "" && !r.SecurityType.Valid() {
		return &ValidationError{Msg: "securityType: unknown value " + quote(string(r.SecurityType)), Index: -1}
	}
	if r.OptionType != "" && r.OptionType != "Put" && r.OptionType != "Call" {
		return &ValidationError{Msg: "optionType: must be Put or Call", Index: -1}
	}
	return nil
}

// ValidateBatch 校验批长度与逐条请求。
func ValidateBatch(reqs []MappingRequest) error {
	if len(reqs) == 0 {
		return NewValidationError("requests must be a non-empty array, provide at least one mapping request")
	}
	if len(reqs) > MaxRequestsPerCall {
		return NewValidationError("too many requests: %d, maximum %d allowed per call, split into multiple batches", len(reqs), MaxRequestsPerCall)
	}
	for i, r := range reqs {
		if ve := ValidateRequest(r); ve != nil {
			ve.Index = i
			return ve
		}
	}
	return nil
}

func quote(s string) string { return "\"" + s + "\"" }

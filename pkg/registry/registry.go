package registry

import (
	"bytes"
	"encoding/json"

	"figimap/pkg/contract"
	"figimap/plugins/detector/pattern"
	"figimap/plugins/mapper/flaky"
	"figimap/plugins/mapper/mock"
	"figimap/plugins/mapper/openfigi"
	"figimap/plugins/merger/firstdata"
	"figimap/plugins/planner/variant"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// noOptions 供无选项组件使用：空对象或缺省均可，出现任何字段即报错。
type noOptions struct{}

// NewDetector 工厂签名：接收原样 JSON Options。
type NewDetector func(raw json.RawMessage) (contract.Detector, error)

// NewPlanner 工厂签名：接收原样 JSON Options。
type NewPlanner func(raw json.RawMessage) (contract.Planner, error)

// NewMapper 工厂签名：接收原样 JSON Options。
type NewMapper func(raw json.RawMessage) (contract.Mapper, error)

// NewMerger 工厂签名：接收原样 JSON Options。
type NewMerger func(raw json.RawMessage) (contract.Merger, error)

// Detector 工厂注册表（显式、零反射）。
var Detector = map[string]NewDetector{
	// pattern: 按形状级联的正则检测器
	"pattern": func(raw json.RawMessage) (contract.Detector, error) {
		if err := strictUnmarshal(raw, &noOptions{}); err != nil {
			return nil, err
		}
		return pattern.New(), nil
	},
}

// Planner 工厂注册表。
var Planner = map[string]NewPlanner{
	// variant: ticker 展开为证券类型变体后按档位上限切批
	"variant": func(raw json.RawMessage) (contract.Planner, error) {
		var opts variant.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return variant.New(&opts), nil
	},
}

// Mapper 工厂注册表。
var Mapper = map[string]NewMapper{
	"openfigi": func(raw json.RawMessage) (contract.Mapper, error) {
		var opts openfigi.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return openfigi.NewWithOptions(opts)
	},
	"mock": func(raw json.RawMessage) (contract.Mapper, error) {
		if err := strictUnmarshal(raw, &mock.Options{}); err != nil {
			return nil, err
		}
		return mock.New(raw)
	},
	"flaky": func(raw json.RawMessage) (contract.Mapper, error) {
		if err := strictUnmarshal(raw, &flaky.Options{}); err != nil {
			return nil, err
		}
		return flaky.New(raw)
	},
}

// Merger 工厂注册表。
var Merger = map[string]NewMerger{
	// firstdata: 同一标识多个变体中首个带数据者胜出
	"firstdata": func(raw json.RawMessage) (contract.Merger, error) {
		if err := strictUnmarshal(raw, &noOptions{}); err != nil {
			return nil, err
		}
		return firstdata.New(), nil
	},
}

package contract

import "time"

// IDType: 远端映射协议的标识类型枚举（idType）。
type IDType string

const (
	IDISIN                    IDType = "ID_ISIN"
	IDBBUnique                IDType = "ID_BB_UNIQUE"
	IDSEDOL                   IDType = "ID_SEDOL"
	IDCommon                  IDType = "ID_COMMON"
	IDWertpapier              IDType = "ID_WERTPAPIER"
	IDCUSIP                   IDType = "ID_CUSIP"
	IDBB                      IDType = "ID_BB"
	IDItaly                   IDType = "ID_ITALY"
	IDExchSymbol              IDType = "ID_EXCH_SYMBOL"
	IDFullExchangeSymbol      IDType = "ID_FULL_EXCHANGE_SYMBOL"
	IDCompositeBBGlobal       IDType = "COMPOSITE_ID_BB_GLOBAL"
	IDBBGlobalShareClassLevel IDType = "ID_BB_GLOBAL_SHARE_CLASS_LEVEL"
	IDBBGlobal                IDType = "ID_BB_GLOBAL"
	IDBBSecNumDes             IDType = "ID_BB_SEC_NUM_DES"
	IDBBSecNum                IDType = "ID_BB_SEC_NUM"
	IDCINS                    IDType = "ID_CINS"
	IDBelgium                 IDType = "ID_BELGIUM"
	IDDenmark                 IDType = "ID_DENMARK"
	IDFrance                  IDType = "ID_FRANCE"
	IDJapan                   IDType = "ID_JAPAN"
	IDLuxembourg              IDType = "ID_LUXEMBOURG"
	IDNetherlands             IDType = "ID_NETHERLANDS"
	IDPoland                  IDType = "ID_POLAND"
	IDPortugal                IDType = "ID_PORTUGAL"
	IDSweden                  IDType = "ID_SWEDEN"
	IDShortCode               IDType = "ID_SHORT_CODE"
)

var knownIDTypes = map[IDType]struct{}{
	IDISIN: {}, IDBBUnique: {}, IDSEDOL: {}, IDCommon: {}, IDWertpapier: {}, IDCUSIP: {},
	IDBB: {}, IDItaly: {}, IDExchSymbol: {}, IDFullExchangeSymbol: {}, IDCompositeBBGlobal: {},
	IDBBGlobalShareClassLevel: {}, IDBBGlobal: {}, IDBBSecNumDes: {}, IDBBSecNum: {}, IDCINS: {},
	IDBelgium: {}, IDDenmark: {}, IDFrance: {}, IDJapan: {}, IDLuxembourg: {}, IDNetherlands: {},
	IDPoland: {}, IDPortugal: {}, IDSweden: {}, IDShortCode: {},
}

// Valid 报告是否为协议已知的 idType。
func (t IDType) Valid() bool { _, ok := knownIDTypes[t]; return ok }

// SecurityType: securityType 过滤值。
type SecurityType string

const (
	SecCommonStock   SecurityType = "Common Stock"
	SecPreference    SecurityType = "Preference"
	SecADR           SecurityType = "ADR"
	SecOpenEndFund   SecurityType = "Open-End Fund"
	SecClosedEndFund SecurityType = "Closed-End Fund"
	SecETF           SecurityType = "ETF"
	SecETN           SecurityType = "ETN"
	SecUnit          SecurityType = "Unit"
	SecMutualFund    SecurityType = "Mutual Fund"
	SecMoneyMarket   SecurityType = "Money Market"
	SecCommodity     SecurityType = "Commodity"
	SecCurrency      SecurityType = "Currency"
	SecOption        SecurityType = "Option"
	SecIndex         SecurityType = "Index"
)

var knownSecurityTypes = map[SecurityType]struct{}{
	SecCommonStock: {}, SecPreference: {}, SecADR: {}, SecOpenEndFund: {}, SecClosedEndFund: {},
	SecETF: {}, SecETN: {}, SecUnit: {}, SecMutualFund: {}, SecMoneyMarket: {}, SecCommodity: {},
	SecCurrency: {}, SecOption: {}, SecIndex: {},
}

func (s SecurityType) Valid() bool { _, ok := knownSecurityTypes[s]; return ok }

// MarketSector: marketSecDes 过滤值。
type MarketSector string

const (
	SectorAll    MarketSector = "All"
	SectorComdty MarketSector = "Comdty"
	SectorCurncy MarketSector = "Curncy"
	SectorEquity MarketSector = "Equity"
	SectorGovt   MarketSector = "Govt"
	SectorCorp   MarketSector = "Corp"
	SectorIndex  MarketSector = "Index"
	SectorMoney  MarketSector = "Money"
	SectorMtge   MarketSector = "Mtge"
	SectorMuni   MarketSector = "Muni"
	SectorPref   MarketSector = "Pref"
)

var knownSectors = map[MarketSector]struct{}{
	SectorAll: {}, SectorComdty: {}, SectorCurncy: {}, SectorEquity: {}, SectorGovt: {}, SectorCorp: {},
	SectorIndex: {}, SectorMoney: {}, SectorMtge: {}, SectorMuni: {}, SectorPref: {},
}

func (m MarketSector) Valid() bool { _, ok := knownSectors[m]; return ok }

// MappingRequest: 出站的规范化请求记录（JSON 字段名与远端协议一致）。
// 约束：IDValue 非空，否则在派发前拒绝。
type MappingRequest struct {
	IDType                  IDType       `json:"idType"`
	IDValue                 string       `json:"idValue"`
	ExchCode                string       `json:"exchCode,omitempty"`
	MICCode                 string       `json:"micCode,omitempty"`
	Currency                string       `json:"currency,omitempty"` // 3 位币种
	MarketSecDes            MarketSector `json:"marketSecDes,omitempty"`
	SecurityType            SecurityType `json:"securityType,omitempty"`
	SecurityType2           string       `json:"securityType2,omitempty"`
	IncludeUnlistedEquities *bool        `json:"includeUnlistedEquities,omitempty"`
	OptionType              string       `json:"optionType,omitempty"` // Put|Call
	Strike                  []float64    `json:"strike,omitempty"`
	ContractSize            *float64     `json:"contractSize,omitempty"`
	Coupon                  []float64    `json:"coupon,omitempty"`
	Expiration              []float64    `json:"expiration,omitempty"`
	Maturity                []float64    `json:"maturity,omitempty"`
	StateCode               string       `json:"stateCode,omitempty"` // 2 位州代码
}

// Filters: 单标识检索时可附加的过滤字段（MappingRequest 的子集）。
type Filters struct {
	ExchCode                string
	MICCode                 string
	Currency                string
	MarketSecDes            MarketSector
	SecurityType            SecurityType
	SecurityType2           string
	IncludeUnlistedEquities *bool
}

// Apply 将非空过滤字段写入请求；已有值被覆盖。
func (f Filters) Apply(r *MappingRequest) {
	if f.ExchCode != "" {
		r.ExchCode = f.ExchCode
	}
	if f.MICCode != "" {
		r.MICCode = f.MICCode
	}
	if f.Currency != "" {
		r.Currency = f.Currency
	}
	if f.MarketSecDes != "" {
		r.MarketSecDes = f.MarketSecDes
	}
	if f.SecurityType != "" {
		r.SecurityType = f.SecurityType
	}
	if f.SecurityType2 != "" {
		r.SecurityType2 = f.SecurityType2
	}
	if f.IncludeUnlistedEquities != nil {
		v := *f.IncludeUnlistedEquities
		r.IncludeUnlistedEquities = &v
	}
}

// FigiResult: 远端解析出的单条证券元数据。
type FigiResult struct {
	FIGI                string       `json:"figi"`
	SecurityType        SecurityType `json:"securityType,omitempty"`
	MarketSector        MarketSector `json:"marketSector,omitempty"`
	Ticker              string       `json:"ticker,omitempty"`
	Name                string       `json:"name,omitempty"`
	ExchCode            string       `json:"exchCode,omitempty"`
	ShareClassFIGI      string       `json:"shareClassFIGI,omitempty"`
	CompositeFIGI       string       `json:"compositeFIGI,omitempty"`
	SecurityType2       string       `json:"securityType2,omitempty"`
	SecurityDescription string       `json:"securityDescription,omitempty"`
	Metadata            string       `json:"metadata,omitempty"`
}

// MappingResponse: 单个请求的入站结果。Data/Warning/Error 三者至多一个承载主信号。
type MappingResponse struct {
	Data    []FigiResult `json:"data,omitempty"`
	Warning string       `json:"warning,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// HasData 报告是否携带非空 data。
func (r MappingResponse) HasData() bool { return len(r.Data) > 0 }

// RateLimitInfo: 最近一次响应头中的限流快照。
type RateLimitInfo struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	Reset     time.Time `json:"reset"`
}

package domain

// MarketType tags the concrete market implementation behind a MarketInfo.
type MarketType string

// Known market types.
const (
	MarketTypeUniLP   MarketType = "uniswap_lp"
	MarketTypeAaveV3  MarketType = "aave_v3"
	MarketTypeSqueeth MarketType = "squeeth"
)

// MarketInfo identifies a market attached to a broker. Identity is the name.
type MarketInfo struct {
	Name string
	Type MarketType
}

// NewMarketInfo creates a MarketInfo.
func NewMarketInfo(name string, typ MarketType) MarketInfo {
	return MarketInfo{Name: name, Type: typ}
}

func (m MarketInfo) String() string {
	return m.Name
}

package instruments

// Instrument is the contract metadata exposed by /instruments.
type Instrument struct {
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	Category     string  `json:"category"`
	Digits       int     `json:"digits"`
	ContractSize float64 `json:"contractSize"`
	MinVolume    float64 `json:"minVolume"`
	MaxVolume    float64 `json:"maxVolume"`
	VolumeStep   float64 `json:"volumeStep"`
}

// Defaults is the static instrument list served when the upstream
// instrument endpoint cannot be reached.
func Defaults() []Instrument {
	return []Instrument{
		{Symbol: "EURUSD", Name: "Euro vs US Dollar", Category: "forex", Digits: 5, ContractSize: 100000, MinVolume: 0.01, MaxVolume: 100, VolumeStep: 0.01},
		{Symbol: "GBPUSD", Name: "Great Britain Pound vs US Dollar", Category: "forex", Digits: 5, ContractSize: 100000, MinVolume: 0.01, MaxVolume: 100, VolumeStep: 0.01},
		{Symbol: "USDJPY", Name: "US Dollar vs Japanese Yen", Category: "forex", Digits: 3, ContractSize: 100000, MinVolume: 0.01, MaxVolume: 100, VolumeStep: 0.01},
		{Symbol: "USDCHF", Name: "US Dollar vs Swiss Franc", Category: "forex", Digits: 5, ContractSize: 100000, MinVolume: 0.01, MaxVolume: 100, VolumeStep: 0.01},
		{Symbol: "USDCAD", Name: "US Dollar vs Canadian Dollar", Category: "forex", Digits: 5, ContractSize: 100000, MinVolume: 0.01, MaxVolume: 100, VolumeStep: 0.01},
		{Symbol: "AUDUSD", Name: "Australian Dollar vs US Dollar", Category: "forex", Digits: 5, ContractSize: 100000, MinVolume: 0.01, MaxVolume: 100, VolumeStep: 0.01},
		{Symbol: "NZDUSD", Name: "New Zealand Dollar vs US Dollar", Category: "forex", Digits: 5, ContractSize: 100000, MinVolume: 0.01, MaxVolume: 100, VolumeStep: 0.01},
		{Symbol: "EURGBP", Name: "Euro vs Great Britain Pound", Category: "forex", Digits: 5, ContractSize: 100000, MinVolume: 0.01, MaxVolume: 100, VolumeStep: 0.01},
		{Symbol: "EURJPY", Name: "Euro vs Japanese Yen", Category: "forex", Digits: 3, ContractSize: 100000, MinVolume: 0.01, MaxVolume: 100, VolumeStep: 0.01},
		{Symbol: "GBPJPY", Name: "Great Britain Pound vs Japanese Yen", Category: "forex", Digits: 3, ContractSize: 100000, MinVolume: 0.01, MaxVolume: 100, VolumeStep: 0.01},
		{Symbol: "XAUUSD", Name: "Gold vs US Dollar", Category: "metals", Digits: 2, ContractSize: 100, MinVolume: 0.01, MaxVolume: 100, VolumeStep: 0.01},
		{Symbol: "XAGUSD", Name: "Silver vs US Dollar", Category: "metals", Digits: 3, ContractSize: 5000, MinVolume: 0.01, MaxVolume: 100, VolumeStep: 0.01},
		{Symbol: "BTCUSD", Name: "Bitcoin vs US Dollar", Category: "crypto", Digits: 2, ContractSize: 1, MinVolume: 0.001, MaxVolume: 100, VolumeStep: 0.001},
		{Symbol: "ETHUSD", Name: "Ethereum vs US Dollar", Category: "crypto", Digits: 2, ContractSize: 1, MinVolume: 0.01, MaxVolume: 1000, VolumeStep: 0.01},
		{Symbol: "BNBUSD", Name: "Binance Coin vs US Dollar", Category: "crypto", Digits: 2, ContractSize: 1, MinVolume: 0.01, MaxVolume: 1000, VolumeStep: 0.01},
		{Symbol: "XRPUSD", Name: "Ripple vs US Dollar", Category: "crypto", Digits: 4, ContractSize: 1, MinVolume: 1, MaxVolume: 100000, VolumeStep: 1},
		{Symbol: "ADAUSD", Name: "Cardano vs US Dollar", Category: "crypto", Digits: 4, ContractSize: 1, MinVolume: 1, MaxVolume: 100000, VolumeStep: 1},
		{Symbol: "SOLUSD", Name: "Solana vs US Dollar", Category: "crypto", Digits: 2, ContractSize: 1, MinVolume: 0.01, MaxVolume: 10000, VolumeStep: 0.01},
		{Symbol: "DOGEUSD", Name: "Dogecoin vs US Dollar", Category: "crypto", Digits: 5, ContractSize: 1, MinVolume: 1, MaxVolume: 1000000, VolumeStep: 1},
		{Symbol: "LTCUSD", Name: "Litecoin vs US Dollar", Category: "crypto", Digits: 2, ContractSize: 1, MinVolume: 0.01, MaxVolume: 10000, VolumeStep: 0.01},
	}
}

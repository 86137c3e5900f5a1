package model

// PriceInfo is the latest traded price of a symbol on an exchange.
type PriceInfo struct {
	Exchange string  `json:"exchange"`
	Symbol   string  `json:"symbol"`
	Currency string  `json:"currency"`
	Price    float64 `json:"price"`
}

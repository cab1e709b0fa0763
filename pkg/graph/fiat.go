package graph

import "strings"

var fiatCurrencies = map[string]bool{
	"USD": true, "CAD": true, "EUR": true, "GBP": true,
	"JPY": true, "AUD": true, "CHF": true, "CNY": true,
	"HKD": true, "SGD": true, "NZD": true, "MXN": true,
	"BRL": true, "INR": true, "KRW": true, "TRY": true,
}

// IsFiatCurrency reports whether a currency code is a fiat currency rather
// than a token. Matching is case-insensitive.
func IsFiatCurrency(code string) bool {
	return fiatCurrencies[strings.ToUpper(code)]
}

// IsFiat reports whether the node holds a fiat currency
func (n *Node) IsFiat() bool {
	return IsFiatCurrency(n.Currency)
}

package models

import "github.com/shopspring/decimal"

// Money columns travel as JSON numbers (salary_amount: 812.5, not "812.5").
// Decoding accepts both forms, so cached payloads written earlier still load.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

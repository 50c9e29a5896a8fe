package models

import "time"

// BankCard is the simulated payment card attached to an account. It exists
// for display only; no card network is involved.
type BankCard struct {
	Number   string    `json:"number"`
	Holder   string    `json:"holder"`
	Expiry   string    `json:"expiry"` // MM/YY
	CVV      string    `json:"cvv"`
	IssuedAt time.Time `json:"issuedAt"`
}

// Masked returns the card number with all but the last four digits hidden,
// for logs and list views.
func (c BankCard) Masked() string {
	if len(c.Number) < 4 {
		return c.Number
	}
	masked := make([]byte, len(c.Number))
	for i := range masked {
		masked[i] = '*'
	}
	copy(masked[len(masked)-4:], c.Number[len(c.Number)-4:])
	return string(masked)
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FundsOnHoldStatusActive is the only hold status that reduces usable balance
const FundsOnHoldStatusActive = "active"

// Last5Size is how many recent transaction ids a balance document keeps
const Last5Size = 5

// WalletBalance is the ledger projection of a wallet
type WalletBalance struct {
	UserID    string          `json:"userId"`
	Total     decimal.Decimal `json:"total"`
	Currency  string          `json:"currency"`
	Count     int             `json:"count"`
	Last5     []string        `json:"last5"`
	UpdatedAt *time.Time      `json:"updated_at,omitempty"`
}

// Apply moves the balance by amount and records transactionID as most recent
func (b *WalletBalance) Apply(transactionID string, amount decimal.Decimal, at time.Time) {
	b.Total = b.Total.Add(amount)
	b.Count++
	b.Last5 = append([]string{transactionID}, b.Last5...)
	if len(b.Last5) > Last5Size {
		b.Last5 = b.Last5[:Last5Size]
	}
	b.UpdatedAt = &at
}

// FundsOnHold is a reservation against a wallet that has not cleared into the ledger
type FundsOnHold struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Currency  string          `json:"currency"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	Reason    string          `json:"reason,omitempty"`
	CreatedAt *time.Time      `json:"created_at,omitempty"`
}

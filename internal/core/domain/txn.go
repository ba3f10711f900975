package domain

import "time"

// Transaction is a transaction touching a watched address, as reported by the provider.
type Transaction struct {
	Hash    string    `json:"hash"`
	Time    time.Time `json:"time"`
	Value   int64     `json:"value"`   // balance change in duffs, negative when spending
	Ordinal int64     `json:"ordinal"` // 1-based position in the address history, 0 if unknown
	BlockID int64     `json:"block_id"`
}

// Incoming reports whether the transaction increased the address balance.
func (t Transaction) Incoming() bool {
	return t.Value > 0
}

package domain

import "time"

// AuditEntry is a single append-only audit row. Protocol lifecycle events
// that carry no ledger semantics (admin transfers, AMM creation/pause/fee
// changes) are recorded here with their raw parameters as the detail map.
type AuditEntry struct {
	ID        string         `json:"id"` // deterministic per source event
	Event     string         `json:"event"`
	MarketID  string         `json:"market_id,omitempty"`
	Detail    map[string]any `json:"detail"`
	TxHash    string         `json:"tx_hash"`
	LogIndex  uint           `json:"log_index"`
	CreatedAt time.Time      `json:"created_at"` // block timestamp
}

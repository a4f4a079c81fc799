package ledger

// LedgerEntry is one settled transaction as stored in the ledger table.
// Entries are created by the worker and never deleted.
type LedgerEntry struct {
	ID              uint32  `json:"id" yaml:"id"`
	TransactionType string  `json:"type" yaml:"type"`
	Timestamp       string  `json:"timestamp" yaml:"timestamp"`
	Source          string  `json:"source" yaml:"source"`
	Destination     string  `json:"destination" yaml:"destination"`
	Amount          float64 `json:"amount" yaml:"amount"`
	LedgerHash      string  `json:"ledger_hash" yaml:"ledger_hash"`
	ReceiptID       uint32  `json:"receipt_id" yaml:"receipt_id"`
	ReceiptHash     string  `json:"receipt_hash" yaml:"receipt_hash"`
}

// UserAccount is one row of the users table.
type UserAccount struct {
	ID           uint32  `json:"id"`
	Name         string  `json:"name"`
	PasswordHash string  `json:"-"`
	Balance      float64 `json:"balance"`
	Created      string  `json:"created"`
	LastLogin    string  `json:"last_login"`
}

package ledger

// Selector names one ledger column and a value for it. It is a sealed
// union: only the By* types below implement it.
type Selector interface {
	selector()
}

// ByID selects on the id column.
type ByID uint32

// ByTransactionType selects on the type column.
type ByTransactionType string

// ByTimestamp selects on the timestamp column.
type ByTimestamp string

// BySource selects on the source column.
type BySource string

// ByDestination selects on the destination column.
type ByDestination string

// ByAmount selects on the amount column.
type ByAmount float64

// ByLedgerHash selects on the ledger_hash column.
type ByLedgerHash string

// ByReceiptID selects on the receipt_id column.
type ByReceiptID uint32

// ByReceiptHash selects on the receipt_hash column.
type ByReceiptHash string

func (ByID) selector() {}
func (ByTransactionType) selector() {}
func (ByTimestamp) selector() {}
func (BySource) selector() {}
func (ByDestination) selector() {}
func (ByAmount) selector() {}
func (ByLedgerHash) selector() {}
func (ByReceiptID) selector() {}
func (ByReceiptHash) selector() {}

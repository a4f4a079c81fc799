package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/mr-tron/base58"

	"github.com/roach88/ledgerd/internal/ledger"
)

// chainHash links e to the previous row. Fields are NUL-separated so no two
// distinct entries hash the same input.
func chainHash(prev string, e ledger.LedgerEntry) string {
	h := sha256.New()
	for _, field := range []string{
		prev,
		e.TransactionType,
		e.Timestamp,
		e.Source,
		e.Destination,
		strconv.FormatFloat(e.Amount, 'f', -1, 64),
	} {
		h.Write([]byte(field))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// receiptHash binds a receipt id to the row's ledger hash.
func receiptHash(receiptID uint32, ledgerHash string) string {
	sum := sha256.Sum256([]byte(strconv.FormatUint(uint64(receiptID), 10) + ":" + ledgerHash))
	return base58.Encode(sum[:])
}

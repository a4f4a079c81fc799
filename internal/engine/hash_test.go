package engine

import (
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgerd/internal/ledger"
)

func TestChainHash_DependsOnPrevious(t *testing.T) {
	e := ledger.LedgerEntry{TransactionType: "send", Source: "a", Destination: "b", Amount: 1}

	assert.Equal(t, chainHash("", e), chainHash("", e))
	assert.NotEqual(t, chainHash("", e), chainHash("x", e))
}

func TestChainHash_FieldBoundaries(t *testing.T) {
	a := ledger.LedgerEntry{Source: "ab", Destination: "c"}
	b := ledger.LedgerEntry{Source: "a", Destination: "bc"}

	assert.NotEqual(t, chainHash("", a), chainHash("", b))
}

func TestReceiptHash_IsBase58SHA256(t *testing.T) {
	h := receiptHash(7, "abc")

	raw, err := base58.Decode(h)
	require.NoError(t, err)
	assert.Len(t, raw, 32)
	assert.NotEqual(t, h, receiptHash(8, "abc"))
}

package protocol

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/roach88/ledgerd/internal/ledger"
)

// Envelope is the client message. Unknown fields are ignored.
type Envelope struct {
	Kind string `json:"kind"`
	Args string `json:"args"`
}

// kindsByName indexes external kinds by wire name.
var kindsByName = func() map[string]ledger.Kind {
	m := make(map[string]ledger.Kind)
	for _, k := range ledger.ExternalKinds() {
		m[k.String()] = k
	}
	return m
}()

// argCounts is the exact token count for kinds that check arity.
// Kinds not listed pass their tokens through.
var argCounts = map[ledger.Kind]int{
	ledger.KindRegister:   2,
	ledger.KindWhoami:     2,
	ledger.KindRename:     2,
	ledger.KindBalance:    1,
	ledger.KindSend:       3,
	ledger.KindAudit:      1,
	ledger.KindDisconnect: 0,
}

// Decode parses one client message into a Command addressed to replyTo.
//
// A message that is not a JSON envelope yields a JSON Error. When w is not
// nil that error is also written to w immediately. Unknown kinds and bad
// arguments only return the error; the caller decides what to write.
//
// Decode has no other side effects.
func Decode(msg []byte, replyTo chan<- ledger.Reply, w io.Writer) (*ledger.Command, error) {
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		derr := newDecodeError(CodeJSON, "%v", err)
		if w != nil {
			// Best effort; the caller still gets derr.
			_ = WriteError(w, derr.Body())
		}
		return nil, derr
	}

	kind, err := ParseKind(env.Kind)
	if err != nil {
		return nil, err
	}

	args := strings.Fields(env.Args)

	if kind == ledger.KindQuery {
		sel, err := ParseSelector(args)
		if err != nil {
			return nil, err
		}
		return ledger.NewCommand(kind, sel, replyTo), nil
	}

	if want, ok := argCounts[kind]; ok && len(args) != want {
		return nil, newDecodeError(CodeArgument, "%s takes %d args, got %d", kind, want, len(args))
	}
	return ledger.NewCommand(kind, nil, replyTo, ledger.WithArgs(args...)), nil
}

// ParseKind resolves a client kind name case-insensitively.
func ParseKind(name string) (ledger.Kind, error) {
	folded := cases.Fold().String(strings.TrimSpace(name))
	if folded == "" {
		return 0, newDecodeError(CodeKind, "missing kind")
	}
	kind, ok := kindsByName[folded]
	if !ok {
		return 0, newDecodeError(CodeKind, "unknown kind %q", name)
	}
	return kind, nil
}

// ParseSelector maps "<field> <value...>" tokens to a Selector. Value
// tokens are joined by single spaces.
func ParseSelector(args []string) (ledger.Selector, error) {
	if len(args) < 2 {
		return nil, newDecodeError(CodeArgument, "query takes <field> <value>, got %d args", len(args))
	}

	field, value := args[0], strings.Join(args[1:], " ")
	switch field {
	case "id":
		n, err := parseUint32(field, value)
		if err != nil {
			return nil, err
		}
		return ledger.ByID(n), nil
	case "type", "transactionType":
		return ledger.ByTransactionType(value), nil
	case "timestamp":
		return ledger.ByTimestamp(value), nil
	case "source":
		return ledger.BySource(value), nil
	case "destination":
		return ledger.ByDestination(value), nil
	case "amount":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, newDecodeError(CodeArgument, "amount %q is not a number", value)
		}
		return ledger.ByAmount(f), nil
	case "ledger_hash", "ledgerHash":
		return ledger.ByLedgerHash(value), nil
	case "receipt_id", "receiptId":
		n, err := parseUint32(field, value)
		if err != nil {
			return nil, err
		}
		return ledger.ByReceiptID(n), nil
	case "receipt_hash", "receiptHash":
		return ledger.ByReceiptHash(value), nil
	default:
		return nil, newDecodeError(CodeArgument, "unknown field %q", field)
	}
}

func parseUint32(field, value string) (uint32, error) {
	n, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return 0, newDecodeError(CodeArgument, "%s %q is not an unsigned 32-bit integer", field, value)
	}
	return uint32(n), nil
}

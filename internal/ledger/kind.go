package ledger

// Kind identifies what a Command asks the worker to do.
type Kind int

const (
	KindRegister Kind = iota + 1
	KindWhoami
	KindRename
	KindSend
	KindSign
	KindBalance
	KindVerify
	KindContest
	KindAudit
	KindResolve
	KindSecond
	KindQuery
	KindDisconnect

	// Internal variants. They are never produced by the decoder.
	KindBulkQuery
	KindBulkInsert
	KindBulkUpdate
	KindSingleQuery
	KindSingleInsert
	KindSingleUpdate
)

var kindNames = map[Kind]string{
	KindRegister:     "register",
	KindWhoami:       "whoami",
	KindRename:       "rename",
	KindSend:         "send",
	KindSign:         "sign",
	KindBalance:      "balance",
	KindVerify:       "verify",
	KindContest:      "contest",
	KindAudit:        "audit",
	KindResolve:      "resolve",
	KindSecond:       "second",
	KindQuery:        "query",
	KindDisconnect:   "disconnect",
	KindBulkQuery:    "bulk_query",
	KindBulkInsert:   "bulk_insert",
	KindBulkUpdate:   "bulk_update",
	KindSingleQuery:  "single_query",
	KindSingleInsert: "single_insert",
	KindSingleUpdate: "single_update",
}

// String returns the lower-case wire name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// External reports whether the kind may arrive from a client.
func (k Kind) External() bool {
	return k >= KindRegister && k <= KindDisconnect
}

// ExternalKinds lists the kinds a client may name, in declaration order.
func ExternalKinds() []Kind {
	kinds := make([]Kind, 0, int(KindDisconnect))
	for k := KindRegister; k <= KindDisconnect; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

package ledger

// Reply is the worker's answer to a Command. It is a sealed union of
// IntReply, FloatReply, TextReply, RowsReply and ErrorReply.
type Reply interface {
	reply()
}

// IntReply carries an id or a count.
type IntReply uint32

// FloatReply carries a balance.
type FloatReply float64

// TextReply carries a short text answer.
type TextReply string

// RowsReply carries ledger rows in result order. Never nil for a successful
// query; an empty match is an empty slice.
type RowsReply []LedgerEntry

// ErrorReply reports a failed command. The worker keeps running.
type ErrorReply struct {
	Err *CommandError
}

func (IntReply) reply() {}
func (FloatReply) reply() {}
func (TextReply) reply() {}
func (RowsReply) reply() {}
func (ErrorReply) reply() {}

// NewConduit returns a fresh single-use reply channel. The buffer of one
// lets the worker deliver without waiting on the caller.
func NewConduit() chan Reply {
	return make(chan Reply, 1)
}

package ledger

// Command is a single request for the worker. It is consumed exactly once
// and its conduit receives exactly one Reply.
//
// Fields are unexported so a Command cannot be altered after construction;
// optional payloads are attached with CommandOption values.
type Command struct {
	id       string
	kind     Kind
	selector Selector
	args     []string
	entries  []LedgerEntry
	set      Selector
	replyTo  chan<- Reply
}

// CommandOption attaches an optional payload to a Command.
type CommandOption func(*Command)

// WithArgs attaches the decoded argument tokens used by account kinds.
func WithArgs(args ...string) CommandOption {
	return func(c *Command) {
		c.args = append([]string(nil), args...)
	}
}

// WithEntries attaches the records written by insert kinds.
func WithEntries(entries ...LedgerEntry) CommandOption {
	return func(c *Command) {
		c.entries = append([]LedgerEntry(nil), entries...)
	}
}

// WithSet attaches the column assignment used by update kinds.
func WithSet(set Selector) CommandOption {
	return func(c *Command) {
		c.set = set
	}
}

// NewCommand packages a request for the worker. replyTo should be a fresh
// conduit from NewConduit.
func NewCommand(kind Kind, sel Selector, replyTo chan<- Reply, opts ...CommandOption) *Command {
	c := &Command{
		kind:     kind,
		selector: sel,
		replyTo:  replyTo,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Command) Kind() Kind { return c.kind }
func (c *Command) Selector() Selector { return c.selector }
func (c *Command) Set() Selector { return c.set }
func (c *Command) ID() string { return c.id }
func (c *Command) ReplyTo() chan<- Reply { return c.replyTo }

// Args returns a copy of the argument tokens.
func (c *Command) Args() []string {
	return append([]string(nil), c.args...)
}

// Entries returns a copy of the attached records.
func (c *Command) Entries() []LedgerEntry {
	return append([]LedgerEntry(nil), c.entries...)
}

// Stamp sets the correlation id. The worker calls it once on submission;
// later calls are ignored.
func (c *Command) Stamp(id string) {
	if c.id == "" {
		c.id = id
	}
}

// Package protocol converts between client wire messages and ledger
// commands.
//
// A client sends one JSON object per line:
//
//	{"kind": "query", "args": "source Bob"}
//
// Decode turns it into a *ledger.Command or a *DecodeError. Replies go back
// the same way, one JSON object per line, as either a value envelope
//
//	{"kind":"rows","value":[...]}
//
// or an error body
//
//	{"code":4,"kind":"Argument Error","details":"..."}
//
// Mapping argument tokens to selectors lives only here, so adding a kind
// never touches the worker.
package protocol

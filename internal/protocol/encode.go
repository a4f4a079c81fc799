package protocol

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/roach88/ledgerd/internal/ledger"
)

// valueBody is the wire form of a successful reply.
type valueBody struct {
	Kind  string `json:"kind"`
	Value any    `json:"value"`
}

// EncodeReply renders a reply as one JSON object without a trailing
// newline.
func EncodeReply(r ledger.Reply) ([]byte, error) {
	switch v := r.(type) {
	case ledger.IntReply:
		return json.Marshal(valueBody{Kind: "int", Value: uint32(v)})
	case ledger.FloatReply:
		return json.Marshal(valueBody{Kind: "float", Value: float64(v)})
	case ledger.TextReply:
		return json.Marshal(valueBody{Kind: "text", Value: string(v)})
	case ledger.RowsReply:
		rows := []ledger.LedgerEntry(v)
		if rows == nil {
			rows = []ledger.LedgerEntry{}
		}
		return json.Marshal(valueBody{Kind: "rows", Value: rows})
	case ledger.ErrorReply:
		if v.Err == nil {
			return json.Marshal(NewErrorBody(CodeInternal, "empty error reply"))
		}
		return json.Marshal(commandErrorBody(v.Err))
	default:
		return nil, fmt.Errorf("encode reply: unsupported reply type %T", r)
	}
}

// WriteReply writes r as one line.
func WriteReply(w io.Writer, r ledger.Reply) error {
	data, err := EncodeReply(r)
	if err != nil {
		return err
	}
	return writeLine(w, data)
}

// WriteError writes an error body as one line.
func WriteError(w io.Writer, body ErrorBody) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode error: %w", err)
	}
	return writeLine(w, data)
}

// DecodeReply parses a reply line written by WriteReply or WriteError.
// An error body is returned in Response.Error, not as the error result.
func DecodeReply(line []byte) (*Response, error) {
	var probe struct {
		Code  *int            `json:"code"`
		Kind  string          `json:"kind"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(line, &probe); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}

	if probe.Code != nil {
		var body ErrorBody
		if err := json.Unmarshal(line, &body); err != nil {
			return nil, fmt.Errorf("decode reply: %w", err)
		}
		return &Response{Error: &body}, nil
	}
	return &Response{Kind: probe.Kind, Value: probe.Value}, nil
}

// Response is a client-side view of one reply line.
type Response struct {
	Kind  string
	Value json.RawMessage
	Error *ErrorBody
}

func writeLine(w io.Writer, data []byte) error {
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write line: %w", err)
	}
	return nil
}

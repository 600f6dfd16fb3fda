package domain

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Envelope is the request/response payload the endpoint dispatch pipeline
// carries from parse through response emission. It wraps the raw JSON
// bytes rather than unmarshalling into a generic map: every key the
// endpoint does not explicitly rewrite survives untouched, in the
// original order, which is exactly the round-trip law the dispatch
// pipeline must uphold (prepare_payload ∘ parse preserves every key not
// explicitly rewritten).
type Envelope struct {
	raw []byte
}

// NewEnvelope wraps raw JSON bytes. The bytes are not copied defensively;
// callers must treat them as owned by the returned Envelope.
func NewEnvelope(raw []byte) *Envelope {
	if raw == nil {
		raw = []byte(`{}`)
	}
	return &Envelope{raw: raw}
}

// Bytes returns the current JSON representation.
func (e *Envelope) Bytes() []byte {
	return e.raw
}

// Get returns the value at a gjson path, e.g. "messages.0.role".
func (e *Envelope) Get(path string) gjson.Result {
	return gjson.GetBytes(e.raw, path)
}

// Has reports whether path exists and is non-null.
func (e *Envelope) Has(path string) bool {
	r := e.Get(path)
	return r.Exists() && r.Type != gjson.Null
}

// Set rewrites the value at path, preserving every other key.
func (e *Envelope) Set(path string, value interface{}) error {
	out, err := sjson.SetBytes(e.raw, path, value)
	if err != nil {
		return err
	}
	e.raw = out
	return nil
}

// SetRaw rewrites the value at path using pre-encoded JSON.
func (e *Envelope) SetRaw(path, rawJSON string) error {
	out, err := sjson.SetRawBytes(e.raw, path, []byte(rawJSON))
	if err != nil {
		return err
	}
	e.raw = out
	return nil
}

// Delete removes the key at path.
func (e *Envelope) Delete(path string) error {
	out, err := sjson.DeleteBytes(e.raw, path)
	if err != nil {
		return err
	}
	e.raw = out
	return nil
}

// Clone returns a deep copy: further mutation of the clone never affects
// the original envelope's bytes.
func (e *Envelope) Clone() *Envelope {
	cp := make([]byte, len(e.raw))
	copy(cp, e.raw)
	return &Envelope{raw: cp}
}

// UserMessages returns the gjson results for every {role: "user"} entry
// in "messages", in document order, used by the multi-shot dispatch path.
func (e *Envelope) UserMessages() []gjson.Result {
	var out []gjson.Result
	e.Get("messages").ForEach(func(_, msg gjson.Result) bool {
		if msg.Get("role").String() == "user" {
			out = append(out, msg)
		}
		return true
	})
	return out
}

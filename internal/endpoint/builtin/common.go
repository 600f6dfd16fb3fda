// Package builtin declares the concrete endpoints the gateway exposes
// beyond bare passthrough: system-prompted conversation, context-QA, and
// the multi-shot text utilities (translate, simplify, summarize,
// generate questions). Each file's init() registers its descriptors with
// internal/registry; importing this package for its side effects is what
// makes the routes appear.
package builtin

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/prism-gateway/llm-router/internal/core/domain"
	"github.com/tidwall/gjson"
)

type jsonResult = gjson.Result

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// setModelFromModelName copies the builtin convention's model_name field
// into the model key the dispatch pipeline and upstream payload both read.
func setModelFromModelName(env *domain.Envelope) {
	_ = env.Set("model", env.Get("model_name").String())
}

// messagesFromTexts builds one user message per text, in order.
func messagesFromTexts(texts []string) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, t := range texts {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(`{"role":"user","content":`)
		b.WriteString(jsonString(t))
		b.WriteByte('}')
	}
	b.WriteByte(']')
	return b.String()
}

// historicalMessages converts the client's {user, assistant} turn
// shorthand into the role/content shape upstream providers expect.
func historicalMessages(env *domain.Envelope) string {
	var b strings.Builder
	b.WriteByte('[')
	first := true
	env.Get("historical_messages").ForEach(func(_, turn jsonResult) bool {
		if u := turn.Get("user"); u.Exists() {
			if !first {
				b.WriteByte(',')
			}
			b.WriteString(`{"role":"user","content":`)
			b.WriteString(jsonString(u.String()))
			b.WriteByte('}')
			first = false
		}
		if a := turn.Get("assistant"); a.Exists() {
			if !first {
				b.WriteByte(',')
			}
			b.WriteString(`{"role":"assistant","content":`)
			b.WriteString(jsonString(a.String()))
			b.WriteByte('}')
			first = false
		}
		return true
	})
	b.WriteByte(']')
	return b.String()
}

func textsFromEnvelope(env *domain.Envelope) []string {
	var out []string
	env.Get("texts").ForEach(func(_, v jsonResult) bool {
		out = append(out, v.String())
		return true
	})
	return out
}

// generationResponse is the common {response, generation_time} envelope
// every builtin chat/utility endpoint wraps its answer in.
func generationResponse(body interface{}, elapsed time.Duration) *domain.Envelope {
	out := domain.NewEnvelope(nil)
	switch v := body.(type) {
	case string:
		_ = out.Set("response", v)
	default:
		raw, _ := json.Marshal(v)
		_ = out.SetRaw("response", string(raw))
	}
	_ = out.Set("generation_time", elapsed.Seconds())
	return out
}

// joinMessages concatenates zero or more JSON message objects (each a
// single `{"role":...,"content":...}` literal) and zero or more already-
// bracketed JSON arrays of messages into one ordered JSON array.
func joinMessages(parts ...string) string {
	var items []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.HasPrefix(p, "[") {
			inner := strings.TrimSpace(p[1 : len(p)-1])
			if inner == "" {
				continue
			}
			items = append(items, inner)
			continue
		}
		items = append(items, p)
	}
	return "[" + strings.Join(items, ",") + "]"
}

package endpoint

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/prism-gateway/llm-router/internal/core/domain"
	"github.com/prism-gateway/llm-router/internal/core/ports"
	"github.com/tidwall/gjson"
)

type jsonResult = gjson.Result

// jsonString encodes s as a JSON string literal.
func jsonString(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}

// resolveSystemPrompt implements step 7 of the dispatch lifecycle: pick
// a language, fetch the named template, substitute placeholders
// single-pass left-to-right, and append the postfix. PromptForce
// bypasses template resolution entirely.
func resolveSystemPrompt(ctx context.Context, prompts ports.PromptRepository, d *Descriptor, env *domain.Envelope, result PrepareResult, defaultLanguage string) (string, error) {
	if result.PromptForce != "" {
		return result.PromptForce, nil
	}
	if d.SystemPromptName == nil {
		return "", nil
	}

	language := defaultLanguage
	if l := env.Get("language").String(); l != "" {
		language = l
	}

	promptID, ok := d.SystemPromptName[language]
	if !ok {
		promptID, ok = d.SystemPromptName[defaultLanguage]
		if !ok {
			return "", nil
		}
	}

	template, err := prompts.Get(ctx, promptID, language)
	if err != nil {
		return "", err
	}

	text := substitutePlaceholders(template, result.MapPrompt)
	if result.PromptPostfix != "" {
		text += result.PromptPostfix
	}
	return text, nil
}

// substitutePlaceholders performs a single left-to-right pass over
// template, replacing each literal token key with its mapped value.
// strings.Replacer scans the input once and, because the gateway's
// placeholder tokens (e.g. "##QUESTION_NUM_STR##") never overlap or
// prefix one another, its replacement order matches the single-pass,
// left-to-right rule the base spec requires regardless of map
// iteration order.
func substitutePlaceholders(template string, mapPrompt map[string]string) string {
	if len(mapPrompt) == 0 {
		return template
	}
	pairs := make([]string, 0, len(mapPrompt)*2)
	for token, value := range mapPrompt {
		pairs = append(pairs, token, value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// prependSystemMessage inserts {role: system, content: text} as the
// first entry of the envelope's messages array.
func prependSystemMessage(env *domain.Envelope, text string) error {
	systemMsg := `{"role":"system","content":` + jsonString(text) + `}`

	existing := env.Get("messages")
	if !existing.IsArray() {
		return env.SetRaw("messages", "["+systemMsg+"]")
	}

	rawArray := "[" + systemMsg
	existing.ForEach(func(_, v jsonResult) bool {
		rawArray += "," + v.Raw
		return true
	})
	rawArray += "]"
	return env.SetRaw("messages", rawArray)
}

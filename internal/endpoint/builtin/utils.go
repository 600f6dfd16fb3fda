package builtin

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prism-gateway/llm-router/internal/apitype"
	"github.com/prism-gateway/llm-router/internal/core/domain"
	"github.com/prism-gateway/llm-router/internal/endpoint"
	"github.com/prism-gateway/llm-router/internal/registry"
)

func init() {
	registry.Register(generateQuestionsFromTexts())
	registry.Register(translateTexts())
	registry.Register(simplifyTexts())
	registry.Register(batchFileSummaries())
	registry.Register(generateArticleFromText())
	registry.Register(createFullArticleFromTexts())
	registry.Register(generativeAnswer())
}

// --- generate_questions ----------------------------------------------

func generateQuestionsFromTexts() *endpoint.Descriptor {
	return &endpoint.Descriptor{
		Path:         "/generate_questions",
		Method:       http.MethodPost,
		ApiTypes:     endpoint.ApiTypeSet(domain.ApiTypeBuiltin),
		Operation:    apitype.OpChat,
		RequiredArgs: []string{"model_name", "texts"},
		OptionalArgs: append(append([]string{}, genaiOptArgsBase...), "number_of_questions"),
		SystemPromptName: map[string]string{
			"pl": "builtin/system/pl/generate-questions",
			"en": "builtin/system/en/generate-questions",
		},
		CallForEachUserMsg:      true,
		PreparePayload:          prepareGenerateQuestions,
		PrepareResponseFunction: aggregateGeneratedQuestions,
	}
}

func prepareGenerateQuestions(_ context.Context, env *domain.Envelope) (endpoint.PrepareResult, error) {
	setModelFromModelName(env)

	n := env.Get("number_of_questions").Int()
	if n <= 0 {
		n = 1
	}

	if err := env.SetRaw("messages", messagesFromTexts(textsFromEnvelope(env))); err != nil {
		return endpoint.PrepareResult{}, err
	}
	_ = env.Delete("texts")
	_ = env.Delete("number_of_questions")

	return endpoint.PrepareResult{
		Envelope: env,
		MapPrompt: map[string]string{
			"##QUESTION_NUM_STR##": strconv.FormatInt(n, 10) + " question(s)",
		},
	}, nil
}

func aggregateGeneratedQuestions(responses []*domain.Envelope, requestTexts []string) (*domain.Envelope, error) {
	out := domain.NewEnvelope(nil)
	var items []string
	for i, resp := range responses {
		answer := endpoint.ExtractContent(resp)
		items = append(items, `{"text":`+jsonString(requestTexts[i])+`,"questions":`+questionsJSON(answer)+`}`)
	}
	_ = out.SetRaw("response", "["+strings.Join(items, ",")+"]")
	return out, nil
}

// questionsJSON extracts the enumerated question list out of one
// response's trailing paragraph, stripping any leading "1." / "2."
// enumeration the model echoed back.
func questionsJSON(content string) string {
	paragraphs := strings.Split(strings.TrimSpace(content), "\n\n")
	last := paragraphs[len(paragraphs)-1]

	var items []string
	for _, line := range strings.Split(last, "\n") {
		q := removeEnumeration(strings.TrimSpace(line))
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		items = append(items, jsonString(q))
	}
	return "[" + strings.Join(items, ",") + "]"
}

func removeEnumeration(line string) string {
	dot := strings.Index(line, ".")
	if dot == -1 {
		return line
	}
	if _, err := strconv.Atoi(strings.TrimSpace(line[:dot])); err != nil {
		return line
	}
	return line[dot+1:]
}

// --- translate ----------------------------------------------------------

func translateTexts() *endpoint.Descriptor {
	return &endpoint.Descriptor{
		Path:         "/translate",
		Method:       http.MethodPost,
		ApiTypes:     endpoint.ApiTypeSet(domain.ApiTypeBuiltin),
		Operation:    apitype.OpChat,
		RequiredArgs: []string{"model_name", "texts"},
		OptionalArgs: genaiOptArgsBase,
		SystemPromptName: map[string]string{
			"pl": "builtin/system/pl/translate-to-pl",
			"en": "builtin/system/en/translate-to-pl",
		},
		CallForEachUserMsg:      true,
		PreparePayload:          prepareTextsToMessages,
		PrepareResponseFunction: aggregateTranslations,
	}
}

func aggregateTranslations(responses []*domain.Envelope, requestTexts []string) (*domain.Envelope, error) {
	out := domain.NewEnvelope(nil)
	var items []string
	for i, resp := range responses {
		translated := endpoint.ExtractContent(resp)
		items = append(items, `{"original":`+jsonString(requestTexts[i])+`,"translated":`+jsonString(translated)+`}`)
	}
	_ = out.SetRaw("response", "["+strings.Join(items, ",")+"]")
	return out, nil
}

// --- simplify_text --------------------------------------------------

func simplifyTexts() *endpoint.Descriptor {
	return &endpoint.Descriptor{
		Path:         "/simplify_text",
		Method:       http.MethodPost,
		ApiTypes:     endpoint.ApiTypeSet(domain.ApiTypeBuiltin),
		Operation:    apitype.OpChat,
		RequiredArgs: []string{"model_name", "texts"},
		OptionalArgs: genaiOptArgsBase,
		SystemPromptName: map[string]string{
			"pl": "builtin/system/pl/simplify-text",
			"en": "builtin/system/en/simplify-text",
		},
		CallForEachUserMsg:      true,
		PreparePayload:          prepareTextsToMessages,
		PrepareResponseFunction: aggregateSimplifications,
	}
}

func aggregateSimplifications(responses []*domain.Envelope, _ []string) (*domain.Envelope, error) {
	out := domain.NewEnvelope(nil)
	var items []string
	for _, resp := range responses {
		items = append(items, jsonString(endpoint.ExtractContent(resp)))
	}
	_ = out.SetRaw("response", "["+strings.Join(items, ",")+"]")
	return out, nil
}

// --- batch_file_summaries --------------------------------------------

func batchFileSummaries() *endpoint.Descriptor {
	return &endpoint.Descriptor{
		Path:         "/batch_file_summaries",
		Method:       http.MethodPost,
		ApiTypes:     endpoint.ApiTypeSet(domain.ApiTypeBuiltin),
		Operation:    apitype.OpChat,
		RequiredArgs: []string{"model_name", "texts"},
		OptionalArgs: genaiOptArgsBase,
		SystemPromptName: map[string]string{
			"pl": "builtin/system/pl/batch-file-summary",
			"en": "builtin/system/en/batch-file-summary",
		},
		CallForEachUserMsg:      true,
		PreparePayload:          prepareTextsToMessages,
		PrepareResponseFunction: aggregateFileSummaries,
	}
}

func aggregateFileSummaries(responses []*domain.Envelope, requestTexts []string) (*domain.Envelope, error) {
	out := domain.NewEnvelope(nil)
	var items []string
	for i, resp := range responses {
		summary := endpoint.ExtractContent(resp)
		items = append(items, `{"original":`+jsonString(requestTexts[i])+`,"summary":`+jsonString(summary)+`}`)
	}
	_ = out.SetRaw("response", "["+strings.Join(items, ",")+"]")
	return out, nil
}

func prepareTextsToMessages(_ context.Context, env *domain.Envelope) (endpoint.PrepareResult, error) {
	setModelFromModelName(env)
	if err := env.SetRaw("messages", messagesFromTexts(textsFromEnvelope(env))); err != nil {
		return endpoint.PrepareResult{}, err
	}
	_ = env.Delete("texts")
	return endpoint.PrepareResult{Envelope: env}, nil
}

// --- generate_article_from_text --------------------------------------

func generateArticleFromText() *endpoint.Descriptor {
	return &endpoint.Descriptor{
		Path:         "/generate_article_from_text",
		Method:       http.MethodPost,
		ApiTypes:     endpoint.ApiTypeSet(domain.ApiTypeBuiltin),
		Operation:    apitype.OpChat,
		RequiredArgs: []string{"model_name", "text"},
		OptionalArgs: genaiOptArgsBase,
		SystemPromptName: map[string]string{
			"pl": "builtin/system/pl/news-on-sm",
			"en": "builtin/system/en/news-on-sm",
		},
		PreparePayload:            prepareSingleTextMessage,
		PrepareSingleResponseFunc: prepareArticleResponse,
	}
}

func prepareSingleTextMessage(_ context.Context, env *domain.Envelope) (endpoint.PrepareResult, error) {
	setModelFromModelName(env)
	userMsg := `{"role":"user","content":` + jsonString(env.Get("text").String()) + `}`
	if err := env.SetRaw("messages", "["+userMsg+"]"); err != nil {
		return endpoint.PrepareResult{}, err
	}
	_ = env.Delete("text")
	return endpoint.PrepareResult{Envelope: env}, nil
}

func prepareArticleResponse(resp *domain.Envelope, elapsed time.Duration) (*domain.Envelope, error) {
	article := map[string]string{"article_text": endpoint.ExtractContent(resp)}
	return generationResponse(article, elapsed), nil
}

// --- create_full_article_from_texts -----------------------------------

func createFullArticleFromTexts() *endpoint.Descriptor {
	return &endpoint.Descriptor{
		Path:         "/create_full_article_from_texts",
		Method:       http.MethodPost,
		ApiTypes:     endpoint.ApiTypeSet(domain.ApiTypeBuiltin),
		Operation:    apitype.OpChat,
		RequiredArgs: []string{"model_name", "user_query", "texts"},
		OptionalArgs: append(append([]string{}, genaiOptArgsBase...), "article_type"),
		SystemPromptName: map[string]string{
			"pl": "builtin/system/pl/full-article",
			"en": "builtin/system/en/full-article",
		},
		PreparePayload:            prepareFullArticle,
		PrepareSingleResponseFunc: prepareArticleResponse,
	}
}

func prepareFullArticle(_ context.Context, env *domain.Envelope) (endpoint.PrepareResult, error) {
	setModelFromModelName(env)

	var nonEmpty []string
	for _, t := range textsFromEnvelope(env) {
		if s := strings.TrimSpace(t); s != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	userMsg := `{"role":"user","content":` + jsonString(strings.Join(nonEmpty, "\n\n")) + `}`
	if err := env.SetRaw("messages", "["+userMsg+"]"); err != nil {
		return endpoint.PrepareResult{}, err
	}

	postfix := env.Get("article_type").String()
	userQuery := env.Get("user_query").String()

	_ = env.Delete("texts")
	_ = env.Delete("user_query")
	_ = env.Delete("article_type")

	return endpoint.PrepareResult{
		Envelope:      env,
		MapPrompt:     map[string]string{"##USER_Q_STR##": userQuery},
		PromptPostfix: postfix,
	}, nil
}

// --- generative_answer -------------------------------------------------

func generativeAnswer() *endpoint.Descriptor {
	return &endpoint.Descriptor{
		Path:         "/generative_answer",
		Method:       http.MethodPost,
		ApiTypes:     endpoint.ApiTypeSet(domain.ApiTypeBuiltin),
		Operation:    apitype.OpChat,
		RequiredArgs: []string{"model_name", "question_str", "texts"},
		OptionalArgs: append(append([]string{}, genaiOptArgsBase...), "question_prompt", "system_prompt", "doc_name_in_answer"),
		SystemPromptName: map[string]string{
			"pl": "builtin/system/pl/answer-from-context-simple",
			"en": "builtin/system/en/answer-from-context-simple",
		},
		PreparePayload:            prepareGenerativeAnswer,
		PrepareSingleResponseFunc: prepareConversationResponse,
	}
}

func prepareGenerativeAnswer(_ context.Context, env *domain.Envelope) (endpoint.PrepareResult, error) {
	setModelFromModelName(env)

	contextText := contextFromTexts(env)
	userMsg := `{"role":"user","content":` + jsonString(contextText) + `}`
	if err := env.SetRaw("messages", "["+userMsg+"]"); err != nil {
		return endpoint.PrepareResult{}, err
	}

	questionStr := env.Get("question_str").String()
	postfix := env.Get("question_prompt").String()
	force := env.Get("system_prompt").String()

	_ = env.Delete("texts")
	_ = env.Delete("question_str")
	_ = env.Delete("system_prompt")
	_ = env.Delete("question_prompt")
	_ = env.Delete("doc_name_in_answer")

	return endpoint.PrepareResult{
		Envelope:      env,
		MapPrompt:     map[string]string{"##QUESTION_STR##": questionStr},
		PromptPostfix: postfix,
		PromptForce:   force,
	}, nil
}

// contextFromTexts flattens the request's texts field into one context
// blob. texts may be a flat array of strings, or an object mapping a
// document name to an array of its passages; doc_name_in_answer, when
// true, prefixes each passage in the latter case with its document name.
func contextFromTexts(env *domain.Envelope) string {
	texts := env.Get("texts")
	docNameInAnswer := env.Get("doc_name_in_answer").Bool()

	var b strings.Builder
	if texts.IsObject() {
		texts.ForEach(func(doc, passages jsonResult) bool {
			docName := doc.String()
			passages.ForEach(func(_, passage jsonResult) bool {
				t := passage.String()
				if docNameInAnswer {
					t = "Document name: " + docName + "\nDocument context: " + t
				}
				b.WriteString(t)
				b.WriteString("\n\n")
				return true
			})
			return true
		})
	} else {
		texts.ForEach(func(_, t jsonResult) bool {
			b.WriteString(t.String())
			b.WriteString("\n\n")
			return true
		})
	}
	return strings.TrimSpace(b.String())
}

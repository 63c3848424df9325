package suggester

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

const (
	maxOutputTokens int64 = 1024

	systemPrompt = `You match book requests against a fixed catalog of public-domain titles.

Rules:
- Only suggest titles from the ALLOWED TITLES list, verbatim.
- Return at most %d titles, each with an overall_score between 0 and 5 rating how well it fits the request, and a hook of at most 100 characters teasing why the reader would enjoy it.
- Omit any title scoring %.1f or lower. If nothing fits, return [].
- Respond with strict JSON only, no prose, no code fences:
  {"intro": "<one short intro line>", "books": [{"title": "...", "hook": "...", "overall_score": 0.0}]}
  or [] when there is no fit.`
)

// OpenAIRanker calls OpenAI's Responses API to rank catalog titles against
// a request.
type OpenAIRanker struct {
	client    openai.Client
	model     string
	maxTitles int
	minScore  float64
}

func NewOpenAIRanker(apiKey, model string, maxTitles int, minScore float64) *OpenAIRanker {
	return &OpenAIRanker{
		client:    openai.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTitles: maxTitles,
		minScore:  minScore,
	}
}

func (r *OpenAIRanker) Rank(ctx context.Context, request string, titles []string) (Result, error) {
	prompt := strings.Builder{}
	prompt.WriteString("ALLOWED TITLES:\n")
	for _, title := range titles {
		prompt.WriteString("- ")
		prompt.WriteString(title)
		prompt.WriteString("\n")
	}
	prompt.WriteString("\nREQUEST:\n")
	prompt.WriteString(request)

	resp, err := r.client.Responses.New(ctx, responses.ResponseNewParams{
		Model:           openai.ChatModel(r.model),
		MaxOutputTokens: openai.Int(maxOutputTokens),
		Instructions:    openai.String(fmt.Sprintf(systemPrompt, r.maxTitles, r.minScore)),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(prompt.String()),
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("do request: %w", err)
	}

	return Decode(resp.OutputText(), r.maxTitles, r.minScore), nil
}

// rawRanking mirrors the JSON contract. intro is optional.
type rawRanking struct {
	Intro string       `json:"intro"`
	Books []Suggestion `json:"books"`
}

// Decode parses the model payload defensively. Accepts either the ranking
// object or a bare [] for "no fit"; anything else is a parse error, which
// callers treat the same as empty.
func Decode(payload string, maxTitles int, minScore float64) Result {
	payload = stripFences(strings.TrimSpace(payload))
	if payload == "" {
		return Result{Outcome: OutcomeParseError}
	}

	if strings.HasPrefix(payload, "[") {
		var arr []json.RawMessage
		if err := json.Unmarshal([]byte(payload), &arr); err != nil {
			return Result{Outcome: OutcomeParseError}
		}
		return Result{Outcome: OutcomeEmpty}
	}

	var raw rawRanking
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return Result{Outcome: OutcomeParseError}
	}

	var books []Suggestion
	for _, b := range raw.Books {
		if strings.TrimSpace(b.Title) == "" {
			continue
		}
		if b.OverallScore < minScore || b.OverallScore > 5 {
			continue
		}
		b.Hook = truncateHook(b.Hook)
		books = append(books, b)
		if len(books) == maxTitles {
			break
		}
	}

	if len(books) == 0 {
		return Result{Outcome: OutcomeEmpty}
	}
	return Result{Outcome: OutcomeOK, Intro: strings.TrimSpace(raw.Intro), Books: books}
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncateHook(hook string) string {
	hook = strings.TrimSpace(hook)
	runes := []rune(hook)
	if len(runes) <= 100 {
		return hook
	}
	return string(runes[:100])
}

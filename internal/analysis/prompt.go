package analysis

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/spacesedan/feedbackflow/internal/models"
)

const basePrompt = `
You will receive customer feedback comments from Paraguay, one per message, formatted as JSON objects.
Comments may be written in Spanish, Guaraní, or a mix of both (Jopara). Read Guaraní and Jopara
expressions with their local meaning: "iporã" and "porã" are praise, "ivai" and "vai" are complaints,
"ndaipóri" means something was missing.

Respond only with a valid JSON object. Do not include any additional text or commentary.

For each comment object, include the following fields:

- id: Return the exact same ID that was received in the input.

- sentiment: Exactly one of "positive", "negative" or "neutral".

- score: A number from -1 (very negative) to 1 (very positive).

- confidence: A number from 0 to 1 telling how sure you are about the sentiment.
`

const themesPrompt = `
- themes: Up to 5 short lowercase topics in Spanish the comment talks about
  (for example "atención al cliente", "precio", "tiempo de entrega", "calidad del producto").
  Use an empty array when there is none.
`

const emotionsPrompt = `
- emotions: An object mapping emotion names to an intensity from 0 to 1. Use only these names:
  "joy", "trust", "anger", "frustration", "sadness", "surprise". Leave out emotions that are absent.
`

const responseFormatPrompt = `
Every comment you receive MUST appear exactly once in the response.

Expected JSON response format:
{
  "results": [
    {
      "id": "Same ID as provided",
      "sentiment": "positive",
      "score": 0.8,
      "confidence": 0.9%s
    }
  ]
}
`

func systemPrompt(facets []Facet) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	example := ""
	if hasFacet(facets, FacetThemes) {
		b.WriteString(themesPrompt)
		example += `,
      "themes": ["atención al cliente"]`
	}
	if hasFacet(facets, FacetEmotions) {
		b.WriteString(emotionsPrompt)
		example += `,
      "emotions": {"joy": 0.7}`
	}
	b.WriteString(strings.Replace(responseFormatPrompt, "%s", example, 1))
	return b.String()
}

// buildChatMessages sends each comment as its own user message. IDs are the
// positions inside the batch so the model never has to copy long hashes.
func buildChatMessages(comments []models.Comment, facets []Facet) []openai.ChatCompletionMessage {
	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt(facets),
		},
	}

	for i, comment := range comments {
		req := models.OpenAICommentRequest{
			ID:   strconv.Itoa(i),
			Text: comment.Text,
		}
		if comment.Language != "" && comment.Language != models.LanguageUnknown {
			req.Language = string(comment.Language)
		}
		bytes, err := json.Marshal(req)
		if err != nil {
			slog.Warn("[OpenAIAnalyzer] Failed to marshal comment",
				slog.String("comment_id", comment.ID),
				slog.String("error", err.Error()))
			continue
		}

		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: string(bytes),
		})
	}

	return messages
}

// CleanOpenAIResponse strips markdown fences and returns "" when what is left
// does not look like a JSON object.
func CleanOpenAIResponse(response string) string {
	cleaned := strings.TrimSpace(response)

	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimSuffix(cleaned, "```")
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
	}
	cleaned = strings.TrimSpace(cleaned)

	if !(strings.HasPrefix(cleaned, "{") && strings.HasSuffix(cleaned, "}")) {
		snippet := response
		if len(snippet) > 100 {
			snippet = snippet[:100] + "..."
		}
		slog.Error("[OpenAIAnalyzer] Response does not appear to be a JSON object after cleaning",
			slog.String("original_response_snippet", snippet))
		return ""
	}

	return cleaned
}

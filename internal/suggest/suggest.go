// Package suggest turns free-text meeting notes into proposed contact
// field updates. The output is raw: it still has to pass through
// reconciliation before anything reaches a provider.
package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/notewell/crmbridge/internal/crm"
	"github.com/notewell/crmbridge/pkg/utils"
)

const systemPrompt = `You extract CRM contact field updates from meeting notes.
Given notes and the contact's current fields, propose updates as a JSON array of objects with keys:
"field" (one of the allowed field names), "label" (human readable field name), "newValue" (the proposed value), "context" (short quote or paraphrase from the notes justifying the change).
Only propose a field when the notes clearly support it. Respond with the JSON array only, no prose.`

// Producer generates field update suggestions from note text
type Producer struct {
	client openai.Client
	model  string
}

// NewProducer creates a suggestion producer. The model is taken from
// OPENAI_MODEL, defaulting to gpt-4o-mini.
func NewProducer(cfg *utils.Config) *Producer {
	opts := []option.RequestOption{option.WithAPIKey(cfg.Get("OPENAI_API_KEY"))}
	if baseURL := cfg.Get("OPENAI_BASE_URL"); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &Producer{
		client: openai.NewClient(opts...),
		model:  cfg.GetWithDefault("OPENAI_MODEL", "gpt-4o-mini"),
	}
}

// Suggest proposes field updates for a contact based on meeting notes
func (p *Producer) Suggest(ctx context.Context, notes string, contact *crm.ContactRecord) ([]crm.FieldUpdate, error) {
	current, err := json.Marshal(contact.Fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode contact fields: %w", err)
	}

	user := fmt.Sprintf("Allowed fields: %s\n\nCurrent contact fields: %s\n\nMeeting notes:\n%s",
		strings.Join(crm.CanonicalFields, ", "), current, notes)

	completion, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate suggestions: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("suggestion model returned no choices")
	}

	return parseSuggestions(completion.Choices[0].Message.Content)
}

// parseSuggestions decodes the model's JSON array into field updates,
// tolerating a fenced code block around the payload and dropping
// entries that name an unknown field or carry no value
func parseSuggestions(content string) ([]crm.FieldUpdate, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var raw []struct {
		Field    string `json:"field"`
		Label    string `json:"label"`
		NewValue string `json:"newValue"`
		Context  string `json:"context"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse suggestions: %w", err)
	}

	allowed := make(map[string]bool, len(crm.CanonicalFields))
	for _, field := range crm.CanonicalFields {
		allowed[field] = true
	}

	suggestions := make([]crm.FieldUpdate, 0, len(raw))
	for _, entry := range raw {
		if !allowed[entry.Field] || entry.NewValue == "" {
			continue
		}
		suggestions = append(suggestions, crm.FieldUpdate{
			Field:    entry.Field,
			Label:    entry.Label,
			NewValue: entry.NewValue,
			Context:  entry.Context,
		})
	}

	return suggestions, nil
}

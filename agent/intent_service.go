package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"ledgerchat/dataset"
)

// EinoClassifier performs intent classification and entity extraction in a
// single LLM call.
type EinoClassifier struct {
	chatModel model.ChatModel
	logger    func(string)
}

// NewEinoClassifier creates a combined classifier+extractor.
func NewEinoClassifier(chatModel model.ChatModel, logger func(string)) *EinoClassifier {
	return &EinoClassifier{chatModel: chatModel, logger: logger}
}

func (c *EinoClassifier) log(msg string) {
	if c.logger != nil {
		c.logger(msg)
	}
}

// classifierResponse is the raw LLM response shape.
type classifierResponse struct {
	Intent              string             `json:"intent"`
	Action              string             `json:"action"`
	FallbackMessage     string             `json:"fallback_message"`
	ClarificationPrompt string             `json:"clarification_prompt"`
	Reason              string             `json:"reason"`
	Entities            *ExtractedEntities `json:"entities"`
}

// ClassifyAndExtract runs the combined guard+extractor call and normalizes
// the response into the closed intent/action sets.
func (c *EinoClassifier) ClassifyAndExtract(ctx context.Context, userQuery string, profile *dataset.Profile, history []Message) (RoutingDecision, *ExtractedEntities, error) {
	startTime := time.Now()

	profileJSON := profile.MinimalPromptJSON()

	messages := []*schema.Message{
		{Role: schema.System, Content: buildIntentExtractorPrompt(profileJSON)},
	}
	messages = append(messages, historyAsSchemaMessages(history, 6)...)
	messages = append(messages, &schema.Message{Role: schema.User, Content: userQuery})

	resp, err := c.chatModel.Generate(ctx, messages)
	if err != nil {
		return RoutingDecision{}, nil, fmt.Errorf("intent extractor generate: %w", err)
	}

	parsed := &classifierResponse{}
	content := extractJSON(strings.TrimSpace(resp.Content))
	if err := json.Unmarshal([]byte(content), parsed); err != nil {
		return RoutingDecision{}, nil, fmt.Errorf("intent extractor parse: %w", err)
	}

	decision := RoutingDecision{
		Intent:              strings.ToLower(strings.TrimSpace(parsed.Intent)),
		Action:              strings.ToLower(strings.TrimSpace(parsed.Action)),
		FallbackMessage:     strings.TrimSpace(parsed.FallbackMessage),
		ClarificationPrompt: strings.TrimSpace(parsed.ClarificationPrompt),
		Reason:              strings.TrimSpace(parsed.Reason),
	}
	if !allowedIntents[decision.Intent] {
		decision.Intent = IntentAmbiguous
		decision.Action = ActionClarify
	}
	switch decision.Action {
	case ActionContinue, ActionClarify, ActionFallback:
	default:
		decision.Action = ActionClarify
	}
	if decision.Action == ActionFallback && decision.FallbackMessage == "" {
		decision.FallbackMessage = FallbackForErrorType(errorTypeForIntent(decision.Intent))
	}

	entities := parsed.Entities
	if decision.Action != ActionFallback && entities == nil {
		entities = &ExtractedEntities{}
	}
	if entities != nil {
		normalizeExtractedEntities(entities)
	}

	c.log(fmt.Sprintf("intent_extractor_complete in=%v intent=%s action=%s", time.Since(startTime), decision.Intent, decision.Action))
	return decision, entities, nil
}

// normalizeExtractedEntities folds free-form LLM fields into the closed
// vocabularies the pipeline relies on.
func normalizeExtractedEntities(entities *ExtractedEntities) {
	entities.RequestedMetric = strings.ToLower(strings.TrimSpace(entities.RequestedMetric))

	mode := strings.ToLower(strings.TrimSpace(entities.Ranking.Mode))
	switch mode {
	case "highest", "lowest":
		entities.Ranking.Mode = mode
	default:
		entities.Ranking.Mode = "none"
		entities.Ranking.TopK = nil
	}

	ts := &entities.TimeScope
	ts.Mode = strings.ToLower(strings.TrimSpace(ts.Mode))
	switch ts.Mode {
	case "exact", "relative":
	default:
		ts.Mode = "none"
	}
}

// historyAsSchemaMessages converts the most recent turns to model messages.
func historyAsSchemaMessages(history []Message, limit int) []*schema.Message {
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	var messages []*schema.Message
	for _, msg := range history {
		role := schema.User
		if msg.Role == "assistant" {
			role = schema.Assistant
		}
		messages = append(messages, &schema.Message{Role: role, Content: msg.Content})
	}
	return messages
}

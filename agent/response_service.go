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

// FallbackForErrorType maps an error category to its fixed user-facing
// message. Unknown categories resolve to the not-present message.
func FallbackForErrorType(errorType string) string {
	switch errorType {
	case ErrorOutOfScope:
		return MsgOutOfScope
	case ErrorAdversarial:
		return MsgCannotProceed
	case ErrorGibberish:
		return MsgGibberish
	}
	return MsgNotPresent
}

// EinoAnswerer synthesizes the final answer, both from query results and
// from the profile alone for definitions questions.
type EinoAnswerer struct {
	chatModel model.ChatModel
	logger    func(string)
}

// NewEinoAnswerer creates an answer-synthesis collaborator.
func NewEinoAnswerer(chatModel model.ChatModel, logger func(string)) *EinoAnswerer {
	return &EinoAnswerer{chatModel: chatModel, logger: logger}
}

func (a *EinoAnswerer) log(msg string) {
	if a.logger != nil {
		a.logger(msg)
	}
}

// answerPayload is the structured user-turn input for answer synthesis.
type answerPayload struct {
	UserQuery  string          `json:"user_query"`
	ResultJSON *ComputedResult `json:"result_json"`
}

// AnswerFromResult produces the final answer text from the bounded result
// payload. Month tokens are humanized in the returned text.
func (a *EinoAnswerer) AnswerFromResult(ctx context.Context, userQuery string, result *ComputedResult, profile *dataset.Profile, history []Message) (string, error) {
	startTime := time.Now()

	profileJSON := profile.MinimalPromptJSON()
	payload, err := json.Marshal(answerPayload{UserQuery: userQuery, ResultJSON: result})
	if err != nil {
		return "", fmt.Errorf("answer payload: %w", err)
	}

	messages := []*schema.Message{
		{Role: schema.System, Content: buildAnswerPrompt(profileJSON)},
	}
	messages = append(messages, historyAsSchemaMessages(history, 6)...)
	messages = append(messages, &schema.Message{Role: schema.User, Content: string(payload)})

	resp, err := a.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("answer generate: %w", err)
	}
	answer := strings.TrimSpace(resp.Content)
	if answer == "" {
		return "", fmt.Errorf("answer generate: empty response")
	}

	a.log(fmt.Sprintf("answer_complete in=%v chars=%d", time.Since(startTime), len(answer)))
	return formatMonthTokens(answer), nil
}

// AnswerFromProfile answers an eligible definitions question from profile
// context only; no query code runs on this path.
func (a *EinoAnswerer) AnswerFromProfile(ctx context.Context, userQuery string, profile *dataset.Profile, history []Message) (string, error) {
	startTime := time.Now()

	profileJSON := profile.MinimalPromptJSON()

	messages := []*schema.Message{
		{Role: schema.System, Content: buildProfileAnswerPrompt(profileJSON)},
	}
	messages = append(messages, historyAsSchemaMessages(history, 6)...)
	messages = append(messages, &schema.Message{Role: schema.User, Content: userQuery})

	resp, err := a.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("profile answer generate: %w", err)
	}
	answer := strings.TrimSpace(resp.Content)
	if answer == "" {
		return "", fmt.Errorf("profile answer generate: empty response")
	}

	a.log(fmt.Sprintf("profile_answer_complete in=%v chars=%d", time.Since(startTime), len(answer)))
	return formatMonthTokens(answer), nil
}

// extractJSON strips a markdown code fence from an LLM response, if any.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	if idx := strings.Index(content, "```json"); idx >= 0 {
		content = content[idx+7:]
		if endIdx := strings.Index(content, "```"); endIdx >= 0 {
			content = content[:endIdx]
		}
	} else if idx := strings.Index(content, "```"); idx >= 0 {
		content = content[idx+3:]
		if endIdx := strings.Index(content, "```"); endIdx >= 0 {
			content = content[:endIdx]
		}
	}
	return strings.TrimSpace(content)
}

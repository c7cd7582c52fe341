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

// EinoCodeGenerator produces pandas query code from the extracted entities.
type EinoCodeGenerator struct {
	chatModel model.ChatModel
	logger    func(string)
}

// NewEinoCodeGenerator creates a code-generation collaborator.
func NewEinoCodeGenerator(chatModel model.ChatModel, logger func(string)) *EinoCodeGenerator {
	return &EinoCodeGenerator{chatModel: chatModel, logger: logger}
}

func (g *EinoCodeGenerator) log(msg string) {
	if g.logger != nil {
		g.logger(msg)
	}
}

// codegenPayload is the structured user-turn input for code generation.
type codegenPayload struct {
	UserQuery         string             `json:"user_query"`
	ExtractedEntities *ExtractedEntities `json:"extracted_entities"`
}

// GenerateQueryCode asks the model for a query plan grounded on the profile
// and the extracted entities.
func (g *EinoCodeGenerator) GenerateQueryCode(ctx context.Context, userQuery string, entities *ExtractedEntities, profile *dataset.Profile, history []Message) (*CodeGenPlan, error) {
	startTime := time.Now()

	profileJSON := profile.MinimalPromptJSON()
	payload, err := json.Marshal(codegenPayload{UserQuery: userQuery, ExtractedEntities: entities})
	if err != nil {
		return nil, fmt.Errorf("codegen payload: %w", err)
	}

	messages := []*schema.Message{
		{Role: schema.System, Content: buildCodegenPrompt(profileJSON)},
		{Role: schema.User, Content: string(payload)},
	}

	resp, err := g.chatModel.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("codegen generate: %w", err)
	}

	plan := &CodeGenPlan{}
	content := extractJSON(strings.TrimSpace(resp.Content))
	if err := json.Unmarshal([]byte(content), plan); err != nil {
		return nil, fmt.Errorf("codegen parse: %w", err)
	}
	plan.TaskType = strings.TrimSpace(plan.TaskType)
	plan.PythonCode = strings.TrimSpace(plan.PythonCode)
	plan.ClarificationPrompt = strings.TrimSpace(plan.ClarificationPrompt)

	g.log(fmt.Sprintf("codegen_complete in=%v task_type=%s code_len=%d", time.Since(startTime), plan.TaskType, len(plan.PythonCode)))
	return plan, nil
}

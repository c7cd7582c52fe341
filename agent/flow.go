package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ledgerchat/dataset"
)

// Classifier is the combined intent+entity extraction collaborator.
type Classifier interface {
	ClassifyAndExtract(ctx context.Context, userQuery string, profile *dataset.Profile, history []Message) (RoutingDecision, *ExtractedEntities, error)
}

// ProfileAnswerer answers eligible definitions questions from profile
// context only.
type ProfileAnswerer interface {
	AnswerFromProfile(ctx context.Context, userQuery string, profile *dataset.Profile, history []Message) (string, error)
}

// CodeGenerator produces the query-code plan for a turn.
type CodeGenerator interface {
	GenerateQueryCode(ctx context.Context, userQuery string, entities *ExtractedEntities, profile *dataset.Profile, history []Message) (*CodeGenPlan, error)
}

// ResultAnswerer synthesizes the final answer from the bounded result
// payload. It must return the fixed not-present message for an empty
// payload.
type ResultAnswerer interface {
	AnswerFromResult(ctx context.Context, userQuery string, result *ComputedResult, profile *dataset.Profile, history []Message) (string, error)
}

// Executor runs gated query code against a private copy of the full
// dataset.
type Executor interface {
	Execute(ctx context.Context, code string) (*ExecutionResult, error)
}

// Clock supplies the current time; injected so relative-time resolution is
// deterministic under test.
type Clock func() time.Time

// route is the shared three-way routing outcome.
type route int

const (
	routeContinue route = iota
	routeClarify
	routeFinalize
)

// nextRoute is the single source of truth for stage transitions: finalize
// beats clarify beats continue. Every stage boundary calls exactly this.
func nextRoute(state *TurnState) route {
	if state.FinalAnswer != "" {
		return routeFinalize
	}
	if state.NeedsClarification {
		return routeClarify
	}
	return routeContinue
}

// Pipeline orchestrates one turn through Guard, Extract, Query, Execute and
// the Clarify/Finalize terminals. One turn runs synchronously start to
// finish; the TurnState is owned by the pipeline until RunTurn returns.
type Pipeline struct {
	profile         *dataset.Profile
	classifier      Classifier
	profileAnswerer ProfileAnswerer
	codeGen         CodeGenerator
	answerer        ResultAnswerer
	executor        Executor
	gate            *CodeSafetyGate
	now             Clock
	logger          func(string)
}

// PipelineOptions bundles the collaborators a Pipeline coordinates.
type PipelineOptions struct {
	Profile         *dataset.Profile
	Classifier      Classifier
	ProfileAnswerer ProfileAnswerer
	CodeGenerator   CodeGenerator
	ResultAnswerer  ResultAnswerer
	Executor        Executor
	Gate            *CodeSafetyGate
	Now             Clock
	Logger          func(string)
}

// NewPipeline builds a pipeline. Gate and Now default when nil.
func NewPipeline(opts PipelineOptions) *Pipeline {
	gate := opts.Gate
	if gate == nil {
		gate = NewCodeSafetyGate()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		profile:         opts.Profile,
		classifier:      opts.Classifier,
		profileAnswerer: opts.ProfileAnswerer,
		codeGen:         opts.CodeGenerator,
		answerer:        opts.ResultAnswerer,
		executor:        opts.Executor,
		gate:            gate,
		now:             now,
		logger:          opts.Logger,
	}
}

func (p *Pipeline) log(msg string) {
	if p.logger != nil {
		p.logger(msg)
	}
}

// RunTurn drives the state machine for one turn. Finalize always runs
// exactly once, last, and the returned state always carries a final answer.
func (p *Pipeline) RunTurn(ctx context.Context, state *TurnState) *TurnState {
	stages := []struct {
		name string
		run  func(context.Context, *TurnState)
	}{
		{"guard", p.guardStage},
		{"extract", p.extractStage},
		{"query", p.queryStage},
		{"execute", p.executeStage},
	}

	for _, stage := range stages {
		stage.run(ctx, state)
		switch nextRoute(state) {
		case routeFinalize:
			p.finalizeStage(state)
			return state
		case routeClarify:
			p.clarifyStage(state)
			p.finalizeStage(state)
			return state
		}
	}
	p.finalizeStage(state)
	return state
}

// guardStage appends the user message, runs the text-level guards, and
// delegates to the classifier, post-processing its decision.
func (p *Pipeline) guardStage(ctx context.Context, state *TurnState) {
	userQuery := strings.TrimSpace(state.UserQuery)
	if userQuery != "" {
		last := len(state.Messages) - 1
		if last < 0 || state.Messages[last].Role != "user" ||
			strings.TrimSpace(state.Messages[last].Content) != userQuery {
			state.Messages = append(state.Messages, Message{Role: "user", Content: userQuery})
		}
	}
	p.log("query_received user_query=" + userQuery)

	if DetectMultipleQuestions(userQuery) {
		state.FinalAnswer = MsgMultipleQuestion
		state.ErrorType = ErrorNotPresent
		state.RoutingAction = "finalize"
		p.log("multiple_questions_blocked")
		return
	}

	decision := routeQuery(userQuery)
	if decision.Action == ActionContinue {
		llmDecision, entities, err := p.classifier.ClassifyAndExtract(ctx, userQuery, p.profile, state.Messages)
		if err != nil {
			p.log(fmt.Sprintf("intent_extractor_llm_failed error=%v", err))
			decision = RoutingDecision{
				Intent:              IntentAmbiguous,
				Action:              ActionClarify,
				ClarificationPrompt: msgRephraseWithScope,
				Reason:              "combined intent+extraction failed",
			}
		} else {
			decision = llmDecision
			if decision.Action == ActionContinue && entities != nil {
				if decision.Intent == IntentDefinitions && !definitionsIntentIsEligible(entities) {
					decision.Intent = IntentDatasetKnowledge
					p.log("definitions_downgraded_to_dataset_knowledge")
				}
				state.Entities = entities
				state.EntitiesPreextracted = true
				p.log("guard_preextracted_entities")
			} else if decision.Action == ActionClarify && decision.Intent == IntentDatasetKnowledge && entities != nil {
				// Validate explicit entities first (not_present) before
				// asking clarification.
				hasExplicitEntity := len(entities.PropertyName) > 0 ||
					len(entities.TenantName) > 0 ||
					len(entities.EntityName) > 0 ||
					len(entities.LedgerCode) > 0
				if hasExplicitEntity {
					state.Entities = entities
					state.EntitiesPreextracted = true
					decision.Action = ActionContinue
					p.log("guard_clarify_deferred_for_entity_validation")
				}
			}
		}
	}
	p.log(fmt.Sprintf("intent_detected intent=%s action=%s reason=%s", decision.Intent, decision.Action, decision.Reason))
	state.Intent = decision.Intent
	state.RoutingAction = decision.Action

	switch decision.Action {
	case ActionFallback:
		state.ErrorType = errorTypeForIntent(decision.Intent)
		state.FinalAnswer = decision.FallbackMessage
		p.log(fmt.Sprintf("routing_fallback intent=%s error_type=%s", decision.Intent, state.ErrorType))
	case ActionClarify:
		state.NeedsClarification = true
		question := strings.TrimSpace(decision.ClarificationPrompt)
		if question == "" {
			question = msgClarifyGeneric
		}
		state.ClarificationQuestion = question
		p.log("routing_clarification question=" + question)
	}
}

// errorTypeForIntent maps a fallback intent to its error category.
func errorTypeForIntent(intent string) string {
	switch intent {
	case IntentAdversarial:
		return ErrorAdversarial
	case IntentGibberish:
		return ErrorGibberish
	case IntentGeneralKnowledge:
		return ErrorOutOfScope
	}
	return ErrorNotPresent
}

// extractStage consumes the entities pre-extracted by guard and runs the
// deterministic resolution checks.
func (p *Pipeline) extractStage(ctx context.Context, state *TurnState) {
	if !state.EntitiesPreextracted || state.Entities == nil {
		// Extraction cannot proceed standalone.
		state.NeedsClarification = true
		state.ClarificationQuestion = msgRephraseWithScope
		p.log("extractor_missing_preextracted")
		return
	}
	entities := state.Entities
	state.EntitiesPreextracted = false
	p.log("extractor_used_preextracted")

	resolveRelativeTimeScope(entities, p.now())

	unresolvedRawMentions := resolveLedgerRawMentions(entities, p.profile)
	if len(unresolvedRawMentions) > 0 {
		p.log(fmt.Sprintf("ledger_raw_mentions_unresolved values=%v", unresolvedRawMentions))
	}

	missingValues := missingRequestedValues(entities, p.profile)
	for column, values := range unresolvedRawMentions {
		missingValues[column] = values
	}
	if len(missingValues) > 0 {
		state.ErrorType = ErrorNotPresent
		state.FinalAnswer = MsgNotPresent
		p.log(fmt.Sprintf("entities_not_present missing_values=%v", missingValues))
		return
	}

	if !isSupportedMetricRequest(entities, p.profile) {
		state.ErrorType = ErrorNotPresent
		state.FinalAnswer = MsgNotPresent
		p.log("unsupported_metric_not_present requested_metric=" + entities.RequestedMetric)
		return
	}

	if entities.NeedsClarification {
		state.NeedsClarification = true
		question := strings.TrimSpace(entities.ClarificationPrompt)
		if question == "" {
			question = msgClarifyDetails
		}
		state.ClarificationQuestion = question
		p.log("clarification_required question=" + question)
	}
}

// queryStage answers definitions from the profile, or generates and gates
// query code for every other intent.
func (p *Pipeline) queryStage(ctx context.Context, state *TurnState) {
	if state.FinalAnswer != "" || state.NeedsClarification {
		return
	}

	if state.Intent == IntentDefinitions {
		answer, err := p.profileAnswerer.AnswerFromProfile(ctx, state.UserQuery, p.profile, state.Messages)
		if err != nil {
			p.log(fmt.Sprintf("definitions_answer_llm_failed error=%v", err))
			state.NeedsClarification = true
			state.ClarificationQuestion = msgClarifyExtraction
			return
		}
		state.FinalAnswer = answer
		p.log("definitions_answer_llm_used")
		return
	}

	plan, err := p.codeGen.GenerateQueryCode(ctx, state.UserQuery, state.Entities, p.profile, state.Messages)
	if err != nil {
		p.log(fmt.Sprintf("codegen_llm_failed error=%v", err))
		state.NeedsClarification = true
		state.ClarificationQuestion = msgClarifyExtraction
		return
	}
	if plan.NeedsClarification {
		state.NeedsClarification = true
		question := strings.TrimSpace(plan.ClarificationPrompt)
		if question == "" {
			question = msgClarifyQuery
		}
		state.ClarificationQuestion = question
		return
	}

	code := strings.TrimSpace(plan.PythonCode)
	if code == "" {
		state.NeedsClarification = true
		state.ClarificationQuestion = msgClarifyExtraction
		return
	}

	// Gate rejection is a codegen failure; rejected code is never executed.
	if rule, err := p.gate.Check(code); err != nil {
		p.log("codegen_blocked_by_gate rule=" + rule)
		state.NeedsClarification = true
		state.ClarificationQuestion = msgClarifyExtraction
		return
	}

	taskType := plan.TaskType
	if taskType == "" {
		taskType = "asset_details"
	}
	state.TaskType = taskType
	state.PythonCode = code
	p.log("codegen_llm_used task_type=" + taskType)
}

// executeStage runs the gated code and synthesizes the final answer from
// the bounded result payload.
func (p *Pipeline) executeStage(ctx context.Context, state *TurnState) {
	if state.FinalAnswer != "" || state.NeedsClarification {
		return
	}

	code := strings.TrimSpace(state.PythonCode)
	if code == "" {
		state.ErrorType = ErrorNotPresent
		state.FinalAnswer = FallbackForErrorType(ErrorNotPresent)
		return
	}

	execution, err := p.executor.Execute(ctx, code)
	if err != nil {
		p.log(fmt.Sprintf("code_execution_failed error=%v", err))
		state.ErrorType = ErrorNotPresent
		state.FinalAnswer = MsgNotPresent
		return
	}

	// Zero filtered rows (pre-aggregation) is distinct from an empty result.
	if execution.FilteredRowCount == 0 {
		state.ErrorType = ErrorNotPresent
		if answer := timeRangeNotPresentAnswer(state.Entities, p.profile); answer != "" {
			state.FinalAnswer = answer
		} else {
			state.FinalAnswer = MsgNotPresent
		}
		p.log("code_execution_empty_filtered_df task_type=" + state.TaskType)
		return
	}
	if execution.Rows == nil {
		state.ErrorType = ErrorNotPresent
		state.FinalAnswer = MsgNotPresent
		return
	}

	state.RetrievedRows = execution.Rows
	p.log(fmt.Sprintf("code_execution_result rows=%d task_type=%s", len(execution.Rows), state.TaskType))

	bounded := execution.Rows
	if len(bounded) > maxResultRows {
		bounded = bounded[:maxResultRows]
	}
	state.ComputedResult = &ComputedResult{
		Rows:      bounded,
		TotalRows: len(execution.Rows),
		Truncated: len(execution.Rows) > len(bounded),
		TaskType:  state.TaskType,
	}

	answer, err := p.answerer.AnswerFromResult(ctx, state.UserQuery, state.ComputedResult, p.profile, state.Messages)
	if err != nil {
		p.log(fmt.Sprintf("answer_llm_failed error=%v", err))
		state.ErrorType = ErrorNotPresent
		state.FinalAnswer = MsgNotPresent
		return
	}
	state.FinalAnswer = answer
	p.log("answer_llm_used")
}

// clarifyStage promotes the pending clarification question to the final
// answer.
func (p *Pipeline) clarifyStage(state *TurnState) {
	if state.NeedsClarification && state.ClarificationQuestion != "" {
		state.FinalAnswer = state.ClarificationQuestion
	}
}

// finalizeStage is the terminal node: resolve a category fallback when no
// answer was produced, then append the assistant message to history.
func (p *Pipeline) finalizeStage(state *TurnState) {
	if state.FinalAnswer == "" && state.ErrorType != "" {
		state.FinalAnswer = FallbackForErrorType(state.ErrorType)
	}
	if state.FinalAnswer != "" {
		state.Messages = append(state.Messages, Message{Role: "assistant", Content: state.FinalAnswer})
	}
	category := state.ErrorType
	if category == "" {
		category = "factual"
	}
	p.log("final_response outcome_category=" + category)
}

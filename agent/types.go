package agent

// Intent labels produced by the guard/classifier stage.
const (
	IntentDatasetKnowledge = "dataset_knowledge"
	IntentDefinitions      = "definitions"
	IntentGeneralKnowledge = "general_knowledge"
	IntentAmbiguous        = "ambiguous"
	IntentAdversarial      = "adversarial"
	IntentGibberish        = "gibberish"
)

// allowedIntents is the closed set a classifier response must fall into.
var allowedIntents = map[string]bool{
	IntentDatasetKnowledge: true,
	IntentDefinitions:      true,
	IntentGeneralKnowledge: true,
	IntentAmbiguous:        true,
	IntentAdversarial:      true,
	IntentGibberish:        true,
}

// Routing actions.
const (
	ActionContinue = "continue"
	ActionFallback = "fallback"
	ActionClarify  = "clarify"
)

// Error categories surfaced to the caller. Raw errors never are.
const (
	ErrorNotPresent  = "not_present"
	ErrorOutOfScope  = "out_of_scope"
	ErrorAdversarial = "adversarial"
	ErrorGibberish   = "gibberish"
)

// Canonical user-facing messages (single source of truth).
const (
	MsgNotPresent       = "The requested information is not present in the dataset"
	MsgOutOfScope       = "I am a real estate asset manager agent, please ask me questions about real estate assets in my base"
	MsgCannotProceed    = "Cannot proceed with this request"
	MsgGibberish        = "I don't understand the question, please rephrase it"
	MsgMultipleQuestion = "Please, don't ask more than one question at a time. Choose one and ask again"

	msgRephraseWithScope = "Please rephrase your request with the target and time scope."
	msgClarifyGeneric    = "Please clarify your question."
	msgClarifyExtraction = "Please clarify what information you want me to extract."
	msgClarifyQuery      = "Please clarify the query."
	msgClarifyDetails    = "Please clarify the missing details."
)

// Message is one conversation entry, role "user" or "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RoutingDecision is the guard-stage verdict for a turn.
type RoutingDecision struct {
	Intent              string `json:"intent"`
	Action              string `json:"action"`
	FallbackMessage     string `json:"fallback_message"`
	ClarificationPrompt string `json:"clarification_prompt"`
	Reason              string `json:"reason"`
}

// Ranking captures highest/lowest/top-N style requests.
type Ranking struct {
	Mode string `json:"mode"`
	TopK *int   `json:"top_k"`
}

// TimeScope is the extracted time-filtering constraint. Mode is one of
// none|exact|relative; after normalization only none and exact survive and
// an exact scope carries exactly one of Month/Quarter/Year.
type TimeScope struct {
	Mode           string `json:"mode"`
	Month          string `json:"month,omitempty"`
	Quarter        string `json:"quarter,omitempty"`
	Year           string `json:"year,omitempty"`
	Column         string `json:"column,omitempty"`
	Start          string `json:"start,omitempty"`
	End            string `json:"end,omitempty"`
	RelativePeriod string `json:"relative_period,omitempty"`
}

// ExtractedEntities is the column-aligned extraction output that grounds
// code generation and drives the resolution checks.
type ExtractedEntities struct {
	EntityName        []string `json:"entity_name"`
	PropertyName      []string `json:"property_name"`
	TenantName        []string `json:"tenant_name"`
	LedgerType        []string `json:"ledger_type"`
	LedgerGroup       []string `json:"ledger_group"`
	LedgerCategory    []string `json:"ledger_category"`
	LedgerCode        []string `json:"ledger_code"`
	LedgerDescription []string `json:"ledger_description"`
	// LedgerRawMentions holds ledger-like literals whose target column is
	// not yet determined.
	LedgerRawMentions []string  `json:"ledger_raw_mentions"`
	RequestTarget     []string  `json:"request_target"`
	RequestedMetric   string    `json:"requested_metric"`
	Ranking           Ranking   `json:"ranking"`
	TimeScope         TimeScope `json:"time_scope"`

	NeedsClarification  bool   `json:"needs_clarification"`
	ClarificationPrompt string `json:"clarification_prompt"`
}

// ledgerColumns are the sibling columns searched during cross-column rescue
// and raw-mention resolution.
var ledgerColumns = []string{
	"ledger_type",
	"ledger_group",
	"ledger_category",
	"ledger_code",
	"ledger_description",
}

// missingCheckColumns are the identity-like columns whose requested values
// must resolve against the dataset vocabulary.
var missingCheckColumns = []string{
	"entity_name",
	"property_name",
	"tenant_name",
	"ledger_code",
	"ledger_type",
	"ledger_group",
	"ledger_category",
	"ledger_description",
}

// valuesFor returns the entity list aligned with a dataset column.
func (e *ExtractedEntities) valuesFor(column string) []string {
	switch column {
	case "entity_name":
		return e.EntityName
	case "property_name":
		return e.PropertyName
	case "tenant_name":
		return e.TenantName
	case "ledger_type":
		return e.LedgerType
	case "ledger_group":
		return e.LedgerGroup
	case "ledger_category":
		return e.LedgerCategory
	case "ledger_code":
		return e.LedgerCode
	case "ledger_description":
		return e.LedgerDescription
	}
	return nil
}

func (e *ExtractedEntities) setValuesFor(column string, values []string) {
	switch column {
	case "entity_name":
		e.EntityName = values
	case "property_name":
		e.PropertyName = values
	case "tenant_name":
		e.TenantName = values
	case "ledger_type":
		e.LedgerType = values
	case "ledger_group":
		e.LedgerGroup = values
	case "ledger_category":
		e.LedgerCategory = values
	case "ledger_code":
		e.LedgerCode = values
	case "ledger_description":
		e.LedgerDescription = values
	}
}

// CodeGenPlan is the validated output of the code-generation collaborator.
type CodeGenPlan struct {
	TaskType            string `json:"task_type"`
	PythonCode          string `json:"python_code"`
	NeedsClarification  bool   `json:"needs_clarification"`
	ClarificationPrompt string `json:"clarification_prompt"`
}

// ComputedResult is the bounded payload handed to the answer collaborator.
type ComputedResult struct {
	Rows      []map[string]any `json:"rows"`
	TotalRows int              `json:"total_rows"`
	Truncated bool             `json:"truncated"`
	TaskType  string           `json:"task_type"`
}

// maxResultRows bounds the rows forwarded for answer synthesis.
const maxResultRows = 500

// ExecutionResult is what the execution backend returns for gated code.
// FilteredRowCount is the pre-aggregation row count; -1 means the generated
// code did not report one.
type ExecutionResult struct {
	Columns          []string
	Rows             []map[string]any
	FilteredRowCount int
}

// TurnState is the mutable record threaded through one turn. It is owned
// exclusively by the pipeline for the duration of RunTurn and handed back to
// the session layer; it is never shared across concurrent turns.
type TurnState struct {
	UserQuery string
	Messages  []Message

	Intent               string
	RoutingAction        string
	Entities             *ExtractedEntities
	EntitiesPreextracted bool

	TaskType   string
	PythonCode string

	RetrievedRows  []map[string]any
	ComputedResult *ComputedResult

	NeedsClarification    bool
	ClarificationQuestion string
	ErrorType             string
	FinalAnswer           string
}

// NewTurnState builds the initial state for a user query, carrying over the
// session's conversation history.
func NewTurnState(userQuery string, history []Message) *TurnState {
	return &TurnState{
		UserQuery: userQuery,
		Messages:  append([]Message(nil), history...),
	}
}

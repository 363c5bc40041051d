package stepflow

import "github.com/petrijr/stepflow/pkg/api"

// Re-export key types so users don't need to dig into pkg/api.

type (
	Step            = api.Step
	ActionFunc      = api.ActionFunc
	ActionParams    = api.ActionParams
	ActionContext   = api.ActionContext
	RetryConfig     = api.RetryConfig
	StepConfig      = api.StepConfig
	StepNode        = api.StepNode
	StepGraph       = api.StepGraph
	StepResult      = api.StepResult
	StepStatus      = api.StepStatus
	WorkflowContext = api.WorkflowContext
	RunResult       = api.RunResult
	ExecuteOptions  = api.ExecuteOptions
	SnapshotRef     = api.SnapshotRef

	VariableRef   = api.VariableRef
	Condition     = api.Condition
	ConditionFunc = api.ConditionFunc
	Operator      = api.Operator
	Query         = api.Query

	RecordStore    = api.RecordStore
	Record         = api.Record
	RecordFilter   = api.RecordFilter
	FilterOperator = api.FilterOperator

	Logger     = api.Logger
	LoggerFunc = api.LoggerFunc
	LogLevel   = api.LogLevel
	LogMessage = api.LogMessage
	Telemetry  = api.Telemetry
	TracedFunc = api.TracedFunc

	Observer             = api.Observer
	RunInfo              = api.RunInfo
	Transition           = api.Transition
	NodeState            = api.NodeState
	LoggingObserver      = api.LoggingObserver
	BasicMetrics         = api.BasicMetrics
	BasicMetricsSnapshot = api.BasicMetricsSnapshot
	CompositeObserver    = api.CompositeObserver
	NoopObserver         = api.NoopObserver
	RunEvent             = api.RunEvent
	EventType            = api.EventType
)

// Re-export constructors and helpers.

var (
	NewStep     = api.NewStep
	FromStep    = api.FromStep
	FromTrigger = api.FromTrigger
	Ref         = api.Ref
	And         = api.And
	Or          = api.Or
	Eq          = api.Eq

	Success    = api.Success
	Failure    = api.Failure
	Suspension = api.Suspension

	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver
)

// Re-export errors so callers can match them with errors.Is.

var (
	ErrTriggerValidation = api.ErrTriggerValidation
	ErrNotCommitted      = api.ErrNotCommitted
	ErrDuplicateStep     = api.ErrDuplicateStep
	ErrEmptyWorkflow     = api.ErrEmptyWorkflow
	ErrSnapshotNotFound  = api.ErrSnapshotNotFound
	ErrNoRecordStore     = api.ErrNoRecordStore
)

const TriggerStepID = api.TriggerStepID

const (
	StatusSuccess   = api.StatusSuccess
	StatusFailed    = api.StatusFailed
	StatusSuspended = api.StatusSuspended
)

const (
	OpEq     = api.OpEq
	OpNe     = api.OpNe
	OpGt     = api.OpGt
	OpGte    = api.OpGte
	OpLt     = api.OpLt
	OpLte    = api.OpLte
	OpIn     = api.OpIn
	OpNin    = api.OpNin
	OpExists = api.OpExists
)

const (
	DefaultAttempts = api.DefaultAttempts
	DefaultDelay    = api.DefaultDelay
)

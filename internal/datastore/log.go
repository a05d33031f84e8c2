// Package datastore defines the Log row (spec §3) and the persistence
// interface C10's worker writes batches through, plus a ClickHouse-backed
// implementation — the home the teacher's own code comments already
// earmarked for ClickHouse ("not wired in the open-source build; in the
// managed version this connects to ClickHouse for analytics").
package datastore

import (
	"context"
	"time"
)

// Log is one row per completed, failed, or canceled request (spec §3).
type Log struct {
	ID               string
	RequestID        string
	OrgID            string
	ProjectID        string
	ProjectMode      string // "api-keys" | "credits" | "hybrid" — stamped at request time for billing
	APIKeyID         string
	RequestedModel   string
	UsedModel        string
	RequestedProvider string
	UsedProvider     string
	FinishReason     string

	PromptTokens     int
	CompletionTokens int
	ReasoningTokens  int
	CachedTokens     int

	InputCost       float64
	OutputCost      float64
	CachedInputCost float64
	RequestCost     float64
	TotalCost       float64
	EstimatedCost   bool

	DurationMs   int64
	ResponseSize int64

	Streamed  bool
	Canceled  bool
	Cached    bool
	HasError  bool

	ErrorMessage string
	ErrorType    string

	// Messages/Content/ToolCalls are subject to the org's retention policy —
	// the worker strips them before insert when retentionLevel == "none".
	Messages  string // serialized JSON, empty when stripped
	Content   string
	ToolCalls string

	CustomHeaders map[string]string

	Temperature      float64
	MaxTokens        int
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64

	CreatedAt time.Time
}

// RetentionLevel mirrors Organization.retentionLevel from spec §4.10.
type RetentionLevel string

const (
	RetentionFull RetentionLevel = "full"
	RetentionNone RetentionLevel = "none"
)

// ApplyRetention strips messages/content/tool-calls from l in place when
// level == RetentionNone, per spec §4.10's "Persist" step.
func ApplyRetention(l *Log, level RetentionLevel) {
	if level != RetentionNone {
		return
	}
	l.Messages = ""
	l.Content = ""
	l.ToolCalls = ""
}

// Datastore is the persistence seam C10's worker writes batches through.
type Datastore interface {
	// InsertBatch durably persists logs. It must not partially apply: a
	// single row's marshal failure cannot poison the rest of the batch, so
	// callers are expected to have already dropped unparsable rows before
	// calling InsertBatch (see logworker.Worker.pass).
	InsertBatch(ctx context.Context, logs []Log) error
}

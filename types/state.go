package types

import (
	"time"
)

// Modality identifies the content type of an indexed document or a piece of
// retrieved evidence. Each modality maps to exactly one vector collection.
type Modality string

const (
	// ModalityText covers file and web-history text chunks.
	ModalityText Modality = "text"
	// ModalityImage covers uploaded or harvested images.
	ModalityImage Modality = "image"
	// ModalityScreen covers screenshot captures (screen-text patches).
	ModalityScreen Modality = "screen"
)

// Modalities lists all modality collections in their canonical order.
// The order is stable; fusion uses it as the final tie-break.
func Modalities() []Modality {
	return []Modality{ModalityText, ModalityImage, ModalityScreen}
}

// TimeRange restricts retrieval to documents whose timestamp falls inside
// [From, To). A zero bound leaves that side open.
type TimeRange struct {
	From time.Time `json:"from,omitempty"`
	To   time.Time `json:"to,omitempty"`
}

// Contains reports whether ts falls inside the range.
func (r TimeRange) Contains(ts time.Time) bool {
	if !r.From.IsZero() && ts.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && !ts.Before(r.To) {
		return false
	}
	return true
}

// IsZero reports whether both bounds are unset.
func (r TimeRange) IsZero() bool { return r.From.IsZero() && r.To.IsZero() }

// Filters narrows a retrieval request.
type Filters struct {
	// TimeRange restricts by document timestamp.
	TimeRange *TimeRange `json:"time_range,omitempty"`
	// Sources restricts by originating source type ("file", "web", "screen").
	Sources []string `json:"sources,omitempty"`
}

// RequestState is the single unit of work threaded through the workflow
// engine. It is created when a request enters the engine, mutated additively
// by each stage, and discarded after the response is emitted. One state
// belongs to exactly one request; it is never shared across concurrently
// executing requests.
type RequestState struct {
	// RequestID uniquely identifies this request for logging and tracing.
	RequestID string `json:"request_id"`
	// Message is the raw user message or question.
	Message string `json:"message"`
	// UserID identifies the owner of the personal index.
	UserID string `json:"user_id"`
	// SessionID groups requests belonging to one conversation.
	SessionID string `json:"session_id,omitempty"`
	// Filters optionally narrows retrieval.
	Filters *Filters `json:"filters,omitempty"`
	// TimeHint is a free-text temporal hint ("yesterday", "last week").
	TimeHint string `json:"time_hint,omitempty"`

	// Classification is set once by the intent classification stage and is
	// immutable afterward.
	Classification *ClassificationResult `json:"classification,omitempty"`
	// ToolPlan is set once by the tool selection stage.
	ToolPlan *ToolPlan `json:"tool_plan,omitempty"`
	// ToolResults accumulates the outcome of each executed tool, including
	// partial-result markers for tools that failed.
	ToolResults []ToolResult `json:"tool_results,omitempty"`
	// Evidence accumulates retrieved, redacted evidence items.
	Evidence []EvidenceItem `json:"evidence,omitempty"`
	// Answer is the final synthesized answer.
	Answer string `json:"answer,omitempty"`
	// Citations lists the evidence identifiers the answer relied on.
	Citations []string `json:"citations,omitempty"`
	// Degradations records stage-local recoverable conditions (degraded
	// modalities, rerank fallback, tool failures) for observability.
	Degradations []string `json:"degradations,omitempty"`

	// ReceivedAt is when the engine accepted the request.
	ReceivedAt time.Time `json:"received_at"`
}

// AddDegradation records a recoverable degraded condition on the state.
func (s *RequestState) AddDegradation(note string) {
	s.Degradations = append(s.Degradations, note)
}

// Clone returns a deep copy of the state. Stages that need to hand the state
// to untrusted capability code can clone first so replaying the same stage
// outputs always reaches the same final state.
func (s *RequestState) Clone() *RequestState {
	if s == nil {
		return nil
	}
	out := *s
	if s.Filters != nil {
		f := *s.Filters
		if s.Filters.TimeRange != nil {
			tr := *s.Filters.TimeRange
			f.TimeRange = &tr
		}
		f.Sources = append([]string(nil), s.Filters.Sources...)
		out.Filters = &f
	}
	if s.Classification != nil {
		c := *s.Classification
		c.Keywords = append([]string(nil), s.Classification.Keywords...)
		out.Classification = &c
	}
	if s.ToolPlan != nil {
		p := s.ToolPlan.Clone()
		out.ToolPlan = p
	}
	out.ToolResults = append([]ToolResult(nil), s.ToolResults...)
	out.Evidence = append([]EvidenceItem(nil), s.Evidence...)
	out.Citations = append([]string(nil), s.Citations...)
	out.Degradations = append([]string(nil), s.Degradations...)
	return &out
}

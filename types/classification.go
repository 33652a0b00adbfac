package types

import "time"

// ClassificationResult is the output of the intent classification stage:
// which handler should own the request, with how much confidence, and why.
// Produced exactly once per request and immutable afterward.
type ClassificationResult struct {
	// Handler is the selected handler identifier. It is always a member of
	// the handler set that was offered to the classifier.
	Handler string `json:"handler"`
	// Confidence is in [0,1].
	Confidence float64 `json:"confidence"`
	// Rationale is the classifier's free-text reasoning.
	Rationale string `json:"rationale,omitempty"`
	// Keywords are the terms extracted from the message that drove the
	// decision. For the fallback scorer these are the matched overlap terms.
	Keywords []string `json:"keywords,omitempty"`
	// Intent is a short normalized summary of what the user wants.
	Intent string `json:"intent,omitempty"`
	// FallbackUsed marks that the deterministic keyword scorer produced the
	// result because the model output could not be parsed.
	FallbackUsed bool `json:"fallback_used,omitempty"`
	// Timestamp is when the classification was produced.
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// ToolChoice is one entry of a tool plan: a tool to invoke, with arguments
// and the selector's confidence in the choice.
type ToolChoice struct {
	Tool       string         `json:"tool"`
	Arguments  map[string]any `json:"arguments,omitempty"`
	Confidence float64        `json:"confidence"`
}

// ToolPlan is the ordered sequence of tools the selector decided to invoke
// for the chosen handler. An empty plan is valid and means the handler
// answers directly without tools.
type ToolPlan struct {
	Choices []ToolChoice `json:"choices"`
}

// Empty reports whether the plan selects no tools.
func (p *ToolPlan) Empty() bool { return p == nil || len(p.Choices) == 0 }

// Clone returns a deep copy of the plan.
func (p *ToolPlan) Clone() *ToolPlan {
	if p == nil {
		return nil
	}
	out := &ToolPlan{Choices: make([]ToolChoice, len(p.Choices))}
	for i, c := range p.Choices {
		cc := c
		if c.Arguments != nil {
			cc.Arguments = make(map[string]any, len(c.Arguments))
			for k, v := range c.Arguments {
				cc.Arguments[k] = v
			}
		}
		out.Choices[i] = cc
	}
	return out
}

// ToolResult records the outcome of one tool execution. A failed tool is
// recorded with Error set; it marks a partial result and does not abort the
// request.
type ToolResult struct {
	Tool     string        `json:"tool"`
	Output   string        `json:"output,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// IsError reports whether the tool execution failed.
func (tr ToolResult) IsError() bool { return tr.Error != "" }

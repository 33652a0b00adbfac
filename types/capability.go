package types

import "context"

// =============================================================================
// Capability contract
// =============================================================================
// Every registered handler and tool is polymorphic over the same contract:
// take the request state, return the (possibly mutated) state. The workflow
// engine invokes handlers and tools uniformly through this interface without
// knowing their internal implementation.
// =============================================================================

// Capability is the minimal contract shared by handlers and tools.
type Capability interface {
	// ID returns the capability's unique identifier.
	ID() string
	// Description returns the human-readable description the intent
	// classifier and tool selector are prompted with.
	Description() string
	// Process executes the capability against the request state and returns
	// the resulting state.
	Process(ctx context.Context, state *RequestState) (*RequestState, error)
}

// Handler is a registered capability that can fully answer a class of
// requests ("agent" in the original system's vocabulary).
type Handler interface {
	Capability
}

// ToolConstraints declares execution requirements the tool selector must
// honor. Configuration (e.g. whether the handler runs offline) is external;
// the selector only consumes the declaration.
type ToolConstraints struct {
	// RequiresNetwork marks tools that cannot run when the owning handler
	// is configured offline.
	RequiresNetwork bool `json:"requires_network"`
}

// Tool is a narrower capability a handler may invoke.
type Tool interface {
	Capability
	// Constraints returns the tool's declared execution constraints.
	Constraints() ToolConstraints
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc struct {
	Identifier string
	Desc       string
	Fn         func(ctx context.Context, state *RequestState) (*RequestState, error)
}

func (h HandlerFunc) ID() string          { return h.Identifier }
func (h HandlerFunc) Description() string { return h.Desc }

func (h HandlerFunc) Process(ctx context.Context, state *RequestState) (*RequestState, error) {
	return h.Fn(ctx, state)
}

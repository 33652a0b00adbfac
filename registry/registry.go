// Package registry holds the process-wide capability registry: the mapping
// from handler identifier to handler implementation and from (handler, tool)
// pair to tool implementation.
//
// The registry is populated once at startup and frozen before the first
// request is accepted. After Freeze it is read-only and requires no locking
// under concurrent access.
package registry

import (
	"sync"

	"go.uber.org/zap"

	"github.com/javisai/javis/types"
)

// HandlerInfo describes a registered handler for prompt construction.
type HandlerInfo struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// ToolInfo describes a registered tool for prompt construction.
type ToolInfo struct {
	ID          string                `json:"id"`
	Description string                `json:"description"`
	Constraints types.ToolConstraints `json:"constraints"`
}

// Registry maps capability identifiers to implementations. Identifiers are
// unique for the process lifetime: registering a duplicate is a Conflict,
// resolving an unknown identifier is a NotFound. Both are programmer errors
// and fatal at startup.
type Registry struct {
	mu        sync.Mutex
	frozen    bool
	handlers  map[string]types.Handler
	order     []string
	tools     map[string]map[string]types.Tool
	toolOrder map[string][]string
	logger    *zap.Logger
}

// New creates an empty registry.
func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		handlers:  make(map[string]types.Handler),
		tools:     make(map[string]map[string]types.Tool),
		toolOrder: make(map[string][]string),
		logger:    logger.With(zap.String("component", "registry")),
	}
}

// RegisterHandler adds a handler. Duplicate identifiers are a Conflict;
// registration after Freeze is an InvalidTransition.
func (r *Registry) RegisterHandler(h types.Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return types.NewError(types.ErrInvalidTransition, "registry is frozen")
	}
	id := h.ID()
	if _, exists := r.handlers[id]; exists {
		return types.NewError(types.ErrConflict, "handler already registered: "+id)
	}

	r.handlers[id] = h
	r.order = append(r.order, id)
	r.logger.Info("handler registered", zap.String("handler", id))
	return nil
}

// RegisterTool adds a tool under the given handler. The handler must already
// be registered; duplicate (handler, tool) pairs are a Conflict.
func (r *Registry) RegisterTool(handlerID string, t types.Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return types.NewError(types.ErrInvalidTransition, "registry is frozen")
	}
	if _, exists := r.handlers[handlerID]; !exists {
		return types.NewError(types.ErrNotFound, "handler not registered: "+handlerID)
	}

	id := t.ID()
	byTool, ok := r.tools[handlerID]
	if !ok {
		byTool = make(map[string]types.Tool)
		r.tools[handlerID] = byTool
	}
	if _, exists := byTool[id]; exists {
		return types.NewError(types.ErrConflict, "tool already registered: "+handlerID+"/"+id)
	}

	byTool[id] = t
	r.toolOrder[handlerID] = append(r.toolOrder[handlerID], id)
	r.logger.Info("tool registered",
		zap.String("handler", handlerID),
		zap.String("tool", id))
	return nil
}

// Freeze seals the registry. It is called once, after startup registration
// completes and before the first request is accepted.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
	r.logger.Info("registry frozen",
		zap.Int("handlers", len(r.handlers)))
}

// ResolveHandler returns the handler registered under id.
func (r *Registry) ResolveHandler(id string) (types.Handler, error) {
	h, ok := r.handlers[id]
	if !ok {
		return nil, types.NewError(types.ErrNotFound, "handler not registered: "+id)
	}
	return h, nil
}

// ResolveTool returns the tool registered under (handlerID, toolID).
func (r *Registry) ResolveTool(handlerID, toolID string) (types.Tool, error) {
	t, ok := r.tools[handlerID][toolID]
	if !ok {
		return nil, types.NewError(types.ErrNotFound, "tool not registered: "+handlerID+"/"+toolID)
	}
	return t, nil
}

// Handlers lists registered handlers in registration order. The order is
// stable and feeds the classifier's deterministic tie-break.
func (r *Registry) Handlers() []HandlerInfo {
	out := make([]HandlerInfo, 0, len(r.order))
	for _, id := range r.order {
		h := r.handlers[id]
		out = append(out, HandlerInfo{ID: id, Description: h.Description()})
	}
	return out
}

// ToolsFor lists the tools registered under a handler, in registration
// order. The list is empty for handlers with no tools.
func (r *Registry) ToolsFor(handlerID string) []ToolInfo {
	ids := r.toolOrder[handlerID]
	out := make([]ToolInfo, 0, len(ids))
	for _, id := range ids {
		t := r.tools[handlerID][id]
		out = append(out, ToolInfo{ID: id, Description: t.Description(), Constraints: t.Constraints()})
	}
	return out
}

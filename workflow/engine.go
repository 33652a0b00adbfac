// Package workflow drives each request through its fixed stage sequence:
// classification, routing, tool selection, tool execution, and response. The
// engine owns the state machine; handlers and tools only ever see the
// request-scoped state they are given.
package workflow

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/javisai/javis/intent"
	"github.com/javisai/javis/registry"
	"github.com/javisai/javis/types"
)

// StageObserver receives stage timing events.
type StageObserver interface {
	ObserveStage(stage string, d time.Duration, failed bool)
}

// Config tunes routing behavior.
type Config struct {
	// ConfidenceThreshold is the minimum classification confidence for the
	// classifier's choice to stand; below it the request routes to
	// DefaultHandler deterministically.
	ConfidenceThreshold float64
	// DefaultHandler receives low-confidence requests. It must be
	// registered before the engine serves traffic.
	DefaultHandler string
}

// Request is one inbound unit of work.
type Request struct {
	RequestID string
	Message   string
	UserID    string
	SessionID string
	Filters   *types.Filters
	TimeHint  string
}

// Outcome is the engine's result: the final state-machine position plus the
// fully populated request state.
type Outcome struct {
	State State               `json:"state"`
	Data  *types.RequestState `json:"data"`
}

// Engine executes the request workflow.
type Engine struct {
	classifier *intent.Classifier
	selector   *intent.Selector
	reg        *registry.Registry
	cfg        Config
	tracer     trace.Tracer
	observer   StageObserver
	logger     *zap.Logger
}

// New creates an Engine. observer may be nil.
func New(classifier *intent.Classifier, selector *intent.Selector, reg *registry.Registry, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 0.6
	}
	if cfg.DefaultHandler == "" {
		cfg.DefaultHandler = "chat"
	}
	return &Engine{
		classifier: classifier,
		selector:   selector,
		reg:        reg,
		cfg:        cfg,
		tracer:     otel.Tracer("javis/workflow"),
		logger:     logger.With(zap.String("component", "workflow_engine")),
	}
}

// WithObserver attaches a metrics observer.
func (e *Engine) WithObserver(o StageObserver) *Engine {
	e.observer = o
	return e
}

// Handle runs one request through the full stage sequence. A stage error
// moves the request to FAILED and returns the error alongside the partial
// outcome. Cancellation is honored between stages, never mid-stage.
func (e *Engine) Handle(ctx context.Context, req Request) (*Outcome, error) {
	state := &types.RequestState{
		RequestID:  req.RequestID,
		Message:    req.Message,
		UserID:     req.UserID,
		SessionID:  req.SessionID,
		Filters:    req.Filters,
		TimeHint:   req.TimeHint,
		ReceivedAt: time.Now(),
	}
	ctx = types.WithRequestID(ctx, req.RequestID)
	if req.UserID != "" {
		ctx = types.WithUserID(ctx, req.UserID)
	}
	if req.SessionID != "" {
		ctx = types.WithSessionID(ctx, req.SessionID)
	}

	logger := e.logger.With(zap.String("request_id", req.RequestID))
	current := StateReceived

	ctx, span := e.tracer.Start(ctx, "workflow.handle",
		trace.WithAttributes(attribute.String("request_id", req.RequestID)))
	defer span.End()

	// Stage 1: classification.
	if err := ctx.Err(); err != nil {
		return e.fail(current, state, logger, err)
	}
	classification, err := e.runClassify(ctx, state)
	if err != nil {
		return e.fail(current, state, logger, err)
	}
	e.route(classification, state, logger)
	state.Classification = classification
	if current, err = advance(current, StateClassified); err != nil {
		return e.fail(current, state, logger, err)
	}

	// Stage 2: tool selection, scoped to the routed handler.
	if err := ctx.Err(); err != nil {
		return e.fail(current, state, logger, err)
	}
	plan, err := e.runSelect(ctx, state)
	if err != nil {
		return e.fail(current, state, logger, err)
	}
	state.ToolPlan = plan
	if current, err = advance(current, StateToolsSelected); err != nil {
		return e.fail(current, state, logger, err)
	}

	// Stage 3: tool execution. Individual tool failures degrade the request
	// with partial results instead of failing it.
	if err := ctx.Err(); err != nil {
		return e.fail(current, state, logger, err)
	}
	e.runExecute(ctx, state, logger)
	if current, err = advance(current, StateExecuted); err != nil {
		return e.fail(current, state, logger, err)
	}

	// Stage 4: response via the routed handler.
	if err := ctx.Err(); err != nil {
		return e.fail(current, state, logger, err)
	}
	if err := e.runRespond(ctx, state); err != nil {
		return e.fail(current, state, logger, err)
	}
	if current, err = advance(current, StateResponded); err != nil {
		return e.fail(current, state, logger, err)
	}

	logger.Info("request completed",
		zap.String("handler", state.Classification.Handler),
		zap.Int("tool_results", len(state.ToolResults)),
		zap.Strings("degradations", state.Degradations))
	return &Outcome{State: current, Data: state}, nil
}

func (e *Engine) fail(current State, state *types.RequestState, logger *zap.Logger, err error) (*Outcome, error) {
	failed, terr := advance(current, StateFailed)
	if terr != nil {
		// Already terminal; keep the original error.
		failed = current
	}
	logger.Error("request failed",
		zap.String("state", string(current)),
		zap.Error(err))
	return &Outcome{State: failed, Data: state}, err
}

func (e *Engine) runClassify(ctx context.Context, state *types.RequestState) (*types.ClassificationResult, error) {
	ctx, span := e.tracer.Start(ctx, "workflow.classify")
	defer span.End()

	started := time.Now()
	result, err := e.classifier.Classify(ctx, state.Message)
	if e.observer != nil {
		e.observer.ObserveStage("classify", time.Since(started), err != nil)
	}
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("handler", result.Handler),
		attribute.Float64("confidence", result.Confidence),
		attribute.Bool("fallback", result.FallbackUsed),
	)
	return result, nil
}

// route applies the confidence threshold: below it, the request goes to the
// default handler and the classifier's original choice is preserved as the
// detected intent.
func (e *Engine) route(c *types.ClassificationResult, state *types.RequestState, logger *zap.Logger) {
	c.Intent = c.Handler
	if c.Confidence >= e.cfg.ConfidenceThreshold || c.Handler == e.cfg.DefaultHandler {
		return
	}
	logger.Info("confidence below threshold, routing to default handler",
		zap.String("intent", c.Handler),
		zap.Float64("confidence", c.Confidence),
		zap.Float64("threshold", e.cfg.ConfidenceThreshold),
		zap.String("default_handler", e.cfg.DefaultHandler))
	c.Handler = e.cfg.DefaultHandler
	state.AddDegradation("routing_fallback")
}

func (e *Engine) runSelect(ctx context.Context, state *types.RequestState) (*types.ToolPlan, error) {
	ctx, span := e.tracer.Start(ctx, "workflow.select_tools")
	defer span.End()

	started := time.Now()
	plan, err := e.selector.Select(ctx, state.Classification.Handler, state.Message)
	if e.observer != nil {
		e.observer.ObserveStage("select_tools", time.Since(started), err != nil)
	}
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("tools", len(plan.Choices)))
	return plan, nil
}

func (e *Engine) runExecute(ctx context.Context, state *types.RequestState, logger *zap.Logger) {
	ctx, span := e.tracer.Start(ctx, "workflow.execute_tools")
	defer span.End()

	started := time.Now()
	failedAny := false
	for _, choice := range state.ToolPlan.Choices {
		result := e.executeOne(ctx, state, choice, logger)
		if result.IsError() {
			failedAny = true
			state.AddDegradation("tool:" + choice.Tool)
		}
		state.ToolResults = append(state.ToolResults, result)
	}
	if e.observer != nil {
		e.observer.ObserveStage("execute_tools", time.Since(started), failedAny)
	}
}

func (e *Engine) executeOne(ctx context.Context, state *types.RequestState, choice types.ToolChoice, logger *zap.Logger) types.ToolResult {
	handlerID := state.Classification.Handler
	started := time.Now()

	tool, err := e.reg.ResolveTool(handlerID, choice.Tool)
	if err != nil {
		return types.ToolResult{Tool: choice.Tool, Error: err.Error(), Duration: time.Since(started)}
	}

	// Tools receive a clone so a failing tool cannot leave the shared state
	// half-mutated.
	scratch := state.Clone()
	scratch.ToolPlan = &types.ToolPlan{Choices: []types.ToolChoice{choice}}
	out, err := tool.Process(ctx, scratch)
	duration := time.Since(started)
	if err != nil {
		logger.Warn("tool execution failed",
			zap.String("tool", choice.Tool),
			zap.Duration("duration", duration),
			zap.Error(err))
		return types.ToolResult{Tool: choice.Tool, Error: err.Error(), Duration: duration}
	}

	result := types.ToolResult{Tool: choice.Tool, Output: out.Answer, Duration: duration}
	// Tools surface evidence additively; the scratch clone already carried
	// the prior items, so only the tail is new.
	if len(out.Evidence) > len(state.Evidence) {
		state.Evidence = append(state.Evidence, out.Evidence[len(state.Evidence):]...)
	}
	return result
}

func (e *Engine) runRespond(ctx context.Context, state *types.RequestState) error {
	ctx, span := e.tracer.Start(ctx, "workflow.respond")
	defer span.End()

	handler, err := e.reg.ResolveHandler(state.Classification.Handler)
	if err != nil {
		return err
	}

	started := time.Now()
	out, err := handler.Process(ctx, state)
	if e.observer != nil {
		e.observer.ObserveStage("respond", time.Since(started), err != nil)
	}
	if err != nil {
		return err
	}
	*state = *out
	return nil
}

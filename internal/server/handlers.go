package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/javisai/javis/rag"
	"github.com/javisai/javis/types"
	"github.com/javisai/javis/workflow"
)

// =============================================================================
// 📦 通用响应结构
// =============================================================================

// Response 统一 API 响应结构
type Response struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	RequestID string     `json:"request_id,omitempty"`
}

// ErrorInfo 错误信息结构
type ErrorInfo struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// Pinger 依赖健康检查接口
type Pinger interface {
	Ping(ctx context.Context) error
}

// RequestObserver 接收已完成请求的最终状态
type RequestObserver interface {
	ObserveRequest(state string)
}

// =============================================================================
// 🔌 API 处理器
// =============================================================================

// API 对外 HTTP 接口: 查询、索引、健康与指标
type API struct {
	engine   *workflow.Engine
	indexer  *rag.Indexer
	observer RequestObserver
	logger   *zap.Logger
	deps     map[string]Pinger
}

// NewAPI 创建 API 处理器
func NewAPI(engine *workflow.Engine, indexer *rag.Indexer, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		engine:  engine,
		indexer: indexer,
		logger:  logger.With(zap.String("component", "api")),
		deps:    make(map[string]Pinger),
	}
}

// WithDependency 注册一个参与健康检查的依赖
func (a *API) WithDependency(name string, p Pinger) *API {
	a.deps[name] = p
	return a
}

// WithObserver 注册请求观察器
func (a *API) WithObserver(o RequestObserver) *API {
	a.observer = o
	return a
}

// Routes 构建路由
func (a *API) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/query", a.handleQuery)
	mux.HandleFunc("POST /v1/index", a.handleIndex)
	mux.HandleFunc("POST /v1/index/delete", a.handleDelete)
	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return a.logRequests(mux)
}

// logRequests 请求日志中间件
func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		a.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// =============================================================================
// 🎯 查询接口
// =============================================================================

// QueryRequest 查询请求体
type QueryRequest struct {
	Message   string         `json:"message"`
	UserID    string         `json:"user_id"`
	SessionID string         `json:"session_id,omitempty"`
	Filters   *types.Filters `json:"filters,omitempty"`
	TimeHint  string         `json:"time_hint,omitempty"`
}

// QueryResponse 查询响应体
type QueryResponse struct {
	State        string               `json:"state"`
	Answer       string               `json:"answer,omitempty"`
	Citations    []string             `json:"citations,omitempty"`
	Evidence     []types.EvidenceItem `json:"evidence,omitempty"`
	Degradations []string             `json:"degradations,omitempty"`
	Handler      string               `json:"handler,omitempty"`
	Intent       string               `json:"intent,omitempty"`
	Confidence   float64              `json:"confidence,omitempty"`
}

func (a *API) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeErrorMessage(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed request body", "")
		return
	}
	if req.Message == "" {
		a.writeErrorMessage(w, http.StatusBadRequest, "INVALID_REQUEST", "message is required", "")
		return
	}

	requestID := uuid.NewString()
	outcome, err := a.engine.Handle(r.Context(), workflow.Request{
		RequestID: requestID,
		Message:   req.Message,
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Filters:   req.Filters,
		TimeHint:  req.TimeHint,
	})
	if a.observer != nil && outcome != nil {
		a.observer.ObserveRequest(string(outcome.State))
	}
	if err != nil {
		a.writeError(w, err, requestID)
		return
	}

	resp := QueryResponse{
		State:        string(outcome.State),
		Answer:       outcome.Data.Answer,
		Citations:    outcome.Data.Citations,
		Evidence:     outcome.Data.Evidence,
		Degradations: outcome.Data.Degradations,
	}
	if c := outcome.Data.Classification; c != nil {
		resp.Handler = c.Handler
		resp.Intent = c.Intent
		resp.Confidence = c.Confidence
	}
	a.writeJSON(w, http.StatusOK, Response{
		Success:   true,
		Data:      resp,
		Timestamp: time.Now(),
		RequestID: requestID,
	})
}

// =============================================================================
// 📥 索引接口
// =============================================================================

// IndexRequest 索引请求体
type IndexRequest struct {
	Documents []rag.Document `json:"documents"`
}

// DeleteRequest 删除请求体
type DeleteRequest struct {
	Modality types.Modality `json:"modality"`
	DocIDs   []string       `json:"doc_ids"`
}

func (a *API) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req IndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeErrorMessage(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed request body", "")
		return
	}
	if len(req.Documents) == 0 {
		a.writeErrorMessage(w, http.StatusBadRequest, "INVALID_REQUEST", "documents are required", "")
		return
	}

	if err := a.indexer.Index(r.Context(), req.Documents); err != nil {
		// 嵌入或存储失败是上游错误，其余是请求内容问题
		if types.GetErrorCode(err) != "" {
			a.writeError(w, err, "")
		} else {
			a.writeErrorMessage(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), "")
		}
		return
	}

	a.writeJSON(w, http.StatusOK, Response{
		Success:   true,
		Data:      map[string]int{"indexed": len(req.Documents)},
		Timestamp: time.Now(),
	})
}

func (a *API) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req DeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeErrorMessage(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed request body", "")
		return
	}
	if len(req.DocIDs) == 0 {
		a.writeErrorMessage(w, http.StatusBadRequest, "INVALID_REQUEST", "doc_ids are required", "")
		return
	}

	if err := a.indexer.Remove(r.Context(), req.Modality, req.DocIDs); err != nil {
		a.writeError(w, err, "")
		return
	}

	a.writeJSON(w, http.StatusOK, Response{
		Success:   true,
		Data:      map[string]int{"deleted": len(req.DocIDs)},
		Timestamp: time.Now(),
	})
}

// =============================================================================
// 🏥 健康检查
// =============================================================================

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(a.deps))
	for name, dep := range a.deps {
		if err := dep.Ping(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			checks[name] = "ok"
		}
	}

	body := map[string]any{"status": "ok"}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	if len(checks) > 0 {
		body["checks"] = checks
	}
	a.writeJSON(w, status, Response{Success: status == http.StatusOK, Data: body, Timestamp: time.Now()})
}

// =============================================================================
// 🎯 响应辅助函数
// =============================================================================

func (a *API) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		a.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (a *API) writeError(w http.ResponseWriter, err error, requestID string) {
	info := &ErrorInfo{Code: "INTERNAL_ERROR", Message: err.Error()}
	var typed *types.Error
	if errors.As(err, &typed) {
		info.Code = string(typed.Code)
		info.Message = typed.Message
		info.Retryable = typed.Retryable
	}

	a.logger.Error("API error",
		zap.String("code", info.Code),
		zap.String("message", info.Message),
		zap.Bool("retryable", info.Retryable),
	)

	a.writeJSON(w, mapErrorCodeToHTTPStatus(types.GetErrorCode(err)), Response{
		Success:   false,
		Error:     info,
		Timestamp: time.Now(),
		RequestID: requestID,
	})
}

func (a *API) writeErrorMessage(w http.ResponseWriter, status int, code, message, requestID string) {
	a.writeJSON(w, status, Response{
		Success:   false,
		Error:     &ErrorInfo{Code: code, Message: message},
		Timestamp: time.Now(),
		RequestID: requestID,
	})
}

// =============================================================================
// 🔄 错误码到 HTTP 状态码映射
// =============================================================================

func mapErrorCodeToHTTPStatus(code types.ErrorCode) int {
	switch code {
	case types.ErrNotFound:
		return http.StatusNotFound
	case types.ErrConflict:
		return http.StatusConflict
	case types.ErrInvalidTransition:
		return http.StatusInternalServerError
	case types.ErrEmbeddingFailure, types.ErrSynthesisFailure:
		return http.StatusBadGateway
	case types.ErrClassificationFailure, types.ErrToolExecutionFailure:
		return http.StatusBadGateway
	case types.ErrRetrievalDegraded:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

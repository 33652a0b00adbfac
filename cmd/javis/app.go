package main

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/javisai/javis/agents"
	"github.com/javisai/javis/config"
	"github.com/javisai/javis/embedding"
	"github.com/javisai/javis/intent"
	"github.com/javisai/javis/internal/cache"
	"github.com/javisai/javis/internal/database"
	"github.com/javisai/javis/internal/metrics"
	"github.com/javisai/javis/internal/server"
	"github.com/javisai/javis/internal/telemetry"
	"github.com/javisai/javis/llm"
	"github.com/javisai/javis/rag"
	"github.com/javisai/javis/redact"
	"github.com/javisai/javis/registry"
	"github.com/javisai/javis/rerank"
	"github.com/javisai/javis/synthesis"
	"github.com/javisai/javis/tools"
	"github.com/javisai/javis/workflow"
)

// =============================================================================
// 🔌 应用装配
// =============================================================================

// App 持有运行中服务的顶层组件与清理函数
type App struct {
	Server  *server.Manager
	logger  *zap.Logger
	closers []func()
}

// Close 逆序释放所有组件
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// buildApp 按配置装配全部组件。注册表在服务启动前冻结。
func buildApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{logger: logger}

	// 遥测
	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	} else {
		app.closers = append(app.closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := otelProviders.Shutdown(ctx); err != nil {
				logger.Warn("telemetry shutdown failed", zap.Error(err))
			}
		})
	}

	collector := metrics.NewCollector("javis", logger)

	// 分类决策缓存（可选）
	var decisions intent.DecisionCache
	var cacheMgr *cache.Manager
	if cfg.Redis.Enabled {
		cacheMgr, err = cache.NewManager(cache.Config{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			DefaultTTL: cfg.Redis.DefaultTTL,
			PoolSize:   cfg.Redis.PoolSize,
		}, logger)
		if err != nil {
			logger.Warn("Redis not available, decision cache disabled", zap.Error(err))
		} else {
			decisions = cache.NewDecisionCache(cacheMgr)
			app.closers = append(app.closers, func() { cacheMgr.Close() })
		}
	}

	// 元数据存储
	var meta rag.MetadataStore
	dbStore, err := database.NewStore(database.Config{
		Driver:       cfg.Database.Driver,
		DSN:          cfg.Database.DSN,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	}, logger)
	if err != nil {
		logger.Warn("metadata store not available, provenance persistence disabled", zap.Error(err))
	} else {
		meta = dbStore
		app.closers = append(app.closers, func() { dbStore.Close() })
	}

	// 向量存储与嵌入
	store := rag.NewQdrantStore(rag.QdrantConfig{
		Host:             cfg.Qdrant.Host,
		Port:             cfg.Qdrant.Port,
		APIKey:           cfg.Qdrant.APIKey,
		CollectionPrefix: cfg.Qdrant.CollectionPrefix,
		VectorSize:       cfg.Embedding.Dimensions,
		Timeout:          cfg.Qdrant.Timeout,
	}, logger)

	embedder := embedding.NewHTTPProvider(embedding.Config{
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    cfg.Embedding.Timeout,
	}, logger)

	var reranker rerank.Reranker
	if cfg.Rerank.Enabled {
		reranker = rerank.NewVLMReranker(rerank.Config{
			BaseURL: cfg.Rerank.BaseURL,
			Model:   cfg.Rerank.Model,
			Timeout: cfg.Rerank.Timeout,
		}, logger)
	}

	// LLM
	var provider llm.Provider = llm.NewGeminiProvider(llm.GeminiConfig{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	}, logger)
	if cfg.LLM.RequestsPerSecond > 0 {
		burst := int(cfg.LLM.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		provider = llm.NewRateLimitedProvider(provider, cfg.LLM.RequestsPerSecond, burst)
	}

	// 脱敏
	filter, err := buildFilter(cfg.Redaction)
	if err != nil {
		return nil, err
	}

	// 检索与合成
	answerer := synthesis.NewAnswerer(provider, synthesis.NewTokenCounter(logger), synthesis.Config{
		TokenBudget:   cfg.Retrieval.ContextTokenBudget,
		VisionEnabled: cfg.LLM.VisionEnabled,
		MaxImages:     cfg.Retrieval.MaxImages,
	}, logger)

	pipeline := rag.NewPipeline(embedder, store, reranker, filter, answerer, rag.PipelineConfig{
		KCandidates:   cfg.Retrieval.KCandidates,
		KFinal:        cfg.Retrieval.KFinal,
		SearchTimeout: cfg.Retrieval.SearchTimeout,
		RerankEnabled: cfg.Rerank.Enabled,
	}, logger).WithObserver(collector)

	indexer := rag.NewIndexer(embedder, store, filter, meta, logger)

	// 处理器与工具注册。Freeze 之后注册表只读。
	reg := registry.New(logger)
	if err := reg.RegisterHandler(agents.NewChatAgent(pipeline, logger)); err != nil {
		return nil, err
	}
	if err := reg.RegisterHandler(agents.NewCodingAgent(provider, logger)); err != nil {
		return nil, err
	}
	if err := reg.RegisterHandler(agents.NewDashboardAgent(provider, logger)); err != nil {
		return nil, err
	}
	if err := reg.RegisterHandler(agents.NewRecommendationAgent(provider, logger)); err != nil {
		return nil, err
	}

	webSearch := tools.NewWebSearch(tools.WebSearchConfig{
		BaseURL:    cfg.Tools.WebSearchURL,
		MaxResults: cfg.Tools.WebSearchMaxResults,
	}, logger)
	localFile := tools.NewLocalFile(tools.LocalFileConfig{
		Root: cfg.Tools.LocalFileRoot,
	}, logger)
	if err := reg.RegisterTool("chat", webSearch); err != nil {
		return nil, err
	}
	if err := reg.RegisterTool("chat", localFile); err != nil {
		return nil, err
	}
	if err := reg.RegisterTool("coding", localFile); err != nil {
		return nil, err
	}
	reg.Freeze()

	// 工作流引擎
	classifier := intent.NewClassifier(provider, reg, decisions, intent.ClassifierConfig{
		CacheTTL: cfg.Routing.CacheTTL,
	}, logger)
	selector := intent.NewSelector(provider, reg, intent.SelectorConfig{
		Offline: cfg.Routing.Offline,
	}, logger)
	engine := workflow.New(classifier, selector, reg, workflow.Config{
		ConfidenceThreshold: cfg.Routing.ConfidenceThreshold,
		DefaultHandler:      cfg.Routing.DefaultHandler,
	}, logger).WithObserver(collector)

	// HTTP 接口
	api := server.NewAPI(engine, indexer, logger).WithObserver(collector)
	if cacheMgr != nil {
		api.WithDependency("cache", cacheMgr)
	}
	if dbStore != nil && meta != nil {
		api.WithDependency("database", dbStore)
	}

	app.Server = server.NewManager(api.Routes(), cfg.Server, logger)
	return app, nil
}

// buildFilter 编译配置中的脱敏模式，为空时使用内置默认集
func buildFilter(cfg config.RedactionConfig) (*redact.Filter, error) {
	if len(cfg.Patterns) == 0 {
		return redact.MustNew(), nil
	}
	patterns := make([]redact.Pattern, 0, len(cfg.Patterns))
	for _, p := range cfg.Patterns {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p.Name, err)
		}
		patterns = append(patterns, redact.Pattern{Name: p.Name, Regex: re})
	}
	return redact.New(patterns...)
}

// =============================================================================
// JAVIS 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("JAVIS").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是 JAVIS 核心的完整配置结构
type Config struct {
	// Server HTTP 服务配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`

	// Redis 缓存配置（意图分类决策缓存）
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Database 元数据存储配置
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Qdrant 向量存储配置
	Qdrant QdrantConfig `yaml:"qdrant" env:"QDRANT"`

	// Embedding 嵌入服务配置
	Embedding EmbeddingConfig `yaml:"embedding" env:"EMBEDDING"`

	// Rerank 重排序服务配置
	Rerank RerankConfig `yaml:"rerank" env:"RERANK"`

	// LLM 大语言模型配置
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Retrieval 检索管线配置
	Retrieval RetrievalConfig `yaml:"retrieval" env:"RETRIEVAL"`

	// Routing 意图路由配置
	Routing RoutingConfig `yaml:"routing" env:"ROUTING"`

	// Tools 内置工具配置
	Tools ToolsConfig `yaml:"tools" env:"TOOLS"`

	// Redaction 脱敏配置
	Redaction RedactionConfig `yaml:"redaction" env:"-"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// 监听地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 是否启用分类决策缓存
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 默认过期时间
	DefaultTTL time.Duration `yaml:"default_ttl" env:"DEFAULT_TTL"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
}

// DatabaseConfig 元数据数据库配置
type DatabaseConfig struct {
	// 驱动类型: sqlite, postgres, mysql
	Driver string `yaml:"driver" env:"DRIVER"`
	// DSN（sqlite 为文件路径）
	DSN string `yaml:"dsn" env:"DSN"`
	// 最大连接数
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// 最大空闲连接
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
}

// QdrantConfig Qdrant 向量存储配置
type QdrantConfig struct {
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// REST 端口
	Port int `yaml:"port" env:"PORT"`
	// API Key（可选）
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 集合名前缀，按模态展开为 <prefix>_text / _image / _screen
	CollectionPrefix string `yaml:"collection_prefix" env:"COLLECTION_PREFIX"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// EmbeddingConfig 嵌入服务配置
type EmbeddingConfig struct {
	// 服务地址
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 模型名（查询与索引必须使用同一模型版本）
	Model string `yaml:"model" env:"MODEL"`
	// 向量维度
	Dimensions int `yaml:"dimensions" env:"DIMENSIONS"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// RerankConfig 重排序服务配置
type RerankConfig struct {
	// 是否启用图像重排
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 服务地址
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 模型名
	Model string `yaml:"model" env:"MODEL"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// LLMConfig LLM 配置
type LLMConfig struct {
	// API Key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 基础 URL（可选，默认官方端点）
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 模型名
	Model string `yaml:"model" env:"MODEL"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 每秒请求数限制（0 不限流）
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
	// 是否启用视觉条件答案合成
	VisionEnabled bool `yaml:"vision_enabled" env:"VISION_ENABLED"`
}

// RetrievalConfig 检索管线配置
type RetrievalConfig struct {
	// 每个模态集合召回的候选数
	KCandidates int `yaml:"k_candidates" env:"K_CANDIDATES"`
	// 融合后保留的最终候选数
	KFinal int `yaml:"k_final" env:"K_FINAL"`
	// 单集合搜索超时
	SearchTimeout time.Duration `yaml:"search_timeout" env:"SEARCH_TIMEOUT"`
	// 合成上下文 Token 预算
	ContextTokenBudget int `yaml:"context_token_budget" env:"CONTEXT_TOKEN_BUDGET"`
	// 视觉合成时附带的证据图像数上限
	MaxImages int `yaml:"max_images" env:"MAX_IMAGES"`
}

// RoutingConfig 意图路由配置
type RoutingConfig struct {
	// 置信度阈值，低于该值路由到默认处理器
	ConfidenceThreshold float64 `yaml:"confidence_threshold" env:"CONFIDENCE_THRESHOLD"`
	// 默认处理器标识
	DefaultHandler string `yaml:"default_handler" env:"DEFAULT_HANDLER"`
	// 是否离线运行（禁止需要网络的工具）
	Offline bool `yaml:"offline" env:"OFFLINE"`
	// 分类决策缓存 TTL
	CacheTTL time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
}

// ToolsConfig 内置工具配置
type ToolsConfig struct {
	// SearXNG 搜索服务地址
	WebSearchURL string `yaml:"web_search_url" env:"WEB_SEARCH_URL"`
	// 搜索结果条数上限
	WebSearchMaxResults int `yaml:"web_search_max_results" env:"WEB_SEARCH_MAX_RESULTS"`
	// 本地文件工具的根目录
	LocalFileRoot string `yaml:"local_file_root" env:"LOCAL_FILE_ROOT"`
}

// RedactionConfig 脱敏配置
type RedactionConfig struct {
	// Patterns 命名正则模式；为空时使用内置默认集
	Patterns []RedactionPattern `yaml:"patterns"`
}

// RedactionPattern 一条命名脱敏模式
type RedactionPattern struct {
	Name  string `yaml:"name"`
	Regex string `yaml:"regex"`
}

// =============================================================================
// 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "JAVIS",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量覆盖配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Duration(0)) {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}

	default:
		return fmt.Errorf("unsupported field kind: %s", field.Kind())
	}

	return nil
}

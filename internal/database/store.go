// Package database provides the GORM-backed metadata store for indexed
// documents. This package is internal and should not be imported by external
// projects.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/javisai/javis/rag"
)

// =============================================================================
// 🗄️ 元数据存储
// =============================================================================

// Config 数据库配置
type Config struct {
	// 驱动类型: sqlite, postgres, mysql
	Driver string `yaml:"driver" json:"driver"`

	// DSN（sqlite 为文件路径）
	DSN string `yaml:"dsn" json:"dsn"`

	// 最大打开连接数
	MaxOpenConns int `yaml:"max_open_conns" json:"max_open_conns"`

	// 最大空闲连接数
	MaxIdleConns int `yaml:"max_idle_conns" json:"max_idle_conns"`
}

// DefaultConfig 返回默认数据库配置
func DefaultConfig() Config {
	return Config{
		Driver:       "sqlite",
		DSN:          "javis.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
	}
}

// DocumentRecord 已索引文档的元数据记录
type DocumentRecord struct {
	DocID     string    `gorm:"primaryKey;size:128"`
	Modality  string    `gorm:"size:16;index"`
	UserID    string    `gorm:"size:64;index"`
	Source    string    `gorm:"size:32"`
	Path      string    `gorm:"size:512"`
	URL       string    `gorm:"size:1024"`
	Page      int
	Timestamp time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 指定表名
func (DocumentRecord) TableName() string {
	return "documents"
}

// Store 文档元数据存储
type Store struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	config Config
	logger *zap.Logger
	mu     sync.RWMutex
	closed bool
}

// NewStore 创建元数据存储并执行迁移
func NewStore(config Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dialector, err := openDialector(config)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// 配置连接池
	if config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	}

	if err := db.AutoMigrate(&DocumentRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	s := &Store{
		db:     db,
		sqlDB:  sqlDB,
		config: config,
		logger: logger.With(zap.String("component", "metadata_store")),
	}
	s.logger.Info("metadata store initialized", zap.String("driver", config.Driver))
	return s, nil
}

// openDialector 按驱动类型选择 GORM 方言
func openDialector(config Config) (gorm.Dialector, error) {
	switch config.Driver {
	case "sqlite", "":
		return sqlite.Open(config.DSN), nil
	case "postgres":
		return postgres.Open(config.DSN), nil
	case "mysql":
		return mysql.Open(config.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", config.Driver)
	}
}

// =============================================================================
// 🎯 核心方法
// =============================================================================

// SaveDocuments 保存或更新文档元数据
func (s *Store) SaveDocuments(ctx context.Context, docs []rag.Document) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("metadata store is closed")
	}
	if len(docs) == 0 {
		return nil
	}

	records := make([]DocumentRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, DocumentRecord{
			DocID:     doc.DocID,
			Modality:  string(doc.Modality),
			UserID:    doc.UserID,
			Source:    doc.Provenance.Source,
			Path:      doc.Provenance.Path,
			URL:       doc.Provenance.URL,
			Page:      doc.Provenance.Page,
			Timestamp: doc.Provenance.Timestamp,
		})
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "doc_id"}},
			UpdateAll: true,
		}).
		Create(&records).Error
	if err != nil {
		s.logger.Error("failed to save documents", zap.Int("count", len(docs)), zap.Error(err))
		return fmt.Errorf("save documents: %w", err)
	}
	return nil
}

// DeleteDocuments 按 ID 删除文档元数据
func (s *Store) DeleteDocuments(ctx context.Context, docIDs []string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("metadata store is closed")
	}
	if len(docIDs) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).
		Where("doc_id IN ?", docIDs).
		Delete(&DocumentRecord{}).Error
	if err != nil {
		s.logger.Error("failed to delete documents", zap.Strings("doc_ids", docIDs), zap.Error(err))
		return fmt.Errorf("delete documents: %w", err)
	}
	return nil
}

// ListByUser 列出某用户的文档元数据，按时间倒序
func (s *Store) ListByUser(ctx context.Context, userID string, limit int) ([]DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("metadata store is closed")
	}
	if limit <= 0 {
		limit = 100
	}

	var records []DocumentRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return records, nil
}

// Count 返回文档元数据总数
func (s *Store) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, fmt.Errorf("metadata store is closed")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&DocumentRecord{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

// Ping 检查数据库连接
func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("metadata store is closed")
	}
	return s.sqlDB.PingContext(ctx)
}

// Close 关闭元数据存储
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Info("closing metadata store")
	return s.sqlDB.Close()
}

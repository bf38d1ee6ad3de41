package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/tool-recommender-bot/wuic/logger"
)

// SQLiteConfig configures the on-disk cache store.
type SQLiteConfig struct {
	Path   string
	TTL    time.Duration
	Logger *log.Logger
}

// cacheRow is one serialized entry.
type cacheRow struct {
	Key       string `gorm:"primaryKey;size:64"`
	Workflow  string `gorm:"index"`
	Payload   []byte
	CreatedAt int64 `gorm:"index"`
}

func (cacheRow) TableName() string { return "cache_entries" }

// sourceRow maps an origin identifier to an entry derived from it, so a
// source change signal can drop every dependent entry in one query.
type sourceRow struct {
	ID     uint   `gorm:"primaryKey"`
	Key    string `gorm:"index"`
	Source string `gorm:"index"`
}

func (sourceRow) TableName() string { return "cache_sources" }

// SQLiteStore persists entries across restarts through gorm over SQLite.
type SQLiteStore struct {
	db *gorm.DB

	mu     sync.Mutex
	ttl    time.Duration
	stop   chan struct{}
	closed bool
}

// Verify interface compliance at compile time.
var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens (creating if needed) the cache database at cfg.Path and
// migrates its schema.
func NewSQLite(cfg SQLiteConfig) (*SQLiteStore, error) {
	loggerConfig := gormLogger.Config{
		SlowThreshold:             200000000,
		IgnoreRecordNotFoundError: true,
		LogLevel:                  gormLogger.Warn,
	}

	gormLog := gormLogger.New(newGormLogger(cfg.Logger), loggerConfig)

	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	if err := db.AutoMigrate(&cacheRow{}, &sourceRow{}); err != nil {
		return nil, fmt.Errorf("migrate cache schema: %w", err)
	}

	s := &SQLiteStore{db: db}
	s.SetTTL(cfg.TTL)
	return s, nil
}

// SetTTL replaces the store's time-to-live, cancelling any pending sweep
// schedule. Non-positive disables eviction.
func (s *SQLiteStore) SetTTL(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	s.ttl = ttl
	if ttl > 0 && !s.closed {
		stop := make(chan struct{})
		s.stop = stop
		go s.sweepLoop(ttl, stop)
	}
}

func (s *SQLiteStore) sweepLoop(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *SQLiteStore) sweep() {
	s.mu.Lock()
	ttl := s.ttl
	s.mu.Unlock()
	if ttl <= 0 {
		return
	}
	cutoff := time.Now().Add(-ttl).UnixMilli()
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("created_at < ?", cutoff).Delete(&cacheRow{}).Error; err != nil {
			return err
		}
		return tx.Where("key NOT IN (?)", tx.Model(&cacheRow{}).Select("key")).Delete(&sourceRow{}).Error
	})
	if err != nil {
		logger.L().Warn("cache sweep failed", "error", err)
	}
}

// Get implements Store. Entries older than the TTL read as misses even
// before the next sweep removes them.
func (s *SQLiteStore) Get(ctx context.Context, key Fingerprint) (*Entry, error) {
	var row cacheRow
	err := s.db.WithContext(ctx).First(&row, "key = ?", key.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}

	s.mu.Lock()
	ttl := s.ttl
	s.mu.Unlock()
	if ttl > 0 && time.Since(time.UnixMilli(row.CreatedAt)) > ttl {
		return nil, nil
	}
	return DecodeEntry(key, row.Payload)
}

// Put implements Store.
func (s *SQLiteStore) Put(ctx context.Context, e *Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	payload, err := EncodeEntry(ctx, e)
	if err != nil {
		return err
	}
	key := e.Key.String()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("key = ?", key).Delete(&cacheRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("key = ?", key).Delete(&sourceRow{}).Error; err != nil {
			return err
		}
		row := cacheRow{
			Key:       key,
			Workflow:  e.WorkflowID,
			Payload:   payload,
			CreatedAt: e.CreatedAt.UnixMilli(),
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		for _, src := range e.Sources {
			if err := tx.Create(&sourceRow{Key: key, Source: src}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Invalidate implements Store.
func (s *SQLiteStore) Invalidate(ctx context.Context, key Fingerprint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("key = ?", key.String()).Delete(&cacheRow{}).Error; err != nil {
			return err
		}
		return tx.Where("key = ?", key.String()).Delete(&sourceRow{}).Error
	})
}

// InvalidateSource implements Store.
func (s *SQLiteStore) InvalidateSource(ctx context.Context, sourceID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var keys []string
		if err := tx.Model(&sourceRow{}).Where("source = ?", sourceID).Pluck("key", &keys).Error; err != nil {
			return err
		}
		if len(keys) == 0 {
			return nil
		}
		if err := tx.Where("key IN ?", keys).Delete(&cacheRow{}).Error; err != nil {
			return err
		}
		return tx.Where("key IN ?", keys).Delete(&sourceRow{}).Error
	})
}

// Clear implements Store.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&cacheRow{}).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&sourceRow{}).Error
	})
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	s.mu.Unlock()

	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

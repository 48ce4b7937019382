package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// entry is one persisted key of an area
type entry struct {
	Area      string `gorm:"primaryKey;size:32"`
	Key       string `gorm:"primaryKey;column:name;size:128"`
	Value     []byte
	UpdatedAt time.Time
}

func (entry) TableName() string { return "tranquilize_kv" }

// OpenDB opens (and migrates) the SQLite database backing persistent areas
func OpenDB(path string, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: NewGormLogger(log),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if err := db.AutoMigrate(&entry{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	return db, nil
}

// SQLite is a Store persisted in one area of a gorm database
type SQLite struct {
	db   *gorm.DB
	area string
	notifier
}

// NewSQLite binds an area to an opened database
func NewSQLite(db *gorm.DB, area string) *SQLite {
	return &SQLite{db: db, area: area}
}

// Get returns the values of the requested keys that exist
func (s *SQLite) Get(ctx context.Context, keys ...string) (map[string][]byte, error) {
	var rows []entry
	err := s.db.WithContext(ctx).
		Where("area = ? AND name IN ?", s.area, keys).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("get %v: %w", keys, err)
	}

	out := make(map[string][]byte, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

// Set upserts every item in one transaction
func (s *SQLite) Set(ctx context.Context, items map[string][]byte) error {
	if len(items) == 0 {
		return nil
	}

	keys := sortedKeys(items)
	old, err := s.Get(ctx, keys...)
	if err != nil {
		return err
	}

	now := time.Now()
	rows := make([]entry, 0, len(items))
	for _, k := range keys {
		rows = append(rows, entry{Area: s.area, Key: k, Value: items[k], UpdatedAt: now})
	}

	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "area"}, {Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&rows).Error
	if err != nil {
		return fmt.Errorf("set %v: %w", keys, err)
	}

	changes := make([]Change, 0, len(keys))
	for _, k := range keys {
		changes = append(changes, Change{Area: s.area, Key: k, Old: old[k], New: items[k]})
	}
	s.emit(changes)
	return nil
}

// Remove deletes keys
func (s *SQLite) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	old, err := s.Get(ctx, keys...)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).
		Where("area = ? AND name IN ?", s.area, keys).
		Delete(&entry{}).Error
	if err != nil {
		return fmt.Errorf("remove %v: %w", keys, err)
	}

	var changes []Change
	for _, k := range keys {
		if v, ok := old[k]; ok {
			changes = append(changes, Change{Area: s.area, Key: k, Old: v})
		}
	}
	s.emit(changes)
	return nil
}

// OnChanged registers a change listener
func (s *SQLite) OnChanged(fn func(Change)) func() {
	return s.subscribe(fn)
}

// Close is a no-op, the database belongs to whoever called OpenDB
func (s *SQLite) Close() error { return nil }

// CloseDB releases the connection pool of a database opened with OpenDB
func CloseDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultSQLitePath is the database file used when none is configured.
const DefaultSQLitePath = "leetstat.db"

// kvRecord is one row of the key-value table.
type kvRecord struct {
	Namespace string `gorm:"primaryKey;type:varchar(64)"`
	Field     string `gorm:"primaryKey;type:varchar(255)"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (kvRecord) TableName() string { return "kv_entries" }

// SQLiteKV stores namespaces as rows of a single SQLite table through gorm.
type SQLiteKV struct {
	db *gorm.DB
}

// OpenSQLite opens (or creates) the database at path and migrates the
// key-value table.
func OpenSQLite(path string) (*SQLiteKV, error) {
	if path == "" {
		path = DefaultSQLitePath
	}
	db, err := gorm.Open(sqlite.Open(sqliteDSN(path)), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	if err := db.AutoMigrate(&kvRecord{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite %q: %w", path, err)
	}
	return &SQLiteKV{db: db}, nil
}

// sqliteDSN adds a busy timeout so concurrent handles over one file wait
// for each other instead of failing with SQLITE_BUSY.
func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_busy_timeout=5000"
}

// Get implements KV.
func (s *SQLiteKV) Get(ctx context.Context, namespace, field string) (string, bool, error) {
	var rec kvRecord
	err := s.db.WithContext(ctx).
		Where("namespace = ? AND field = ?", namespace, field).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("sqlite get %s/%s: %w", namespace, field, err)
	}
	return rec.Value, true, nil
}

// Apply implements KV inside one transaction.
func (s *SQLiteKV) Apply(ctx context.Context, sets []Entry, deletes []Key) error {
	if len(sets) == 0 && len(deletes) == 0 {
		return nil
	}
	now := time.Now().UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(sets) > 0 {
			rows := make([]kvRecord, 0, len(sets))
			for _, e := range sets {
				rows = append(rows, kvRecord{Namespace: e.Namespace, Field: e.Field, Value: e.Value, UpdatedAt: now})
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "namespace"}, {Name: "field"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
			}).Create(&rows).Error
			if err != nil {
				return fmt.Errorf("sqlite upsert: %w", err)
			}
		}
		for _, k := range deletes {
			err := tx.Where("namespace = ? AND field = ?", k.Namespace, k.Field).
				Delete(&kvRecord{}).Error
			if err != nil {
				return fmt.Errorf("sqlite delete %s/%s: %w", k.Namespace, k.Field, err)
			}
		}
		return nil
	})
}

// Fields implements KV.
func (s *SQLiteKV) Fields(ctx context.Context, namespace string) ([]string, error) {
	var fields []string
	err := s.db.WithContext(ctx).Model(&kvRecord{}).
		Where("namespace = ?", namespace).
		Order("field").
		Pluck("field", &fields).Error
	if err != nil {
		return nil, fmt.Errorf("sqlite fields %s: %w", namespace, err)
	}
	return fields, nil
}

// Drop implements KV.
func (s *SQLiteKV) Drop(ctx context.Context, namespaces ...string) error {
	if len(namespaces) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Where("namespace IN ?", namespaces).
		Delete(&kvRecord{}).Error
	if err != nil {
		return fmt.Errorf("sqlite drop: %w", err)
	}
	return nil
}

// Close implements KV.
func (s *SQLiteKV) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

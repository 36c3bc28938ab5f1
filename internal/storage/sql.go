package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// item is a single stored value.
type item struct {
	Name      string `gorm:"primaryKey;size:255"`
	Value     string
	UpdatedAt time.Time
}

func (item) TableName() string {
	return "storage_items"
}

// SQL stores items in a relational table through gorm.
type SQL struct {
	db *gorm.DB
}

// OpenSQLite opens (creating if necessary) a sqlite database at dsn.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	return db, nil
}

// NewSQL creates a storage over db. The items table is created if it does
// not exist.
func NewSQL(db *gorm.DB) (*SQL, error) {
	if err := db.AutoMigrate(&item{}); err != nil {
		return nil, fmt.Errorf("migrating storage table: %w", err)
	}
	return &SQL{db: db}, nil
}

func (s *SQL) GetItem(ctx context.Context, key string) (string, bool, error) {
	var it item
	tx := s.db.WithContext(ctx).Where("name = ?", key).Limit(1).Find(&it)
	if tx.Error != nil {
		return "", false, fmt.Errorf("failed to get stored value: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return "", false, nil
	}

	return it.Value, true, nil
}

func (s *SQL) SetItem(ctx context.Context, key, value string) error {
	var it item
	tx := s.db.WithContext(ctx).
		Where(item{Name: key}).
		Assign(map[string]any{"value": value}).
		FirstOrCreate(&it)
	if tx.Error != nil {
		return fmt.Errorf("failed to set stored value: %w", tx.Error)
	}
	return nil
}

func (s *SQL) RemoveItem(ctx context.Context, key string) error {
	tx := s.db.WithContext(ctx).Delete(&item{}, "name = ?", key)
	if tx.Error != nil {
		return fmt.Errorf("failed to remove stored value: %w", tx.Error)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *SQL) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

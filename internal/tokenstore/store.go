// Package tokenstore persists bearer tokens in SQLite so the CLI can write
// the token a netguard.Client reads.
package tokenstore

import (
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/ambiyansyah-risyal/netguard"
)

// Token is one stored key/value pair.
type Token struct {
	Key       string `gorm:"column:token_key;primaryKey;size:255"`
	Value     string `gorm:"not null"`
	UpdatedAt time.Time
}

// Options configures Open.
type Options struct {
	// TablePrefix is prepended to the table name, e.g. "netguard_".
	TablePrefix string
	Logger      netguard.Logger
}

// Store is a netguard.TokenStore backed by gorm.
type Store struct {
	db     *gorm.DB
	logger netguard.Logger
}

var _ netguard.TokenStore = (*Store)(nil)

// Open opens (creating if needed) the SQLite database at dsn and migrates
// the token table.
func Open(dsn string, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = netguard.NopLogger()
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         newGormLogger(logger),
		NamingStrategy: schema.NamingStrategy{TablePrefix: opts.TablePrefix},
	})
	if err != nil {
		return nil, fmt.Errorf("open token store: %w", err)
	}
	if err := db.AutoMigrate(&Token{}); err != nil {
		return nil, fmt.Errorf("migrate token store: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(key, value string) error {
	tok := Token{Key: key, Value: value}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&tok).Error
	if err != nil {
		return fmt.Errorf("store token %q: %w", key, err)
	}
	return nil
}

// Token implements netguard.TokenStore. Lookup errors are logged and
// reported as a missing token.
func (s *Store) Token(key string) (string, bool) {
	var tok Token
	err := s.db.Where("token_key = ?", key).Take(&tok).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false
	}
	if err != nil {
		s.logger.Error("Token lookup failed", "key", key, "error", err.Error())
		return "", false
	}
	return tok.Value, true
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	if err := s.db.Where("token_key = ?", key).Delete(&Token{}).Error; err != nil {
		return fmt.Errorf("delete token %q: %w", key, err)
	}
	return nil
}

// Keys lists stored keys in order.
func (s *Store) Keys() ([]string, error) {
	var keys []string
	if err := s.db.Model(&Token{}).Order("token_key").Pluck("token_key", &keys).Error; err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	return keys, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

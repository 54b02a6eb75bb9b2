package source

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

const slowQueryThreshold = time.Second

// PostgresReader reads the primary store through GORM. All snapshot reads run
// inside a repeatable-read, read-only transaction so a reconciliation pass
// never observes half of a multi-row commit.
type PostgresReader struct {
	db *gorm.DB
}

// NewPostgresReader connects to the primary store.
func NewPostgresReader(dsn string) (*PostgresReader, error) {
	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             slowQueryThreshold,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to primary store: %w", err)
	}

	return &PostgresReader{db: db}, nil
}

// UserSnapshot returns a consistent snapshot of one user's rows.
func (r *PostgresReader) UserSnapshot(ctx context.Context, userID string) (Snapshot, error) {
	snap := Snapshot{UserID: userID}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Find(&snap.Dives).Error; err != nil {
			return fmt.Errorf("read dive_logs: %w", err)
		}
		if err := tx.Where("user_id = ?", userID).Find(&snap.Media).Error; err != nil {
			return fmt.Errorf("read media: %w", err)
		}
		if err := tx.
			Joins("JOIN media ON media.id = media_species_tags.media_id").
			Where("media.user_id = ?", userID).
			Select("media_species_tags.*").
			Find(&snap.Tags).Error; err != nil {
			return fmt.Errorf("read media_species_tags: %w", err)
		}
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return Snapshot{}, err
	}

	return snap, nil
}

// AllUserIDs lists every user present in dive_logs or media.
func (r *PostgresReader) AllUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Raw(`SELECT user_id FROM dive_logs UNION SELECT user_id FROM media`).
		Scan(&ids).Error
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	return ids, nil
}

// SpeciesCatalogSize counts the species catalog.
func (r *PostgresReader) SpeciesCatalogSize(ctx context.Context) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).Table("species").Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count species: %w", err)
	}
	return int(count), nil
}

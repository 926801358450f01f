package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/shelfauth/identity"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// User is the persisted directory row.
type User struct {
	ID          string `gorm:"primaryKey;size:36"`
	SubjectID   string `gorm:"uniqueIndex;size:255;not null"`
	Email       string `gorm:"size:320"`
	DisplayName string `gorm:"size:255"`
	AvatarURL   string `gorm:"size:2048"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (u User) principal() identity.Principal {
	return identity.Principal{
		SubjectID:   u.SubjectID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
	}
}

// Gorm is a Directory backed by a gorm database.
type Gorm struct {
	db *gorm.DB
}

// OpenSQLite opens (or creates) a sqlite database at dsn and migrates the user table.
func OpenSQLite(dsn string) (*Gorm, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open directory database: %w", err)
	}
	return NewGorm(db)
}

// NewGorm wraps an existing connection and migrates the user table.
func NewGorm(db *gorm.DB) (*Gorm, error) {
	if err := db.AutoMigrate(&User{}); err != nil {
		return nil, fmt.Errorf("migrate directory: %w", err)
	}
	return &Gorm{db: db}, nil
}

func (g *Gorm) Upsert(ctx context.Context, p identity.Principal) (identity.Principal, error) {
	if !p.Valid() {
		return identity.Principal{}, ErrInvalidPrincipal
	}

	row := User{
		ID:          uuid.NewString(),
		SubjectID:   p.SubjectID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
	}
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "subject_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "avatar_url", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return identity.Principal{}, fmt.Errorf("upsert principal: %w", err)
	}

	return g.ResolvePrincipal(ctx, p.SubjectID)
}

func (g *Gorm) ResolvePrincipal(ctx context.Context, subjectID string) (identity.Principal, error) {
	var row User
	err := g.db.WithContext(ctx).Where("subject_id = ?", subjectID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return identity.Principal{}, ErrNotFound
		}
		return identity.Principal{}, fmt.Errorf("resolve principal: %w", err)
	}
	return row.principal(), nil
}

func (g *Gorm) Remove(ctx context.Context, subjectID string) error {
	if err := g.db.WithContext(ctx).Where("subject_id = ?", subjectID).Delete(&User{}).Error; err != nil {
		return fmt.Errorf("remove principal: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (g *Gorm) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

package service

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/openshelf/shelfcast/internal/models"
)

// SettingsService persists cross-invocation cursors as key/value rows.
// Invocations are short-lived and stateless, so every cursor (sweep hour,
// catalog offset, subreddit watermark) lives here.
type SettingsService struct {
	db *gorm.DB
}

func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{db: db}
}

// Get returns the value for key, lazily creating the row with def when it
// does not exist yet.
func (s *SettingsService) Get(key, def string) (string, error) {
	setting := models.SystemSetting{Key: key, Value: def}
	err := s.db.Where(models.SystemSetting{Key: key}).
		Attrs(models.SystemSetting{Value: def}).
		FirstOrCreate(&setting).Error
	if err != nil {
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return setting.Value, nil
}

// Set upserts the value for key.
func (s *SettingsService) Set(key, value string) error {
	setting := models.SystemSetting{Key: key, Value: value}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// CompareAndSwap atomically replaces the value for key only if it still
// holds old. Returns false when another invocation got there first.
func (s *SettingsService) CompareAndSwap(key, old, new string) (bool, error) {
	res := s.db.Model(&models.SystemSetting{}).
		Where("key = ? AND value = ?", key, old).
		Update("value", new)
	if res.Error != nil {
		return false, fmt.Errorf("failed to swap setting %s: %w", key, res.Error)
	}
	return res.RowsAffected > 0, nil
}

package repository

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingRepository は名前付き設定値（キーバリュー）の保存を提供する。
type SettingRepository struct {
	db *gorm.DB
}

// NewSettingRepository は新しいSettingRepositoryを生成する。
func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// Get は設定値を取得する。存在しない場合は nil を返す。
func (r *SettingRepository) Get(ctx context.Context, name string) ([]byte, error) {
	var model SettingModel
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to get setting",
			"operation", "get",
			"name", name,
			"error", err,
		)
		return nil, err
	}
	return model.Value, nil
}

// Set は設定値を保存する。既存の値は上書きする。
func (r *SettingRepository) Set(ctx context.Context, name string, value []byte) error {
	model := &SettingModel{Name: name, Value: value}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(model).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to set setting",
			"operation", "set",
			"name", name,
			"error", err,
		)
		return err
	}
	return nil
}

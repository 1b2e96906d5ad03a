package repository

import (
	"kbsync/internal/db"
	"kbsync/internal/model"
	"time"
)

type HistoryRepository struct{}

func NewHistoryRepository() *HistoryRepository {
	return &HistoryRepository{}
}

// Record is what the sync engine reports for one finished action.
type Record struct {
	RunID   string
	Project string
	Action  string
	Path    string
	Err     error
}

func (r *HistoryRepository) Save(rec Record) error {
	status := model.StatusSuccess
	errMsg := ""
	if rec.Err != nil {
		status = model.StatusFailed
		errMsg = rec.Err.Error()
	}

	history := model.History{
		RunID:    rec.RunID,
		Project:  rec.Project,
		Action:   rec.Action,
		Path:     rec.Path,
		Status:   status,
		ErrMsg:   errMsg,
		SyncedAt: time.Now(),
	}

	return db.DB.Create(&history).Error
}

type Stats struct {
	Total   int64
	Success int64
	Failed  int64
}

func (r *HistoryRepository) GetStats() (Stats, error) {
	var stats Stats
	if err := db.DB.Model(&model.History{}).Count(&stats.Total).Error; err != nil {
		return stats, err
	}

	if err := db.DB.Model(&model.History{}).
		Where("status = ?", model.StatusSuccess).
		Count(&stats.Success).Error; err != nil {
		return stats, err
	}

	stats.Failed = stats.Total - stats.Success
	return stats, nil
}

func (r *HistoryRepository) GetRecent(limit int) ([]model.History, error) {
	var histories []model.History
	result := db.DB.
		Order("synced_at desc, id desc").
		Limit(limit).
		Find(&histories)

	return histories, result.Error
}

func (r *HistoryRepository) GetFailed(limit int) ([]model.History, error) {
	var histories []model.History
	result := db.DB.
		Where("status = ?", model.StatusFailed).
		Order("synced_at desc, id desc").
		Limit(limit).
		Find(&histories)

	return histories, result.Error
}

func (r *HistoryRepository) GetRun(runID string) ([]model.History, error) {
	var histories []model.History
	result := db.DB.
		Where("run_id = ?", runID).
		Order("id asc").
		Find(&histories)

	return histories, result.Error
}

package repository

import (
	"context"
	"errors"
	"sort"
	"sync"

	"posterminal/internal/apierror"
	"posterminal/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ZReportRepository archives closed-session records. Reports are inserted
// once and never updated or deleted: a second Save for the same session keeps
// the first copy.
type ZReportRepository interface {
	Save(ctx context.Context, z *model.ZReport) error
	FindBySessionID(ctx context.Context, sessionID uuid.UUID) (*model.ZReport, error)
	ListByLocation(ctx context.Context, locationID, limit int) ([]model.ZReport, error)
}

type zReportRepo struct{ db *gorm.DB }

func NewZReportRepository(db *gorm.DB) ZReportRepository { return &zReportRepo{db: db} }

func (r *zReportRepo) Save(ctx context.Context, z *model.ZReport) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "session_id"}}, DoNothing: true}).
		Create(z).Error
}

func (r *zReportRepo) FindBySessionID(ctx context.Context, sessionID uuid.UUID) (*model.ZReport, error) {
	var z model.ZReport
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&z).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &apierror.NotFoundError{Resource: "z-report", ID: sessionID.String()}
	}
	if err != nil {
		return nil, err
	}
	return &z, nil
}

func (r *zReportRepo) ListByLocation(ctx context.Context, locationID, limit int) ([]model.ZReport, error) {
	if limit < 1 {
		limit = 20
	}
	var list []model.ZReport
	err := r.db.WithContext(ctx).
		Where("location_id = ?", locationID).
		Order("closed_at DESC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

// memoryZReportRepo backs the archive when no database is configured.
type memoryZReportRepo struct {
	mu      sync.RWMutex
	reports map[uuid.UUID]model.ZReport
}

func NewMemoryZReportRepository() ZReportRepository {
	return &memoryZReportRepo{reports: make(map[uuid.UUID]model.ZReport)}
}

func (r *memoryZReportRepo) Save(_ context.Context, z *model.ZReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reports[z.SessionID]; ok {
		return nil
	}
	r.reports[z.SessionID] = *z
	return nil
}

func (r *memoryZReportRepo) FindBySessionID(_ context.Context, sessionID uuid.UUID) (*model.ZReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	z, ok := r.reports[sessionID]
	if !ok {
		return nil, &apierror.NotFoundError{Resource: "z-report", ID: sessionID.String()}
	}
	return &z, nil
}

func (r *memoryZReportRepo) ListByLocation(_ context.Context, locationID, limit int) ([]model.ZReport, error) {
	if limit < 1 {
		limit = 20
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var list []model.ZReport
	for _, z := range r.reports {
		if z.LocationID == locationID {
			list = append(list, z)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ClosedAt.After(list[j].ClosedAt) })
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

package repositories

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"bikes-api/models"
)

// SessionRepository keeps server-side sessions in the user_sessions table.
type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session *models.UserSession) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(session).Error, "create session")
}

// Find returns the session only while it has not expired.
func (r *SessionRepository) Find(ctx context.Context, id string) (*models.UserSession, error) {
	var session models.UserSession
	err := r.db.WithContext(ctx).
		Where("id = ? AND expires_at > ?", id, time.Now()).
		First(&session).Error
	if err != nil {
		return nil, errors.Wrap(translate(err), "find session")
	}
	return &session, nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.UserSession{}).Error
	return errors.Wrap(err, "delete session")
}

// DeleteExpired removes sessions that expired before now and reports how many.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.UserSession{})
	return res.RowsAffected, errors.Wrap(res.Error, "delete expired sessions")
}

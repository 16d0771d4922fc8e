package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dashboard/model"
	"dashboard/notify"
	"dashboard/state"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrSessionNotFound = state.ErrSessionNotFound

// Sealer encrypts backend tokens before they are stored.
type Sealer interface {
	Seal(plain []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// SessionRepository persists dashboard sessions and doubles as the
// state.Persister of the state registry.
type SessionRepository struct {
	db     *gorm.DB
	sealer Sealer
	now    func() time.Time
}

func NewSessionRepository(db *gorm.DB, sealer Sealer) *SessionRepository {
	return &SessionRepository{db: db, sealer: sealer, now: time.Now}
}

// Save inserts or replaces a session. token is the backend bearer token and
// is sealed before it touches the database.
func (r *SessionRepository) Save(ctx context.Context, s *model.Session, token string) error {
	sealed, err := r.sealer.Seal([]byte(token))
	if err != nil {
		return fmt.Errorf("sealing backend token: %w", err)
	}
	s.BackendToken = sealed
	if s.LastSeenAt.IsZero() {
		s.LastSeenAt = r.now()
	}
	err = r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(s).Error
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// Load returns a live session and its backend token. Expired sessions are
// reported as not found.
func (r *SessionRepository) Load(ctx context.Context, id string) (*model.Session, string, error) {
	var s model.Session
	err := r.db.WithContext(ctx).
		Where("id = ? AND expires_at > ?", id, r.now()).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", ErrSessionNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("loading session: %w", err)
	}
	plain, err := r.sealer.Open(s.BackendToken)
	if err != nil {
		return nil, "", fmt.Errorf("opening backend token: %w", err)
	}
	return &s, string(plain), nil
}

// Touch extends a session and records activity.
func (r *SessionRepository) Touch(ctx context.Context, id string, expiresAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.Session{}).
		Where("id = ?", id).
		Updates(map[string]any{"expires_at": expiresAt, "last_seen_at": r.now()})
	if res.Error != nil {
		return fmt.Errorf("touching session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&model.SessionNotification{}).Error; err != nil {
			return fmt.Errorf("deleting session notifications: %w", err)
		}
		if err := tx.Where("id = ?", id).Delete(&model.Session{}).Error; err != nil {
			return fmt.Errorf("deleting session: %w", err)
		}
		return nil
	})
}

// PurgeExpired removes every session whose expiry has passed and returns
// how many were removed.
func (r *SessionRepository) PurgeExpired(ctx context.Context) (int64, error) {
	var purged int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := r.now()
		expired := tx.Model(&model.Session{}).Select("id").Where("expires_at <= ?", now)
		if err := tx.Where("session_id IN (?)", expired).Delete(&model.SessionNotification{}).Error; err != nil {
			return err
		}
		res := tx.Where("expires_at <= ?", now).Delete(&model.Session{})
		purged = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, fmt.Errorf("purging sessions: %w", err)
	}
	return purged, nil
}

func (r *SessionRepository) LoadState(ctx context.Context, sessionID string) ([]byte, error) {
	var s model.Session
	err := r.db.WithContext(ctx).Select("state").Where("id = ?", sessionID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading state: %w", err)
	}
	if len(s.State) == 0 {
		return nil, ErrSessionNotFound
	}
	return s.State, nil
}

func (r *SessionRepository) SaveState(ctx context.Context, sessionID string, data []byte) error {
	res := r.db.WithContext(ctx).Model(&model.Session{}).
		Where("id = ?", sessionID).
		Update("state", data)
	if res.Error != nil {
		return fmt.Errorf("saving state: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// History keeps every alert raised for a session as a notify.Sink.
type History struct {
	db *gorm.DB
}

func NewHistory(db *gorm.DB) *History {
	return &History{db: db}
}

func (h *History) Name() string { return "history" }

func (h *History) Send(ctx context.Context, a notify.Alert) error {
	n := model.SessionNotification{
		ID:        uuid.NewString(),
		SessionID: a.SessionID,
		Type:      model.NotificationNewOrder,
		Title:     a.Title,
		Message:   a.Message,
		OrderID:   a.OrderID,
		CreatedAt: a.At,
	}
	if err := h.db.WithContext(ctx).Create(&n).Error; err != nil {
		return fmt.Errorf("recording notification: %w", err)
	}
	return nil
}

// Recent returns up to limit notifications of a session, newest first.
func (h *History) Recent(ctx context.Context, sessionID string, limit int) ([]model.SessionNotification, error) {
	var out []model.SessionNotification
	err := h.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	return out, nil
}

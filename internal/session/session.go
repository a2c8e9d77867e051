// Package session keeps the signed-in user's credential in the same store as
// the drafts and tears both down at sign-out.
package session

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"cv-builder/internal/domain"
	"cv-builder/internal/draft"
)

// Storage keys written at sign-in.
const (
	KeyAccessToken = "access_token"
	KeyUserID      = "user_id"
	KeyEmail       = "user_email"
	KeyRole        = "user_role"
	KeyFullName    = "user_full_name"
)

var credentialKeys = []string{KeyAccessToken, KeyUserID, KeyEmail, KeyRole, KeyFullName}

var ErrNotSignedIn = errors.New("not signed in")

// Manager reads and writes the session entries.
type Manager struct {
	store  draft.Store
	drafts *draft.Drafts
	log    *zap.Logger
}

func NewManager(store draft.Store, drafts *draft.Drafts, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{store: store, drafts: drafts, log: log.Named("session")}
}

// SignIn stores the credential and profile of a user.
func (m *Manager) SignIn(ctx context.Context, s domain.Session) error {
	if !s.SignedIn() {
		return fmt.Errorf("sign in: access token and user id are required")
	}
	values := map[string]string{
		KeyAccessToken: s.AccessToken,
		KeyUserID:      s.UserID,
		KeyEmail:       s.Email,
		KeyRole:        s.Role,
		KeyFullName:    s.FullName,
	}
	for _, k := range credentialKeys {
		if values[k] == "" {
			if err := m.store.Remove(ctx, k); err != nil {
				return fmt.Errorf("sign in: %w", err)
			}
			continue
		}
		if err := m.store.Set(ctx, k, values[k]); err != nil {
			return fmt.Errorf("sign in: %w", err)
		}
	}
	m.log.Info("signed in", zap.String("user_id", s.UserID))
	return nil
}

// Current returns the stored session, or ErrNotSignedIn.
func (m *Manager) Current(ctx context.Context) (domain.Session, error) {
	get := func(k string) string {
		v, err := m.store.Get(ctx, k)
		if err != nil && !errors.Is(err, draft.ErrNotFound) {
			m.log.Warn("session entry unreadable", zap.String("key", k), zap.Error(err))
		}
		return v
	}
	s := domain.Session{
		AccessToken: get(KeyAccessToken),
		UserID:      get(KeyUserID),
		Email:       get(KeyEmail),
		Role:        get(KeyRole),
		FullName:    get(KeyFullName),
	}
	if !s.SignedIn() {
		return domain.Session{}, ErrNotSignedIn
	}
	return s, nil
}

// Token returns the bearer credential or "".
func (m *Manager) Token() string {
	s, err := m.Current(context.Background())
	if err != nil {
		return ""
	}
	return s.AccessToken
}

// UserID returns the signed-in user id or "".
func (m *Manager) UserID() string {
	s, err := m.Current(context.Background())
	if err != nil {
		return ""
	}
	return s.UserID
}

// SignOut removes every draft on this profile and then the credentials.
func (m *Manager) SignOut(ctx context.Context) {
	if m.drafts != nil {
		m.drafts.ClearAll(ctx)
	}
	for _, k := range credentialKeys {
		if err := m.store.Remove(ctx, k); err != nil {
			m.log.Warn("session entry not removed", zap.String("key", k), zap.Error(err))
		}
	}
	m.log.Info("signed out")
}

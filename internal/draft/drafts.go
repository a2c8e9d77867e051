// Package draft persists the in-progress form of the signed-in user so it
// survives a reload without a server round-trip.
package draft

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"cv-builder/internal/form"
	"cv-builder/internal/model"
)

const (
	// KeyPrefix namespaces every per-user draft entry.
	KeyPrefix = "cv_builder_draft_"
	// LegacyKey is the unscoped entry older pages wrote before drafts were
	// keyed by user. It is removed whenever drafts are cleared.
	LegacyKey = "cv_builder_draft"
)

// Drafts reads and writes per-user FormRecord drafts. Storage failures are
// logged and never returned: losing a draft must not break the page.
type Drafts struct {
	store Store
	log   *zap.Logger
}

func New(store Store, log *zap.Logger) *Drafts {
	if log == nil {
		log = zap.NewNop()
	}
	return &Drafts{store: store, log: log.Named("draft")}
}

// KeyFor returns the storage key of userID's draft. With nobody signed in
// there is no key and persistence is off, so one profile never sees another
// user's draft.
func KeyFor(userID string) (string, bool) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", false
	}
	return KeyPrefix + userID, true
}

// Save serializes rec under userID's key.
func (d *Drafts) Save(ctx context.Context, rec model.FormRecord, userID string) {
	key, ok := KeyFor(userID)
	if !ok {
		return
	}
	rec.Normalize()
	b, err := json.Marshal(rec)
	if err != nil {
		d.log.Error("draft not saved: encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := d.store.Set(ctx, key, string(b)); err != nil {
		d.log.Error("draft not saved", zap.String("key", key), zap.Error(err))
		return
	}
	d.log.Debug("draft saved", zap.String("user_id", userID), zap.Int("bytes", len(b)))
}

// Restore returns userID's draft. A missing, unreadable or corrupt entry is
// reported as no draft.
func (d *Drafts) Restore(ctx context.Context, userID string) (*model.FormRecord, bool) {
	key, ok := KeyFor(userID)
	if !ok {
		return nil, false
	}
	raw, err := d.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			d.log.Warn("draft not restored: read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var rec model.FormRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		d.log.Warn("draft not restored: corrupt entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	rec.Normalize()
	return &rec, true
}

// RestoreInto replays userID's draft into m. It reports whether a draft was
// found; without one m is left untouched.
func (d *Drafts) RestoreInto(ctx context.Context, m *form.Model, userID string) bool {
	rec, ok := d.Restore(ctx, userID)
	if !ok {
		return false
	}
	m.Replay(*rec)
	d.log.Info("draft restored", zap.String("user_id", userID))
	return true
}

// Clear removes userID's draft and the legacy unscoped entry.
func (d *Drafts) Clear(ctx context.Context, userID string) {
	if key, ok := KeyFor(userID); ok {
		d.remove(ctx, key)
	}
	d.remove(ctx, LegacyKey)
}

// ClearAll removes every draft of every user, used at sign-out so nothing is
// left behind on a shared device.
func (d *Drafts) ClearAll(ctx context.Context) {
	keys, err := d.store.Keys(ctx)
	if err != nil {
		d.log.Error("drafts not cleared: listing keys failed", zap.Error(err))
	}
	removed := 0
	for _, k := range keys {
		if strings.HasPrefix(k, KeyPrefix) {
			d.remove(ctx, k)
			removed++
		}
	}
	d.remove(ctx, LegacyKey)
	d.log.Info("drafts cleared", zap.Int("count", removed))
}

// Users lists the user ids that currently have a stored draft.
func (d *Drafts) Users(ctx context.Context) []string {
	keys, err := d.store.Keys(ctx)
	if err != nil {
		d.log.Warn("listing drafts failed", zap.Error(err))
		return nil
	}
	var users []string
	for _, k := range keys {
		if strings.HasPrefix(k, KeyPrefix) {
			users = append(users, strings.TrimPrefix(k, KeyPrefix))
		}
	}
	return users
}

func (d *Drafts) remove(ctx context.Context, key string) {
	if err := d.store.Remove(ctx, key); err != nil {
		d.log.Warn("draft entry not removed", zap.String("key", key), zap.Error(err))
	}
}

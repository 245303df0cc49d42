package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/contrastkit/contrastkit/cache"
	"github.com/contrastkit/contrastkit/domain"
)

// mapMergedKeys are merged one level deep instead of being replaced.
var mapMergedKeys = map[string]bool{
	domain.SettingsCustomization:         true,
	domain.SettingsAccessibilityProfiles: true,
}

// SettingsRepository stores accessibility-settings records. Merges for the
// same site are serialized within the process; across processes the last
// write wins.
type SettingsRepository struct {
	store cache.Store
	locks *keyedMutex
	now   func() time.Time
}

func NewSettingsRepository(store cache.Store) *SettingsRepository {
	return &SettingsRepository{
		store: store,
		locks: newKeyedMutex(),
		now:   time.Now,
	}
}

func (r *SettingsRepository) Get(ctx context.Context, siteID string) (domain.Settings, error) {
	var s domain.Settings
	if err := getJSON(ctx, r.store, SettingsKey(siteID), &s); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, domain.ErrNotFound
	}

	return s, nil
}

func (r *SettingsRepository) Exists(ctx context.Context, siteID string) (bool, error) {
	return exists(ctx, r.store, SettingsKey(siteID))
}

func (r *SettingsRepository) Merge(ctx context.Context, siteID string, patch map[string]interface{}) (domain.Settings, error) {
	unlock := r.locks.Lock(siteID)
	defer unlock()

	current, err := r.loadOrDefault(ctx, siteID)
	if err != nil {
		return nil, err
	}

	merged, err := MergeSettings(current, patch)
	if err != nil {
		return nil, err
	}
	merged[domain.SettingsSiteID] = siteID
	r.stamp(merged)

	if err := putJSON(ctx, r.store, SettingsKey(siteID), merged, 0); err != nil {
		return nil, err
	}

	return merged, nil
}

func (r *SettingsRepository) Init(ctx context.Context, siteID string, fields map[string]interface{}) (domain.Settings, bool, error) {
	unlock := r.locks.Lock(siteID)
	defer unlock()

	current, err := r.Get(ctx, siteID)
	if err == nil {
		return current, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}

	s := r.skeleton(siteID)
	for k, v := range fields {
		if !mapMergedKeys[k] {
			s[k] = v
		}
	}
	r.stamp(s)

	if err := putJSON(ctx, r.store, SettingsKey(siteID), s, 0); err != nil {
		return nil, false, err
	}

	return s, true, nil
}

func (r *SettingsRepository) loadOrDefault(ctx context.Context, siteID string) (domain.Settings, error) {
	s, err := r.Get(ctx, siteID)
	if errors.Is(err, domain.ErrNotFound) {
		return r.skeleton(siteID), nil
	}

	return s, err
}

func (r *SettingsRepository) skeleton(siteID string) domain.Settings {
	return domain.Settings{
		domain.SettingsSiteID:                siteID,
		domain.SettingsCustomization:         map[string]interface{}{},
		domain.SettingsAccessibilityProfiles: map[string]interface{}{},
		domain.SettingsPaymentStatus:         domain.PaymentStatusUnknown,
		domain.SettingsCreatedAt:             r.now().UTC().Format(time.RFC3339),
	}
}

func (r *SettingsRepository) stamp(s domain.Settings) {
	ts := r.now().UTC().Format(time.RFC3339)
	s[domain.SettingsLastUpdated] = ts
	s[domain.SettingsLastUsed] = ts
}

// MergeSettings returns current with patch applied: top-level keys from the
// patch win, customization and accessibilityProfiles merge one level deep.
// A nil value for a map-merged key leaves it unchanged. current is not
// modified.
func MergeSettings(current domain.Settings, patch map[string]interface{}) (domain.Settings, error) {
	out := make(domain.Settings, len(current)+len(patch))
	for k, v := range current {
		out[k] = v
	}

	for k, v := range patch {
		if !mapMergedKeys[k] {
			out[k] = v
			continue
		}
		if v == nil {
			continue
		}

		incoming, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: %s must be an object", domain.ErrInvalidPatch, k)
		}

		base, _ := out[k].(map[string]interface{})
		merged := make(map[string]interface{}, len(base)+len(incoming))
		for bk, bv := range base {
			merged[bk] = bv
		}
		for ik, iv := range incoming {
			merged[ik] = iv
		}
		out[k] = merged
	}

	return out, nil
}

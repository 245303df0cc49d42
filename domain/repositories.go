package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by repositories when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrInvalidPatch is returned by SettingsRepository.Merge when a map-valued
// field is patched with a non-object.
var ErrInvalidPatch = errors.New("invalid settings patch")

type AuthDataRepository interface {
	Get(ctx context.Context, siteID string) (*AuthData, error)
	Put(ctx context.Context, data *AuthData) error
}

type SettingsRepository interface {
	Get(ctx context.Context, siteID string) (Settings, error)
	Exists(ctx context.Context, siteID string) (bool, error)
	// Merge applies patch over the stored record (or the default skeleton)
	// and returns the written record.
	Merge(ctx context.Context, siteID string, patch map[string]interface{}) (Settings, error)
	// Init writes the default skeleton plus fields when no record exists.
	// It reports whether a record was created.
	Init(ctx context.Context, siteID string, fields map[string]interface{}) (Settings, bool, error)
}

type UserAuthRepository interface {
	Get(ctx context.Context, userID string) (*UserAuth, error)
	PutWithTTL(ctx context.Context, auth *UserAuth, ttl time.Duration) error
}

type LedgerRepository interface {
	Get(ctx context.Context, siteID string) (*Ledger, error)
	Put(ctx context.Context, ledger *Ledger) error
}

type PaymentRepository interface {
	Get(ctx context.Context, siteID string) (*PaymentSnapshot, error)
	Put(ctx context.Context, snapshot *PaymentSnapshot) error
}

type DomainRepository interface {
	Lookup(ctx context.Context, host string) (*DomainMapping, error)
	PutWithTTL(ctx context.Context, host, siteID string, ttl time.Duration) error
}

type CustomDomainRepository interface {
	Save(ctx context.Context, data *CustomDomainData) error
	GetBySite(ctx context.Context, siteID string) (*CustomDomainData, error)
}

type InstallationRepository interface {
	// PutOnce writes the record unless one exists and reports whether it did.
	PutOnce(ctx context.Context, inst *Installation) (bool, error)
}

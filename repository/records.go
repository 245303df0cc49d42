package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/contrastkit/contrastkit/cache"
	"github.com/contrastkit/contrastkit/domain"
	"github.com/contrastkit/contrastkit/internal/crypto"
)

// DomainTTL is how long a hostname mapping lives without a refresh.
const DomainTTL = 30 * 24 * time.Hour

// AuthDataRepository stores auth-data records. The access token is sealed at
// rest when the sealer has a key.
type AuthDataRepository struct {
	store  cache.Store
	sealer *crypto.Sealer
}

func NewAuthDataRepository(store cache.Store, sealer *crypto.Sealer) *AuthDataRepository {
	return &AuthDataRepository{store: store, sealer: sealer}
}

func (r *AuthDataRepository) Get(ctx context.Context, siteID string) (*domain.AuthData, error) {
	var data domain.AuthData
	if err := getJSON(ctx, r.store, AuthDataKey(siteID), &data); err != nil {
		return nil, err
	}

	token, err := r.sealer.Open(data.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("auth-data %s: %w", siteID, err)
	}
	data.AccessToken = token

	return &data, nil
}

func (r *AuthDataRepository) Put(ctx context.Context, data *domain.AuthData) error {
	sealed, err := r.sealer.Seal(data.AccessToken)
	if err != nil {
		return err
	}

	stored := *data
	stored.AccessToken = sealed

	return putJSON(ctx, r.store, AuthDataKey(data.SiteID), &stored, 0)
}

// UserAuthRepository stores the user-auth session bindings.
type UserAuthRepository struct {
	store  cache.Store
	sealer *crypto.Sealer
}

func NewUserAuthRepository(store cache.Store, sealer *crypto.Sealer) *UserAuthRepository {
	return &UserAuthRepository{store: store, sealer: sealer}
}

func (r *UserAuthRepository) Get(ctx context.Context, userID string) (*domain.UserAuth, error) {
	var auth domain.UserAuth
	if err := getJSON(ctx, r.store, UserAuthKey(userID), &auth); err != nil {
		return nil, err
	}

	token, err := r.sealer.Open(auth.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("user-auth %s: %w", userID, err)
	}
	auth.AccessToken = token

	return &auth, nil
}

func (r *UserAuthRepository) PutWithTTL(ctx context.Context, auth *domain.UserAuth, ttl time.Duration) error {
	sealed, err := r.sealer.Seal(auth.AccessToken)
	if err != nil {
		return err
	}

	stored := *auth
	stored.AccessToken = sealed

	return putJSON(ctx, r.store, UserAuthKey(auth.UserID), &stored, ttl)
}

type LedgerRepository struct {
	store cache.Store
}

func NewLedgerRepository(store cache.Store) *LedgerRepository {
	return &LedgerRepository{store: store}
}

func (r *LedgerRepository) Get(ctx context.Context, siteID string) (*domain.Ledger, error) {
	var ledger domain.Ledger
	if err := getJSON(ctx, r.store, LedgerKey(siteID), &ledger); err != nil {
		return nil, err
	}

	return &ledger, nil
}

func (r *LedgerRepository) Put(ctx context.Context, ledger *domain.Ledger) error {
	return putJSON(ctx, r.store, LedgerKey(ledger.SiteID), ledger, 0)
}

type PaymentRepository struct {
	store cache.Store
}

func NewPaymentRepository(store cache.Store) *PaymentRepository {
	return &PaymentRepository{store: store}
}

func (r *PaymentRepository) Get(ctx context.Context, siteID string) (*domain.PaymentSnapshot, error) {
	var snap domain.PaymentSnapshot
	if err := getJSON(ctx, r.store, PaymentKey(siteID), &snap); err != nil {
		return nil, err
	}

	return &snap, nil
}

func (r *PaymentRepository) Put(ctx context.Context, snap *domain.PaymentSnapshot) error {
	return putJSON(ctx, r.store, PaymentKey(snap.SiteID), snap, 0)
}

type DomainRepository struct {
	store cache.Store
	now   func() time.Time
}

func NewDomainRepository(store cache.Store) *DomainRepository {
	return &DomainRepository{store: store, now: time.Now}
}

func (r *DomainRepository) Lookup(ctx context.Context, host string) (*domain.DomainMapping, error) {
	if NormalizeHost(host) == "" {
		return nil, domain.ErrNotFound
	}

	var m domain.DomainMapping
	if err := getJSON(ctx, r.store, DomainKey(host), &m); err != nil {
		return nil, err
	}
	if m.SiteID == "" {
		return nil, domain.ErrNotFound
	}

	return &m, nil
}

func (r *DomainRepository) PutWithTTL(ctx context.Context, host, siteID string, ttl time.Duration) error {
	h := NormalizeHost(host)
	if h == "" {
		return fmt.Errorf("empty host for site %s", siteID)
	}

	return putJSON(ctx, r.store, DomainKey(h), &domain.DomainMapping{
		SiteID:    siteID,
		Domain:    h,
		CreatedAt: r.now().UTC(),
	}, ttl)
}

type CustomDomainRepository struct {
	store cache.Store
}

func NewCustomDomainRepository(store cache.Store) *CustomDomainRepository {
	return &CustomDomainRepository{store: store}
}

// Save writes both mirror records.
func (r *CustomDomainRepository) Save(ctx context.Context, data *domain.CustomDomainData) error {
	if err := putJSON(ctx, r.store, CustomDomainDataKey(data.SiteID), data, 0); err != nil {
		return err
	}

	return putJSON(ctx, r.store, CustomDomainKey(data.CustomDomain), data, 0)
}

func (r *CustomDomainRepository) GetBySite(ctx context.Context, siteID string) (*domain.CustomDomainData, error) {
	var data domain.CustomDomainData
	if err := getJSON(ctx, r.store, CustomDomainDataKey(siteID), &data); err != nil {
		return nil, err
	}

	return &data, nil
}

type InstallationRepository struct {
	store cache.Store
	locks *keyedMutex
}

func NewInstallationRepository(store cache.Store) *InstallationRepository {
	return &InstallationRepository{store: store, locks: newKeyedMutex()}
}

func (r *InstallationRepository) PutOnce(ctx context.Context, inst *domain.Installation) (bool, error) {
	unlock := r.locks.Lock(inst.SiteID)
	defer unlock()

	found, err := exists(ctx, r.store, InstallationKey(inst.SiteID))
	if err != nil || found {
		return false, err
	}

	if err := putJSON(ctx, r.store, InstallationKey(inst.SiteID), inst, 0); err != nil {
		return false, err
	}

	return true, nil
}

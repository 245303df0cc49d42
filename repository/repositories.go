package repository

import (
	"github.com/contrastkit/contrastkit/cache"
	"github.com/contrastkit/contrastkit/domain"
	"github.com/contrastkit/contrastkit/internal/crypto"
)

// Repositories bundles every typed repository over one store.
type Repositories struct {
	Store         cache.Store
	AuthData      domain.AuthDataRepository
	Settings      domain.SettingsRepository
	UserAuth      domain.UserAuthRepository
	Ledgers       domain.LedgerRepository
	Payments      domain.PaymentRepository
	Domains       domain.DomainRepository
	CustomDomains domain.CustomDomainRepository
	Installations domain.InstallationRepository
}

// New builds all repositories over store. sealer may be nil.
func New(store cache.Store, sealer *crypto.Sealer) *Repositories {
	return &Repositories{
		Store:         store,
		AuthData:      NewAuthDataRepository(store, sealer),
		Settings:      NewSettingsRepository(store),
		UserAuth:      NewUserAuthRepository(store, sealer),
		Ledgers:       NewLedgerRepository(store),
		Payments:      NewPaymentRepository(store),
		Domains:       NewDomainRepository(store),
		CustomDomains: NewCustomDomainRepository(store),
		Installations: NewInstallationRepository(store),
	}
}

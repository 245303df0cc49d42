package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	apiecho "github.com/contrastkit/contrastkit/api/echo"
	"github.com/contrastkit/contrastkit/cache"
	"github.com/contrastkit/contrastkit/cache/redis"
	"github.com/contrastkit/contrastkit/config"
	"github.com/contrastkit/contrastkit/internal/audit"
	"github.com/contrastkit/contrastkit/internal/billing"
	"github.com/contrastkit/contrastkit/internal/crypto"
	"github.com/contrastkit/contrastkit/internal/events"
	"github.com/contrastkit/contrastkit/internal/metrics"
	"github.com/contrastkit/contrastkit/internal/ratelimit"
	"github.com/contrastkit/contrastkit/internal/webflow"
	"github.com/contrastkit/contrastkit/log"
	"github.com/contrastkit/contrastkit/middleware"
	"github.com/contrastkit/contrastkit/mongodb"
	"github.com/contrastkit/contrastkit/repository"
	"github.com/contrastkit/contrastkit/services"
	"github.com/contrastkit/contrastkit/session"
)

// app owns the long lived collaborators built from the configuration.
type app struct {
	api     *apiecho.WidgetAPI
	closers []io.Closer
	mongoDB *mongo.Database
}

func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	mongodb.Disconnect(ctx, a.mongoDB)

	return errors.Join(errs...)
}

func (a *app) openStore(ctx context.Context, cfg *config.Config, redisClient func() (*goredis.Client, error)) (cache.Store, error) {
	switch cfg.KV.Driver {
	case config.KVDriverRedis:
		client, err := redisClient()
		if err != nil {
			return nil, err
		}
		return redis.NewStore(client, ""), nil
	case config.KVDriverMongo:
		db, err := mongodb.Connect(ctx, cfg.KV.MongoURI, cfg.KV.MongoDB)
		if err != nil {
			return nil, err
		}
		a.mongoDB = db

		store := mongodb.NewKVStore(db, cfg.KV.MongoCollection)
		if err := store.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure kv indexes: %w", err)
		}
		return store, nil
	default:
		store := cache.NewMemoryStore()
		a.closers = append(a.closers, store)
		return store, nil
	}
}

func (a *app) openEvents(cfg *config.Config, logger log.Logger) (events.Publisher, error) {
	var sinks []events.Publisher
	switch cfg.Events.AuditFile {
	case "":
	case "-":
		sinks = append(sinks, audit.NewTrail(os.Stdout))
	default:
		f, err := os.OpenFile(cfg.Events.AuditFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit file: %w", err)
		}
		a.closers = append(a.closers, f)
		sinks = append(sinks, audit.NewTrail(f))
	}
	if cfg.Events.WebhookURL != "" {
		sinks = append(sinks, events.NewWebhookPublisher(cfg.Events.WebhookURL, cfg.Events.Timeout))
	}
	if cfg.Events.AMQPURL != "" {
		p, err := events.NewAMQPPublisher(events.AMQPConfig{
			URL:            cfg.Events.AMQPURL,
			Exchange:       cfg.Events.AMQPExchange,
			RoutingKey:     cfg.Events.AMQPRoutingKey,
			ConfirmTimeout: cfg.Events.Timeout,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, p)
		sinks = append(sinks, p)
	}

	return events.NewFanout(logger.With(log.Fields{"component": "events"}), sinks...), nil
}

// newApp wires the stores, upstream clients and services behind the API.
func newApp(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			_ = a.Close(ctx)
		}
	}()

	var rdb *goredis.Client
	redisClient := func() (*goredis.Client, error) {
		if rdb != nil {
			return rdb, nil
		}
		c, err := redis.NewClient(ctx, cfg.KV.RedisURL)
		if err != nil {
			return nil, err
		}
		rdb = c
		a.closers = append(a.closers, c)
		return c, nil
	}

	store, err := a.openStore(ctx, cfg, redisClient)
	if err != nil {
		return nil, err
	}

	sealer, err := crypto.NewSealer(cfg.KV.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("invalid kv.encryption_key: %w", err)
	}
	if !sealer.Enabled() {
		logger.Warn(ctx, "kv.encryption_key is not set, access tokens are stored in plain text")
	}
	repos := repository.New(store, sealer)

	limitCfg := ratelimit.Config{Window: cfg.RateLimit.Window, Max: cfg.RateLimit.Max}
	var limiter ratelimit.Limiter
	if cfg.RateLimit.Backend == "redis" {
		client, err := redisClient()
		if err != nil {
			return nil, err
		}
		limiter = ratelimit.NewRedisLimiter(client, limitCfg)
	} else {
		ml := ratelimit.NewMemoryLimiter(limitCfg)
		a.closers = append(a.closers, ml)
		limiter = ml
	}

	wf, err := webflow.NewClient(webflow.Config{
		ClientID:     cfg.Webflow.ClientID,
		ClientSecret: cfg.Webflow.ClientSecret,
		RedirectURL:  cfg.Webflow.RedirectURL,
		AuthorizeURL: cfg.Webflow.AuthorizeURL,
		TokenURL:     cfg.Webflow.TokenURL,
		APIBaseURL:   cfg.Webflow.APIBaseURL,
		Scopes:       cfg.Webflow.Scopes,
		Timeout:      cfg.Webflow.Timeout,
	})
	if err != nil {
		return nil, err
	}

	var gateway billing.Gateway
	if cfg.Stripe.SecretKey != "" {
		gw, err := billing.NewStripeGateway(billing.StripeConfig{
			SecretKey:  cfg.Stripe.SecretKey,
			APIBaseURL: cfg.Stripe.APIBaseURL,
		})
		if err != nil {
			return nil, err
		}
		gateway = gw
	} else {
		logger.Warn(ctx, "stripe.secret_key is not set, billing endpoints are disabled")
	}

	publisher, err := a.openEvents(cfg, logger)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)
	if ms, ok := store.(*cache.MemoryStore); ok {
		metrics.RegisterSize(reg, "kv_memory_keys", "Keys held by the in-memory KV store.", ms.Len)
	}
	if ml, ok := limiter.(*ratelimit.MemoryLimiter); ok {
		metrics.RegisterSize(reg, "rate_limit_windows", "Clients with an open rate-limit window.", ml.Len)
	}

	signer := session.NewSigner(cfg.Session.Secret, session.WithTTL(cfg.Session.TTL))

	a.api = apiecho.NewWidgetAPI(apiecho.Deps{
		Auth:     services.NewAuthService(wf, signer, repos, publisher, logger, m),
		Settings: services.NewSettingsService(wf, repos, publisher, logger, m),
		Scripts: services.NewScriptService(wf, repos, services.ScriptConfig{
			HostedLocation: cfg.Widget.ScriptURL,
			Version:        cfg.Widget.ScriptVersion,
			IntegrityHash:  cfg.Widget.IntegrityHash,
			DisplayName:    cfg.Widget.DisplayName,
		}, logger, m),
		Billing: services.NewBillingService(gateway, repos, services.BillingConfig{
			PriceID:          cfg.Stripe.PriceID,
			TrialDays:        cfg.Stripe.TrialDays,
			Currency:         cfg.Stripe.Currency,
			WebhookSecret:    cfg.Stripe.WebhookSecret,
			WebhookTolerance: cfg.Stripe.WebhookTolerance,
		}, publisher, logger, m),
		WebflowHooks:  services.NewWebflowWebhookService(cfg.Webflow.ClientSecret, repos, publisher, logger),
		Authenticator: middleware.NewAuthenticator(signer, repos.UserAuth, logger, m),
		Limiter:       limiter,
		Store:         store,
		Metrics:       m,
		Gatherer:      reg,
		Logger:        logger,
	}, apiecho.Config{
		PublicBaseURL:   cfg.PublicBaseURL,
		ExtensionOrigin: cfg.Webflow.ExtensionOrigin,
		RateLimitExempt: cfg.RateLimit.Exempt,
	})

	return a, nil
}

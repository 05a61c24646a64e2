// cmd/worker-manager/app.go
package main

import (
	"context"
	"fmt"
	"time"

	"ipo-readiness/internal/assessment"
	"ipo-readiness/internal/autosave"
	"ipo-readiness/internal/common/auth"
	"ipo-readiness/internal/common/aws"
	"ipo-readiness/internal/common/companyregistry"
	"ipo-readiness/internal/common/config"
	"ipo-readiness/internal/common/database"
	httpclient "ipo-readiness/internal/common/http"
	"ipo-readiness/internal/common/logger"
	"ipo-readiness/internal/common/observability"
	"ipo-readiness/internal/common/validation"
	"ipo-readiness/internal/documents"
	"ipo-readiness/internal/leads"
	"ipo-readiness/internal/notify"
	"ipo-readiness/internal/portal"
	"ipo-readiness/internal/search"
	"ipo-readiness/internal/store"
	"ipo-readiness/internal/store/memory"
	"ipo-readiness/internal/store/postgres"
	"ipo-readiness/pkg/questionbank"
)

// App holds every long-lived dependency the workers share.
type App struct {
	Store       store.Store
	Redis       *database.RedisClient
	Gate        *auth.Gate
	Notifier    *notify.Dispatcher
	Leads       *leads.Service
	Assessments *assessment.Service
	Saver       *autosave.Saver
	Search      *search.Index
	Portal      *portal.Service
	Documents   *documents.Service

	logger logger.Logger
}

func newApp(ctx context.Context, cfg *config.Config, obs *observability.Observability, log logger.Logger) (*App, error) {
	app := &App{logger: log}

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	app.Store = st

	err = retryWithBackoff(func() error {
		var err error
		app.Redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return app.Redis.Ping(ctx)
	}, 10, 2*time.Second, log, "Redis connection")
	if err != nil {
		return nil, err
	}
	log.Info("Redis connected", map[string]interface{}{"address": cfg.Database.Redis.Address})

	// --- Elasticsearch (optional) ---
	var index leads.Indexer
	if len(cfg.Database.Elasticsearch.GetAddresses()) > 0 {
		var es *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return es.Ping(ctx)
		}, 15, 2*time.Second, log, "Elasticsearch connection")
		if err != nil {
			return nil, err
		}
		app.Search = search.NewIndex(es.Client, cfg.Search.LeadIndex, cfg.Search.PageSize, log)
		if err := app.Search.EnsureIndex(ctx); err != nil {
			return nil, fmt.Errorf("ensure lead index: %w", err)
		}
		index = app.Search
		log.Info("Elasticsearch connected", map[string]interface{}{"index": cfg.Search.LeadIndex})
	}

	// --- AWS: SES, SNS, S3 ---
	notifyOpts := notify.Options{
		PortalURL: cfg.Notifications.PortalURL,
		Timeout:   config.GetDuration(cfg.Notifications.Timeout),
	}
	awsCfg, err := aws.LoadConfig(ctx, cfg.Integrations.AWS.Region)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if cfg.Notifications.Email.Enabled && cfg.Integrations.AWS.SES.Enabled {
		from := cfg.Notifications.Email.FromEmail
		if from == "" {
			from = cfg.Integrations.AWS.SES.FromEmail
		}
		notifyOpts.Email = aws.NewSESClient(awsCfg, from)
	}
	if cfg.Notifications.SMS.Enabled && cfg.Integrations.AWS.SNS.Enabled {
		notifyOpts.SMS = aws.NewSNSClient(awsCfg, cfg.Integrations.AWS.SNS.SenderID)
	}
	app.Notifier, err = notify.NewDispatcher(notifyOpts, log)
	if err != nil {
		return nil, err
	}

	// --- Identity gate ---
	verifier, err := tokenVerifier(cfg)
	if err != nil {
		return nil, err
	}
	app.Gate = auth.NewGate(verifier, st.Users(), &cfg.Auth, log)

	// --- Domain services ---
	var registryClient leads.RegistryClient
	if cfg.Integrations.Registry.BaseURL != "" {
		registryClient = companyregistry.NewClient(
			cfg.Integrations.Registry.BaseURL,
			cfg.Integrations.Registry.APIKey,
			httpclient.NewClient(config.GetDuration(cfg.Integrations.Registry.Timeout)),
			app.Redis.Client,
			time.Duration(cfg.Integrations.Registry.CacheTTL)*time.Second,
			log,
		)
	}
	app.Leads = leads.NewService(st, leads.Options{
		Registry:  registryClient,
		Index:     index,
		Notifier:  app.Notifier,
		Validator: validation.New(),
	}, log)
	app.Assessments = assessment.NewService(st, assessment.Options{
		Notifier:      app.Notifier,
		ReviewerEmail: cfg.Notifications.ReviewerEmail,
		Obs:           obs,
	}, log)
	app.Saver = autosave.NewSaver(app.Assessments, app.Redis.Client, autosave.OptionsFromConfig(cfg.Autosave), log)

	if cfg.Auth.JWT.Secret != "" {
		signer := auth.NewJWTIssuer(cfg.Auth.JWT.Secret, cfg.Auth.JWT.Issuer, config.PortalAudience, time.Duration(cfg.Auth.JWT.TTL)*time.Minute)
		opts := portal.OptionsFromConfig(cfg.Portal, cfg.Notifications.PortalURL)
		opts.Notifier = app.Notifier
		app.Portal = portal.NewService(st, app.Redis.Client, signer, opts, log)
	}

	if bucket := cfg.Integrations.AWS.S3.Bucket; bucket != "" {
		blobs := aws.NewS3Client(awsCfg, aws.S3Options{
			Bucket:        bucket,
			PublicBaseURL: cfg.Integrations.AWS.S3.PublicBaseURL,
			Endpoint:      cfg.Integrations.AWS.S3.Endpoint,
			UsePathStyle:  cfg.Integrations.AWS.S3.UsePathStyle,
		})
		app.Documents = documents.NewService(st, blobs, documents.Options{}, log)
	}

	return app, nil
}

func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (store.Store, error) {
	var st store.Store
	switch cfg.Storage.Driver {
	case "memory":
		st = memory.New()
		log.Warn("using in-memory store, records are lost on restart", nil)

	default:
		var pg *database.PostgresClient
		err := retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, log, "PostgreSQL connection")
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx, postgres.Schema); err != nil {
			return nil, err
		}
		st = postgres.New(pg.DB)
		log.Info("PostgreSQL connected", map[string]interface{}{"database": cfg.Database.Postgres.Database})
	}

	templates, err := st.Questions().ListTemplates(ctx, false)
	if err != nil {
		return nil, err
	}
	if len(templates) == 0 {
		if err := questionbank.Default().Seed(ctx, st.Questions()); err != nil {
			return nil, fmt.Errorf("seed question bank: %w", err)
		}
		log.Info("seeded default question bank", nil)
	}
	return st, nil
}

func tokenVerifier(cfg *config.Config) (auth.TokenVerifier, error) {
	switch cfg.Auth.Provider {
	case "keycloak":
		kc := cfg.Auth.Keycloak
		return auth.NewKeycloakVerifier(kc.URL, kc.Realm, kc.ClientID, kc.ClientSecret, httpclient.NewClient(10*time.Second)), nil
	case "jwt":
		return auth.NewJWTIssuer(cfg.Auth.JWT.Secret, cfg.Auth.JWT.Issuer, cfg.Auth.JWT.Audience, time.Duration(cfg.Auth.JWT.TTL)*time.Minute), nil
	}
	return nil, fmt.Errorf("unknown auth provider %q", cfg.Auth.Provider)
}

// Ready reports whether the store and Redis answer.
func (a *App) Ready(ctx context.Context) error {
	if err := a.Store.Ping(ctx); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := a.Redis.Ping(ctx); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

// Close stops background work and releases connections.
func (a *App) Close() {
	a.Saver.Close()
	a.Notifier.Wait()
	if err := a.Store.Close(); err != nil {
		a.logger.Error("store close failed", map[string]interface{}{"error": err.Error()})
	}
	if err := a.Redis.Close(); err != nil {
		a.logger.Error("redis close failed", map[string]interface{}{"error": err.Error()})
	}
}

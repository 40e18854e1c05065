package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	approvalhandler "intake/internal/approval/handler"
	approvalmetrics "intake/internal/approval/metrics"
	approvalservice "intake/internal/approval/service"
	approvalstore "intake/internal/approval/store"
	documenthandler "intake/internal/document/handler"
	documentmetrics "intake/internal/document/metrics"
	documentservice "intake/internal/document/service"
	documentstore "intake/internal/document/store"
	formhandler "intake/internal/form/handler"
	formmetrics "intake/internal/form/metrics"
	formservice "intake/internal/form/service"
	"intake/internal/form/store/catalog"
	"intake/internal/platform/config"
	"intake/internal/platform/kafka"
	"intake/internal/platform/metrics"
	"intake/internal/platform/postgres"
	"intake/internal/platform/redis"
	requesthandler "intake/internal/request/handler"
	requestmetrics "intake/internal/request/metrics"
	requestservice "intake/internal/request/service"
	draftstore "intake/internal/request/store/draft"
	requeststore "intake/internal/request/store/request"
	httptransport "intake/internal/transport/http"
	"intake/pkg/platform/audit"
	auditpublisher "intake/pkg/platform/audit/publisher"
	auditmemory "intake/pkg/platform/audit/store/memory"
	auditpostgres "intake/pkg/platform/audit/store/postgres"
	txcontext "intake/pkg/platform/tx"
)

const auditBufferSize = 1024

// app is the wired server: the HTTP handler plus everything that must be
// released on shutdown, in reverse order of acquisition.
type app struct {
	handler http.Handler
	closers []func(ctx context.Context) error
}

func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// newApp builds stores, services and handlers from cfg. Postgres, Redis and
// Kafka are used when configured; otherwise everything stays in memory.
func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger, reg *prometheus.Registry) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	cat, warnings, err := catalog.LoadFile(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		logger.WarnContext(ctx, "catalog warning", "path", cfg.Catalog.Path, "warning", w)
	}

	health := map[string]httptransport.HealthCheck{}

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return nil, err
	}
	if db != nil {
		a.closers = append(a.closers, func(context.Context) error { return db.Close() })
		health["postgres"] = db.PingContext
		if cfg.Postgres.Migrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				return nil, err
			}
		}
		logger.InfoContext(ctx, "using postgres stores")
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		a.closers = append(a.closers, func(context.Context) error { return rc.Close() })
		health["redis"] = rc.Health
		logger.InfoContext(ctx, "using redis draft store")
	}

	publisher, err := newAuditPublisher(ctx, cfg.Kafka, db, logger, reg, a)
	if err != nil {
		return nil, err
	}

	forms := formservice.New(catalog.NewInMemory(cat),
		formservice.WithLogger(logger),
		formservice.WithMetrics(formmetrics.NewWith(reg)),
	)

	approvals := approvalservice.New(newApprovalStore(db),
		approvalservice.WithLogger(logger),
		approvalservice.WithAuditPublisher(publisher),
		approvalservice.WithMetrics(approvalmetrics.NewWith(reg)),
	)

	requestOpts := []requestservice.Option{
		requestservice.WithLogger(logger),
		requestservice.WithAuditPublisher(publisher),
		requestservice.WithMetrics(requestmetrics.NewWith(reg)),
		requestservice.WithApprovalSeeder(approvals),
		requestservice.WithPDFBaseURL(cfg.Server.PDFBaseURL),
	}
	if db != nil {
		requestOpts = append(requestOpts, requestservice.WithTransactor(txcontext.NewRunner(db)))
	}
	requests := requestservice.New(newRequestStore(db), newDraftStore(rc, cfg.Drafts), forms, requestOpts...)

	documents := documentservice.New(newDocumentStore(db), requests, forms,
		documentservice.WithLogger(logger),
		documentservice.WithAuditPublisher(publisher),
		documentservice.WithMetrics(documentmetrics.NewWith(reg)),
	)

	a.handler = httptransport.NewRouter(httptransport.Deps{
		Logger:   logger,
		Metrics:  metrics.NewWith(reg),
		Gatherer: reg,
		Health:   health,
	},
		formhandler.New(forms, logger),
		requesthandler.New(requests, logger),
		approvalhandler.New(approvals, logger),
		documenthandler.New(documents, logger),
	)
	return a, nil
}

// newAuditPublisher persists audit events in Postgres when available and
// forwards them to Kafka when brokers are configured.
func newAuditPublisher(
	ctx context.Context,
	cfg config.KafkaConfig,
	db *sql.DB,
	logger *slog.Logger,
	reg *prometheus.Registry,
	a *app,
) (*auditpublisher.Publisher, error) {
	var store audit.Store = auditmemory.NewInMemoryStore()
	if db != nil {
		store = auditpostgres.New(db)
	}
	opts := []auditpublisher.Option{
		auditpublisher.WithAsyncBuffer(auditBufferSize),
		auditpublisher.WithLogger(logger),
		auditpublisher.WithMetrics(auditpublisher.NewMetricsWith(reg)),
	}
	if cfg.Enabled() {
		producer, err := kafka.NewProducer(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("audit sink: %w", err)
		}
		a.closers = append(a.closers, producer.Close)
		opts = append(opts, auditpublisher.WithSink(producer))
		logger.InfoContext(ctx, "publishing audit events to kafka", "topic", cfg.AuditTopic)
	}
	publisher := auditpublisher.NewPublisher(store, opts...)
	a.closers = append(a.closers, func(context.Context) error {
		publisher.Close()
		return nil
	})
	return publisher, nil
}

func newRequestStore(db *sql.DB) requestservice.RequestStore {
	if db == nil {
		return requeststore.NewInMemory()
	}
	return requeststore.NewPostgres(db)
}

func newDraftStore(rc *redis.Client, cfg config.DraftConfig) requestservice.DraftStore {
	if rc == nil {
		return draftstore.NewInMemory(cfg.TTL)
	}
	return draftstore.NewRedis(rc.Client, cfg.TTL)
}

func newApprovalStore(db *sql.DB) approvalservice.Store {
	if db == nil {
		return approvalstore.NewInMemory()
	}
	return approvalstore.NewPostgres(db)
}

func newDocumentStore(db *sql.DB) documentservice.Store {
	if db == nil {
		return documentstore.NewInMemory()
	}
	return documentstore.NewPostgres(db)
}

// Package app assembles the adapters and services shared by the api, worker and CLI binaries.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"time"

	"bawabamail/config"
	"bawabamail/internal/adapters/auth"
	"bawabamail/internal/adapters/email"
	"bawabamail/internal/adapters/queue"
	redisadapter "bawabamail/internal/adapters/redis"
	"bawabamail/internal/domain"
	"bawabamail/internal/repository/postgres"
	"bawabamail/internal/services"
)

const (
	memoryQueueSize = 256
	rateLimitWindow = time.Minute
	rateLimitPrefix = "ratelimit:newsletter:"
	connectTimeout  = 10 * time.Second
)

// Queue is a job queue both the API and the worker side can use.
type Queue interface {
	domain.JobPublisher
	domain.JobConsumer
	io.Closer
}

// Infra holds the long-lived connections of one process.
type Infra struct {
	DB     *sql.DB
	Queue  Queue
	closed []io.Closer
}

// Open connects to Postgres, applies the schema and opens the job queue.
// Without AMQP_URL the queue is in-process and Embedded reports true.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Infra, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	db, err := postgres.Open(ctx, cfg.DBUrl)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	infra := &Infra{DB: db}
	if cfg.AMQPURL == "" {
		logger.Warn("AMQP_URL not set, dispatch jobs run in-process")
		infra.Queue = queue.NewMemory(memoryQueueSize, logger)
	} else {
		q, err := queue.NewRabbitMQ(cfg.AMQPURL, cfg.DispatchQueue, logger)
		if err != nil {
			db.Close()
			return nil, err
		}
		infra.Queue = q
	}
	infra.closed = append(infra.closed, infra.Queue, db)
	return infra, nil
}

// Embedded reports whether jobs are consumed in the publishing process.
func (i *Infra) Embedded() bool {
	_, ok := i.Queue.(*queue.Memory)
	return ok
}

// Close releases the queue and the database, in that order.
func (i *Infra) Close() {
	for _, c := range i.closed {
		_ = c.Close()
	}
}

// Services is the wired application layer.
type Services struct {
	Campaigns    domain.CampaignService
	Subscribers  domain.SubscriberService
	Auth         domain.AuthService
	Dispatcher   domain.CampaignDispatcher
	Verifier     domain.TokenVerifier
	CampaignRepo domain.CampaignRepository
}

// NewServices builds repositories, the email stack and every service on top of infra.
func NewServices(cfg *config.Config, infra *Infra, logger *slog.Logger) (*Services, error) {
	campaignRepo := postgres.NewCampaignRepository(infra.DB)
	subscriberRepo := postgres.NewSubscriberRepository(infra.DB)
	userRepo := postgres.NewUserRepository(infra.DB)
	roleRepo := postgres.NewRoleRepository(infra.DB)

	urls, err := auth.NewUnsubscribeURLBuilder(cfg.UnsubscribeSecret, cfg.Site.URL)
	if err != nil {
		return nil, fmt.Errorf("unsubscribe links: %w", err)
	}
	mailer, err := email.NewMailer(cfg.Email, logger)
	if err != nil {
		return nil, fmt.Errorf("mailer: %w", err)
	}
	templates, err := email.NewTemplateRenderer()
	if err != nil {
		return nil, fmt.Errorf("email templates: %w", err)
	}
	renderer := services.NewContentRenderer(templates, cfg.Site, logger)
	emailService := services.NewEmailService(mailer, templates, cfg.ReplyTo, logger)

	return &Services{
		Campaigns:    services.NewCampaignService(campaignRepo, infra.Queue, renderer, urls, logger),
		Subscribers:  services.NewSubscriberService(subscriberRepo, urls, emailService, cfg.Site, logger),
		Auth:         services.NewAuthService(userRepo, roleRepo, auth.NewBcryptHasher(auth.DefaultBcryptCost), auth.NewJWTIssuer(cfg.JWTSecret), cfg.JWTExpiry),
		Dispatcher:   services.NewDispatcher(campaignRepo, subscriberRepo, renderer, urls, mailer, cfg.Dispatch, logger),
		Verifier:     auth.NewJWTVerifier(cfg.JWTSecret),
		CampaignRepo: campaignRepo,
	}, nil
}

// NewRateLimiter returns the Redis limiter for public endpoints, or one that allows everything
// when REDIS_URL is not set. The returned closer is never nil.
func NewRateLimiter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.RateLimiter, func() error, error) {
	if cfg.RedisURL == "" || cfg.RateLimitPerMinute <= 0 {
		logger.Warn("rate limiting disabled")
		return redisadapter.NewAllowAll(), func() error { return nil }, nil
	}
	client, err := redisadapter.NewClient(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, limiter will fail open until it recovers", "err", err)
	}
	return redisadapter.NewFixedWindowLimiter(client, cfg.RateLimitPerMinute, rateLimitWindow, rateLimitPrefix), client.Close, nil
}

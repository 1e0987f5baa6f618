// Package app assembles storage, processors, notifier and services from
// configuration. Every binary builds its dependencies through New.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"creditline-backend/internal/config"
	"creditline-backend/internal/idempotency"
	"creditline-backend/internal/logger"
	"creditline-backend/internal/payment"
	"creditline-backend/internal/repository"
	"creditline-backend/internal/repository/boltdb"
	"creditline-backend/internal/repository/postgres"
	"creditline-backend/internal/service"
	"creditline-backend/internal/utils"
)

// Repositories is the storage surface shared by both engines
type Repositories struct {
	Customers     repository.CustomerRepository
	Transactions  repository.TransactionRepository
	Chargebacks   repository.ChargebackRepository
	Activities    repository.ActivityRepository
	Conversations repository.ConversationRepository
	Views         repository.ViewRepository
	Ledger        repository.LedgerStore
}

type App struct {
	Config       *config.Config
	Repos        Repositories
	Rates        *utils.RateTable
	Processors   *payment.Registry
	Notifier     service.Notifier
	Transactions service.TransactionService
	Activities   service.ActivityService
	Messaging    service.MessagingService
	Reports      service.ReportingService

	health  func() error
	closers []func() error
}

// New opens storage and wires every service
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	rates, err := utils.NewRateTable(cfg.Billing)
	if err != nil {
		return nil, fmt.Errorf("failed to build rate table: %w", err)
	}
	a.Rates = rates

	if err := a.openStorage(ctx); err != nil {
		return nil, err
	}

	guard, closeGuard := idempotency.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	a.closers = append(a.closers, closeGuard)

	a.Processors = newProcessors(cfg.Payment)
	a.Notifier = newNotifier(cfg)

	a.Transactions = service.NewTransactionService(
		a.Repos.Customers,
		a.Repos.Transactions,
		a.Repos.Chargebacks,
		a.Repos.Ledger,
		rates,
		a.Processors,
		guard,
		a.Notifier,
		service.PaymentSettings{
			ProcessorTimeout: cfg.Payment.ProcessorTimeout(),
			LeaseTTL:         cfg.Payment.LeaseTTL(),
		},
	)
	a.Activities = service.NewActivityService(a.Repos.Activities, a.Repos.Views, a.Repos.Ledger, rates)
	a.Messaging = service.NewMessagingService(a.Repos.Conversations, a.Repos.Ledger, rates)
	a.Reports = service.NewReportingService(a.Repos.Transactions, a.Repos.Chargebacks, a.Repos.Activities, a.Repos.Views)

	return a, nil
}

func (a *App) openStorage(ctx context.Context) error {
	cfg := a.Config
	switch cfg.Storage.Engine {
	case "bolt":
		logger.Info("Opening bolt ledger store", "path", cfg.Storage.BoltPath)
		s, err := boltdb.Open(cfg.Storage.BoltPath)
		if err != nil {
			return err
		}
		a.Repos = Repositories{
			Customers:     s.CustomerRepository,
			Transactions:  s.TransactionRepository,
			Chargebacks:   s.ChargebackRepository,
			Activities:    s.ActivityRepository,
			Conversations: s.ConversationRepository,
			Views:         s.ViewRepository,
			Ledger:        s.LedgerStore,
		}
		a.health = func() error { return nil }
		a.closers = append(a.closers, s.Close)

	default:
		logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database)
		db, err := postgres.Open(ctx, cfg.GetDatabaseConnectionString(), cfg.Database.MaxConns)
		if err != nil {
			return err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		logger.Info("Database connection established")

		s := postgres.NewStore(db)
		a.Repos = Repositories{
			Customers:     s.CustomerRepository,
			Transactions:  s.TransactionRepository,
			Chargebacks:   s.ChargebackRepository,
			Activities:    s.ActivityRepository,
			Conversations: s.ConversationRepository,
			Views:         s.ViewRepository,
			Ledger:        s.LedgerStore,
		}
		a.health = func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return s.DB().PingContext(pingCtx)
		}
		a.closers = append(a.closers, s.Close)
	}
	return nil
}

func newProcessors(cfg config.PaymentConfig) *payment.Registry {
	reg := payment.NewRegistry()
	if cfg.StripeSecretKey != "" {
		reg.Register(payment.NewStripe(cfg.StripeSecretKey, cfg.StripeCurrency))
		logger.Info("Stripe processor enabled", "currency", cfg.StripeCurrency)
	}
	if cfg.SandboxEnabled {
		reg.Register(payment.NewSandbox())
		logger.Warn("Sandbox processor enabled; do not use in production")
	}
	return reg
}

func newNotifier(cfg *config.Config) service.Notifier {
	switch cfg.Email.Provider {
	case "smtp":
		logger.Info("SMTP notifier enabled", "host", cfg.SMTP.Host, "port", cfg.SMTP.Port)
		return service.NewEmailService(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password,
			cfg.Email.FromAddress, cfg.Email.AdminAddress)
	case "sendgrid":
		logger.Info("SendGrid notifier enabled")
		return service.NewSendGridService(cfg.Email.SendGridAPIKey, cfg.Email.FromAddress, cfg.Email.FromName,
			cfg.Email.AdminAddress)
	default:
		logger.Info("Email notifications disabled")
		return service.NewNoopNotifier()
	}
}

// Health checks the storage engine
func (a *App) Health() error {
	if a.health == nil {
		return nil
	}
	return a.health()
}

// Close releases resources in reverse order of acquisition
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

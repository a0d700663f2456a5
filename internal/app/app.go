package app

import (
	"context"
	"fmt"

	"libristack/internal/adapters/persistence/models"
	"libristack/internal/adapters/persistence/repositories"
	"libristack/internal/adapters/queue"
	"libristack/internal/config"
	"libristack/internal/core/services"
	"libristack/internal/pkg/mailer"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds the wired services shared by the server and libraryctl
type App struct {
	Config *config.Config
	Log    *zap.Logger
	DB     *gorm.DB
	Store  *repositories.Store

	Auth      *services.AuthService
	Users     *services.UserService
	Catalog   *services.CatalogService
	Lending   *services.LendingService
	Contact   *services.ContactService
	BulkMail  *services.BulkMailService
	Dashboard *services.DashboardService
	Scanner   *services.OverdueScanner

	Tasks *queue.Client
}

// New connects the database, runs migrations and builds every service.
// The task queue is opened only when withTasks is set and tasks are enabled.
func New(cfg *config.Config, log *zap.Logger, withTasks bool) (*App, error) {
	db, err := config.ConnectDatabase(cfg, log)
	if err != nil {
		return nil, err
	}

	if err := models.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	log.Info("database migration completed")

	if cfg.IsDev() {
		if err := config.NewSeeder(db, log).Run(); err != nil {
			log.Warn("failed to seed sample data", zap.Error(err))
		}
	}

	store := repositories.NewStore(db)
	sender := newSender(cfg, log)
	notifier := services.NewNotificationService(sender, log)

	a := &App{
		Config:    cfg,
		Log:       log,
		DB:        db,
		Store:     store,
		Auth:      services.NewAuthService(store, notifier, cfg, log),
		Users:     services.NewUserService(store, cfg, log),
		Catalog:   services.NewCatalogService(store, log),
		Lending:   services.NewLendingService(store, log),
		Contact:   services.NewContactService(store, log),
		Dashboard: services.NewDashboardService(store),
		Scanner:   services.NewOverdueScanner(store, notifier, services.ScannerOptions{
			Schedule:      cfg.Scanner.Schedule,
			Window:        cfg.Scanner.Window,
			NotifyTimeout: cfg.Scanner.NotifyTimeout,
		}, log),
	}

	if withTasks && cfg.Tasks.Enabled {
		client, err := queue.NewClient(queue.Config{
			DBPath:          cfg.Tasks.DBPath,
			Workers:         cfg.Tasks.Workers,
			ReleaseAfter:    cfg.Tasks.ReleaseAfter,
			CleanupInterval: cfg.Tasks.CleanupInterval,
		}, log)
		if err != nil {
			_ = config.CloseDatabase()
			return nil, err
		}
		client.Register(queue.NewMailQueue(sender, log))
		a.Tasks = client
		a.BulkMail = services.NewBulkMailService(store, queue.NewMailEnqueuer(client), log)
	}

	return a, nil
}

func newSender(cfg *config.Config, log *zap.Logger) mailer.Sender {
	if !cfg.Mail.Enabled {
		log.Info("mail disabled, messages will be logged")
		return mailer.NewLogSender(log)
	}
	return mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
		UseTLS:   cfg.Mail.UseTLS,
	})
}

// Close stops the task queue and releases the database
func (a *App) Close(ctx context.Context) {
	if a.Tasks != nil {
		if !a.Tasks.Stop(ctx) {
			a.Log.Warn("task queue did not drain before shutdown deadline")
		}
		if err := a.Tasks.Close(); err != nil {
			a.Log.Error("failed to close task queue", zap.Error(err))
		}
	}
	if err := config.CloseDatabase(); err != nil {
		a.Log.Error("failed to close database", zap.Error(err))
	}
}

package bootstrap

import (
	"context"
	"net/http"

	zlog "github.com/rs/zerolog/log"

	"github.com/sessiongate/sessiongate/internal/application/auth"
	"github.com/sessiongate/sessiongate/internal/application/mailer"
	"github.com/sessiongate/sessiongate/internal/application/session"
	"github.com/sessiongate/sessiongate/internal/audit"
	"github.com/sessiongate/sessiongate/internal/config"
	"github.com/sessiongate/sessiongate/internal/infrastructure/db/sqlite"
	"github.com/sessiongate/sessiongate/internal/infrastructure/email"
	"github.com/sessiongate/sessiongate/internal/logger"
	httphandlers "github.com/sessiongate/sessiongate/internal/transport/http/handlers"
	"github.com/sessiongate/sessiongate/internal/transport/http/middleware"
	"github.com/sessiongate/sessiongate/internal/transport/http/router"
)

/*
========================
 Public entry (prod)
========================
*/

func NewServer() (*http.Server, func(), error) {
	return newServer(defaultDeps())
}

// NewServerWithDeps allows injecting dependencies for testing
func NewServerWithDeps(deps Deps) (*http.Server, func(), error) {
	return newServer(deps)
}

/*
========================
 Dependency injection
========================
*/

type Deps struct {
	LoadConfig func() (*config.Config, error)

	NewSender func(cfg *config.Config) mailer.Sender

	NewRouter func(router.Deps) (http.Handler, error)
}

func defaultDeps() Deps {
	return Deps{
		LoadConfig: config.Load,
		NewSender:  defaultSender,
		NewRouter:  router.New,
	}
}

func defaultSender(cfg *config.Config) mailer.Sender {
	if cfg.EmailFake {
		logger.Logger.Warn().Msg("email delivery faked; set EMAIL_FAKE=0 for SMTP")
		return &email.FakeSender{}
	}
	return email.NewSMTPSender(email.SMTPConfig{
		Host:     cfg.EmailSMTPHost,
		Port:     cfg.EmailSMTPPort,
		Helo:     cfg.EmailHelo,
		From:     cfg.EmailFrom,
		User:     cfg.EmailSMTPUser,
		Password: cfg.EmailSMTPPassword,
	})
}

/*
========================
 Core bootstrap logic
========================
*/

func newServer(deps Deps) (*http.Server, func(), error) {
	// 0) config
	cfg, err := deps.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	// 1) store
	db, err := sqlite.Open(cfg.SessionDB)
	if err != nil {
		return nil, nil, err
	}
	cleanupFns := []func(){
		func() { _ = db.Close() },
	}

	userRepo := sqlite.NewUserRepo(db)
	sessionRepo := sqlite.NewSessionRepo(db)
	queue := sqlite.NewEmailQueue(db)

	// 2) session registry
	sessions := session.NewManager(sessionRepo, session.Config{
		IdleTTL:     cfg.TimeoutIdle,
		AbsoluteTTL: cfg.TimeoutAbsolute,
		AnonTTL:     cfg.TimeoutAnonAbsolute,
	})

	// 3) email worker
	worker := mailer.NewWorker(queue, userRepo, deps.NewSender(cfg), cfg.EmailExpire)
	workerCtx, stopWorker := context.WithCancel(context.Background())
	go worker.Run(workerCtx)
	cleanupFns = append(cleanupFns, stopWorker)

	// 4) credential service
	auditLog := audit.New(zlog.Logger)
	svc := auth.NewService(userRepo, queue, auth.Config{
		AdminUser:          cfg.AdminUser,
		AdminPasswordSHA1:  cfg.AdminPasswordSHA1,
		Confounder:         cfg.Confounder,
		EmailFrom:          cfg.EmailFrom,
		EmailTitle:         cfg.EmailTitle,
		EmailContactPerson: cfg.EmailContactPerson,
		ConfirmURL:         cfg.EmailConfirmURL,
	}).WithWake(worker.Check).WithAudit(auditLog.Record)

	// 5) transport
	sessionMW := &middleware.SessionMW{Sessions: sessions, Auth: svc}

	routerDeps := router.Deps{
		Health:    &httphandlers.HealthHandler{DB: db},
		Auth:      &httphandlers.AuthHandler{Auth: svc, Sessions: sessions},
		RequestID: middleware.RequestID,
		Session:   sessionMW.Ensure,
		Require:   sessionMW.Require,
	}
	if cfg.DocRoot != "" {
		routerDeps.Pages = &httphandlers.PagesHandler{Root: cfg.DocRoot, Info: svc}
	}

	handler, err := deps.NewRouter(routerDeps)
	if err != nil {
		runCleanup(cleanupFns)
		return nil, nil, err
	}

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return srv, func() { runCleanup(cleanupFns) }, nil
}

func runCleanup(fns []func()) {
	// reverse order, like defers
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}

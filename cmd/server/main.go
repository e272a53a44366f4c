package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/auth-service/internal/config"
	"github.com/iliyamo/auth-service/internal/database"
	"github.com/iliyamo/auth-service/internal/handler"
	"github.com/iliyamo/auth-service/internal/logs"
	"github.com/iliyamo/auth-service/internal/queue"
	"github.com/iliyamo/auth-service/internal/repository"
	"github.com/iliyamo/auth-service/internal/router"
	"github.com/iliyamo/auth-service/internal/service"
	"github.com/iliyamo/auth-service/internal/utils"
)

func main() {
	cfg := config.MustLoad()
	log := logs.New(logs.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

// stores is the persistence backend chosen by STORE.
type stores struct {
	users   service.UserStore
	tenants service.TenantStore
	tokens  interface {
		service.RefreshTokenStore
		service.ExpiredTokenStore
	}
	tx service.Transactor
	db *sql.DB
}

func openStores(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (stores, error) {
	if cfg.Store == config.StoreMemory {
		log.Warn("using in-memory store; data is lost on restart")
		m := repository.NewMemoryStore()
		return stores{users: m.Users(), tenants: m.Tenants(), tokens: m.Tokens(), tx: m}, nil
	}

	db, err := database.Open(cfg.DB.User, cfg.DB.Pass, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name)
	if err != nil {
		return stores{}, err
	}
	if cfg.DB.AutoMigrate {
		if err := database.ApplySchema(ctx, db); err != nil {
			_ = db.Close()
			return stores{}, err
		}
		log.Info("database schema applied")
	}
	return stores{
		users:   repository.NewUserRepo(db),
		tenants: repository.NewTenantRepo(db),
		tokens:  repository.NewTokenRepo(db),
		tx:      database.NewTxManager(db),
		db:      db,
	}, nil
}

func run(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	if st.db != nil {
		defer st.db.Close()
	}

	var kf jwt.Keyfunc
	if cfg.Token.JWKSURI != "" {
		kf, err = utils.RemoteKeyfunc(ctx, cfg.Token.JWKSURI)
		if err != nil {
			return err
		}
		log.WithField("jwks_uri", cfg.Token.JWKSURI).Info("verifying access tokens against remote key set")
	}
	tokens, err := service.NewTokenService(service.TokenConfig{
		PrivateKeyPEM: cfg.Token.PrivateKey,
		RefreshSecret: cfg.Token.RefreshSecret,
		KeyID:         cfg.Token.KeyID,
		Keyfunc:       kf,
	}, st.tokens)
	if err != nil {
		return err
	}

	var events service.EventPublisher = queue.NopPublisher{}
	if cfg.Events.Enabled {
		events = queue.NewPublisher(cfg.Events.RabbitURL, log)
	}
	if cfg.Events.ConsumerEnabled {
		go func() {
			if err := queue.StartAuditConsumer(ctx, cfg.Events.RabbitURL, cfg.Events.AuditLogPath, log); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("audit consumer stopped")
			}
		}()
	}
	go service.PruneExpiredTokens(ctx, st.tokens, cfg.Token.PruneInterval, log)

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		log.Warn("redis unavailable; tenant reads are not cached")
	} else {
		defer rdb.Close()
	}

	hasher := utils.NewPasswordHasher(cfg.BcryptCost)
	deps := router.Deps{
		Log:      log,
		Verifier: tokens,
		Keys:     tokens,
		Auth: handler.NewAuthHandler(
			service.NewAuthService(st.users, st.tx, hasher, tokens, events, log),
			handler.Cookies{Domain: cfg.HTTP.MainDomain, Secure: cfg.HTTP.CookieSecure},
			log,
		),
		Users:   handler.NewUserHandler(service.NewUserService(st.users, hasher, events, log)),
		Tenants: handler.NewTenantHandler(service.NewTenantService(st.tenants)),
		Cache:   cfg.Cache,
		Redis:   rdb,
		Origins: cfg.HTTP.AllowedOrigins(),
	}
	// a nil *sql.DB must not become a non-nil Pinger
	if st.db != nil {
		deps.DB = st.db
	}
	e := router.Setup(deps)

	errc := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env, "store": cfg.Store}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

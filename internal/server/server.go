package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/fundtrace/backend/internal/config"
	"github.com/OFFIS-RIT/fundtrace/backend/internal/migrations"
	"github.com/OFFIS-RIT/fundtrace/backend/internal/queue"
	mid "github.com/OFFIS-RIT/fundtrace/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/fundtrace/backend/internal/util"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/logger"
	pgxstore "github.com/OFFIS-RIT/fundtrace/backend/pkg/store/pgx"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

// New builds the echo instance with validation, middlewares and routes wired
// against app.
func New(app *mid.App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))

	RegisterRoutes(e)
	return e
}

func Init() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var k keyfunc.Keyfunc
	if authURL := util.GetEnv("AUTH_URL"); authURL != "" {
		jwks, err := keyfunc.NewDefault([]string{authURL + "/jwks"})
		if err != nil {
			logger.Fatal("Failed to load jwks keys", "err", err)
		}
		k = jwks
	}

	databaseURL := util.GetEnv("DATABASE_URL")
	if err := migrations.Up(databaseURL); err != nil {
		logger.Fatal("Failed to migrate database", "err", err)
	}

	conn, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()

	s, err := pgxstore.NewChainDBStorageWithConnection(ctx, conn)
	if err != nil {
		logger.Fatal("Failed to create chain storage", "err", err)
	}

	cfg := config.ChainFromEnv()
	identifier, err := cfg.NewIdentifier(s)
	if err != nil {
		logger.Fatal("Failed to create chain identifier", "err", err)
	}

	app := &mid.App{
		Storage:        s,
		Identifier:     identifier,
		Key:            k,
		MinConfidence:  cfg.MinConfidence,
		MasterAPIKey:   util.GetEnv("MASTER_API_KEY"),
		MasterUserRole: util.GetEnv("MASTER_USER_ROLE"),
	}
	app.MasterUserID, _ = strconv.ParseInt(util.GetEnv("MASTER_USER_ID"), 10, 64)

	if util.GetEnv("RABBITMQ_HOST") != "" {
		que := queue.Init(ctx)
		defer que.Close()
		ch, err := que.Channel()
		if err != nil {
			logger.Fatal("Failed to open channel", "err", err)
		}
		if err := queue.SetupQueues(ch, queue.Queues); err != nil {
			logger.Fatal("Failed to setup queues", "err", err)
		}
		app.Queue = ch
	} else {
		logger.Warn("[Server] RABBITMQ_HOST not set, asynchronous identification disabled")
	}

	e := New(app)

	go func() {
		port := util.GetEnvString("PORT", "8080")
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}

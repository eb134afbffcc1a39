package middleware

import (
	"github.com/OFFIS-RIT/fundtrace/backend/internal/queue"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/chain"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/store"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/labstack/echo/v4"
)

type AppUser struct {
	UserID      int64
	Role        string
	Permissions []string
}

// App carries the process-wide dependencies handed to every request.
//
// Queue may be nil when the server runs without RabbitMQ; asynchronous
// identification is then unavailable. Key may be nil when only the master
// API key is accepted.
type App struct {
	Storage        store.ChainStorage
	Identifier     *chain.Identifier
	Queue          queue.Publisher
	Key            keyfunc.Keyfunc
	MinConfidence  float64
	MasterAPIKey   string
	MasterUserID   int64
	MasterUserRole string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}

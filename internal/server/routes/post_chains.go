package routes

import (
	"errors"
	"net/http"
	"time"

	"github.com/OFFIS-RIT/fundtrace/backend/internal/queue"
	"github.com/OFFIS-RIT/fundtrace/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/chain"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/common"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

type identifyChainsData struct {
	CaseID        string   `param:"case_id" validate:"required"`
	MinConfidence *float64 `json:"minConfidence" validate:"omitempty,min=0,max=1"`
}

func bindIdentify(c echo.Context) (*identifyChainsData, error) {
	data := new(identifyChainsData)
	if err := c.Bind(data); err != nil {
		return nil, err
	}
	if err := c.Validate(data); err != nil {
		return nil, err
	}
	return data, nil
}

// effectiveMinConfidence applies the server-wide default when the request
// does not carry a threshold.
func effectiveMinConfidence(app *middleware.App, requested *float64) *float64 {
	if requested != nil {
		return requested
	}
	if app.MinConfidence > 0 {
		v := app.MinConfidence
		return &v
	}
	return nil
}

func IdentifyChainsHandler(c echo.Context) error {
	type identifyChainsResponse struct {
		Success             bool           `json:"success"`
		Message             string         `json:"message,omitempty"`
		ChainsIdentified    int            `json:"chainsIdentified"`
		Chains              []common.Chain `json:"chains"`
		LowConfidenceChains int            `json:"lowConfidenceChains"`
		ResponseTimeMs      int64          `json:"responseTimeMs"`
	}

	data, err := bindIdentify(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, identifyChainsResponse{
			Message: "Invalid request params",
		})
	}

	app := c.(*middleware.AppContext).App
	input := chain.IdentifyInput{
		CaseID:        data.CaseID,
		MinConfidence: effectiveMinConfidence(app, data.MinConfidence),
	}
	threshold, err := input.Threshold()
	if err != nil {
		return c.JSON(http.StatusBadRequest, identifyChainsResponse{
			Message: "Invalid request params",
		})
	}

	start := time.Now()
	chains, err := app.Identifier.Identify(c.Request().Context(), input)
	elapsed := time.Since(start)
	if err != nil {
		logger.Error("[Server] Chain identification failed", "case_id", data.CaseID, "err", err)
		if errors.Is(err, chain.ErrMissingCaseID) || errors.Is(err, chain.ErrInvalidConfidence) {
			return c.JSON(http.StatusBadRequest, identifyChainsResponse{
				Message: err.Error(),
			})
		}
		return c.JSON(http.StatusInternalServerError, identifyChainsResponse{
			Message: "Internal server error",
		})
	}

	if chains == nil {
		chains = []common.Chain{}
	}

	return c.JSON(http.StatusOK, identifyChainsResponse{
		Success:             true,
		ChainsIdentified:    len(chains),
		Chains:              chains,
		LowConfidenceChains: chain.LowConfidenceCount(chains, threshold),
		ResponseTimeMs:      elapsed.Milliseconds(),
	})
}

func IdentifyChainsAsyncHandler(c echo.Context) error {
	type identifyChainsAsyncResponse struct {
		Message       string `json:"message"`
		CorrelationID string `json:"correlationId,omitempty"`
	}

	data, err := bindIdentify(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, identifyChainsAsyncResponse{
			Message: "Invalid request params",
		})
	}

	app := c.(*middleware.AppContext).App
	if app.Queue == nil {
		return c.JSON(http.StatusServiceUnavailable, identifyChainsAsyncResponse{
			Message: "Queue not configured",
		})
	}

	msg, err := queue.NewIdentifyMessage(data.CaseID, effectiveMinConfidence(app, data.MinConfidence))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, identifyChainsAsyncResponse{
			Message: "Internal server error",
		})
	}
	if err := queue.EnqueueIdentify(app.Queue, msg); err != nil {
		logger.Error("[Server] Failed to enqueue identification", "case_id", data.CaseID, "err", err)
		return c.JSON(http.StatusInternalServerError, identifyChainsAsyncResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusAccepted, identifyChainsAsyncResponse{
		Message:       "Chain identification queued",
		CorrelationID: msg.CorrelationID,
	})
}

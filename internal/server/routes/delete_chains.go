package routes

import (
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/fundtrace/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/logger"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/store"

	"github.com/labstack/echo/v4"
)

func DeleteChainHandler(c echo.Context) error {
	type deleteChainData struct {
		ID string `param:"id" validate:"required"`
	}

	type deleteChainResponse struct {
		Success bool   `json:"success"`
		Message string `json:"message,omitempty"`
	}

	data := new(deleteChainData)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, deleteChainResponse{
			Message: "Invalid request params",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, deleteChainResponse{
			Message: "Invalid request params",
		})
	}

	s := c.(*middleware.AppContext).App.Storage
	err := s.DeleteChain(c.Request().Context(), data.ID)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, deleteChainResponse{
			Message: "Chain not found",
		})
	}
	if err != nil {
		logger.Error("[Server] Failed to delete chain", "chain_id", data.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, deleteChainResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, deleteChainResponse{Success: true})
}

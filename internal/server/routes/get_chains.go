package routes

import (
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/fundtrace/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/common"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/logger"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/store"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/view"

	"github.com/labstack/echo/v4"
)

type listChainsData struct {
	CaseID    string `param:"case_id" validate:"required"`
	ChainType string `query:"chain_type"`
}

func (d *listChainsData) chainTypeFilter() (*common.ChainType, error) {
	if d.ChainType == "" {
		return nil, nil
	}
	ct, err := common.ParseChainType(d.ChainType)
	if err != nil {
		return nil, err
	}
	return &ct, nil
}

func bindListChains(c echo.Context) (*listChainsData, *common.ChainType, error) {
	data := new(listChainsData)
	if err := c.Bind(data); err != nil {
		return nil, nil, err
	}
	if err := c.Validate(data); err != nil {
		return nil, nil, err
	}
	filter, err := data.chainTypeFilter()
	if err != nil {
		return nil, nil, err
	}
	return data, filter, nil
}

type chainWithEndpoints struct {
	common.ChainRecord
	StartTx *common.Transaction `json:"startTx,omitempty"`
	EndTx   *common.Transaction `json:"endTx,omitempty"`
}

func endpointIDs(chains []common.ChainRecord) []string {
	ids := make([]string, 0, len(chains)*2)
	for _, c := range chains {
		ids = append(ids, c.StartTxID, c.EndTxID)
	}
	return store.DedupeStrings(ids)
}

func GetChainsHandler(c echo.Context) error {
	type getChainsResponse struct {
		Message     string               `json:"message,omitempty"`
		Chains      []chainWithEndpoints `json:"chains"`
		TotalChains int                  `json:"totalChains"`
	}

	data, filter, err := bindListChains(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, getChainsResponse{
			Message: "Invalid request params",
		})
	}

	ctx := c.Request().Context()
	s := c.(*middleware.AppContext).App.Storage

	records, err := s.ListChains(ctx, data.CaseID, filter)
	if err != nil {
		logger.Error("[Server] Failed to list chains", "case_id", data.CaseID, "err", err)
		return c.JSON(http.StatusInternalServerError, getChainsResponse{
			Message: "Internal server error",
		})
	}

	txs, err := s.GetTransactions(ctx, endpointIDs(records))
	if err != nil {
		logger.Error("[Server] Failed to load chain endpoints", "case_id", data.CaseID, "err", err)
		return c.JSON(http.StatusInternalServerError, getChainsResponse{
			Message: "Internal server error",
		})
	}
	byID := view.IndexTransactions(txs)

	out := make([]chainWithEndpoints, 0, len(records))
	for _, r := range records {
		item := chainWithEndpoints{ChainRecord: r}
		if tx, ok := byID[r.StartTxID]; ok {
			item.StartTx = &tx
		}
		if tx, ok := byID[r.EndTxID]; ok {
			item.EndTx = &tx
		}
		out = append(out, item)
	}

	return c.JSON(http.StatusOK, getChainsResponse{
		Chains:      out,
		TotalChains: len(out),
	})
}

func GetChainDetailHandler(c echo.Context) error {
	type getChainDetailData struct {
		ID string `param:"id" validate:"required"`
	}

	type getChainDetailResponse struct {
		Message      string               `json:"message,omitempty"`
		Chain        *common.ChainRecord  `json:"chain,omitempty"`
		Transactions []common.Transaction `json:"transactions"`
	}

	data := new(getChainDetailData)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, getChainDetailResponse{
			Message: "Invalid request params",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, getChainDetailResponse{
			Message: "Invalid request params",
		})
	}

	ctx := c.Request().Context()
	s := c.(*middleware.AppContext).App.Storage

	record, err := s.GetChain(ctx, data.ID)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, getChainDetailResponse{
			Message: "Chain not found",
		})
	}
	if err != nil {
		logger.Error("[Server] Failed to get chain", "chain_id", data.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, getChainDetailResponse{
			Message: "Internal server error",
		})
	}

	path := record.PathIDs()
	txs, err := s.GetTransactions(ctx, path)
	if err != nil {
		logger.Error("[Server] Failed to load chain transactions", "chain_id", data.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, getChainDetailResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, getChainDetailResponse{
		Chain:        record,
		Transactions: view.OrderTransactions(path, txs),
	})
}

func GetVisualizationHandler(c echo.Context) error {
	data, filter, err := bindListChains(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request params"})
	}

	ctx := c.Request().Context()
	s := c.(*middleware.AppContext).App.Storage

	records, err := s.ListChains(ctx, data.CaseID, filter)
	if err != nil {
		logger.Error("[Server] Failed to list chains", "case_id", data.CaseID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}

	txIDs := view.PathTransactionIDs(records)
	relations, err := s.ListRelationsBetween(ctx, data.CaseID, txIDs)
	if err != nil {
		logger.Error("[Server] Failed to load relations", "case_id", data.CaseID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}

	txs, err := s.GetTransactions(ctx, endpointIDs(records))
	if err != nil {
		logger.Error("[Server] Failed to load chain endpoints", "case_id", data.CaseID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}

	return c.JSON(http.StatusOK, view.BuildGraph(records, relations, view.IndexTransactions(txs)))
}

package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	mid "github.com/OFFIS-RIT/fundtrace/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/chain"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/common"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/store/memory"

	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "master-key"

type recordingPublisher struct {
	published []amqp091.Publishing
}

func (p *recordingPublisher) ExchangeDeclare(string, string, bool, bool, bool, bool, amqp091.Table) error {
	return nil
}

func (p *recordingPublisher) QueueDeclare(name string, _, _, _, _ bool, _ amqp091.Table) (amqp091.Queue, error) {
	return amqp091.Queue{Name: name}, nil
}

func (p *recordingPublisher) Publish(_, _ string, _, _ bool, msg amqp091.Publishing) error {
	p.published = append(p.published, msg)
	return nil
}

func dec(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func newTestServer(t *testing.T) (*echo.Echo, *mid.App, *memory.Storage) {
	t.Helper()

	s := memory.New()
	tx1 := &common.Transaction{ID: "tx1", DepositAmount: dec(1000), Memo: "salary"}
	tx2 := &common.Transaction{ID: "tx2", WithdrawalAmount: dec(1000), Memo: "rent"}
	s.AddRelations("case-1", common.Relation{
		ID: "r1", SourceTxID: "tx1", TargetTxID: "tx2", Confidence: 0.9, SourceTx: tx1, TargetTx: tx2,
	})

	identifier, err := chain.NewIdentifier(chain.NewIdentifierParams{Relations: s, Chains: s})
	require.NoError(t, err)

	app := &mid.App{
		Storage:        s,
		Identifier:     identifier,
		MasterAPIKey:   testKey,
		MasterUserID:   1,
		MasterUserRole: "admin",
	}
	return New(app), app, s
}

func request(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("Authorization", "Bearer "+testKey)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func storedChainID(t *testing.T, s *memory.Storage) string {
	t.Helper()
	records, err := s.ListChains(t.Context(), "case-1", nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	return records[0].ID
}

func TestHealth(t *testing.T) {
	e, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestAPIRequiresAuth(t *testing.T) {
	e, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cases/case-1/chains", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIdentifyChains(t *testing.T) {
	e, _, s := newTestServer(t)

	rec := request(e, http.MethodPost, "/api/cases/case-1/chains/identify", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(1), body["chainsIdentified"])
	assert.Equal(t, float64(0), body["lowConfidenceChains"])
	assert.Len(t, body["chains"], 1)
	assert.Equal(t, 1, s.Len())

	// A second run reports the chain again without storing it twice.
	rec = request(e, http.MethodPost, "/api/cases/case-1/chains/identify", `{"minConfidence":0.5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["chainsIdentified"])
	assert.Equal(t, 1, s.Len())
}

func TestIdentifyChainsLowConfidence(t *testing.T) {
	e, _, s := newTestServer(t)

	rec := request(e, http.MethodPost, "/api/cases/case-1/chains/identify", `{"minConfidence":0.95}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, float64(0), body["chainsIdentified"])
	assert.Empty(t, body["chains"])
	assert.Equal(t, 0, s.Len())
}

func TestIdentifyChainsRejectsBadConfidence(t *testing.T) {
	e, _, _ := newTestServer(t)

	rec := request(e, http.MethodPost, "/api/cases/case-1/chains/identify", `{"minConfidence":1.5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIdentifyChainsStorageError(t *testing.T) {
	e, _, s := newTestServer(t)
	s.Err = assert.AnError

	rec := request(e, http.MethodPost, "/api/cases/case-1/chains/identify", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestIdentifyChainsAsync(t *testing.T) {
	e, app, _ := newTestServer(t)

	rec := request(e, http.MethodPost, "/api/cases/case-1/chains/identify/async", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	pub := &recordingPublisher{}
	app.Queue = pub

	rec = request(e, http.MethodPost, "/api/cases/case-1/chains/identify/async", `{"minConfidence":0.7}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	body := decode(t, rec)
	assert.NotEmpty(t, body["correlationId"])
	require.Len(t, pub.published, 1)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(pub.published[0].Body, &msg))
	assert.Equal(t, "case-1", msg["case_id"])
	assert.Equal(t, 0.7, msg["min_confidence"])
	assert.Equal(t, body["correlationId"], msg["correlation_id"])
}

func TestGetChains(t *testing.T) {
	e, _, _ := newTestServer(t)
	require.Equal(t, http.StatusOK, request(e, http.MethodPost, "/api/cases/case-1/chains/identify", "").Code)

	rec := request(e, http.MethodGet, "/api/cases/case-1/chains", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, float64(1), body["totalChains"])
	chains := body["chains"].([]any)
	require.Len(t, chains, 1)

	first := chains[0].(map[string]any)
	assert.Equal(t, "tx1", first["startTxId"])
	assert.Equal(t, "tx1,tx2", first["path"])
	assert.Equal(t, "salary", first["startTx"].(map[string]any)["memo"])
	assert.Equal(t, "rent", first["endTx"].(map[string]any)["memo"])

	rec = request(e, http.MethodGet, "/api/cases/case-1/chains?chain_type=LOAN_EXECUTION", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decode(t, rec)["totalChains"])

	rec = request(e, http.MethodGet, "/api/cases/case-1/chains?chain_type=NOPE", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetChainDetail(t *testing.T) {
	e, _, s := newTestServer(t)
	require.Equal(t, http.StatusOK, request(e, http.MethodPost, "/api/cases/case-1/chains/identify", "").Code)
	id := storedChainID(t, s)

	rec := request(e, http.MethodGet, "/api/chains/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, id, body["chain"].(map[string]any)["id"])
	txs := body["transactions"].([]any)
	require.Len(t, txs, 2)
	assert.Equal(t, "tx1", txs[0].(map[string]any)["id"])
	assert.Equal(t, "tx2", txs[1].(map[string]any)["id"])

	rec = request(e, http.MethodGet, "/api/chains/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteChain(t *testing.T) {
	e, _, s := newTestServer(t)
	require.Equal(t, http.StatusOK, request(e, http.MethodPost, "/api/cases/case-1/chains/identify", "").Code)
	id := storedChainID(t, s)

	rec := request(e, http.MethodDelete, "/api/chains/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["success"])
	assert.Equal(t, 0, s.Len())

	rec = request(e, http.MethodDelete, "/api/chains/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetVisualization(t *testing.T) {
	e, _, _ := newTestServer(t)
	require.Equal(t, http.StatusOK, request(e, http.MethodPost, "/api/cases/case-1/chains/identify", "").Code)

	rec := request(e, http.MethodGet, "/api/cases/case-1/chains/visualization", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	stats := body["stats"].(map[string]any)
	assert.Equal(t, float64(1), stats["chainCount"])
	assert.Equal(t, float64(1), stats["nodeCount"])
	assert.Equal(t, float64(1), stats["edgeCount"])

	edges := body["edges"].([]any)
	require.Len(t, edges, 1)
	assert.Equal(t, "90%", edges[0].(map[string]any)["label"])
}

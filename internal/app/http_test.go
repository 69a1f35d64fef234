package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"easel/api/internal/canvas"
)

func newTestHandler(env *testEnv) http.Handler {
	return NewHTTPServer(env.service, "*").Handler()
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(target); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	handler := newTestHandler(newTestEnv())

	rec := doJSON(t, handler, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestReadyEndpoint(t *testing.T) {
	env := newTestEnv()
	handler := newTestHandler(env)

	rec := doJSON(t, handler, http.MethodGet, "/api/ready", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	env.store.pingFn = func(context.Context) error { return errors.New("db down") }
	rec = doJSON(t, handler, http.MethodGet, "/api/ready", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when the database is down, got %d", rec.Code)
	}
}

func TestCreateAndGetCanvas(t *testing.T) {
	handler := newTestHandler(newTestEnv())

	rec := doJSON(t, handler, http.MethodPost, "/api/canvases", map[string]any{"title": "board"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created CanvasSummary
	decodeResponse(t, rec, &created)
	if created.ID == "" || created.Title != "board" {
		t.Fatalf("unexpected summary: %+v", created)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/canvases/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestGetCanvasNotFoundResponse(t *testing.T) {
	handler := newTestHandler(newTestEnv())

	rec := doJSON(t, handler, http.MethodGet, "/api/canvases/cvs_missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var body map[string]any
	decodeResponse(t, rec, &body)
	if body["code"] != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND code, got %v", body["code"])
	}
}

func TestSubmitTransactionsEndpoint(t *testing.T) {
	env := newTestEnv()
	handler := newTestHandler(env)

	summary, _ := env.service.CreateCanvas(context.Background(), "txs")
	tx := addNodeTx("tx1", 10, canvas.Node{ID: "n1"})

	rec := doJSON(t, handler, http.MethodPost,
		fmt.Sprintf("/api/canvases/%s/transactions", summary.ID),
		map[string]any{"transactions": []canvas.Transaction{tx}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var state canvas.State
	decodeResponse(t, rec, &state)
	if len(state.Transactions) != 1 || state.Transactions[0].TxID != "tx1" {
		t.Errorf("unexpected state log: %+v", state.Transactions)
	}
}

func TestSubmitTransactionsEndpointRejectsMissingTxID(t *testing.T) {
	env := newTestEnv()
	handler := newTestHandler(env)

	summary, _ := env.service.CreateCanvas(context.Background(), "bad")
	rec := doJSON(t, handler, http.MethodPost,
		fmt.Sprintf("/api/canvases/%s/transactions", summary.ID),
		map[string]any{"transactions": []canvas.Transaction{{CreatedAt: 10}}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body map[string]any
	decodeResponse(t, rec, &body)
	if body["code"] != "INVALID_TRANSACTION" {
		t.Errorf("expected INVALID_TRANSACTION code, got %v", body["code"])
	}
}

func TestMergeEndpointVersionConflict(t *testing.T) {
	env := newTestEnv()
	handler := newTestHandler(env)

	summary, _ := env.service.CreateCanvas(context.Background(), "diverged")
	client := canvas.NewEmptyState()

	rec := doJSON(t, handler, http.MethodPost,
		fmt.Sprintf("/api/canvases/%s/merge", summary.ID),
		map[string]any{"state": client})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Code    string `json:"code"`
		Details struct {
			Kind          string `json:"kind"`
			LocalVersion  string `json:"localVersion"`
			RemoteVersion string `json:"remoteVersion"`
		} `json:"details"`
	}
	decodeResponse(t, rec, &body)
	if body.Code != "VERSION_CONFLICT" {
		t.Errorf("expected VERSION_CONFLICT code, got %s", body.Code)
	}
	if body.Details.Kind != string(canvas.ConflictVersion) {
		t.Errorf("expected version kind, got %s", body.Details.Kind)
	}
	if body.Details.LocalVersion != summary.Version || body.Details.RemoteVersion != client.Version {
		t.Errorf("conflict details must carry both version tokens, got %+v", body.Details)
	}
}

func TestMergeEndpointObjectConflict(t *testing.T) {
	env := newTestEnv()
	handler := newTestHandler(env)
	ctx := context.Background()

	summary, _ := env.service.CreateCanvas(ctx, "contended")
	serverState, _ := env.service.SubmitTransactions(ctx, summary.ID, []canvas.Transaction{
		addNodeTx("tx-server", 10, canvas.Node{ID: "n1", Kind: "note"}),
	})

	client := serverState
	client.Transactions = []canvas.Transaction{
		addNodeTx("tx-client", 20, canvas.Node{ID: "n1", Kind: "image"}),
	}

	rec := doJSON(t, handler, http.MethodPost,
		fmt.Sprintf("/api/canvases/%s/merge", summary.ID),
		map[string]any{"state": client})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Code    string `json:"code"`
		Details struct {
			Kind   string          `json:"kind"`
			ItemID string          `json:"itemId"`
			Local  json.RawMessage `json:"local"`
			Remote json.RawMessage `json:"remote"`
		} `json:"details"`
	}
	decodeResponse(t, rec, &body)
	if body.Code != "OBJECT_CONFLICT" {
		t.Errorf("expected OBJECT_CONFLICT code, got %s", body.Code)
	}
	if body.Details.Kind != string(canvas.ConflictNode) || body.Details.ItemID != "n1" {
		t.Errorf("expected node conflict on n1, got %+v", body.Details)
	}
	if len(body.Details.Local) == 0 || len(body.Details.Remote) == 0 {
		t.Errorf("conflict details must carry both candidate values")
	}
}

func TestMergeEndpointSuccess(t *testing.T) {
	env := newTestEnv()
	handler := newTestHandler(env)
	ctx := context.Background()

	summary, _ := env.service.CreateCanvas(ctx, "merge")
	serverState, _ := env.service.SubmitTransactions(ctx, summary.ID, []canvas.Transaction{
		addNodeTx("tx-server", 10, canvas.Node{ID: "n1"}),
	})

	client := serverState
	client.Transactions = []canvas.Transaction{
		addNodeTx("tx-client", 20, canvas.Node{ID: "n2"}),
	}

	rec := doJSON(t, handler, http.MethodPost,
		fmt.Sprintf("/api/canvases/%s/merge", summary.ID),
		map[string]any{"state": client})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var merged canvas.State
	decodeResponse(t, rec, &merged)
	if len(merged.Transactions) != 2 {
		t.Errorf("expected merged log of 2, got %d", len(merged.Transactions))
	}
}

func TestUnknownRoute(t *testing.T) {
	handler := newTestHandler(newTestEnv())

	rec := doJSON(t, handler, http.MethodGet, "/api/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestOptionsPreflight(t *testing.T) {
	handler := newTestHandler(newTestEnv())

	rec := doJSON(t, handler, http.MethodOptions, "/api/canvases", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("expected CORS origin header")
	}
}

func TestRequestIDPassthrough(t *testing.T) {
	handler := newTestHandler(newTestEnv())

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "req-123" {
		t.Errorf("expected request id echoed back, got %q", got)
	}
}

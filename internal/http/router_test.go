package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	httptransport "rideflow/internal/http"
	"rideflow/internal/modules/pricing"
	"rideflow/internal/modules/quote"
	"rideflow/internal/modules/routes"
	"rideflow/internal/modules/search"
	"rideflow/internal/modules/session"
	"rideflow/internal/types"
)

type stubFetcher struct{}

func (stubFetcher) Fetch(_ context.Context, key types.RouteKey) (routes.Bundle, error) {
	return routes.Bundle{
		Key:     key,
		Primary: types.RouteFacts{DistanceMeters: 8000, DurationSeconds: 1200},
		Alternatives: []types.AlternativeCandidate{
			{Location: "Forum Mall Gate 2", Route: types.RouteFacts{DistanceMeters: 6000, DurationSeconds: 900}},
		},
	}, nil
}

type stubLookup struct{}

func (stubLookup) Search(_ context.Context, text string) ([]types.Suggestion, error) {
	return []types.Suggestion{{ID: "p1", Title: text + " Junction"}}, nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	pricer := pricing.NewService(nil, time.UTC, nil)
	m := session.NewManager(session.Deps{
		Fetcher:       stubFetcher{},
		Pricer:        pricer,
		Lookup:        stubLookup{},
		QuoteOptions:  quote.Options{RefreshInterval: time.Hour},
		SearchOptions: search.Options{Debounce: 5 * time.Millisecond},
		IdleTimeout:   time.Minute,
	}, zap.NewNop())
	t.Cleanup(m.Close)
	return httptransport.NewRouter(httptransport.RouterDeps{Sessions: m, Pricing: pricer, Log: zap.NewNop()})
}

func doRequest(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func createSession(t *testing.T, r http.Handler) string {
	t.Helper()
	w := doRequest(r, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	resp := decode[map[string]string](t, w)
	require.NotEmpty(t, resp["session_id"])
	return resp["session_id"]
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)
	w := doRequest(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestPrice_Estimate(t *testing.T) {
	r := newTestRouter(t)
	w := doRequest(r, http.MethodPost, "/api/price", map[string]any{
		"distance_meters":  8000,
		"duration_seconds": 1200,
		"at":               "2026-02-10T12:00:00Z",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Min       types.Money      `json:"min"`
		Max       types.Money      `json:"max"`
		Peak      bool             `json:"peak"`
		Night     bool             `json:"night"`
		Breakdown map[string]int64 `json:"breakdown"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, types.Money{Amount: 158, Currency: "INR"}, resp.Min)
	assert.Equal(t, types.Money{Amount: 174, Currency: "INR"}, resp.Max)
	assert.False(t, resp.Peak)
	assert.False(t, resp.Night)
	assert.Equal(t, int64(166), resp.Breakdown["total"])
}

func TestPrice_RejectsBadInput(t *testing.T) {
	r := newTestRouter(t)

	w := doRequest(r, http.MethodPost, "/api/price", map[string]any{"distance_meters": -1, "duration_seconds": 60})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodPost, "/api/price", map[string]any{"distance_meters": 100})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSession_QuoteFlow(t *testing.T) {
	r := newTestRouter(t)
	id := createSession(t, r)

	w := doRequest(r, http.MethodPut, "/api/sessions/"+id+"/route", map[string]string{
		"pickup": "MG Road", "dropoff": "Koramangala",
	})
	require.Equal(t, http.StatusOK, w.Code)
	snap := decode[quote.Snapshot](t, w)
	assert.Equal(t, types.NewRouteKey("MG Road", "Koramangala"), snap.Key)

	w = doRequest(r, http.MethodGet, "/api/sessions/"+id+"/quote?wait=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	snap = decode[quote.Snapshot](t, w)
	require.Equal(t, quote.StateReady, snap.State)
	require.NotNil(t, snap.Quote)
	require.Len(t, snap.Quote.Alternatives, 1)
	assert.Greater(t, snap.Quote.Alternatives[0].Savings, int64(0))

	w = doRequest(r, http.MethodPost, "/api/sessions/"+id+"/quote/alternative", map[string]string{"location": "Forum Mall Gate 2"})
	require.Equal(t, http.StatusOK, w.Code)
	sel := decode[quote.Selection](t, w)
	assert.Equal(t, "Forum Mall Gate 2", sel.Location)
	assert.GreaterOrEqual(t, sel.Price.Min, int64(50))

	w = doRequest(r, http.MethodPost, "/api/sessions/"+id+"/quote/alternative", map[string]string{"location": "Nowhere"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(r, http.MethodPost, "/api/sessions/"+id+"/quote/refresh", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = doRequest(r, http.MethodDelete, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = doRequest(r, http.MethodGet, "/api/sessions/"+id+"/quote", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSession_PlaceTextLimit(t *testing.T) {
	atLimit := strings.Repeat("x", types.MaxPlaceQueryLen)
	overLimit := strings.Repeat("x", types.MaxPlaceQueryLen+1)
	multibyte := strings.Repeat("ಬ", types.MaxPlaceQueryLen)

	tests := []struct {
		name string
		path string
		body map[string]string
		want int
	}{
		{"route at limit", "/route", map[string]string{"pickup": atLimit, "dropoff": "Koramangala"}, http.StatusOK},
		{"route multibyte at limit", "/route", map[string]string{"pickup": "MG Road", "dropoff": multibyte}, http.StatusOK},
		{"route pickup over limit", "/route", map[string]string{"pickup": overLimit, "dropoff": "Koramangala"}, http.StatusBadRequest},
		{"route dropoff over limit", "/route", map[string]string{"pickup": "MG Road", "dropoff": overLimit + "ಬ"}, http.StatusBadRequest},
		{"search at limit", "/search/pickup", map[string]string{"query": atLimit}, http.StatusOK},
		{"search over limit", "/search/dropoff", map[string]string{"query": overLimit}, http.StatusBadRequest},
	}
	r := newTestRouter(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := createSession(t, r)
			w := doRequest(r, http.MethodPut, "/api/sessions/"+id+tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestRequestBodyLimit(t *testing.T) {
	r := newTestRouter(t)
	id := createSession(t, r)

	w := doRequest(r, http.MethodPut, "/api/sessions/"+id+"/route", map[string]string{
		"pickup": strings.Repeat("x", 5<<20), "dropoff": "Koramangala",
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = doRequest(r, http.MethodGet, "/api/sessions/"+id+"/quote", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[quote.Snapshot](t, w).Key.Empty())
}

func TestSession_AlternativeWithoutQuote(t *testing.T) {
	r := newTestRouter(t)
	id := createSession(t, r)

	w := doRequest(r, http.MethodPost, "/api/sessions/"+id+"/quote/alternative", map[string]string{"location": "Forum Mall Gate 2"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSession_BadIDs(t *testing.T) {
	r := newTestRouter(t)

	w := doRequest(r, http.MethodGet, "/api/sessions/not-a-uuid/quote", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodGet, "/api/sessions/6f1c1a52-8a7e-4c55-9a55-1f0f3c2b9d11/quote", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	id := createSession(t, r)
	w = doRequest(r, http.MethodGet, "/api/sessions/"+id+"/search/stopover", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearch_SelectFillsRoute(t *testing.T) {
	r := newTestRouter(t)
	id := createSession(t, r)
	base := "/api/sessions/" + id + "/search/pickup"

	w := doRequest(r, http.MethodPut, base, map[string]string{"query": "Silk Board"})
	require.Equal(t, http.StatusOK, w.Code)
	st := decode[search.State](t, w)
	assert.Equal(t, "Silk Board", st.Query)

	require.Eventually(t, func() bool {
		w := doRequest(r, http.MethodGet, base, nil)
		return len(decode[search.State](t, w).Suggestions) == 1
	}, time.Second, 5*time.Millisecond)

	w = doRequest(r, http.MethodPost, base+"/blur", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[search.State](t, w).IsOpen)

	w = doRequest(r, http.MethodPost, base+"/focus", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[search.State](t, w).IsOpen)

	w = doRequest(r, http.MethodPost, base+"/select", map[string]string{"id": "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(r, http.MethodPost, base+"/select", map[string]string{"id": "p1"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Suggestion types.Suggestion `json:"suggestion"`
		Quote      quote.Snapshot   `json:"quote"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Silk Board Junction", resp.Suggestion.Title)
	assert.Equal(t, "Silk Board Junction", resp.Quote.Key.Pickup)
	assert.Equal(t, quote.StateIdle, resp.Quote.State)
}

func TestStream_PushesSnapshots(t *testing.T) {
	r := newTestRouter(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	id := createSession(t, r)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sessions/" + id + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var snap quote.Snapshot
	require.NoError(t, conn.ReadJSON(&snap))
	assert.Equal(t, quote.StateIdle, snap.State)

	w := doRequest(r, http.MethodPut, "/api/sessions/"+id+"/route", map[string]string{
		"pickup": "MG Road", "dropoff": "Koramangala",
	})
	require.Equal(t, http.StatusOK, w.Code)

	for snap.State != quote.StateReady {
		require.NoError(t, conn.ReadJSON(&snap))
	}
	require.NotNil(t, snap.Quote)
	assert.Equal(t, "Koramangala", snap.Quote.Key.Dropoff)

	w = doRequest(r, http.MethodDelete, "/api/sessions/"+id, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

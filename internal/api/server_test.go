package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tixly/tixly/internal/config"
	"github.com/tixly/tixly/internal/contracts"
	"github.com/tixly/tixly/internal/metrics"
	"github.com/tixly/tixly/internal/profile"
	"github.com/tixly/tixly/internal/session"
	"github.com/tixly/tixly/internal/storage"
	"github.com/tixly/tixly/internal/wallet"
	apperrors "github.com/tixly/tixly/pkg/errors"
	"github.com/tixly/tixly/pkg/types"
	"github.com/tixly/tixly/tests/mocks"
)

type testServer struct {
	handler  http.Handler
	sessions *session.Manager
	store    *mocks.MockRecordStore
}

func newTestServer(t *testing.T, cfg config.ServerConfig) *testServer {
	t.Helper()

	m := metrics.New()
	store := mocks.NewMockRecordStore()
	sessions, err := session.New(session.Options{
		LocalKey:    wallet.NewLocalKeyStrategy(store, nil, ""),
		Store:       store,
		MockEnabled: true,
		Metrics:     m,
	})
	require.NoError(t, err)

	profiles := profile.NewService(storage.NewProfileStore(storage.NewMemory()), sessions)
	srv := NewServer(cfg, Deps{
		Sessions:  sessions,
		Profiles:  profiles,
		Contracts: contracts.NewService(nil, contracts.Addresses{}, contracts.Options{Metrics: m}),
		Metrics:   m.Handler(),
	}, 0)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	return &testServer{handler: srv.Handler(), sessions: sessions, store: store}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, r)
	req.RemoteAddr = "127.0.0.1:50000"
	if r != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) connectMock(t *testing.T) types.Session {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/v1/session/connect", ConnectRequest{Strategy: "mock"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var s types.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	return s
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apperrors.AppError {
	t.Helper()
	var e apperrors.AppError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e), rec.Body.String())
	return e
}

func defaultConfig() config.ServerConfig {
	return config.ServerConfig{Host: "127.0.0.1", Port: 0}
}

func TestServer_Plumbing(t *testing.T) {
	ts := newTestServer(t, defaultConfig())

	t.Run("health", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	})

	t.Run("request id is echoed or generated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, req)
		assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))

		rec = ts.do(t, http.MethodGet, "/health", nil)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})

	t.Run("unknown route", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/v1/nope", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, apperrors.ErrCodeNotFound, decodeError(t, rec).Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := ts.do(t, http.MethodPatch, "/v1/session", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("metrics", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/metrics", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "tixly_session_state")
	})
}

func TestServer_SessionLifecycle(t *testing.T) {
	ts := newTestServer(t, defaultConfig())

	rec := ts.do(t, http.MethodGet, "/v1/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var s types.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	assert.Equal(t, types.StatusDisconnected, s.Status)

	s = ts.connectMock(t)
	assert.Equal(t, types.StatusConnected, s.Status)
	assert.Equal(t, wallet.MockAddress.Hex(), s.Address)
	assert.Equal(t, types.StrategyMock, s.Strategy)
	assert.True(t, s.ReadOnly)
	assert.Equal(t, "0", s.Balance)

	rec = ts.do(t, http.MethodPost, "/v1/session/balance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"balance":"0"}`, rec.Body.String())

	rec = ts.do(t, http.MethodDelete, "/v1/session/connect", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"cancelled":false}`, rec.Body.String())

	rec = ts.do(t, http.MethodDelete, "/v1/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	assert.Equal(t, types.StatusDisconnected, s.Status)
	assert.Empty(t, s.Address)

	rec = ts.do(t, http.MethodPost, "/v1/session/balance", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, apperrors.ErrCodeNotConnected, decodeError(t, rec).Code)
}

func TestServer_ConnectValidation(t *testing.T) {
	ts := newTestServer(t, defaultConfig())

	tests := []struct {
		name string
		body interface{}
		code int
	}{
		{"unknown strategy", ConnectRequest{Strategy: "ledger"}, http.StatusBadRequest},
		{"unknown field", `{"strategy":"mock","extra":1}`, http.StatusBadRequest},
		{"empty body", nil, http.StatusBadRequest},
		{"two objects", `{"strategy":"mock"}{"strategy":"mock"}`, http.StatusBadRequest},
		{"no chain for external", ConnectRequest{Strategy: "external_wallet"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/v1/session/connect", tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			assert.Equal(t, apperrors.ErrCodeInvalidInput, decodeError(t, rec).Code)
		})
	}

	assert.Equal(t, types.StatusDisconnected, ts.sessions.Snapshot().Status)
}

func TestServer_ImportWithoutChain(t *testing.T) {
	ts := newTestServer(t, defaultConfig())

	rec := ts.do(t, http.MethodPost, "/v1/session/import", session.ImportRequest{
		PrivateKey: "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code, rec.Body.String())
	assert.Equal(t, apperrors.ErrCodeNetworkError, decodeError(t, rec).Code)
	assert.Nil(t, ts.store.Record())

	rec = ts.do(t, http.MethodPost, "/v1/session/import", session.ImportRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Profile(t *testing.T) {
	ts := newTestServer(t, defaultConfig())

	t.Run("register requires a session", func(t *testing.T) {
		rec := ts.do(t, http.MethodPut, "/v1/profile", profile.RegisterRequest{Name: "Ada", Email: "ada@example.com"})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, apperrors.ErrCodeNotConnected, decodeError(t, rec).Code)
	})

	ts.connectMock(t)

	t.Run("register then read", func(t *testing.T) {
		rec := ts.do(t, http.MethodPut, "/v1/profile", profile.RegisterRequest{Name: " Ada ", Email: "ada@example.com"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = ts.do(t, http.MethodGet, "/v1/profile", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var st profile.Status
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
		assert.True(t, st.Registered)
		assert.True(t, st.Connected)
		require.NotNil(t, st.Profile)
		assert.Equal(t, "Ada", st.Profile.Name)
	})

	t.Run("invalid email", func(t *testing.T) {
		rec := ts.do(t, http.MethodPut, "/v1/profile", profile.RegisterRequest{Name: "Ada", Email: "nope"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("update", func(t *testing.T) {
		rec := ts.do(t, http.MethodPatch, "/v1/profile", map[string]string{"name": "Grace"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var p types.UserProfile
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
		assert.Equal(t, "Grace", p.Name)
		assert.Equal(t, "ada@example.com", p.Email)
	})

	t.Run("logout", func(t *testing.T) {
		rec := ts.do(t, http.MethodDelete, "/v1/profile", nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = ts.do(t, http.MethodGet, "/v1/profile", nil)
		var st profile.Status
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
		assert.False(t, st.Registered)
	})
}

func TestServer_Events(t *testing.T) {
	ts := newTestServer(t, defaultConfig())

	t.Run("featured", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/v1/events", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var out struct {
			Events []types.Event `json:"events"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		ids := make([]string, 0, len(out.Events))
		for _, e := range out.Events {
			ids = append(ids, e.ID)
		}
		assert.Equal(t, []string{"1", "2", "4"}, ids)
	})

	t.Run("by category with count", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/v1/events?category=4&count=1", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var out struct {
			Events []types.Event `json:"events"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		require.Len(t, out.Events, 1)
		assert.Equal(t, types.CategoryBusiness, out.Events[0].Category)
	})

	t.Run("bad query", func(t *testing.T) {
		for _, q := range []string{"?count=0", "?count=abc", "?count=1000", "?category=9", "?category=-1"} {
			rec := ts.do(t, http.MethodGet, "/v1/events"+q, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		}
	})

	t.Run("single event", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/v1/events/1", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var e types.Event
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
		assert.Equal(t, "Summer Music Festival", e.Name)
		assert.Equal(t, "0.05", e.Price)

		rec = ts.do(t, http.MethodGet, "/v1/events/99", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = ts.do(t, http.MethodGet, "/v1/events/abc", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestServer_SessionScopedRoutes(t *testing.T) {
	ts := newTestServer(t, defaultConfig())

	t.Run("require a session", func(t *testing.T) {
		for _, tc := range []struct{ method, path string }{
			{http.MethodGet, "/v1/tickets"},
			{http.MethodGet, "/v1/events/2/favorite"},
			{http.MethodPut, "/v1/events/2/favorite"},
		} {
			rec := ts.do(t, tc.method, tc.path, nil)
			assert.Equal(t, http.StatusConflict, rec.Code, tc.path)
			assert.Equal(t, apperrors.ErrCodeNotConnected, decodeError(t, rec).Code)
		}
	})

	ts.connectMock(t)

	t.Run("tickets", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/v1/tickets", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var out struct {
			Tickets []contracts.TicketView `json:"tickets"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		require.Len(t, out.Tickets, 2)
		assert.Equal(t, "1", out.Tickets[0].EventID)
		assert.Equal(t, "2", out.Tickets[0].Count)
		require.NotNil(t, out.Tickets[0].Event)
	})

	t.Run("favorite lookup", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/v1/events/2/favorite", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"favorite":true}`, rec.Body.String())

		rec = ts.do(t, http.MethodGet, "/v1/events/3/favorite", nil)
		assert.JSONEq(t, `{"favorite":false}`, rec.Body.String())
	})

	t.Run("writes are read-only for mock", func(t *testing.T) {
		for _, tc := range []struct {
			method, path string
			body         interface{}
		}{
			{http.MethodPost, "/v1/events/1/tickets", BuyTicketsRequest{Quantity: 1}},
			{http.MethodPost, "/v1/events/1/transfers", TransferTicketsRequest{To: "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", Quantity: 1}},
			{http.MethodPut, "/v1/events/3/favorite", nil},
			{http.MethodDelete, "/v1/events/2/favorite", nil},
		} {
			rec := ts.do(t, tc.method, tc.path, tc.body)
			assert.Equal(t, http.StatusConflict, rec.Code, tc.path)
			assert.Equal(t, apperrors.ErrCodeReadOnly, decodeError(t, rec).Code, tc.path)
		}
	})
}

func TestServer_Confirm(t *testing.T) {
	ts := newTestServer(t, defaultConfig())

	rec := ts.do(t, http.MethodPost, "/v1/transactions/0x1234/confirm", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	hash := "0x" + strings.Repeat("ab", 32)
	rec = ts.do(t, http.MethodPost, "/v1/transactions/"+hash+"/confirm", map[string]string{"method": "buyTickets"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, apperrors.ErrCodeNetworkError, decodeError(t, rec).Code)
}

func TestServer_RateLimit(t *testing.T) {
	cfg := defaultConfig()
	cfg.RateLimit = true
	cfg.RateLimitRPS = 1
	cfg.RateLimitBurst = 2
	ts := newTestServer(t, cfg)

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/health", nil).Code)

	rec := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, apperrors.ErrCodeRateLimited, decodeError(t, rec).Code)
}

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/goleak"

	"github.com/talgya/vertifarm/internal/crops"
	"github.com/talgya/vertifarm/internal/economy"
	"github.com/talgya/vertifarm/internal/engine"
	"github.com/talgya/vertifarm/internal/entropy"
	"github.com/talgya/vertifarm/internal/farm"
	"github.com/talgya/vertifarm/internal/persistence"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const adminKey = "secret"

func newServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	sim, err := engine.NewSimulation(crops.Default(), engine.DefaultEconomics(), 7)
	require.NoError(t, err)
	sim.Rand = entropy.Fixed(0.5)

	s := &Server{Eng: engine.NewEngine(sim), AdminKey: adminKey}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func post(t *testing.T, ts *httptest.Server, path string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, ts.URL+path, bytes.NewReader(b))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+adminKey)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, ts *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := ts.Client().Get(ts.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestStatus(t *testing.T) {
	_, ts := newServer(t)
	resp := get(t, ts, "/api/v1/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	status := decode[map[string]any](t, resp)
	assert.Equal(t, "Vertifarm", status["name"])
	assert.Equal(t, 0.0, status["month"])
	assert.Equal(t, false, status["season_over"])
	perf := status["performance"].(map[string]any)
	assert.Equal(t, 10000.0, perf["budget"])
}

func TestCrops(t *testing.T) {
	_, ts := newServer(t)
	defs := decode[[]crops.Definition](t, get(t, ts, "/api/v1/crops"))
	require.Len(t, defs, crops.Default().Len())
	assert.Equal(t, crops.Default().Names()[0], defs[0].Name)
}

func TestAdminAuth(t *testing.T) {
	s, ts := newServer(t)

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/simulate", nil)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ = http.NewRequest(http.MethodPost, ts.URL+"/api/v1/simulate", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	s.AdminKey = ""
	resp = post(t, ts, "/api/v1/simulate", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// GET on a mixed endpoint needs no token.
	assert.Equal(t, http.StatusOK, get(t, ts, "/api/v1/environment").StatusCode)
}

func TestMethodNotAllowed(t *testing.T) {
	_, ts := newServer(t)
	assert.Equal(t, http.StatusMethodNotAllowed, get(t, ts, "/api/v1/plant").StatusCode)
}

func TestPlayThroughHarvest(t *testing.T) {
	_, ts := newServer(t)

	for _, set := range []map[string]any{
		{"level": "Level 1", "var": "L", "value": 12},
		{"level": "Level 1", "var": "W", "value": 200},
		{"level": "Level 1", "var": "N", "value": 0.2},
	} {
		resp := post(t, ts, "/api/v1/environment", set)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp := post(t, ts, "/api/v1/plant", map[string]any{"level": "Level 1", "crop": "Lettuce", "count": 10})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	planted := decode[struct {
		IDs    []farm.RecordID `json:"ids"`
		Budget float64         `json:"budget"`
	}](t, resp)
	assert.Len(t, planted.IDs, 10)
	assert.Less(t, planted.Budget, 10000.0)

	for month := 1; month <= 2; month++ {
		resp := post(t, ts, "/api/v1/simulate", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		report := decode[engine.TickReport](t, resp)
		assert.Equal(t, month, report.Month)
	}

	ledger := decode[struct {
		Records   []farm.Record      `json:"records"`
		Inventory map[string]float64 `json:"inventory"`
	}](t, get(t, ts, "/api/v1/ledger?status=harvested"))
	assert.Len(t, ledger.Records, 10)
	assert.Greater(t, ledger.Inventory["Lettuce"], 0.0)

	resp = post(t, ts, "/api/v1/market/customers", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	customers := decode[[]economy.Customer](t, resp)
	require.NotEmpty(t, customers)

	resp = post(t, ts, "/api/v1/market/sellall", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := decode[economy.Summary](t, resp)
	assert.Equal(t, len(customers), summary.Outcomes[economy.Accepted]+summary.Outcomes[economy.Skipped])

	resp = post(t, ts, "/api/v1/remove", map[string]any{"status": "harvested"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	removed := decode[map[string][]farm.RecordID](t, resp)
	assert.Len(t, removed["removed"], 10)

	reports := decode[[]engine.TickReport](t, get(t, ts, "/api/v1/reports?limit=1"))
	require.Len(t, reports, 1)
	assert.Equal(t, 2, reports[0].Month)
}

func TestStatusFiltersIgnoreCase(t *testing.T) {
	_, ts := newServer(t)
	resp := post(t, ts, "/api/v1/plant", map[string]any{"level": "Level 1", "crop": "Lettuce", "count": 4})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	type ledgerView struct {
		Records []farm.Record `json:"records"`
	}
	for _, q := range []string{"growing", "Growing", "GROWING"} {
		resp := get(t, ts, "/api/v1/ledger?status="+q)
		require.Equal(t, http.StatusOK, resp.StatusCode, q)
		assert.Len(t, decode[ledgerView](t, resp).Records, 4, q)
	}
	assert.Empty(t, decode[ledgerView](t, get(t, ts, "/api/v1/ledger?status=dead")).Records)
	assert.Equal(t, http.StatusBadRequest, get(t, ts, "/api/v1/ledger?status=wilted").StatusCode)

	for _, st := range []string{"harvested", "dead", "Harvested", "DEAD", "terminal", "Terminal"} {
		resp := post(t, ts, "/api/v1/remove", map[string]any{"status": st})
		assert.Equal(t, http.StatusOK, resp.StatusCode, st)
	}
	assert.Equal(t, http.StatusBadRequest, post(t, ts, "/api/v1/remove", map[string]any{"status": "growing"}).StatusCode)
	assert.Equal(t, http.StatusBadRequest, post(t, ts, "/api/v1/remove", map[string]any{"status": "wilted"}).StatusCode)
	assert.Len(t, decode[ledgerView](t, get(t, ts, "/api/v1/ledger")).Records, 4)
}

func TestErrorMapping(t *testing.T) {
	_, ts := newServer(t)

	resp := post(t, ts, "/api/v1/plant", map[string]any{"level": "Level 9", "crop": "Lettuce", "count": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, ts, "/api/v1/plant", map[string]any{"level": "Level 1", "crop": "Lettuce", "count": 1_000_000})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = post(t, ts, "/api/v1/market/offer", map[string]any{"customer": 1, "price": 10})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = post(t, ts, "/api/v1/environment", map[string]any{"var": "pH", "value": 7})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, ts, "/api/v1/remove", map[string]any{"ids": []int{42}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, ts, "/api/v1/market/customers", nil)
	customers := decode[[]economy.Customer](t, resp)
	require.GreaterOrEqual(t, len(customers), 2)
	resp = post(t, ts, "/api/v1/market/skip", map[string]any{"customer": customers[1].ID})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = get(t, ts, "/api/v1/reports?limit=zero")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNotes(t *testing.T) {
	s, ts := newServer(t)
	require.NoError(t, s.Eng.Do(func(sim *engine.Simulation) error {
		sim.Economics.RequireNotes = true
		return nil
	}))

	assert.Equal(t, http.StatusConflict, post(t, ts, "/api/v1/simulate", nil).StatusCode)

	resp := post(t, ts, "/api/v1/notes", map[string]any{"notes": strings.Repeat("x", engine.MaxNotesLen+1)})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, ts, "/api/v1/notes", map[string]any{"notes": "testing the light setpoint"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	notes := decode[map[string]any](t, get(t, ts, "/api/v1/notes"))
	assert.Equal(t, "testing the light setpoint", notes["notes"])
	assert.Equal(t, true, notes["required"])

	resp = post(t, ts, "/api/v1/simulate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "testing the light setpoint", decode[engine.TickReport](t, resp).Notes)
	assert.Equal(t, "", decode[map[string]any](t, get(t, ts, "/api/v1/notes"))["notes"])
}

func TestSeasonOverIsConflict(t *testing.T) {
	s, ts := newServer(t)
	require.NoError(t, s.Eng.Do(func(sim *engine.Simulation) error {
		sim.Economics.MaxMonths = 1
		return nil
	}))
	assert.Equal(t, http.StatusOK, post(t, ts, "/api/v1/simulate", nil).StatusCode)
	assert.Equal(t, http.StatusConflict, post(t, ts, "/api/v1/simulate", nil).StatusCode)
}

func TestSnapshot(t *testing.T) {
	s, ts := newServer(t)
	assert.Equal(t, http.StatusServiceUnavailable, post(t, ts, "/api/v1/snapshot", nil).StatusCode)

	db, err := persistence.Open(t.TempDir() + "/farm.db")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s.DB = db

	assert.Equal(t, http.StatusOK, post(t, ts, "/api/v1/snapshot", nil).StatusCode)
	assert.True(t, db.HasFarmState())
}

func TestExport(t *testing.T) {
	_, ts := newServer(t)
	resp := get(t, ts, "/api/v1/export")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, xlsxContentType, resp.Header.Get("Content-Type"))

	f, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer f.Close()
	assert.Contains(t, f.GetSheetList(), "Ledger")
}

func TestCORS(t *testing.T) {
	s, _ := newServer(t)
	s.CORSOrigins = []string{"https://farm.example.com"}
	h := s.Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/status", nil)
	req.Header.Set("Origin", "https://farm.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://farm.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set("Origin", "https://elsewhere.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAdminRateLimit(t *testing.T) {
	s, _ := newServer(t)
	s.AdminRate = 2
	h := s.Handler()

	codes := make([]int, 3)
	for i := range codes {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/market/customers", nil)
		req.Header.Set("Authorization", "Bearer "+adminKey)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes[i] = rec.Code
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestStream(t *testing.T) {
	s, ts := newServer(t)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/stream"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	var hello Message
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "hello", hello.Type)
	assert.Equal(t, 0, hello.Month)

	require.Eventually(t, func() bool { return s.Hub.Clients() == 1 }, time.Second, 10*time.Millisecond)
	s.Hub.Broadcast(Message{Type: "month", Month: 1})

	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "month", msg.Type)
	assert.Equal(t, 1, msg.Month)

	conn.Close()
	require.Eventually(t, func() bool { return s.Hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubReserveIsBounded(t *testing.T) {
	h := NewHub()
	var (
		wg      sync.WaitGroup
		granted atomic.Int32
	)
	for range 4 * maxStreamConns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if h.reserve() {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(maxStreamConns), granted.Load())

	h.admit(nil)
	assert.True(t, h.reserve())
	assert.False(t, h.reserve())
}

func TestStreamConnectionCap(t *testing.T) {
	s, ts := newServer(t)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/stream"

	var conns []*websocket.Conn
	for range maxStreamConns {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		var hello Message
		require.NoError(t, conn.ReadJSON(&hello))
		conns = append(conns, conn)
	}

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	for _, conn := range conns {
		conn.Close()
	}
	require.Eventually(t, func() bool { return s.Hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

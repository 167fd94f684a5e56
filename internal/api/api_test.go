package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/polycalc/internal/config"
	"github.com/udisondev/polycalc/internal/data"
	"github.com/udisondev/polycalc/internal/db"
	"github.com/udisondev/polycalc/internal/model"
	"github.com/udisondev/polycalc/internal/scenario"
	"github.com/udisondev/polycalc/internal/testutil"
)

var testCatalog = data.MustLoadCatalog()

// memoryStore is an in-memory ScenarioStore.
type memoryStore struct {
	mu    sync.Mutex
	byID  map[string]scenario.Scenario
	order []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{byID: make(map[string]scenario.Scenario)}
}

func (m *memoryStore) Save(_ context.Context, sc scenario.Scenario) (string, error) {
	code, err := scenario.Code(sc)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[code]; !ok {
		m.order = append(m.order, code)
	}
	m.byID[code] = sc
	return code, nil
}

func (m *memoryStore) ListRecent(_ context.Context, limit int) ([]db.ScenarioInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.ScenarioInfo
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		code := m.order[i]
		out = append(out, db.ScenarioInfo{Code: code, VersionID: m.byID[code].VersionID})
	}
	return out, nil
}

func (m *memoryStore) Get(_ context.Context, code string) (*scenario.Scenario, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sc, ok := m.byID[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", db.ErrScenarioNotFound, code)
	}
	return &sc, nil
}

func newTestServer(t *testing.T, opts ...ServerOption) (*Server, *httptest.Server) {
	t.Helper()
	srv := NewServer(config.DefaultServer(), testCatalog, opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	resp, err := http.Post(url, "application/json", &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type unitJSON struct {
	ClassID string `json:"classId"`
	Health  int    `json:"health"`
	IsDead  bool   `json:"isDead"`
}

type cellJSON struct {
	Attacker unitJSON `json:"attacker"`
	Defender unitJSON `json:"defender"`
	Fought   bool     `json:"fought"`
	WasDead  string   `json:"wasDead"`
}

type stateJSON struct {
	VersionID string `json:"versionId"`
	Attackers []struct {
		Unit   unitJSON          `json:"unit"`
		Fights []json.RawMessage `json:"fights"`
	} `json:"attackers"`
	Defenders []unitJSON `json:"defenders"`
	Results   struct {
		Cells [][]cellJSON `json:"cells"`
	} `json:"results"`
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t)

	var body map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/healthz", &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["store"])
}

func TestVersions(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t)

	var versions []versionView
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/versions", &versions))
	require.Len(t, versions, len(testCatalog.Versions()))

	latest := 0
	for _, v := range versions {
		if v.Latest {
			latest++
			assert.Equal(t, testCatalog.Latest().ID, v.ID)
		}
	}
	assert.Equal(t, 1, latest)
}

func TestUnits(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t)

	t.Run("all", func(t *testing.T) {
		var classes []classView
		require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/versions/diplomacy/units", &classes))
		assert.Len(t, classes, len(testCatalog.Version("diplomacy").Classes()))
	})

	t.Run("tag filter", func(t *testing.T) {
		var classes []classView
		require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/versions/aquarion-rework/units?tags=aquarion", &classes))
		require.NotEmpty(t, classes)
		for _, c := range classes {
			assert.Contains(t, c.Tags, model.TagAquarion, c.ID)
		}
	})

	t.Run("unknown version", func(t *testing.T) {
		var e errorResponse
		assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/versions/nope/units", &e))
		assert.Contains(t, e.Error, "nope")
	})
}

func TestUnits_ConfiguredTribes(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultServer()
	cfg.Tribes = []string{"naval"}
	ts := httptest.NewServer(NewServer(cfg, testCatalog).Handler())
	t.Cleanup(ts.Close)

	var classes []classView
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/versions/ocean/units", &classes))
	require.NotEmpty(t, classes)
	for _, c := range classes {
		assert.Contains(t, c.Tags, model.TagNaval, c.ID)
	}
}

func TestDuel(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t)

	type duelJSON struct {
		VersionID  string          `json:"versionId"`
		Conditions map[string]bool `json:"conditions"`
		After      struct {
			Attacker unitJSON `json:"attacker"`
			Defender unitJSON `json:"defender"`
		} `json:"after"`
		Skipped string `json:"skipped"`
	}

	tests := []struct {
		name         string
		body         string
		wantAttacker int
		wantDefender int
		wantSkipped  bool
	}{
		{
			name:         "factory defaults",
			body:         `{"versionId":"diplomacy","attacker":{"classId":"warrior"},"defender":{"classId":"warrior"}}`,
			wantAttacker: 5,
			wantDefender: 5,
		},
		{
			name:         "ranged archer",
			body:         `{"versionId":"diplomacy","attacker":{"classId":"archer"},"defender":{"classId":"warrior"}}`,
			wantAttacker: 10,
			wantDefender: 5,
		},
		{
			name:         "explicit conditions switch retaliation back on",
			body:         `{"versionId":"diplomacy","attacker":{"classId":"archer"},"defender":{"classId":"warrior"},"conditions":["isBasic"]}`,
			wantAttacker: 5,
			wantDefender: 5,
		},
		{
			name:         "passive cell does not fight",
			body:         `{"versionId":"diplomacy","attacker":{"classId":"warrior"},"defender":{"classId":"warrior"},"passive":true}`,
			wantAttacker: 10,
			wantDefender: 10,
			wantSkipped:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got duelJSON
			require.Equal(t, http.StatusOK, postJSON(t, ts.URL+"/api/duel", tt.body, &got))
			assert.Equal(t, "diplomacy", got.VersionID)
			assert.Equal(t, tt.wantAttacker, got.After.Attacker.Health)
			assert.Equal(t, tt.wantDefender, got.After.Defender.Health)
			assert.Equal(t, tt.wantSkipped, got.Skipped != "")
		})
	}

	t.Run("malformed", func(t *testing.T) {
		var e errorResponse
		assert.Equal(t, http.StatusBadRequest, postJSON(t, ts.URL+"/api/duel", `{"attacker":`, &e))
		assert.Equal(t, http.StatusBadRequest, postJSON(t, ts.URL+"/api/duel", `{"bogus":1}`, &e))
	})
}

func TestBrawl(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t)

	var view struct {
		Scenario scenario.Scenario `json:"scenario"`
		Brawl    stateJSON         `json:"brawl"`
	}
	require.Equal(t, http.StatusOK, postJSON(t, ts.URL+"/api/brawl", scenario.Example(), &view))

	assert.Equal(t, scenario.Example(), view.Scenario)
	assert.Equal(t, "aquarion-rework", view.Brawl.VersionID)
	require.Len(t, view.Brawl.Results.Cells, 3)
	assert.Equal(t, 5, view.Brawl.Results.Cells[0][0].Defender.Health)
	assert.False(t, view.Brawl.Results.Cells[1][0].Fought)
	assert.Equal(t, "defender", view.Brawl.Results.Cells[2][1].WasDead)

	t.Run("too many units", func(t *testing.T) {
		sc := scenario.Scenario{Attackers: make([]scenario.Unit, scenario.MaxUnits+1)}
		var e errorResponse
		assert.Equal(t, http.StatusBadRequest, postJSON(t, ts.URL+"/api/brawl", sc, &e))
		assert.Contains(t, e.Error, "too many units")
	})
}

func TestScenarios(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, WithStore(newMemoryStore()))

	var saved struct {
		Code string `json:"code"`
	}
	require.Equal(t, http.StatusCreated, postJSON(t, ts.URL+"/api/scenarios", scenario.Example(), &saved))
	want, err := scenario.Code(scenario.Example())
	require.NoError(t, err)
	assert.Equal(t, want, saved.Code)

	var loaded struct {
		Code     string            `json:"code"`
		Scenario scenario.Scenario `json:"scenario"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/scenarios/"+saved.Code, &loaded))
	assert.Equal(t, saved.Code, loaded.Code)
	assert.Equal(t, scenario.Example(), loaded.Scenario)

	var e errorResponse
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/scenarios/zzzzzzzzzzzz", &e))
}

func TestScenarios_List(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, WithStore(newMemoryStore()))

	first := scenario.Example()
	second := scenario.Example()
	second.VersionID = "ocean"
	for _, sc := range []scenario.Scenario{first, second} {
		require.Equal(t, http.StatusCreated, postJSON(t, ts.URL+"/api/scenarios", sc, nil))
	}

	var list []db.ScenarioInfo
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/scenarios", &list))
	require.Len(t, list, 2)
	assert.Equal(t, "ocean", list[0].VersionID, "newest first")
	assert.Equal(t, "aquarion-rework", list[1].VersionID)

	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/scenarios?limit=1", &list))
	assert.Len(t, list, 1)

	var e errorResponse
	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/scenarios?limit=x", &e))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/scenarios?limit=0", &e))
}

func TestScenarios_NoStore(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t)

	var e errorResponse
	assert.Equal(t, http.StatusServiceUnavailable, postJSON(t, ts.URL+"/api/scenarios", scenario.Example(), &e))
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, ts.URL+"/api/scenarios/abc", &e))
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, ts.URL+"/api/scenarios", &e))
}

func dialBrawl(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/brawl" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

type serverMsg struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func readState(t *testing.T, conn *websocket.Conn) stateJSON {
	t.Helper()
	var msg serverMsg
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, msgState, msg.Type, msg.Error)
	var s stateJSON
	require.NoError(t, json.Unmarshal(msg.Data, &s))
	return s
}

func TestBrawlSocket(t *testing.T) {
	t.Parallel()
	srv, ts := newTestServer(t)
	conn := dialBrawl(t, ts, "?version=ocean")

	var hello serverMsg
	require.NoError(t, conn.ReadJSON(&hello))
	require.Equal(t, msgSession, hello.Type)

	s := readState(t, conn)
	assert.Equal(t, "ocean", s.VersionID)
	require.Len(t, s.Attackers, 1)
	require.Len(t, s.Defenders, 1)
	assert.True(t, s.Results.Cells[0][0].Fought)
	assert.Equal(t, 1, srv.Sessions().Count())

	send := func(msg string) {
		t.Helper()
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
	}

	t.Run("create attacker", func(t *testing.T) {
		send(`{"type":"createUnit","isAttacker":true}`)
		s := readState(t, conn)
		assert.Len(t, s.Attackers, 2)
	})

	t.Run("toggle basic off", func(t *testing.T) {
		send(`{"type":"fightConditions","attackerIndex":0,"defenderIndex":0,"key":"isBasic"}`)
		s := readState(t, conn)
		assert.False(t, s.Results.Cells[0][0].Fought)
	})

	t.Run("edit defender", func(t *testing.T) {
		send(`{"type":"editUnit","isAttacker":false,"index":0,"unit":{"classId":"swordsman","health":4}}`)
		s := readState(t, conn)
		assert.Equal(t, "swordsman", s.Defenders[0].ClassID)
		assert.Equal(t, 4, s.Defenders[0].Health)
	})

	t.Run("out of range index keeps state", func(t *testing.T) {
		send(`{"type":"deleteUnit","isAttacker":true,"index":9}`)
		s := readState(t, conn)
		assert.Len(t, s.Attackers, 2)
	})

	t.Run("change version", func(t *testing.T) {
		send(`{"type":"units","versionId":"diplomacy"}`)
		s := readState(t, conn)
		assert.Equal(t, "diplomacy", s.VersionID)
	})

	t.Run("load scenario", func(t *testing.T) {
		raw, err := json.Marshal(map[string]any{"type": "load", "scenario": scenario.Example()})
		require.NoError(t, err)
		send(string(raw))
		s := readState(t, conn)
		assert.Equal(t, "aquarion-rework", s.VersionID)
		assert.Len(t, s.Attackers, 3)
	})

	t.Run("reset", func(t *testing.T) {
		send(`{"type":"reset"}`)
		s := readState(t, conn)
		assert.Len(t, s.Attackers, 1)
		assert.Equal(t, "aquarion-rework", s.VersionID)
	})

	t.Run("bad messages", func(t *testing.T) {
		for _, msg := range []string{
			`{"type":"dance"}`,
			`{"type":"fightConditions","key":"isFlying"}`,
			`{"type":"moveUnit","direction":2}`,
			`{"type":"units","versionId":"nope"}`,
			`{"type":"editUnit"}`,
		} {
			send(msg)
			var reply serverMsg
			require.NoError(t, conn.ReadJSON(&reply))
			assert.Equal(t, msgError, reply.Type, msg)
			assert.NotEmpty(t, reply.Error)
		}
	})
}

func TestBrawlSocket_UnitLimit(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t)
	conn := dialBrawl(t, ts, "")

	var hello serverMsg
	require.NoError(t, conn.ReadJSON(&hello))
	s := readState(t, conn)
	require.Len(t, s.Defenders, 1)

	create := `{"type":"createUnit","isAttacker":false}`
	for len(s.Defenders) < scenario.MaxUnits {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(create)))
		s = readState(t, conn)
	}

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(create)))
	var reply serverMsg
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, msgError, reply.Type)
	assert.Contains(t, reply.Error, "too many units")

	// Other side is still open, and the session keeps working.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"createUnit","isAttacker":true}`)))
	s = readState(t, conn)
	assert.Len(t, s.Attackers, 2)
	assert.Len(t, s.Defenders, scenario.MaxUnits)
}

func TestBrawlSocket_SessionLimit(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, WithSessionManager(NewSessionManager(1)))

	first := dialBrawl(t, ts, "")
	var hello serverMsg
	require.NoError(t, first.ReadJSON(&hello))

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/brawl"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestSessionManager(t *testing.T) {
	t.Parallel()

	sm := NewSessionManager(2)
	a, err := sm.Open("a", "ocean")
	require.NoError(t, err)
	_, err = sm.Open("b", "ocean")
	require.NoError(t, err)

	_, err = sm.Open("c", "ocean")
	assert.ErrorIs(t, err, ErrTooManySessions)
	assert.Equal(t, 2, sm.Count())

	assert.Equal(t, "a", sm.Get(a.ID).Remote)
	sm.Close(a.ID)
	sm.Close(a.ID)
	assert.Equal(t, 1, sm.Count())
	assert.Nil(t, sm.Get(a.ID))

	_, err = sm.Open("c", "ocean")
	assert.NoError(t, err)
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	srv := NewServer(config.DefaultServer(), testCatalog)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := testutil.ContextWithCancel(t)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx, ln) }()

	require.NoError(t, testutil.WaitForHTTPReady("http://"+ln.Addr().String()+"/api/healthz", 5*time.Second))
	assert.Equal(t, ln.Addr(), srv.Addr())

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

type failingStore struct{ *memoryStore }

func (*failingStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealthz_StoreDown(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, WithStore(&failingStore{memoryStore: newMemoryStore()}))

	var body map[string]any
	require.Equal(t, http.StatusServiceUnavailable, getJSON(t, ts.URL+"/api/healthz", &body))
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, true, body["store"])
}

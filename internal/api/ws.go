package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/udisondev/polycalc/internal/data"
	"github.com/udisondev/polycalc/internal/game/brawl"
	"github.com/udisondev/polycalc/internal/game/combat"
	"github.com/udisondev/polycalc/internal/scenario"
)

// maxMessageBytes limits one client message.
const maxMessageBytes = 64 << 10

const writeWait = time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server -> client message types.
const (
	msgSession = "session"
	msgState   = "state"
	msgError   = "error"
)

type wsMsg struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// actionMessage is a client action. Type picks the fields that matter:
//
//	createUnit      isAttacker, copyIndex
//	editUnit        isAttacker, index, unit
//	deleteUnit      isAttacker, index
//	moveUnit        index, direction (-1 | 1)
//	fightConditions attackerIndex, defenderIndex, key
//	units           versionId
//	reset           versionId (optional)
//	load            scenario
type actionMessage struct {
	Type          string             `json:"type"`
	IsAttacker    bool               `json:"isAttacker"`
	Index         int                `json:"index"`
	CopyIndex     *int               `json:"copyIndex"`
	Unit          *scenario.Unit     `json:"unit"`
	Direction     int                `json:"direction"`
	AttackerIndex int                `json:"attackerIndex"`
	DefenderIndex int                `json:"defenderIndex"`
	Key           string             `json:"key"`
	VersionID     string             `json:"versionId"`
	Scenario      *scenario.Scenario `json:"scenario"`
}

var errBadMessage = errors.New("bad message")

// toAction maps a message onto a brawl action for the current version.
func (m actionMessage) toAction(catalog *data.Catalog, version *data.Version) (brawl.Action, error) {
	switch m.Type {
	case "createUnit":
		return brawl.CreateUnit{IsAttacker: m.IsAttacker, CopyIndex: m.CopyIndex}, nil
	case "editUnit":
		if m.Unit == nil {
			return nil, fmt.Errorf("%w: editUnit without unit", errBadMessage)
		}
		return brawl.EditUnit{IsAttacker: m.IsAttacker, Index: m.Index, Unit: m.Unit.Resolve(version)}, nil
	case "deleteUnit":
		return brawl.DeleteUnit{IsAttacker: m.IsAttacker, Index: m.Index}, nil
	case "moveUnit":
		dir := brawl.Direction(m.Direction)
		if dir != brawl.Left && dir != brawl.Right {
			return nil, fmt.Errorf("%w: direction %d", errBadMessage, m.Direction)
		}
		return brawl.MoveUnit{Index: m.Index, Direction: dir}, nil
	case "fightConditions":
		key, ok := combat.ParseToggleKey(m.Key)
		if !ok {
			return nil, fmt.Errorf("%w: toggle %q", errBadMessage, m.Key)
		}
		return brawl.ToggleFight{AttackerIndex: m.AttackerIndex, DefenderIndex: m.DefenderIndex, Key: key}, nil
	case "units":
		v := catalog.Version(m.VersionID)
		if v == nil {
			return nil, fmt.Errorf("%w: unknown version %q", errBadMessage, m.VersionID)
		}
		return brawl.ChangeVersion{Version: v}, nil
	default:
		return nil, fmt.Errorf("%w: type %q", errBadMessage, m.Type)
	}
}

// brawlSession — одно websocket-соединение, владеющее одним brawl.State.
// Чтение и запись идут из одной горутины, поэтому writer всегда один.
type brawlSession struct {
	info    *SessionInfo
	conn    *websocket.Conn
	catalog *data.Catalog
	state   brawl.State
}

func (s *Server) handleBrawlSocket(w http.ResponseWriter, r *http.Request) {
	versionID := r.URL.Query().Get("version")
	if versionID == "" {
		versionID = s.cfg.DefaultVersion
	}
	version := s.catalog.ResolveVersion(versionID)

	info, err := s.sessions.Open(r.RemoteAddr, version.ID)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	defer s.sessions.Close(info.ID)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		slog.Warn("ws: upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	conn.SetReadLimit(maxMessageBytes)

	sess := &brawlSession{
		info:    info,
		conn:    conn,
		catalog: s.catalog,
		state:   brawl.New(version),
	}
	slog.Info("ws: brawl session opened", "session", info.ID, "remote", info.Remote, "version", version.ID)
	sess.run(r.Context())
	slog.Info("ws: brawl session closed", "session", info.ID)
}

func (bs *brawlSession) run(ctx context.Context) {
	done := make(chan struct{})
	defer close(done)
	defer bs.conn.Close()

	go func() {
		select {
		case <-ctx.Done():
			_ = bs.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"), time.Now().Add(writeWait))
			bs.conn.Close()
		case <-done:
		}
	}()

	if err := bs.send(wsMsg{Type: msgSession, Data: map[string]string{"id": bs.info.ID}}); err != nil {
		return
	}
	if err := bs.send(wsMsg{Type: msgState, Data: bs.state}); err != nil {
		return
	}

	for {
		var in actionMessage
		if err := bs.conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("ws: read error", "session", bs.info.ID, "err", err)
			}
			return
		}
		slog.Debug("ws: recv", "session", bs.info.ID, "type", in.Type)

		if err := bs.apply(in); err != nil {
			if err := bs.send(wsMsg{Type: msgError, Error: err.Error()}); err != nil {
				return
			}
			continue
		}
		if err := bs.send(wsMsg{Type: msgState, Data: bs.state}); err != nil {
			return
		}
	}
}

// apply updates the session state. Rejected brawl actions are not errors:
// Reduce logs them and the client gets the unchanged state.
func (bs *brawlSession) apply(in actionMessage) error {
	switch in.Type {
	case "reset":
		version := bs.state.Version
		if in.VersionID != "" {
			version = bs.catalog.ResolveVersion(in.VersionID)
		}
		bs.state = brawl.New(version)
		return nil
	case "load":
		if in.Scenario == nil {
			return fmt.Errorf("%w: load without scenario", errBadMessage)
		}
		if err := in.Scenario.Validate(); err != nil {
			return err
		}
		bs.state = scenario.Build(bs.catalog, *in.Scenario)
		return nil
	}

	if in.Type == "createUnit" {
		n := len(bs.state.Defenders)
		if in.IsAttacker {
			n = len(bs.state.Attackers)
		}
		if n >= scenario.MaxUnits {
			return fmt.Errorf("%w: side has %d units (max %d)", scenario.ErrTooManyUnits, n, scenario.MaxUnits)
		}
	}

	action, err := in.toAction(bs.catalog, bs.state.Version)
	if err != nil {
		return err
	}
	bs.state = brawl.Reduce(bs.state, action)
	return nil
}

func (bs *brawlSession) send(m wsMsg) error {
	if err := bs.conn.WriteJSON(m); err != nil {
		slog.Warn("ws: write error", "session", bs.info.ID, "err", err)
		return err
	}
	return nil
}

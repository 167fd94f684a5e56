package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/udisondev/polycalc/internal/data"
	"github.com/udisondev/polycalc/internal/db"
	"github.com/udisondev/polycalc/internal/game/brawl"
	"github.com/udisondev/polycalc/internal/game/combat"
	"github.com/udisondev/polycalc/internal/model"
	"github.com/udisondev/polycalc/internal/scenario"
)

// maxBodyBytes limits request bodies; a full 32x32 scenario fits easily.
const maxBodyBytes = 1 << 20

// maxListLimit caps ?limit= of the scenario listing.
const maxListLimit = 100

type versionView struct {
	ID     string             `json:"id"`
	GameID string             `json:"gameId"`
	Label  string             `json:"label"`
	Status data.VersionStatus `json:"status"`
	Latest bool               `json:"latest"`
}

type classView struct {
	ID       string              `json:"id"`
	ShortID  string              `json:"shortId"`
	Label    string              `json:"label"`
	Health   int                 `json:"health,omitempty"`
	Attack   float64             `json:"attack"`
	Defense  float64             `json:"defense"`
	Range    int                 `json:"range"`
	Skills   []string            `json:"skills"`
	Tags     []model.UnitTag     `json:"tags"`
	Variants []model.UnitVariant `json:"variants,omitempty"`
}

func newClassView(c *model.UnitClass) classView {
	return classView{
		ID:       c.ID,
		ShortID:  c.ShortID,
		Label:    c.Label,
		Health:   c.Health,
		Attack:   c.Attack,
		Defense:  c.Defense,
		Range:    c.Range,
		Skills:   c.Skills.Names(),
		Tags:     c.Tags,
		Variants: c.Variants,
	}
}

type duelRequest struct {
	VersionID string        `json:"versionId"`
	Attacker  scenario.Unit `json:"attacker"`
	Defender  scenario.Unit `json:"defender"`
	// Conditions lists the toggles to switch on. Nil means factory defaults.
	Conditions []string `json:"conditions"`
	Passive    bool     `json:"passive"`
}

type duelResponse struct {
	VersionID  string                 `json:"versionId"`
	Conditions combat.FightConditions `json:"conditions"`
	Before     combat.Result          `json:"before"`
	After      combat.Result          `json:"after"`
	Skipped    string                 `json:"skipped,omitempty"`
}

type scenarioView struct {
	Code     string            `json:"code,omitempty"`
	Scenario scenario.Scenario `json:"scenario"`
	Brawl    brawl.State       `json:"brawl"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("writing response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// pinger is implemented by stores backed by a connection.
type pinger interface {
	Ping(ctx context.Context) error
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if p, ok := s.store.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			slog.Warn("health check failed", "err", err)
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, map[string]any{
		"status":   status,
		"sessions": s.sessions.Count(),
		"store":    s.store != nil,
	})
}

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	latest := s.catalog.Latest()
	versions := s.catalog.Versions()

	out := make([]versionView, 0, len(versions))
	for _, v := range versions {
		out = append(out, versionView{
			ID:     v.ID,
			GameID: v.GameID,
			Label:  v.Label,
			Status: v.Status,
			Latest: v == latest,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleUnits lists classes of a version. ?tags=a,b filters by any tag;
// without it the configured tribes apply.
func (s *Server) handleUnits(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["version"]
	version := s.catalog.Version(id)
	if version == nil {
		writeError(w, http.StatusNotFound, "unknown version "+id)
		return
	}

	tags := s.cfg.Tribes
	if raw := r.URL.Query().Get("tags"); raw != "" {
		tags = strings.Split(raw, ",")
	}

	classes := version.Classes()
	if len(tags) > 0 {
		unitTags := make([]model.UnitTag, 0, len(tags))
		for _, t := range tags {
			unitTags = append(unitTags, model.UnitTag(strings.TrimSpace(t)))
		}
		classes = version.ClassesWithTags(unitTags...)
	}

	out := make([]classView, 0, len(classes))
	for _, c := range classes {
		out = append(out, newClassView(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) versionOrDefault(id string) *data.Version {
	if id == "" {
		id = s.cfg.DefaultVersion
	}
	return s.catalog.ResolveVersion(id)
}

func (s *Server) handleDuel(w http.ResponseWriter, r *http.Request) {
	var req duelRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid duel request: "+err.Error())
		return
	}

	version := s.versionOrDefault(req.VersionID)
	attacker := req.Attacker.Resolve(version)
	defender := req.Defender.Resolve(version)

	var prev *combat.FightConditions
	if req.Conditions != nil {
		fc := combat.FromKeys(req.Conditions)
		prev = &fc
	}
	conditions := combat.CreateFightConditions(attacker, defender, prev, req.Passive)

	resp := duelResponse{
		VersionID:  version.ID,
		Conditions: conditions,
		Before:     combat.Result{Attacker: attacker, Defender: defender},
		After:      combat.Fight(attacker, defender, conditions),
	}
	if err := combat.ValidateFight(attacker, defender, conditions); err != nil {
		resp.Skipped = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) decodeScenario(w http.ResponseWriter, r *http.Request) (scenario.Scenario, bool) {
	sc, err := scenario.Decode(io.LimitReader(r.Body, maxBodyBytes), scenario.FormatJSON)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return scenario.Scenario{}, false
	}
	if err := sc.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return scenario.Scenario{}, false
	}
	if sc.VersionID == "" {
		sc.VersionID = s.cfg.DefaultVersion
	}
	return sc, true
}

// view builds the scenario and returns it normalized, as the brawl sees it.
func (s *Server) view(code string, sc scenario.Scenario) scenarioView {
	state := scenario.Build(s.catalog, sc)
	return scenarioView{
		Code:     code,
		Scenario: scenario.FromState(state),
		Brawl:    state,
	}
}

func (s *Server) handleBrawl(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.decodeScenario(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.view("", sc))
}

func (s *Server) handleSaveScenario(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "scenario store disabled")
		return
	}
	sc, ok := s.decodeScenario(w, r)
	if !ok {
		return
	}

	// Stored normalized so that equal brawls share one code.
	normalized := scenario.FromState(scenario.Build(s.catalog, sc))
	code, err := s.store.Save(r.Context(), normalized)
	if err != nil {
		slog.Error("saving scenario", "err", err)
		writeError(w, http.StatusServiceUnavailable, "saving scenario failed")
		return
	}
	slog.Debug("scenario saved", "code", code, "version", normalized.VersionID)
	writeJSON(w, http.StatusCreated, s.view(code, normalized))
}

func (s *Server) handleGetScenario(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "scenario store disabled")
		return
	}
	code := mux.Vars(r)["code"]

	sc, err := s.store.Get(r.Context(), code)
	switch {
	case errors.Is(err, db.ErrScenarioNotFound):
		writeError(w, http.StatusNotFound, "scenario "+code+" not found")
		return
	case err != nil:
		slog.Error("loading scenario", "code", code, "err", err)
		writeError(w, http.StatusServiceUnavailable, "loading scenario failed")
		return
	}
	writeJSON(w, http.StatusOK, s.view(code, *sc))
}

// handleListScenarios returns the newest saved scenarios, ?limit= of them.
func (s *Server) handleListScenarios(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "scenario store disabled")
		return
	}

	limit := db.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit "+raw)
			return
		}
		limit = min(n, maxListLimit)
	}

	list, err := s.store.ListRecent(r.Context(), limit)
	if err != nil {
		slog.Error("listing scenarios", "err", err)
		writeError(w, http.StatusServiceUnavailable, "listing scenarios failed")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

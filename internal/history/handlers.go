package history

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/HerbHall/wlanscan/internal/bss"
	"github.com/HerbHall/wlanscan/pkg/models"
	"github.com/HerbHall/wlanscan/pkg/plugin"
	"github.com/HerbHall/wlanscan/pkg/roles"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/networks", Handler: m.handleListSightings},
		{Method: "GET", Path: "/sessions", Handler: m.handleListSessions},
	}
}

// handleListSightings returns persisted sightings.
//
//	@Summary		List sightings
//	@Description	Returns networks recorded at the end of past scans, newest first.
//	@Tags			history
//	@Produce		json
//	@Param			bssid query string false "Filter by BSSID"
//	@Param			ssid query string false "Filter by network name"
//	@Param			session query string false "Filter by scan session"
//	@Param			limit query int false "Maximum results" default(100)
//	@Success		200 {array} models.Sighting
//	@Failure		400 {object} models.APIProblem
//	@Failure		500 {object} models.APIProblem
//	@Router			/history/networks [get]
func (m *Module) handleListSightings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := roles.SightingQuery{
		SSID:      q.Get("ssid"),
		SessionID: q.Get("session"),
		Limit:     parseLimit(r, DefaultLimit),
	}
	if raw := q.Get("bssid"); raw != "" {
		mac, err := bss.ParseMAC(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid bssid")
			return
		}
		query.BSSID = mac.String()
	}

	sightings, err := m.store.Sightings(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sightings")
		return
	}
	if sightings == nil {
		sightings = []models.Sighting{}
	}
	writeJSON(w, http.StatusOK, sightings)
}

// handleListSessions returns persisted sessions.
//
//	@Summary		List recorded sessions
//	@Tags			history
//	@Produce		json
//	@Param			limit query int false "Maximum results" default(100)
//	@Success		200 {array} SessionRecord
//	@Failure		500 {object} models.APIProblem
//	@Router			/history/sessions [get]
func (m *Module) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := m.store.Sessions(r.Context(), parseLimit(r, DefaultLimit))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []SessionRecord{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.APIProblem{
		Type:   "https://wlanscan.dev/problems/" + strings.ReplaceAll(strings.ToLower(http.StatusText(status)), " ", "-"),
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	})
}

func parseLimit(r *http.Request, defaultLimit int) int {
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 1000 {
			return n
		}
	}
	return defaultLimit
}

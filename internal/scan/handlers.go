package scan

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/HerbHall/wlanscan/internal/bss"
	"github.com/HerbHall/wlanscan/internal/chanlist"
	"github.com/HerbHall/wlanscan/pkg/models"
	"github.com/HerbHall/wlanscan/pkg/plugin"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "POST", Path: "/scans", Handler: m.handleStartScan},
		{Method: "GET", Path: "/scans", Handler: m.handleListScans},
		{Method: "GET", Path: "/scans/{id}", Handler: m.handleGetScan},
		{Method: "DELETE", Path: "/scans/{id}", Handler: m.handleAbortScan},
		{Method: "GET", Path: "/networks", Handler: m.handleListNetworks},
		{Method: "GET", Path: "/networks/best", Handler: m.handleBestNetwork},
	}
}

// SSIDFilterRequest is one SSID filter in a ScanRequest.
type SSIDFilterRequest struct {
	SSID   string `json:"ssid" example:"office"`
	MaxLen uint8  `json:"max_len,omitempty"`
}

// ChannelRequest is one channel in a ScanRequest. Band is "bg" or "a"; when
// empty it is inferred from the channel number. Channel 0 with a band asks
// for every channel of that band.
type ChannelRequest struct {
	Band       string `json:"band,omitempty" example:"bg"`
	Channel    uint8  `json:"channel" example:"6"`
	ScanType   string `json:"scan_type,omitempty" example:"passive"`
	ScanTimeMS int    `json:"scan_time_ms,omitempty"`
}

// ScanRequest is the JSON body of POST /scans.
type ScanRequest struct {
	SSIDs        []SSIDFilterRequest `json:"ssids,omitempty"`
	BSSID        string              `json:"bssid,omitempty" example:"00:11:22:33:44:55"`
	Channels     []ChannelRequest    `json:"channels,omitempty"`
	BSSMode      string              `json:"bss_mode,omitempty" example:"infra"`
	NumProbes    uint16              `json:"num_probes,omitempty"`
	RSSILow      uint8               `json:"rssi_low,omitempty"`
	SNRLow       uint8               `json:"snr_low,omitempty"`
	ScanTimeMS   int                 `json:"scan_time_ms,omitempty"`
	ChanGapMS    int                 `json:"chan_gap_ms,omitempty"`
	KeepPrevious bool                `json:"keep_previous,omitempty"`
}

// Request converts the body into an engine request.
func (sr ScanRequest) Request() (Request, error) {
	var req Request
	for _, f := range sr.SSIDs {
		req.SSIDs = append(req.SSIDs, SSIDFilter{SSID: []byte(f.SSID), MaxLen: f.MaxLen})
	}
	if sr.BSSID != "" {
		mac, err := bss.ParseMAC(sr.BSSID)
		if err != nil {
			return req, fmt.Errorf("bssid: %w: %w", ErrInvalidRequest, err)
		}
		req.BSSID = &mac
	}
	for _, c := range sr.Channels {
		cr, err := c.channelRequest()
		if err != nil {
			return req, err
		}
		req.Channels = append(req.Channels, cr)
	}
	if sr.BSSMode != "" {
		mode, err := models.ParseBSSMode(sr.BSSMode)
		if err != nil {
			return req, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		req.BSSMode = mode
	}
	if sr.ScanTimeMS < 0 || sr.ChanGapMS < 0 {
		return req, fmt.Errorf("negative duration: %w", ErrInvalidRequest)
	}
	req.NumProbes = sr.NumProbes
	req.RSSILow = sr.RSSILow
	req.SNRLow = sr.SNRLow
	req.ScanTime = time.Duration(sr.ScanTimeMS) * time.Millisecond
	req.ChanGap = time.Duration(sr.ChanGapMS) * time.Millisecond
	req.KeepPrevious = sr.KeepPrevious
	return req, nil
}

func (c ChannelRequest) channelRequest() (chanlist.ChannelRequest, error) {
	out := chanlist.ChannelRequest{Channel: c.Channel}
	switch strings.ToLower(c.Band) {
	case "":
		if c.Channel == 0 {
			return out, fmt.Errorf("channel 0 needs a band: %w", ErrInvalidRequest)
		}
		if c.Channel > 14 {
			out.Radio = models.RadioA
		}
	case "bg", "b", "g", "2.4ghz":
		out.Radio, out.BandSpecified = models.RadioBG, true
	case "a", "5ghz":
		out.Radio, out.BandSpecified = models.RadioA, true
	default:
		return out, fmt.Errorf("band %q: %w", c.Band, ErrInvalidRequest)
	}
	typ, err := models.ParseScanType(c.ScanType)
	if err != nil {
		return out, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if c.ScanTimeMS < 0 {
		return out, fmt.Errorf("negative scan time: %w", ErrInvalidRequest)
	}
	out.Type = typ
	out.ScanTime = time.Duration(c.ScanTimeMS) * time.Millisecond
	return out, nil
}

// handleStartScan starts a scan session.
//
//	@Summary		Start scan
//	@Description	Starts a scan session in the background. Only one session runs at a time.
//	@Tags			scan
//	@Accept			json
//	@Produce		json
//	@Param			request body ScanRequest false "Scan parameters"
//	@Success		202 {object} models.SessionSummary
//	@Failure		400 {object} models.APIProblem
//	@Failure		409 {object} models.APIProblem
//	@Router			/scan/scans [post]
func (m *Module) handleStartScan(w http.ResponseWriter, r *http.Request) {
	var body ScanRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}
	req, err := body.Request()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s, err := m.engine.Start(m.runContext(), req)
	switch {
	case errors.Is(err, ErrScanInProgress):
		writeError(w, http.StatusConflict, "a scan is already in progress")
		return
	case errors.Is(err, ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to start scan")
		return
	}
	writeJSON(w, http.StatusAccepted, s.Summary(m.engine.Table().Len()))
}

// handleListScans returns the remembered sessions.
//
//	@Summary		List scans
//	@Description	Returns recent scan sessions, oldest first.
//	@Tags			scan
//	@Produce		json
//	@Success		200 {array} models.SessionSummary
//	@Router			/scan/scans [get]
func (m *Module) handleListScans(w http.ResponseWriter, _ *http.Request) {
	entries := m.engine.Table().Len()
	sessions := m.engine.Sessions()
	out := make([]models.SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Summary(entries))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetScan returns one session.
//
//	@Summary		Get scan
//	@Tags			scan
//	@Produce		json
//	@Param			id path string true "Session ID"
//	@Success		200 {object} models.SessionSummary
//	@Failure		404 {object} models.APIProblem
//	@Router			/scan/scans/{id} [get]
func (m *Module) handleGetScan(w http.ResponseWriter, r *http.Request) {
	s, ok := m.engine.Session(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "scan session not found")
		return
	}
	writeJSON(w, http.StatusOK, s.Summary(m.engine.Table().Len()))
}

// handleAbortScan aborts a session before its next sub-command.
//
//	@Summary		Abort scan
//	@Tags			scan
//	@Param			id path string true "Session ID"
//	@Success		202 {object} models.SessionSummary
//	@Failure		404 {object} models.APIProblem
//	@Router			/scan/scans/{id} [delete]
func (m *Module) handleAbortScan(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := m.engine.Abort(id); err != nil {
		writeError(w, http.StatusNotFound, "scan session not found")
		return
	}
	s, _ := m.engine.Session(id)
	writeJSON(w, http.StatusAccepted, s.Summary(m.engine.Table().Len()))
}

// handleListNetworks returns the scan table.
//
//	@Summary		List networks
//	@Description	Returns every network in the scan table, strongest first, with its compatibility verdict.
//	@Tags			scan
//	@Produce		json
//	@Param			compatible query bool false "Only networks the local policy accepts"
//	@Success		200 {array} models.NetworkSummary
//	@Router			/scan/networks [get]
func (m *Module) handleListNetworks(w http.ResponseWriter, r *http.Request) {
	out := SummarizeAll(m.engine.TableSnapshot(), m.policy)
	if r.URL.Query().Get("compatible") == "true" {
		kept := out[:0]
		for _, n := range out {
			if n.Compatible {
				kept = append(kept, n)
			}
		}
		out = kept
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RSSI > out[j].RSSI })
	writeJSON(w, http.StatusOK, out)
}

// handleBestNetwork finds the strongest compatible network for an SSID.
//
//	@Summary		Best network
//	@Description	Returns the strongest network advertising ssid that the local policy accepts.
//	@Tags			scan
//	@Produce		json
//	@Param			ssid query string false "Network name"
//	@Param			bssid query string false "Restrict to one BSS"
//	@Success		200 {object} models.NetworkSummary
//	@Failure		400 {object} models.APIProblem
//	@Failure		404 {object} models.APIProblem
//	@Router			/scan/networks/best [get]
func (m *Module) handleBestNetwork(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ssid, rawBSSID := q.Get("ssid"), q.Get("bssid")
	if ssid == "" && rawBSSID == "" {
		writeError(w, http.StatusBadRequest, "ssid or bssid is required")
		return
	}

	var bssid *bss.MAC
	if rawBSSID != "" {
		mac, err := bss.ParseMAC(rawBSSID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid bssid")
			return
		}
		bssid = &mac
	}

	var (
		rec *bss.Record
		ok  bool
	)
	if ssid == "" {
		rec, ok = m.engine.Table().FindBSSID(*bssid, m.policy)
	} else {
		rec, ok = m.engine.Table().BestMatch([]byte(ssid), bssid, m.policy)
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no compatible network found")
		return
	}
	writeJSON(w, http.StatusOK, Summarize(rec, m.policy))
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

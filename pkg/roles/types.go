package roles

// SightingQuery filters HistoryProvider.Sightings. Zero fields match
// everything.
type SightingQuery struct {
	BSSID     string
	SSID      string
	SessionID string
	Limit     int
}

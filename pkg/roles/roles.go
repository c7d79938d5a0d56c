// Package roles defines typed contracts for plugin roles.
// Plugins that fill a role (declared via PluginInfo.Roles) should implement
// the corresponding interface so callers can use type-safe access via
// PluginResolver.ResolveByRole followed by a type assertion.
package roles

import (
	"context"

	"github.com/HerbHall/wlanscan/pkg/models"
)

// Role name constants match the strings used in PluginInfo.Roles.
const (
	RoleScanner     = "wlan_scanner"
	RoleScanHistory = "scan_history"
	RoleNotifier    = "notification"
	RoleIntegration = "integration"
)

// ScanProvider is implemented by plugins that own a scan table.
// Resolve via PluginResolver.ResolveByRole(RoleScanner) then type-assert.
type ScanProvider interface {
	// Networks returns the current scan table, classified under the
	// provider's local policy.
	Networks(ctx context.Context) ([]models.NetworkSummary, error)

	// BestNetwork returns the strongest compatible network for ssid, or
	// nil when none qualifies.
	BestNetwork(ctx context.Context, ssid string) (*models.NetworkSummary, error)
}

// HistoryProvider is implemented by plugins that persist past sightings.
type HistoryProvider interface {
	// Sightings returns persisted sightings, newest first.
	Sightings(ctx context.Context, q SightingQuery) ([]models.Sighting, error)
}

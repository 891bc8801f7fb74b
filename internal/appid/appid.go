// Package appid pins the application identity used for config discovery,
// environment prefixes, and telemetry labels.
package appid

import "github.com/fulmenhq/gofulmen/appidentity"

var identity = appidentity.Identity{
	BinaryName:  "feedlens",
	ConfigName:  "feedlens",
	EnvPrefix:   "FEEDLENS",
	Description: "Polite collection from rate-limited feeds",
}

// Get returns the static application identity. Feedlens ships a single
// binary, so there is no runtime identity discovery.
func Get() *appidentity.Identity {
	id := identity
	return &id
}

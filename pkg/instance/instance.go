// Package instance names the running process for log correlation.
package instance

import (
	"os"

	"github.com/angelmondragon/seedfund-backend/pkg/env"
)

// GetID returns SEEDFUND_INSTANCE_ID, the platform dyno name, or the host
// name, in that order. The fallback is "local".
func GetID() string {
	if id := env.Get("SEEDFUND_INSTANCE_ID", env.Get("DYNO", "")); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}

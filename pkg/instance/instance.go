package instance

import (
	"os"

	"github.com/angelmondragon/crushlink-backend/pkg/env"
)

const envInstanceID = "CRUSHLINK_INSTANCE_ID"

// GetID identifies this process in logs and lock ownership. It prefers
// CRUSHLINK_INSTANCE_ID, then the hostname.
func GetID() string {
	if id := env.Get(envInstanceID, ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "crushlink-0"
}

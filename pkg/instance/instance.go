package instance

import (
	"os"
	"strings"
)

// GetID identifies the running process in logs. Platform dyno names win over
// the hostname.
func GetID() string {
	for _, key := range []string{"DYNO", "WTS_INSTANCE_ID"} {
		if id := strings.TrimSpace(os.Getenv(key)); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}

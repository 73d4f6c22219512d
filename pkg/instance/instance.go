package instance

import "os"

// GetID returns the process instance identifier or a default value.
// Heroku style dynos expose it as DYNO.
func GetID() string {
	if id := os.Getenv("DYNO"); id != "" {
		return id
	}
	return "local"
}

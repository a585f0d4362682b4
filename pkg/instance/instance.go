package instance

import "github.com/domeo/backoffice/pkg/env"

// IDEnv overrides the detected instance id.
const IDEnv = "DOMEO_INSTANCE_ID"

// GetID identifies the running process in logs and lock ownership:
// DOMEO_INSTANCE_ID, then DYNO, then HOSTNAME, else "local".
func GetID() string {
	if id, ok := env.First(IDEnv, "DYNO", "HOSTNAME"); ok {
		return id
	}
	return "local"
}

package handler

import (
	"net/http"
	"time"
)

// HandleRoot serves the service banner.
//
// HTTP: GET /
func HandleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message":   "Swarm check-in relay",
		"status":    "running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

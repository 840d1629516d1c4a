package controller

import (
	"net/http"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/igniter-labs/igniterx/app/provider/types"
)

type Controller struct {
	App *types.App
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	return &Controller{App: app}
}

// NewRouter returns a new router with all the routes defined in this package.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.Handle("/api/health", http.HandlerFunc(c.HandleHealth)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Supplier lifecycle, called by the demand side
	r.HandleFunc("/api/suppliers/stake", c.HandleStake).Methods(http.MethodPost)
	r.HandleFunc("/api/suppliers/release", c.HandleRelease).Methods(http.MethodPost)
	r.HandleFunc("/api/suppliers/staked", c.HandleStaked).Methods(http.MethodPost)
	r.HandleFunc("/api/suppliers/unstaking", c.HandleUnstaking).Methods(http.MethodPost)

	// Key operations
	r.HandleFunc("/api/keys/remediation", c.HandleResetRemediation).Methods(http.MethodPost)
	r.HandleFunc("/api/keys/{address}", c.HandleKeyDetail).Methods(http.MethodGet)

	return r, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

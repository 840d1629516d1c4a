package controller

import (
	"errors"
	"net/http"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"

	providerstore "github.com/igniter-labs/igniterx/pkg/db/provider"
)

// HandleKeyDetail returns a key with its address group. The private key is never serialized.
func (c *Controller) HandleKeyDetail(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	key, err := c.App.Store.LoadKey(r.Context(), address)
	if errors.Is(err, providerstore.ErrKeyNotFound) {
		writeError(w, http.StatusNotFound, "key not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, key)
}

// HandleResetRemediation moves attention_needed and remediation_failed keys back to staked
// so the next passes re-evaluate them. An empty address list resets every such key.
func (c *Controller) HandleResetRemediation(w http.ResponseWriter, r *http.Request) {
	var in AddressesRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	reset, err := c.App.Store.ResetRemediationStates(r.Context(), in.Addresses)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if reset == nil {
		reset = []string{}
	}
	writeJSON(w, http.StatusOK, AddressesResponse{Addresses: reset})
}

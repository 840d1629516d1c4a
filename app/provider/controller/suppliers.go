package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-jose/go-jose/v4/json"
	"go.uber.org/zap"

	"github.com/igniter-labs/igniterx/pkg/allocation"
	providerstore "github.com/igniter-labs/igniterx/pkg/db/provider"
	"github.com/igniter-labs/igniterx/pkg/supplier"
)

type StakeRequest struct {
	allocation.Request
	RequestingParty string `json:"requesting_party"`
	Simulate        bool   `json:"simulate"`
}

type StakeResponse struct {
	Suppliers []allocation.Supplier `json:"suppliers"`
	Simulated bool                  `json:"simulated"`
}

// AddressesRequest names keys a requesting party acts on.
type AddressesRequest struct {
	Addresses       []string `json:"addresses"`
	RequestingParty string   `json:"requesting_party"`
}

type AddressesResponse struct {
	Addresses []string `json:"addresses"`
}

// HandleStake allocates suppliers for a stake request.
func (c *Controller) HandleStake(w http.ResponseWriter, r *http.Request) {
	var in StakeRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if in.RequestingParty == "" {
		writeError(w, http.StatusBadRequest, "requesting_party is required")
		return
	}

	suppliers, err := c.App.Allocator.Allocate(r.Context(), in.Request, in.RequestingParty, in.Simulate)
	switch {
	case supplier.IsValidationError(err):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, providerstore.ErrAddressGroupNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		c.App.Logger.Error("Allocation failed",
			zap.Int64("address_group_id", in.AddressGroupID),
			zap.String("requesting_party", in.RequestingParty),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, StakeResponse{Suppliers: suppliers, Simulated: in.Simulate})
}

// HandleRelease returns delivered keys to the available pool.
func (c *Controller) HandleRelease(w http.ResponseWriter, r *http.Request) {
	c.handleTransition(w, r, c.App.Allocator.Release)
}

func (c *Controller) HandleStaked(w http.ResponseWriter, r *http.Request) {
	c.handleTransition(w, r, c.App.Allocator.MarkStaked)
}

func (c *Controller) HandleUnstaking(w http.ResponseWriter, r *http.Request) {
	c.handleTransition(w, r, c.App.Allocator.MarkUnstaking)
}

type transitionFunc func(ctx context.Context, addresses []string, requestingParty string) ([]string, error)

func (c *Controller) handleTransition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	var in AddressesRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if in.RequestingParty == "" {
		writeError(w, http.StatusBadRequest, "requesting_party is required")
		return
	}
	if len(in.Addresses) == 0 {
		writeJSON(w, http.StatusOK, AddressesResponse{Addresses: []string{}})
		return
	}

	updated, err := fn(r.Context(), in.Addresses, in.RequestingParty)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if updated == nil {
		updated = []string{}
	}
	writeJSON(w, http.StatusOK, AddressesResponse{Addresses: updated})
}

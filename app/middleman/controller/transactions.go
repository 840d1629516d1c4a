package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	middlemanstore "github.com/igniter-labs/igniterx/pkg/db/middleman"
	"github.com/igniter-labs/igniterx/pkg/db/models/middleman"
	"github.com/igniter-labs/igniterx/pkg/temporal"
	middlemanworkflow "github.com/igniter-labs/igniterx/pkg/temporal/middleman"
)

type ExecuteResponse struct {
	TransactionID int64  `json:"transaction_id"`
	WorkflowID    string `json:"workflow_id"`
	RunID         string `json:"run_id"`
}

func transactionID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

func (c *Controller) HandleTransactionDetail(w http.ResponseWriter, r *http.Request) {
	id, err := transactionID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	tx, err := c.App.Store.GetTransaction(r.Context(), id)
	if errors.Is(err, middlemanstore.ErrTransactionNotFound) {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// payloads are signed material and stay server side
	tx.SignedPayload = ""
	writeJSON(w, http.StatusOK, tx)
}

// HandleExecuteTransaction starts the execution workflow of a pending transaction. The
// workflow id is derived from the transaction, so a repeated call joins the running one.
func (c *Controller) HandleExecuteTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := transactionID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	tx, err := c.App.Store.GetTransaction(ctx, id)
	if errors.Is(err, middlemanstore.ErrTransactionNotFound) {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tx.Status != middleman.TransactionStatusPending {
		writeError(w, http.StatusConflict, "transaction is not pending")
		return
	}

	run, err := c.App.TemporalClient.TClient.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        temporal.ExecuteTransactionWorkflowID(id),
		TaskQueue: c.App.TemporalClient.MiddlemanQueue,
	}, middlemanworkflow.ExecuteTransactionWorkflowName, middlemanworkflow.ExecuteTransactionInput{TransactionID: id})
	if err != nil {
		c.App.Logger.Error("Unable to start transaction workflow", zap.Int64("transactionId", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "unable to start workflow")
		return
	}

	writeJSON(w, http.StatusAccepted, ExecuteResponse{
		TransactionID: id,
		WorkflowID:    run.GetID(),
		RunID:         run.GetRunID(),
	})
}

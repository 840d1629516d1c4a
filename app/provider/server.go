package provider

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/igniter-labs/igniterx/app/provider/controller"
	"github.com/igniter-labs/igniterx/app/provider/types"
	"github.com/igniter-labs/igniterx/pkg/utils"
)

// NewServer attaches the allocation API server to app.
func NewServer(app *types.App) error {
	ctler := controller.NewController(app)
	router, err := ctler.NewRouter()
	if err != nil {
		return err
	}

	// use <ip>:<port> to bind to a specific interface or :<port> to bind to all interfaces
	addr := utils.Env("ADDR", ":3000")

	app.Server = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	app.Logger.Info("Starting server", zap.String("addr", addr))

	return nil
}

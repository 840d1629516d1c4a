package middleman

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/igniter-labs/igniterx/app/middleman/controller"
	"github.com/igniter-labs/igniterx/app/middleman/types"
	"github.com/igniter-labs/igniterx/pkg/utils"
)

// NewServer attaches the transaction API server to app.
func NewServer(app *types.App) error {
	ctler := controller.NewController(app)
	router, err := ctler.NewRouter()
	if err != nil {
		return err
	}

	addr := utils.Env("ADDR", ":3001")

	app.Server = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	app.Logger.Info("Starting server", zap.String("addr", addr))

	return nil
}

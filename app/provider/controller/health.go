package controller

import (
	"net/http"
)

type HealthResponse struct {
	Database string `json:"database"`
	Temporal string `json:"temporal,omitempty"`
	Redis    string `json:"redis,omitempty"`
	// Notifications is the backlog of this provider's stream, when consumed.
	Notifications *NotificationsLag `json:"notifications,omitempty"`
}

type NotificationsLag struct {
	Length  int64 `json:"length"`
	Pending int64 `json:"pending"`
}

func (c *Controller) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := http.StatusOK
	res := HealthResponse{Database: "ok"}

	if err := c.App.Store.Ping(ctx); err != nil {
		res.Database = err.Error()
		status = http.StatusServiceUnavailable
	}
	if c.App.TemporalClient != nil {
		res.Temporal = "ok"
		if _, err := c.App.TemporalClient.TClient.CheckHealth(ctx, nil); err != nil {
			res.Temporal = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	if c.App.RedisClient != nil {
		res.Redis = "ok"
		if err := c.App.RedisClient.Health(ctx); err != nil {
			res.Redis = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	if c.App.Consumer != nil {
		if length, pending, err := c.App.Consumer.Lag(ctx); err == nil {
			res.Notifications = &NotificationsLag{Length: length, Pending: pending}
		}
	}

	writeJSON(w, status, res)
}

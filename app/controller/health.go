package controller

import (
	"database/sql"
	"net/http"

	httpdto "github.com/vibast-solutions/ms-go-tasks/app/dto/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type HealthController struct {
	db *sql.DB
}

func NewHealthController(db *sql.DB) *HealthController {
	return &HealthController{db: db}
}

func (c *HealthController) Health(ctx echo.Context) error {
	overall, database := "ok", "up"
	status := http.StatusOK
	if err := c.db.PingContext(ctx.Request().Context()); err != nil {
		logrus.WithError(err).Warn("Health check: database ping failed")
		overall, database = "degraded", "down"
		status = http.StatusServiceUnavailable
	}

	return ctx.JSON(status, httpdto.HealthResponse{
		Status:   overall,
		Database: database,
	})
}

package main

import (
	"github.com/smallbiznis/bluemoon/internal/clock"
	"github.com/smallbiznis/bluemoon/internal/config"
	"github.com/smallbiznis/bluemoon/internal/migration"
	"github.com/smallbiznis/bluemoon/internal/observability"
	"github.com/smallbiznis/bluemoon/internal/server"
	"github.com/smallbiznis/bluemoon/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		db.Module,
		clock.Module,
		migration.Module,

		// Billing domains and HTTP surface
		server.Module,
	)

	app.Run()
}

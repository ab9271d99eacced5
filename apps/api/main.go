// @title           CallUp API
// @version         1.0
// @description     CallUp Lead Distribution & Disposition API

// @host      localhost:8080
// @BasePath  /v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/Romeobluesky/callup-api/internal/assignment"
	"github.com/Romeobluesky/callup-api/internal/clock"
	"github.com/Romeobluesky/callup-api/internal/config"
	"github.com/Romeobluesky/callup-api/internal/disposition"
	"github.com/Romeobluesky/callup-api/internal/events"
	"github.com/Romeobluesky/callup-api/internal/lead"
	"github.com/Romeobluesky/callup-api/internal/migration"
	"github.com/Romeobluesky/callup-api/internal/observability"
	"github.com/Romeobluesky/callup-api/internal/seed"
	"github.com/Romeobluesky/callup-api/internal/server"
	"github.com/Romeobluesky/callup-api/internal/stats"
	"github.com/Romeobluesky/callup-api/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		fx.Invoke(func(conn *gorm.DB, node *snowflake.Node, cfg config.Config) error {
			if cfg.RunMigrations {
				if err := migration.RunMigrations(conn); err != nil {
					return err
				}
			}
			if cfg.SeedDevData {
				tenantID, err := snowflake.ParseString(cfg.SeedTenantID)
				if err != nil {
					return err
				}
				return seed.EnsureDevData(conn, node, tenantID)
			}
			return nil
		}),

		events.Module,
		stats.Module,
		lead.Module,
		disposition.Module,
		assignment.Module,

		fx.Provide(server.NewEngine),
		fx.Provide(server.NewServer),
		fx.Invoke(func(s *server.Server) {
			s.RegisterAPIRoutes()
		}),
		fx.Invoke(server.RunHTTP),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

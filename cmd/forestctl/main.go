package main

import (
	"context"
	"log"
	"os"

	"forest-fashion/config"
	"forest-fashion/internal/auth"
	"forest-fashion/internal/broker"
	"forest-fashion/internal/redisclient"
	"forest-fashion/internal/service"
	"forest-fashion/internal/store"
	"forest-fashion/internal/util"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	if err := util.InitLogger(cfg.Server.Env, "forestctl"); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	cmd := &cli.Command{
		Name:  "forestctl",
		Usage: "Maintenance tasks for the Forest Fashion store",
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "Apply the database schema",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withStore(cfg, func(db *store.Store) error {
						if err := db.Migrate(ctx); err != nil {
							return err
						}
						log.Println("Migration complete")
						return nil
					})
				},
			},
			{
				Name:  "seed-admin",
				Usage: "Create the admin account if no admin exists",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Value: cfg.Storefront.AdminName, Usage: "admin display name"},
					&cli.StringFlag{Name: "email", Value: cfg.Storefront.AdminEmail, Usage: "admin login email"},
					&cli.StringFlag{Name: "password", Value: cfg.Storefront.AdminPassword, Usage: "admin password"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return withStore(cfg, func(db *store.Store) error {
						tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry)
						authService := service.NewAuthService(db, tokens, cfg.Storefront.FrontendURL, cfg.Auth.ResetTokenTTL)
						admin, err := authService.SeedAdmin(ctx, c.String("name"), c.String("email"), c.String("password"))
						if err != nil {
							return err
						}
						log.Printf("Admin user created: %s", admin.Email)
						return nil
					})
				},
			},
			{
				Name:  "fix-orders",
				Usage: "Backfill payment fields on orders created before they existed",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withStore(cfg, func(db *store.Store) error {
						n, err := db.FixLegacyOrders(ctx)
						if err != nil {
							return err
						}
						log.Printf("Orders updated: %d", n)
						return nil
					})
				},
			},
			{
				Name:  "sync-stock",
				Usage: "Rebuild the Redis stock mirror from the database",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withInventory(cfg, func(inv *service.InventoryService) error {
						n, err := inv.SyncAll(ctx)
						if err != nil {
							return err
						}
						log.Printf("Stock mirror synced for %d products", n)
						return nil
					})
				},
			},
			{
				Name:  "sweep-reservations",
				Usage: "Release expired cart reservations once",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withInventory(cfg, func(inv *service.InventoryService) error {
						n, err := inv.ReleaseExpired(ctx)
						if err != nil {
							return err
						}
						log.Printf("Reservations released: %d", n)
						return nil
					})
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		util.GetLogger().Error("Command failed", zap.Error(err))
		log.Fatal(err)
	}
}

func withStore(cfg *config.Config, fn func(db *store.Store) error) error {
	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

func withInventory(cfg *config.Config, fn func(inv *service.InventoryService) error) error {
	return withStore(cfg, func(db *store.Store) error {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer redisClient.Close()

		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
		defer producer.Close()

		return fn(service.NewInventoryService(db, db, redisClient, broker.NewEventPublisher(producer)))
	})
}

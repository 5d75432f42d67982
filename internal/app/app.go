package app

import (
	"fmt"

	"github.com/violet-hub/keygate/config"
	"github.com/violet-hub/keygate/database"
	"github.com/violet-hub/keygate/database/repo/bindings"
	"github.com/violet-hub/keygate/internal/issuer"
	"github.com/violet-hub/keygate/internal/keygen"
	"github.com/violet-hub/keygate/internal/notify"
	"github.com/violet-hub/keygate/internal/registration"
	"github.com/violet-hub/keygate/internal/sweeper"
	"gorm.io/gorm"
)

// Container wires the store, the generator, and the services. The store and
// the notifier are injected dependencies everywhere; nothing references
// process-wide singletons.
type Container struct {
	config *config.Config
	db     *gorm.DB

	BindingsRepo *bindings.Repository
	Issuer       *issuer.Service
	Registration *registration.Service
	Sweeper      *sweeper.Sweeper
}

// NewContainer creates an uninitialized container.
func NewContainer(cfg *config.Config) *Container {
	return &Container{config: cfg}
}

// InitDatabase opens the database, migrates the schema, and builds the repo.
func (c *Container) InitDatabase() error {
	db, err := database.NewDB(c.config)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	c.db = db
	c.BindingsRepo = bindings.NewRepository(db)
	c.Issuer = issuer.NewService(
		c.BindingsRepo,
		keygen.New(c.config.KeyPrefix, c.config.KeyLength),
		c.config.ExpiryWindow,
	)
	return nil
}

// InitServices builds the notification-dependent services. The notifier comes
// in late because it may be backed by the bot session, which itself needs the
// issuer from InitDatabase.
func (c *Container) InitServices(notifier notify.Notifier) {
	c.Registration = registration.NewService(c.BindingsRepo, notifier, c.config.ExpiryWindow)
	c.Sweeper = sweeper.New(c.BindingsRepo, notifier, sweeper.Options{
		Window:           c.config.ExpiryWindow,
		NotifyInterval:   c.config.SweepNotifyInterval,
		RolloverInterval: c.config.SweepRolloverInterval,
		RearmThreshold:   c.config.SweepRearmThreshold,
		BatchSize:        c.config.SweepBatchSize,
	})
}

// DB exposes the raw connection for health checks and route wiring.
func (c *Container) DB() *gorm.DB {
	return c.db
}

// Close releases the database connection.
func (c *Container) Close() error {
	if c.db == nil {
		return nil
	}
	return database.Close(c.db)
}

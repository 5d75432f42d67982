package cmd

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/violet-hub/keygate/api/core"
	"github.com/violet-hub/keygate/api/handler/register"
	"github.com/violet-hub/keygate/config"
	"github.com/violet-hub/keygate/internal/app"
	"github.com/violet-hub/keygate/internal/bot"
	"github.com/violet-hub/keygate/internal/notify"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the key gate server",
	Run: func(cmd *cobra.Command, args []string) {
		RunServer()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func RunServer() {
	config.InitConfig()
	cfg := config.Get()

	if err := os.MkdirAll("./data", os.ModePerm); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	container := app.NewContainer(cfg)
	if err := container.InitDatabase(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// The Discord bot doubles as the notifier; without a token the server
	// still runs and notices go to the log only.
	var discordBot *bot.Bot
	var notifier notify.Notifier = notify.NewLogNotifier()
	if cfg.BotEnabled() {
		b, err := bot.New(cfg.DiscordToken, cfg.DiscordGuildID, container.Issuer)
		if err != nil {
			log.Fatalf("Failed to create discord bot: %v", err)
		}
		if err := b.Start(); err != nil {
			log.Fatalf("Failed to start discord bot: %v", err)
		}
		discordBot = b
		notifier = b.Notifier()
	} else {
		log.Println("[Warning] No discord token configured, DMs are logged only")
	}

	container.InitServices(notifier)
	container.Sweeper.Start()

	deps := &core.RouterDependencies{
		Config:          cfg,
		DB:              container.DB(),
		RegisterHandler: register.NewHandler(container.Registration),
	}

	server, cleanup := core.StartServer(deps)
	go func() {
		log.Printf("Server started on %s", cfg.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if cleanup != nil {
		cleanup()
	}

	container.Sweeper.Stop()

	if discordBot != nil {
		if err := discordBot.Stop(); err != nil {
			log.Printf("Error closing discord session: %v", err)
		}
	}

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	if err := container.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}

	log.Println("Server exited successfully")
}

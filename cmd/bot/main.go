package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robalyx/gatekeeper/internal/bot"
	"github.com/robalyx/gatekeeper/internal/setup"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "time/tzdata"
)

// BotLogDir specifies where bot log files are stored.
const BotLogDir = "logs/bot_logs"

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "bot",
		Usage: "Start the moderation and verification bot",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to bot.toml",
			},
			&cli.StringFlag{
				Name:  "log-dir",
				Value: BotLogDir,
				Usage: "Directory for log sessions",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return start(ctx, c.String("config"), c.String("log-dir"))
		},
	}

	return app.Run(context.Background(), os.Args)
}

func start(ctx context.Context, configPath, logDir string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := setup.InitializeApp(configPath, logDir)
	if err != nil {
		return err
	}
	defer app.Cleanup()

	discordBot, err := bot.New(app.Config, app.Store, app.Logger)
	if err != nil {
		return err
	}

	server := setup.NewKeepAliveServer(app.Config.Server.Port, discordBot.Ready, app.Logger)
	pinger := setup.NewSelfPinger(app.Config.Server.AppURL, app.Logger)
	if pinger == nil {
		app.Logger.Warn("APP_URL is not set, self-ping is disabled")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return discordBot.Run(ctx) })
	g.Go(func() error { return server.Run(ctx) })
	if pinger != nil {
		g.Go(func() error { return pinger.Run(ctx) })
	}

	app.Logger.Info("Bot has been started. Waiting for interrupt signal to gracefully shutdown...")

	if err := g.Wait(); err != nil {
		app.Logger.Error("Bot stopped with error", zap.Error(err))
		return err
	}

	app.Logger.Info("Bot stopped")
	return nil
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"kzcasino/api"
	"kzcasino/config"
	"kzcasino/database"
	"kzcasino/infrastructure"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the casino: migrations, schedulers, event forwarding and the admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), config.Get())
		},
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log.WithField("environment", cfg.Environment).Info("Starting kzcasino...")

	if err := database.MigrateUp(cfg.GetDatabaseURL()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	svc, err := buildServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()
	log.Info("Database connection established successfully")

	if cfg.NATSServers != "" {
		natsClient := infrastructure.NewNATSClient(cfg.NATSServers)
		if err := natsClient.Connect(); err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer func() {
			if err := natsClient.Close(); err != nil {
				log.WithError(err).Error("Error closing NATS connection")
			}
		}()

		mapper := infrastructure.NewEventSubjectMapper()
		if err := natsClient.EnsureStream(infrastructure.StreamName, mapper.GetAllSubjects()); err != nil {
			return fmt.Errorf("failed to ensure event stream: %w", err)
		}
		infrastructure.NewNATSEventPublisher(natsClient, mapper).Attach(svc.bus)
		log.Info("Event forwarding to NATS enabled")
	}

	if cfg.DiscordToken != "" && cfg.AnnounceChannelID != "" {
		session, err := discordgo.New("Bot " + cfg.DiscordToken)
		if err != nil {
			return fmt.Errorf("failed to create Discord session: %w", err)
		}
		if err := session.Open(); err != nil {
			return fmt.Errorf("failed to open Discord session: %w", err)
		}
		defer func() {
			if err := session.Close(); err != nil {
				log.WithError(err).Error("Error closing Discord session")
			}
		}()

		infrastructure.NewDiscordAnnouncer(session, cfg.AnnounceChannelID).Attach(svc.bus)
		log.WithField("channel", cfg.AnnounceChannelID).Info("Discord announcements enabled")
	}

	scheduler := infrastructure.NewScheduler(ctx, svc.duels, svc.loans)
	if err := scheduler.Register(cfg.DuelSweepCron, cfg.LoanSweepCron); err != nil {
		return fmt.Errorf("failed to register scheduled jobs: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(svc.ledger, svc.params, svc.loans, svc.predictions, svc.rewards, svc.db)
	server := api.NewServer(cfg.HTTPAddr, handler)

	serverErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("Admin API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("Received shutdown signal, shutting down gracefully...")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("admin API failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Error shutting down admin API")
	}

	log.Info("Shutdown completed")
	return nil
}

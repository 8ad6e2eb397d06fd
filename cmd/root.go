package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"kzcasino/config"
	"kzcasino/database"
	"kzcasino/events"
	"kzcasino/repository"
	"kzcasino/service"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Execute runs the kzcasino command line
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "kzcasino",
		Short:        "Virtual currency casino for Discord",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return configureLogging(config.Get())
		},
	}

	root.AddCommand(
		newRunCmd(),
		newMigrateCmd(),
		newParamsCmd(),
		newBalanceCmd(),
	)
	return root
}

func configureLogging(cfg *config.Config) error {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	log.SetLevel(level)
	if cfg.Environment == "production" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// services bundles everything built on one database connection
type services struct {
	db          *database.DB
	bus         *events.Bus
	ledger      service.LedgerService
	params      service.ParamsService
	settlement  service.SettlementService
	predictions service.PredictionService
	loans       service.LoanService
	duels       service.DuelService
	rewards     service.RewardService
}

func buildServices(ctx context.Context, cfg *config.Config) (*services, error) {
	defs, err := config.ParamDefinitions()
	if err != nil {
		return nil, fmt.Errorf("failed to load parameter definitions: %w", err)
	}

	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	bus := events.NewBus()
	uowFactory := repository.NewUnitOfWorkFactory(db, bus)
	clock := service.NewSystemClock()
	rng := service.NewSystemRandom()
	progress := service.NewProgressService(uowFactory)
	params := service.NewParamsService(uowFactory, defs)

	s := &services{
		db:          db,
		bus:         bus,
		ledger:      service.NewLedgerService(uowFactory, cfg),
		params:      params,
		settlement:  service.NewSettlementService(uowFactory, params, rng, clock, progress, cfg),
		predictions: service.NewPredictionService(uowFactory, clock, cfg),
		loans:       service.NewLoanService(uowFactory, params, clock, cfg),
		duels:       service.NewDuelService(uowFactory, params, rng, clock, progress, cfg),
		rewards:     service.NewRewardService(uowFactory, params, rng, clock, cfg),
	}
	s.settlement.RegisterOutcomeHook(s.predictions)
	return s, nil
}

func (s *services) Close() {
	s.bus.Wait()
	s.db.Close()
}

package cmd

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/billing-portal/internal/emulator"
	"github.com/shunichi-ikebuchi/billing-portal/internal/emulator/auth"
	"github.com/shunichi-ikebuchi/billing-portal/internal/emulator/store"
)

var seed bool

// emulatorCmd represents the emulator command.
var emulatorCmd = &cobra.Command{
	Use:   "emulator",
	Short: "Run a local billing API emulator",
	Long: `Run a local emulator of the billing and authentication APIs backed by
a bbolt database, for developing the portal without the real services.

With --seed, a demo client is created on first start:
  email:    client@example.com
  password: password

Example:
  billing-portal emulator --seed
  EMULATOR_PORT=5001 EMULATOR_DB_PATH=/tmp/billing.db billing-portal emulator`,
	Annotations: map[string]string{"log": "json"},
	Run:         runEmulator,
}

func init() {
	emulatorCmd.Flags().BoolVar(&seed, "seed", false, "load demo data if the database is empty")
}

func runEmulator(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig(
		[]string{"emulator", "dbPath"},
		[]string{"emulator", "port"},
	)
	exitOnError(err, "failed to load configuration")

	st, err := store.New(cfg.Emulator.DBPath)
	exitOnError(err, "failed to initialize store")
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("failed to close store", "error", err)
		}
	}()
	slog.Info("database initialized", "db_path", cfg.Emulator.DBPath)

	if seed {
		exitOnError(emulator.Seed(st, time.Now()), "failed to seed database")
		slog.Info("demo data ready", "email", emulator.SeedEmail)
	}

	server := &http.Server{
		Addr:         net.JoinHostPort("", cfg.Emulator.Port),
		Handler:      emulator.NewRouter(st, auth.NewTokenManager(st), middleware.Logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if err := listenAndServe(server); err != nil {
		slog.Error("server error", "error", err)
	}
}

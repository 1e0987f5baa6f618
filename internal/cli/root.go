// Package cli implements ledgerctl, the operator console for the credit
// ledger. Commands run against the same storage the server uses.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"creditline-backend/internal/app"
	"creditline-backend/internal/config"
	"creditline-backend/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// session carries the loaded application between pre-run and the command
type session struct {
	configPath string
	envFile    string
	logLevel   string
	cfg        *config.Config
	app        *app.App
}

// NewRootCommand builds the ledgerctl command tree. The returned closer
// releases the storage opened by whichever command ran.
func NewRootCommand() (*cobra.Command, func() error) {
	s := &session{}

	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Administer the credit ledger",
		Long:          `ledgerctl seeds customers, issues API tokens, refunds purchases, works chargebacks and prints reports.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.open(cmd.Context(), cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVarP(&s.configPath, "config", "c", "config/config.yaml", "Path to configuration file")
	root.PersistentFlags().StringVar(&s.envFile, "env", ".env", "Optional dotenv file with secrets")
	root.PersistentFlags().StringVar(&s.logLevel, "log-level", "warn", "Log level for ledgerctl itself")

	root.AddCommand(
		newCustomerCommand(s),
		newConversationCommand(s),
		newTokenCommand(s),
		newRefundCommand(s),
		newChargebackCommand(s),
		newStatsCommand(s),
		newEarningsCommand(s),
		newPresetCommand(s),
	)
	return root, s.close
}

// Execute runs ledgerctl and returns the process exit code
func Execute() int {
	root, closeApp := NewRootCommand()
	err := root.ExecuteContext(context.Background())
	if cerr := closeApp(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func (s *session) open(ctx context.Context, stderr io.Writer) error {
	if err := godotenv.Load(s.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load env file %s: %w", s.envFile, err)
	}

	cfg, err := config.Load(s.configPath)
	if err != nil {
		return err
	}
	logger.InitializeWithWriter(s.logLevel, cfg.Log.Format, stderr)

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	s.cfg, s.app = cfg, a
	return nil
}

func (s *session) close() error {
	if s.app == nil {
		return nil
	}
	err := s.app.Close()
	s.app = nil
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

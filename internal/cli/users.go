package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"intelliquiz-engine/internal/config"
	"intelliquiz-engine/internal/platform/logger"
)

// NewUsersCmd manages accounts in the configured persistent ledger.
func NewUsersCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage quiz accounts",
	}

	var roles []string
	add := &cobra.Command{
		Use:   "add <username>",
		Short: "Register an account with zero points",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Log.Mode)
			if err != nil {
				return err
			}
			defer log.Sync()

			st, err := openStores(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer st.Close()
			if st.backend == "memory" {
				return fmt.Errorf("no persistent ledger configured: set postgres.url or redis.addr")
			}

			created, err := st.ledger.CreateUser(cmd.Context(), args[0], roles...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s with id %d\n", created.Username, created.UserID)
			return nil
		},
	}
	add.Flags().StringSliceVar(&roles, "role", []string{"ROLE_STUDENT"}, "role to grant (repeatable)")
	cmd.AddCommand(add)
	return cmd
}

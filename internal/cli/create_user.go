package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/install-tickets/internal/persistence"
	"github.com/spec-kit/install-tickets/internal/repository"
	"github.com/spec-kit/install-tickets/internal/service"
)

var createUserInput service.CreateUserInput

var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Register an operator account, e.g. the first admin",
	RunE:  runCreateUser,
}

func init() {
	flags := createUserCmd.Flags()
	flags.StringVar(&createUserInput.Name, "name", "", "display name")
	flags.StringVar(&createUserInput.Email, "email", "", "login email")
	flags.StringVar(&createUserInput.Password, "password", "", "initial password")
	flags.StringVar(&createUserInput.Role, "role", "admin", "admin, seller or tech")
	_ = createUserCmd.MarkFlagRequired("name")
	_ = createUserCmd.MarkFlagRequired("email")
	_ = createUserCmd.MarkFlagRequired("password")
}

func runCreateUser(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	pg, err := persistence.NewPostgres(cmd.Context(), cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pg.Close()
	if pg.PoolHandle() == nil {
		return fmt.Errorf("create-user: POSTGRES_DSN is not set")
	}

	authService := service.NewAuthService(cfg.Auth, repository.NewStore(pg.PoolHandle()), nil, logger)
	user, err := authService.RegisterUser(cmd.Context(), createUserInput)
	if err != nil {
		return err
	}
	logger.Info("operator created", zap.Int64("user_id", user.ID), zap.String("email", user.Email), zap.String("role", string(user.Role)))
	fmt.Fprintf(cmd.OutOrStdout(), "created %s user %d (%s)\n", user.Role, user.ID, user.Email)
	return nil
}

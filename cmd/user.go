package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/qrave1/GoldLink/internal/application/config"
	"github.com/qrave1/GoldLink/internal/domain/models"
	"github.com/qrave1/GoldLink/internal/usecase"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create [username] [password]",
	Short: "Create an account; support staff accounts are only created here",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		role, _ := cmd.Flags().GetString("role")
		displayName, _ := cmd.Flags().GetString("name")

		cfg, err := config.New()
		if err != nil {
			log.Fatalf("could not load config: %v", err)
		}

		if cfg.Storage.Driver == config.StorageDriverMemory {
			log.Fatalf("%q storage does not outlive the command", config.StorageDriverMemory)
		}

		store, err := openStorage(cmd.Context(), cfg)
		if err != nil {
			log.Fatalf("open storage: %v", err)
		}
		defer store.close()

		userUsecase := usecase.NewUserUsecase([]byte(cfg.JWTSecret), store.users)

		user, err := userUsecase.CreateUser(cmd.Context(), args[0], args[1], displayName, models.Role(role))
		if err != nil {
			log.Fatalf("create user: %v", err)
		}

		fmt.Printf("created %s %s (%s)\n", user.Role, user.Username, user.ID)
	},
}

func init() {
	userCreateCmd.Flags().String("role", string(models.RoleAdmin), "account role: admin or customer")
	userCreateCmd.Flags().String("name", "", "display name")

	userCmd.AddCommand(userCreateCmd)
	rootCmd.AddCommand(userCmd)
}

/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kraman82351/Task-management/internal/server"
	"github.com/kraman82351/Task-management/internal/services"
	"github.com/kraman82351/Task-management/types"
	"github.com/spf13/cobra"
)

var (
	promoteEmail string
	promoteRole  string
)

// userCmd groups account maintenance commands.
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var userPromoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Change the role of an account",
	Long: `Change the role of an account. Usage:

	taskmanager user promote --email admin@example.com --role admin
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		role, ok := types.ParseRole(promoteRole)
		if !ok {
			return fmt.Errorf("unknown role %q", promoteRole)
		}

		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		if err := requirePersistentStore(cfg.Store.Driver); err != nil {
			return err
		}

		repos, err := server.OpenRepositories(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer repos.Close(cmd.Context())

		users := services.NewUserService(repos.Users, nil, nil, nil, services.UserServiceConfig{}, logger)
		user, err := users.SetRole(cmd.Context(), promoteEmail, role)
		if errors.Is(err, services.ErrUserNotFound) {
			return fmt.Errorf("no user with email %q", promoteEmail)
		}
		if err != nil {
			return err
		}

		cmd.Printf("%s is now %s\n", user.Email, user.Role)
		return nil
	},
}

// requirePersistentStore rejects the memory driver, whose data only exists
// inside a running server process.
func requirePersistentStore(driver string) error {
	if strings.EqualFold(strings.TrimSpace(driver), "memory") {
		return errors.New("user promote needs STORE_DRIVER=postgres or mongo, the memory store is private to the server process")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userPromoteCmd)

	userPromoteCmd.Flags().StringVar(&promoteEmail, "email", "", "email of the account to change")
	userPromoteCmd.Flags().StringVar(&promoteRole, "role", string(types.RoleAdmin), "role to assign: user, admin or creator")
	_ = userPromoteCmd.MarkFlagRequired("email")
}

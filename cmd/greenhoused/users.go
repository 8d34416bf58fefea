package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"greenhouse-backend/internal/auth"
	"greenhouse-backend/internal/db"
	"greenhouse-backend/internal/model"
	"greenhouse-backend/internal/store"
)

var (
	newUserEmail    string
	newUserPassword string
	newUserName     string
	newUserRole     string
)

var addUserCmd = &cobra.Command{
	Use:   "add-user",
	Short: "Create an account that can sign in to the API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if newUserEmail == "" || newUserPassword == "" {
			return errors.New("--email and --password are required")
		}
		role, ok := auth.NormalizeRole(newUserRole)
		if !ok {
			return fmt.Errorf("unknown role %q (viewer, operator or admin)", newUserRole)
		}

		hashed, err := auth.HashPassword(newUserPassword)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}

		gormDB, err := db.Init(&cfg.Database, logger)
		if err != nil {
			return err
		}
		u := &model.User{
			Email:        newUserEmail,
			DisplayName:  newUserName,
			Role:         string(role),
			PasswordHash: hashed,
		}
		if err := store.NewGormStore(gormDB).CreateUser(cmd.Context(), u); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "User '%s' created with role %s (id %s).\n", u.Email, u.Role, u.ID)
		return nil
	},
}

func init() {
	addUserCmd.Flags().StringVar(&newUserEmail, "email", "", "email address used to sign in")
	addUserCmd.Flags().StringVar(&newUserPassword, "password", "", "password for the new user")
	addUserCmd.Flags().StringVar(&newUserName, "name", "", "display name")
	addUserCmd.Flags().StringVar(&newUserRole, "role", string(auth.RoleOperator), "viewer, operator or admin")
}

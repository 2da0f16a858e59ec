package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/justyntemme/exlibris/internal/auth"
	"github.com/justyntemme/exlibris/internal/models"
	"github.com/justyntemme/exlibris/internal/storage"
)

func newUsersCommand(ctx *commandContext) *cobra.Command {
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Manage accounts",
	}
	usersCmd.AddCommand(newUsersBootstrapCommand(ctx))
	return usersCmd
}

func newUsersBootstrapCommand(ctx *commandContext) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the admin account if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.config
			if username == "" {
				username = cfg.Admin.Username
			}
			if password == "" {
				password = cfg.Admin.Password
			}
			if username == "" || password == "" {
				return errors.New("admin username and password are required (set [admin] or EXLIBRIS_ADMIN_USER/EXLIBRIS_ADMIN_PASSWORD)")
			}

			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			created, err := bootstrapAdmin(cmd.Context(), store.db, username, password)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if created {
				fmt.Fprintf(out, "Created admin user %q\n", username)
			} else {
				fmt.Fprintf(out, "User %q already exists\n", username)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Admin username (defaults to [admin].username)")
	cmd.Flags().StringVar(&password, "password", "", "Admin password (defaults to [admin].password)")
	return cmd
}

// bootstrapAdmin creates an admin user unless the username is taken. It
// reports whether a user was created.
func bootstrapAdmin(ctx context.Context, db *storage.Database, username, password string) (bool, error) {
	exists, err := db.UserExists(ctx, username)
	if err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	if exists {
		return false, nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	user := &models.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: hash,
		IsAdmin:      true,
	}
	if err := db.CreateUser(ctx, user); err != nil {
		return false, fmt.Errorf("create user: %w", err)
	}
	return true, nil
}

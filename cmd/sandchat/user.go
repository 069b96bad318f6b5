package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/firespoon/sandchat/api/auth"
	"github.com/firespoon/sandchat/api/config"
	"github.com/firespoon/sandchat/api/store"
	"github.com/firespoon/sandchat/shared/db"
)

func createUserCmd() *cobra.Command {
	var isAdmin bool

	cmd := &cobra.Command{
		Use:   "create-user <username> <email> <password>",
		Short: "Create a user account",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			username, email, password := args[0], args[1], args[2]

			if err := auth.ValidatePassword(password); err != nil {
				return err
			}

			cfg := config.Load()
			pool, err := db.Connect(cmd.Context(), db.Config{URL: cfg.Database.URL, Timezone: "UTC"})
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer pool.Close()

			s := store.New(pool)
			if err := s.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}

			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}

			user, err := s.CreateUser(cmd.Context(), username, email, hash)
			if err != nil {
				return err
			}

			if isAdmin {
				if _, err := pool.Exec(cmd.Context(),
					`UPDATE users SET is_admin = TRUE WHERE id = $1`, user.ID); err != nil {
					return fmt.Errorf("grant admin: %w", err)
				}
			}

			cmd.Printf("created user %s (%s)\n", user.Username, user.ID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&isAdmin, "admin", false, "grant admin privileges")
	return cmd
}

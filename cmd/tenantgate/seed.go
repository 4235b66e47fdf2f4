package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/tenantgate/internal/app"
	"github.com/dropDatabas3/tenantgate/internal/observability/logger"
	"github.com/dropDatabas3/tenantgate/internal/security/password"
	"github.com/dropDatabas3/tenantgate/internal/store/core"
)

// seedCmd bootstraps a super-admin role and user. The user is cross-tenant
// (nil tenant id), so its sessions bind the unrestricted sentinel.
func seedCmd(cfgPath *string) *cobra.Command {
	var email, pass string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the initial super-admin role and user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || pass == "" {
				return fmt.Errorf("--email and --password are required")
			}
			cfg, err := boot(*cfgPath)
			if err != nil {
				return err
			}
			ctx := context.Background()
			container, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer container.Close()

			role, err := container.Store.SaveRole(ctx, &core.Role{
				ID:    uuid.NewString(),
				Name:  "superadmin",
				Level: 100,
				Permissions: []string{
					"users:read:all",
					"users:create:all",
					"users:update:all",
					"tenants:read:all",
					"roles:write:all",
					"admin:read:all",
				},
			})
			if err != nil {
				return fmt.Errorf("seed role: %w", err)
			}

			hash, err := password.Hash(password.Default, pass)
			if err != nil {
				return err
			}
			user, err := container.Store.CreateUser(ctx, &core.User{
				Email:        email,
				PasswordHash: hash,
				Status:       core.StatusActive,
				RoleID:       role.ID,
			})
			if err != nil {
				return fmt.Errorf("seed user: %w", err)
			}

			logger.L().Info("seeded super admin", logger.UserID(user.ID))
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "super-admin email")
	cmd.Flags().StringVar(&pass, "password", "", "super-admin password")
	return cmd
}

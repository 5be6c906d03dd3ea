package users

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var disableCmd = &cobra.Command{
	Use:   "disable <email>",
	Short: "Disable a user and revoke its sessions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := openBundle()
		if err != nil {
			return err
		}
		defer bundle.Close()

		if err := bundle.Service.DisableUser(context.Background(), args[0]); err != nil {
			return fmt.Errorf("failed to disable user: %w", err)
		}

		fmt.Printf("✓ Disabled %s and revoked its sessions\n", args[0])
		return nil
	},
}

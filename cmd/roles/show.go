package roles

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a role and its permissions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := openBundle()
		if err != nil {
			return err
		}
		defer bundle.Close()

		role, err := bundle.Service.GetRole(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("failed to get role: %w", err)
		}

		fmt.Printf("Role: %s\n", role.Name)
		fmt.Printf("ID: %s\n", role.ID)
		if role.Description != "" {
			fmt.Printf("Description: %s\n", role.Description)
		}
		fmt.Printf("Default: %t\n", role.IsDefault)
		fmt.Println("Permissions:")
		if len(role.Permissions) == 0 {
			fmt.Println("  (none)")
		}
		for _, p := range role.Permissions {
			fmt.Printf("  - %s:%s\n", p.Resource, p.Action)
		}
		return nil
	},
}

package users

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var setRoleCmd = &cobra.Command{
	Use:   "set-role <email> <role>",
	Short: "Assign a role to a user",
	Long: `Assigns the named role to the user, replacing the previous one. The change takes effect
on the user's next request: permissions are resolved per request, not cached in tokens.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := openBundle()
		if err != nil {
			return err
		}
		defer bundle.Close()

		user, err := bundle.Service.AssignRole(context.Background(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("failed to assign role: %w", err)
		}

		fmt.Printf("✓ Assigned role '%s' to %s\n", args[1], user.Email)
		return nil
	},
}

package roles

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var setDefaultCmd = &cobra.Command{
	Use:   "set-default <name>",
	Short: "Make a role the registration default",
	Long:  `New users created through registration or federated sign-in receive the default role. Exactly one role is the default at a time.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := openBundle()
		if err != nil {
			return err
		}
		defer bundle.Close()

		if err := bundle.Service.SetDefaultRole(context.Background(), args[0]); err != nil {
			return fmt.Errorf("failed to set default role: %w", err)
		}

		fmt.Printf("✓ '%s' is now the default role\n", args[0])
		return nil
	},
}

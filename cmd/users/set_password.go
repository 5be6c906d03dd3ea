package users

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var setPasswordCmd = &cobra.Command{
	Use:   "set-password <email>",
	Short: "Replace a user's local password and revoke its sessions",
	Args:  cobra.ExactArgs(1),
	Example: `  gatehouse users set-password admin@example.com --stdin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		password := passwordFlag
		if stdinFlag {
			scanner := bufio.NewScanner(os.Stdin)
			fmt.Print("Enter new password: ")
			if scanner.Scan() {
				password = scanner.Text()
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
		}
		if password == "" {
			return fmt.Errorf("password is required (use --password or --stdin)")
		}

		bundle, err := openBundle()
		if err != nil {
			return err
		}
		defer bundle.Close()

		if err := bundle.Service.SetPassword(context.Background(), args[0], password); err != nil {
			return fmt.Errorf("failed to set password: %w", err)
		}

		fmt.Printf("✓ Password updated for %s; existing sessions were revoked\n", args[0])
		return nil
	},
}

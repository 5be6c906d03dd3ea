package roles

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List roles with their permissions and the permission catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := openBundle()
		if err != nil {
			return err
		}
		defer bundle.Close()

		roles, err := bundle.Service.ListRoles(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list roles: %w", err)
		}

		catalog, err := bundle.Service.ListPermissions(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list permissions: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tDEFAULT\tPERMISSIONS")
		for _, r := range roles {
			fmt.Fprintf(w, "%s\t%t\t%s\n", r.Name, r.IsDefault, formatPermissions(r.Permissions))
		}
		if err := w.Flush(); err != nil {
			return err
		}

		fmt.Println()
		w = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PERMISSION\tRESOURCE:ACTION\tDESCRIPTION")
		for _, p := range catalog {
			fmt.Fprintf(w, "%s\t%s:%s\t%s\n", p.Name, p.Resource, p.Action, p.Description)
		}
		return w.Flush()
	},
}

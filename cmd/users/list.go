package users

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List users with their roles",
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := openBundle()
		if err != nil {
			return err
		}
		defer bundle.Close()

		users, err := bundle.Service.ListUsers(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}

		roles, err := bundle.Service.ListRoles(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list roles: %w", err)
		}
		permsByRole := make(map[string][]string, len(roles))
		for _, r := range roles {
			for _, p := range r.Permissions {
				permsByRole[r.ID] = append(permsByRole[r.ID], p.Resource+":"+p.Action)
			}
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "EMAIL\tNAME\tROLE\tPERMISSIONS\tFEDERATED\tDISABLED\tLAST_LOGIN")
		for _, u := range users {
			role, perms := "-", "-"
			if u.Role != nil {
				role = u.Role.Name
				if granted := permsByRole[u.Role.ID]; len(granted) > 0 {
					perms = strings.Join(granted, ", ")
				}
			}
			lastLogin := "never"
			if u.LastLoginAt != nil {
				lastLogin = u.LastLoginAt.Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%t\t%s\n",
				u.Email,
				u.Name,
				role,
				perms,
				u.Federated,
				u.Disabled,
				lastLogin,
			)
		}
		return w.Flush()
	},
}

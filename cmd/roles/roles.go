package roles

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/terraconstructs/gatehouse/cmd/cmdutil"
	"github.com/terraconstructs/gatehouse/internal/auth"
	"github.com/terraconstructs/gatehouse/internal/config"
)

// RolesCmd is the parent command for role operations
var RolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "Inspect roles and choose the registration default",
}

func init() {
	RolesCmd.AddCommand(listCmd)
	RolesCmd.AddCommand(showCmd)
	RolesCmd.AddCommand(setDefaultCmd)
}

func openBundle() (*cmdutil.IAMServiceBundle, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cmdutil.NewIAMServiceBundle(cfg)
}

func formatPermissions(perms []auth.Permission) string {
	if len(perms) == 0 {
		return "-"
	}
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = p.Resource + ":" + p.Action
	}
	return strings.Join(out, ", ")
}

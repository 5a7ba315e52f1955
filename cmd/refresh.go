package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mbertho/scrapview/internal/utils"
	"github.com/mbertho/scrapview/pkg/refresh"
	"github.com/mbertho/scrapview/pkg/snapshot"
	"github.com/spf13/cobra"
)

// refreshCmd represents the refresh command
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Rebuild the snapshots from the current export, then exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := dataDir()
		if err != nil {
			return err
		}
		scope, _ := cmd.Flags().GetString("scope")

		store := snapshot.NewStore(dir)
		lock, err := utils.NewRefreshLock(dir)
		if err != nil {
			return err
		}
		runner := refresh.NewRunner(refreshConfig(dir), store, lock, nil)

		ctx := context.Background()
		var out refresh.Outcome
		switch scope {
		case "global":
			out = runner.RefreshGlobal(ctx)
		case "units":
			out = runner.RefreshUnits(ctx)
		case "all":
			out = runner.RefreshAll(ctx)
		default:
			return fmt.Errorf("unknown scope %q (want global, units or all)", scope)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
		if !out.Success {
			return fmt.Errorf("refresh failed: %s", out.Error)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd)
	refreshCmd.Flags().String("scope", "all", "What to rebuild: global, units or all")
}

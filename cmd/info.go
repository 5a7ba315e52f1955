package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/mbertho/scrapview/pkg/snapshot"
	"github.com/mbertho/scrapview/pkg/units"
	"github.com/spf13/cobra"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Prints the state of the cached snapshots.",
	Long:  "Prints the state of the cached snapshots.",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := dataDir()
		if err != nil {
			return err
		}
		store := snapshot.NewStore(dir)

		scopes := []string{snapshot.ScopeGlobal}
		for _, u := range units.Order {
			scopes = append(scopes, snapshot.UnitScope(u))
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "SCOPE\tEXISTS\tRECORDS\tSIZE\tCREATED\t")

		for _, scope := range scopes {
			info, err := store.Info(scope)
			if err != nil {
				return err
			}
			if !info.Exists {
				fmt.Fprintf(w, "%s\tno\t-\t-\t-\t\n", scope)
				continue
			}
			fmt.Fprintf(w, "%s\tyes\t%d\t%d\t%s\t\n",
				scope, info.RecordCount, info.SizeBytes, info.CreatedAt.Format("2006-01-02 15:04:05"))
		}

		w.Flush()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

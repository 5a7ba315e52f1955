package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/mbertho/scrapview/pkg/forms"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var formsCmd = &cobra.Command{
	Use:   "forms",
	Short: "Inspect the non-conformity forms database",
}

var formsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List non-conformity forms",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openFormsDB()
		if err != nil {
			return err
		}
		defer db.Close()

		status, _ := cmd.Flags().GetString("status")
		machine, _ := cmd.Flags().GetString("machine")
		search, _ := cmd.Flags().GetString("search")

		list, err := db.List(context.Background(), forms.ListOptions{
			Status:  status,
			Machine: machine,
			Search:  search,
		})
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No forms found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "NUMERO\tMACHINE\tMATERIAL\tREASON\tSTATUS\tPRIORITY\tCREATED\t")
		for _, f := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
				f.Numero, f.Machine, f.Material, f.Reason, f.Status, f.Priority,
				f.CreatedAt.Format("2006-01-02"))
		}
		w.Flush()
		return nil
	},
}

var formsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all forms as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openFormsDB()
		if err != nil {
			return err
		}
		defer db.Close()

		list, err := db.List(context.Background(), forms.ListOptions{})
		if err != nil {
			return err
		}

		outPath, _ := cmd.Flags().GetString("out")
		out := os.Stdout
		if outPath != "" {
			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}

		w := csv.NewWriter(out)
		if err := w.Write([]string{"numero", "machine", "material", "description", "reason", "status", "priority", "production_date", "unit_price", "created_at"}); err != nil {
			return err
		}
		for _, f := range list {
			rec := []string{
				f.Numero, f.Machine, f.Material, f.Description, f.Reason,
				f.Status, f.Priority, f.ProductionDate,
				strconv.FormatFloat(f.UnitPrice, 'f', -1, 64),
				f.CreatedAt.Format("2006-01-02 15:04:05"),
			}
			if err := w.Write(rec); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	},
}

func openFormsDB() (*forms.DB, error) {
	dir, err := dataDir()
	if err != nil {
		return nil, err
	}
	path := viper.GetString("forms.dbpath")
	if path == "" {
		path = filepath.Join(dir, "scrapview.sqlite")
	}
	return forms.Open(path)
}

func init() {
	rootCmd.AddCommand(formsCmd)
	formsCmd.AddCommand(formsListCmd)
	formsCmd.AddCommand(formsExportCmd)

	formsListCmd.Flags().String("status", "", "Filter by status (open, in_progress, closed)")
	formsListCmd.Flags().String("machine", "", "Filter by machine ID")
	formsListCmd.Flags().String("search", "", "Substring match on numero, material or description")
	formsExportCmd.Flags().String("out", "", "Output file (default stdout)")
}

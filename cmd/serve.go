package cmd

import (
	"context"
	"path/filepath"

	"github.com/mbertho/scrapview/internal/metrics"
	"github.com/mbertho/scrapview/internal/server"
	"github.com/mbertho/scrapview/internal/utils"
	"github.com/mbertho/scrapview/pkg/forms"
	"github.com/mbertho/scrapview/pkg/refresh"
	"github.com/mbertho/scrapview/pkg/snapshot"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scrapview API server with scheduled refreshes",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := dataDir()
		if err != nil {
			return err
		}
		listenAddr, _ := cmd.Flags().GetString("listen")
		if listenAddr == "" {
			listenAddr = viper.GetString("server.listen")
		}
		skipBoot, _ := cmd.Flags().GetBool("no-initial-refresh")

		store := snapshot.NewStore(dir)
		lock, err := utils.NewRefreshLock(dir)
		if err != nil {
			return err
		}
		mreg := metrics.NewRegistry()
		runner := refresh.NewRunner(refreshConfig(dir), store, lock, mreg)

		sched := refresh.NewScheduler(runner, viper.GetString("schedule.global"), viper.GetString("schedule.units"))
		ctx := context.Background()
		sched.Start(ctx)

		formsPath := viper.GetString("forms.dbpath")
		if formsPath == "" {
			formsPath = filepath.Join(dir, "scrapview.sqlite")
		}
		formStore, err := forms.Open(formsPath)
		if err != nil {
			return err
		}
		defer formStore.Close()

		// Warm the snapshots at boot so the API is usable before the
		// first scheduled run. Failures are logged, not fatal.
		if !skipBoot {
			go func() {
				out := sched.TriggerAll(ctx)
				if !out.Success {
					utils.Log.Warn("Initial refresh failed: ", out.Error)
				}
			}()
		}

		srv := server.New(store, sched, formStore, mreg)
		utils.Log.Info("Listening on ", listenAddr)
		return srv.Start(listenAddr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", "", "HTTP listen address (overrides server.listen)")
	serveCmd.Flags().Bool("no-initial-refresh", false, "Do not refresh snapshots at startup")
}

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mbertho/scrapview/internal/utils"
	"github.com/spf13/cobra"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `	                                _
	 ___  ___ _ __ __ _ _ ____  __(_) _____      __
	/ __|/ __| '__/ _` + "`" + ` | '_ \ \/ /| |/ _ \ \ /\ / /
	\__ \ (__| | | (_| | |_) >  < | |  __/\ V  V /
	|___/\___|_|  \__,_| .__/_/\_\|_|\___| \_/\_/
	                   |_|
`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "scrapview",
	Short: "Reject analytics for the production floor.",
	Long: LOGO + `scrapview ingests the daily quality export, enriches it with the
current price list and serves aggregated reject figures per machine,
production unit and reject reason.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.scrapview.yaml)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".scrapview")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.scrapview.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		}
	}

	viper.SetDefault("data_dir", ".")
	viper.SetDefault("source.path", "data/sap_export.xlsx")
	viper.SetDefault("source.sheet", "")
	viper.SetDefault("pricing.dir", "data")
	viper.SetDefault("pricing.prefix", "Liste de prix")
	viper.SetDefault("schedule.global", "03:00")
	viper.SetDefault("schedule.units", "08:30")
	viper.SetDefault("server.listen", ":3000")
	viper.SetDefault("forms.dbpath", "")

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}

// dataDir returns the configured data directory, created on demand.
func dataDir() (string, error) {
	dir := viper.GetString("data_dir")
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating data dir: %w", err)
	}
	return dir, nil
}

// resolvePath anchors relative local paths at the data directory.
// URLs and absolute paths pass through untouched.
func resolvePath(dir, p string) string {
	if p == "" || filepath.IsAbs(p) || strings.Contains(p, "://") {
		return p
	}
	return filepath.Join(dir, p)
}

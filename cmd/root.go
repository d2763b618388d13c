package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/urlmg/urlkeeper/internal/config"
)

// Cfg holds the loaded configuration, shared by all subcommands.
var Cfg *config.Config

// RootCmd is the base command. Subcommands register themselves in their own
// init functions, which keeps the packages free of import cycles.
var RootCmd = &cobra.Command{
	Use:   "urlkeeper",
	Short: "A bookmark management backend",
	Long: `urlkeeper is a bookmark/URL management backend: guests and
registered users save, tag and organize URLs, with OTP signup, ownership
migration and IndexNow search engine notification.`,
}

// Execute runs the CLI. Called from main.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

// initConfig loads configuration before any command runs. A missing config
// file is fine; defaults apply.
func initConfig() {
	var err error
	Cfg, err = config.LoadConfig()
	if err != nil {
		log.Printf("Warning: problem loading configuration: %v. Using default values.", err)
	}
}

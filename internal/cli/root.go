package cli

import (
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

// GlobalFlags contains global flags available for all commands
type GlobalFlags struct {
	Config  string
	DBPath  string
	Verbose bool
	JSON    bool
}

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "onboardly",
	Short: "Onboardly - CRM tenant provisioning service",
	Long: `Onboardly provisions tenant accounts in the upstream CRM platform:
it creates the account from a snapshot template, sets up the initial
admin user, prepares the client asset folder in cloud storage and
synchronizes branding fields from a template tenant, streaming progress
to the caller over SSE. A background scheduler keeps the stored OAuth
credentials fresh.

Use "onboardly [command] --help" for more information about a command.`,
}

// InitRoot initializes the root command with global flags
func InitRoot() {
	configPath := os.Getenv("ONBOARDLY_CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	dbPath := os.Getenv("ONBOARDLY_DB_PATH")
	if dbPath == "" {
		dbPath = "./data/onboardly.db"
	}

	RootCmd.PersistentFlags().StringVar(&globalFlags.Config, "config", configPath, "Path to configuration file")
	RootCmd.PersistentFlags().StringVar(&globalFlags.DBPath, "db", dbPath, "Path to SQLite database")
	RootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "Enable verbose output")
	RootCmd.PersistentFlags().BoolVar(&globalFlags.JSON, "json", false, "Output in JSON format")

	RootCmd.AddCommand(versionCmd)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of Onboardly",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion()
	},
}

var globalFlags GlobalFlags

// GetGlobalFlags returns the global flags
func GetGlobalFlags() GlobalFlags {
	return globalFlags
}

func printVersion() {
	info := GetVersionInfo()
	println("Onboardly Version:", info.Version)
	println("Go Version:", info.GoVersion)
	println("OS/Arch:", info.OS+"/"+info.Arch)
}

// VersionInfo contains version information
type VersionInfo struct {
	Version   string
	GoVersion string
	OS        string
	Arch      string
}

// GetVersionInfo returns version information
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:   "0.1.0",
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

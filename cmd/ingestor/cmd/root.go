package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"golang-ledger-ingestion/cmd/ingestor/config"
	"golang-ledger-ingestion/internal/storage"
)

var (
	cfgFile    string
	outputFile string
	version    = "dev"
	commit     = "unknown"
	date       = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ingestor",
	Short: "Merchant ledger ingestion tool",
	Long: `Ingestor captures a merchant's money movements from payment app
notifications, bank SMS, forwarded messages and bank statement exports into
one local ledger, without counting the same payment twice.

Examples:
  ingestor poll --interval 30s
  ingestor sms --input inbox.json
  ingestor forward --text "Rs.5000 credited to A/c XX1234 ..."
  ingestor import --file statement.csv
  ingestor eod summary --language hi
  ingestor eod reply --text "total 48000"
  ingestor health
  ingestor platform summary --platform Swiggy --days 7`,
	Version:       getVersionString(),
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)
	config.SetDefaults(viper.GetViper())

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (optional)")
	flags.BoolP(config.KeyVerbose, "v", false, "verbose output")
	flags.String(config.KeyDB, storage.DefaultConfig().Path, "path to the ledger database")
	flags.StringP(config.KeyLanguage, "l", "en", "language for owner-facing messages")
	flags.String(config.KeyLogLevel, "warn", "log level: debug, info, warn, error")
	flags.String(config.KeyLogFormat, "text", "log format: text, json")
	flags.StringP(config.KeyOutputFormat, "f", "console", "output format: console, json, csv")
	flags.StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")
	flags.String(config.KeyTimezone, config.DefaultTimezone, "timezone for events without one")
	flags.Int(config.KeyRetentionDays, 30, "days to keep processed-event records")

	for _, key := range []string{
		config.KeyVerbose, config.KeyDB, config.KeyLanguage, config.KeyLogLevel,
		config.KeyLogFormat, config.KeyOutputFormat, config.KeyTimezone, config.KeyRetentionDays,
	} {
		viper.BindPFlag(key, flags.Lookup(key))
	}
}

// initConfig reads in config file and ENV variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)

		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
			os.Exit(4)
		}

		if viper.GetBool(config.KeyVerbose) {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	}

	// INGESTOR_LOG_LEVEL sets log-level
	viper.SetEnvPrefix("INGESTOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}

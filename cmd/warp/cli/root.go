package cli

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// Execute creates the root command tree and runs it. An interrupt cancels
// the running command; migrations stop after the current change set.
func Execute(version, commit, date string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "warp",
		Short: "Move schemas and data between databases",
		Long: `Warp reverse-engineers a database into a portable XML change log, applies
change logs exactly once per database, and reloads data into existing schemas.

Supported vendors: postgresql, mysql, mariadb, oracle, h2, derby, sqlite`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./warp.yaml)")
	flags.StringP("connection", "c", "", "connection name from the config file")
	flags.String("vendor", "", "vendor of an ad-hoc connection (with --dsn)")
	flags.String("dsn", "", "data source name of an ad-hoc connection")
	flags.Bool("ask-password", false, "prompt for the connection password")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text or json")

	viper.BindPFlag("connection", flags.Lookup("connection"))
	viper.BindPFlag("vendor", flags.Lookup("vendor"))
	viper.BindPFlag("dsn", flags.Lookup("dsn"))
	viper.BindPFlag("log.level", flags.Lookup("log-level"))
	viper.BindPFlag("log.format", flags.Lookup("log-format"))

	cobra.OnInitialize(initConfig)

	cmd.AddCommand(newDumpCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newExecCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))

	return cmd
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("warp")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.warp")
	}

	viper.SetEnvPrefix("WARP")
	viper.AutomaticEnv()
	viper.ReadInConfig() // Ignore error - config file is optional
}

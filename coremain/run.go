package coremain

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/evalfun/zonesync/mlog"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

// Run executes the command line and returns an error when the process
// should exit non-zero.
func Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:          "zonesync",
		Short:        "Copy DNS zones into a NetBox DNS directory by zone transfer",
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file, environment variables override it")

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync of every configured zone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, lg, err := loadConfigAndLogger(cfgPath)
			if err != nil {
				return err
			}
			defer lg.Sync()
			if err := cfg.Validate(); err != nil {
				lg.Error("invalid config", zap.Error(err))
				return err
			}
			return runSync(cmd.Context(), cfg, lg)
		},
	}

	var listen string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the sync journal over http",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, lg, err := loadConfigAndLogger(cfgPath)
			if err != nil {
				return err
			}
			defer lg.Sync()
			return serveJournal(cmd.Context(), cfg, lg, listen)
		},
	}
	serveCmd.Flags().StringVarP(&listen, "listen", "l", "127.0.0.1:8080", "http listen address")

	journalCmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the sync journal",
	}
	journalCmd.AddCommand(serveCmd)

	root.AddCommand(syncCmd, journalCmd, newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print out version info and exit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func loadConfigAndLogger(path string) (*Config, *zap.Logger, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		mlog.L().Error("fail to load config", zap.Error(err))
		return nil, nil, err
	}
	lg, err := mlog.NewLogger(cfg.Log)
	if err != nil {
		mlog.L().Error("fail to init logger", zap.Error(err))
		return nil, nil, err
	}
	return cfg, lg, nil
}

// Package commands implements the reelhubctl subcommands.
package commands

import (
	"context"
	"fmt"
	"os"

	"reelhub/internal/bootstrap"
	"reelhub/internal/config"
	"reelhub/internal/repository"
	"reelhub/internal/service"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	// Global flags
	outputFormat string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "reelhubctl",
	Short: "Maintenance tool for the reelhub backend",
	Long: `reelhubctl audits and repairs denormalized counters, cleans up
orphaned rows, runs migrations and seeds development data.

Examples:
  reelhubctl audit                 # report counter drift
  reelhubctl audit --fix -o json   # repair drift and print the report
  reelhubctl orphans --cleanup     # delete rows whose parent is gone
  reelhubctl delete-user 42        # cascade-delete a user`,
	SilenceUsage: true,
	Version:      "0.1.0",
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json or yaml")
}

// env is what a subcommand runs against.
type env struct {
	db    *gorm.DB
	svc   *service.Services
	close func() error
}

// openEnv loads configuration and connects. Tests replace it.
var openEnv = func(ctx context.Context, opts bootstrap.Options) (*env, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	rt, err := bootstrap.InitRuntime(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}
	svc := service.New(repository.New(rt.DB), service.OptionsFromConfig(cfg, rt.Assets))
	return &env{db: rt.DB, svc: svc, close: rt.Close}, nil
}

// withEnv opens the environment, runs fn and closes it.
func withEnv(cmd *cobra.Command, opts bootstrap.Options, fn func(ctx context.Context, e *env) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	e, err := openEnv(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if e.close != nil {
			_ = e.close()
		}
	}()
	return fn(ctx, e)
}

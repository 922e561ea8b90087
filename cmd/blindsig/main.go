// Command blindsig runs blind signature sessions between requesters and a
// signer inside a single process.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/taurusgroup/blind-sig/pkg/hash"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "blindsig",
		Short:        "RSA blind signatures",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "TOML configuration file")
	root.PersistentFlags().String("log-level", DefaultConfig().LogLevel, "log level")
	root.AddCommand(newDemoCmd(), newHashesCmd())
	return root
}

func newDemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run concurrent sessions against an in-process signer",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := cmd.Flags().GetString("config")
			if err != nil {
				return err
			}
			cfg, err := LoadConfig(path)
			if err != nil {
				return err
			}
			if err = applyFlags(cmd, cfg); err != nil {
				return err
			}
			if err = cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			report, err := RunDemo(ctx, cfg, cfg.Logger())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d/%d sessions verified, %d audited\n",
				report.Verified, report.Sessions, report.Audited)
			return nil
		},
	}
	registerFlags(cmd)
	return cmd
}

func newHashesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hashes",
		Short: "List the supported hash functions",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range hash.Names() {
				suffix := ""
				if name == hash.Default.String() {
					suffix = " (default)"
				}
				fmt.Fprintln(cmd.OutOrStdout(), name+suffix)
			}
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

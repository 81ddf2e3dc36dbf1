package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"punktlich/internal/provision"
)

var (
	provisionManifest string
	provisionDryRun   bool
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Create the dashboard space and set its secrets and variables",
	Long: `Register the dashboard deployment described by the space manifest with the
hosting provider. Secret values are read from the environment. An existing
space is updated in place.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		path := cfg.SpaceManifest
		override(cmd.Flags(), "manifest", &path, provisionManifest)
		m, err := provision.LoadManifest(path)
		if err != nil {
			return err
		}
		if err := m.ResolveSecrets(os.LookupEnv); err != nil && !provisionDryRun {
			return err
		}

		var opts []provision.Option
		if provisionDryRun {
			opts = append(opts, provision.DryRun(cmd.OutOrStdout()))
		}
		res, err := provision.NewProvisioner(cfg.HFAPIURL, cfg.HFToken, opts...).Register(ctx, m)
		if err != nil {
			return err
		}

		state := "updated"
		if res.Created {
			state = "created"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "space %s %s: %d secrets, %d variables\n",
			res.RepoID, state, res.SecretsSet, res.VariablesSet)
		return nil
	},
}

func init() {
	provisionCmd.Flags().StringVar(&provisionManifest, "manifest", "", "space manifest (overrides SPACE_MANIFEST)")
	provisionCmd.Flags().BoolVar(&provisionDryRun, "dry-run", false, "print the requests without sending them")
	rootCmd.AddCommand(provisionCmd)
}

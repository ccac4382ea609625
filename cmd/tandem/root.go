package main

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "TANDEM"

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tandem",
		Short:         "Lock-step master/slave co-simulation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newMasterCmd(),
		newSlaveCmd(),
		newLauncherCmd(),
	)
	return rootCmd
}

// bindFlags makes the flags of the command overridable by TANDEM_* environment variables.
func bindFlags(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, errors.WithStack(err)
	}
	return v, nil
}

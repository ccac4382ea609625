package main

import (
	"net"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/tandem"
)

func newLauncherCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "launcher",
		Short: "Starts slaves on request of masters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := bindFlags(cmd)
			if err != nil {
				return err
			}

			binary := v.GetString("binary")
			if binary == "" {
				if binary, err = os.Executable(); err != nil {
					return errors.WithStack(err)
				}
			}

			listen := v.GetString("listen")
			ls, err := net.Listen("tcp", listen)
			if err != nil {
				return errors.Wrapf(tandem.ErrConfig, "listening on %s: %s", listen, err)
			}

			logger.Get(cmd.Context()).Info("Launcher started", zap.String("address", ls.Addr().String()),
				zap.String("binary", binary))
			return tandem.RunLauncher(cmd.Context(), ls, tandem.LauncherConfig{
				MaxMessageSize: v.GetUint64("max-message-size"),
			}, tandem.ExecSpawner{Binary: binary})
		},
	}

	cmd.Flags().String("listen", "localhost:7700", "address accepting run requests")
	cmd.Flags().String("binary", "", "binary started as slave, this executable if empty")
	cmd.Flags().Uint64("max-message-size", 0, "maximum size of a run request")
	return cmd
}

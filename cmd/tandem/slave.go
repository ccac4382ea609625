package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/outofforest/parallel"
	"github.com/outofforest/tandem"
	"github.com/outofforest/tandem/model"
	"github.com/outofforest/tandem/transport"
	"github.com/outofforest/tandem/wire"
)

const modelSpringMass = "spring_mass"

func newSlaveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slave",
		Short: "Runs a sub-model in lock-step with the master",
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := bindFlags(cmd)
			if err != nil {
				return err
			}

			kind, err := transport.ParseKind(v.GetString("transport"))
			if err != nil {
				return errors.Wrap(tandem.ErrConfig, err.Error())
			}
			sm, err := newModel(v.GetString("model"), v.GetString("name"), v.GetString("model-config"))
			if err != nil {
				return err
			}

			slave := tandem.NewSlave(tandem.SlaveConfig{
				Master:           v.GetString("master"),
				Transport:        kind,
				Session:          wire.SessionID(v.GetUint64("session")),
				SharedMemoryDir:  v.GetString("shm-dir"),
				Timeout:          v.GetDuration("timeout"),
				HandshakeTimeout: v.GetDuration("handshake-timeout"),
				MaxMessageSize:   v.GetUint64("max-message-size"),
			}, sm.Values(), sm)

			metrics := v.GetString("metrics")
			return parallel.Run(cmd.Context(), func(ctx context.Context, spawn parallel.SpawnFn) error {
				if metrics != "" {
					spawn("metrics", parallel.Fail, func(ctx context.Context) error {
						return serveMetrics(ctx, metrics)
					})
				}
				spawn("slave", parallel.Exit, slave.Run)
				return nil
			})
		},
	}

	cmd.Flags().String("master", "localhost:7500", "callback address of the master")
	cmd.Flags().Uint64("session", 0, "session id assigned by the master")
	cmd.Flags().String("model", modelSpringMass, "sub-model to run")
	cmd.Flags().String("name", "plant", "object name of the model properties")
	cmd.Flags().String("model-config", "", "path to the YAML file with model parameters")
	cmd.Flags().String("transport", string(transport.Socket), "transport of the session: socket or shm")
	cmd.Flags().String("shm-dir", transport.DefaultSharedMemoryDir, "directory of shared memory segments")
	cmd.Flags().Duration("timeout", 30*time.Second, "maximum time to wait for the master between steps, 0 disables")
	cmd.Flags().Duration("handshake-timeout", 10*time.Second, "maximum time of every handshake exchange")
	cmd.Flags().Uint64("max-message-size", 0, "maximum size of a socket message")
	cmd.Flags().String("metrics", "", "address serving prometheus metrics")
	return cmd
}

func newModel(kind, name, path string) (*model.SpringMass, error) {
	if kind != modelSpringMass {
		return nil, errors.Wrapf(tandem.ErrConfig, "unknown model %q", kind)
	}

	cfg := model.DefaultConfig(name)
	if path != "" {
		var err error
		if cfg, err = model.LoadConfig(path, name); err != nil {
			return nil, errors.Wrap(tandem.ErrConfig, err.Error())
		}
	}
	sm, err := model.NewSpringMass(cfg)
	if err != nil {
		return nil, errors.Wrap(tandem.ErrConfig, err.Error())
	}
	return sm, nil
}

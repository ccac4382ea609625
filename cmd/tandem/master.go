package main

import (
	"context"
	"net"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
	"github.com/outofforest/tandem"
	"github.com/outofforest/tandem/config"
	"github.com/outofforest/tandem/link"
	"github.com/outofforest/tandem/wire"
)

func newMasterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "master",
		Short: "Runs the master driving the slaves configured in the topology file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := bindFlags(cmd)
			if err != nil {
				return err
			}

			cfg, err := config.Load(v.GetString("config"))
			if err != nil {
				return err
			}
			if listen := v.GetString("listen"); listen != "" {
				cfg.Master.Listen = listen
			}
			if metrics := v.GetString("metrics"); metrics != "" {
				cfg.Master.Metrics = metrics
			}
			return runMaster(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("config", "tandem.yaml", "path to the topology file")
	cmd.Flags().String("listen", "", "address accepting slave callbacks, overrides the topology file")
	cmd.Flags().String("metrics", "", "address serving prometheus metrics, overrides the topology file")
	return cmd
}

func runMaster(ctx context.Context, cfg *config.Config) error {
	values, err := cfg.Values()
	if err != nil {
		return err
	}

	m := tandem.NewMaster(cfg.MasterConfig(), values)
	defer m.Close()

	for _, ic := range cfg.InstanceConfigs() {
		if _, err := m.AddInstance(ic); err != nil {
			return err
		}
	}
	if err := m.Init(); err != nil {
		return err
	}

	ls, err := net.Listen("tcp", cfg.Master.Listen)
	if err != nil {
		return errors.Wrapf(tandem.ErrConfig, "listening on %s: %s", cfg.Master.Listen, err)
	}

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		if cfg.Master.Metrics != "" {
			spawn("metrics", parallel.Fail, func(ctx context.Context) error {
				return serveMetrics(ctx, cfg.Master.Metrics)
			})
		}
		spawn("master", parallel.Fail, func(ctx context.Context) error {
			return m.Run(ctx, ls)
		})
		spawn("clock", parallel.Exit, func(ctx context.Context) error {
			return runClock(ctx, m, cfg, values)
		})
		return nil
	})
}

// runClock steps the slaves from start to stop. The next step is taken at the earlier of the
// regular step and the time requested by the slaves.
func runClock(ctx context.Context, m *tandem.Master, cfg *config.Config, values *link.Values) error {
	log := logger.Get(ctx)

	if err := m.Ready(ctx); err != nil {
		return err
	}
	log.Info("All slaves connected", zap.Int("instances", len(m.Instances())))

	stop := wire.Timestamp(cfg.Master.Stop)
	for t := wire.Timestamp(cfg.Master.Start); t < stop; {
		next, err := m.Step(ctx, t)
		if err != nil {
			return err
		}

		fields := []zap.Field{
			zap.Stringer("time", t),
			zap.Stringer("next", next),
			zap.Int("hardEvents", m.HardEvents()),
		}
		for _, inst := range m.Instances() {
			for _, l := range inst.Table().Reads {
				if v, err := values.Float64(l.Name); err == nil {
					fields = append(fields, zap.Float64(l.Name, v))
				}
			}
		}
		log.Info("Step completed", fields...)

		proposed := t + wire.Timestamp(cfg.Master.Step)
		if next > t && next < proposed {
			proposed = next
		}
		t = proposed
	}

	if err := m.Finish(ctx); err != nil {
		return err
	}
	log.Info("Simulation finished", zap.Stringer("time", stop))
	return nil
}

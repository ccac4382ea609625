package tandem

import (
	"context"
	"net"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
	"github.com/outofforest/resonance"
	"github.com/outofforest/tandem/wire"
)

const launcherMaxMessageSize = 64 * 1024

// Spawner starts slave processes on request of the master. Tasks outliving the request, like
// waiting for the process to exit, are spawned into the launcher's group.
type Spawner interface {
	Spawn(ctx context.Context, req *wire.RunRequest, spawn parallel.SpawnFn) error
}

// LauncherConfig is the config of launcher.
type LauncherConfig struct {
	MaxMessageSize uint64
}

// RunLauncher serves requests to start slaves.
func RunLauncher(ctx context.Context, ls net.Listener, config LauncherConfig, spawner Spawner) error {
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = launcherMaxMessageSize
	}

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("server", parallel.Fail, func(ctx context.Context) error {
			return resonance.RunServer(ctx, ls, resonance.Config{MaxMessageSize: config.MaxMessageSize},
				func(ctx context.Context, c *resonance.Connection) error {
					return serveRun(ctx, c, spawner, spawn)
				})
		})
		return nil
	})
}

func serveRun(ctx context.Context, c *resonance.Connection, spawner Spawner, spawn parallel.SpawnFn) error {
	log := logger.Get(ctx)
	m := wire.NewMarshaller()

	msg, err := c.ReceiveProton(m)
	if err != nil {
		return err
	}
	req, ok := msg.(*wire.RunRequest)
	if !ok {
		return errors.New("run request expected")
	}

	log.Info("Starting slave",
		zap.String("model", req.Model),
		zap.String("master", req.Master),
		zap.String("transport", req.Transport),
		zap.Uint64("session", uint64(req.SessionID)))

	resp := &wire.RunResponse{}
	if err := spawner.Spawn(ctx, req, spawn); err != nil {
		log.Error("Starting slave failed", zap.String("model", req.Model), zap.Error(err))
		resp.Error = err.Error()
	}
	if err := c.SendProton(resp, m); err != nil {
		return err
	}

	// Master drops the connection once the response is read.
	_, _ = c.ReceiveProton(m)
	return nil
}

func requestRun(c *resonance.Connection, req *wire.RunRequest) error {
	m := wire.NewMarshaller()
	if err := c.SendProton(req, m); err != nil {
		return err
	}

	msg, err := c.ReceiveProton(m)
	if err != nil {
		return err
	}
	resp, ok := msg.(*wire.RunResponse)
	if !ok {
		return errors.New("run response expected")
	}
	if resp.Error != "" {
		return errors.Errorf("launcher refused: %s", resp.Error)
	}
	return nil
}

// ExecSpawner starts slaves as child processes of the binary.
type ExecSpawner struct {
	Binary string
}

// Spawn starts the slave process and reaps it once it exits. The process is killed when the
// launcher stops.
func (s ExecSpawner) Spawn(ctx context.Context, req *wire.RunRequest, spawn parallel.SpawnFn) error {
	cmd := exec.Command(s.Binary, SlaveArgs(req)...) //nolint:gosec
	if err := cmd.Start(); err != nil {
		return errors.WithStack(err)
	}

	log := logger.Get(ctx).With(zap.Int("pid", cmd.Process.Pid), zap.String("model", req.Model))
	spawn("reaper", parallel.Continue, func(ctx context.Context) error {
		stop := context.AfterFunc(ctx, func() {
			_ = cmd.Process.Kill()
		})
		defer stop()

		if err := cmd.Wait(); err != nil {
			log.Error("Slave exited", zap.Error(err))
			return nil
		}
		log.Info("Slave exited")
		return nil
	})
	return nil
}

// SlaveArgs builds the command line of the slave for the request.
func SlaveArgs(req *wire.RunRequest) []string {
	args := []string{
		"slave",
		"--master", req.Master,
		"--session", strconv.FormatUint(uint64(req.SessionID), 10),
		"--model", req.Model,
		"--transport", req.Transport,
	}
	return append(args, strings.Fields(req.Flags)...)
}

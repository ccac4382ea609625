//go:build linux

package tandem_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/qa"
	"github.com/outofforest/tandem"
	"github.com/outofforest/tandem/transport"
	"github.com/outofforest/tandem/wire"
)

func TestMasterWithSharedMemorySlaves(t *testing.T) {
	requireT := require.New(t)

	ctx := qa.NewContext(t)
	group := qa.NewGroup(ctx, t)

	dir := t.TempDir()
	topo := newTopology(t, group, tandem.MasterConfig{
		Timeout:          timeout,
		HandshakeTimeout: timeout,
		SharedMemoryDir:  dir,
	}, transport.SharedMemory)
	defer topo.master.Close()

	defer func() {
		group.Exit(nil)
		requireT.NoError(group.Wait())
	}()

	errA := spawnSlave(group, newSlave(t, tandem.SlaveConfig{
		Transport:       transport.SharedMemory,
		Session:         topo.instances[0].Session(),
		SharedMemoryDir: dir,
	}, "a.out", &follower{gain: 10, period: 1}))
	errB := spawnSlave(group, newSlave(t, tandem.SlaveConfig{
		Transport:       transport.SharedMemory,
		Session:         topo.instances[1].Session(),
		SharedMemoryDir: dir,
	}, "b.out", &follower{gain: 100, period: 2}))

	for i := range 20 {
		t1 := wire.Timestamp(i)
		requireT.NoError(topo.values.SetFloat64("ctl.setpoint", float64(i)))

		next, err := topo.master.Step(ctx, t1)
		requireT.NoError(err)
		requireT.Equal(t1+1, next)

		a, err := topo.values.Float64("a.out")
		requireT.NoError(err)
		requireT.InDelta(10*float64(i), a, 0)
		b, err := topo.values.Float64("b.out")
		requireT.NoError(err)
		requireT.InDelta(100*float64(i), b, 0)
	}

	requireT.NoError(topo.master.Finish(ctx))
	requireT.NoError(<-errA)
	requireT.NoError(<-errB)

	topo.master.Close()
	entries, err := os.ReadDir(dir)
	requireT.NoError(err)
	requireT.Empty(entries)
}

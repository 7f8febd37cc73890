package runtime

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/moiri/streamix-go/channel"
	"github.com/moiri/streamix-go/msg"
	"github.com/moiri/streamix-go/net"
	"github.com/moiri/streamix-go/pkg"
)

func TestInitAssignsRunID(t *testing.T) {
	r := New()
	require.NoError(t, r.Init(""))
	require.NotEmpty(t, r.RunID())
	require.Nil(t, r.Config())
}

func TestInitLoadsConfigFile(t *testing.T) {
	path := t.TempDir() + "/c.yaml"
	require.NoError(t, os.WriteFile(path, []byte("graph:\n  name: demo\n"), 0o644))

	r := New()
	require.NoError(t, r.Init(path))
	require.NotNil(t, r.Config())
	name, err := r.Config().GetString("graph.name")
	require.NoError(t, err)
	require.Equal(t, "demo", name)
}

func TestInitStartsAndCleanupStopsConfiguredCPUProfiling(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/c.yaml"
	require.NoError(t, os.WriteFile(path, []byte("profiling:\n  cpu_profile: "+dir+"/cpu.prof\n"), 0o644))

	r := New()
	require.NoError(t, r.Init(path))
	require.True(t, r.profiling)
	require.NoError(t, r.Cleanup())
	require.False(t, r.profiling)
}

func TestRegisterNetEnforcesCapacity(t *testing.T) {
	old := MaxNets
	MaxNets = 1
	defer func() { MaxNets = old }()

	r := New()
	n1 := net.New("a", func(*net.Net) (any, error) { return nil, nil },
		func(*net.Net, any) pkg.NetStatus { return pkg.NetEnd }, func(any) {})
	n2 := net.New("b", func(*net.Net) (any, error) { return nil, nil },
		func(*net.Net, any) pkg.NetStatus { return pkg.NetEnd }, func(any) {})

	require.NoError(t, r.RegisterNet(n1))
	require.ErrorIs(t, r.RegisterNet(n2), pkg.ErrNoResources)
}

func TestRunDrivesRegisteredNetsToCompletion(t *testing.T) {
	syn := channel.New("SYN", channel.KindFIFO, 1)

	var gotA int
	netA := net.New("A", func(*net.Net) (any, error) { return nil, nil },
		func(n *net.Net, _ any) pkg.NetStatus {
			in, _ := n.InputByName("syn")
			m, _ := in.Read()
			gotA = m.Payload.(int)
			return pkg.NetEnd
		}, func(any) {})
	netA.AddInput("syn", syn)

	netB := net.New("B", func(*net.Net) (any, error) { return nil, nil },
		func(n *net.Net, _ any) pkg.NetStatus {
			out, _ := n.OutputByName("syn")
			require.NoError(t, out.Write(msg.New("int", 7, 0, nil, nil, nil)))
			return pkg.NetEnd
		}, func(any) {})
	netB.AddOutput("syn", syn)

	r := New()
	require.NoError(t, r.Init(""))
	require.NoError(t, r.RegisterNet(netA))
	require.NoError(t, r.RegisterNet(netB))
	require.NoError(t, r.RegisterChannel(syn))

	require.NoError(t, r.Run())
	require.Equal(t, 7, gotA)
	require.NoError(t, r.Cleanup())
}

func TestRunRejectsConcurrentStart(t *testing.T) {
	r := New()
	require.NoError(t, r.Init(""))

	blockIn := channel.New("in", channel.KindFIFO, 1)
	blocked := net.New("blocked", func(*net.Net) (any, error) { return nil, nil },
		func(n *net.Net, _ any) pkg.NetStatus {
			in, _ := n.InputByName("in")
			_, _ = in.Read() // parks until the test ends it below
			return pkg.NetEnd
		}, func(any) {})
	blocked.AddInput("in", blockIn)
	require.NoError(t, r.RegisterNet(blocked))

	done := make(chan error, 1)
	go func() { done <- r.Run() }()

	require.Eventually(t, func() bool {
		err := r.RegisterNet(net.New("noop", func(*net.Net) (any, error) { return nil, nil },
			func(*net.Net, any) pkg.NetStatus { return pkg.NetEnd }, func(any) {}))
		return err == nil
	}, time.Second, 5*time.Millisecond, "RegisterNet should succeed before Run observes it")

	require.Eventually(t, func() bool {
		return r.Run() == pkg.ErrAlreadyRunning
	}, time.Second, 5*time.Millisecond)

	blockIn.EndSource()
	require.NoError(t, <-done)
}

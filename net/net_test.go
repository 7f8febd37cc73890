package net

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/moiri/streamix-go/channel"
	"github.com/moiri/streamix-go/msg"
	"github.com/moiri/streamix-go/pkg"
)

func noopInit(*Net) (any, error) { return nil, nil }
func noopCleanup(any)            {}

func TestUpdateStateEndsWhenTriggeringInputsDrained(t *testing.T) {
	n := New("n", noopInit, nil, noopCleanup)
	c := channel.New("in", channel.KindFIFO, 1)
	c.EndSource()
	n.AddInput("in", c)

	require.Equal(t, pkg.NetEnd, n.updateState(pkg.NetReturn))
}

func TestUpdateStateIgnoresNonTriggeringInputs(t *testing.T) {
	n := New("n", noopInit, nil, noopCleanup)
	c := channel.New("in", channel.KindFIFOD, 1)
	c.EndSource()
	n.AddInput("in", c)

	// FIFO_D never triggers termination: no outputs, one drained
	// decoupled-read input, so the net must keep running.
	require.Equal(t, pkg.NetContinue, n.updateState(pkg.NetReturn))
}

func TestUpdateStateEndsWhenAllOutputsDrained(t *testing.T) {
	n := New("n", noopInit, nil, noopCleanup)
	out := channel.New("out", channel.KindFIFO, 1)
	out.EndSink() // downstream consumer's terminate already ran
	n.AddOutput("out", out)

	require.Equal(t, pkg.NetEnd, n.updateState(pkg.NetReturn))
}

func TestUpdateStateContinuesWhilePartiallyDrained(t *testing.T) {
	n := New("n", noopInit, nil, noopCleanup)
	n.AddInput("a", channel.New("a", channel.KindFIFO, 1))
	drained := channel.New("b", channel.KindFIFO, 1)
	drained.EndSource()
	n.AddInput("b", drained)

	require.Equal(t, pkg.NetContinue, n.updateState(pkg.NetReturn))
}

func TestUpdateStatePassesThroughExplicitStatus(t *testing.T) {
	n := New("n", noopInit, nil, noopCleanup)
	require.Equal(t, pkg.NetContinue, n.updateState(pkg.NetContinue))
	require.Equal(t, pkg.NetEnd, n.updateState(pkg.NetEnd))
}

func TestTerminatePropagatesToPorts(t *testing.T) {
	n := New("n", noopInit, nil, noopCleanup)
	in := channel.New("in", channel.KindFIFO, 1)
	out := channel.New("out", channel.KindFIFO, 1)
	n.AddInput("in", in)
	n.AddOutput("out", out)

	n.terminate()

	require.Equal(t, channel.StateEnd, in.SinkState())
	require.Equal(t, channel.StateEnd, out.SourceState())
}

func TestInputByNameAndOutputByName(t *testing.T) {
	n := New("n", noopInit, nil, noopCleanup)
	c := channel.New("x", channel.KindFIFO, 1)
	n.AddInput("x", c)

	got, err := n.InputByName("x")
	require.NoError(t, err)
	require.Same(t, c, got)

	_, err = n.InputByName("missing")
	require.ErrorIs(t, err, pkg.ErrNoTarget)

	_, err = n.OutputByName("x")
	require.ErrorIs(t, err, pkg.ErrNoTarget)
}

// TestRunHandshake exercises a SYN/SYN_ACK/ACK handshake end to end:
// two nets started through Run, synchronized by a shared pre-init
// barrier, communicating only through channels.
func TestRunHandshake(t *testing.T) {
	syn := channel.New("SYN", channel.KindFIFO, 1)
	synAck := channel.New("SYN_ACK", channel.KindFIFO, 1)
	ack := channel.New("ACK", channel.KindFIFO, 1)

	var barrier sync.WaitGroup
	barrier.Add(2)

	var gotA int
	netA := New("A", noopInit, func(n *Net, _ any) pkg.NetStatus {
		in, _ := n.InputByName("syn")
		m, _ := in.Read()
		val := m.Payload.(int)

		out, _ := n.OutputByName("syn_ack")
		require.NoError(t, out.Write(msg.New("int", val-3, 0, nil, nil, nil)))

		ackIn, _ := n.InputByName("ack")
		m2, _ := ackIn.Read()
		gotA = m2.Payload.(int)
		return pkg.NetEnd
	}, noopCleanup)
	netA.AddInput("syn", syn)
	netA.AddOutput("syn_ack", synAck)
	netA.AddInput("ack", ack)

	var gotB int
	netB := New("B", noopInit, func(n *Net, _ any) pkg.NetStatus {
		out, _ := n.OutputByName("syn")
		require.NoError(t, out.Write(msg.New("int", 42, 0, nil, nil, nil)))

		in, _ := n.InputByName("syn_ack")
		m, _ := in.Read()
		gotB = m.Payload.(int)

		ackOut, _ := n.OutputByName("ack")
		require.NoError(t, ackOut.Write(msg.New("int", gotB+5, 0, nil, nil, nil)))
		return pkg.NetEnd
	}, noopCleanup)
	netB.AddOutput("syn", syn)
	netB.AddInput("syn_ack", synAck)
	netB.AddOutput("ack", ack)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); require.NoError(t, netA.Run(&barrier)) }()
	go func() { defer wg.Done(); require.NoError(t, netB.Run(&barrier)) }()
	wg.Wait()

	require.Equal(t, 39, gotB)
	require.Equal(t, 44, gotA)
}

func TestRunSkipsToTerminateOnInitError(t *testing.T) {
	cleaned := false
	n := New("n", func(*Net) (any, error) {
		return nil, pkg.ErrFatal
	}, func(*Net, any) pkg.NetStatus {
		t.Fatal("step must not run after init failure")
		return pkg.NetEnd
	}, func(any) { cleaned = true })

	out := channel.New("out", channel.KindFIFO, 1)
	n.AddOutput("out", out)

	var barrier sync.WaitGroup
	barrier.Add(1)
	err := n.Run(&barrier)

	require.ErrorIs(t, err, pkg.ErrFatal)
	require.True(t, cleaned)
	require.Equal(t, channel.StateEnd, out.SourceState())
}

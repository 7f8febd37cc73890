package tf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/moiri/streamix-go/channel"
	"github.com/moiri/streamix-go/msg"
	"github.com/moiri/streamix-go/profiler"
)

func drainEvent(t *testing.T, sink *profiler.ChanSink) profiler.Event {
	t.Helper()
	select {
	case e := <-sink.Events():
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for profiler event")
		return profiler.Event{}
	}
}

func TestTickSkipsUninitialisedInput(t *testing.T) {
	in := channel.New("in", channel.KindFIFOD, 1)
	out := channel.New("out", channel.KindFIFO, 1)
	g := New("g", 0)
	g.AddPair(in, out, true)

	require.NotPanics(t, g.Tick)
	require.Equal(t, 0, out.Count())
}

func TestTickForwardsFreshMessage(t *testing.T) {
	in := channel.New("in", channel.KindFIFO, 1)
	out := channel.New("out", channel.KindFIFO, 1)
	g := New("g", 0)
	g.AddPair(in, out, false)

	require.NoError(t, in.Write(msg.New("t", "hello", 5, nil, nil, nil)))
	g.Tick()

	require.Equal(t, uint64(0), g.MissedProduce())
	m, err := out.Read()
	require.NoError(t, err)
	require.Equal(t, "hello", m.Payload)
}

func TestTickCountsMissedProduceOnEmptyInput(t *testing.T) {
	sink := profiler.NewChanSink(4)
	in := channel.New("in", channel.KindFIFO, 1, channel.WithProfiler(sink))
	out := channel.New("out", channel.KindFIFO, 1)
	g := New("g", 0)
	g.AddPair(in, out, false)

	g.Tick()

	require.Equal(t, uint64(1), g.MissedProduce())
	require.Equal(t, 0, out.Count())
	require.Equal(t, profiler.ChanTTMissSrc, drainEvent(t, sink).Kind)
}

func TestTickCountsMissedConsumeOnOutputOverwrite(t *testing.T) {
	sink := profiler.NewChanSink(4)
	in := channel.New("in", channel.KindFIFO, 1)
	out := channel.New("out", channel.KindFIFO, 1, channel.WithProfiler(sink))
	g := New("g", 0)
	g.AddPair(in, out, false)

	require.NoError(t, out.Write(msg.New("t", "stale", 5, nil, nil, nil)))
	drainEvent(t, sink) // the write above

	require.NoError(t, in.Write(msg.New("t", "fresh", 5, nil, nil, nil)))
	g.Tick()

	require.Equal(t, uint64(1), g.MissedConsume())
	m, err := out.Read()
	require.NoError(t, err)
	require.Equal(t, "fresh", m.Payload)
	drainEvent(t, sink) // the overwrite's own chan.write event
	require.Equal(t, profiler.ChanTTMissSink, drainEvent(t, sink).Kind)
}

// TestTickPropagatesEnd exercises a TF pair whose producer writes one
// message and terminates. Within one tick the
// message reaches the output; within the next, the firewall observes the
// drained, ended input and propagates END to the output's source.
func TestTickPropagatesEnd(t *testing.T) {
	in := channel.New("in", channel.KindFIFO, 1)
	out := channel.New("out", channel.KindFIFO, 1)
	g := New("g", 0)
	g.AddPair(in, out, false)

	require.NoError(t, in.Write(msg.New("t", "last", 4, nil, nil, nil)))
	in.EndSource() // producer's terminate: this is its output channel

	g.Tick()
	m, err := out.Read()
	require.NoError(t, err)
	require.Equal(t, "last", m.Payload)
	require.NotEqual(t, channel.StateEnd, out.SourceState(), "END must not propagate before the input drains")

	g.Tick()
	require.Equal(t, channel.StateEnd, out.SourceState())

	_, err = out.Read()
	require.NoError(t, err)
}

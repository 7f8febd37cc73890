package rn

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/moiri/streamix-go/channel"
	"github.com/moiri/streamix-go/collector"
	"github.com/moiri/streamix-go/msg"
)

func TestRouteFansOutOriginalToLastCopyToRest(t *testing.T) {
	coll := collector.New(false)
	in := channel.New("in", channel.KindFIFO, 1, channel.WithCollector(coll))
	out0 := channel.New("out0", channel.KindFIFO, 1)
	out1 := channel.New("out1", channel.KindFIFO, 1)

	node := New("rn", coll, out0, out1)

	sent := msg.New("t", "A", 1, nil, nil, nil)
	require.NoError(t, in.Write(sent))

	ok, ended := node.Route()
	require.True(t, ok)
	require.False(t, ended)

	copyMsg, err := out0.Read()
	require.NoError(t, err)
	originalMsg, err := out1.Read()
	require.NoError(t, err)

	require.Equal(t, "A", copyMsg.Payload)
	require.Equal(t, "A", originalMsg.Payload)
	require.Equal(t, sent.ID(), originalMsg.ID(), "last output receives the original message, not a copy")
	require.NotEqual(t, sent.ID(), copyMsg.ID(), "every output but the last receives a deep copy")
}

func TestRouteDestroysMessageWhenNoOutputs(t *testing.T) {
	coll := collector.New(false)
	in := channel.New("in", channel.KindFIFO, 1, channel.WithCollector(coll))
	node := New("rn", coll)

	destroyed := false
	sent := msg.New("t", "x", 1, nil, func(any) { destroyed = true }, nil)
	require.NoError(t, in.Write(sent))

	ok, ended := node.Route()
	require.True(t, ok)
	require.False(t, ended)
	require.True(t, destroyed)
}

func TestRouteEndsWhenCollectorDrains(t *testing.T) {
	coll := collector.New(false)
	in := channel.New("in", channel.KindFIFO, 1, channel.WithCollector(coll))
	node := New("rn", coll, channel.New("out", channel.KindFIFO, 1))

	in.EndSource()

	ok, ended := node.Route()
	require.False(t, ok)
	require.True(t, ended)
}

// TestRouteFairRoundRobin exercises 3 inputs, 2 outputs, producers
// writing simultaneously: lastServed starts at -1 (collector.New's initial
// value), so the first scan begins at input 0 and inputs are serviced in
// order 0,1,2.
func TestRouteFairRoundRobin(t *testing.T) {
	coll := collector.New(false)
	ins := make([]*channel.Channel, 3)
	for i := range ins {
		ins[i] = channel.New("in", channel.KindFIFO, 1, channel.WithCollector(coll))
	}
	out0 := channel.New("out0", channel.KindFIFO, 4)
	out1 := channel.New("out1", channel.KindFIFO, 4)
	node := New("rn", coll, out0, out1)

	payloads := []string{"zero", "one", "two"}
	for i, p := range payloads {
		require.NoError(t, ins[i].Write(msg.New("t", p, len(p), nil, nil, nil)))
	}

	for range payloads {
		ok, ended := node.Route()
		require.True(t, ok)
		require.False(t, ended)
	}

	for _, p := range payloads {
		m0, err := out0.Read()
		require.NoError(t, err)
		require.Equal(t, p, m0.Payload)

		m1, err := out1.Read()
		require.NoError(t, err)
		require.Equal(t, p, m1.Payload)
	}
}

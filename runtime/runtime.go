package runtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/moiri/streamix-go/channel"
	"github.com/moiri/streamix-go/config"
	"github.com/moiri/streamix-go/net"
	"github.com/moiri/streamix-go/pkg"
	"github.com/moiri/streamix-go/pkg/prof"
	"github.com/moiri/streamix-go/profiler"
	"github.com/moiri/streamix-go/tf"
)

// MaxNets and MaxChannels cap the runtime's global tables. They are
// package variables rather than constants so tests can exercise the
// capacity check without registering the full count.
var (
	MaxNets     = 1000
	MaxChannels = 10000
)

// Option configures optional Runtime behavior at construction.
type Option func(*Runtime)

// WithProfilerSink attaches a profiler sink new channels and nets can be
// wired against; the runtime itself never emits profiler events, it only
// hands the sink to callers building their graph.
func WithProfilerSink(sink profiler.Sink) Option {
	return func(r *Runtime) { r.prof = sink }
}

// Runtime owns the statically-wired graph's global tables and drives its
// boot/run/stop lifecycle.
type Runtime struct {
	mu sync.Mutex

	runID uuid.UUID
	cfg   *config.Store
	prof  profiler.Sink

	nets     []*net.Net
	channels []*channel.Channel
	tfGroups []*tf.Group

	running   bool
	cancel    context.CancelFunc
	profiling bool
}

// New creates an empty Runtime. Call Init before registering any nets.
func New(opts ...Option) *Runtime {
	r := &Runtime{prof: profiler.NopSink{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunID returns the correlation id assigned at Init, used to tag logs
// and profiler output for one boot/run cycle.
func (r *Runtime) RunID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runID.String()
}

// Config returns the configuration store loaded by Init, or nil if Init
// was called with an empty configPath.
func (r *Runtime) Config() *config.Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// ProfilerSink returns the sink new channels and nets should be
// constructed with.
func (r *Runtime) ProfilerSink() profiler.Sink { return r.prof }

// Init assigns a fresh run id and, if configPath is non-empty, loads the
// graph's configuration document. It must be
// called exactly once, before Run.
func (r *Runtime) Init(configPath string) error {
	r.mu.Lock()
	r.runID = uuid.New()
	r.mu.Unlock()

	pkg.LogInfo(pkg.ComponentRuntime, "runtime init", "run_id", r.RunID())

	if configPath == "" {
		return nil
	}
	cfg := config.New()
	if err := cfg.LoadFile(configPath); err != nil {
		return err
	}
	r.mu.Lock()
	r.cfg = cfg
	r.mu.Unlock()

	if path, err := cfg.GetString("profiling.cpu_profile"); err == nil && path != "" {
		if err := prof.StartCPU(path); err != nil {
			return err
		}
		r.mu.Lock()
		r.profiling = true
		r.mu.Unlock()
		pkg.LogInfo(pkg.ComponentRuntime, "cpu profiling started", "path", path)
	}
	return nil
}

// RegisterNet adds n to the runtime's net table.
func (r *Runtime) RegisterNet(n *net.Net) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.nets) >= MaxNets {
		return pkg.ErrNoResources
	}
	r.nets = append(r.nets, n)
	return nil
}

// RegisterChannel adds c to the runtime's channel table so Cleanup
// destroys it at shutdown.
func (r *Runtime) RegisterChannel(c *channel.Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.channels) >= MaxChannels {
		return pkg.ErrNoResources
	}
	r.channels = append(r.channels, c)
	return nil
}

// RegisterTFGroup adds g to the set of temporal firewall groups started
// by Run.
func (r *Runtime) RegisterTFGroup(g *tf.Group) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tfGroups = append(r.tfGroups, g)
}

// WireProfilerPort designates net n's output port named outputName as
// its own profiler event channel, wired with a direct call instead of a
// declarative attribute lookup.
func (r *Runtime) WireProfilerPort(n *net.Net, outputName string) error {
	ch, err := n.OutputByName(outputName)
	if err != nil {
		return err
	}
	n.AttachProfilerPort(ch)
	return nil
}

// Run starts every registered net and temporal firewall group, each on
// its own goroutine, and blocks until every net has terminated and every
// temporal firewall group has returned. A pre-initialisation barrier
// guarantees every net's init completes before any net's step begins. A
// net goroutine's returned error surfaces through the returned error via
// errgroup; a panic inside a net is not recovered. Temporal firewall
// groups run until Stop cancels them, since they have no END state of
// their own to terminate on, so with any group registered Run returns
// only after Stop.
func (r *Runtime) Run() error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return pkg.ErrAlreadyRunning
	}
	r.running = true
	nets := append([]*net.Net(nil), r.nets...)
	groups := append([]*tf.Group(nil), r.tfGroups...)
	r.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	defer cancel()

	var barrier sync.WaitGroup
	barrier.Add(len(nets))

	eg, _ := errgroup.WithContext(ctx)
	for _, n := range nets {
		n := n
		eg.Go(func() error { return n.Run(&barrier) })
	}
	for _, g := range groups {
		g := g
		eg.Go(func() error {
			g.Run(ctx)
			return nil
		})
	}

	err := eg.Wait()

	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
	return err
}

// Stop cancels every running temporal firewall group. It does not force
// any net to terminate: unblocking happens exclusively via
// END state transitions issued from a net's own terminate, never via
// cancellation.
func (r *Runtime) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Cleanup destroys every registered channel's FIFO and clears the
// runtime's tables. Call it only after
// Run has returned.
func (r *Runtime) Cleanup() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return pkg.ErrAlreadyRunning
	}
	if r.profiling {
		prof.StopCPU()
		r.profiling = false
	}
	for _, c := range r.channels {
		c.Destroy()
	}
	r.nets = nil
	r.channels = nil
	r.tfGroups = nil
	return nil
}

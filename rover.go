package rover

import (
	"fmt"

	"github.com/roverlang/rover/bridge"
	"github.com/roverlang/rover/engine"
	"github.com/roverlang/rover/httpcore"
	"github.com/roverlang/rover/node"
	"github.com/roverlang/rover/signal"
)

// Config holds every tunable the serving core needs.
type Config struct {
	// Addr is the listener address, e.g. ":8080".
	Addr string

	// MaxBodySize caps request bodies before a 413 is returned.
	MaxBodySize int

	// Engine tunes the Event Engine (RequestTimeout, MaxBatch, the
	// backpressure water marks, buffer sizes). An Engine whose Addr is
	// empty is replaced as a whole by engine.DefaultConfig(Addr); one
	// with Addr set is used as given, zero fields included.
	Engine engine.Config

	// Debug toggles full error messages in 500 responses versus a
	// redacted production message.
	Debug bool
}

// App is the wired-together core: one Event Engine, one Router, one
// HandlerTable, and one Signal Runtime + Node Tree pair sharing the
// single cooperative thread the reactor drives.
type App struct {
	cfg      Config
	router   *httpcore.Router
	handlers *bridge.HandlerTable
	engine   *engine.Engine

	Runtime *signal.Runtime
	Tree    *node.Tree
}

// New constructs an App. Routes are registered with Route before
// calling Serve; Serve compiles nothing further, treating every
// registration before it as part of the router's one-time compile.
func New(cfg Config) *App {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = httpcore.MaxBodySize
	}
	if cfg.Engine.Addr == "" {
		cfg.Engine = engine.DefaultConfig(cfg.Addr)
	}
	bridge.Debug = cfg.Debug

	rt := signal.New()
	app := &App{
		cfg:      cfg,
		router:   httpcore.NewRouter(),
		handlers: bridge.NewHandlerTable(),
		Runtime:  rt,
		Tree:     node.NewTree(rt),
	}
	return app
}

// Route registers a handler for (method, pattern). Patterns use
// `:name` for a captured segment, per httpcore.Router's contract.
func (a *App) Route(method, pattern string, fn bridge.HandlerFunc) error {
	id := a.handlers.Register(fn)
	return a.router.AddRoute(method, pattern, id)
}

// Serve blocks running the reactor loop until shutdown.
func (a *App) Serve() error {
	pools := engine.NewPools(a.cfg.Engine)
	a.engine = engine.New(a.cfg.Engine, newDispatcher(a.router, a.handlers, a.cfg.MaxBodySize, pools))
	return a.engine.Run()
}

// RenderSink is the interface a renderer backend gives
// App so it can be driven automatically from every signal flush,
// instead of the host polling DrainRenderCommands itself. wsrender.Sink
// implements this.
type RenderSink interface {
	Drain(rt *signal.Runtime)
}

// AttachRenderer wires sink to fire once after every flush of a's
// Signal Runtime, so UI updates reach it without the host writing its
// own poll loop. Call this once during setup, before Serve.
func (a *App) AttachRenderer(sink RenderSink) {
	a.Runtime.SetFlushHook(func() { sink.Drain(a.Runtime) })
}

// Close stops the reactor.
func (a *App) Close() error {
	if a.engine == nil {
		return fmt.Errorf("rover: app was never started")
	}
	return a.engine.Close()
}

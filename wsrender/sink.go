// Package wsrender is the reference renderer sink spec.md §4.5 asks
// for: it consumes the node tree's RenderCommand stream and replays it
// to any number of connected browsers over WebSocket, using
// gorilla/websocket as its transport. It is an external
// collaborator in spec.md §1's sense — the core only needs the
// command stream to be serializable, and this package is one of
// potentially many implementations of "apply(cmd, arena, layout)".
package wsrender

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/roverlang/rover/node"
	"github.com/roverlang/rover/signal"
)

// Sink fans a node tree's render-command stream out to every
// currently-connected viewer. One Sink serves one Tree/Runtime pair.
type Sink struct {
	upgrader websocket.Upgrader

	mu       sync.Mutex
	viewers  map[*viewer]struct{}
	snapshot func() []node.RenderCommand // replay for newly-connected viewers
}

type viewer struct {
	conn *websocket.Conn
	out  chan []node.RenderCommand
}

// New returns a Sink. snapshot, if non-nil, is called once per new
// connection to obtain the commands that replay the tree's current
// state before the live stream starts.
func New(snapshot func() []node.RenderCommand) *Sink {
	return &Sink{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The render stream is same-origin script UI, not a public
			// API; the embedding host is expected to front this with
			// its own auth/CORS policy (an external-collaborator
			// concern per spec.md §1), so CheckOrigin accepts every
			// origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		viewers:  make(map[*viewer]struct{}),
		snapshot: snapshot,
	}
}

// Handler upgrades the request to a WebSocket and keeps the
// connection alive for the life of the viewer, writing every
// subsequently published batch of render commands as one JSON frame
// per batch. It never returns until the connection closes, so callers
// register it against a route served outside the single-threaded
// reactor (e.g. on its own net/http mux), matching the "if the host
// wishes to expose workers, they must post commands to this thread
// via a channel" boundary spec.md §4.4 draws around the runtime.
func (s *Sink) Handler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("wsrender: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	v := &viewer{conn: conn, out: make(chan []node.RenderCommand, 64)}
	s.register(v)
	defer s.unregister(v)

	if s.snapshot != nil {
		if cmds := s.snapshot(); len(cmds) > 0 {
			if err := s.write(conn, cmds); err != nil {
				return
			}
		}
	}

	// Drain incoming frames only to notice the connection closing;
	// render streams are one-directional (core -> viewer).
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				close(v.out)
				return
			}
		}
	}()

	for cmds := range v.out {
		if err := s.write(conn, cmds); err != nil {
			return
		}
	}
}

func (s *Sink) write(conn *websocket.Conn, cmds []node.RenderCommand) error {
	wire := make([]wireCommand, len(cmds))
	for i, c := range cmds {
		wire[i] = toWire(c)
	}
	return conn.WriteJSON(wire)
}

func (s *Sink) register(v *viewer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewers[v] = struct{}{}
}

func (s *Sink) unregister(v *viewer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.viewers, v)
}

// Publish fans cmds out to every connected viewer's buffered channel.
// When a viewer's channel is full, that viewer misses this batch (it
// stays connected) rather than blocking the publisher — a slow browser
// tab must not stall the signal runtime's flush.
func (s *Sink) Publish(cmds []node.RenderCommand) {
	if len(cmds) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for v := range s.viewers {
		select {
		case v.out <- cmds:
		default:
			log.Printf("wsrender: viewer channel full, dropping %d command(s)", len(cmds))
		}
	}
}

// Drain pulls every pending render command off rt and republishes it as concrete node.RenderCommand
// values, recovering the type boxing node.Tree.OnNodeChange applies at
// the signal/node package boundary. Callers invoke this once per flush
// on the single reactor thread, so Publish is the only cross-thread
// handoff this package performs.
func (s *Sink) Drain(rt *signal.Runtime) {
	raw := rt.DrainRenderCommands()
	if len(raw) == 0 {
		return
	}
	cmds := make([]node.RenderCommand, 0, len(raw))
	for _, r := range raw {
		if c, ok := r.(node.RenderCommand); ok {
			cmds = append(cmds, c)
		}
	}
	s.Publish(cmds)
}

// wireCommand is the JSON-serializable envelope for one RenderCommand,
// tagged with a discriminant so a browser-side renderer can dispatch
// on Type without reflecting over Go struct shapes.
type wireCommand struct {
	Type     string   `json:"type"`
	Node     uint32   `json:"node,omitempty"`
	Content  string   `json:"content,omitempty"`
	Parent   uint32   `json:"parent,omitempty"`
	Index    int      `json:"index,omitempty"`
	Child    uint32   `json:"child,omitempty"`
	Root     uint32   `json:"root,omitempty"`
	Children []uint32 `json:"children,omitempty"`
	Property string   `json:"property,omitempty"`
	Value    string   `json:"value,omitempty"`
}

func toWire(c node.RenderCommand) wireCommand {
	switch v := c.(type) {
	case node.UpdateText:
		return wireCommand{Type: "update_text", Node: uint32(v.Node), Content: string(v.Content)}
	case node.Show:
		return wireCommand{Type: "show", Node: uint32(v.Node)}
	case node.Hide:
		return wireCommand{Type: "hide", Node: uint32(v.Node)}
	case node.InsertChild:
		return wireCommand{Type: "insert_child", Parent: uint32(v.Parent), Index: v.Index, Child: uint32(v.Child)}
	case node.RemoveChild:
		return wireCommand{Type: "remove_child", Parent: uint32(v.Parent), Index: v.Index}
	case node.MountTree:
		return wireCommand{Type: "mount_tree", Root: uint32(v.Root)}
	case node.ReplaceEach:
		children := make([]uint32, len(v.Children))
		for i, id := range v.Children {
			children[i] = uint32(id)
		}
		return wireCommand{Type: "replace_each", Node: uint32(v.Node), Children: children}
	case node.UpdateStyle:
		return wireCommand{Type: "update_style", Node: uint32(v.Node), Property: v.Property, Value: v.Value}
	default:
		return wireCommand{Type: "unknown"}
	}
}

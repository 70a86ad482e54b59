package lisp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"sort"
	"sync"
	"time"
)

// ErrShutdown is returned for requests that arrive after Shutdown.
var ErrShutdown = errors.New("core is shut down")

// Options configures how the daemon evaluates programs.
type Options struct {
	Permissive bool
	MaxDepth   int
	MaxTraces  int
}

// Core is the daemon: it accepts framed JSON requests on a unix socket and
// evaluates them on a single actor goroutine. Every "run" gets a fresh root
// Env; "eval" requests share one session Env, which is only ever touched by
// the actor.
type Core struct {
	opts      Options
	store     *Store // optional
	session   *Env
	requests  chan coreRequest
	listener  net.Listener
	traces    []Trace
	maxTraces int

	done      chan struct{} // closed by Shutdown
	actorDone chan struct{} // closed when actorLoop returns
	closeOnce sync.Once

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

type coreRequest struct {
	msg      map[string]any
	response chan map[string]any
}

// NewCore listens on sockPath. store may be nil, in which case history is
// kept in memory only.
func NewCore(sockPath string, store *Store, opts Options) (*Core, error) {
	// Clean up a stale socket
	os.Remove(sockPath)

	c := newCore(store, opts)
	listener, err := net.Listen("unix", sockPath)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	c.listener = listener
	go c.actorLoop()
	return c, nil
}

func newCore(store *Store, opts Options) *Core {
	if opts.MaxDepth == 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.MaxTraces <= 0 {
		opts.MaxTraces = 1000
	}
	return &Core{
		opts:      opts,
		store:     store,
		session:   NewRootEnv(),
		requests:  make(chan coreRequest, 64),
		maxTraces: opts.MaxTraces,
		done:      make(chan struct{}),
		actorDone: make(chan struct{}),
		conns:     make(map[net.Conn]struct{}),
	}
}

// Run accepts connections. Blocks until Shutdown closes the listener.
func (c *Core) Run() {
	for {
		conn, err := c.listener.Accept()
		if err != nil {
			return
		}
		if !c.track(conn) {
			conn.Close()
			return
		}
		go c.handleConnection(conn)
	}
}

// Shutdown stops accepting connections, closes the open ones, waits for the
// actor to finish its current request and then closes the store. It is safe
// to call more than once.
func (c *Core) Shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.listener.Close()

		c.mu.Lock()
		for conn := range c.conns {
			conn.Close()
		}
		c.mu.Unlock()

		<-c.actorDone
		if c.store != nil {
			if err := c.store.Close(); err != nil {
				log.Printf("close store: %v", err)
			}
		}
	})
}

// track registers an open connection; it reports false once Shutdown has
// started.
func (c *Core) track(conn net.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.done:
		return false
	default:
	}
	c.conns[conn] = struct{}{}
	return true
}

func (c *Core) untrack(conn net.Conn) {
	c.mu.Lock()
	delete(c.conns, conn)
	c.mu.Unlock()
}

// actorLoop is the single goroutine that owns the session Env, the history
// and the store.
func (c *Core) actorLoop() {
	defer close(c.actorDone)
	for {
		select {
		case req := <-c.requests:
			req.response <- c.handleRequest(req.msg)
		case <-c.done:
			return
		}
	}
}

func (c *Core) sendToActor(msg map[string]any) (map[string]any, error) {
	resp := make(chan map[string]any, 1)
	select {
	case c.requests <- coreRequest{msg: msg, response: resp}:
	case <-c.done:
		return nil, ErrShutdown
	}
	select {
	case r := <-resp:
		return r, nil
	case <-c.actorDone:
		return nil, ErrShutdown
	}
}

func (c *Core) handleConnection(conn net.Conn) {
	defer conn.Close()
	defer c.untrack(conn)

	for {
		msg, err := ReadMsg(conn)
		if err != nil {
			if err != io.EOF && !c.shuttingDown() {
				log.Printf("read client message: %v", err)
			}
			return
		}

		resp, err := c.sendToActor(msg)
		if err != nil {
			return
		}
		if err := WriteMsg(conn, resp); err != nil {
			log.Printf("write client response: %v", err)
			return
		}
	}
}

func (c *Core) shuttingDown() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Core) handleRequest(msg map[string]any) map[string]any {
	id, _ := msg["id"].(string)

	op, _ := msg["op"].(string)
	switch op {
	case "":
		return c.coreManual(id)
	case "run":
		return c.handleRun(id, msg)
	case "eval":
		return c.handleEval(id, msg)
	case "reset":
		c.session = NewRootEnv()
		return map[string]any{"id": id, "ok": true, "value": "reset"}
	case "history":
		return c.handleHistory(id, msg)
	case "clear":
		return c.handleClear(id)
	default:
		return errorResponse(id, fmt.Sprintf("unknown op: %s", op))
	}
}

func (c *Core) coreManual(id string) map[string]any {
	names := make([]string, 0)
	for name := range Builtins() {
		names = append(names, name)
	}
	sort.Strings(names)
	builtins := make([]any, len(names))
	for i, n := range names {
		builtins[i] = n
	}
	return map[string]any{
		"id": id,
		"ok": true,
		"value": map[string]any{
			"name":    "lisp-core",
			"version": "1.0.0",
			"ops": map[string]any{
				"run":     "Run a program in a fresh environment. Params: src (string)",
				"eval":    "Evaluate in the persistent session and return the last value. Params: src (string)",
				"reset":   "Discard the session environment.",
				"history": "Recent runs, oldest first. Params: limit (int, optional)",
				"clear":   "Delete all recorded runs.",
			},
			"builtins": builtins,
		},
	}
}

func (c *Core) newEvaluator(stdout io.Writer) *Evaluator {
	return &Evaluator{Stdout: stdout, Permissive: c.opts.Permissive, MaxDepth: c.opts.MaxDepth}
}

func (c *Core) handleRun(id string, msg map[string]any) map[string]any {
	src, ok := msg["src"].(string)
	if !ok {
		return errorResponse(id, "run: missing 'src' string")
	}
	trace := c.execute("run", src, NewRootEnv())
	return map[string]any{"id": id, "ok": true, "value": trace.ToMap()}
}

func (c *Core) handleEval(id string, msg map[string]any) map[string]any {
	src, ok := msg["src"].(string)
	if !ok {
		return errorResponse(id, "eval: missing 'src' string")
	}
	trace := c.execute("eval", src, c.session)
	if !trace.OK() {
		return errorResponse(id, trace.Errors[0])
	}
	return map[string]any{"id": id, "ok": true, "value": trace.ToMap()}
}

// execute evaluates src against env and records the run.
func (c *Core) execute(op, src string, env *Env) *Trace {
	var out bytes.Buffer
	ev := c.newEvaluator(&out)
	trace := &Trace{
		Op:        op,
		Source:    src,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	start := time.Now()
	if op == "eval" {
		v, err := ev.EvalString(src, env)
		if err != nil {
			trace.Errors = []string{err.Error()}
		} else {
			trace.Result = v.Show()
		}
	} else {
		for _, err := range ev.RunSource(src, env) {
			trace.Errors = append(trace.Errors, err.Error())
		}
	}
	trace.Duration = time.Since(start)
	trace.Output = out.String()
	c.appendTrace(trace)
	return trace
}

func (c *Core) handleHistory(id string, msg map[string]any) map[string]any {
	limit := 0
	if l, ok := msg["limit"].(float64); ok {
		limit = int(l)
	}
	traces, err := c.history(limit)
	if err != nil {
		return errorResponse(id, err.Error())
	}
	result := make([]any, len(traces))
	for i := range traces {
		result[i] = traces[i].ToMap()
	}
	return map[string]any{"id": id, "ok": true, "value": result}
}

func (c *Core) history(limit int) ([]Trace, error) {
	if c.store != nil {
		return c.store.Recent(limit)
	}
	n := len(c.traces)
	if limit > 0 && limit < n {
		n = limit
	}
	return append([]Trace(nil), c.traces[len(c.traces)-n:]...), nil
}

func (c *Core) handleClear(id string) map[string]any {
	if c.store != nil {
		if err := c.store.Clear(); err != nil {
			return errorResponse(id, err.Error())
		}
	}
	c.traces = nil
	return map[string]any{"id": id, "ok": true, "value": "cleared"}
}

func errorResponse(id, errMsg string) map[string]any {
	return map[string]any{"id": id, "ok": false, "error": errMsg}
}

// appendTrace keeps the in-memory ring under maxTraces and persists to the
// store when there is one.
func (c *Core) appendTrace(t *Trace) {
	if c.store != nil {
		if err := c.store.Record(t); err != nil {
			log.Printf("record trace: %v", err)
		}
	}
	c.traces = append(c.traces, *t)
	if len(c.traces) > c.maxTraces {
		// Drop oldest traces
		excess := len(c.traces) - c.maxTraces
		c.traces = c.traces[excess:]
	}
}

package nrepl

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhubert/replink/logger"
)

const (
	// DefaultHost is where discovery-located servers listen.
	DefaultHost = "localhost"

	// printQuota caps each printed value in an eval response. Without it a
	// single large result (a giant lazy seq, a slurped file) would flood the
	// stream.
	printQuota = 10000

	// DefaultEvalTimeout bounds one evaluation when the caller sets no
	// timeout of its own.
	DefaultEvalTimeout = 60 * time.Second

	// DefaultSession is the session type used when the caller does not name
	// one. Session types are opaque tags: each gets its own server session,
	// cached and revalidated independently.
	DefaultSession = "default"
)

// EvalTimeoutError reports that an evaluation produced no terminal message
// within the timeout. The server-side computation may still be running;
// Interrupt can stop it.
type EvalTimeoutError struct {
	Timeout time.Duration
}

func (e *EvalTimeoutError) Error() string {
	return fmt.Sprintf("evaluation did not complete within %s", e.Timeout)
}

// Client talks to one nREPL server. Each operation opens a fresh connection
// and closes it when the operation finishes; only session ids are carried
// across operations, revalidated against the server's live-session list
// before reuse.
//
// Evaluations are serialized: one at a time, in call order. Interrupt and the
// read-only accessors may run concurrently with an in-flight Eval.
type Client struct {
	host        string
	port        int
	evalTimeout time.Duration
	log         *slog.Logger

	// evalMu serializes Eval calls end to end.
	evalMu sync.Mutex

	mu          sync.Mutex
	sessions    map[string]string // session type -> server session id
	namespaces  map[string]string // session id -> last-seen namespace
	evalID      string            // id of the in-flight eval, "" when idle
	evalSession string
}

// Option configures a Client.
type Option func(*Client)

// WithEvalTimeout overrides the per-evaluation timeout.
func WithEvalTimeout(d time.Duration) Option {
	return func(c *Client) { c.evalTimeout = d }
}

// New creates a client for the server at host:port. No connection is opened
// until the first operation.
func New(host string, port int, opts ...Option) *Client {
	if host == "" {
		host = DefaultHost
	}
	c := &Client{
		host:        host,
		port:        port,
		evalTimeout: DefaultEvalTimeout,
		log:         logger.WithPort(port).With("component", "nrepl"),
		sessions:    make(map[string]string),
		namespaces:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) dial() (*Conn, error) {
	conn, err := DialConn(c.host, c.port)
	if err != nil {
		c.log.Warn("connection failed", "error", err)
		return nil, err
	}
	return conn, nil
}

// roundTrip sends one request and collects its stream until the terminal
// message.
func (c *Client) roundTrip(conn *Conn, msg map[string]any, deadline time.Time) ([]*Response, error) {
	if err := conn.Send(msg); err != nil {
		return nil, err
	}
	var resps []*Response
	for {
		r, err := conn.Recv(deadline)
		if err != nil {
			return nil, fmt.Errorf("%v op: %w", msg["op"], err)
		}
		resps = append(resps, r)
		if r.Done() {
			return resps, nil
		}
	}
}

// EnsureSession resolves a live session id for the given session type on its
// own short-lived connection. Eval does this implicitly; callers only need it
// to warm up or inspect the session cache.
func (c *Client) EnsureSession(sessionType string) (string, error) {
	conn, err := c.dial()
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return c.ensureSession(conn, sessionType)
}

// ensureSession returns a live session id for the given session type. A
// cached id is trusted only if the server still lists it; after a server
// restart the listing (or the listing call itself) fails and a fresh session
// is cloned.
func (c *Client) ensureSession(conn *Conn, name string) (string, error) {
	c.mu.Lock()
	cached := c.sessions[name]
	c.mu.Unlock()

	if cached != "" {
		live, err := c.listSessions(conn)
		if err == nil {
			for _, id := range live {
				if id == cached {
					return cached, nil
				}
			}
		}
		c.log.Info("cached session no longer valid, creating a new one", "name", name)
	}

	id, err := c.clone(conn)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.sessions[name] = id
	c.mu.Unlock()
	c.log.Debug("session created", "name", name, "session", id)
	return id, nil
}

func (c *Client) listSessions(conn *Conn) ([]string, error) {
	resps, err := c.roundTrip(conn, map[string]any{
		"op": "ls-sessions",
		"id": uuid.NewString(),
	}, time.Now().Add(opTimeout))
	if err != nil {
		return nil, err
	}
	var sessions []string
	for _, r := range resps {
		sessions = append(sessions, r.Sessions...)
	}
	return sessions, nil
}

func (c *Client) clone(conn *Conn) (string, error) {
	resps, err := c.roundTrip(conn, map[string]any{
		"op": "clone",
		"id": uuid.NewString(),
	}, time.Now().Add(opTimeout))
	if err != nil {
		return "", err
	}
	for _, r := range resps {
		if r.NewSession != "" {
			return r.NewSession, nil
		}
	}
	return "", errors.New("clone response carried no new-session")
}

// EvalResult is the outcome of one evaluation. Values holds the printed
// result of each top-level form; Out and Err are the concatenated stdout and
// stderr writes; NS is the namespace after evaluation; Fragments preserves
// the raw response stream in arrival order. An evaluation error is not an
// Eval error: it arrives in Err (and Ex) with the call succeeding.
type EvalResult struct {
	Values      []string
	Out         string
	Err         string
	Ex          string
	NS          string
	Interrupted bool
	Fragments   []*Response
}

// Eval evaluates code in the default session.
func (c *Client) Eval(code string) (*EvalResult, error) {
	return c.EvalIn(DefaultSession, code)
}

// EvalIn sends code to the server in the named session type's session and
// blocks until the terminal message or the eval timeout. The session is
// resolved (and revalidated) first, so a server restart between calls is
// absorbed transparently.
func (c *Client) EvalIn(sessionType, code string) (*EvalResult, error) {
	c.evalMu.Lock()
	defer c.evalMu.Unlock()

	conn, err := c.dial()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	session, err := c.ensureSession(conn, sessionType)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	c.mu.Lock()
	c.evalID = id
	c.evalSession = session
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.evalID = ""
		c.evalSession = ""
		c.mu.Unlock()
	}()

	c.log.Debug("eval", "id", id, "session", session, "bytes", len(code))
	if err := conn.Send(map[string]any{
		"op":      "eval",
		"code":    code,
		"id":      id,
		"session": session,
		"nrepl.middleware.print/quota": printQuota,
	}); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(c.evalTimeout)
	res := &EvalResult{NS: c.namespaceFor(session)}
	for {
		r, err := conn.Recv(deadline)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				c.log.Warn("eval timed out", "id", id, "timeout", c.evalTimeout)
				return nil, &EvalTimeoutError{Timeout: c.evalTimeout}
			}
			return nil, fmt.Errorf("read eval response: %w", err)
		}
		if r.ID != "" && r.ID != id {
			continue
		}

		res.Fragments = append(res.Fragments, r)
		res.Out += r.Out
		res.Err += r.Err
		if r.Ex != "" {
			res.Ex = r.Ex
		}
		if r.Value != "" {
			res.Values = append(res.Values, r.Value)
		}
		if r.NS != "" {
			res.NS = r.NS
			c.mu.Lock()
			c.namespaces[session] = r.NS
			c.mu.Unlock()
		}
		if r.HasStatus("interrupted") {
			res.Interrupted = true
		}
		if r.Done() {
			return res, nil
		}
	}
}

// Interrupt asks the server to abort the in-flight evaluation. A no-op when
// nothing is evaluating. Best-effort: the request is sent on its own
// connection and the acknowledgement, if any, is discarded.
func (c *Client) Interrupt() error {
	c.mu.Lock()
	id, session := c.evalID, c.evalSession
	c.mu.Unlock()

	if id == "" {
		c.log.Debug("interrupt requested with no evaluation in flight")
		return nil
	}

	conn, err := c.dial()
	if err != nil {
		return err
	}
	defer conn.Close()

	c.log.Info("interrupting evaluation", "id", id)
	if err := conn.Send(map[string]any{
		"op":           "interrupt",
		"id":           uuid.NewString(),
		"session":      session,
		"interrupt-id": id,
	}); err != nil {
		return err
	}

	// The interesting outcome lands on the eval stream, not here.
	if _, err := conn.Recv(time.Now().Add(opTimeout)); err != nil {
		c.log.Debug("no interrupt acknowledgement", "error", err)
	}
	return nil
}

// ServerInfo summarizes a describe response.
type ServerInfo struct {
	Ops      []string
	Versions map[string]string
}

// Describe probes the server's capabilities: the operations it supports and
// the versions it reports.
func (c *Client) Describe() (*ServerInfo, error) {
	conn, err := c.dial()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	resps, err := c.roundTrip(conn, map[string]any{
		"op": "describe",
		"id": uuid.NewString(),
	}, time.Now().Add(opTimeout))
	if err != nil {
		return nil, err
	}

	info := &ServerInfo{Versions: make(map[string]string)}
	seen := make(map[string]bool)
	for _, r := range resps {
		for op := range r.Ops {
			if !seen[op] {
				seen[op] = true
				info.Ops = append(info.Ops, op)
			}
		}
		for name, v := range r.Versions {
			info.Versions[name] = v.String()
		}
	}
	sort.Strings(info.Ops)
	return info, nil
}

// ListSessions returns the server's live session ids.
func (c *Client) ListSessions() ([]string, error) {
	conn, err := c.dial()
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return c.listSessions(conn)
}

// CurrentNamespace returns the namespace the session type's session last
// landed in, or "user" before its first evaluation.
func (c *Client) CurrentNamespace(sessionType string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if session, ok := c.sessions[sessionType]; ok {
		if ns, ok := c.namespaces[session]; ok {
			return ns
		}
	}
	return "user"
}

func (c *Client) namespaceFor(session string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ns, ok := c.namespaces[session]; ok {
		return ns
	}
	return "user"
}

// Port returns the server port this client targets.
func (c *Client) Port() int { return c.port }

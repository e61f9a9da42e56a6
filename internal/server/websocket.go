package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kiluadev/website"
	"github.com/kiluadev/website/internal/logging"
	"github.com/kiluadev/website/internal/source"
)

const (
	helloTimeout   = 10 * time.Second
	writeTimeout   = 10 * time.Second
	maxMessageSize = 64 << 10
	stateBuffer    = 16
)

// Message types exchanged on the session socket.
const (
	msgHello    = "hello"
	msgNavigate = "navigate"
	msgReady    = "ready"
	msgState    = "state"
	msgReload   = "reload"
	msgError    = "error"
)

// clientMessage is sent by the browser. The first message of a session is
// normally a hello carrying the state embedded in the served page.
type clientMessage struct {
	Type  string          `json:"type"`
	Path  string          `json:"path,omitempty"`
	State json.RawMessage `json:"state,omitempty"`
}

// serverMessage is pushed to the browser. State messages carry the
// serialized state, the rendered page body and its title; seq increases by
// one for every published state of the session.
type serverMessage struct {
	Type     string          `json:"type"`
	Session  string          `json:"session,omitempty"`
	Seq      uint64          `json:"seq"`
	Path     string          `json:"path,omitempty"`
	Title    string          `json:"title,omitempty"`
	HTML     string          `json:"html,omitempty"`
	State    json.RawMessage `json:"state,omitempty"`
	Restored bool            `json:"restored,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// session is one connected browser. It owns a machine; its inputs are
// processed in the order the browser sent them.
type session struct {
	id      string
	server  *Server
	conn    *websocket.Conn
	theme   string
	logger  *zap.Logger
	machine *website.Machine
	seq     atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (s *Server) upgrader() *websocket.Upgrader {
	u := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if s.config.Server.Debug {
		u.CheckOrigin = func(r *http.Request) bool { return true }
	}
	return u
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	sess := &session{
		id:     uuid.NewString(),
		server: s,
		conn:   conn,
		theme:  themeFor(r),
		ctx:    ctx,
		cancel: cancel,
	}
	sess.logger = s.logger.With(zap.String("session", sess.id))
	conn.SetReadLimit(maxMessageSize)
	defer sess.close()

	sess.run()
}

func (ss *session) run() {
	_ = ss.conn.SetReadDeadline(time.Now().Add(helloTimeout))
	first, err := ss.read()
	if err != nil {
		ss.logger.Debug("session ended before hello", zap.Error(err))
		return
	}
	_ = ss.conn.SetReadDeadline(time.Time{})

	c := ss.server.catalog
	initial, restored := website.HomeState(c), false
	var pending *clientMessage
	if first.Type == msgHello {
		initial, restored = website.InitialState(c, first.State)
		if !restored && len(first.State) > 0 {
			ss.logger.Debug("discarding unusable session payload")
		}
		// Rendered HTML sent by the browser is never echoed back.
		initial.RenderedContent = nil
	} else {
		pending = &first
	}

	ss.machine = ss.server.newMachine(ss.logger, website.WithInitialState(initial))
	states, _ := ss.machine.Subscribe(stateBuffer)

	pushed := make(chan struct{})
	ss.server.registerSession(ss)
	defer func() {
		ss.server.unregisterSession(ss)
		ss.cancel()
		_ = ss.machine.Close()
		<-pushed
	}()

	if err := ss.ready(initial, restored); err != nil {
		ss.logger.Debug("failed to greet session", zap.Error(err))
		close(pushed)
		return
	}
	go func() {
		defer close(pushed)
		ss.push(states)
	}()

	if pending != nil {
		ss.handle(*pending)
	}
	for {
		msg, err := ss.read()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ss.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}
		ss.handle(msg)
	}
}

func (ss *session) read() (clientMessage, error) {
	var msg clientMessage
	_, data, err := ss.conn.ReadMessage()
	if err != nil {
		return msg, err
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return clientMessage{Type: "invalid"}, nil
	}
	return msg, nil
}

func (ss *session) handle(msg clientMessage) {
	switch msg.Type {
	case msgNavigate:
		ss.send(website.InputForPath(ss.server.catalog, msg.Path))
	case msgHello:
		ss.writeError("session already started")
	default:
		ss.writeError(fmt.Sprintf("unknown message type %q", msg.Type))
	}
}

// send enqueues an input. The resulting state reaches the browser through
// the subscription; only content failures are reported here.
func (ss *session) send(in website.Input) {
	done, err := ss.machine.Send(ss.ctx, in)
	if err != nil {
		if !errors.Is(err, website.ErrMachineClosed) && !errors.Is(err, context.Canceled) {
			ss.logger.Warn("failed to send input", zap.Stringer("input", in), zap.Error(err))
		}
		return
	}
	go func() {
		res := <-done
		var fetchErr *website.ContentFetchError
		if errors.As(res.Err, &fetchErr) {
			ss.writeError(source.UserFriendlyMessage(fetchErr.Err))
		}
	}()
}

func (ss *session) push(states <-chan website.State) {
	for st := range states {
		msg, err := ss.stateMessage(st, ss.seq.Add(1))
		if err != nil {
			ss.logger.Error("failed to render state", zap.Stringer("page", st.Page), zap.Error(err))
			continue
		}
		if err := ss.write(msg); err != nil {
			ss.logger.Debug("failed to push state", zap.Error(err))
		}
	}
}

func (ss *session) stateMessage(st website.State, seq uint64) (serverMessage, error) {
	v, err := ss.server.view(st, "", ss.theme, nil)
	if err != nil {
		return serverMessage{}, err
	}
	body, err := ss.server.renderTemplate("main", v)
	if err != nil {
		return serverMessage{}, err
	}
	payload, err := website.EncodeState(st)
	if err != nil {
		return serverMessage{}, err
	}
	return serverMessage{
		Type:  msgState,
		Seq:   seq,
		Path:  v.Path,
		Title: v.Title,
		HTML:  string(body),
		State: payload,
	}, nil
}

func (ss *session) ready(initial website.State, restored bool) error {
	payload, err := website.EncodeState(initial)
	if err != nil {
		return err
	}
	return ss.write(serverMessage{
		Type:     msgReady,
		Session:  ss.id,
		State:    payload,
		Restored: restored,
	})
}

// reload tells the browser that contentPath changed and re-runs the current
// page when it is the one that changed.
func (ss *session) reload(contentPath string, page *website.Page) {
	if err := ss.write(serverMessage{Type: msgReload, Path: contentPath}); err != nil {
		ss.logger.Debug("failed to send reload", zap.Error(err))
	}
	if ss.machine.State().Page == page {
		ss.send(website.NavigateToPage{Page: page})
	}
}

func (ss *session) writeError(message string) {
	if err := ss.write(serverMessage{Type: msgError, Error: message}); err != nil {
		ss.logger.Debug("failed to send error", zap.Error(err))
	}
}

// write sends one message. gorilla/websocket allows a single concurrent writer.
func (ss *session) write(msg serverMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ss.writeMu.Lock()
	defer ss.writeMu.Unlock()
	_ = ss.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return ss.conn.WriteMessage(websocket.TextMessage, data)
}

func (ss *session) close() {
	ss.closeOnce.Do(func() {
		ss.cancel()
		ss.conn.Close()
	})
}

func (s *Server) registerSession(ss *session) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.sessions[ss.id] = ss
	s.logger.Debug("session registered", zap.String("session", ss.id), zap.Int("active", len(s.sessions)))
}

func (s *Server) unregisterSession(ss *session) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	delete(s.sessions, ss.id)
	s.logger.Debug("session unregistered", zap.String("session", ss.id), zap.Int("active", len(s.sessions)))
}

// SessionCount returns the number of connected sessions.
func (s *Server) SessionCount() int {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return len(s.sessions)
}

func (s *Server) snapshotSessions() []*session {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	out := make([]*session, 0, len(s.sessions))
	for _, ss := range s.sessions {
		out = append(out, ss)
	}
	return out
}

func (s *Server) closeSessions() {
	for _, ss := range s.snapshotSessions() {
		ss.close()
	}
}

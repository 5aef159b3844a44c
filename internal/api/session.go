package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/FocuswithJustin/termdoc/core/content"
	"github.com/FocuswithJustin/termdoc/core/editor"
	"github.com/FocuswithJustin/termdoc/core/errors"
	"github.com/FocuswithJustin/termdoc/internal/logging"
	"github.com/FocuswithJustin/termdoc/internal/server"
)

// Client message types.
const (
	MsgChange     = "change"
	MsgIndent     = "indent"
	MsgOutdent    = "outdent"
	MsgSplit      = "split"
	MsgBackspace  = "backspace"
	MsgToggleTerm = "toggle-term"
	MsgSave       = "save"
)

// Server message types.
const (
	MsgState = "state"
	MsgError = "error"
)

// Error codes sent to the client besides the editor's rejection codes
// ("cross-block", "no-selection").
const (
	CodeInvalid     = "invalid"
	CodeNotFound    = "not-found"
	CodeInternal    = "internal"
	CodeRateLimited = "rate-limited"
)

// maxTermID bounds identifiers supplied by the client.
const maxTermID = 256

var commandOps = map[string]string{
	MsgIndent:     editor.OpIndent,
	MsgOutdent:    editor.OpOutdent,
	MsgSplit:      editor.OpSplit,
	MsgBackspace:  editor.OpBackspace,
	MsgToggleTerm: editor.OpTerm,
}

// ClientMessage is a request from the editor front end. Addresses use the
// "path:offset" form, e.g. "1.0:3".
type ClientMessage struct {
	Type   string `json:"type"`
	Markup string `json:"markup,omitempty"`
	At     string `json:"at,omitempty"`
	Anchor string `json:"anchor,omitempty"`
	Focus  string `json:"focus,omitempty"`
	ID     string `json:"id,omitempty"`
	Title  string `json:"title,omitempty"`
}

// StateMessage carries the document after a message was handled. Changed
// is false whenever the command refused or was a no-op.
type StateMessage struct {
	Type       string        `json:"type"`
	Markup     string        `json:"markup"`
	Tree       *content.Root `json:"tree"`
	Cursor     string        `json:"cursor,omitempty"`
	Changed    bool          `json:"changed"`
	Outcome    string        `json:"outcome,omitempty"`
	DocumentID string        `json:"document_id,omitempty"`
	Revision   int           `json:"revision,omitempty"`
}

// ErrorMessage reports a message that was not applied. The document is
// unchanged.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// session is one connection's editing state. It is only touched by the
// connection's read loop.
type session struct {
	id       string
	doc      *editor.Document
	docID    string
	revision int
	docs     Documents
}

func newSession(docs Documents) *session {
	return &session{id: uuid.NewString(), doc: editor.New(), docs: docs}
}

func (s *session) state(changed bool, outcome string, cursor *editor.Address) StateMessage {
	msg := StateMessage{
		Type:       MsgState,
		Markup:     s.doc.Markup(),
		Tree:       s.doc.Tree(),
		Changed:    changed,
		Outcome:    outcome,
		DocumentID: s.docID,
		Revision:   s.revision,
	}
	if cursor != nil {
		msg.Cursor = cursor.String()
	}
	return msg
}

func errorMessage(code, message string) ErrorMessage {
	return ErrorMessage{Type: MsgError, Code: code, Message: message}
}

// codeFor maps an error onto a client error code.
func codeFor(err error) string {
	if code := errors.CodeOf(err); code != "" {
		return code
	}
	switch {
	case errors.Is(err, errors.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, errors.ErrInvalidInput):
		return CodeInvalid
	}
	return CodeInternal
}

func fail(err error) (any, string) {
	code := codeFor(err)
	msg := err.Error()
	if code == CodeInternal {
		msg = "internal error"
	}
	return errorMessage(code, msg), code
}

// handleRaw decodes and applies one client message.
func (s *session) handleRaw(ctx context.Context, raw []byte) (reply any, op, outcome string) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return errorMessage(CodeInvalid, "malformed message: "+err.Error()), "unknown", CodeInvalid
	}
	reply, outcome = s.handle(ctx, msg)
	return reply, metricOp(msg.Type), outcome
}

// handle applies one client message and returns the reply with the
// outcome label used for metrics.
func (s *session) handle(ctx context.Context, msg ClientMessage) (reply any, outcome string) {
	switch msg.Type {
	case MsgChange:
		before := s.doc.Markup()
		s.doc = editor.FromMarkup(msg.Markup)
		return s.state(s.doc.Markup() != before, "replaced", nil), "replaced"
	case MsgSave:
		return s.save(ctx, msg.Title)
	}

	op, ok := commandOps[msg.Type]
	if !ok {
		return errorMessage(CodeInvalid, "unknown message type "+msg.Type), CodeInvalid
	}

	atText := msg.At
	if op == editor.OpTerm {
		atText = msg.Anchor
	}
	at, err := editor.ParseAddress(atText)
	if err != nil {
		return fail(err)
	}
	cmd := editor.Command{Op: op, At: at}

	// Node IDs survive moves, so the cursor is tracked by position and
	// re-addressed after the command.
	track, err := s.doc.Locate(at)
	if err != nil {
		return fail(err)
	}
	if op == editor.OpTerm {
		if msg.Focus != "" {
			focus, err := editor.ParseAddress(msg.Focus)
			if err != nil {
				return fail(err)
			}
			cmd.To = &focus
			if track, err = s.doc.Locate(focus); err != nil {
				return fail(err)
			}
		}
		cmd.ID = server.LimitStringLength(server.SanitizeUserInput(msg.ID), maxTermID)
	}

	before := s.doc.Markup()
	res, err := s.doc.Apply(cmd)
	if err != nil {
		return fail(err)
	}
	if res.Err != nil {
		return errorMessage(res.Outcome, res.Err.Error()), res.Outcome
	}

	cursor := res.Cursor
	if cursor == nil {
		if addr, err := s.doc.AddressOf(track); err == nil {
			cursor = &addr
		}
	}
	return s.state(res.OK && s.doc.Markup() != before, res.Outcome, cursor), res.Outcome
}

// save stores the document, creating it on first save.
func (s *session) save(ctx context.Context, title string) (any, string) {
	if s.docs == nil {
		return errorMessage(CodeInternal, "no document store configured"), CodeInternal
	}
	if s.docID == "" {
		title = server.SanitizeUserInput(title)
		if title == "" {
			title = "Untitled"
		}
		doc, err := s.docs.Create(ctx, title, s.doc.Markup())
		if err != nil {
			return fail(err)
		}
		s.docID, s.revision = doc.ID, doc.Revision
		return s.state(false, "created", nil), "created"
	}

	doc, changed, err := s.docs.Update(ctx, s.docID, s.doc.Markup())
	if err != nil {
		return fail(err)
	}
	s.revision = doc.Revision
	outcome := "unchanged"
	if changed {
		outcome = "saved"
	}
	return s.state(false, outcome, nil), outcome
}

// handleSession upgrades to a websocket and runs the session's read loop.
// ?doc=ID opens a stored document.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if reason := checkAPIKey(s.cfg.Auth, apiKeyFrom(r)); reason != "" {
		logging.SecurityEvent("unauthorized_session", "session",
			"reason", reason,
			"remote_addr", getClientIP(r))
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", reason)
		return
	}

	sess := newSession(s.docs)
	if id := r.URL.Query().Get("doc"); id != "" {
		doc, err := s.docs.Get(r.Context(), id)
		if err != nil {
			respondErr(w, r, err)
			return
		}
		sess.doc = editor.FromMarkup(doc.Markup)
		sess.docID, sess.revision = doc.ID, doc.Revision
	}

	if !s.sessions.Reserve(sess.id) {
		respondError(w, http.StatusServiceUnavailable, "TOO_MANY_SESSIONS", "Session limit reached")
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.sessions.Release(sess.id)
		return
	}
	s.sessions.Attach(sess.id, conn)
	s.metrics.sessions.Inc()

	ctx := logging.WithSessionID(r.Context(), sess.id)
	logging.SessionEvent(ctx, "opened", s.sessions.Len(), "document_id", sess.docID)
	s.serveSession(ctx, conn, sess)

	s.metrics.sessions.Dec()
	logging.SessionEvent(ctx, "closed", s.sessions.Release(sess.id))
}

func (s *Server) serveSession(ctx context.Context, conn *websocket.Conn, sess *session) {
	defer conn.Close()
	cfg := s.cfg.Session

	conn.SetReadLimit(cfg.MaxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(cfg.PongWait * 9 / 10)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(cfg.WriteTimeout)); err != nil {
					return
				}
			}
		}
	}()

	write := func(v any) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
		if err := conn.WriteJSON(v); err != nil {
			logging.WarnContext(ctx, "session write failed", "error", err)
			return false
		}
		return true
	}

	if !write(sess.state(false, "opened", nil)) {
		return
	}

	rate := float64(cfg.MaxMessageRate)
	bucket := newTokenBucket(rate*2, rate, time.Now())
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.WarnContext(ctx, "session closed unexpectedly", "error", err)
			}
			return
		}
		if ok, _, _ := bucket.take(time.Now()); !ok {
			logging.SecurityEvent("message_rate_exceeded", "session", "session_id", sess.id)
			write(errorMessage(CodeRateLimited, "message rate limit exceeded"))
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "rate limit exceeded"),
				time.Now().Add(cfg.WriteTimeout))
			return
		}

		reply, op, outcome := sess.handleRaw(ctx, raw)
		state, _ := reply.(StateMessage)
		s.metrics.Command(op, outcome)
		logging.CommandApplied(ctx, op, outcome, state.Changed)

		if !write(reply) {
			return
		}
	}
}

// metricOp keeps the op label bounded to known message types.
func metricOp(t string) string {
	switch t {
	case MsgChange, MsgSave:
		return t
	}
	if _, ok := commandOps[t]; ok {
		return t
	}
	return "unknown"
}

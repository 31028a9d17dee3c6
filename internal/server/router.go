package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iris-relay/iris-relay/internal/directory"
	"github.com/iris-relay/iris-relay/internal/registry"
)

const defaultSendBuffer = 32

// Router validates and dispatches inbound frames from bound connections and
// fans presence changes out to online contacts. It is the only writer to
// other users' outbound queues; frames from a single sender to a single
// recipient are queued in receive order.
type Router struct {
	log        *zap.Logger
	registry   registry.ConnRegistry
	contacts   directory.ContactGraph
	metrics    *relayMetrics
	sendBuffer int
}

// RouterOptions configures per-connection queue capacity and observability.
type RouterOptions struct {
	Metrics    *relayMetrics
	SendBuffer int
}

// NewRouter wires the routing core to its collaborators.
func NewRouter(log *zap.Logger, reg registry.ConnRegistry, contacts directory.ContactGraph, opts RouterOptions) *Router {
	r := &Router{
		log:        log,
		registry:   reg,
		contacts:   contacts,
		metrics:    opts.Metrics,
		sendBuffer: opts.SendBuffer,
	}
	if r.registry == nil {
		r.registry = registry.NewInMemory()
	}
	if r.sendBuffer <= 0 {
		r.sendBuffer = defaultSendBuffer
	}
	return r
}

// session is one live transport binding: identity, outbound queue, and a
// cancellation scope that ends the connection's lifecycle.
type session struct {
	id          string
	userID      string
	username    string
	sendCh      chan []byte
	ctx         context.Context
	cancel      context.CancelFunc
	connectedAt time.Time
}

// ConnID implements registry.Conn.
func (s *session) ConnID() string { return s.id }

// Bind registers a fresh connection for an authenticated identity. If the
// identity already had a live connection it is cancelled in place; its later
// cleanup sees a stale unbind and emits no offline event, and no duplicate
// online event is sent since the user never appeared offline to contacts.
func (r *Router) Bind(parent context.Context, userID, username string) *session {
	ctx, cancel := context.WithCancel(parent)
	sess := &session{
		id:          uuid.NewString(),
		userID:      userID,
		username:    username,
		sendCh:      make(chan []byte, r.sendBuffer),
		ctx:         ctx,
		cancel:      cancel,
		connectedAt: time.Now(),
	}

	prior := r.registry.Bind(userID, sess)
	if prior != nil {
		if old, ok := prior.(*session); ok {
			old.cancel()
		}
		r.log.Info("connection superseded",
			zap.String("user_id", userID),
			zap.String("conn_id", sess.id),
			zap.String("prior_conn_id", prior.ConnID()))
	}

	r.metrics.incConn()
	r.log.Info("user connected",
		zap.String("user_id", userID),
		zap.String("username", username),
		zap.String("conn_id", sess.id))

	if prior == nil {
		r.notifyPresence(sess, statusOnline)
	}
	return sess
}

// Release ends a connection's lifecycle: idempotent cancellation, unbind,
// and an offline notification only when this connection was still the
// registered one (a superseded connection closing late changes nothing).
func (r *Router) Release(sess *session) {
	sess.cancel()
	r.metrics.decConn()

	current := r.registry.Unbind(sess.userID, sess)
	r.log.Info("user disconnected",
		zap.String("user_id", sess.userID),
		zap.String("conn_id", sess.id),
		zap.Bool("superseded", !current))
	if current {
		r.notifyPresence(sess, statusOffline)
	}
}

// HandleInbound parses and routes one client frame. Nothing at the per-frame
// level is fatal to the connection: malformed or unauthorized frames are
// counted, logged, and dropped, and the sender gets no failure signal.
func (r *Router) HandleInbound(sess *session, data []byte) {
	start := time.Now()

	frame, err := parseInbound(data)
	if err != nil {
		r.metrics.recordError(codeMalformedFrame)
		r.metrics.observeLatency("malformed", time.Since(start))
		r.log.Debug("dropped malformed frame",
			zap.String("user_id", sess.userID),
			zap.Error(err))
		return
	}

	var rerr *routeError
	switch frame.Type {
	case frameChatMessage:
		rerr = r.handleChat(sess, frame)
	case frameTypingIndicator:
		rerr = r.handleTyping(sess, frame)
	case frameReadReceipt:
		rerr = r.handleReceipt(sess, frame)
	}
	r.metrics.observeLatency(frame.Type, time.Since(start))

	if rerr != nil {
		r.metrics.recordError(rerr.code)
		r.log.Debug("dropped frame",
			zap.String("user_id", sess.userID),
			zap.String("type", frame.Type),
			zap.String("code", rerr.code),
			zap.String("reason", rerr.msg))
	}
}

func (r *Router) handleChat(sess *session, frame inboundFrame) *routeError {
	if !r.contacts.IsContact(sess.userID, frame.ToUserID) {
		return &routeError{code: codeUnauthorizedRecipient, msg: "recipient is not a contact"}
	}
	target, ok := r.lookup(frame.ToUserID)
	if !ok {
		// No store-and-forward: a message to an offline recipient is lost.
		r.metrics.recordDrop(dropOffline)
		return nil
	}

	out := chatFrame{
		Type:         frameChatMessage,
		FromUserID:   sess.userID,
		FromUsername: sess.username,
		ToUserID:     frame.ToUserID,
		Message:      frame.Message,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		MessageID:    uuid.NewString(),
	}
	r.push(target, out, frameChatMessage)
	return nil
}

func (r *Router) handleTyping(sess *session, frame inboundFrame) *routeError {
	if !r.contacts.IsContact(sess.userID, frame.ToUserID) {
		return &routeError{code: codeUnauthorizedRecipient, msg: "recipient is not a contact"}
	}
	target, ok := r.lookup(frame.ToUserID)
	if !ok {
		r.metrics.recordDrop(dropOffline)
		return nil
	}

	out := typingFrame{
		Type:       frameTypingIndicator,
		FromUserID: sess.userID,
		IsTyping:   frame.IsTyping,
	}
	r.push(target, out, frameTypingIndicator)
	return nil
}

func (r *Router) handleReceipt(sess *session, frame inboundFrame) *routeError {
	if frame.MessageID == "" {
		return &routeError{code: codeMalformedFrame, msg: "read receipt missing message_id"}
	}
	if !r.contacts.IsContact(sess.userID, frame.ToUserID) {
		return &routeError{code: codeUnauthorizedRecipient, msg: "recipient is not a contact"}
	}
	target, ok := r.lookup(frame.ToUserID)
	if !ok {
		r.metrics.recordDrop(dropOffline)
		return nil
	}

	out := receiptFrame{
		Type:       frameReadReceipt,
		FromUserID: sess.userID,
		MessageID:  frame.MessageID,
	}
	r.push(target, out, frameReadReceipt)
	return nil
}

// notifyPresence pushes a status frame to each of the user's contacts that
// is reachable right now. Best-effort: presence is advisory and may race a
// contact's own concurrent delivery.
func (r *Router) notifyPresence(sess *session, status string) {
	contacts := r.contacts.ContactsOf(sess.userID)
	if len(contacts) == 0 {
		return
	}

	buf, err := json.Marshal(statusFrame{
		Type:     frameStatus,
		UserID:   sess.userID,
		Username: sess.username,
		Status:   status,
	})
	if err != nil {
		r.log.Warn("encode status frame", zap.Error(err))
		return
	}

	for _, contactID := range contacts {
		target, ok := r.lookup(contactID)
		if !ok {
			continue
		}
		r.pushRaw(target, buf, frameStatus)
	}
	r.metrics.recordPresence(status)
}

func (r *Router) lookup(userID string) (*session, bool) {
	conn, ok := r.registry.Lookup(userID)
	if !ok {
		return nil, false
	}
	sess, ok := conn.(*session)
	return sess, ok
}

func (r *Router) push(target *session, frame any, frameType string) {
	buf, err := json.Marshal(frame)
	if err != nil {
		r.log.Warn("encode outbound frame", zap.String("type", frameType), zap.Error(err))
		return
	}
	r.pushRaw(target, buf, frameType)
}

// pushRaw enqueues a marshaled frame on the target's outbound queue. The
// sender's receive loop never blocks on a recipient: a queue that is full
// means the recipient stopped draining, so its connection is cancelled.
func (r *Router) pushRaw(target *session, buf []byte, frameType string) {
	select {
	case <-target.ctx.Done():
		r.metrics.recordDrop(dropClosed)
	case target.sendCh <- buf:
		r.metrics.recordDelivery(frameType)
	default:
		target.cancel()
		r.metrics.recordDrop(dropBackpressure)
		r.log.Warn("outbound queue full, disconnecting recipient",
			zap.String("user_id", target.userID),
			zap.String("conn_id", target.id))
	}
}

// Error codes label dropped frames in logs and metrics. None of them are
// surfaced to the sender; absence of a response is the only feedback.
const (
	codeMalformedFrame        = "malformed_frame"
	codeUnauthorizedRecipient = "unauthorized_recipient"

	dropOffline      = "recipient_offline"
	dropClosed       = "recipient_closed"
	dropBackpressure = "backpressure"
)

// routeError maps frame validation failures to metric codes.
type routeError struct {
	code string
	msg  string
}

func (e *routeError) Error() string {
	return e.msg
}

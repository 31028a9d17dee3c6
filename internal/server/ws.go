package server

import (
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/iris-relay/iris-relay/internal/directory"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The browser client is served from arbitrary hosts in development;
	// auth happens via the session token, not the Origin header.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleWS authenticates the session token and hands the upgraded
// connection to the router. An unresolvable token refuses the connection
// before the upgrade ever happens.
func (s *RelayServer) handleWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = c.GetHeader(sessionHeader)
	}
	auth, ok := s.sessions.Validate(token)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid session token"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	s.serveConn(c, ws, auth)
}

// serveConn owns the connection's frame lifecycle until disconnect: a read
// loop here, a writer goroutine draining the outbound queue, and a watcher
// that closes the socket the moment the session is cancelled (supersession
// or server shutdown) so the blocked read returns.
func (s *RelayServer) serveConn(c *gin.Context, ws *websocket.Conn, auth directory.Session) {
	sess := s.router.Bind(c.Request.Context(), auth.UserID, auth.Username)
	defer s.router.Release(sess)

	go s.writePump(ws, sess)
	go func() {
		<-sess.ctx.Done()
		_ = ws.Close()
	}()

	ws.SetReadLimit(s.cfg.Router.MaxFrameBytes)
	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				s.log.Debug("peer closed connection", zap.String("user_id", auth.UserID))
			} else if ne, ok := err.(net.Error); ok && ne.Timeout() {
				s.log.Debug("read timeout", zap.String("user_id", auth.UserID), zap.Error(err))
			} else {
				s.log.Debug("read failed", zap.String("user_id", auth.UserID), zap.Error(err))
			}
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		s.router.HandleInbound(sess, data)
	}
}

// writePump drains the session's outbound queue onto the socket. A write
// failure cancels the session; Release on the read side does the unbind.
func (s *RelayServer) writePump(ws *websocket.Conn, sess *session) {
	for {
		select {
		case <-sess.ctx.Done():
			_ = ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case buf := <-sess.sendCh:
			if err := ws.WriteMessage(websocket.TextMessage, buf); err != nil {
				s.log.Debug("write failed",
					zap.String("user_id", sess.userID),
					zap.Error(err))
				sess.cancel()
				return
			}
		}
	}
}

package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/iris-relay/iris-relay/internal/directory"
)

// sessionHeader carries the opaque session token on authenticated HTTP
// requests; the websocket endpoint also accepts it as a ?token= query
// parameter.
const sessionHeader = "X-Session-Key"

const sessionCtxKey = "iris.session"

type authPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type addContactPayload struct {
	ContactUsername string `json:"contact_username"`
}

type authResponse struct {
	Message    string `json:"message"`
	SessionKey string `json:"session_key"`
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
}

type contactResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func (s *RelayServer) buildRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.POST("/register", s.handleRegister)
	engine.POST("/login", s.handleLogin)
	engine.GET("/ws", s.handleWS)

	authed := engine.Group("/", s.requireSession)
	authed.POST("/contacts", s.handleAddContact)
	authed.GET("/contacts", s.handleListContacts)

	return engine
}

// requireSession resolves the session token header for HTTP endpoints.
func (s *RelayServer) requireSession(c *gin.Context) {
	sess, ok := s.sessions.Validate(c.GetHeader(sessionHeader))
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized: Invalid session key."})
		return
	}
	c.Set(sessionCtxKey, sess)
	c.Next()
}

func boundSession(c *gin.Context) directory.Session {
	return c.MustGet(sessionCtxKey).(directory.Session)
}

func (s *RelayServer) handleRegister(c *gin.Context) {
	var payload authPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}

	user, err := s.users.Register(payload.Username, payload.Password)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, directory.ErrUsernameTaken) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"message": err.Error()})
		return
	}

	sess := s.sessions.Create(user)
	s.log.Info("user registered", zap.String("user_id", user.ID), zap.String("username", user.Username))
	c.JSON(http.StatusOK, authResponse{
		Message:    "Authentication successful",
		SessionKey: sess.Token,
		UserID:     user.ID,
		Username:   user.Username,
	})
}

func (s *RelayServer) handleLogin(c *gin.Context) {
	var payload authPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}

	user, err := s.users.Authenticate(payload.Username, payload.Password)
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, directory.ErrMissingCredentials) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"message": err.Error()})
		return
	}

	// A fresh login revokes the previous token; any connection still bound
	// with it keeps running until it next reconnects.
	sess := s.sessions.Create(user)
	s.log.Info("user logged in", zap.String("user_id", user.ID), zap.String("username", user.Username))
	c.JSON(http.StatusOK, authResponse{
		Message:    "Authentication successful",
		SessionKey: sess.Token,
		UserID:     user.ID,
		Username:   user.Username,
	})
}

func (s *RelayServer) handleAddContact(c *gin.Context) {
	var payload addContactPayload
	if err := c.ShouldBindJSON(&payload); err != nil || payload.ContactUsername == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "contact_username cannot be empty"})
		return
	}

	sess := boundSession(c)
	if payload.ContactUsername == sess.Username {
		c.JSON(http.StatusBadRequest, gin.H{"message": "You cannot add yourself as a contact."})
		return
	}

	contact, ok := s.users.ByUsername(payload.ContactUsername)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	}

	s.contacts.Add(sess.UserID, contact.ID)
	s.log.Info("contact added",
		zap.String("user_id", sess.UserID),
		zap.String("contact_id", contact.ID),
		zap.String("contact_username", contact.Username))
	c.Status(http.StatusOK)
}

func (s *RelayServer) handleListContacts(c *gin.Context) {
	sess := boundSession(c)

	ids := s.contacts.ContactsOf(sess.UserID)
	out := make([]contactResponse, 0, len(ids))
	for _, id := range ids {
		user, ok := s.users.ByID(id)
		if !ok {
			continue
		}
		out = append(out, contactResponse{ID: user.ID, Username: user.Username})
	}
	c.JSON(http.StatusOK, out)
}

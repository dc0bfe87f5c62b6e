package webserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campus-stack/faculty-advisor/src/advisor/session"
	"github.com/campus-stack/faculty-advisor/src/advisor/types"
)

type Session struct {
	sessions *session.Manager
}

func NewSession(sessions *session.Manager) Session {
	return Session{sessions: sessions}
}

func (s Session) key(c *gin.Context) (session.Key, bool) {
	identity := CurrentIdentity(c)
	key := session.Key{UserID: identity.UserID, SessionID: c.Query("session_id")}
	if err := key.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "session_id required", "kind": types.KindValidation})
		return session.Key{}, false
	}
	return key, true
}

func (s Session) Status(c *gin.Context) {
	key, ok := s.key(c)
	if !ok {
		return
	}
	st, err := s.sessions.Status(c, key)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": "session store unavailable"})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s Session) Clear(c *gin.Context) {
	key, ok := s.key(c)
	if !ok {
		return
	}
	if err := s.sessions.Clear(c, key); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": "session store unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

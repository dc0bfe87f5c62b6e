package webserver

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/campus-stack/faculty-advisor/src/advisor/auth"
	"github.com/campus-stack/faculty-advisor/src/advisor/session"
	"github.com/campus-stack/faculty-advisor/src/advisor/types"
)

type Auth struct {
	tokens   *auth.TokenService
	users    Authenticator
	sessions *session.Manager
}

func NewAuth(tokens *auth.TokenService, users Authenticator, sessions *session.Manager) Auth {
	return Auth{tokens: tokens, users: users, sessions: sessions}
}

func (a Auth) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error(), "kind": types.KindValidation})
		return
	}

	// Domain mismatch is a policy failure and reported explicitly; credential
	// failures below stay generic.
	if !a.tokens.AllowedDomain(req.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"err": "email domain not allowed", "kind": types.KindValidation})
		return
	}

	user, err := a.users.Authenticate(req.Email, req.Password)
	if err != nil {
		log.Printf("login rejected for %s from %s: %v", req.Email, c.ClientIP(), err)
		c.JSON(http.StatusUnauthorized, gin.H{"err": "invalid credentials", "kind": types.KindUnauthorized})
		return
	}

	identity := auth.Identity{
		UserID: strconv.FormatUint(user.ID, 10),
		Email:  user.Email,
	}
	token, expires, err := a.tokens.Issue(identity)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"err": "could not issue token", "kind": types.KindOf(err)})
		return
	}

	sessionID := uuid.NewString()
	key := session.Key{UserID: identity.UserID, SessionID: sessionID}
	if _, err := a.sessions.CreateSpace(c, key); err != nil {
		log.Printf("login: create session space for %s: %v", key, err)
		c.JSON(http.StatusInternalServerError, gin.H{"err": "session store unavailable"})
		return
	}

	log.Printf("login: %s as %s", user.Email, auth.DeriveRole(user.Email))
	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"role":         auth.DeriveRole(user.Email),
		"session_id":   sessionID,
		"expires_at":   expires.Unix(),
	})
}

func (a Auth) Logout(c *gin.Context) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	_ = c.ShouldBindJSON(&req)

	identity := CurrentIdentity(c)
	if req.SessionID != "" {
		key := session.Key{UserID: identity.UserID, SessionID: req.SessionID}
		if err := a.sessions.Clear(c, key); err != nil {
			log.Printf("logout: clear %s: %v", key, err)
		}
	}
	// The token stays valid until natural expiry; only server-side state goes.
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

func (a Auth) Refresh(c *gin.Context) {
	h := c.GetHeader("Authorization")
	token, expires, err := a.tokens.Refresh(strings.TrimPrefix(h, "Bearer "))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"err": "token rejected", "kind": types.KindOf(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token, "expires_at": expires.Unix()})
}

func (a Auth) Me(c *gin.Context) {
	c.JSON(http.StatusOK, CurrentIdentity(c))
}

package webserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/campus-stack/faculty-advisor/src/advisor/agents/core"
	"github.com/campus-stack/faculty-advisor/src/advisor/auth"
	"github.com/campus-stack/faculty-advisor/src/advisor/session"
	"github.com/campus-stack/faculty-advisor/src/advisor/types"
)

// Authenticator validates login credentials. Satisfied by auth.UserStore.
type Authenticator interface {
	Authenticate(email, password string) (*types.User, error)
}

// Deps are the resolved services the router needs. DB and RDB may be nil in
// store-free test setups; only the health endpoint touches them.
type Deps struct {
	Tokens   *auth.TokenService
	Users    Authenticator
	Sessions *session.Manager
	Agents   *core.Manager
	DB       *gorm.DB
	RDB      *redis.Client
}

func New(deps Deps) *gin.Engine {
	g := gin.New()
	g.Use(gin.Logger(), gin.Recovery())
	attachRoutes(g, deps)
	return g
}

func healthz(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		services := gin.H{}
		healthy := true
		if deps.RDB != nil {
			if err := deps.RDB.Ping(c).Err(); err != nil {
				services["redis"] = "unreachable"
				healthy = false
			} else {
				services["redis"] = "connected"
			}
		}
		if deps.DB != nil {
			sqlDB, err := deps.DB.DB()
			if err != nil || sqlDB.PingContext(c) != nil {
				services["mysql"] = "unreachable"
				healthy = false
			} else {
				services["mysql"] = "connected"
			}
		}
		if !healthy {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "services": services})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "services": services})
	}
}

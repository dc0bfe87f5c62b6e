package webserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campus-stack/faculty-advisor/src/advisor/agents/core"
	"github.com/campus-stack/faculty-advisor/src/advisor/auth"
	"github.com/campus-stack/faculty-advisor/src/advisor/types"
)

// Agents whose use is restricted to specific roles.
var gatedAgents = map[string][]string{
	"monitoring": {auth.RoleFaculty},
}

type Advisory struct {
	manager *core.Manager
}

func NewAdvisory(manager *core.Manager) Advisory {
	return Advisory{manager: manager}
}

func (a Advisory) Ask(c *gin.Context) {
	a.ask(c, "advisory")
}

func (a Advisory) AskAgent(c *gin.Context) {
	a.ask(c, c.Param("type"))
}

func (a Advisory) ask(c *gin.Context, agentType string) {
	var req struct {
		SessionID string         `json:"session_id" binding:"required"`
		Query     string         `json:"query" binding:"required,min=1,max=4000"`
		Context   map[string]any `json:"context"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error(), "kind": types.KindValidation})
		return
	}

	identity := CurrentIdentity(c)
	if roles, gated := gatedAgents[agentType]; gated && !hasRole(identity.Role, roles) {
		c.JSON(http.StatusForbidden, gin.H{"err": "insufficient role for agent", "kind": types.KindUnauthorized})
		return
	}

	resp, err := a.manager.Process(c, agentType, core.Request{
		Identity:  identity,
		SessionID: req.SessionID,
		Query:     req.Query,
		Context:   req.Context,
	})
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"err": "unknown agent", "kind": types.KindNotFound})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a Advisory) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"agents": a.manager.Describe()})
}

func hasRole(role string, allowed []string) bool {
	for _, r := range allowed {
		if role == r {
			return true
		}
	}
	return false
}

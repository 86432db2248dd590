package authgin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func HandleLoginPOST(core *Core) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&body); err != nil ||
			strings.TrimSpace(body.Email) == "" || body.Password == "" {
			badRequest(c, "email and password required")
			return
		}
		resp, err := core.Session.Login(c.Request.Context(), body.Email, body.Password)
		if err != nil {
			unauthorized(c, err.Error())
			return
		}
		core.Refresher.OnLoginSuccess(c.Request.Context(), resp.EntitlementJWT)
		snap := core.Cache.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"user_id":            resp.UserID,
			"entitlement_status": snap.Status,
		})
	}
}

package authgin

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func HandleLogoutPOST(core *Core) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := core.Session.Logout(ctx); err != nil {
			serverErr(c, "failed to clear session")
			return
		}
		if err := core.Cache.Clear(ctx); err != nil {
			serverErr(c, "failed to clear entitlement")
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

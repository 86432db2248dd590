package authgin

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func HandleSessionGET(core *Core) gin.HandlerFunc {
	return func(c *gin.Context) {
		meta := core.Session.Metadata()
		if meta == nil {
			c.JSON(http.StatusOK, gin.H{"authenticated": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"authenticated":   core.Session.Authenticated(),
			"user_id":         meta.UserID,
			"email":           meta.Email,
			"logged_in_at":    meta.LoggedInAt,
			"secret_strategy": core.Session.SecretStrategy(),
		})
	}
}

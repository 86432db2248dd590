package authgin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func HandleFeatureGET(core *Core) gin.HandlerFunc {
	return func(c *gin.Context) {
		featureID := strings.TrimSpace(c.Param("id"))
		if featureID == "" {
			badRequest(c, "missing feature id")
			return
		}
		c.JSON(http.StatusOK, core.Gate.CanUse(featureID))
	}
}

package authgin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/open-rails/licensekit/refresh"
)

func HandleEntitlementRefreshPOST(core *Core) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok := core.Refresher.RequestRefresh(c.Request.Context(), refresh.ReasonManual, true)
		snap := core.Cache.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"refreshed": ok,
			"status":    snap.Status,
			"reason":    snap.Reason,
		})
	}
}

package authgin

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func HandleEntitlementStatusGET(core *Core) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := core.Cache.Snapshot()
		out := gin.H{
			"status":                  snap.Status,
			"reason":                  snap.Reason,
			"signature_valid":         snap.SignatureValid,
			"days_until_expiry":       snap.DaysUntilExpiry,
			"days_until_grace_expiry": snap.DaysUntilGraceExpiry,
		}
		if !snap.LastRefreshAt.IsZero() {
			out["last_refresh_at"] = snap.LastRefreshAt
		}
		if snap.Payload != nil {
			out["plan"] = snap.Payload.Plan
			out["features"] = snap.Payload.Features
		}
		c.JSON(http.StatusOK, out)
	}
}

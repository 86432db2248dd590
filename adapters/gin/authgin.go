// Package authgin exposes the session and entitlement core over a local HTTP
// surface, for UI processes that talk to the core out of process.
package authgin

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Core bundles the components the handlers drive.
type Core struct {
	Session   SessionService
	Cache     CacheService
	Gate      GateService
	Refresher RefresherService
}

// RegisterRoutes mounts the auth and entitlement endpoints on the router.
func RegisterRoutes(r gin.IRouter, core *Core) {
	r.POST("/auth/login", HandleLoginPOST(core))
	r.POST("/auth/logout", HandleLogoutPOST(core))
	r.GET("/auth/session", HandleSessionGET(core))
	r.GET("/entitlement/status", HandleEntitlementStatusGET(core))
	r.GET("/entitlement/features/:id", HandleFeatureGET(core))
	r.POST("/entitlement/refresh", HandleEntitlementRefreshPOST(core))
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func unauthorized(c *gin.Context, msg string) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": msg})
}

func serverErr(c *gin.Context, msg string) {
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

package middleware

import (
	"encoding/json"
	"net/http"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
)

// AuditLog creates an audit middleware that logs successful write operations.
// Actions are keyed on the matched route template, not the raw path.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only audit successful write operations (status 2xx)
		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}

		action, resourceType := mapRouteToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		resourceID := c.GetString(CtxResourceID)
		if resourceID == "" {
			resourceID = c.Param("id")
		}
		entry := domain.NewAuditLog(action, resourceType, resourceID)
		if id, ok := UserID(c); ok {
			entry.UserID = &id
		}
		entry.OwnerKey = c.GetString(CtxOwnerKey)
		entry.IPAddress = c.ClientIP()

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"request_id": c.GetString(CtxRequestID),
		})
		entry.Details = string(details)

		auditSvc.Log(c.Request.Context(), entry)
	}
}

func mapRouteToAction(route, method string) (domain.AuditAction, string) {
	switch {
	case route == "/api/v1/auth/register" && method == http.MethodPost:
		return domain.AuditActionRegister, "user"
	case route == "/api/v1/auth/login" && method == http.MethodPost:
		return domain.AuditActionLogin, "session"
	case route == "/api/v1/wallets/me/credit/:amount" && method == http.MethodPost:
		return domain.AuditActionCredit, "wallet"
	case route == "/api/v1/albums" && method == http.MethodPost:
		return domain.AuditActionPurchase, "album"
	case route == "/api/v1/albums/:id" && method == http.MethodDelete:
		return domain.AuditActionRemoveAlbum, "album"
	}
	return "", ""
}

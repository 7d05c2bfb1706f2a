package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"nft-marketplace/internal/core/domain"
	"nft-marketplace/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type auditRoute struct {
	action       domain.AuditAction
	resourceType string
}

// auditRoutes maps "METHOD route-template" to the audited action.
var auditRoutes = map[string]auditRoute{
	"POST /api/v1/auth/register":                  {domain.AuditActionRegister, "account"},
	"POST /api/v1/auth/login":                     {domain.AuditActionLogin, "session"},
	"POST /api/v1/listings":                       {domain.AuditActionListItem, "listing"},
	"PUT /api/v1/listings/:collection/:item":      {domain.AuditActionUpdateListing, "listing"},
	"DELETE /api/v1/listings/:collection/:item":   {domain.AuditActionCancelListing, "listing"},
	"POST /api/v1/listings/:collection/:item/buy": {domain.AuditActionBuyItem, "listing"},
	"POST /api/v1/proceeds/withdraw":              {domain.AuditActionWithdrawProceeds, "proceeds"},
}

// AuditLog records successful write requests after the handler has run.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}

		route, ok := auditRoutes[c.Request.Method+" "+c.FullPath()]
		if !ok {
			return
		}

		var accountID *uuid.UUID
		if v, exists := c.Get(CtxAccountID); exists {
			if id, ok := v.(uuid.UUID); ok {
				accountID = &id
			}
		}

		var resourceID string
		if coll := c.Param("collection"); coll != "" {
			resourceID = coll + "/" + c.Param("item")
		} else if addr, ok := CallerAddress(c); ok {
			resourceID = addr.String()
		}

		details, _ := json.Marshal(map[string]any{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"request_id": c.GetString(CtxRequestID),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			AccountID:    accountID,
			Action:       route.action,
			ResourceType: route.resourceType,
			ResourceID:   resourceID,
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now(),
		})
	}
}

package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"zamanyonet-admin/internal/accounts"
	"zamanyonet-admin/internal/app"
	"zamanyonet-admin/internal/auth"
	"zamanyonet-admin/internal/httpapi"
	"zamanyonet-admin/internal/payments"
	"zamanyonet-admin/internal/platform"
	"zamanyonet-admin/internal/rbac"
	"zamanyonet-admin/internal/reporting"
	"zamanyonet-admin/internal/resource"
	"zamanyonet-admin/internal/scheduling"
	"zamanyonet-admin/pkg/utils"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, deps *app.Deps, authSvc *auth.Service, usersDef *resource.Definition[accounts.User], users resource.Gateway[accounts.User]) error {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if deps.DB != nil {
			if err := utils.HealthCheck(c.Request.Context(), deps.DB, 2*time.Second); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	h := httpapi.Handlers{Auth: authSvc, Audit: deps.Audit, CookieSecure: deps.Config.Auth.CookieSecure}
	h.RegisterPublic(api)

	// Everything below requires a live session. The audit viewer and version
	// history are open to every signed-in role.
	protected := api.Group("", auth.RequireSession(authSvc))
	h.RegisterProtected(protected)

	b := deps.Backend()
	adminOnly := rbac.RequireAdmin()

	// Scheduling and billing.
	appointments, err := resource.Mount(protected, b, scheduling.Appointments())
	if err != nil {
		return err
	}
	if _, err = resource.Mount(protected, b, scheduling.Providers()); err != nil {
		return err
	}
	if _, err = resource.Mount(protected, b, scheduling.Services()); err != nil {
		return err
	}
	if _, err = resource.Mount(protected, b, scheduling.Tasks()); err != nil {
		return err
	}
	paymentsGW, err := resource.Mount(protected, b, payments.Payments())
	if err != nil {
		return err
	}
	if _, err = resource.Mount(protected, b, payments.Invoices()); err != nil {
		return err
	}

	// Platform.
	if _, err = resource.Mount(protected, b, platform.Modules(), adminOnly); err != nil {
		return err
	}
	if _, err = resource.Mount(protected, b, platform.Integrations()); err != nil {
		return err
	}
	if _, err = resource.Mount(protected, b, platform.Jobs()); err != nil {
		return err
	}

	// Accounts: ADMIN only.
	resource.NewHandler(usersDef, users).Register(protected, adminOnly)
	if _, err = resource.Mount(protected, b, accounts.APIKeys(), adminOnly); err != nil {
		return err
	}
	if _, err = resource.Mount(protected, b, accounts.SSOConfigs(), adminOnly); err != nil {
		return err
	}

	// Dashboard.
	reports := reporting.NewService(&reporting.GatewayRepo{Appointments: appointments, Payments: paymentsGW})
	reporting.NewHandler(reports).Register(protected)

	return nil
}

package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Staff roles. There is no implicit hierarchy: an endpoint that admits
// SUPER_ADMIN must list it explicitly.
const (
	RoleSuperAdmin    = "SUPER_ADMIN"
	RoleAdmin         = "ADMIN"
	RoleDoctor        = "DOCTOR"
	RoleNurse         = "NURSE"
	RoleReceptionist  = "RECEPTIONIST"
	RoleLabTechnician = "LAB_TECHNICIAN"
	RolePharmacist    = "PHARMACIST"
	RoleBillingStaff  = "BILLING_STAFF"
)

// AllRoles lists every assignable staff role.
var AllRoles = []string{
	RoleSuperAdmin,
	RoleAdmin,
	RoleDoctor,
	RoleNurse,
	RoleReceptionist,
	RoleLabTechnician,
	RolePharmacist,
	RoleBillingStaff,
}

// ValidRole reports whether role is an assignable staff role.
func ValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// DenialRecorder receives a notification whenever a request is rejected by a
// role check, so denials end up in the audit trail with the caller's network
// details.
type DenialRecorder interface {
	RecordDenied(ctx context.Context, userID, method, path, ip, userAgent string)
}

// RequireRole returns middleware that admits only the listed roles. The
// match is exact. Denials return 403 and are reported to the recorder.
func RequireRole(recorder DenialRecorder, roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userRole := RoleFromContext(c.Request().Context())
			for _, required := range roles {
				if userRole == required {
					return next(c)
				}
			}

			if recorder != nil {
				userID := UserIDFromContext(c.Request().Context())
				recorder.RecordDenied(c.Request().Context(), userID,
					c.Request().Method, c.Path(), c.RealIP(), c.Request().UserAgent())
			}

			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

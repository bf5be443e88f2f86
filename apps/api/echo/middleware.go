package echoapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/kotoba-school/kotoba/core/access"
)

// guardMiddleware enforces an access requirement on a route group. The
// decision is made by the access guard; a denial names what was missing.
func guardMiddleware(req access.Requirement) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if decision := access.Check(contextSubject(ctx), req); !decision.Allowed {
				return guardError(decision)
			}
			return next(ctx)
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc {
	return guardMiddleware(access.Requirement{Role: access.RoleAdmin})
}

func guardError(decision access.Decision) *echo.HTTPError {
	if decision.Reason == access.ReasonAuthRequired {
		return errUnauthorized
	}
	if len(decision.Missing) == 0 {
		return errHttpForbidden
	}
	missing := make([]string, 0, len(decision.Missing))
	for _, perm := range decision.Missing {
		missing = append(missing, string(perm))
	}
	return echo.NewHTTPError(
		http.StatusForbidden,
		fmt.Sprintf("%s: %s", decision.Reason, strings.Join(missing, ", ")),
	)
}

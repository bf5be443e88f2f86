package echoapi

import (
	"net/http"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kotoba-school/kotoba/core"
	"github.com/kotoba-school/kotoba/core/access"
	"github.com/kotoba-school/kotoba/core/user"
)

var errUsrNotFoundInCtx = errors.New("user object not found in echo.Context")

type authApi struct {
	svc      user.Service
	validate *validator.Validate
}

func registerAuthAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := authApi{
		svc:      deps.UserSvc,
		validate: deps.Validate,
	}

	ag := g.Group("/auth")

	// un-authed endpoints
	// TODO: rate limit `/forgot-password` & `/reset-password`
	ag.POST("/login", api.login)
	ag.POST("/register", api.register)
	ag.POST("/forgot-password", api.forgotPassword)
	ag.GET("/reset-password", api.validateResetToken)
	ag.POST("/reset-password", api.confirmPasswordReset)

	// authed endpoints
	ag.POST("/token-refresh", api.refreshToken, jwt)
}

// Handlers

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := authenticate(data.Email, data.Password, api.svc)
	if err != nil {
		if herr, ok := errors.Cause(err).(*echo.HTTPError); ok {
			return ctx.JSON(herr.Code, errorResponse(friendlyAuthMessage(err)))
		}
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	usr, _ := api.svc.GetByEmail(data.Email)
	return ctx.JSON(http.StatusOK, LoginResponse{Success: true, Token: token, User: &usr})
}

// register signs a new student up and signs them in. The sign-in phase only
// runs when the account was created.
func (api *authApi) register(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(api.validate, api.svc); err != nil {
		if errors.Cause(err) == user.ErrEmailExists {
			return core.NewValidationError(nil, core.FieldError{Field: "email", Error: user.ErrEmailExists.Error()})
		}
		return err
	}

	if _, err := api.svc.Register(data); err != nil {
		return errors.Wrap(err, "registering user")
	}

	claims, err := authenticate(data.Email, data.Password, api.svc)
	if err != nil {
		if herr, ok := errors.Cause(err).(*echo.HTTPError); ok {
			return ctx.JSON(herr.Code, errorResponse(friendlyAuthMessage(err)))
		}
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	usr, _ := api.svc.GetByEmail(data.Email)
	return ctx.JSON(http.StatusCreated, LoginResponse{Success: true, Token: token, User: &usr})
}

func (api *authApi) forgotPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(data.Email); !(err == nil || errors.Cause(err) == user.ErrNotFound) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, messageResponse(
		"If the email address supplied is associated with an active account on this system, "+
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	))
}

// validateResetToken checks a reset token without consuming it, so the
// frontend can show the form or the failure before any password is typed.
func (api *authApi) validateResetToken(ctx echo.Context) error {
	token := ctx.QueryParam("token")
	if token == "" {
		return ctx.JSON(http.StatusOK, TokenValidityResponse{Valid: false, Message: resetTokenRejectedMsg})
	}
	if err := api.svc.ValidateResetToken(token); err != nil {
		return ctx.JSON(http.StatusOK, TokenValidityResponse{Valid: false, Message: resetTokenRejectedMsg})
	}
	return ctx.JSON(http.StatusOK, TokenValidityResponse{Valid: true, Message: "Token is valid."})
}

func (api *authApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(data); err != nil {
		switch errors.Cause(err) {
		case user.ErrTokenInvalid, user.ErrTokenExpired, user.ErrTokenUsed:
			return core.NewValidationError(nil, core.FieldError{Field: "token", Error: resetTokenRejectedMsg})
		}
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, messageResponse("Password has been reset with the new password."))
}

func (api *authApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Success: true, Token: token})
}

type userApi struct {
	svc      user.Service
	validate *validator.Validate
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := userApi{
		svc:      deps.UserSvc,
		validate: deps.Validate,
	}

	ug := g.Group("/users", jwt)
	ug.POST("", api.create, adminMiddleware())
	ug.GET("", api.query, guardMiddleware(access.Requirement{Role: access.RoleAdmin, Permission: access.PermUserRead}))
	ug.DELETE("", api.destroyMultiple, adminMiddleware())
	ug.GET("/roles", api.queryRoles, adminMiddleware())

	// detail endpoints
	dg := g.Group("/user/:id", jwt)
	dg.PUT("/role", api.updateRole, adminMiddleware())

	og := dg.Group("", ctxUserOrAdminMiddleware(api.svc))
	og.GET("", api.retrieve)
	og.PUT("", api.update)
	og.DELETE("", api.destroy, adminMiddleware())
}

// Handlers

// create is the privileged path: unlike self-registration, it honors the
// requested role and skips the sign-in phase.
func (api *userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}

	usr, err := api.svc.Create(data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}

	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) query(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, dataResponse([]user.User{}))
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := api.svc.Filter(*filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, dataResponse(users))
}

// updateRole changes a user's role. The route is admin-gated; the claims are
// re-checked here so the gate does not depend on route wiring alone.
func (api *userApi) updateRole(ctx echo.Context) error {
	if claims, err := getContextClaims(ctx); err != nil || claims.EffectiveRole() != access.RoleAdmin {
		return errHttpForbidden
	}

	var data RoleUpdateRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RoleUpdateRequest")
	}

	usr, err := api.svc.UpdateRole(ctx.Param("id"), access.Role(data.Role))
	if err != nil {
		switch errors.Cause(err) {
		case user.ErrInvalidRole:
			return ctx.JSON(http.StatusBadRequest, errorResponse("role must be one of: student, teacher, admin"))
		case user.ErrNotFound:
			return ctx.JSON(http.StatusNotFound, errorResponse("user not found"))
		}
		return errors.Wrap(err, "updating role")
	}

	return ctx.JSON(http.StatusOK, RoleUpdateResponse{
		Success: true,
		Message: "Role updated.",
		User:    usr,
	})
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) update(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	var data user.UpdateUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}

	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.IsAdmin() {
		// `IsActive`, `Role` and `Email` can only be changed by admin
		if data.IsActive != nil || data.Role != "" || data.Email != "" {
			return errHttpForbidden
		}
	}

	if err := data.Validate(usr, api.validate, api.svc); err != nil {
		return err
	}

	usr, err = api.svc.Update(usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}

	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) destroy(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	// Say No to Suicide! ctxUser cannot delete themselves
	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if usr.ID == ctxUsr.ID {
		return errHttpForbidden
	}

	if err := api.svc.Delete(usr.ID); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}

	// Say No to Suicide! ctxUser cannot delete themselves
	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	sort.Strings(query.IDs)
	if i := sort.SearchStrings(query.IDs, ctxUsr.ID); i < len(query.IDs) {
		if match := query.IDs[i]; ctxUsr.ID == match {
			return errHttpForbidden
		}
	}

	if err := api.svc.Delete(query.IDs...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	configs := make(map[access.Role]access.RoleConfig, len(access.AllRoles))
	for _, role := range access.AllRoles {
		if rc, ok := access.Config(role); ok {
			configs[role] = rc
		}
	}
	return ctx.JSON(http.StatusOK, dataResponse(configs))
}

func ctxUserOrAdminMiddleware(svc user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx, svc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}

			if ctx.Param("id") == ctxUsr.ID || ctxUsr.IsAdmin() {
				if usr, err := svc.GetByID(ctx.Param("id")); err == nil {
					ctx.Set("object", usr)
					return next(ctx)
				} else if errors.Cause(err) != user.ErrNotFound {
					return errors.Wrap(err, "finding user by ID")
				}
			}
			return errHttpNotFound
		}
	}
}

// resetTokenRejectedMsg is the single outward message for every reset-token
// failure; expired, used and unknown tokens are indistinguishable to callers.
var resetTokenRejectedMsg = "This password reset link is invalid or has expired."

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Success bool       `json:"success"`
		Token   string     `json:"token"`
		User    *user.User `json:"user,omitempty"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	TokenValidityResponse struct {
		Valid   bool   `json:"valid"`
		Message string `json:"message"`
	}

	RoleUpdateRequest struct {
		Role string `json:"role"`
	}

	RoleUpdateResponse struct {
		Success bool      `json:"success"`
		Message string    `json:"message"`
		User    user.User `json:"user"`
	}

	DestroyMultipleRequest struct {
		IDs []string `query:"id"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}

package main

import (
	"errors"
	"net/http"
	"strings"

	"storefront/internal/auth"

	"golang.org/x/crypto/bcrypt"
)

type CreateAdminTokenPayload struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=3,max=72"`
}

type AdminTokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

var errInvalidCredentials = errors.New("invalid credentials")

// createAdminTokenHandler godoc
//
//	@Summary		Admin login
//	@Description	Exchanges the admin credentials for a bearer token.
//	@Tags			Admin-Auth
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		CreateAdminTokenPayload	true	"Admin credentials"
//	@Success		200		{object}	envelope{data=AdminTokenResponse}
//	@Failure		400		{object}	error
//	@Failure		401		{object}	error
//	@Failure		500		{object}	error
//	@Router			/admin/token [post]
func (app *application) createAdminTokenHandler(w http.ResponseWriter, r *http.Request) {
	var payload CreateAdminTokenPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	admin := app.config.auth.admin
	if admin.email == "" || admin.passwordHash == "" {
		app.unauthorizedErrorResponse(w, r, errors.New("admin account is not configured"))
		return
	}
	if !strings.EqualFold(strings.TrimSpace(payload.Email), admin.email) {
		app.unauthorizedErrorResponse(w, r, errInvalidCredentials)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.passwordHash), []byte(payload.Password)); err != nil {
		app.unauthorizedErrorResponse(w, r, errInvalidCredentials)
		return
	}

	token, err := app.authenticator.GenerateToken(admin.email, auth.RoleAdmin)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	app.logger.Infow("admin token issued", "subject", admin.email)
	app.jsonResponse(w, http.StatusOK, AdminTokenResponse{
		Token:     token,
		ExpiresIn: int64(app.config.auth.token.exp.Seconds()),
	})
}

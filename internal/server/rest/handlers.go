package rest

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

const (
	msgServerError     = "Error en el servidor"
	msgInvalidBody     = "Cuerpo de la solicitud inválido"
	msgInvalidFields   = "Datos inválidos: "
	msgUserNotFound    = "Usuario no encontrado"
	msgWrongPassword   = "Contraseña incorrecta"
	msgEmailExists     = "El correo electronico ya existe"
	msgNoToken         = "No token provided."
	msgInvalidToken    = "Invalid token."
	msgTokenExpired    = "Token expired."
	msgLogoutNotFound  = "User not found."
	msgLoggedOut       = "Session closed successfully."
	msgLogoutError     = "Server error."
	msgResetSent       = "Se ha enviado un correo con las instrucciones para recuperar tu contraseña"
	msgResetInvalid    = "Token inválido o expirado"
	msgSamePassword    = "La nueva contraseña debe ser diferente de la actual"
	msgPasswordUpdated = "Contraseña actualizada correctamente"
)

func respond(c *gin.Context, status int, msg string) {
	c.JSON(status, msgResponse{Msg: msg})
}

// internalError logs err and replies with a generic message so no internal
// detail reaches the client.
func (s *Server) internalError(c *gin.Context, operation string, err error, msg string) {
	s.logger.Error(c.Request.Context(), "request failed",
		"operation", operation,
		"error", err,
		"request_id", c.GetString("request_id"),
	)
	respond(c, http.StatusInternalServerError, msg)
}

func validationMessage(err error) string {
	var ve *common.ValidationError
	if errors.As(err, &ve) {
		return ve.Msg
	}
	return err.Error()
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, bindingMessage(err))
		return
	}

	res, err := s.accounts.Login(c.Request.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, newAuthResponse(res))
	case errors.Is(err, common.ErrorNotFound):
		respond(c, http.StatusBadRequest, msgUserNotFound)
	case errors.Is(err, common.ErrInvalidCredentials):
		respond(c, http.StatusUnauthorized, msgWrongPassword)
	default:
		s.internalError(c, "login", err, msgServerError)
	}
}

func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, bindingMessage(err))
		return
	}

	res, err := s.accounts.Register(c.Request.Context(), req.profile())
	switch {
	case err == nil:
		c.JSON(http.StatusOK, newAuthResponse(res))
	case errors.Is(err, common.ErrConflict):
		respond(c, http.StatusConflict, msgEmailExists)
	case errors.Is(err, common.ErrValidation):
		respond(c, http.StatusBadRequest, validationMessage(err))
	default:
		s.internalError(c, "register", err, msgServerError)
	}
}

// bearerToken accepts both a raw token and the "Bearer <token>" form.
func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

func (s *Server) logout(c *gin.Context) {
	token := bearerToken(c.GetHeader(common.AuthorizationHeaderName))

	err := s.accounts.Logout(c.Request.Context(), token)
	switch {
	case err == nil:
		respond(c, http.StatusOK, msgLoggedOut)
	case errors.Is(err, common.ErrUnauthenticated):
		respond(c, http.StatusUnauthorized, msgNoToken)
	case errors.Is(err, common.ErrTokenExpired):
		respond(c, http.StatusUnauthorized, msgTokenExpired)
	case errors.Is(err, common.ErrInvalidToken):
		respond(c, http.StatusUnauthorized, msgInvalidToken)
	case errors.Is(err, common.ErrorNotFound):
		respond(c, http.StatusNotFound, msgLogoutNotFound)
	default:
		s.internalError(c, "logout", err, msgLogoutError)
	}
}

func (s *Server) requestPasswordReset(c *gin.Context) {
	var req passwordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, bindingMessage(err))
		return
	}

	err := s.accounts.RequestPasswordReset(c.Request.Context(), req.Email)
	switch {
	case err == nil:
		respond(c, http.StatusOK, msgResetSent)
	case errors.Is(err, common.ErrorNotFound):
		respond(c, http.StatusNotFound, msgUserNotFound)
	default:
		s.internalError(c, "request password reset", err, msgServerError)
	}
}

func (s *Server) completePasswordReset(c *gin.Context) {
	var req completePasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, bindingMessage(err))
		return
	}

	err := s.accounts.CompletePasswordReset(c.Request.Context(), req.Token, req.NewPassword)
	switch {
	case err == nil:
		respond(c, http.StatusOK, msgPasswordUpdated)
	case errors.Is(err, common.ErrInvalidOrExpiredToken):
		respond(c, http.StatusBadRequest, msgResetInvalid)
	case errors.Is(err, common.ErrSamePassword):
		respond(c, http.StatusBadRequest, msgSamePassword)
	case errors.Is(err, common.ErrValidation):
		respond(c, http.StatusBadRequest, validationMessage(err))
	default:
		s.internalError(c, "complete password reset", err, msgServerError)
	}
}

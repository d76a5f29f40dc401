package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/devtitozzzzg/todo/internal/auth"
	dom "github.com/devtitozzzzg/todo/internal/domain"
	"github.com/devtitozzzzg/todo/internal/dto"
	"github.com/devtitozzzzg/todo/internal/metrics"
	"github.com/devtitozzzzg/todo/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	msgCredentialsRequired = "username and password are required"
	msgSignupRequired      = "username (up to 30 characters) and password (up to 72 bytes) are required"
	msgInvalidCredentials  = "invalid username or password"
	msgUsernameTaken       = "username already taken"
)

// AuthHandler handles signup, login and logout for both the pages and
// the JSON API.
type AuthHandler struct {
	sessions     *service.SessionService
	userSvc      *service.UserService
	metrics      *metrics.Metrics
	logger       *slog.Logger
	cookieSecure bool
}

// NewAuthHandler returns a new AuthHandler.
func NewAuthHandler(sessions *service.SessionService, userSvc *service.UserService, m *metrics.Metrics, logger *slog.Logger, cookieSecure bool) *AuthHandler {
	return &AuthHandler{sessions: sessions, userSvc: userSvc, metrics: m, logger: logger, cookieSecure: cookieSecure}
}

func (h *AuthHandler) SignupPage(c *gin.Context) {
	c.HTML(http.StatusOK, "signup.html", newPage(c, "Sign up"))
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		h.signupForm(c, http.StatusBadRequest, req.Username, msgSignupRequired)
		return
	}
	_, err := h.userSvc.Register(c.Request.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		h.metrics.AuthEvent(metrics.EventSignup)
		c.Redirect(http.StatusFound, "/login")
	case errors.Is(err, service.ErrUsernameTaken):
		h.metrics.AuthEvent(metrics.EventSignupTaken)
		h.signupForm(c, http.StatusConflict, req.Username, msgUsernameTaken)
	case errors.Is(err, service.ErrValidation):
		h.signupForm(c, http.StatusBadRequest, req.Username, msgSignupRequired)
	default:
		h.logger.Error("signup failed", "error", err)
		renderError(c, http.StatusInternalServerError, msgServerError)
	}
}

func (h *AuthHandler) LoginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", newPage(c, "Log in"))
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		h.loginForm(c, http.StatusBadRequest, req.Username, msgCredentialsRequired)
		return
	}
	sess, err := h.sessions.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			h.metrics.AuthEvent(metrics.EventLoginFailed)
			h.loginForm(c, http.StatusUnauthorized, req.Username, msgInvalidCredentials)
			return
		}
		h.logger.Error("login failed", "error", err)
		renderError(c, http.StatusInternalServerError, msgServerError)
		return
	}
	h.metrics.AuthEvent(metrics.EventLogin)
	h.setSessionCookie(c, sess)
	c.Redirect(http.StatusFound, "/")
}

// Logout ends the session and sends the browser back to the login page.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.endSession(c)
	c.Redirect(http.StatusFound, "/login")
}

func (h *AuthHandler) signupForm(c *gin.Context, status int, username, msg string) {
	p := newPage(c, "Sign up")
	p.Username = username
	p.Error = msg
	c.HTML(status, "signup.html", p)
}

func (h *AuthHandler) loginForm(c *gin.Context, status int, username, msg string) {
	p := newPage(c, "Log in")
	p.Username = username
	p.Error = msg
	c.HTML(status, "login.html", p)
}

// APILogin godoc
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body  dto.LoginRequest  true  "Credentials"
// @Success      200   {object}  dto.UserResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      401   {object}  dto.ErrorResponse
// @Failure      500   {object}  dto.ErrorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) APILogin(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: msgCredentialsRequired})
		return
	}
	sess, err := h.sessions.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			h.metrics.AuthEvent(metrics.EventLoginFailed)
			c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: msgInvalidCredentials})
			return
		}
		h.logger.Error("api login failed", "error", err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "login failed"})
		return
	}
	h.metrics.AuthEvent(metrics.EventLogin)
	h.setSessionCookie(c, sess)
	c.JSON(http.StatusOK, userToResponse(sess.User))
}

// APIRegister godoc
// @Summary      Register
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RegisterRequest  true  "Credentials"
// @Success      201   {object}  dto.UserResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      500   {object}  dto.ErrorResponse
// @Router       /auth/register [post]
func (h *AuthHandler) APIRegister(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: msgSignupRequired})
		return
	}
	user, err := h.userSvc.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: msgSignupRequired})
			return
		}
		if errors.Is(err, service.ErrUsernameTaken) {
			h.metrics.AuthEvent(metrics.EventSignupTaken)
			c.JSON(http.StatusConflict, dto.ErrorResponse{Error: msgUsernameTaken})
			return
		}
		h.logger.Error("api register failed", "error", err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "registration failed"})
		return
	}
	h.metrics.AuthEvent(metrics.EventSignup)
	sess, err := h.sessions.Start(c.Request.Context(), user)
	if err != nil {
		h.logger.Error("api register session failed", "error", err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to create session"})
		return
	}
	h.setSessionCookie(c, sess)
	c.JSON(http.StatusCreated, userToResponse(user))
}

// APILogout godoc
// @Summary      Logout
// @Tags         auth
// @Success      204
// @Router       /auth/logout [post]
func (h *AuthHandler) APILogout(c *gin.Context) {
	h.endSession(c)
	c.Status(http.StatusNoContent)
}

// APIMe godoc
// @Summary      Current user
// @Tags         auth
// @Produce      json
// @Security     CookieAuth
// @Success      200  {object}  dto.UserResponse
// @Failure      401  {object}  dto.ErrorResponse
// @Router       /auth/me [get]
func (h *AuthHandler) APIMe(c *gin.Context) {
	u, _ := auth.UserFromContext(c)
	c.JSON(http.StatusOK, userToResponse(u))
}

func (h *AuthHandler) endSession(c *gin.Context) {
	if token := auth.TokenFromRequest(c); token != "" {
		if err := h.sessions.EndSession(c.Request.Context(), token); err != nil {
			h.logger.Warn("end session failed", "error", err)
		}
	}
	h.metrics.AuthEvent(metrics.EventLogout)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, "", -1, "/", "", h.cookieSecure, true)
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, sess service.Session) {
	maxAge := int(time.Until(sess.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, sess.Token, maxAge, "/", "", h.cookieSecure, true)
}

func userToResponse(u dom.User) dto.UserResponse {
	return dto.UserResponse{ID: u.ID, Username: u.Username}
}

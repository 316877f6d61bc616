package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handlers provides HTTP handlers for authentication endpoints
type Handlers struct {
	service *Service
}

// NewHandlers creates new auth handlers
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers auth routes on the given router group
func (h *Handlers) RegisterRoutes(rg *gin.RouterGroup, mw *Middleware) {
	rg.POST("/register", h.Register)
	rg.POST("/login", h.Login)
	rg.POST("/refresh", h.Refresh)
	rg.GET("/me", mw.RequireAuth(), h.GetMe)
}

func respondAuthError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	payload := any(gin.H{"code": "INTERNAL_ERROR", "message": "internal server error"})

	if authErr, ok := err.(AuthError); ok {
		payload = authErr
		switch authErr {
		case ErrInvalidCredentials, ErrInvalidToken, ErrTokenExpired, ErrUnauthorized:
			status = http.StatusUnauthorized
		case ErrForbidden:
			status = http.StatusForbidden
		case ErrUserNotFound:
			status = http.StatusNotFound
		case ErrEmailExists:
			status = http.StatusConflict
		case ErrWeakPassword:
			status = http.StatusBadRequest
		}
	}

	c.JSON(status, gin.H{"success": false, "error": payload})
}

// Register handles POST /api/auth/register
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   gin.H{"code": "INVALID_REQUEST", "message": err.Error()},
		})
		return
	}

	resp, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": resp})
}

// Login handles POST /api/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   gin.H{"code": "INVALID_REQUEST", "message": err.Error()},
		})
		return
	}

	resp, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": resp})
}

// Refresh handles POST /api/auth/refresh
func (h *Handlers) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   gin.H{"code": "INVALID_REQUEST", "message": err.Error()},
		})
		return
	}

	resp, err := h.service.Refresh(c.Request.Context(), req)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": resp})
}

// GetMe handles GET /api/auth/me
func (h *Handlers) GetMe(c *gin.Context) {
	userID, ok := GetUserID(c)
	if !ok {
		respondAuthError(c, ErrUnauthorized)
		return
	}

	resp, err := h.service.GetMe(c.Request.Context(), userID)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": resp})
}

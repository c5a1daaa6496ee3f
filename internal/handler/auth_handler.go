package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/quocanhngo/talkhub/internal/model"
	"github.com/quocanhngo/talkhub/internal/service"
	"github.com/quocanhngo/talkhub/pkg/storage"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *service.AuthService
	storage     storage.Storage
}

// NewAuthHandler creates the handler. storage may be nil, which disables
// avatar file uploads.
func NewAuthHandler(authService *service.AuthService, storage storage.Storage) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		storage:     storage,
	}
}

// Register godoc
// @Summary Register a new user
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body model.RegisterRequest true "Register request"
// @Success 201 {object} model.LoginResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 409 {object} model.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Login godoc
// @Summary Login with email and password
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body model.LoginRequest true "Login request"
// @Success 200 {object} model.LoginResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Logout godoc
// @Summary Logout
// @Description Invalidate current token and set user offline
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.SuccessResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	userID := currentUserID(c)
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 {
		c.JSON(http.StatusUnauthorized, model.ErrorResponse{Error: "Invalid token format"})
		return
	}

	if err := h.authService.Logout(c.Request.Context(), userID, parts[1]); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Logged out successfully"})
}

// GetProfile godoc
// @Summary Get current user profile
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.UserResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /auth/profile [get]
func (h *AuthHandler) GetProfile(c *gin.Context) {
	profile, err := h.authService.GetProfile(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// UpdateProfile godoc
// @Summary Update user profile
// @Description Accepts JSON, or multipart form data with an optional avatar file
// @Tags Auth
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param body body model.UpdateProfileRequest false "Profile fields"
// @Param avatar formData file false "Avatar image file"
// @Success 200 {object} model.UserResponse
// @Failure 409 {object} model.ErrorResponse
// @Router /auth/profile [put]
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	userID := currentUserID(c)

	var req model.UpdateProfileRequest
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid form data", Message: err.Error()})
			return
		}
		if v := form.Value["username"]; len(v) > 0 {
			req.Username = v[0]
		}
		if v := form.Value["status"]; len(v) > 0 {
			req.Status = &v[0]
		}

		if files := form.File["avatar"]; len(files) > 0 {
			if h.storage == nil {
				c.JSON(http.StatusServiceUnavailable, model.ErrorResponse{Error: "File upload service unavailable"})
				return
			}
			fileHeader := files[0]
			if model.KindForMime(fileHeader.Header.Get("Content-Type")) != model.MessageKindImage {
				c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Avatar must be an image"})
				return
			}

			file, err := fileHeader.Open()
			if err != nil {
				c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Failed to read file", Message: err.Error()})
				return
			}
			defer file.Close()

			result, err := h.storage.Upload(c.Request.Context(), file, fileHeader, "avatars")
			if err != nil {
				respondError(c, err)
				return
			}
			req.AvatarURL = &result.URL
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.authService.UpdateProfile(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

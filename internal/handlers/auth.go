package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"pfmt-portal/internal/models"
	"pfmt-portal/internal/roles"
	"pfmt-portal/internal/store"
)

type registerRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Role        string `json:"role"`
}

func (h *Handlers) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "VALIDATION_ERROR", "message": "invalid request body"}})
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if len(req.Username) < 3 || len(req.Password) < 6 {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "VALIDATION_ERROR", "message": "username or password too short"}})
		return
	}

	// Normalize maps garbage to vendor, so reject unknown tokens up front
	if req.Role != "" && !roles.IsValid(req.Role) {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "VALIDATION_ERROR", "message": "unknown role"}})
		return
	}
	role := roles.Normalize(req.Role)

	// self-registration covers the working roles only; director and admin
	// accounts are provisioned out of band
	switch role {
	case roles.RoleVendor, roles.RoleAnalyst, roles.RolePMI, roles.RolePM, roles.RoleSPM:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "VALIDATION_ERROR", "message": "role not available for self-registration"}})
		return
	}

	if _, err := h.Stores.Users.GetUserByUsername(c.Request.Context(), req.Username); err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": gin.H{"code": "VALIDATION_ERROR", "message": "username already taken"}})
		return
	}

	hash, _ := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	user := models.User{
		Username:     req.Username,
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
	}
	if err := h.Stores.Users.CreateUser(c.Request.Context(), &user); err != nil {
		if err == store.ErrDuplicate {
			c.JSON(http.StatusConflict, gin.H{"error": gin.H{"code": "VALIDATION_ERROR", "message": "username already taken"}})
			return
		}
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "user": publicUser(user)})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "VALIDATION_ERROR", "message": "invalid request body"}})
		return
	}

	user, err := h.Stores.Users.GetUserByUsername(c.Request.Context(), req.Username)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": "AUTH_FAILED", "message": "invalid username or password"}})
		return
	}
	if !user.IsActive {
		c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": "AUTH_FAILED", "message": "account is deactivated"}})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": "AUTH_FAILED", "message": "invalid username or password"}})
		return
	}

	sess := sessions.Default(c)
	sess.Set("user_id", user.ID)
	sess.Set("role", string(user.Role))
	sess.Set("username", user.Username)
	sess.Set("display_name", user.DisplayName)
	_ = sess.Save()

	c.JSON(http.StatusOK, gin.H{"success": true, "user": publicUser(user)})
}

func (h *Handlers) Logout(c *gin.Context) {
	sess := sessions.Default(c)
	sess.Clear()
	_ = sess.Save()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func publicUser(u models.User) gin.H {
	return gin.H{
		"id":           u.ID,
		"username":     u.Username,
		"display_name": u.DisplayName,
		"role":         string(u.Role),
		"is_active":    u.IsActive,
	}
}

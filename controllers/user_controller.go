package controllers

import (
	"net/http"
	"time"

	"trading_backend/models"
	"trading_backend/services/auth"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// UserController handles registration and login
type UserController struct {
	db         *gorm.DB
	jwtService *auth.JWTService
}

// NewUserController creates a new user controller
func NewUserController(db *gorm.DB, jwtService *auth.JWTService) *UserController {
	return &UserController{db: db, jwtService: jwtService}
}

// Register creates a new user account
// POST /api/v1/auth/register
func (uc *UserController) Register(c *gin.Context) {
	var request struct {
		Email     string `json:"email" binding:"required,email"`
		Password  string `json:"password" binding:"required,min=6"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Phone     string `json:"phone"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ValidationFailed", "message": err.Error()})
		return
	}

	var existing models.User
	if err := uc.db.Where("email = ?", request.Email).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "RegistrationFailed", "message": "Email is already registered"})
		return
	}

	hash, err := auth.HashPassword(request.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "RegistrationFailed", "message": "Failed to create account"})
		return
	}

	user := models.User{
		Email:        request.Email,
		PasswordHash: hash,
		FirstName:    request.FirstName,
		LastName:     request.LastName,
		Phone:        request.Phone,
		Role:         "user",
		IsActive:     true,
	}
	if err := uc.db.Create(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "RegistrationFailed", "message": "Failed to create account"})
		return
	}

	token, err := uc.jwtService.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "RegistrationFailed", "message": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"data": gin.H{
			"user_id": user.ID,
			"email":   user.Email,
			"token":   token,
		},
	})
}

// Login authenticates a user and issues a token
// POST /api/v1/auth/login
func (uc *UserController) Login(c *gin.Context) {
	var request struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ValidationFailed", "message": err.Error()})
		return
	}

	var user models.User
	if err := uc.db.Where("email = ? AND is_active = ?", request.Email, true).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "LoginFailed", "message": "Invalid email or password"})
		return
	}

	if !auth.CheckPassword(user.PasswordHash, request.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "LoginFailed", "message": "Invalid email or password"})
		return
	}

	token, err := uc.jwtService.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "LoginFailed", "message": "Failed to issue token"})
		return
	}

	now := time.Now()
	uc.db.Model(&user).Update("last_login_at", now)

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"user_id": user.ID,
			"email":   user.Email,
			"token":   token,
		},
	})
}

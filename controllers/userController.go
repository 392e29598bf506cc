package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ken-eddy/simplesales/auth"
	"github.com/ken-eddy/simplesales/middleware"
)

type AuthService interface {
	Signup(ctx context.Context, in auth.SignupInput) error
	Login(ctx context.Context, in auth.LoginInput) (string, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	PromoteAdmin(ctx context.Context, configured, presented, email string) error
}

type UserController struct {
	auth        AuthService
	tokenTTL    time.Duration
	adminSecret string
}

func NewUserController(svc AuthService, tokenTTL time.Duration, adminSecret string) *UserController {
	return &UserController{auth: svc, tokenTTL: tokenTTL, adminSecret: adminSecret}
}

func (uc *UserController) CreateUser(c *gin.Context) {
	var input auth.SignupInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Invalid input")
		return
	}

	if err := uc.auth.Signup(c.Request.Context(), input); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "User created successfully"})
}

// Login accepts a JSON body or an OAuth2 password form and answers with the
// token in the body and in an HttpOnly cookie.
func (uc *UserController) Login(c *gin.Context) {
	var creds auth.LoginInput
	if err := c.ShouldBind(&creds); err != nil {
		badRequest(c, "Invalid input")
		return
	}

	token, err := uc.auth.Login(c.Request.Context(), creds)
	if err != nil {
		respondError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(middleware.TokenCookie, token, int(uc.tokenTTL.Seconds()), "/", "", true, true)
	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

func (uc *UserController) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(middleware.TokenCookie, "", -1, "/", "", true, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (uc *UserController) ForgotPassword(c *gin.Context) {
	var input struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "A valid email is required")
		return
	}

	if err := uc.auth.ForgotPassword(c.Request.Context(), input.Email); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "If the email exists, a reset link has been sent"})
}

func (uc *UserController) ResetPassword(c *gin.Context) {
	var input struct {
		Token       string `json:"token" binding:"required"`
		NewPassword string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Invalid input")
		return
	}

	if err := uc.auth.ResetPassword(c.Request.Context(), input.Token, input.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password reset successful"})
}

func (uc *UserController) PromoteAdmin(c *gin.Context) {
	var input struct {
		Email  string `json:"email" binding:"required"`
		Secret string `json:"secret" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Invalid input")
		return
	}

	if err := uc.auth.PromoteAdmin(c.Request.Context(), uc.adminSecret, input.Secret, input.Email); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User promoted to admin"})
}

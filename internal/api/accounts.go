package api

import (
	"net/http"

	"forest-fashion/internal/service"

	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	session, err := h.svc.Auth.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "User created successfully",
		"token":   session.Token,
		"user":    session.User,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	session, err := h.svc.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   session.Token,
		"user":    session.User,
	})
}

func (h *Handler) me(c *gin.Context) {
	user, err := h.svc.Auth.Me(c.Request.Context(), callerOf(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *Handler) forgetPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	reset, err := h.svc.Auth.ForgetPassword(c.Request.Context(), req.Email)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "Password reset instructions sent to your email",
		"resetUrl": reset.ResetURL,
		"email":    reset.Email,
	})
}

func (h *Handler) resetPassword(c *gin.Context) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	if err := h.svc.Auth.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password reset successfully"})
}

func (h *Handler) verifyResetToken(c *gin.Context) {
	info, err := h.svc.Auth.VerifyResetToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *Handler) seedAdmin(c *gin.Context) {
	admin := h.opts.Admin
	if _, err := h.svc.Auth.SeedAdmin(c.Request.Context(), admin.Name, admin.Email, admin.Password); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Admin user created successfully"})
}

func (h *Handler) getProfile(c *gin.Context) {
	profile, err := h.svc.Profiles.Get(c.Request.Context(), callerOf(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) saveProfile(c *gin.Context) {
	var in service.ProfileInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	profile, err := h.svc.Profiles.Save(c.Request.Context(), callerOf(c).UserID, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Profile updated successfully",
		"profile": profile,
	})
}

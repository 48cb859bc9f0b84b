package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/foxxcyber/equiptrack/internal/database"
	"github.com/foxxcyber/equiptrack/internal/middleware"
	"github.com/foxxcyber/equiptrack/internal/models"
)

// Register creates an operator account and returns a bearer token for it
func (h *Handler) Register(c *fiber.Ctx) error {
	var req models.RegisterRequest
	if msg, ok := parseBody(c, h.validate, &req); !ok {
		return Error(c, fiber.StatusBadRequest, msg)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to process password")
	}

	user, err := h.db.CreateUser(c.Context(), strings.ToLower(strings.TrimSpace(req.Email)), string(hashedPassword), req.Name)
	if err != nil {
		if errors.Is(err, database.ErrEmailExists) {
			return Error(c, fiber.StatusConflict, "email already registered")
		}
		h.logger.WithError(err).Error("Failed to create user")
		return Error(c, fiber.StatusInternalServerError, "failed to create user")
	}

	token, err := middleware.GenerateToken(h.cfg, user)
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to generate token")
	}

	return Created(c, models.AuthResponse{
		Token: token,
		User:  user,
	})
}

// Login exchanges email and password for a bearer token
func (h *Handler) Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if msg, ok := parseBody(c, h.validate, &req); !ok {
		return Error(c, fiber.StatusBadRequest, msg)
	}

	user, err := h.db.GetUserByEmail(c.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return Error(c, fiber.StatusUnauthorized, database.ErrInvalidCredentials.Error())
		}
		return Error(c, fiber.StatusInternalServerError, "authentication failed")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return Error(c, fiber.StatusUnauthorized, database.ErrInvalidCredentials.Error())
	}

	if err := h.db.UpdateUserLastLogin(c.Context(), user.ID); err != nil {
		h.logger.WithError(err).WithField("user_id", user.ID).Warn("Failed to update last login")
	}

	token, err := middleware.GenerateToken(h.cfg, user)
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to generate token")
	}

	return Success(c, models.AuthResponse{
		Token: token,
		User:  user,
	})
}

// GetCurrentUser returns the account behind the bearer token
func (h *Handler) GetCurrentUser(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		return Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	user, err := h.db.GetUserByID(c.Context(), userID)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return Error(c, fiber.StatusNotFound, "user not found")
		}
		return Error(c, fiber.StatusInternalServerError, "failed to get user")
	}

	return Success(c, user)
}

// RefreshToken extends a session that is still valid
func (h *Handler) RefreshToken(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		return Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	user, err := h.db.GetUserByID(c.Context(), userID)
	if err != nil {
		return Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	token, err := middleware.GenerateToken(h.cfg, user)
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to generate token")
	}

	return Success(c, fiber.Map{"token": token})
}

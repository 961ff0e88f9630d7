package http

import (
	"net/http"

	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/crypto"

	"fintrack/internal/users"
)

type loginParams struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginAction authenticates an admin and sets the session cookie.
func LoginAction(ctx *cartridge.Context) error {
	var params loginParams
	if err := ctx.BodyParser(&params); err != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request",
			"code":  "VALIDATION_ERROR",
		})
	}

	if params.Email == "" || params.Password == "" {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "Email and password are required",
			"code":  "VALIDATION_ERROR",
		})
	}

	db := ctx.DB()
	user, findErr := users.FindByEmail(db, params.Email)

	// Always verify a password so response time does not reveal whether the
	// email exists.
	var passwordValid bool
	if findErr != nil {
		ctx.Logger.Debug("User not found during login", slog.String("email", params.Email))
		dummyHash := "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy" // bcrypt hash of "dummy"
		crypto.VerifyPassword(dummyHash, params.Password)
		passwordValid = false
	} else {
		passwordValid = crypto.VerifyPassword(user.EncryptedPassword, params.Password)
		if !passwordValid {
			ctx.Logger.Debug("Invalid password attempt", slog.String("email", params.Email))
		}
	}

	if !passwordValid {
		// Generic message - do not reveal whether the email exists
		return ctx.Status(http.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid email or password",
			"code":  "UNAUTHORIZED",
		})
	}

	if err := ctx.Session.SetSession(ctx.Ctx, user.ID); err != nil {
		ctx.Logger.Error("Failed to set session", slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Login failed",
			"code":  "SESSION_ERROR",
		})
	}

	ctx.Logger.Debug("Login successful",
		slog.String("email", params.Email),
		slog.Int("userId", int(user.ID)))

	return ctx.Status(http.StatusOK).JSON(fiber.Map{
		"message": "Logged in",
		"email":   user.Email,
	})
}

// LogoutAction clears the admin session.
func LogoutAction(ctx *cartridge.Context) error {
	userID, isAuthenticated := ctx.Session.GetUserID(ctx.Ctx)
	ctx.Logger.Debug("Logout requested",
		slog.Uint64("userID", uint64(userID)),
		slog.Bool("isAuthenticated", isAuthenticated))

	ctx.Session.ClearSession(ctx.Ctx)

	return ctx.Status(http.StatusOK).JSON(fiber.Map{
		"message": "Logged out",
	})
}

// AuthCheckAction reports whether the request carries a valid admin session.
// Always 200; the dashboard polls this to decide whether to show login.
func AuthCheckAction(ctx *cartridge.Context) error {
	if !isAdmin(ctx) {
		return ctx.Status(http.StatusOK).JSON(fiber.Map{
			"authenticated": false,
		})
	}

	userID, _ := ctx.Session.GetUserID(ctx.Ctx)
	response := fiber.Map{
		"authenticated": true,
	}

	if user, err := users.FindByID(ctx.DB(), userID); err == nil {
		response["email"] = user.Email
	}

	return ctx.Status(http.StatusOK).JSON(response)
}

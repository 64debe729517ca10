package main

import (
	"net/http"

	"github.com/PaulBabatuyi/wildwelcome-api/internal/account"
	"github.com/labstack/echo/v4"
)

type registerRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"first_name" validate:"required,max=50"`
	LastName  string `json:"last_name" validate:"required,max=50"`
	Phone     string `json:"phone" validate:"omitempty,max=20"`
	UserType  string `json:"user_type" validate:"omitempty,oneof=user tenant landlord"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// tokenRequest is the OAuth2 password-grant form used by API explorers.
type tokenRequest struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

type verifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

type googleRequest struct {
	IDToken  string `json:"id_token" validate:"required"`
	UserType string `json:"user_type" validate:"omitempty,oneof=user tenant landlord"`
}

func message(msg string) echo.Map {
	return echo.Map{"message": msg}
}

func (s *Server) register(c echo.Context) error {
	var req registerRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	u, err := s.accounts.Register(c.Request().Context(), account.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		UserType:  req.UserType,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "User registered successfully",
		"user_id": u.ID.Hex(),
	})
}

func (s *Server) login(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	tok, err := s.accounts.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tok)
}

func (s *Server) token(c echo.Context) error {
	var req tokenRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	tok, err := s.accounts.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tok)
}

func (s *Server) refresh(c echo.Context) error {
	var req refreshRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	tok, err := s.accounts.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tok)
}

func (s *Server) logout(c echo.Context) error {
	if err := s.accounts.Logout(c.Request().Context(), mustActor(c)); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, message("Successfully logged out"))
}

func (s *Server) me(c echo.Context) error {
	u, err := s.accounts.Me(c.Request().Context(), mustActor(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (s *Server) changePassword(c echo.Context) error {
	var req changePasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := s.accounts.ChangePassword(c.Request().Context(), mustActor(c), req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, message("Password updated successfully"))
}

func (s *Server) forgotPassword(c echo.Context) error {
	var req emailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	msg, err := s.accounts.ForgotPassword(c.Request().Context(), req.Email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, message(msg))
}

func (s *Server) resetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := s.accounts.ResetPassword(c.Request().Context(), req.Token, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, message("Password reset successfully"))
}

func (s *Server) verifyEmail(c echo.Context) error {
	var req verifyEmailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := s.accounts.VerifyEmail(c.Request().Context(), req.Token); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, message("Email verified successfully"))
}

func (s *Server) resendVerification(c echo.Context) error {
	var req emailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	msg, err := s.accounts.ResendVerification(c.Request().Context(), req.Email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, message(msg))
}

func (s *Server) googleSignIn(c echo.Context) error {
	var req googleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	tok, err := s.accounts.GoogleSignIn(c.Request().Context(), req.IDToken, req.UserType)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tok)
}

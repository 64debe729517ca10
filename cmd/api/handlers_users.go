package main

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/PaulBabatuyi/wildwelcome-api/internal/account"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/apperror"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/media"
	"github.com/labstack/echo/v4"
)

type profileRequest struct {
	FirstName *string `json:"first_name" validate:"omitempty,max=50"`
	LastName  *string `json:"last_name" validate:"omitempty,max=50"`
	Phone     *string `json:"phone" validate:"omitempty,max=20"`
}

func uploadedFile(fh *multipart.FileHeader) media.File {
	return media.File{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

func (s *Server) getProfile(c echo.Context) error {
	u, err := s.accounts.Profile(c.Request().Context(), mustActor(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (s *Server) updateProfile(c echo.Context) error {
	var req profileRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	u, err := s.accounts.UpdateProfile(c.Request().Context(), mustActor(c), account.ProfilePatch{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (s *Server) uploadAvatar(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return apperror.Validation("file is required")
	}
	url, err := s.accounts.UploadAvatar(c.Request().Context(), mustActor(c), uploadedFile(fh))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":   "Avatar uploaded successfully",
		"image_url": url,
	})
}

func (s *Server) deleteAccount(c echo.Context) error {
	if err := s.accounts.DeleteAccount(c.Request().Context(), mustActor(c)); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, message("Account deleted successfully"))
}

func (s *Server) listFavourites(c echo.Context) error {
	props, err := s.accounts.Favourites(c.Request().Context(), mustActor(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"favourites": props})
}

func (s *Server) addFavourite(c echo.Context) error {
	id, err := idParam(c, "property_id")
	if err != nil {
		return err
	}
	if err := s.accounts.AddFavourite(c.Request().Context(), mustActor(c), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, message("Property added to favourites"))
}

func (s *Server) removeFavourite(c echo.Context) error {
	id, err := idParam(c, "property_id")
	if err != nil {
		return err
	}
	if err := s.accounts.RemoveFavourite(c.Request().Context(), mustActor(c), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, message("Property removed from favourites"))
}

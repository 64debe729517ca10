package main

import (
	"net/http"

	"github.com/PaulBabatuyi/wildwelcome-api/internal/apperror"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/booking"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/data"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type bookingRequest struct {
	PropertyID      string  `json:"property_id" validate:"required,mongodb"`
	CheckIn         string  `json:"check_in" validate:"required"`
	CheckOut        string  `json:"check_out" validate:"required"`
	Guests          int     `json:"guests" validate:"required,gte=1"`
	TotalPrice      float64 `json:"total_price" validate:"gte=0"`
	SpecialRequests string  `json:"special_requests" validate:"omitempty,max=1000"`
}

type bookingPatchRequest struct {
	CheckIn         *string  `json:"check_in"`
	CheckOut        *string  `json:"check_out"`
	Guests          *int     `json:"guests" validate:"omitempty,gte=1"`
	TotalPrice      *float64 `json:"total_price" validate:"omitempty,gte=0"`
	SpecialRequests *string  `json:"special_requests" validate:"omitempty,max=1000"`
	Status          *string  `json:"status"`
}

type decisionRequest struct {
	ResponseMessage string `json:"response_message" validate:"omitempty,max=1000"`
}

func statusQuery(c echo.Context) (data.BookingStatus, error) {
	v := c.QueryParam("status")
	if v == "" {
		v = c.QueryParam("status_filter")
	}
	st := data.BookingStatus(v)
	if st != "" && !st.Valid() {
		return "", apperror.Validation("status must be one of pending, confirmed, cancelled, completed")
	}
	return st, nil
}

func (s *Server) listMyBookings(c echo.Context) error {
	page, err := pageParams(c)
	if err != nil {
		return err
	}
	st, err := statusQuery(c)
	if err != nil {
		return err
	}
	list, err := s.bookings.ListForTenant(c.Request().Context(), mustActor(c), st, page)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) listBookingRequests(c echo.Context) error {
	page, err := pageParams(c)
	if err != nil {
		return err
	}
	st, err := statusQuery(c)
	if err != nil {
		return err
	}
	list, err := s.bookings.ListForLandlord(c.Request().Context(), mustActor(c), st, page)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) createBooking(c echo.Context) error {
	var req bookingRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	pid, err := bson.ObjectIDFromHex(req.PropertyID)
	if err != nil {
		return apperror.Validation("invalid property_id")
	}
	checkIn, err := parseDate("check_in", req.CheckIn)
	if err != nil {
		return err
	}
	checkOut, err := parseDate("check_out", req.CheckOut)
	if err != nil {
		return err
	}
	v, err := s.bookings.Create(c.Request().Context(), mustActor(c), booking.CreateInput{
		PropertyID:      pid,
		CheckIn:         checkIn,
		CheckOut:        checkOut,
		Guests:          req.Guests,
		TotalPrice:      req.TotalPrice,
		SpecialRequests: req.SpecialRequests,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (s *Server) getBooking(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	v, err := s.bookings.Get(c.Request().Context(), mustActor(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (s *Server) updateBooking(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req bookingPatchRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	p := booking.Patch{
		Guests:          req.Guests,
		TotalPrice:      req.TotalPrice,
		SpecialRequests: req.SpecialRequests,
	}
	if p.CheckIn, err = optionalDate("check_in", req.CheckIn); err != nil {
		return err
	}
	if p.CheckOut, err = optionalDate("check_out", req.CheckOut); err != nil {
		return err
	}
	if req.Status != nil {
		st := data.BookingStatus(*req.Status)
		p.Status = &st
	}
	v, err := s.bookings.Update(c.Request().Context(), mustActor(c), id, p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (s *Server) cancelBooking(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if _, err := s.bookings.Cancel(c.Request().Context(), mustActor(c), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, message("Booking cancelled successfully"))
}

// decisionNote reads the optional landlord note. An empty body is allowed.
func decisionNote(c echo.Context) (string, error) {
	var req decisionRequest
	if c.Request().ContentLength == 0 {
		return "", nil
	}
	if err := bind(c, &req); err != nil {
		return "", err
	}
	return req.ResponseMessage, nil
}

func (s *Server) approveBooking(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	note, err := decisionNote(c)
	if err != nil {
		return err
	}
	if _, err := s.bookings.Approve(c.Request().Context(), mustActor(c), id, note); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, message("Booking approved successfully"))
}

func (s *Server) rejectBooking(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	note, err := decisionNote(c)
	if err != nil {
		return err
	}
	if _, err := s.bookings.Reject(c.Request().Context(), mustActor(c), id, note); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, message("Booking rejected successfully"))
}

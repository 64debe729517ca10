package main

import (
	"net/http"
	"strconv"

	"github.com/PaulBabatuyi/wildwelcome-api/internal/apperror"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/data"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/review"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type reviewRequest struct {
	PropertyID string `json:"property_id" validate:"omitempty,mongodb"`
	Rating     int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment    string `json:"comment" validate:"required,min=10,max=500"`
}

type reviewPatchRequest struct {
	Rating  *int    `json:"rating" validate:"omitempty,gte=1,lte=5"`
	Comment *string `json:"comment" validate:"omitempty,min=10,max=500"`
}

func reviewFilter(c echo.Context) (review.Filter, error) {
	var (
		f   review.Filter
		err error
	)
	if v := c.QueryParam("property_id"); v != "" {
		id, err := bson.ObjectIDFromHex(v)
		if err != nil {
			return f, apperror.Validation("invalid property_id")
		}
		f.PropertyID = &id
	}
	if f.Platform, err = boolQuery(c, "platform", false); err != nil {
		return f, err
	}
	if f.ApprovedOnly, err = boolQuery(c, "approved_only", true); err != nil {
		return f, err
	}
	if f.FeaturedOnly, err = boolQuery(c, "featured_only", false); err != nil {
		return f, err
	}
	return f, nil
}

func (s *Server) listReviews(c echo.Context) error {
	page, err := pageParams(c)
	if err != nil {
		return err
	}
	f, err := reviewFilter(c)
	if err != nil {
		return err
	}
	reviews, total, err := s.reviews.List(c.Request().Context(), f, page)
	if err != nil {
		return err
	}
	if reviews == nil {
		reviews = []*data.Review{}
	}
	c.Response().Header().Set(headerTotalCount, strconv.FormatInt(total, 10))
	return c.JSON(http.StatusOK, reviews)
}

func (s *Server) featuredReviews(c echo.Context) error {
	limit, err := intQuery(c, "limit")
	if err != nil {
		return err
	}
	reviews, err := s.reviews.Featured(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	if reviews == nil {
		reviews = []*data.Review{}
	}
	return c.JSON(http.StatusOK, reviews)
}

func (s *Server) createReview(c echo.Context) error {
	var req reviewRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	in := review.Input{Rating: req.Rating, Comment: req.Comment}
	if req.PropertyID != "" {
		id, err := bson.ObjectIDFromHex(req.PropertyID)
		if err != nil {
			return apperror.Validation("invalid property_id")
		}
		in.PropertyID = &id
	}
	r, err := s.reviews.Create(c.Request().Context(), mustActor(c), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

func (s *Server) updateReview(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req reviewPatchRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	r, err := s.reviews.Update(c.Request().Context(), mustActor(c), id, review.Patch{
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

func (s *Server) deleteReview(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := s.reviews.Delete(c.Request().Context(), mustActor(c), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, message("Review deleted successfully"))
}

func (s *Server) approveReview(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if _, err := s.reviews.Approve(c.Request().Context(), mustActor(c), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, message("Review approved successfully"))
}

func (s *Server) featureReview(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if _, err := s.reviews.Feature(c.Request().Context(), mustActor(c), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, message("Review featured successfully"))
}

package main

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/PaulBabatuyi/wildwelcome-api/internal/apperror"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/data"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/listing"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/media"
	"github.com/labstack/echo/v4"
)

// headerTotalCount carries the unpaged result size of list endpoints that
// return bare arrays.
const headerTotalCount = "X-Total-Count"

const maxImageUpload = 10

type locationRequest struct {
	Address   string   `json:"address" validate:"required,max=200"`
	City      string   `json:"city" validate:"required,max=100"`
	Country   string   `json:"country" validate:"omitempty,max=100"`
	Latitude  *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	NearPark  string   `json:"near_park" validate:"omitempty,max=100"`
}

func (l locationRequest) location() data.Location {
	return data.Location{
		Address:   l.Address,
		City:      l.City,
		Country:   l.Country,
		Latitude:  l.Latitude,
		Longitude: l.Longitude,
		NearPark:  l.NearPark,
	}
}

type propertyRequest struct {
	Title           string          `json:"title" validate:"required,max=200"`
	Description     string          `json:"description" validate:"required,max=5000"`
	PropertyType    string          `json:"property_type" validate:"required,oneof=room apartment house lodge"`
	MaxGuests       int             `json:"max_guests" validate:"required,gte=1,lte=20"`
	Bedrooms        int             `json:"bedrooms" validate:"required,gte=1,lte=10"`
	Bathrooms       int             `json:"bathrooms" validate:"required,gte=1,lte=10"`
	PricePerNight   float64         `json:"price_per_night" validate:"gte=0"`
	SecurityDeposit *float64        `json:"security_deposit" validate:"omitempty,gte=0"`
	Location        locationRequest `json:"location"`
	Amenities       data.Amenities  `json:"amenities"`
}

type propertyPatchRequest struct {
	Title           *string          `json:"title" validate:"omitempty,max=200"`
	Description     *string          `json:"description" validate:"omitempty,max=5000"`
	PropertyType    *string          `json:"property_type" validate:"omitempty,oneof=room apartment house lodge"`
	MaxGuests       *int             `json:"max_guests" validate:"omitempty,gte=1,lte=20"`
	Bedrooms        *int             `json:"bedrooms" validate:"omitempty,gte=1,lte=10"`
	Bathrooms       *int             `json:"bathrooms" validate:"omitempty,gte=1,lte=10"`
	PricePerNight   *float64         `json:"price_per_night" validate:"omitempty,gte=0"`
	SecurityDeposit *float64         `json:"security_deposit" validate:"omitempty,gte=0"`
	Location        *locationRequest `json:"location"`
	Amenities       *data.Amenities  `json:"amenities"`
}

func (r propertyPatchRequest) patch() data.PropertyPatch {
	p := data.PropertyPatch{
		Title:           r.Title,
		Description:     r.Description,
		MaxGuests:       r.MaxGuests,
		Bedrooms:        r.Bedrooms,
		Bathrooms:       r.Bathrooms,
		PricePerNight:   r.PricePerNight,
		SecurityDeposit: r.SecurityDeposit,
		Amenities:       r.Amenities,
	}
	if r.PropertyType != nil {
		t := data.PropertyType(*r.PropertyType)
		p.PropertyType = &t
	}
	if r.Location != nil {
		l := r.Location.location()
		p.Location = &l
	}
	return p
}

func propertyQuery(c echo.Context) (listing.Query, error) {
	q := listing.Query{
		Location:  c.QueryParam("location"),
		NearPark:  c.QueryParam("near_park"),
		Type:      data.PropertyType(c.QueryParam("property_type")),
		Amenities: listQuery(c, "amenities"),
	}
	var err error
	if q.MinPrice, err = floatQuery(c, "min_price"); err != nil {
		return q, err
	}
	if q.MaxPrice, err = floatQuery(c, "max_price"); err != nil {
		return q, err
	}
	guestsParam := "guests"
	if c.QueryParam(guestsParam) == "" {
		guestsParam = "max_guests"
	}
	if q.Guests, err = intQuery(c, guestsParam); err != nil {
		return q, err
	}
	if q.CheckIn, err = dateQuery(c, "check_in"); err != nil {
		return q, err
	}
	if q.CheckOut, err = dateQuery(c, "check_out"); err != nil {
		return q, err
	}
	return q, nil
}

func (s *Server) listProperties(c echo.Context) error {
	page, err := pageParams(c)
	if err != nil {
		return err
	}
	q, err := propertyQuery(c)
	if err != nil {
		return err
	}
	props, total, err := s.listings.List(c.Request().Context(), q, page)
	if err != nil {
		return err
	}
	return propertyPage(c, props, total)
}

func propertyPage(c echo.Context, props []*data.Property, total int64) error {
	if props == nil {
		props = []*data.Property{}
	}
	c.Response().Header().Set(headerTotalCount, strconv.FormatInt(total, 10))
	return c.JSON(http.StatusOK, props)
}

func (s *Server) getProperty(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var viewer *data.Actor
	if a, ok := actorFrom(c); ok {
		viewer = &a
	}
	p, err := s.listings.Get(c.Request().Context(), viewer, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) createProperty(c echo.Context) error {
	var req propertyRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	p, err := s.listings.Create(c.Request().Context(), mustActor(c), listing.Input{
		Title:           req.Title,
		Description:     req.Description,
		PropertyType:    data.PropertyType(req.PropertyType),
		MaxGuests:       req.MaxGuests,
		Bedrooms:        req.Bedrooms,
		Bathrooms:       req.Bathrooms,
		PricePerNight:   req.PricePerNight,
		SecurityDeposit: req.SecurityDeposit,
		Location:        req.Location.location(),
		Amenities:       req.Amenities,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) updateProperty(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req propertyPatchRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	p, err := s.listings.Update(c.Request().Context(), mustActor(c), id, req.patch())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) deleteProperty(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := s.listings.Delete(c.Request().Context(), mustActor(c), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, message("Property deleted successfully"))
}

func (s *Server) uploadPropertyImages(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	form, err := c.MultipartForm()
	if err != nil {
		return apperror.Validation("files are required")
	}
	headers := form.File["files"]
	if len(headers) > maxImageUpload {
		return apperror.Validation("at most %d images can be uploaded at once", maxImageUpload)
	}
	files := make([]media.File, 0, len(headers))
	for _, fh := range headers {
		files = append(files, uploadedFile(fh))
	}
	urls, err := s.listings.AddImages(c.Request().Context(), mustActor(c), id, files)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": fmt.Sprintf("Uploaded %d images successfully", len(urls)),
		"urls":    urls,
	})
}

func (s *Server) myProperties(c echo.Context) error {
	page, err := pageParams(c)
	if err != nil {
		return err
	}
	includeInactive, err := boolQuery(c, "include_inactive", true)
	if err != nil {
		return err
	}
	props, total, err := s.listings.ListMine(c.Request().Context(), mustActor(c), includeInactive, page)
	if err != nil {
		return err
	}
	return propertyPage(c, props, total)
}

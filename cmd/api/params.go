package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/PaulBabatuyi/wildwelcome-api/internal/apperror"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/data"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func idParam(c echo.Context, name string) (bson.ObjectID, error) {
	id, err := bson.ObjectIDFromHex(c.Param(name))
	if err != nil {
		return bson.ObjectID{}, apperror.Validation("invalid %s", name)
	}
	return id, nil
}

// pageParams reads skip and limit.
func pageParams(c echo.Context) (data.Page, error) {
	var p data.Page
	if v := c.QueryParam("skip"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return p, apperror.Validation("skip must be a non-negative integer")
		}
		p.Skip = n
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 1 || n > data.MaxPageLimit {
			return p, apperror.Validation("limit must be between 1 and %d", data.MaxPageLimit)
		}
		p.Limit = n
	}
	return p.Normalize(), nil
}

func floatQuery(c echo.Context, name string) (*float64, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, apperror.Validation("%s must be a number", name)
	}
	return &f, nil
}

func intQuery(c echo.Context, name string) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperror.Validation("%s must be an integer", name)
	}
	return n, nil
}

func boolQuery(c echo.Context, name string, def bool) (bool, error) {
	v := c.QueryParam(name)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, apperror.Validation("%s must be true or false", name)
	}
	return b, nil
}

// listQuery accepts repeated and comma separated values.
func listQuery(c echo.Context, name string) []string {
	var out []string
	for _, v := range c.QueryParams()[name] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// parseDate accepts a calendar date or an RFC 3339 timestamp. Results are
// in UTC.
func parseDate(field, v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, apperror.Validation("%s must be a date (YYYY-MM-DD) or RFC 3339 timestamp", field)
}

func dateQuery(c echo.Context, name string) (*time.Time, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	t, err := parseDate(name, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func optionalDate(field string, v *string) (*time.Time, error) {
	if v == nil {
		return nil, nil
	}
	t, err := parseDate(field, *v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

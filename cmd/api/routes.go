package main

import (
	"net/http"

	"github.com/PaulBabatuyi/wildwelcome-api/internal/middleware"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// routeOptions are the cross-cutting settings of the HTTP router.
type routeOptions struct {
	AllowedOrigins []string
	// Limiter throttles every request per client IP. Nil disables it.
	Limiter *middleware.LimiterStore
	// BodyLimit caps request bodies, e.g. "20M".
	BodyLimit string
}

// routes builds the echo router with middleware and every endpoint.
func (s *Server) routes(opts routeOptions) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httpErrorHandler
	e.Validator = newValidator()

	e.Pre(echomw.RemoveTrailingSlash())

	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	}))
	e.Use(requestContext())
	e.Use(requestLogger())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     opts.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderXRequestID},
		ExposeHeaders:    []string{headerTotalCount, echo.HeaderXRequestID},
		AllowCredentials: true,
	}))
	if opts.BodyLimit != "" {
		e.Use(echomw.BodyLimit(opts.BodyLimit))
	}
	if opts.Limiter != nil {
		e.Use(middleware.Throttle(opts.Limiter))
	}

	e.GET("/", s.root)
	e.GET("/health", s.health)

	api := e.Group("/api")
	api.GET("/health", s.health)

	authn := s.authenticate
	landlord := []echo.MiddlewareFunc{s.authenticate, requireLandlord}

	a := api.Group("/auth")
	a.POST("/register", s.register)
	a.POST("/login", s.login)
	a.POST("/token", s.token)
	a.POST("/refresh", s.refresh)
	a.POST("/logout", s.logout, authn)
	a.GET("/me", s.me, authn)
	a.POST("/change-password", s.changePassword, authn)
	a.POST("/forgot-password", s.forgotPassword)
	a.POST("/reset-password", s.resetPassword)
	a.POST("/verify-email", s.verifyEmail)
	a.POST("/resend-verification", s.resendVerification)
	a.POST("/google", s.googleSignIn)

	p := api.Group("/properties")
	p.GET("", s.listProperties)
	p.GET("/search", s.listProperties)
	p.POST("", s.createProperty, landlord...)
	p.GET("/landlord/my-properties", s.myProperties, landlord...)
	p.GET("/:id", s.getProperty, s.optionalAuth)
	p.PUT("/:id", s.updateProperty, landlord...)
	p.DELETE("/:id", s.deleteProperty, landlord...)
	p.POST("/:id/images", s.uploadPropertyImages, landlord...)

	b := api.Group("/bookings", authn)
	b.GET("", s.listMyBookings)
	b.POST("", s.createBooking)
	b.GET("/landlord/requests", s.listBookingRequests, requireLandlord)
	b.GET("/:id", s.getBooking)
	b.PUT("/:id", s.updateBooking)
	b.DELETE("/:id", s.cancelBooking)
	b.POST("/:id/approve", s.approveBooking, requireLandlord)
	b.POST("/:id/reject", s.rejectBooking, requireLandlord)

	r := api.Group("/reviews")
	r.GET("", s.listReviews)
	r.GET("/featured", s.featuredReviews)
	r.POST("", s.createReview, authn)
	r.PUT("/:id", s.updateReview, authn)
	r.DELETE("/:id", s.deleteReview, authn)
	r.PUT("/:id/approve", s.approveReview, authn)
	r.PUT("/:id/feature", s.featureReview, authn)

	u := api.Group("/users", authn)
	u.GET("/profile", s.getProfile)
	u.PUT("/profile", s.updateProfile)
	u.POST("/upload-avatar", s.uploadAvatar)
	u.DELETE("/account", s.deleteAccount)
	u.GET("/favourites", s.listFavourites)
	u.POST("/favourites/:property_id", s.addFavourite)
	u.DELETE("/favourites/:property_id", s.removeFavourite)

	return e
}

func (s *Server) root(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Welcome to Wild Welcome API",
		"version": "1.0.0",
	})
}

// Package media stores user-uploaded images on an external image host.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PaulBabatuyi/wildwelcome-api/internal/config"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
)

// ErrNotConfigured is returned by callers that need an image host when none
// is configured.
var ErrNotConfigured = errors.New("image hosting is not configured")

// Image is a hosted image.
type Image struct {
	URL      string
	PublicID string
}

// ImageHost uploads and removes images.
type ImageHost interface {
	Upload(ctx context.Context, r io.Reader, folder string) (Image, error)
	Destroy(ctx context.Context, publicID string) error
}

var imageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// IsImage reports whether contentType is an accepted image MIME type.
func IsImage(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return imageTypes[ct]
}

// Cloudinary implements ImageHost.
type Cloudinary struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// NewCloudinary builds a client from explicit credentials.
func NewCloudinary(cfg config.CloudinaryConfig) (*Cloudinary, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary init: %w", err)
	}
	cld.Config.URL.Secure = true
	return &Cloudinary{cld: cld, folder: strings.Trim(cfg.Folder, "/")}, nil
}

// Upload stores r under folder (relative to the configured root folder)
// with a random public ID.
func (c *Cloudinary) Upload(ctx context.Context, r io.Reader, folder string) (Image, error) {
	res, err := c.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		Folder:       c.path(folder),
		PublicID:     uuid.NewString(),
		ResourceType: "image",
	})
	if err != nil {
		return Image{}, fmt.Errorf("cloudinary upload: %w", err)
	}
	if res.Error.Message != "" {
		return Image{}, fmt.Errorf("cloudinary upload: %s", res.Error.Message)
	}
	return Image{URL: res.SecureURL, PublicID: res.PublicID}, nil
}

// Destroy removes a previously uploaded image. Removing an unknown image is
// not an error.
func (c *Cloudinary) Destroy(ctx context.Context, publicID string) error {
	if publicID == "" {
		return nil
	}
	res, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return fmt.Errorf("cloudinary destroy: %w", err)
	}
	if res.Error.Message != "" {
		return fmt.Errorf("cloudinary destroy: %s", res.Error.Message)
	}
	return nil
}

func (c *Cloudinary) path(folder string) string {
	folder = strings.Trim(folder, "/")
	switch {
	case c.folder == "":
		return folder
	case folder == "":
		return c.folder
	}
	return c.folder + "/" + folder
}

// File is an uploaded file awaiting storage.
type File struct {
	Filename    string
	ContentType string
	Open        func() (io.ReadCloser, error)
}

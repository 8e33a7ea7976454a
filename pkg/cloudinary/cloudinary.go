// Package cloudinary archives kiosk detection images.
package cloudinary

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/cloudinary/cloudinary-go/v2/config"
	"github.com/google/uuid"
)

// Archive stores an uploaded image and returns its delivery URL.
type Archive interface {
	UploadImage(ctx context.Context, file io.Reader, publicID string) (url string, err error)
}

// Optimized delivery for archived images
const (
	ImageWidth = 800
	imageEager = "q_auto,f_auto,w_800,c_limit"
)

var eagerAsyncFalse = false

// BuildImageURL returns a Cloudinary delivery URL for an existing public ID.
func BuildImageURL(cloudName, publicID string, width int) string {
	if width <= 0 {
		width = ImageWidth
	}
	return fmt.Sprintf("https://res.cloudinary.com/%s/image/upload/q_auto,f_auto,w_%d,c_limit/%s",
		cloudName, width, publicID)
}

// NewPublicID returns a random public ID with the given prefix, e.g. "det_3f2a…".
func NewPublicID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
}

type client struct {
	cloudName string
	folder    string
	uploader  *uploader.API
}

func (c *client) UploadImage(ctx context.Context, file io.Reader, publicID string) (string, error) {
	result, err := c.uploader.Upload(ctx, file, uploader.UploadParams{
		Folder:     c.folder,
		PublicID:   publicID,
		Eager:      imageEager,
		EagerAsync: &eagerAsyncFalse,
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary upload: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("cloudinary upload: %s", result.Error.Message)
	}
	if len(result.Eager) > 0 && result.Eager[0].SecureURL != "" {
		return result.Eager[0].SecureURL, nil
	}
	if result.SecureURL != "" {
		return result.SecureURL, nil
	}
	return BuildImageURL(c.cloudName, result.PublicID, ImageWidth), nil
}

// New builds an Archive that uploads into folder.
func New(cloudName, apiKey, apiSecret, folder string) (Archive, error) {
	cfg, err := config.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, err
	}
	up, err := uploader.NewWithConfiguration(cfg)
	if err != nil {
		return nil, err
	}
	return &client{cloudName: cloudName, folder: folder, uploader: up}, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// imageStore keeps product images outside the database.
type imageStore interface {
	Upload(ctx context.Context, file io.Reader, publicID string) (string, error)
	Delete(ctx context.Context, imageURL string) error
}

type cloudinaryImages struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func newCloudinaryImages(cld *cloudinary.Cloudinary, folder string) *cloudinaryImages {
	return &cloudinaryImages{cld: cld, folder: folder}
}

// Upload stores the file under a caller-chosen public ID and returns its https URL.
func (c *cloudinaryImages) Upload(ctx context.Context, file io.Reader, publicID string) (string, error) {
	resp, err := c.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder:    c.folder,
		PublicID:  publicID,
		Overwrite: api.Bool(false),
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary upload: %w", err)
	}
	if resp.SecureURL == "" {
		return "", errors.New("cloudinary upload: empty secure url")
	}
	return resp.SecureURL, nil
}

func (c *cloudinaryImages) Delete(ctx context.Context, imageURL string) error {
	publicID, err := extractPublicIDFromURL(imageURL)
	if err != nil {
		return fmt.Errorf("failed to extract public ID: %w", err)
	}

	_, err = c.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID: publicID,
	})
	if err != nil {
		return fmt.Errorf("failed to delete photo from Cloudinary: %w", err)
	}
	return nil
}

// extractPublicIDFromURL turns
// https://res.cloudinary.com/demo/image/upload/v1712/products/soap_1.jpg
// into products/soap_1. The version segment and extension are not part of the ID.
func extractPublicIDFromURL(photoURL string) (string, error) {
	parsedURL, err := url.Parse(photoURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %w", err)
	}

	pathParts := strings.Split(parsedURL.Path, "/")
	for i, part := range pathParts {
		if part != "upload" || i+1 >= len(pathParts) {
			continue
		}
		rest := pathParts[i+1:]
		if len(rest) > 1 && isVersionSegment(rest[0]) {
			rest = rest[1:]
		}
		id := strings.Join(rest, "/")
		id = strings.TrimSuffix(id, path.Ext(id))
		if id == "" {
			break
		}
		return id, nil
	}

	return "", errors.New("failed to extract public ID from URL")
}

func isVersionSegment(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// helper: sniff first 512 bytes and reset reader
func sniffMIME(file multipart.File) (string, error) {
	buf := make([]byte, 512)
	n, err := file.Read(buf)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read: %w", err)
	}
	mime := http.DetectContentType(buf[:n])

	// reset so later reads start from byte 0
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("seek reset: %w", err)
	}
	return mime, nil
}

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// deleteImageAsync removes an image without holding up the response.
func (app *application) deleteImageAsync(imageURL string) {
	if imageURL == "" || app.images == nil {
		return
	}
	go func(u string) {
		if err := app.images.Delete(context.Background(), u); err != nil {
			app.logger.Warnw("cloudinary cleanup failed", "url", u, "error", err)
		}
	}(imageURL)
}

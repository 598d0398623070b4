// Package storage persists uploaded profile images on disk.
package storage

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // register GIF decoder
	"image/jpeg"
	_ "image/png" // register PNG decoder
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"haven/internal/models"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

const (
	// AvatarMaxSize bounds the stored image on its longer edge.
	AvatarMaxSize = 512
	JPEGQuality   = 82
	WebPQuality   = 70
)

// AvatarStore writes profile images to a directory, producing a JPEG
// canonical file plus a WebP sibling per upload.
type AvatarStore struct {
	dir          string
	maxSizeBytes int64
}

// NewAvatarStore returns a store rooted at dir. maxUploadSizeMB bounds
// accepted uploads.
func NewAvatarStore(dir string, maxUploadSizeMB int) *AvatarStore {
	if maxUploadSizeMB <= 0 {
		maxUploadSizeMB = 5
	}
	return &AvatarStore{
		dir:          dir,
		maxSizeBytes: int64(maxUploadSizeMB) * 1024 * 1024,
	}
}

// Save validates, resizes and stores an uploaded image. It returns the new
// profile image reference (the JPEG filename).
func (s *AvatarStore) Save(content []byte, contentType string) (string, error) {
	if len(content) == 0 {
		return "", models.NewValidationError("No file uploaded")
	}
	if int64(len(content)) > s.maxSizeBytes {
		return "", models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxSizeBytes/(1024*1024)))
	}

	detectedType := http.DetectContentType(content)
	if !isAllowedImageMIME(detectedType) {
		return "", models.NewValidationError("Invalid image type")
	}
	if provided := normalizeContentType(contentType); strings.HasPrefix(provided, "image/") && !isMatchingContentType(provided, detectedType) {
		return "", models.NewValidationError("Image content type mismatch")
	}

	decoded, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return "", models.NewValidationError("Invalid image file")
	}

	resized := resizeToFit(decoded, AvatarMaxSize, AvatarMaxSize)

	encodedJPG, err := encodeJPEG(resized, JPEGQuality)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	encodedWebP, err := encodeWebP(resized, WebPQuality)
	if err != nil {
		return "", models.NewInternalError(err)
	}

	ref := uuid.NewString() + ".jpg"
	jpgPath := filepath.Join(s.dir, ref)
	webpPath := webpSibling(jpgPath)

	if err := writeBytesToFile(jpgPath, encodedJPG); err != nil {
		return "", models.NewInternalError(err)
	}
	if err := writeBytesToFile(webpPath, encodedWebP); err != nil {
		_ = os.Remove(jpgPath)
		return "", models.NewInternalError(err)
	}

	return ref, nil
}

// Remove deletes a stored avatar and its WebP sibling. The shared default
// image is never removed. Deletion is best-effort: the caller does not roll
// back a profile update when it fails.
func (s *AvatarStore) Remove(ref string) error {
	if ref == "" || ref == models.DefaultProfileImage {
		return nil
	}
	if !isValidRef(ref) {
		return models.NewValidationError("Invalid profile image reference")
	}

	jpgPath := filepath.Join(s.dir, ref)
	if err := os.Remove(jpgPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(webpSibling(jpgPath)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Resolve returns the on-disk path for a reference, validating it so a
// crafted reference cannot traverse out of the avatar directory.
func (s *AvatarStore) Resolve(ref string) (string, error) {
	if !isValidRef(ref) {
		return "", models.NewValidationError("Invalid profile image reference")
	}
	path := filepath.Join(s.dir, ref)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", models.NewNotFoundError("Avatar", ref)
		}
		return "", models.NewInternalError(err)
	}
	return path, nil
}

// ResolveWebP returns the path of a reference's WebP sibling when it
// exists on disk.
func (s *AvatarStore) ResolveWebP(ref string) (string, bool) {
	if !isValidRef(ref) {
		return "", false
	}
	path := webpSibling(filepath.Join(s.dir, ref))
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// isValidRef accepts only flat "<name>.<ext>" filenames.
func isValidRef(ref string) bool {
	if ref == "" || len(ref) > 64 {
		return false
	}
	if strings.ContainsAny(ref, "/\\") || strings.Contains(ref, "..") {
		return false
	}
	return strings.HasSuffix(ref, ".jpg") || strings.HasSuffix(ref, ".webp")
}

func webpSibling(jpgPath string) string {
	return strings.TrimSuffix(jpgPath, filepath.Ext(jpgPath)) + ".webp"
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scaleW := float64(maxWidth) / float64(w)
	scaleH := float64(maxHeight) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func isMatchingContentType(provided, detected string) bool {
	p := normalizeContentType(provided)
	d := normalizeContentType(detected)
	if p == d {
		return true
	}
	return (p == "image/jpg" && d == "image/jpeg") || (p == "image/jpeg" && d == "image/jpg")
}

func writeBytesToFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

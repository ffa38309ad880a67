package chat

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/randx"
)

const (
	// MaxContentBytes is the maximum size of message text.
	MaxContentBytes = 5000

	// MaxImageSizeMB is the maximum allowed upload size in megabytes.
	MaxImageSizeMB = 5

	// MaxImageSize is the maximum allowed upload size in bytes.
	MaxImageSize = MaxImageSizeMB * 1024 * 1024

	// MaxImageURLLength bounds external image references.
	MaxImageURLLength = 2048

	// PresignedURLDuration is how long an upload URL stays valid.
	PresignedURLDuration = 5 * time.Minute

	// ImageKeyPrefix and AvatarKeyPrefix namespace the upload keys.
	ImageKeyPrefix  = "images"
	AvatarKeyPrefix = "avatars"
)

// AllowedMIMETypes defines the set of permitted MIME types for uploads.
var AllowedMIMETypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
	"image/gif":  {},
}

// ExtToMIME maps file extensions to their corresponding MIME types.
var ExtToMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// ValidateFileSize checks if the provided file size is within acceptable limits.
func ValidateFileSize(fileSize int64) *errs.CustomError {
	if fileSize <= 0 {
		return errs.NewError(errs.ErrInvalidParams)
	}

	if fileSize > MaxImageSize {
		return errs.NewError(errs.ErrFileSizeTooLarge, MaxImageSizeMB)
	}

	return nil
}

// ValidateFileType checks that the extension of fileName is allowed and matches mimeType.
// It returns the normalized extension.
func ValidateFileType(fileName string, mimeType string) (string, *errs.CustomError) {
	lowerMimeType := strings.ToLower(mimeType)

	if _, ok := AllowedMIMETypes[lowerMimeType]; !ok {
		return "", errs.NewError(errs.ErrUnsupportedMediaType)
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	if len(ext) < 2 {
		return "", errs.NewError(errs.ErrInvalidParams)
	}

	expectedMIME, ok := ExtToMIME[ext]
	if !ok || expectedMIME != lowerMimeType {
		return "", errs.NewError(errs.ErrUnsupportedMediaType)
	}

	return ext, nil
}

// IsUploadKey reports whether ref names an object this server presigned.
func IsUploadKey(ref string) bool {
	return randx.IsValidFileKey(ref, ImageKeyPrefix) || randx.IsValidFileKey(ref, AvatarKeyPrefix)
}

// ValidateImageRef accepts an upload key or an absolute https URL.
func ValidateImageRef(ref string) *errs.CustomError {
	if IsUploadKey(ref) {
		if _, ok := ExtToMIME[strings.ToLower(filepath.Ext(ref))]; ok {
			return nil
		}
		return errs.NewError(errs.ErrAttachmentKeyInvalid)
	}

	if len(ref) > MaxImageURLLength {
		return errs.NewError(errs.ErrAttachmentKeyInvalid)
	}

	u, err := url.Parse(ref)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return errs.NewError(errs.ErrAttachmentKeyInvalid)
	}

	return nil
}

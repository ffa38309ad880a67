package handler

import (
	"errors"
	"net/http"

	"chatrelay/internal/app/chat"
	"chatrelay/internal/app/storage"
	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/randx"
	"chatrelay/internal/pkg/req"
	"chatrelay/internal/pkg/resp"
)

// Upload purposes select the key prefix.
const (
	PurposeImage  = "image"
	PurposeAvatar = "avatar"
)

// PresignUploadInput defines the JSON input structure for generating an upload URL.
type PresignUploadInput struct {
	FileName string `json:"fileName"`
	MimeType string `json:"mimeType"`
	FileSize int64  `json:"fileSize"`
	Purpose  string `json:"purpose,omitempty"`
}

// HandlePresignUploadURL validates the file and returns a time-limited PUT URL plus the
// key to reference in chat messages or as an avatar.
func HandlePresignUploadURL(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Storage == nil {
			resp.RespondError(w, errs.NewError(errs.ErrFileStorageDisabled))
			return
		}

		var input PresignUploadInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, customErr)
			return
		}

		prefix := chat.ImageKeyPrefix
		switch input.Purpose {
		case "", PurposeImage:
		case PurposeAvatar:
			prefix = chat.AvatarKeyPrefix
		default:
			resp.RespondError(w, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if customErr := chat.ValidateFileSize(input.FileSize); customErr != nil {
			resp.RespondError(w, customErr)
			return
		}

		ext, customErr := chat.ValidateFileType(input.FileName, input.MimeType)
		if customErr != nil {
			resp.RespondError(w, customErr)
			return
		}

		fileKey, err := randx.FileKey(prefix, ext)
		if err != nil {
			resp.RespondError(w, errs.NewError(errs.ErrUnknown, err))
			return
		}

		url, err := deps.Storage.PresignUpload(r.Context(), fileKey, input.MimeType, input.FileSize, chat.PresignedURLDuration)
		if err != nil {
			resp.RespondError(w, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		resp.RespondSuccess(w, map[string]any{
			"presignedUrl": url,
			"fileKey":      fileKey,
			"fileName":     input.FileName,
		})
	}
}

// HandlePresignDownloadURL redirects to a time-limited GET URL for an uploaded key.
func HandlePresignDownloadURL(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Storage == nil {
			resp.RespondError(w, errs.NewError(errs.ErrFileStorageDisabled))
			return
		}

		fileKey := r.URL.Query().Get("k")
		if !chat.IsUploadKey(fileKey) {
			resp.RespondError(w, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if _, err := deps.Storage.Stat(r.Context(), fileKey); err != nil {
			if errors.Is(err, storage.ErrObjectNotFound) {
				resp.RespondError(w, errs.NewError(errs.ErrAttachmentKeyInvalid))
				return
			}
			logx.Error(err, "Failed to stat uploaded object", "key", fileKey)
			resp.RespondError(w, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		url, err := deps.Storage.PresignDownload(r.Context(), fileKey, chat.PresignedURLDuration)
		if err != nil {
			resp.RespondError(w, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		http.Redirect(w, r, url, http.StatusFound)
	}
}

package errs

import "net/http"

// errorMap holds the user message and HTTP status for every application error code.
var errorMap = map[int]CustomError{
	// 1xxx
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please slow down.", Status: http.StatusTooManyRequests},

	// 2xxx
	ErrNameTaken:             {Code: ErrNameTaken, Message: "The name %s is already taken. Please choose another."},
	ErrNameInvalid:           {Code: ErrNameInvalid, Message: "Usernames must be between 1 and %d characters."},
	ErrNameReserved:          {Code: ErrNameReserved, Message: "The name %s is reserved."},
	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Message: "Message is too long. The limit is %d bytes."},
	ErrFileSizeTooLarge:      {Code: ErrFileSizeTooLarge, Message: "File is too large. The limit is %d MB.", Status: http.StatusRequestEntityTooLarge},
	ErrAttachmentKeyInvalid:  {Code: ErrAttachmentKeyInvalid, Message: "Invalid image."},
	ErrUnknownCommand:        {Code: ErrUnknownCommand, Message: "Unknown command: %s"},
	ErrCommandTargetMissing:  {Code: ErrCommandTargetMissing, Message: "User %s is not online."},

	// 3xxx
	ErrPowChallengeRequired: {Code: ErrPowChallengeRequired, Message: "Verification required. Please try again.", Status: http.StatusForbidden},
	ErrPowChallengeInvalid:  {Code: ErrPowChallengeInvalid, Message: "Verification failed. Please try again.", Status: http.StatusForbidden},
	ErrUnauthorized:         {Code: ErrUnauthorized, Message: "Not authorized.", Status: http.StatusUnauthorized},

	// 5xxx
	ErrUnknown:             {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrFileStorageFailed:   {Code: ErrFileStorageFailed, Message: "File upload failed. Please try again.", Status: http.StatusBadGateway},
	ErrFileStorageDisabled: {Code: ErrFileStorageDisabled, Message: "File uploads are not enabled on this server.", Status: http.StatusServiceUnavailable},
}

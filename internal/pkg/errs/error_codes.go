/*
Package errs provides custom error types and application-level error code constants.

The codes identify request, chat, session and internal failures both inside the server
and in the error events and HTTP responses sent to clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON is malformed.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates extra content after the JSON document.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request or message rate exceeded the limit.
	ErrRateLimitExceeded = 1007
)

// 2xxx: Identity and Content Errors
const (
	// ErrNameTaken indicates that another connected user holds the requested name.
	ErrNameTaken = 2101

	// ErrNameInvalid indicates an empty or over-long username.
	ErrNameInvalid = 2102

	// ErrNameReserved indicates a username reserved for the system or the administrator.
	ErrNameReserved = 2103

	// ErrMessageContentTooLong indicates that the message text exceeded the length limit.
	ErrMessageContentTooLong = 2201

	// ErrFileSizeTooLarge indicates that an uploaded image exceeds the size limit.
	ErrFileSizeTooLarge = 2202

	// ErrAttachmentKeyInvalid indicates an image reference that is neither an upload key nor an https URL.
	ErrAttachmentKeyInvalid = 2203

	// ErrUnknownCommand indicates an administrative command the server does not know.
	ErrUnknownCommand = 2301

	// ErrCommandTargetMissing indicates an administrative command aimed at a user who is not online.
	ErrCommandTargetMissing = 2302
)

// 3xxx: Session and Security Errors
const (
	// ErrPowChallengeRequired indicates the client must complete a Proof-of-Work challenge first.
	ErrPowChallengeRequired = 3001

	// ErrPowChallengeInvalid indicates that the PoW proof is invalid.
	ErrPowChallengeInvalid = 3002

	// ErrUnauthorized indicates a missing or invalid admin token.
	ErrUnauthorized = 3005
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified internal error.
	ErrUnknown = 5000

	// ErrFileStorageFailed indicates that the object storage call failed.
	ErrFileStorageFailed = 5001

	// ErrFileStorageDisabled indicates that no object storage is configured.
	ErrFileStorageDisabled = 5002
)

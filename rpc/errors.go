package rpc

import (
	"errors"
	"fmt"
)

// ErrorCode is a numeric error code returned by the server. An ErrorCode is
// itself an error, so it can be used as the target of errors.Is against any
// *Error carrying the same code:
//
//	if errors.Is(err, rpc.ErrSessionExpired) { ... }
type ErrorCode int

func (code ErrorCode) Error() string {
	if name, ok := codeNames[code]; ok {
		return name
	}
	return fmt.Sprintf("error code %d", int(code))
}

// Kind returns the classification of this code.
func (code ErrorCode) Kind() Kind {
	return Classify(code)
}

// JSON-RPC defined error codes.
const (
	ErrParseError     ErrorCode = -32700
	ErrInvalidRequest ErrorCode = -32600
	ErrMethodNotFound ErrorCode = -32601
	ErrInvalidParams  ErrorCode = -32602
	ErrInternalError  ErrorCode = -32603
)

// Validation error codes.
const (
	ErrInvalidUsername              ErrorCode = 8448
	ErrInvalidPassword              ErrorCode = 8449
	ErrInvalidFirstName             ErrorCode = 8450
	ErrInvalidLastName              ErrorCode = 8451
	ErrInvalidBiography             ErrorCode = 8452
	ErrUsernameAlreadyExists        ErrorCode = 8453
	ErrInvalidPeerInput             ErrorCode = 8454
	ErrInvalidPostText              ErrorCode = 8455
	ErrInvalidClientPublicHash      ErrorCode = 8456
	ErrInvalidClientPrivateHash     ErrorCode = 8457
	ErrInvalidPlatform              ErrorCode = 8458
	ErrInvalidVersion               ErrorCode = 8459
	ErrInvalidClientName            ErrorCode = 8460
	ErrInvalidSessionIdentification ErrorCode = 8461
	ErrInvalidFileForProfilePicture ErrorCode = 8462
	ErrFileTooLarge                 ErrorCode = 8463
	ErrInvalidHelpDocumentID        ErrorCode = 8464
	ErrAgreementRequired            ErrorCode = 8465
	ErrInvalidCursorValue           ErrorCode = 8466
	ErrInvalidGeoLocation           ErrorCode = 8467
	ErrInvalidURLValue              ErrorCode = 8468
)

// Authentication error codes.
const (
	ErrIncorrectLoginCredentials            ErrorCode = 8704
	ErrIncorrectTwoFactorAuthenticationCode ErrorCode = 8705
	ErrAuthenticationNotApplicable          ErrorCode = 8706
	ErrSessionNotFound                      ErrorCode = 8707
	ErrNotAuthenticated                     ErrorCode = 8708
	ErrPrivateAccessTokenRequired           ErrorCode = 8709
	ErrAuthenticationFailure                ErrorCode = 8710
	ErrBadSessionChallengeAnswer            ErrorCode = 8711
	ErrTwoFactorAuthenticationRequired      ErrorCode = 8712
	ErrAlreadyAuthenticated                 ErrorCode = 8713
	ErrSessionExpired                       ErrorCode = 8714
)

// Network error codes.
const (
	ErrPeerNotFound                ErrorCode = 12544
	ErrPostNotFound                ErrorCode = 12545
	ErrPostDeleted                 ErrorCode = 12546
	ErrAlreadyReposted             ErrorCode = 12547
	ErrFileUploadError             ErrorCode = 12548
	ErrDocumentNotFound            ErrorCode = 12549
	ErrAccessDenied                ErrorCode = 12550
	ErrBlockedByPeer               ErrorCode = 12551
	ErrBlockedPeer                 ErrorCode = 12552
	ErrSelfInteractionNotPermitted ErrorCode = 12553
)

// Server error codes.
const (
	ErrInternalServerError ErrorCode = 16384
	ErrDocumentUpload      ErrorCode = 16385
)

var codeNames = map[ErrorCode]string{
	ErrParseError:     "parse error",
	ErrInvalidRequest: "invalid request",
	ErrMethodNotFound: "method not found",
	ErrInvalidParams:  "invalid params",
	ErrInternalError:  "internal error",

	ErrInvalidUsername:              "invalid username",
	ErrInvalidPassword:              "invalid password",
	ErrInvalidFirstName:             "invalid first name",
	ErrInvalidLastName:              "invalid last name",
	ErrInvalidBiography:             "invalid biography",
	ErrUsernameAlreadyExists:        "username already exists",
	ErrInvalidPeerInput:             "invalid peer input",
	ErrInvalidPostText:              "invalid post text",
	ErrInvalidClientPublicHash:      "invalid client public hash",
	ErrInvalidClientPrivateHash:     "invalid client private hash",
	ErrInvalidPlatform:              "invalid platform",
	ErrInvalidVersion:               "invalid version",
	ErrInvalidClientName:            "invalid client name",
	ErrInvalidSessionIdentification: "invalid session identification",
	ErrInvalidFileForProfilePicture: "invalid file for profile picture",
	ErrFileTooLarge:                 "file too large",
	ErrInvalidHelpDocumentID:        "invalid help document id",
	ErrAgreementRequired:            "agreement required",
	ErrInvalidCursorValue:           "invalid cursor value",
	ErrInvalidGeoLocation:           "invalid geo location",
	ErrInvalidURLValue:              "invalid url value",

	ErrIncorrectLoginCredentials:            "incorrect login credentials",
	ErrIncorrectTwoFactorAuthenticationCode: "incorrect two factor authentication code",
	ErrAuthenticationNotApplicable:          "authentication not applicable",
	ErrSessionNotFound:                      "session not found",
	ErrNotAuthenticated:                     "not authenticated",
	ErrPrivateAccessTokenRequired:           "private access token required",
	ErrAuthenticationFailure:                "authentication failure",
	ErrBadSessionChallengeAnswer:            "bad session challenge answer",
	ErrTwoFactorAuthenticationRequired:      "two factor authentication required",
	ErrAlreadyAuthenticated:                 "already authenticated",
	ErrSessionExpired:                       "session expired",

	ErrPeerNotFound:                "peer not found",
	ErrPostNotFound:                "post not found",
	ErrPostDeleted:                 "post deleted",
	ErrAlreadyReposted:             "already reposted",
	ErrFileUploadError:             "file upload error",
	ErrDocumentNotFound:            "document not found",
	ErrAccessDenied:                "access denied",
	ErrBlockedByPeer:               "blocked by peer",
	ErrBlockedPeer:                 "blocked peer",
	ErrSelfInteractionNotPermitted: "self interaction not permitted",

	ErrInternalServerError: "internal server error",
	ErrDocumentUpload:      "document upload error",
}

// Kind is the category of a server error code.
type Kind int

const (
	KindUnknown Kind = iota
	KindRPC
	KindValidation
	KindAuthentication
	KindNetwork
	KindServer

	// KindCDN is assigned to failed CDN envelopes whose code does not
	// fall in any known range.
	KindCDN
)

func (k Kind) String() string {
	switch k {
	case KindRPC:
		return "rpc"
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	case KindCDN:
		return "cdn"
	default:
		return "unknown"
	}
}

// codeRange is an inclusive range of codes that belong to one Kind.
type codeRange struct {
	min, max ErrorCode
	kind     Kind
}

const maxErrorCode = ErrorCode(int(^uint(0) >> 1))

// codeRanges is the classification table. Ranges must not overlap.
var codeRanges = []codeRange{
	{min: -32768, max: -32000, kind: KindRPC},
	{min: 8448, max: 8703, kind: KindValidation},
	{min: 8704, max: 8979, kind: KindAuthentication},
	{min: 12544, max: 16383, kind: KindNetwork},
	{min: 16384, max: maxErrorCode, kind: KindServer},
}

// Classify returns the Kind of a server error code. Codes without a name keep
// the kind of the range they fall in.
func Classify(code ErrorCode) Kind {
	for _, r := range codeRanges {
		if code >= r.min && code <= r.max {
			return r.kind
		}
	}
	return KindUnknown
}

// Error is an error reported by the server. The code and message are kept
// intact so callers can present them to users.
type Error struct {
	Code    ErrorCode
	Kind    Kind
	Message string
}

// NewError builds a classified server error.
func NewError(code int, msg string) *Error {
	c := ErrorCode(code)
	return &Error{Code: c, Kind: Classify(c), Message: msg}
}

func (err *Error) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("%s error %d: %s", err.Kind, int(err.Code), err.Code.Error())
	}
	return fmt.Sprintf("%s error %d: %s", err.Kind, int(err.Code), err.Message)
}

// Is returns true when target is the ErrorCode of this error or another
// *Error with the same code.
func (err *Error) Is(target error) bool {
	switch target := target.(type) {
	case ErrorCode:
		return err.Code == target
	case *Error:
		return err.Code == target.Code
	}
	return false
}

// IsSessionInvalid returns true if err reports the session is expired or
// unknown to the server. These are the only errors that are recovered by
// replacing the session.
func IsSessionInvalid(err error) bool {
	var rpcErr *Error
	if !errors.As(err, &rpcErr) {
		return false
	}
	return rpcErr.Code == ErrSessionExpired || rpcErr.Code == ErrSessionNotFound
}

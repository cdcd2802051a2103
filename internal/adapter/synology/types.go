package synology

import (
	"encoding/json"
	"fmt"
)

// APIEndpoint contains API path and version information
type APIEndpoint struct {
	Path       string `json:"path"`
	MinVersion int    `json:"minVersion"`
	MaxVersion int    `json:"maxVersion"`
}

// Response is the base response structure from Synology API
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *ErrorInfo      `json:"error,omitempty"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Code   int             `json:"code"`
	Errors json.RawMessage `json:"errors,omitempty"`
}

// Common error codes
const (
	ErrUnknown           = 100
	ErrInvalidParam      = 101
	ErrAPINotExists      = 102
	ErrMethodNotExists   = 103
	ErrVersionNotSupport = 104
	ErrNoPermission      = 105
	ErrSessionTimeout    = 106
	ErrDuplicateLogin    = 107
	ErrSIDNotFound       = 119
)

// Auth error codes
const (
	ErrAuthBadCredentials   = 400
	ErrAuthAccountDisabled  = 401
	ErrAuthPermissionDenied = 402
	ErrAuthOTPRequired      = 403
	ErrAuthOTPFailed        = 404
)

// FileStation error codes
const (
	ErrFSNoSuchFile   = 408
	ErrFSFileExists   = 414
	ErrFSInvalidPath  = 418
	ErrFSAccessDenied = 419
)

// APIError represents an error from the Synology API
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("synology api error %d: %s", e.Code, e.Message)
}

// IsSessionError returns true if the error indicates session issues
func (e *APIError) IsSessionError() bool {
	return e.Code == ErrNoPermission || e.Code == ErrSessionTimeout || e.Code == ErrSIDNotFound
}

// NotFound returns true if the error means the path does not exist
func (e *APIError) NotFound() bool {
	return e.Code == ErrFSNoSuchFile
}

// errorMessages maps error codes to human-readable messages
var errorMessages = map[int]string{
	ErrUnknown:           "unknown error",
	ErrInvalidParam:      "invalid parameter",
	ErrAPINotExists:      "api does not exist",
	ErrMethodNotExists:   "method does not exist",
	ErrVersionNotSupport: "version not supported",
	ErrNoPermission:      "no permission",
	ErrSessionTimeout:    "session timeout",
	ErrDuplicateLogin:    "duplicate login",
	ErrSIDNotFound:       "sid not found",
	ErrFSNoSuchFile:      "no such file or directory",
	ErrFSFileExists:      "file already exists",
	ErrFSInvalidPath:     "invalid path",
	ErrFSAccessDenied:    "access denied",
}

// authErrorMessages overrides errorMessages for SYNO.API.Auth, where 400-404 mean something else
var authErrorMessages = map[int]string{
	ErrAuthBadCredentials:   "no such account or incorrect password",
	ErrAuthAccountDisabled:  "account disabled",
	ErrAuthPermissionDenied: "permission denied",
	ErrAuthOTPRequired:      "2-step verification code required",
	ErrAuthOTPFailed:        "failed to authenticate 2-step verification code",
}

// GetErrorMessage returns a human-readable message for an error code
func GetErrorMessage(code int) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return fmt.Sprintf("error code %d", code)
}

func getAuthErrorMessage(code int) string {
	if msg, ok := authErrorMessages[code]; ok {
		return msg
	}
	return GetErrorMessage(code)
}

// FileStation API names
const (
	APIFileStationList         = "SYNO.FileStation.List"
	APIFileStationCreateFolder = "SYNO.FileStation.CreateFolder"
	APIFileStationUpload       = "SYNO.FileStation.Upload"
	APIFileStationDownload     = "SYNO.FileStation.Download"
	APIFileStationDelete       = "SYNO.FileStation.Delete"
	APIFileStationRename       = "SYNO.FileStation.Rename"
)

const (
	apiInfoPath = "query.cgi"
	authPath    = "auth.cgi"
	sessionName = "FileStation"
)

// authVersion returns the SYNO.API.Auth version for a DSM major version.
// DSM 7 accepts otp_code on version 6; older releases on version 3.
func authVersion(dsmVersion int) int {
	if dsmVersion >= 7 {
		return 6
	}
	return 3
}

type listFilesData struct {
	Offset int         `json:"offset"`
	Total  int         `json:"total"`
	Files  []fileEntry `json:"files"`
}

type listSharesData struct {
	Offset int         `json:"offset"`
	Total  int         `json:"total"`
	Shares []fileEntry `json:"shares"`
}

type fileEntry struct {
	Path  string `json:"path"`
	Name  string `json:"name"`
	IsDir bool   `json:"isdir"`
}

type deleteStartData struct {
	TaskID string `json:"taskid"`
}

package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Stable codes carried by notifications and logs.
const (
	CodeValidation          = "VALIDATION"
	CodeNetwork             = "NETWORK"
	CodeRemote              = "REMOTE"
	CodeMalformedPayload    = "MALFORMED_PAYLOAD"
	CodeDuplicateSubmission = "DUPLICATE_SUBMISSION"
	CodeInvalidFileType     = "INVALID_FILE_TYPE"
	CodeBusy                = "BUSY"
	CodeUnknown             = "UNKNOWN"
)

var (
	ErrSendInFlight     = errors.New("a message is already being sent")
	ErrUploadInProgress = errors.New("an upload to this space is already in progress")
	ErrNotReady         = errors.New("conversation history is still loading")
	ErrStaleSession     = errors.New("conversation session is no longer active")
)

// ValidationError is bad user input caught before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NetworkError is a transport failure; no response was received.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RemoteError is a non-2xx response with the server's message.
type RemoteError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s: remote error (status %d): %s", e.Op, e.StatusCode, msg)
}

// MalformedPayloadError means a 2xx response whose body could not be decoded.
type MalformedPayloadError struct {
	Op  string
	Err error
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("%s: malformed payload: %v", e.Op, e.Err)
}

func (e *MalformedPayloadError) Unwrap() error { return e.Err }

type DuplicateSubmissionError struct {
	Text string
}

func (e *DuplicateSubmissionError) Error() string {
	return fmt.Sprintf("duplicate submission: %q was just sent", e.Text)
}

type InvalidFileTypeError struct {
	FileName  string
	MediaType string
}

func (e *InvalidFileTypeError) Error() string {
	return fmt.Sprintf("invalid file type for %s: %s (only application/pdf is accepted)", e.FileName, e.MediaType)
}

// Kind classifies err into one of the Code* constants.
func Kind(err error) string {
	var (
		validationErr *ValidationError
		networkErr    *NetworkError
		remoteErr     *RemoteError
		malformedErr  *MalformedPayloadError
		duplicateErr  *DuplicateSubmissionError
		fileTypeErr   *InvalidFileTypeError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &validationErr):
		return CodeValidation
	case errors.As(err, &duplicateErr):
		return CodeDuplicateSubmission
	case errors.As(err, &fileTypeErr):
		return CodeInvalidFileType
	case errors.As(err, &remoteErr):
		return CodeRemote
	case errors.As(err, &malformedErr):
		return CodeMalformedPayload
	case errors.As(err, &networkErr):
		return CodeNetwork
	case errors.Is(err, ErrSendInFlight), errors.Is(err, ErrUploadInProgress),
		errors.Is(err, ErrNotReady), errors.Is(err, ErrStaleSession):
		return CodeBusy
	default:
		return CodeUnknown
	}
}

// IsLocal reports whether err was produced before any network call.
func IsLocal(err error) bool {
	switch Kind(err) {
	case CodeValidation, CodeDuplicateSubmission, CodeInvalidFileType, CodeBusy:
		return true
	}
	return false
}

// UserMessage is the short text surfaced to the notification sink.
func UserMessage(err error) string {
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) && remoteErr.Message != "" {
		return remoteErr.Message
	}
	return err.Error()
}

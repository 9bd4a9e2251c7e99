package service

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

type ErrorKind string

const (
	KindValidation          ErrorKind = "validation"
	KindAuth                ErrorKind = "auth"
	KindForbidden           ErrorKind = "forbidden"
	KindNotFound            ErrorKind = "not_found"
	KindRateLimited         ErrorKind = "rate_limited"
	KindConfig              ErrorKind = "config"
	KindInsufficientCredits ErrorKind = "insufficient_credits"
	KindUpstream            ErrorKind = "upstream"
	KindEmptyResponse       ErrorKind = "empty_response"
	KindPersistence         ErrorKind = "persistence"
	KindInternal            ErrorKind = "internal"
)

const (
	msgMissingFields        = "Missing required fields"
	msgTooManyCharacters    = "At most 2 character images are supported"
	msgAuthRequired         = "Authentication required"
	msgStoryNotFound        = "Story not found"
	msgPageNotFound         = "Page not found"
	msgNotOwner             = "You do not own this story"
	msgMissingDefaultKey    = "Server configuration error - default API key not available"
	msgInsufficientCredits  = "Insufficient API credits. Please add credits to your Together.ai account at https://api.together.ai/settings/billing or update your API key."
	msgEmptyResponse        = "No image URL in response"
	msgSaveFailed           = "Failed to save generated image"
	msgUpstreamTimeout      = "Image generation timed out"
	msgReferenceUnavailable = "Character image is unavailable"
)

// Error is the typed failure returned by the generation pipeline.
type Error struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	ResetAt    time.Time
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error kind to the status the API responds with.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindInsufficientCredits:
		return http.StatusPaymentRequired
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUpstream:
		if e.StatusCode >= 400 && e.StatusCode <= 599 {
			return e.StatusCode
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// AsError extracts an *Error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

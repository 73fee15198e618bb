package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed    = fmt.Errorf("authentication failed")
	ErrTokenExpired  = fmt.Errorf("auth token expired")
	ErrRefreshFailed = fmt.Errorf("token refresh failed")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Lookup errors
	ErrRuleNotFound     = fmt.Errorf("format rule not found")
	ErrContractNotFound = fmt.Errorf("data contract not found")
	ErrObjectNotFound   = fmt.Errorf("object not found")

	// Pipeline errors
	ErrInsufficientHistory = fmt.Errorf("insufficient snapshot history")
	ErrMalformedPayload    = fmt.Errorf("malformed payload")
	ErrMalformedKey        = fmt.Errorf("malformed object key")
	ErrNothingToSend       = fmt.Errorf("nothing to send")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

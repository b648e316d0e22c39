package cloud

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/smithy-go"

	"github.com/kbforge/indexpool/internal/fault"
)

// configErrorCodes are API error codes that indicate bad or missing
// credentials and permissions. These never clear without operator action.
var configErrorCodes = map[string]struct{}{
	"AccessDenied":               {},
	"AccessDeniedException":      {},
	"UnrecognizedClientException": {},
	"InvalidClientTokenId":       {},
	"SignatureDoesNotMatch":      {},
	"ExpiredToken":               {},
	"ExpiredTokenException":      {},
	"MissingAuthenticationToken": {},
}

// transientErrorCodes are API error codes that are expected to clear on a
// later attempt without any state change on our side.
var transientErrorCodes = map[string]struct{}{
	"ThrottlingException":      {},
	"Throttling":               {},
	"TooManyRequestsException": {},
	"RequestTimeout":           {},
	"RequestTimeoutException":  {},
	"ServiceUnavailable":       {},
	"SlowDown":                 {},
	"InternalError":            {},
	"InternalServerError":      {},
	"InternalFailure":          {},
}

// classify maps an SDK error onto the stable fault taxonomy, annotated with
// the failing operation. Context cancellation passes through unchanged so
// callers can distinguish shutdown from remote failure. Errors that do not
// carry an API error code (transport failures, connection resets) are
// treated as transient.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %w: %v", op, fault.ErrTransientCloud, err)
	}

	code := apiErr.ErrorCode()
	if _, ok := configErrorCodes[code]; ok {
		return fmt.Errorf("%s: %w: %s: %s", op, fault.ErrConfig, code, apiErr.ErrorMessage())
	}
	if _, ok := transientErrorCodes[code]; ok {
		return fmt.Errorf("%s: %w: %s: %s", op, fault.ErrTransientCloud, code, apiErr.ErrorMessage())
	}
	if apiErr.ErrorFault() == smithy.FaultServer {
		return fmt.Errorf("%s: %w: %s: %s", op, fault.ErrTransientCloud, code, apiErr.ErrorMessage())
	}
	return fmt.Errorf("%s: %w: %s: %s", op, fault.ErrPermanentCloud, code, apiErr.ErrorMessage())
}

// isNotFound reports whether err is the remote service's not-found
// response. Remote deletes treat it as success; this is load-bearing for
// sweep idempotency.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "NotFoundException", "ResourceNotFoundException", "NoSuchKey", "404":
		return true
	}
	return false
}

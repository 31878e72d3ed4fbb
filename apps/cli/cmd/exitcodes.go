package cmd

import (
	"github.com/abdul-hamid-achik/hookline/packages/core/errs"
)

// Exit codes for hookline CLI
const (
	// ExitSuccess indicates the call succeeded
	ExitSuccess = 0

	// ExitRequestFailure indicates the server answered with a rejected status
	ExitRequestFailure = 1

	// ExitParseError indicates the response body could not be decoded
	ExitParseError = 2

	// ExitConfigError indicates a configuration or usage-level validation error
	ExitConfigError = 3

	// ExitNetworkError indicates a network/connection error
	ExitNetworkError = 4

	// ExitTimeout indicates the call exceeded its timeout
	ExitTimeout = 5

	// ExitExtensionError indicates an extension hook failed
	ExitExtensionError = 6

	// ExitAborted indicates the call was cancelled, usually by a signal
	ExitAborted = 130

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// exitCodeFor maps an error to the process exit code.
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	switch errs.KindOf(err) {
	case errs.KindRequest:
		return ExitRequestFailure
	case errs.KindParse:
		return ExitParseError
	case errs.KindValidation, errs.KindDuplicateExtension:
		return ExitConfigError
	case errs.KindTransport:
		return ExitNetworkError
	case errs.KindTimeout:
		return ExitTimeout
	case errs.KindHookExecution, errs.KindStateMutation, errs.KindInvalidModifier:
		return ExitExtensionError
	case errs.KindAborted:
		return ExitAborted
	default:
		return ExitRequestFailure
	}
}

package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/modelrelay/modelrelay/internal/llmerr"
	"github.com/modelrelay/modelrelay/utils"
)

// HandleDispatchError maps dispatch failures to HTTP responses
// Following the GrantPulse thin handler pattern
func HandleDispatchError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := llmerr.Details(err)

	var writeErr error
	switch llmerr.KindOf(err) {
	case llmerr.KindUnknownProvider:
		writeErr = utils.WriteNotFound(w, err.Error())

	case llmerr.KindNoCredential, llmerr.KindAuth:
		writeErr = utils.WriteUnauthorized(w, err.Error())

	case llmerr.KindRateLimit:
		writeErr = utils.WriteTooManyRequests(w, err.Error(), details)

	case llmerr.KindQuota:
		writeErr = utils.WritePaymentRequired(w, err.Error(), details)

	case llmerr.KindValidation:
		writeErr = utils.WriteBadRequest(w, err.Error(), details)

	case llmerr.KindNetwork, llmerr.KindServer,
		llmerr.KindProcessNotFound, llmerr.KindProcessTimeout:
		writeErr = utils.WriteBadGateway(w, err.Error(), details)

	default:
		// Extraction failures and anything unclassified are our fault,
		// not the caller's.
		logger.Error("unhandled dispatch error", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, err.Error())
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

package httpapi

import (
	"net/http"

	"github.com/aurabx/harmony/internal/herrors"
)

// mapPipelineErrorToStatus maps an executor error to an HTTP status code,
// grounded on router.rs's map_pipeline_error_to_status: a MiddlewareError
// wrapping an auth failure is 401, any other MiddlewareError/ServiceError/
// ConfigError is 500, and a BackendError is 502 (the downstream failed, not
// Harmony itself).
func mapPipelineErrorToStatus(err error) int {
	switch e := err.(type) {
	case *herrors.MiddlewareError:
		if e.IsAuthFailure() {
			return http.StatusUnauthorized
		}
		return http.StatusInternalServerError
	case *herrors.BackendError:
		return http.StatusBadGateway
	case *herrors.ConfigError:
		return http.StatusInternalServerError
	case *herrors.ServiceError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

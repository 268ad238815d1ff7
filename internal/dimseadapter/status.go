package dimseadapter

import (
	"strings"

	"github.com/aurabx/harmony/internal/dimse"
	"github.com/aurabx/harmony/internal/herrors"
)

// HTTPStatusToDimse maps an HTTP status code to a DICOM status code per
// spec.md §4.7's table, grounded line-for-line on
// status_mapper.rs's http_status_to_dimse.
func HTTPStatusToDimse(httpStatus int) dimse.DimseStatus {
	switch {
	case httpStatus >= 200 && httpStatus <= 299:
		return dimse.StatusSuccess
	case httpStatus == 400:
		return 0xC000
	case httpStatus == 401 || httpStatus == 403:
		return 0x0124
	case httpStatus == 404 || httpStatus == 410:
		return 0xA801
	case httpStatus == 405:
		return 0x0111
	case httpStatus == 408:
		return 0x0122
	case httpStatus == 409:
		return 0x0119
	case httpStatus == 413 || httpStatus == 507:
		return 0xA700
	case httpStatus == 415:
		return 0xA900
	case httpStatus == 429:
		return 0xA702
	case httpStatus == 500:
		return 0x0110
	case httpStatus == 501:
		return 0x0112
	case httpStatus >= 502 && httpStatus <= 504:
		return 0xA701
	case httpStatus >= 400 && httpStatus < 500:
		return 0xC000
	default:
		return 0x0110
	}
}

// PipelineErrorToDimse maps one of herrors' pipeline error types to a
// DICOM status code, applying status_mapper.rs's substring heuristics on
// the lowercased error text for Service/Backend errors.
func PipelineErrorToDimse(err error) dimse.DimseStatus {
	msg := strings.ToLower(err.Error())

	switch err.(type) {
	case *herrors.ServiceError:
		switch {
		case strings.Contains(msg, "not found") || strings.Contains(msg, "no such"):
			return 0xA801
		case strings.Contains(msg, "unauthorized") || strings.Contains(msg, "forbidden"):
			return 0x0124
		case strings.Contains(msg, "timeout"):
			return 0x0122
		default:
			return 0x0110
		}
	case *herrors.MiddlewareError:
		return 0x0110
	case *herrors.BackendError:
		switch {
		case strings.Contains(msg, "not found") || strings.Contains(msg, "404"):
			return 0xA801
		case strings.Contains(msg, "timeout"):
			return 0xA701
		case strings.Contains(msg, "connection") || strings.Contains(msg, "network"):
			return 0xA701
		default:
			return 0x0110
		}
	case *herrors.ConfigError:
		return 0x0110
	default:
		return 0x0110
	}
}

// ErrorContextToDimse prefers the pipeline-error mapping when both an
// HTTP status and a pipeline error are available (more specific),
// falling back to the HTTP status, and finally a generic processing
// failure when neither is present.
func ErrorContextToDimse(httpStatus *int, err error) dimse.DimseStatus {
	if err != nil {
		return PipelineErrorToDimse(err)
	}
	if httpStatus != nil {
		return HTTPStatusToDimse(*httpStatus)
	}
	return 0x0110
}

// IsSuccessfulStatus reports whether status indicates success (including
// the 0xC1xx warning range).
func IsSuccessfulStatus(status dimse.DimseStatus) bool {
	return status == dimse.StatusSuccess || (status >= 0xC100 && status <= 0xC1FF)
}

// IsRetriableStatus reports whether status is one spec.md §4.7 names as
// retriable: resource-limitation or timeout-family codes.
func IsRetriableStatus(status dimse.DimseStatus) bool {
	switch status {
	case 0xA701, 0xA702, 0xA700, 0x0122:
		return true
	default:
		return false
	}
}

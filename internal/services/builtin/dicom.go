package builtin

import (
	"fmt"
	"net/http"

	"github.com/aurabx/harmony/coreengine/typeutil"
	"github.com/aurabx/harmony/internal/envelope"
	"github.com/aurabx/harmony/internal/services"
)

// dicomService is the HTTP-facing endpoint side of a DIMSE association,
// grounded on original_source's DicomEndpoint (types/dicom.rs): it exposes
// a path_prefix/store and path_prefix/query route pair and requires an
// aet/host/port triple identifying the remote Application Entity. It
// implements no backend hook: used as a pipeline backend, "dicom" answers
// with the base type's not-usable-as-backend error and opens no DIMSE
// association.
type dicomService struct{ base }

func newDicomService() (services.Service, error) {
	return &dicomService{base{name: "dicom"}}, nil
}

func (s *dicomService) Validate(options map[string]any) error {
	aet, _ := options["aet"].(string)
	if aet == "" {
		return fmt.Errorf("dicom endpoint requires a non-empty 'aet' (Application Entity Title)")
	}
	host, _ := options["host"].(string)
	if host == "" {
		return fmt.Errorf("dicom endpoint requires a non-empty 'host' (DICOM server address)")
	}
	port, ok := typeutil.SafeInt(options["port"])
	if !ok || port < 1024 || port > 65535 {
		return fmt.Errorf("dicom endpoint requires a 'port' in range 1024-65535")
	}
	return nil
}

func (s *dicomService) BuildRouter(options map[string]any) []services.Route {
	prefix := pathPrefixOr(options, "/dicom")
	return []services.Route{
		{Path: prefix + "/store", Methods: []string{http.MethodPost}, Description: "Handles DICOM object storage requests"},
		{Path: prefix + "/query", Methods: []string{http.MethodGet}, Description: "Handles DICOM query requests"},
	}
}

func (s *dicomService) EndpointIncomingRequest(env *envelope.RequestEnvelope, options map[string]any) (*envelope.RequestEnvelope, error) {
	aet, _ := options["aet"].(string)
	if aet == "" {
		aet = "default-aet"
	}
	env.NormalizedData = map[string]any{
		"message":       "DICOM request processed",
		"aet":           aet,
		"original_data": string(env.OriginalData),
	}
	return env, nil
}

func (s *dicomService) EndpointOutgoingResponse(resp *envelope.ResponseEnvelope, _ map[string]any) ([]byte, map[string]string, error) {
	applyNormalizedResponse(resp)
	return respondJSON(resp)
}

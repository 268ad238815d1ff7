package builtin

import "github.com/aurabx/harmony/internal/services"

// Register wires every built-in Service kind into reg under its declared
// name, mirroring original_source's static ServiceType/ServiceHandler
// registration table (src/models/services/services.rs).
func Register(reg *services.Registry) {
	reg.Register("http", newHTTPService)
	reg.Register("echo", newEchoService)
	reg.Register("fhir", newFhirService)
	reg.Register("dicomweb", newDicomwebService)
	reg.Register("jmix", newJmixService)
	reg.Register("dicom", newDicomService)
	reg.Register("mock_dicom", newMockDicomService)
}

package builtin

import (
	"github.com/aurabx/harmony/internal/jmix"
	"github.com/aurabx/harmony/internal/middleware"
)

// Register binds every built-in middleware kind that needs no shared
// infrastructure to types, under its bare config name (spec §4.3's
// middleware table plus the connect supplement). jmix_builder is bound
// separately by RegisterJmixBuilder once a jmix.Builder exists.
func Register(types *middleware.TypeRegistry) {
	types.Register("passthrough", adapt(newPassthrough))
	types.Register("json_extractor", adapt(newJSONExtractor))
	types.Register("basic_auth", adapt(newBasicAuth))
	types.Register("jwt_auth", adapt(newJWTAuth))
	types.Register("path_filter", adapt(newPathFilter))
	types.Register("transform", adapt(newTransform))
	types.Register("metadata_transform", adapt(newMetadataTransform))
	types.Register("connect", adapt(newConnect))
	types.Register("dicomweb_bridge", adapt(newDicomwebBridge))
}

// RegisterJmixBuilder binds jmix_builder, closing over the shared
// jmix.Builder the orchestrator constructs at startup (spec §9's
// process-wide state S) rather than rebuilding one per middleware
// instantiation.
func RegisterJmixBuilder(types *middleware.TypeRegistry, builder *jmix.Builder) {
	types.Register("jmix_builder", func(options map[string]any) (middleware.Middleware, error) {
		return newJmixBuilderMiddleware(options, builder)
	})
}

// adapt lifts a newXxx(options) (*concreteType, error) constructor into a
// middleware.Constructor, since Go has no covariant-return interface
// satisfaction shortcut for "returns a type that implements Middleware".
func adapt[T middleware.Middleware](ctor func(map[string]any) (T, error)) middleware.Constructor {
	return func(options map[string]any) (middleware.Middleware, error) {
		return ctor(options)
	}
}

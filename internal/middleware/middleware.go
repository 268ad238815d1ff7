// Package middleware implements the middleware chain with symmetric
// left/right traversal, generalized from commbus/bus.go's
// runMiddlewareBefore/runMiddlewareAfter (forward vs. reverse-indexed
// iteration over the pub/sub middleware list, first-error short-circuit)
// adapted from pub/sub middleware to pipeline left/right middleware.
package middleware

import (
	"fmt"

	"github.com/aurabx/harmony/internal/herrors"
)

// Middleware is a named stage that mutates the Envelope on the way in
// (Left) or out (Right), per spec §3.
type Middleware interface {
	Name() string
	Left(env map[string]any) (map[string]any, error)
	Right(env map[string]any) (map[string]any, error)
}

// Constructor builds a Middleware instance from its options block.
type Constructor func(options map[string]any) (Middleware, error)

// TypeRegistry is the process-wide name->Constructor map for built-in
// middleware kinds (spec §4.3, §9's "process-wide state S").
type TypeRegistry struct {
	constructors map[string]Constructor
}

// NewTypeRegistry returns an empty, mutable builder.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{constructors: map[string]Constructor{}}
}

// Register binds a built-in type name to its constructor.
func (r *TypeRegistry) Register(name string, ctor Constructor) {
	r.constructors[name] = ctor
}

// Build resolves name to a Constructor and invokes it with options.
func (r *TypeRegistry) Build(name string, options map[string]any) (Middleware, error) {
	ctor, ok := r.constructors[name]
	if !ok {
		return nil, fmt.Errorf("unknown middleware type %q", name)
	}
	return ctor(options)
}

// InstanceConfig names one entry of the pipeline's `middleware` list,
// alongside the instance-block options a config.MiddlewareInstanceConfig
// may supply.
type InstanceConfig struct {
	Name          string
	InstanceType  string         // from a matching middleware.<name> block, if any
	InstanceOpts  map[string]any // from a matching middleware.<name> block, if any
	HasInstance   bool
}

// BuildChain resolves a pipeline's ordered middleware-name list into a
// Chain, following original_source's build_middleware_instances_for_pipeline
// precedence (DESIGN.md Open Question 1): an instance block's Type (or, if
// absent, the instance name itself read as a built-in type) wins; absent an
// instance block, the bare name is resolved directly as a built-in type;
// a name matching neither is a hard config error raised here, at
// construction time, not silently skipped.
func BuildChain(names []string, instances map[string]InstanceConfig, types *TypeRegistry) (*Chain, error) {
	mws := make([]Middleware, 0, len(names))
	for _, name := range names {
		if inst, ok := instances[name]; ok && inst.HasInstance {
			typeName := inst.InstanceType
			if typeName == "" {
				typeName = name
			}
			mw, err := types.Build(typeName, inst.InstanceOpts)
			if err != nil {
				return nil, herrors.WrapConfigError(fmt.Sprintf("unknown middleware instance %q", name), err)
			}
			mws = append(mws, mw)
			continue
		}
		mw, err := types.Build(name, nil)
		if err != nil {
			return nil, herrors.WrapConfigError(fmt.Sprintf("unknown middleware instance %q", name), err)
		}
		mws = append(mws, mw)
	}
	return &Chain{middlewares: mws}, nil
}

// Chain is an ordered, immutable list of resolved Middleware instances.
type Chain struct {
	middlewares []Middleware
}

// Left runs the chain forward (registration order), stopping at the first
// error (spec §4.3: "left: iterate instances 0..n ... stop on first
// error").
func (c *Chain) Left(env map[string]any) (map[string]any, error) {
	cur := env
	for _, mw := range c.middlewares {
		var err error
		cur, err = mw.Left(cur)
		if err != nil {
			return nil, herrors.NewMiddlewareError(mw.Name(), err)
		}
	}
	return cur, nil
}

// Right runs the chain in exact reverse of Left's order (spec §4.3 and
// testable property 4), stopping at the first error.
func (c *Chain) Right(env map[string]any) (map[string]any, error) {
	cur := env
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		mw := c.middlewares[i]
		var err error
		cur, err = mw.Right(cur)
		if err != nil {
			return nil, herrors.NewMiddlewareError(mw.Name(), err)
		}
	}
	return cur, nil
}

// Len reports the number of resolved middleware instances.
func (c *Chain) Len() int { return len(c.middlewares) }

package valueptr

import "errors"

var (
	// ErrEmpty indicates an operation that needs a payload was applied to an empty container.
	ErrEmpty = errors.New("valueptr: empty container")

	// ErrNilValue indicates a nil interface value was offered as a payload.
	ErrNilValue = errors.New("valueptr: nil value")

	// ErrNotInterface indicates a registration against an element type that is not an interface.
	ErrNotInterface = errors.New("valueptr: element type is not an interface")

	// ErrNotImplemented indicates a concrete type that does not implement the element type.
	ErrNotImplemented = errors.New("valueptr: type does not implement element type")

	// ErrUnregistered indicates a payload whose concrete type was never registered for the element type.
	ErrUnregistered = errors.New("valueptr: concrete type not registered")

	// ErrDynamic indicates Ref was called on a container whose element type is an interface.
	ErrDynamic = errors.New("valueptr: element type is an interface")
)

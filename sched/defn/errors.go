package defn

import "errors"

var (
	// ErrNoMemory is the only failure of allocating operations.
	ErrNoMemory = errors.New("out of memory")
	// ErrUnsupportedProtocol means the network header is neither IPv4 nor IPv6.
	ErrUnsupportedProtocol = errors.New("unsupported network protocol")
	// ErrUnknownDiscipline means no backend is registered for a kind.
	ErrUnknownDiscipline = errors.New("unknown queueing discipline")
	// ErrRepresentation means an invalid packet representation was requested.
	ErrRepresentation = errors.New("invalid packet representation")
	// ErrUnknownFlag means an unrecognized discipline flag name.
	ErrUnknownFlag = errors.New("unknown discipline flag")
	// ErrNoInterface means an interface handle is stale.
	ErrNoInterface = errors.New("interface detached")
)

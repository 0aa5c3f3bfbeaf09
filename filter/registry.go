package filter

import (
	"fmt"
	"io"
	"sync"
)

// Loader constructs a filter instance by reading its raw (envelope-free)
// payload from r. The reader is positioned at the start of the payload.
type Loader func(r io.Reader) (Filter, error)

var (
	loaderMu sync.RWMutex
	loaders  = map[Kind]Loader{}
)

// RegisterLoader registers a loader for a serialized filter kind.
//
// Filter implementations call this from an init() function.
func RegisterLoader(kind Kind, loader Loader) {
	loaderMu.Lock()
	defer loaderMu.Unlock()
	loaders[kind] = loader
}

func loaderFor(kind Kind) (Loader, error) {
	loaderMu.RLock()
	loader, ok := loaders[kind]
	loaderMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no loader registered for kind %s (missing import?)", ErrCorruptData, kind)
	}
	return loader, nil
}

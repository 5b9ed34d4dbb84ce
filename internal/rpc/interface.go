package rpc

import (
	"fmt"
	"sort"
	"sync"
)

// Method declares one remote-callable operation.
type Method struct {
	Name     string
	HasReply bool
}

type methodSpec struct {
	Method
	args  map[int]*Interface
	reply map[int]*Interface
}

// Interface is a statically declared remote object shape. Nested entries
// mark arguments (or reply values) that are themselves remote objects and
// must be proxied instead of copied.
type Interface struct {
	name string

	mu      sync.RWMutex
	methods map[string]*methodSpec
}

func NewInterface(name string, methods ...Method) *Interface {
	i := &Interface{name: name, methods: make(map[string]*methodSpec, len(methods))}
	for _, m := range methods {
		i.methods[m.Name] = &methodSpec{
			Method: m,
			args:   make(map[int]*Interface),
			reply:  make(map[int]*Interface),
		}
	}
	return i
}

func (i *Interface) Name() string {
	return i.name
}

func (i *Interface) Method(name string) (Method, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	spec, ok := i.methods[name]
	if !ok {
		return Method{}, false
	}
	return spec.Method, true
}

// Methods returns the declared methods ordered by name.
func (i *Interface) Methods() []Method {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]Method, 0, len(i.methods))
	for _, spec := range i.methods {
		out = append(out, spec.Method)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

// SetInterface declares that argument argIndex of method (of its reply
// when ofReply is set) is a remote object conforming to nested.
func (i *Interface) SetInterface(nested *Interface, method string, argIndex int, ofReply bool) error {
	if nested == nil {
		return fmt.Errorf("rpc: %s.%s: nil nested interface", i.name, method)
	}
	if argIndex < 0 {
		return fmt.Errorf("rpc: %s.%s: invalid argument index %d", i.name, method, argIndex)
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	spec, ok := i.methods[method]
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownMethod, i.name, method)
	}
	if ofReply {
		if !spec.HasReply {
			return fmt.Errorf("%w: %s.%s", ErrNoReply, i.name, method)
		}
		spec.reply[argIndex] = nested
		return nil
	}
	spec.args[argIndex] = nested
	return nil
}

// Nested returns the interface declared for an argument, or nil.
func (i *Interface) Nested(method string, argIndex int, ofReply bool) *Interface {
	if i == nil {
		return nil
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	spec, ok := i.methods[method]
	if !ok {
		return nil
	}
	if ofReply {
		return spec.reply[argIndex]
	}
	return spec.args[argIndex]
}

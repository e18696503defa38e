package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/pkg/errors"
)

// Handler runs an operation in process. args is the value made by the
// operation's Args func, filled in from the call, or nil if the
// operation takes no arguments.
type Handler func(ctx context.Context, args interface{}) (interface{}, error)

// Operation describes one named call. The same description is used
// to route calls in process, to send them to a server, and to expose
// them over HTTP.
type Operation struct {
	Name string
	// Method is the HTTP method of the operation's REST route.
	Method string
	// Params are the path parameters of the REST route, in order. A
	// trailing "?" marks a parameter as optional; optional parameters
	// must come last. Each names a JSON field of the arguments.
	Params []string
	// Args returns a pointer to a fresh argument value. Nil means the
	// operation takes no arguments.
	Args    func() interface{}
	Handler Handler
}

func (op Operation) validate() error {
	if op.Name == "" {
		return errors.New("operation has no name")
	}
	optional := false
	for _, p := range op.Params {
		if strings.HasSuffix(p, "?") {
			optional = true
			continue
		}
		if optional {
			return fmt.Errorf("operation %s: required parameter %q follows an optional one", op.Name, p)
		}
	}
	if len(op.Params) > 0 && op.Args == nil {
		return fmt.Errorf("operation %s has parameters but no arguments", op.Name)
	}
	return nil
}

// Table is the registry of operations shared by the dispatcher, the
// router and the HTTP handler.
type Table struct {
	mu    sync.RWMutex
	ops   map[string]*Operation
	order []string
}

func NewTable(ops ...Operation) (*Table, error) {
	t := &Table{ops: map[string]*Operation{}}
	for _, op := range ops {
		if err := t.Register(op); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Table) Register(op Operation) error {
	if err := op.validate(); err != nil {
		return err
	}
	if op.Method == "" {
		op.Method = "GET"
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.ops[op.Name]; ok {
		return fmt.Errorf("operation %s already registered", op.Name)
	}
	t.ops[op.Name] = &op
	t.order = append(t.order, op.Name)
	return nil
}

// Bind attaches a handler to a registered operation.
func (t *Table) Bind(name string, h Handler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	op, ok := t.ops[name]
	if !ok {
		return fmt.Errorf("no operation %s to bind", name)
	}
	op.Handler = h
	return nil
}

func (t *Table) Lookup(name string) (Operation, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	op, ok := t.ops[name]
	if !ok {
		return Operation{}, false
	}
	return *op, true
}

// Operations returns the registered operations in registration order.
func (t *Table) Operations() []Operation {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ops := make([]Operation, 0, len(t.order))
	for _, name := range t.order {
		ops = append(ops, *t.ops[name])
	}
	return ops
}

type route struct {
	name, path string
}

// routes gives the REST routes of an operation: the full path, then
// one per optional parameter left off the end.
func (op Operation) routes() []route {
	var required, optional []string
	for _, p := range op.Params {
		if strings.HasSuffix(p, "?") {
			optional = append(optional, strings.TrimSuffix(p, "?"))
		} else {
			required = append(required, p)
		}
	}

	base := "/v1/" + kebab(op.Name)
	var rs []route
	for n := len(optional); n >= 0; n-- {
		segments := append(append([]string{}, required...), optional[:n]...)
		path := base
		for _, s := range segments {
			path += "/{" + s + "}"
		}
		name := op.Name
		if n < len(optional) {
			name = fmt.Sprintf("%s:%d", op.Name, len(segments))
		}
		rs = append(rs, route{name: name, path: path})
	}
	return rs
}

// kebab turns updateDeployment into update-deployment.
func kebab(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('-')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

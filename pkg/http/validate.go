package http

import (
	"fmt"

	"github.com/gorilla/mux"
)

// ImplementsRoutes checks that every route named in want exists in
// router, with a handler attached.
func ImplementsRoutes(want, router *mux.Router) error {
	return want.Walk(func(r *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		route := router.Get(r.GetName())
		if route == nil {
			return fmt.Errorf("no route by name %q in router", r.GetName())
		}
		if route.GetHandler() == nil {
			return fmt.Errorf("no handler for route %q in router", r.GetName())
		}
		return nil
	})
}

package dispatch

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/weaveworks/common/middleware"

	transport "github.com/fluxcd/promoter/pkg/http"
)

const (
	callRoute     = "call"
	notFoundRoute = "NotFound"
)

// NewRouter makes the routes for every operation in the table, plus
// the route used by the Client layer. Paths are matched encoded, so
// parameters may carry escaped slashes.
func NewRouter(table *Table) *mux.Router {
	r := mux.NewRouter().UseEncodedPath()
	r.NewRoute().Name(callRoute).Methods("POST").Path("/v1/call/{operation}")
	for _, op := range table.Operations() {
		for _, rt := range op.routes() {
			r.NewRoute().Name(rt.name).Methods(op.Method).Path(rt.path)
		}
	}
	// Anything else is a client calling an API this server doesn't
	// have.
	r.NewRoute().Name(notFoundRoute).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		transport.WriteError(w, r, http.StatusNotFound, transport.MakeAPINotFound(r.URL.Path))
	})
	return r
}

// NewHandler attaches handlers for the dispatcher's operations to a
// router made by NewRouter. Calls are run in process.
func NewHandler(d *Dispatcher, r *mux.Router) http.Handler {
	s := server{d: d}
	r.Get(callRoute).HandlerFunc(s.call)
	for _, op := range d.table.Operations() {
		for _, rt := range op.routes() {
			r.Get(rt.name).Handler(s.rest(op.Name))
		}
	}
	return middleware.Instrument{
		RouteMatcher: r,
		Duration:     requestDuration,
	}.Wrap(r)
}

type server struct {
	d *Dispatcher
}

func (s server) call(w http.ResponseWriter, r *http.Request) {
	vars, err := transport.Vars(r)
	if err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	s.handle(w, r, vars["operation"], nil)
}

func (s server) rest(name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vars, err := transport.Vars(r)
		if err != nil {
			transport.ErrorResponse(w, r, err)
			return
		}
		s.handle(w, r, name, vars)
	})
}

func (s server) handle(w http.ResponseWriter, r *http.Request, name string, vars map[string]string) {
	op, ok := s.d.table.Lookup(name)
	if !ok {
		transport.ErrorResponse(w, r, UnknownOperationError(name))
		return
	}
	args, err := decodeArgs(op, r, vars)
	if err != nil {
		transport.WriteError(w, r, http.StatusBadRequest, transport.BadRequestError(err))
		return
	}
	result, err := s.d.serve(r.Context(), op, args)
	if err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	transport.JSONResponse(w, r, result)
}

// decodeArgs reads the arguments of a call from the request body,
// with any path parameters laid over it.
func decodeArgs(op Operation, r *http.Request, vars map[string]string) (interface{}, error) {
	if op.Args == nil {
		return nil, nil
	}
	defer r.Body.Close()
	body, err := ioutil.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	fields := map[string]interface{}{}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, err
		}
		if fields == nil {
			fields = map[string]interface{}{}
		}
	}
	for k, v := range vars {
		fields[k] = v
	}
	merged, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	args := op.Args()
	if err := json.Unmarshal(merged, args); err != nil {
		return nil, err
	}
	return args, nil
}

package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	fluxerr "github.com/fluxcd/promoter/pkg/errors"
)

// MakeURL builds the URL for a named route in router, relative to
// endpoint. vars are the route variables as name, value pairs; each
// value is escaped, so it may contain slashes. query is a list of
// name, value pairs for the query string.
func MakeURL(endpoint string, router *mux.Router, routeName string, vars []string, query ...string) (*url.URL, error) {
	if len(vars)%2 != 0 || len(query)%2 != 0 {
		panic("vars and query must be name, value pairs")
	}

	endpointURL, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing endpoint %s", endpoint)
	}
	route := router.Get(routeName)
	if route == nil {
		return nil, errors.New("no route with name " + routeName)
	}
	escaped := make([]string, len(vars))
	for i := 0; i < len(vars); i += 2 {
		escaped[i] = vars[i]
		escaped[i+1] = url.PathEscape(vars[i+1])
	}
	routeURL, err := route.URLPath(escaped...)
	if err != nil {
		return nil, errors.Wrapf(err, "retrieving route path %s", routeName)
	}

	v := url.Values{}
	for i := 0; i < len(query); i += 2 {
		v.Add(query[i], query[i+1])
	}

	rawPath := path.Join(endpointURL.EscapedPath(), routeURL.Path)
	unescaped, err := url.PathUnescape(rawPath)
	if err != nil {
		return nil, errors.Wrapf(err, "unescaping path %s", rawPath)
	}
	endpointURL.Path = unescaped
	endpointURL.RawPath = rawPath
	endpointURL.RawQuery = v.Encode()
	return endpointURL, nil
}

// Vars returns the route variables of a request, unescaped. Routers
// serving URLs made with MakeURL must use encoded paths
// (mux.Router.UseEncodedPath).
func Vars(r *http.Request) (map[string]string, error) {
	vars := map[string]string{}
	for k, v := range mux.Vars(r) {
		unescaped, err := url.PathUnescape(v)
		if err != nil {
			return nil, fluxerr.UserError("malformed path parameter %s: %s", k, err)
		}
		vars[k] = unescaped
	}
	return vars, nil
}

func WriteError(w http.ResponseWriter, r *http.Request, code int, err error) {
	// Clients that can decode JSON errors say so with an Accept
	// header; everyone else gets the error text.
	if len(r.Header.Get("Accept")) > 0 {
		switch negotiateContentType(r, []string{"application/json", "text/plain"}) {
		case "application/json":
			body, encodeErr := json.Marshal(err)
			if encodeErr != nil {
				w.Header().Set(http.CanonicalHeaderKey("Content-Type"), "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprintf(w, "Error encoding error response: %s\n\nOriginal error: %s", encodeErr.Error(), err.Error())
				return
			}
			w.Header().Set(http.CanonicalHeaderKey("Content-Type"), "application/json; charset=utf-8")
			w.WriteHeader(code)
			w.Write(body)
			return
		case "text/plain":
			w.Header().Set(http.CanonicalHeaderKey("Content-Type"), "text/plain; charset=utf-8")
			w.WriteHeader(code)
			switch err := err.(type) {
			case *fluxerr.Error:
				fmt.Fprint(w, err.Help)
			default:
				fmt.Fprint(w, err.Error())
			}
			return
		}
	}
	w.Header().Set(http.CanonicalHeaderKey("Content-Type"), "text/plain; charset=utf-8")
	w.WriteHeader(code)
	fmt.Fprint(w, err.Error())
}

func JSONResponse(w http.ResponseWriter, r *http.Request, result interface{}) {
	body, err := json.Marshal(result)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// StatusCode gives the HTTP status for an API error type.
func StatusCode(t fluxerr.Type) int {
	switch t {
	case fluxerr.Missing:
		return http.StatusNotFound
	case fluxerr.User:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func ErrorResponse(w http.ResponseWriter, r *http.Request, apiError error) {
	outErr, ok := errors.Cause(apiError).(*fluxerr.Error)
	if !ok {
		outErr = fluxerr.CoverAllError(apiError)
	}
	WriteError(w, r, StatusCode(outErr.Type), outErr)
}

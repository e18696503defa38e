package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"reflect"
	"strconv"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	fluxmetrics "github.com/fluxcd/promoter/pkg/metrics"
)

const DefaultTimeout = 30 * time.Second

type Config struct {
	Layer Layer
	// Endpoint is the base URL of the server, for the Client layer.
	Endpoint string
	// Timeout bounds each call sent to a server.
	Timeout time.Duration
	Client  *http.Client
	Logger  log.Logger
}

// Dispatcher runs operations from a Table, in process or on a server
// depending on its Layer.
type Dispatcher struct {
	table    *Table
	layer    Layer
	endpoint string
	timeout  time.Duration
	client   *http.Client
	router   *mux.Router
	logger   log.Logger
}

func New(table *Table, config Config) (*Dispatcher, error) {
	if config.Layer == Client && config.Endpoint == "" {
		return nil, errors.New("client layer needs a server endpoint")
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Client == nil {
		config.Client = http.DefaultClient
	}
	if config.Logger == nil {
		config.Logger = log.NewNopLogger()
	}
	return &Dispatcher{
		table:    table,
		layer:    config.Layer,
		endpoint: config.Endpoint,
		timeout:  config.Timeout,
		client:   config.Client,
		router:   NewRouter(table),
		logger:   config.Logger,
	}, nil
}

func (d *Dispatcher) Layer() Layer {
	return d.layer
}

func (d *Dispatcher) Table() *Table {
	return d.table
}

// Call runs the named operation with args, and decodes its result
// into result, which must be a pointer (or nil to discard the
// result). The call behaves the same whichever layer runs it; only
// the error wrapping differs.
func (d *Dispatcher) Call(ctx context.Context, name string, args interface{}, result interface{}) (err error) {
	defer func(begin time.Time) { d.done(name, begin, err) }(time.Now())

	op, ok := d.table.Lookup(name)
	if !ok {
		return UnknownOperationError(name)
	}
	if d.layer == Client {
		return d.remote(ctx, op, args, result)
	}
	out, err := d.local(ctx, op, args)
	if err != nil {
		return err
	}
	return assign(out, result)
}

// serve runs a call that arrived over HTTP.
func (d *Dispatcher) serve(ctx context.Context, op Operation, args interface{}) (_ interface{}, err error) {
	defer func(begin time.Time) { d.done(op.Name, begin, err) }(time.Now())
	return d.local(ctx, op, args)
}

func (d *Dispatcher) local(ctx context.Context, op Operation, args interface{}) (interface{}, error) {
	if op.Handler == nil {
		return nil, UnboundOperationError(op.Name)
	}
	var in interface{}
	if op.Args != nil {
		in = op.Args()
		if err := assign(args, in); err != nil {
			return nil, errors.Wrapf(err, "arguments for %s", op.Name)
		}
	}
	return op.Handler(ctx, in)
}

func (d *Dispatcher) done(name string, begin time.Time, err error) {
	if err != nil {
		d.logger.Log("method", name, "layer", d.layer, "err", err)
	}
	callDuration.With(
		fluxmetrics.LabelMethod, name,
		fluxmetrics.LabelLayer, d.layer.String(),
		fluxmetrics.LabelSuccess, strconv.FormatBool(err == nil),
	).Observe(time.Since(begin).Seconds())
}

// assign copies src into the value dst points at. Values of the same
// type are copied directly; anything else goes through JSON, as it
// would between a client and a server.
func assign(src, dst interface{}) error {
	if src == nil || dst == nil {
		return nil
	}
	dv := reflect.ValueOf(dst)
	if dv.Kind() != reflect.Ptr || dv.IsNil() {
		return errors.Errorf("cannot decode into non-pointer %T", dst)
	}
	target := dv.Elem()
	sv := reflect.ValueOf(src)
	switch {
	case sv.Type().AssignableTo(target.Type()):
		target.Set(sv)
		return nil
	case sv.Kind() == reflect.Ptr && !sv.IsNil() && sv.Elem().Type().AssignableTo(target.Type()):
		target.Set(sv.Elem())
		return nil
	}
	bytes, err := json.Marshal(src)
	if err != nil {
		return errors.Wrap(err, "encoding value")
	}
	return errors.Wrap(json.Unmarshal(bytes, dst), "decoding value")
}

package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	fluxerr "github.com/fluxcd/promoter/pkg/errors"
	transport "github.com/fluxcd/promoter/pkg/http"
)

// remote sends a call to the server, and decodes the response into
// result. There are no retries.
func (d *Dispatcher) remote(ctx context.Context, op Operation, args interface{}, result interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	fail := func(err error) error {
		return &Error{Operation: op.Name, Err: err}
	}

	u, err := transport.MakeURL(d.endpoint, d.router, callRoute, []string{"operation", op.Name})
	if err != nil {
		return fail(errors.Wrap(err, "constructing URL"))
	}
	var body []byte
	if args != nil {
		body, err = json.Marshal(args)
		if err != nil {
			return fail(errors.Wrap(err, "encoding request body"))
		}
	}
	req, err := http.NewRequest("POST", u.String(), bytes.NewReader(body))
	if err != nil {
		return fail(errors.Wrapf(err, "constructing request %s", u))
	}
	req = req.WithContext(ctx)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fail(errors.Wrap(err, "executing HTTP request"))
	}
	defer resp.Body.Close()

	respBytes, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return &Error{Operation: op.Name, StatusCode: resp.StatusCode, Err: errors.Wrap(err, "reading response body")}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{
			Operation:  op.Name,
			StatusCode: resp.StatusCode,
			Body:       string(respBytes),
			Err:        decodeError(resp, respBytes),
		}
	}
	if result == nil || len(respBytes) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBytes, result); err != nil {
		return &Error{
			Operation:  op.Name,
			StatusCode: resp.StatusCode,
			Body:       string(respBytes),
			Err:        errors.Wrap(err, "decoding response from server"),
		}
	}
	return nil
}

// decodeError uses the content type to tell our own errors from any
// other failure response.
func decodeError(resp *http.Response, body []byte) error {
	if strings.HasPrefix(resp.Header.Get(http.CanonicalHeaderKey("Content-Type")), "application/json") {
		var niceError fluxerr.Error
		if err := json.Unmarshal(body, &niceError); err == nil && niceError.Err != nil {
			return &niceError
		}
	}
	return errors.New(resp.Status + " " + string(body))
}

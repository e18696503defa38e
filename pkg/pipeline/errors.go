package pipeline

import (
	"fmt"

	"github.com/fluxcd/promoter/pkg/cluster"
	fluxerr "github.com/fluxcd/promoter/pkg/errors"
)

func UnknownPipelineError(name string) *fluxerr.Error {
	return &fluxerr.Error{
		Type: fluxerr.Missing,
		Err:  fmt.Errorf("unknown pipeline %q", name),
		Help: fmt.Sprintf(`Pipeline %q is not configured

Pipelines are read from the promoterd configuration at startup. Use
`+"`promoctl pipelines`"+` to see the ones it knows about.
`, name),
	}
}

func BusyError(name string, state State) *fluxerr.Error {
	return &fluxerr.Error{
		Type: fluxerr.User,
		Err:  fmt.Errorf("pipeline %q is %s", name, state),
		Help: fmt.Sprintf(`Pipeline %q is already running

A pipeline only runs one plan or apply at a time. Wait for the current
run to finish (see `+"`promoctl pipelines`"+`) and try again.
`, name),
	}
}

func TargetMismatchError(desc Description, target cluster.ServerGroup) *fluxerr.Error {
	return &fluxerr.Error{
		Type: fluxerr.User,
		Err:  fmt.Errorf("plan for pipeline %q targets %s, not %s", desc.Name, target, desc.Target()),
		Help: fmt.Sprintf(`The plan does not target pipeline %q's namespace

A plan is applied to the namespace it was made for, and that must be
the pipeline's target (%s). Make a new plan with
`+"`promoctl plan %s`"+` and apply that.
`, desc.Name, desc.Target(), desc.Name),
	}
}

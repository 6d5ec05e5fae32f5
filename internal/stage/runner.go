package stage

import (
	"context"
	"fmt"

	"reframe/internal/registry"
)

// Outcome carries what a stage produced. ArtifactLocator is set when the
// stage emitted a retrievable artifact; the final stage's locator becomes
// the job's output.
type Outcome struct {
	ArtifactLocator string
}

// Runner describes the contract the orchestrator needs from each stage.
type Runner interface {
	Run(context.Context, *registry.Job) (Outcome, error)
	HealthCheck(context.Context) Health
}

// Execute invokes the runner with panic recovery so a misbehaving stage
// fails its own job instead of taking down the daemon.
func Execute(ctx context.Context, r Runner, job *registry.Job) (outcome Outcome, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			outcome = Outcome{}
			err = Wrap(ErrProcessing, "", "execute", fmt.Sprintf("stage panic: %v", rec), nil)
		}
	}()
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	return r.Run(ctx, job)
}

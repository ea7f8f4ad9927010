package grader

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/curriculagg/curricula-grade/plan"
	"github.com/curriculagg/curricula-grade/report"
	"github.com/curriculagg/curricula-grade/resource"
	"github.com/curriculagg/curricula-grade/task"
)

// Problem is one gradable unit of an assignment
type Problem struct {
	Name     string
	Registry *task.Registry
}

// Grade runs every problem against the submission, each with a fresh
// resource pool. A problem that cannot be planned or stops on a
// configuration error is still present in the report, marked partial. So is
// every problem of a cancelled run. The returned error joins those
// configuration errors and the cancellation cause.
func (e *Engine) Grade(ctx context.Context, problems []Problem, sub resource.Submission, rc resource.Context) (*report.AssignmentReport, error) {
	a := report.NewAssignmentReport()
	var errs []error
	for _, pb := range problems {
		p, err := plan.Build(pb.Registry)
		if err != nil {
			e.logger.Error("invalid problem", zap.String("problem", pb.Name), zap.Error(err))
			a.Add(pb.Name, report.Failed(err))
			errs = append(errs, fmt.Errorf("problem %q: %w", pb.Name, err))
			continue
		}
		c := rc
		c.Problem = pb.Name
		rp, err := e.Run(ctx, p, resource.NewPool(sub, c))
		a.Add(pb.Name, rp)
		if err != nil {
			errs = append(errs, fmt.Errorf("problem %q: %w", pb.Name, err))
		}
	}
	// problems started after cancellation record every task as cancelled
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return a, errors.Join(errs...)
}

package scheduler

import (
	"fmt"
	"sort"
	"strings"

	perrors "github.com/conneroisu/blockpipe/internal/errors"
	"github.com/conneroisu/blockpipe/internal/task"
)

// Stage is a set of tasks that run concurrently.
type Stage []string

// Plan is an ordered list of stages. Stage N+1 starts only after every
// task of stage N has finished.
type Plan []Stage

// Sequence builds a plan with one task per stage.
func Sequence(names ...string) Plan {
	p := make(Plan, 0, len(names))
	for _, n := range names {
		p = append(p, Stage{n})
	}
	return p
}

// Tasks returns every task of the plan in stage order.
func (p Plan) Tasks() []string {
	var out []string
	for _, st := range p {
		out = append(out, st...)
	}
	return out
}

// String renders the plan as "[a] -> [b, c]".
func (p Plan) String() string {
	parts := make([]string, 0, len(p))
	for _, st := range p {
		parts = append(parts, "["+strings.Join(st, ", ")+"]")
	}
	return strings.Join(parts, " -> ")
}

// validate checks names, duplicates and dependency placement. satisfied
// reports whether a dependency absent from earlier stages is already done.
func validate(reg *task.Registry, plan Plan, satisfied func(string) bool) error {
	if len(plan.Tasks()) == 0 {
		return perrors.NewConfigError(perrors.ErrCodeInvalidPlan, "plan has no tasks")
	}

	stageOf := make(map[string]int)
	for i, st := range plan {
		for _, name := range st {
			if _, err := reg.Lookup(name); err != nil {
				return err
			}
			if prev, ok := stageOf[name]; ok {
				return perrors.NewConfigError(perrors.ErrCodeInvalidPlan,
					fmt.Sprintf("task %q appears twice (stages %d and %d)", name, prev+1, i+1))
			}
			stageOf[name] = i
		}
	}

	for i, st := range plan {
		for _, name := range st {
			t, _ := reg.Lookup(name)
			for _, dep := range t.Deps {
				if at, ok := stageOf[dep]; ok {
					if at < i {
						continue
					}
					return perrors.NewConfigError(perrors.ErrCodeInvalidPlan,
						fmt.Sprintf("task %q depends on %q which is not in an earlier stage", name, dep))
				}
				if satisfied(dep) {
					continue
				}
				return perrors.NewConfigError(perrors.ErrCodeInvalidPlan,
					fmt.Sprintf("task %q depends on %q which is neither planned earlier nor completed", name, dep))
			}
		}
	}

	return nil
}

// expand returns names plus their dependency closure, layered so that every
// task sits in a later stage than all of its dependencies. Ties keep
// registration order.
func expand(reg *task.Registry, names []string) (Plan, error) {
	if len(names) == 0 {
		return nil, perrors.NewConfigError(perrors.ErrCodeInvalidPlan, "no tasks requested")
	}

	index := make(map[string]int)
	for i, n := range reg.Names() {
		index[n] = i
	}

	deps := make(map[string][]string)
	queue := append([]string(nil), names...)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if _, seen := deps[name]; seen {
			continue
		}
		t, err := reg.Lookup(name)
		if err != nil {
			return nil, err
		}
		deps[name] = t.Deps
		queue = append(queue, t.Deps...)
	}

	indeg := make(map[string]int, len(deps))
	dependents := make(map[string][]string, len(deps))
	for name, ds := range deps {
		indeg[name] = len(ds)
		for _, d := range ds {
			dependents[d] = append(dependents[d], name)
		}
	}

	byRegistration := func(s []string) {
		sort.Slice(s, func(i, j int) bool { return index[s[i]] < index[s[j]] })
	}

	var ready []string
	for name, n := range indeg {
		if n == 0 {
			ready = append(ready, name)
		}
	}

	var plan Plan
	placed := 0
	for len(ready) > 0 {
		byRegistration(ready)
		plan = append(plan, Stage(ready))
		placed += len(ready)

		var next []string
		for _, name := range ready {
			for _, m := range dependents[name] {
				indeg[m]--
				if indeg[m] == 0 {
					next = append(next, m)
				}
			}
		}
		ready = next
	}

	if placed != len(deps) {
		var cyclic []string
		for name, n := range indeg {
			if n > 0 {
				cyclic = append(cyclic, name)
			}
		}
		byRegistration(cyclic)
		return nil, perrors.NewConfigError(perrors.ErrCodeDependencyCycle,
			fmt.Sprintf("dependency cycle among tasks: %s", strings.Join(cyclic, ", ")))
	}

	return plan, nil
}

package orders

import (
	"context"
	"strings"
)

type actionFunc func(context.Context, Event) error

// actionFactory routes upstream statuses to dispatch actions. Statuses that
// describe later lifecycle steps (cooking, delivering, ...) have no action.
type actionFactory struct {
	byStatus map[string]actionFunc
}

func newActionFactory(onCreated, onCanceled actionFunc) *actionFactory {
	f := &actionFactory{byStatus: make(map[string]actionFunc)}
	for _, s := range []string{"created", "new"} {
		f.byStatus[s] = onCreated
	}
	for _, s := range []string{"canceled", "cancelled", "deleted"} {
		f.byStatus[s] = onCanceled
	}
	return f
}

func (f *actionFactory) get(status string) (actionFunc, bool) {
	fn, ok := f.byStatus[strings.ToLower(strings.TrimSpace(status))]
	return fn, ok
}

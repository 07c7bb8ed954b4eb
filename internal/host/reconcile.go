// SPDX-License-Identifier: MPL-2.0

package host

import (
	"github.com/wabkit/wabkit/internal/extender"
	"github.com/wabkit/wabkit/pkg/module"
)

// Result counts the lifecycle notifications delivered by Reconcile.
type Result struct {
	Stopped int
	Started int
	// Errors holds the failed starts, one *extender.StartError each.
	Errors []error
}

// Reconcile brings the bridge in line with the installed modules. Managed
// modules that are no longer installed, or for which changed reports true,
// are stopped first, most recently started first; then every installed
// module that is not managed is offered to the bridge.
func Reconcile(b *extender.Bridge, installed []module.Module, changed func(module.Module) bool) Result {
	var res Result

	present := make(map[string]bool, len(installed))
	for _, m := range installed {
		present[m.Key()] = true
	}
	managed := b.Managed()
	for i := len(managed) - 1; i >= 0; i-- {
		m := managed[i]
		if present[m.Key()] && (changed == nil || !changed(m)) {
			continue
		}
		b.ModuleStopping(m)
		res.Stopped++
	}

	for _, m := range installed {
		if _, ok := b.Application(m); ok {
			continue
		}
		app, err := b.ModuleStarting(m)
		switch {
		case err != nil:
			res.Errors = append(res.Errors, err)
		case app != nil:
			res.Started++
		}
	}
	return res
}

package bridge

import (
	"fmt"
	"strings"

	"github.com/rubiojr/bindgen/contract"
)

// Binding pairs a contract interface with its single implementation.
type Binding struct {
	Interface *contract.InterfaceDesc
	Impl      contract.ImplDesc
}

// Plan is the resolved shape of one module.
type Plan struct {
	Bindings  []Binding
	Callbacks []*contract.InterfaceDesc
	Skipped   []string // interfaces with no implementation
}

// Resolve binds every non-callback interface of mod to exactly one
// implementation. Interfaces without an implementation are skipped; more
// than one is an error naming the interface. Callback interfaces are
// implemented by the host and always succeed.
func Resolve(mod *contract.Module, impls []contract.ImplDesc) (*Plan, error) {
	byContract := make(map[string][]contract.ImplDesc)
	for _, im := range impls {
		byContract[im.Contract] = append(byContract[im.Contract], im)
	}

	plan := &Plan{}
	for i := range mod.Interfaces {
		iface := &mod.Interfaces[i]
		if iface.Callback {
			plan.Callbacks = append(plan.Callbacks, iface)
			continue
		}
		found := byContract[iface.Name]
		switch len(found) {
		case 0:
			plan.Skipped = append(plan.Skipped, iface.Name)
		case 1:
			plan.Bindings = append(plan.Bindings, Binding{Interface: iface, Impl: found[0]})
		default:
			names := make([]string, len(found))
			for j, im := range found {
				names[j] = im.ModPath + "::" + im.Name
			}
			return nil, &GenerateError{
				Module:    mod.Name,
				Interface: iface.Name,
				Msg:       fmt.Sprintf("%d implementations found (%s), want at most one", len(found), strings.Join(names, ", ")),
			}
		}
	}
	return plan, nil
}

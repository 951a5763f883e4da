package toast

import (
	. "github.com/vango-dev/tumorscope/pkg/vdom"
)

// ContainerID is the id of the element holding the toast stack.
const ContainerID = "alertContainer"

// View renders the toast stack, fixed to the top-right corner.
func View(items []Toast) *VNode {
	return Div(ID(ContainerID), Class("toast-stack"), AriaLive("polite"),
		Range(items, func(_ int, t Toast) *VNode {
			return Div(
				Class("alert", "alert-"+string(t.Level), "alert-dismissible", "fade", "show"),
				Role("alert"),
				Data("toast", t.ID),
				Text(t.Message),
				Button(Type("button"), Class("btn-close"),
					AriaLabel("Close"),
					Data("action", "dismiss"),
					Data("toast", t.ID),
				),
			)
		}),
	)
}

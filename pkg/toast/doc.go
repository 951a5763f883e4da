// Package toast provides the transient notification banners of the upload UI.
//
// A Center holds the stack of visible toasts for one session. Toasts stack
// without de-duplication or limit, remove themselves after Timeout (5000 ms
// by default) and can be dismissed earlier by ID.
//
// # Event Loop Ownership
//
// The Center is owned by the session event loop. Auto-dismiss timers fire on
// their own goroutine, so the removal is handed back through the dispatch
// function the Center was built with:
//
//	center := toast.NewCenter(toast.WithDispatcher(session.Dispatch))
//	center.Warning("Please select an image file first.")
//
// # Rendering
//
// View renders the stack as Bootstrap alerts. Messages are text nodes, so
// server-provided error strings are escaped by the renderer. The close button
// carries data-action="dismiss" and data-toast=<id>, which the thin client
// sends back as a dismiss event.
package toast

// Package controller implements the UploadController: file acquisition,
// validation, preview, submission to /classify and result rendering.
//
// One Controller exists per session and is driven from a single goroutine,
// the session event loop. Methods are not safe for concurrent use.
//
// # Asynchronous work
//
// Reading file content and posting it to the classifier happen off the
// loop. The Controller launches them through Config.Go and hands results
// back through Config.Dispatch, which must run the callback on the owning
// loop. Each read and each submission carries an operation ID; only the
// completion for the most recently issued ID is applied. Older completions
// are dropped without touching the UI.
//
// # Rendering
//
// View returns a plain view model. Render and Regions turn it into vdom
// trees; every server-provided string ends up in a text node so the
// renderer escapes it.
//
// # Commands
//
// Some effects can only happen in the browser, such as asking it to upload
// the picked file or to scroll the results into view. These are queued as
// Commands and drained by the session after each event.
package controller

// Package render turns vdom trees into HTML.
//
// Every text node is HTML-escaped and every attribute value is
// attribute-escaped, so strings that come from the classifier (labels,
// model names, error messages) can never inject markup. The renderer is
// used twice: once for the full page served at "/", and then for each
// region fragment the live session pushes over the WebSocket.
//
//	r := render.NewRenderer(render.RendererConfig{})
//	html, err := r.RenderToString(view)
package render

// Package vdom provides the typed node trees the upload UI is built from.
//
// Views never concatenate markup. They build a tree of VNodes with the
// element and attribute helpers in this package and hand it to the render
// package, which escapes every text node and attribute value:
//
//	card := Div(Class("result-card"),
//	    H5(Class("model-name"), Text(prediction.Model)),
//	    Div(Class("prediction-value"), Text(prediction.Label)),
//	)
//
// There is deliberately no raw-HTML node kind: server-provided strings such
// as prediction labels and error text can only enter a tree as text.
//
// # Element Arguments
//
// Element constructors accept a variadic list that may mix:
//   - Attr or []Attr: attributes
//   - *VNode or []*VNode: children
//   - string: shorthand for a text child
//   - nil: ignored, which makes conditional children easy
//
// # Querying
//
// Find, Walk and TextContent let tests and the session layer inspect a tree
// without rendering it.
package vdom

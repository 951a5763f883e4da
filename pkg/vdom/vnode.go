package vdom

import "strings"

// VKind is the node type discriminator.
type VKind uint8

const (
	KindElement  VKind = iota // <div>, <button>, etc.
	KindText                  // Plain text node
	KindFragment              // Grouping without wrapper
)

// String returns the string representation of the VKind.
func (k VKind) String() string {
	switch k {
	case KindElement:
		return "Element"
	case KindText:
		return "Text"
	case KindFragment:
		return "Fragment"
	default:
		return "Unknown"
	}
}

// VNode is a node in a view tree.
type VNode struct {
	Kind     VKind    // Node type
	Tag      string   // Element tag name (e.g., "div")
	Props    Props    // Attributes
	Children []*VNode // Child nodes
	Key      string   // Stable identity (taken from the id attribute)
	Text     string   // For KindText
}

// Props holds attributes.
type Props map[string]any

// Attr represents a single attribute.
type Attr struct {
	Key   string
	Value any
}

// IsEmpty returns true if this is an empty/nil attribute.
func (a Attr) IsEmpty() bool {
	return a.Key == ""
}

// ID returns the node's id attribute, or "".
func (v *VNode) ID() string {
	if v == nil || v.Kind != KindElement {
		return ""
	}
	id, _ := v.Props["id"].(string)
	return id
}

// Classes returns the node's class list.
func (v *VNode) Classes() []string {
	if v == nil || v.Kind != KindElement {
		return nil
	}
	class, _ := v.Props["class"].(string)
	return strings.Fields(class)
}

// HasClass reports whether the node's class list contains class.
func (v *VNode) HasClass(class string) bool {
	for _, c := range v.Classes() {
		if c == class {
			return true
		}
	}
	return false
}

// Attr returns the attribute value for key and whether it is set.
func (v *VNode) Attr(key string) (any, bool) {
	if v == nil || v.Props == nil {
		return nil, false
	}
	val, ok := v.Props[key]
	return val, ok
}

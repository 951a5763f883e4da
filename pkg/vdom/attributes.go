package vdom

import "strings"

// attr creates an Attr with the given key and value.
func attr(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// Identity attributes

// ID sets the id attribute.
func ID(id string) Attr { return attr("id", id) }

// Class sets the class attribute, joining multiple classes with spaces.
// Empty class names are skipped.
func Class(classes ...string) Attr {
	kept := classes[:0:0]
	for _, c := range classes {
		if c != "" {
			kept = append(kept, c)
		}
	}
	return attr("class", strings.Join(kept, " "))
}

// ClassIf adds class only when cond holds.
func ClassIf(cond bool, class string) Attr {
	if !cond {
		return Attr{}
	}
	return Class(class)
}

// StyleAttr sets the style attribute.
func StyleAttr(style string) Attr { return attr("style", style) }

// Data creates a data-* attribute.
// Example: Data("action", "dismiss") → data-action="dismiss"
func Data(key, value string) Attr { return attr("data-"+key, value) }

// Accessibility attributes

// Role sets the role attribute.
func Role(role string) Attr { return attr("role", role) }

// AriaLabel sets the aria-label attribute.
func AriaLabel(label string) Attr { return attr("aria-label", label) }

// AriaHidden sets the aria-hidden attribute.
func AriaHidden(hidden bool) Attr { return attr("aria-hidden", hidden) }

// AriaLive sets the aria-live attribute.
func AriaLive(mode string) Attr { return attr("aria-live", mode) }

// AriaBusy sets the aria-busy attribute.
func AriaBusy(busy bool) Attr { return attr("aria-busy", busy) }

// TabIndex sets the tabindex attribute.
func TabIndex(index int) Attr { return attr("tabindex", index) }

// Hidden sets the boolean hidden attribute.
func Hidden() Attr { return attr("hidden", true) }

// HiddenIf sets hidden only when cond holds.
func HiddenIf(cond bool) Attr {
	if !cond {
		return Attr{}
	}
	return Hidden()
}

// Form attributes

// Name sets the name attribute.
func Name(name string) Attr { return attr("name", name) }

// Type sets the type attribute.
func Type(t string) Attr { return attr("type", t) }

// Accept sets the accept attribute.
func Accept(types string) Attr { return attr("accept", types) }

// Disabled sets the boolean disabled attribute.
func Disabled() Attr { return attr("disabled", true) }

// DisabledIf sets disabled only when cond holds.
func DisabledIf(cond bool) Attr {
	if !cond {
		return Attr{}
	}
	return Disabled()
}

// Enctype sets the enctype attribute.
func Enctype(enctype string) Attr { return attr("enctype", enctype) }

// Novalidate sets the novalidate attribute.
func Novalidate() Attr { return attr("novalidate", true) }

// Media and link attributes

// Src sets the src attribute.
func Src(url string) Attr { return attr("src", url) }

// Alt sets the alt attribute.
func Alt(text string) Attr { return attr("alt", text) }

// Href sets the href attribute.
func Href(url string) Attr { return attr("href", url) }

// Rel sets the rel attribute.
func Rel(rel string) Attr { return attr("rel", rel) }

// Charset sets the charset attribute.
func Charset(cs string) Attr { return attr("charset", cs) }

// Defer sets the boolean defer attribute.
func Defer() Attr { return attr("defer", true) }

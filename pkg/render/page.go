package render

import (
	"fmt"
	"io"

	"github.com/vango-dev/tumorscope/pkg/vdom"
)

// PageData contains all data needed to render a complete HTML page.
type PageData struct {
	// Body is the root VNode for the page content.
	Body *vdom.VNode

	// Title is the page title.
	Title string

	// Lang is the language attribute for the html element.
	// Defaults to "en" if not specified.
	Lang string

	// StyleSheets contains URLs of external stylesheets.
	StyleSheets []string

	// Styles contains inline CSS. It is trusted application CSS and is not
	// escaped.
	Styles []string

	// Scripts contains script URLs, appended to the end of body in order.
	Scripts []ScriptTag

	// SessionID is exposed to the client as a data attribute on body.
	SessionID string
}

// ScriptTag represents a script element.
type ScriptTag struct {
	Src   string
	Defer bool
}

// RenderPage renders a complete HTML document to the given writer.
func (r *Renderer) RenderPage(w io.Writer, page PageData) error {
	lang := page.Lang
	if lang == "" {
		lang = "en"
	}

	if _, err := io.WriteString(w, "<!DOCTYPE html>\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, `<html lang="%s">`+"\n", escapeAttr(lang)); err != nil {
		return err
	}

	if err := r.renderHead(w, page); err != nil {
		return err
	}

	body := "<body>\n"
	if page.SessionID != "" {
		body = fmt.Sprintf(`<body data-session="%s">`+"\n", escapeAttr(page.SessionID))
	}
	if _, err := io.WriteString(w, body); err != nil {
		return err
	}

	if err := r.RenderToWriter(w, page.Body); err != nil {
		return err
	}

	for _, script := range page.Scripts {
		if err := renderScriptTag(w, script); err != nil {
			return err
		}
	}

	_, err := io.WriteString(w, "\n</body>\n</html>\n")
	return err
}

func (r *Renderer) renderHead(w io.Writer, page PageData) error {
	if _, err := io.WriteString(w, "<head>\n"); err != nil {
		return err
	}
	if _, err := io.WriteString(w, `  <meta charset="utf-8">`+"\n"); err != nil {
		return err
	}
	if _, err := io.WriteString(w, `  <meta name="viewport" content="width=device-width, initial-scale=1">`+"\n"); err != nil {
		return err
	}

	if page.Title != "" {
		if _, err := fmt.Fprintf(w, "  <title>%s</title>\n", escapeHTML(page.Title)); err != nil {
			return err
		}
	}

	for _, href := range page.StyleSheets {
		if _, err := fmt.Fprintf(w, `  <link rel="stylesheet" href="%s">`+"\n", escapeAttr(href)); err != nil {
			return err
		}
	}

	for _, style := range page.Styles {
		if _, err := fmt.Fprintf(w, "  <style>%s</style>\n", style); err != nil {
			return err
		}
	}

	_, err := io.WriteString(w, "</head>\n")
	return err
}

func renderScriptTag(w io.Writer, script ScriptTag) error {
	if script.Src == "" {
		return nil
	}
	deferAttr := ""
	if script.Defer {
		deferAttr = " defer"
	}
	_, err := fmt.Fprintf(w, `<script src="%s"%s></script>`+"\n", escapeAttr(script.Src), deferAttr)
	return err
}

package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/vango-dev/tumorscope/pkg/vdom"
)

func renderString(t *testing.T, node *vdom.VNode) string {
	t.Helper()
	r := NewRenderer(RendererConfig{})
	out, err := r.RenderToString(node)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	return out
}

func TestRenderElement(t *testing.T) {
	tests := []struct {
		name string
		node *vdom.VNode
		want string
	}{
		{
			name: "empty div",
			node: vdom.Div(),
			want: "<div></div>",
		},
		{
			name: "sorted attributes",
			node: vdom.Div(vdom.ID("uploadZone"), vdom.Class("upload-zone")),
			want: `<div class="upload-zone" id="uploadZone"></div>`,
		},
		{
			name: "void element",
			node: vdom.Img(vdom.Src("/x.png"), vdom.Alt("Preview")),
			want: `<img alt="Preview" src="/x.png">`,
		},
		{
			name: "boolean attributes",
			node: vdom.Button(vdom.Type("submit"), vdom.Disabled()),
			want: `<button disabled type="submit"></button>`,
		},
		{
			name: "fragment",
			node: vdom.Fragment(vdom.Span("a"), vdom.Span("b")),
			want: "<span>a</span><span>b</span>",
		},
		{
			name: "nested",
			node: vdom.Div(vdom.H5(vdom.Text("VGG16")), vdom.P("92.8%")),
			want: "<div><h5>VGG16</h5><p>92.8%</p></div>",
		},
		{
			name: "numeric attribute",
			node: vdom.Div(vdom.TabIndex(-1)),
			want: `<div tabindex="-1"></div>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := renderString(t, tt.node); got != tt.want {
				t.Errorf("got  %s\nwant %s", got, tt.want)
			}
		})
	}
}

func TestRenderEscapesUntrustedText(t *testing.T) {
	label := `<img src=x onerror="alert(1)">`
	out := renderString(t, vdom.Div(vdom.Class("prediction-value"), vdom.Text(label)))

	if strings.Contains(out, "<img") {
		t.Fatalf("label was not escaped: %s", out)
	}
	want := `<div class="prediction-value">&lt;img src=x onerror=&quot;alert(1)&quot;&gt;</div>`
	if out != want {
		t.Errorf("got  %s\nwant %s", out, want)
	}
}

func TestRenderEscapesAttributes(t *testing.T) {
	out := renderString(t, vdom.Div(vdom.Data("name", `a" onclick="x`)))
	if strings.Contains(out, `" onclick="`) {
		t.Fatalf("attribute breakout: %s", out)
	}
}

func TestRenderDropsInlineHandlersAndScriptURLs(t *testing.T) {
	node := vdom.El("a",
		vdom.Attr{Key: "onclick", Value: "steal()"},
		vdom.Href("javascript:alert(1)"),
		vdom.Text("x"),
	)
	out := renderString(t, node)
	if out != "<a>x</a>" {
		t.Errorf("got %s", out)
	}

	img := renderString(t, vdom.Img(vdom.Src("data:text/html;base64,PHNjcmlwdD4=")))
	if strings.Contains(img, "src=") {
		t.Errorf("non-image data URL should be dropped: %s", img)
	}

	preview := renderString(t, vdom.Img(vdom.Src("data:image/png;base64,iVBORw0KGgo=")))
	if !strings.Contains(preview, `src="data:image/png;base64,iVBORw0KGgo="`) {
		t.Errorf("image data URL should be kept: %s", preview)
	}
}

func TestRenderRejectsInvalidNames(t *testing.T) {
	r := NewRenderer(RendererConfig{})
	if _, err := r.RenderToString(vdom.El("div onload=x")); err == nil {
		t.Error("expected error for invalid tag")
	}
	if _, err := r.RenderToString(vdom.Div(vdom.Attr{Key: `x"y`, Value: "1"})); err == nil {
		t.Error("expected error for invalid attribute name")
	}
}

func TestRenderPretty(t *testing.T) {
	r := NewRenderer(RendererConfig{Pretty: true})
	out, err := r.RenderToString(vdom.Div(vdom.Div(vdom.Span("x"))))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "\n  <div>") {
		t.Errorf("expected indentation:\n%s", out)
	}
}

func TestRenderPage(t *testing.T) {
	r := NewRenderer(RendererConfig{})
	var buf bytes.Buffer
	err := r.RenderPage(&buf, PageData{
		Title:       "Brain <Tumor> Classification",
		StyleSheets: []string{"https://cdn.example.com/bootstrap.min.css"},
		Styles:      []string{".upload-zone{cursor:pointer}"},
		Scripts:     []ScriptTag{{Src: "/_app/client.js", Defer: true}},
		SessionID:   "abc",
		Body:        vdom.Main(vdom.ID("app")),
	})
	if err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	for _, want := range []string{
		"<!DOCTYPE html>",
		`<html lang="en">`,
		"<title>Brain &lt;Tumor&gt; Classification</title>",
		`<link rel="stylesheet" href="https://cdn.example.com/bootstrap.min.css">`,
		"<style>.upload-zone{cursor:pointer}</style>",
		`<body data-session="abc">`,
		`<main id="app"></main>`,
		`<script src="/_app/client.js" defer></script>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("page missing %q\n%s", want, out)
		}
	}
}

func TestEscapeHTML(t *testing.T) {
	tests := map[string]string{
		"plain":       "plain",
		"a & b":       "a &amp; b",
		"<b>":         "&lt;b&gt;",
		`"q" 'q'`:     "&quot;q&quot; &#39;q&#39;",
		"No Tumor":    "No Tumor",
		"Menin\ngioma": "Menin\ngioma",
	}
	for in, want := range tests {
		if got := escapeHTML(in); got != want {
			t.Errorf("escapeHTML(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEscapeAttr(t *testing.T) {
	if got := escapeAttr("a\nb\tc`"); got != "a&#10;b&#9;c&#96;" {
		t.Errorf("escapeAttr = %q", got)
	}
}

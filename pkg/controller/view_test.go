package controller_test

import (
	"context"
	"strings"
	"testing"

	"github.com/vango-dev/tumorscope/pkg/controller"
	"github.com/vango-dev/tumorscope/pkg/render"
	"github.com/vango-dev/tumorscope/pkg/vdom"
)

func renderHTML(t *testing.T, node *vdom.VNode) string {
	t.Helper()
	html, err := render.NewRenderer(render.RendererConfig{}).RenderToString(node)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	return html
}

func region(t *testing.T, vm controller.ViewModel, id string) *vdom.VNode {
	t.Helper()
	for _, r := range controller.Regions(vm) {
		if r.ID() == id {
			return r
		}
	}
	t.Fatalf("no region %q", id)
	return nil
}

func TestRegionsHaveStableIDs(t *testing.T) {
	want := []string{"uploadZone", "imagePreview", "submitArea", "loadingModal", "resultsSection", "alertContainer"}
	regions := controller.Regions(controller.ViewModel{})
	if len(regions) != len(want) {
		t.Fatalf("got %d regions, want %d", len(regions), len(want))
	}
	for i, r := range regions {
		if r.ID() != want[i] {
			t.Errorf("region %d id = %q, want %q", i, r.ID(), want[i])
		}
	}

	page := controller.Render(controller.Page{Title: "Brain Tumor Classification"}, controller.ViewModel{})
	for _, id := range append(want, "uploadForm", "imageInput", "resultsContainer") {
		if vdom.Find(page, id) == nil {
			t.Errorf("page is missing #%s", id)
		}
	}
}

func TestRenderModelsAndDemoBadge(t *testing.T) {
	page := controller.Page{
		Title: "Scope",
		Models: []controller.ModelInfo{
			{Name: "VGG16", Icon: "fa-layer-group", Description: "<b>deep</b>", Parameters: "138M", Accuracy: 92.8},
			{Name: "Odd", Icon: "fa-x\" onload=\"x", Parameters: "1M", Accuracy: 50},
		},
	}

	html := renderHTML(t, controller.Render(page, controller.ViewModel{}))
	for _, want := range []string{`id="modelsSection"`, "VGG16", "&lt;b&gt;deep&lt;/b&gt;", "138M", "92.8%", "fa-layer-group", "fa-microscope"} {
		if !strings.Contains(html, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(html, "demoBadge") {
		t.Error("demo badge without demo mode")
	}

	page.DemoMode = true
	page.Models = nil
	html = renderHTML(t, controller.Render(page, controller.ViewModel{}))
	if !strings.Contains(html, `id="demoBadge"`) {
		t.Error("demo badge missing")
	}
	if strings.Contains(html, "modelsSection") {
		t.Error("empty catalog should render no models section")
	}
}

func TestIdleView(t *testing.T) {
	vm := controller.ViewModel{}

	submit := renderHTML(t, region(t, vm, controller.RegionSubmit))
	if !strings.Contains(submit, "disabled") {
		t.Errorf("submit should be disabled without a file: %s", submit)
	}
	preview := region(t, vm, controller.RegionPreview)
	if v, _ := preview.Attr("hidden"); v != true {
		t.Error("preview should be hidden")
	}
	results := region(t, vm, controller.RegionResults)
	if v, _ := results.Attr("hidden"); v != true {
		t.Error("results should be hidden")
	}
	loading := region(t, vm, controller.RegionLoading)
	if loading.HasClass("show") {
		t.Error("loading overlay should be hidden")
	}
}

func TestFileSelectedView(t *testing.T) {
	h := newHarness(t, nil)
	_, _ = h.c.SelectFile(context.Background(), pngInfo, []byte("img"))
	h.c.DragOver()
	vm := h.c.View()

	zone := region(t, vm, controller.RegionUploadZone)
	if !zone.HasClass("file-selected") || !zone.HasClass("drag-over") {
		t.Errorf("zone classes = %v", zone.Classes())
	}
	text := vdom.TextContent(zone)
	if !strings.Contains(text, "File Selected: brain.png") || !strings.Contains(text, "Ready for classification") {
		t.Errorf("zone text = %q", text)
	}

	html := renderHTML(t, region(t, vm, controller.RegionPreview))
	if !strings.Contains(html, `src="data:image/png;base64,`) {
		t.Errorf("preview = %s", html)
	}

	submit := renderHTML(t, region(t, vm, controller.RegionSubmit))
	if strings.Contains(submit, "disabled") {
		t.Errorf("submit should be enabled: %s", submit)
	}
}

func TestLoadingView(t *testing.T) {
	loading := region(t, controller.ViewModel{Loading: true}, controller.RegionLoading)
	if !loading.HasClass("show") {
		t.Error("overlay should show while loading")
	}
}

func TestResultsViewEscapesServerStrings(t *testing.T) {
	h := newHarness(t, nil)
	h.cls.resp = decodeResponse(t, `{
		"success": true,
		"demo_mode": true,
		"predictions": [{
			"model": "<script>alert(1)</script>",
			"icon": "fa-brain\" onclick=\"alert(1)",
			"prediction": "<b>Glioma</b>",
			"confidence": "96.78",
			"processing_time": "<i>154ms</i>",
			"accuracy": 98.13
		}]
	}`)
	ctx := context.Background()
	_, _ = h.c.SelectFile(ctx, pngInfo, []byte("img"))
	_, _ = h.c.Submit(ctx)

	html := renderHTML(t, region(t, h.c.View(), controller.RegionResults))

	for _, bad := range []string{"<script>", "<b>", "<i>154ms", "onclick"} {
		if strings.Contains(html, bad) {
			t.Errorf("rendered results contain %q: %s", bad, html)
		}
	}
	for _, want := range []string{
		"&lt;script&gt;alert(1)&lt;/script&gt;",
		"&lt;b&gt;Glioma&lt;/b&gt;",
		"fa-microscope",
		"badge bg-success",
		"96.78%",
		"98.13%",
		"Demo Mode:",
		"Showing simulated predictions.",
		"col-lg-3 col-md-6",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered results missing %q: %s", want, html)
		}
	}
	if _, hidden := region(t, h.c.View(), controller.RegionResults).Attr("hidden"); hidden {
		t.Error("results should be revealed")
	}
}

func TestDemoBannerOnlyInDemoMode(t *testing.T) {
	vm := controller.ViewModel{Results: &controller.ResultsView{}}
	text := vdom.TextContent(region(t, vm, controller.RegionResults))
	if strings.Contains(text, "Demo Mode") {
		t.Errorf("banner shown outside demo mode: %q", text)
	}
}

func TestToastRegion(t *testing.T) {
	h := newHarness(t, nil)
	_, _ = h.c.Submit(context.Background())

	html := renderHTML(t, region(t, h.c.View(), controller.RegionToasts))
	if !strings.Contains(html, "alert alert-warning alert-dismissible fade show") {
		t.Errorf("toast markup = %s", html)
	}
	if !strings.Contains(html, "Please select an image file first.") {
		t.Errorf("toast text missing: %s", html)
	}
}

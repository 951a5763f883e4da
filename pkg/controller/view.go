package controller

import (
	"github.com/vango-dev/tumorscope/pkg/classify"
	"github.com/vango-dev/tumorscope/pkg/toast"
	. "github.com/vango-dev/tumorscope/pkg/vdom"
	"github.com/vango-dev/tumorscope/pkg/upload"
)

// Region IDs. Each is patched independently when it changes.
const (
	RegionUploadZone = "uploadZone"
	RegionPreview    = "imagePreview"
	RegionSubmit     = "submitArea"
	RegionLoading    = "loadingModal"
	RegionResults    = "resultsSection"
	RegionToasts     = toast.ContainerID
)

// DemoBanner is shown above demo-mode results.
const DemoBanner = "Showing simulated predictions."

// ViewModel is everything the page shows, detached from the controller.
type ViewModel struct {
	DragOver  bool
	File      *FileView
	CanSubmit bool
	Loading   bool
	Results   *ResultsView
	Toasts    []toast.Toast
}

// FileView is the selected file as shown in the drop zone and preview.
type FileView struct {
	Name       string
	PreviewURL string
}

// ResultsView is the rendered classification response.
type ResultsView struct {
	DemoMode bool
	Cards    []CardView
}

// CardView is one model's result card.
type CardView struct {
	Model          string
	Icon           string
	Label          string
	Confidence     string
	Tier           classify.Tier
	ProcessingTime string
	Accuracy       string
}

// Page is the static frame around the regions.
type Page struct {
	Title string

	// Models are described under the upload form.
	Models []ModelInfo

	// DemoMode marks the page when the models could not be loaded.
	DemoMode bool
}

// ModelInfo describes one model in the catalog.
type ModelInfo struct {
	Name        string
	Icon        string
	Description string
	Parameters  string
	Accuracy    float64
}

// View snapshots the controller state.
func (c *Controller) View() ViewModel {
	vm := ViewModel{
		DragOver: c.dragOver,
		Loading:  c.loading,
		Toasts:   c.toasts.Items(),
	}
	if c.file != nil {
		vm.File = &FileView{Name: c.file.Name, PreviewURL: c.file.DataURL}
		vm.CanSubmit = true
	}
	if c.results != nil {
		vm.Results = resultsView(c.results)
	}
	return vm
}

func resultsView(resp *classify.Response) *ResultsView {
	rv := &ResultsView{DemoMode: resp.DemoMode}
	for _, p := range resp.Predictions {
		rv.Cards = append(rv.Cards, CardView{
			Model:          p.Model,
			Icon:           p.IconClass(),
			Label:          p.Label,
			Confidence:     p.Confidence.String() + "%",
			Tier:           p.Tier(),
			ProcessingTime: p.ProcessingTime,
			Accuracy:       p.Accuracy.String() + "%",
		})
	}
	return rv
}

// Render builds the page body.
func Render(page Page, vm ViewModel) *VNode {
	regions := Regions(vm)
	return Div(Class("container", "py-4"),
		Header(Class("text-center", "mb-4"),
			H1(Class("display-6"),
				I(Class("fas", "fa-brain", "me-2"), AriaHidden(true)),
				Text(page.Title),
			),
			P(Class("text-muted"), Text("Upload an MRI scan to compare four deep learning models.")),
			If(page.DemoMode, Span(ID("demoBadge"), Class("badge", "bg-warning", "text-dark"),
				I(Class("fas", "fa-flask", "me-1"), AriaHidden(true)),
				Text("Demo mode: models not loaded"),
			)),
		),
		Form(ID("uploadForm"), Data("action", "submit"), Enctype("multipart/form-data"), Novalidate(),
			Input(ID("imageInput"), Type("file"), Name("image"), Accept(upload.AcceptAttr),
				Class("d-none"), Data("action", "file"),
			),
			regions[0],
			regions[1],
			regions[2],
		),
		regions[3],
		regions[4],
		modelsSection(page.Models),
		regions[5],
	)
}

func modelsSection(models []ModelInfo) *VNode {
	if len(models) == 0 {
		return nil
	}
	return Section(ID("modelsSection"), Class("models-section", "mt-5"),
		H2(Class("h4", "mb-4", "text-center"), Text("Models")),
		Div(Class("row", "g-4"),
			Range(models, func(_ int, m ModelInfo) *VNode {
				icon := classify.Prediction{Icon: m.Icon}.IconClass()
				return Div(Class("col-lg-3", "col-md-6"),
					Div(Class("model-card"),
						Div(Class("model-icon"), I(Class("fas", icon), AriaHidden(true))),
						H5(Class("model-name"), Text(m.Name)),
						P(Class("model-description", "text-muted"), Text(m.Description)),
						Div(Class("model-stats"),
							stat("Accuracy:", classify.Float(m.Accuracy).String()+"%"),
							stat("Parameters:", m.Parameters),
						),
					),
				)
			}),
		),
	)
}

// Regions returns the independently patchable parts of the page, in
// document order.
func Regions(vm ViewModel) []*VNode {
	return []*VNode{
		uploadZone(vm),
		preview(vm.File),
		submitArea(vm.CanSubmit),
		loadingModal(vm.Loading),
		results(vm.Results),
		toast.View(vm.Toasts),
	}
}

func uploadZone(vm ViewModel) *VNode {
	var content *VNode
	if vm.File != nil {
		content = Div(Class("upload-content"),
			I(Class("fas", "fa-check-circle", "text-success"), AriaHidden(true)),
			H5(Class("text-success"), Textf("File Selected: %s", vm.File.Name)),
			P(Class("text-muted"), Text("Ready for classification")),
		)
	} else {
		content = Div(Class("upload-content"),
			I(Class("fas", "fa-cloud-upload-alt"), AriaHidden(true)),
			H5(Text("Drag & drop an MRI image here")),
			P(Class("text-muted"), Text("or click to browse (JPEG, PNG, DICOM, up to 16MB)")),
		)
	}
	return Div(ID(RegionUploadZone),
		Class("upload-zone"),
		ClassIf(vm.DragOver, "drag-over"),
		ClassIf(vm.File != nil, "file-selected"),
		Role("button"), TabIndex(0),
		Data("action", "pick"),
		content,
	)
}

func preview(f *FileView) *VNode {
	if f == nil {
		return Div(ID(RegionPreview), Class("image-preview"), Hidden())
	}
	return Div(ID(RegionPreview), Class("image-preview", "text-center", "mt-3"),
		Img(ID("previewImg"), Class("img-fluid", "rounded"), Src(f.PreviewURL), Alt(f.Name)),
	)
}

func submitArea(enabled bool) *VNode {
	return Div(ID(RegionSubmit), Class("text-center", "mt-3"),
		Button(Type("submit"), Class("btn", "btn-primary", "btn-lg", "classify-btn"),
			DisabledIf(!enabled),
			I(Class("fas", "fa-search", "me-2"), AriaHidden(true)),
			Text("Classify Image"),
		),
	)
}

func loadingModal(loading bool) *VNode {
	return Div(ID(RegionLoading),
		Class("modal", "fade"),
		ClassIf(loading, "show"),
		ClassIf(loading, "d-block"),
		TabIndex(-1),
		AriaHidden(!loading),
		AriaBusy(loading),
		Div(Class("modal-dialog", "modal-dialog-centered"),
			Div(Class("modal-content", "text-center", "p-4"),
				Div(Class("spinner-border", "text-primary"), Role("status")),
				P(Class("mt-3", "mb-0"), Text("Analyzing image with all models...")),
			),
		),
	)
}

func results(rv *ResultsView) *VNode {
	if rv == nil {
		return Section(ID(RegionResults), Class("results-section", "mt-5"), Hidden(),
			Div(ID("resultsContainer"), Class("row", "g-4")),
		)
	}

	children := make([]any, 0, len(rv.Cards)+2)
	children = append(children, ID("resultsContainer"), Class("row", "g-4"))
	if rv.DemoMode {
		children = append(children, Div(Class("col-12"),
			Div(Class("alert", "alert-info"),
				I(Class("fas", "fa-info-circle", "me-2"), AriaHidden(true)),
				Strong(Text("Demo Mode:")),
				Text(" "+DemoBanner),
			),
		))
	}
	for _, card := range rv.Cards {
		children = append(children, resultCard(card))
	}

	return Section(ID(RegionResults), Class("results-section", "mt-5"),
		H2(Class("h4", "mb-4", "text-center"), Text("Classification Results")),
		Div(children...),
	)
}

func resultCard(c CardView) *VNode {
	return Div(Class("col-lg-3", "col-md-6"),
		Div(Class("result-card"),
			Div(Class("result-header"),
				Div(Class("model-icon"), I(Class("fas", c.Icon), AriaHidden(true))),
				H5(Class("model-name"), Text(c.Model)),
			),
			Div(Class("result-body"),
				Div(Class("prediction-result"),
					H6(Text("Prediction:")),
					Div(Class("prediction-value"), Text(c.Label)),
				),
				Div(Class("confidence-score", "text-center"),
					Div(Class("confidence-label"), Text("Confidence")),
					Div(Class("confidence-value", "badge", "bg-"+string(c.Tier)), Text(c.Confidence)),
				),
				Div(Class("model-stats"),
					stat("Processing Time:", c.ProcessingTime),
					stat("Model Accuracy:", c.Accuracy),
				),
			),
		),
	)
}

func stat(label, value string) *VNode {
	return Div(Class("stat"),
		Span(Class("stat-label"), Text(label)),
		Span(Class("stat-value"), Text(value)),
	)
}

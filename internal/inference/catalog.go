package inference

// ModelSpec describes one classifier in the catalog.
type ModelSpec struct {
	Name        string  `json:"name"`
	Filename    string  `json:"filename"`
	Description string  `json:"description"`
	Accuracy    float64 `json:"accuracy"`
	Parameters  string  `json:"parameters"`
	Icon        string  `json:"icon"`
}

// Catalog is the ordered set of models. Predictions are returned in this
// order.
var Catalog = []ModelSpec{
	{
		Name:        "IDTNet",
		Filename:    "idtnet_model.onnx",
		Description: "Inception-Dense-Transition hybrid model",
		Accuracy:    98.13,
		Parameters:  "54M",
		Icon:        "fa-brain",
	},
	{
		Name:        "VGG16",
		Filename:    "myvgg_model.onnx",
		Description: "Visual Geometry Group 16-layer model",
		Accuracy:    92.80,
		Parameters:  "138M",
		Icon:        "fa-layer-group",
	},
	{
		Name:        "DenseNet121",
		Filename:    "mydensenet_model.onnx",
		Description: "Densely connected convolutional networks",
		Accuracy:    96.10,
		Parameters:  "28M",
		Icon:        "fa-project-diagram",
	},
	{
		Name:        "InceptionV1",
		Filename:    "myGoogLeNet_model.onnx",
		Description: "Google's Inception architecture",
		Accuracy:    94.20,
		Parameters:  "23M",
		Icon:        "fa-sitemap",
	},
}

// ClassLabels are the model output classes, by index.
var ClassLabels = []string{"Glioma", "Meningioma", "No Tumor", "Pituitary"}

// ImageSize is the model input width and height.
const ImageSize = 128

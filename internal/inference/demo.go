package inference

import (
	"fmt"

	"github.com/vango-dev/tumorscope/pkg/classify"
)

// demoResults are the fixed verdicts shown in demo mode.
var demoResults = map[string]struct {
	label      string
	confidence float64
}{
	"IDTNet":      {"Glioma", 96.78},
	"VGG16":       {"Glioma", 85.22},
	"DenseNet121": {"No Tumor", 82.29},
	"InceptionV1": {"Glioma", 92.94},
}

// Demo processing times are drawn from [demoMinMS, demoMaxMS].
const (
	demoMinMS = 154
	demoMaxMS = 441
)

// DemoPredictions returns simulated predictions for every catalog entry.
// intn(n) must return a value in [0, n). Models without a fixed demo result
// report the first class label at 50%.
func DemoPredictions(catalog []ModelSpec, intn func(n int) int) []classify.Prediction {
	preds := make([]classify.Prediction, 0, len(catalog))
	for _, spec := range catalog {
		res, ok := demoResults[spec.Name]
		if !ok {
			res.label, res.confidence = ClassLabels[0], 50
		}
		ms := demoMinMS + intn(demoMaxMS-demoMinMS+1)
		preds = append(preds, prediction(spec, res.label, res.confidence, ms))
	}
	return preds
}

func prediction(spec ModelSpec, label string, confidence float64, ms int) classify.Prediction {
	return classify.Prediction{
		Model:          spec.Name,
		Icon:           spec.Icon,
		Label:          label,
		Confidence:     classify.Percent(confidence),
		ProcessingTime: fmt.Sprintf("%dms", ms),
		Accuracy:       classify.Float(spec.Accuracy),
	}
}

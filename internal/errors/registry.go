package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Validation Errors (V001-V099)
	// ============================================

	"V001": {
		Category: CategoryValidation,
		Message:  "Please select a valid image file (JPEG, PNG) or DICOM file.",
		Detail:   "Accepted types are image/jpeg, image/jpg, image/png and application/dicom, or any file whose name ends in .dcm.",
	},
	"V002": {
		Category: CategoryValidation,
		Message:  "File size too large. Please select a file smaller than 16MB.",
		Detail:   "Files larger than 16 MiB (16777216 bytes) are rejected before upload.",
	},
	"V003": {
		Category: CategoryValidation,
		Message:  "Please select an image file first.",
		Detail:   "A submission was requested while no file was selected.",
	},
	"V004": {
		Category: CategoryValidation,
		Message:  "Could not read the selected file.",
		Detail:   "The selected file's content could not be loaded for preview.",
	},

	// ============================================
	// Application Errors (A001-A099)
	// ============================================

	"A001": {
		Category: CategoryApplication,
		Message:  "Classification failed. Please try again.",
		Detail:   "The classifier answered with success=false.",
	},

	// ============================================
	// Transport Errors (T001-T099)
	// ============================================

	"T001": {
		Category: CategoryTransport,
		Message:  "Network error. Please check your connection and try again.",
		Detail:   "The classification request failed or its response was not valid JSON.",
	},

	// ============================================
	// Config Errors (C001-C099)
	// ============================================

	"C001": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
		Detail:   "The configuration file or environment contains an invalid value.",
	},
	"C002": {
		Category: CategoryConfig,
		Message:  "Configuration file could not be read",
		Detail:   "tumorscope.json exists but could not be read or parsed.",
	},

	// ============================================
	// Inference Errors (I001-I099)
	// ============================================

	"I001": {
		Category: CategoryInference,
		Message:  "Model loading failed",
		Detail:   "One or more models could not be loaded; the server falls back to demo mode.",
	},
	"I002": {
		Category: CategoryInference,
		Message:  "Image preprocessing failed",
		Detail:   "The uploaded file could not be decoded as an image.",
	},
	"I003": {
		Category: CategoryInference,
		Message:  "Inference failed",
		Detail:   "The model session returned an error while running.",
	},

	// ============================================
	// Storage Errors (S001-S099)
	// ============================================

	"S001": {
		Category: CategoryStorage,
		Message:  "Upload could not be stored",
		Detail:   "The upload store rejected the file.",
	},
}

// GetAllCodes returns all registered error codes, sorted.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds or replaces an error template.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}

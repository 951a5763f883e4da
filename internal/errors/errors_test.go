package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name         string
		code         string
		wantCategory Category
		wantMessage  string
	}{
		{
			name:         "invalid type",
			code:         "V001",
			wantCategory: CategoryValidation,
			wantMessage:  "Please select a valid image file (JPEG, PNG) or DICOM file.",
		},
		{
			name:         "too large",
			code:         "V002",
			wantCategory: CategoryValidation,
			wantMessage:  "File size too large. Please select a file smaller than 16MB.",
		},
		{
			name:         "classification failed",
			code:         "A001",
			wantCategory: CategoryApplication,
			wantMessage:  "Classification failed. Please try again.",
		},
		{
			name:         "network",
			code:         "T001",
			wantCategory: CategoryTransport,
			wantMessage:  "Network error. Please check your connection and try again.",
		},
		{
			name:         "unknown code",
			code:         "X999",
			wantCategory: "",
			wantMessage:  "Unknown error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
			if err.Category != tt.wantCategory {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCategory)
			}
			if err.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMessage)
			}
		})
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CategoryInference, "model %s missing", "VGG16")
	if err.Message != "model VGG16 missing" {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Category != CategoryInference {
		t.Errorf("Category = %q", err.Category)
	}
}

func TestError_Error(t *testing.T) {
	err := New("T001")
	if got := err.Error(); got != "T001: Network error. Please check your connection and try again." {
		t.Errorf("Error() = %q", got)
	}

	err = New("S001").Wrap(fmt.Errorf("disk full"))
	if got := err.Error(); !strings.HasSuffix(got, ": disk full") {
		t.Errorf("Error() = %q, want wrapped cause suffix", got)
	}
}

func TestError_Wrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := New("T001").Wrap(cause)

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if err.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}
}

func TestError_IsByCode(t *testing.T) {
	err := fmt.Errorf("submit: %w", New("V003"))
	if !stderrors.Is(err, New("V003")) {
		t.Error("errors.Is should match by code")
	}
	if stderrors.Is(err, New("V001")) {
		t.Error("errors.Is should not match a different code")
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, "T001") != nil {
		t.Error("FromError(nil) should be nil")
	}

	original := New("V001")
	wrapped := fmt.Errorf("select: %w", original)
	if got := FromError(wrapped, "T001"); got != original {
		t.Error("FromError should return the *Error already in the chain")
	}

	plain := fmt.Errorf("boom")
	got := FromError(plain, "T001")
	if got.Code != "T001" || got.Wrapped != plain {
		t.Errorf("FromError(plain) = %+v", got)
	}
}

func TestCategoryHelpers(t *testing.T) {
	err := fmt.Errorf("classify: %w", New("T001").Wrap(fmt.Errorf("eof")))

	if !IsCategory(err, CategoryTransport) {
		t.Error("expected transport category")
	}
	if IsCategory(err, CategoryApplication) {
		t.Error("did not expect application category")
	}
	if _, ok := CategoryOf(fmt.Errorf("plain")); ok {
		t.Error("plain errors have no category")
	}

	if got := UserMessage(err, "fallback"); got != "Network error. Please check your connection and try again." {
		t.Errorf("UserMessage = %q", got)
	}
	if got := UserMessage(fmt.Errorf("plain"), "fallback"); got != "fallback" {
		t.Errorf("UserMessage = %q", got)
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	err := New("V002").WithSuggestion("Compress the scan or export a single slice.")
	out := err.Format()

	if !strings.Contains(out, "WARNING V002:") {
		t.Errorf("validation errors should render as warnings:\n%s", out)
	}
	if !strings.Contains(out, "Hint: Compress the scan") {
		t.Errorf("missing suggestion:\n%s", out)
	}

	out = New("T001").Wrap(fmt.Errorf("dial tcp: refused")).Format()
	if !strings.Contains(out, "ERROR T001:") || !strings.Contains(out, "Cause: dial tcp: refused") {
		t.Errorf("unexpected format:\n%s", out)
	}
}

func TestFormatCompact(t *testing.T) {
	err := New("A001").Wrap(fmt.Errorf("model offline"))
	want := "A001: Classification failed. Please try again. (model offline)"
	if got := err.FormatCompact(); got != want {
		t.Errorf("FormatCompact() = %q, want %q", got, want)
	}
}

func TestGetAllCodes(t *testing.T) {
	codes := GetAllCodes()
	if len(codes) == 0 {
		t.Fatal("no codes registered")
	}
	for i := 1; i < len(codes); i++ {
		if codes[i-1] > codes[i] {
			t.Fatalf("codes not sorted: %v", codes)
		}
	}
}

func TestGetTemplate(t *testing.T) {
	tmpl, ok := GetTemplate("V003")
	if !ok {
		t.Fatal("V003 should be registered")
	}
	if tmpl.Message != "Please select an image file first." {
		t.Errorf("Message = %q", tmpl.Message)
	}
	if _, ok := GetTemplate("Z000"); ok {
		t.Error("Z000 should not be registered")
	}
}

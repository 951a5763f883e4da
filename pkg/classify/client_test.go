package classify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vango-dev/tumorscope/internal/errors"
)

func TestClientSendsMultipartImage(t *testing.T) {
	var (
		gotName string
		gotType string
		gotBody string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/classify" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		gotName = header.Filename
		gotType = header.Header.Get("Content-Type")
		gotBody = string(data)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success":true,"predictions":[{"model":"IDTNet","confidence":"96.78"}]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	resp, err := c.Classify(context.Background(), File{
		Name:        "scan.dcm",
		ContentType: "application/dicom",
		Content:     []byte("DICM"),
	})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if gotName != "scan.dcm" || gotType != "application/dicom" || gotBody != "DICM" {
		t.Errorf("server saw name=%q type=%q body=%q", gotName, gotType, gotBody)
	}
	if !resp.Success || len(resp.Predictions) != 1 || resp.Predictions[0].Confidence.Value != 96.78 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestClientIgnoresStatusCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"success":false,"error":"Model unavailable"}`)
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL).Classify(context.Background(), File{Name: "a.png"})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if resp.Success || resp.Error != "Model unavailable" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestClientNonJSONIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>502 Bad Gateway</html>")
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Classify(context.Background(), File{Name: "a.png"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.IsCategory(err, errors.CategoryTransport) {
		t.Errorf("expected transport error, got %v", err)
	}
}

func TestClientConnectionFailureIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).Classify(context.Background(), File{Name: "a.png"})
	if !errors.IsCategory(err, errors.CategoryTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if msg := errors.UserMessage(err, ""); msg != "Network error. Please check your connection and try again." {
		t.Errorf("UserMessage = %q", msg)
	}
}

func TestEncodeMultipartEscapesFilename(t *testing.T) {
	buf, ct, err := encodeMultipart(File{Name: `a"b.png`, Content: []byte("x")})
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/classify", buf)
	req.Header.Set("Content-Type", ct)
	_, header, err := req.FormFile("image")
	if err != nil {
		t.Fatal(err)
	}
	if header.Filename != `a"b.png` {
		t.Errorf("Filename = %q", header.Filename)
	}
	if got := header.Header.Get("Content-Type"); got != "application/octet-stream" {
		t.Errorf("default content type = %q", got)
	}
}

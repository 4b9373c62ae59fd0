package apiclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestUploadFile_MultipartBody(t *testing.T) {
	fileBytes := []byte{0x89, 0x50, 0x4e, 0x47, 0x00, 0x01, 0x02} // binary, not valid UTF-8

	var gotFile []byte
	var gotFileName, gotUserID, gotNote string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data; boundary=") {
			t.Errorf("Content-Type = %q, want multipart/form-data with boundary", r.Header.Get("Content-Type"))
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		f, fh, err := r.FormFile(FileFieldName)
		if err != nil {
			t.Fatalf("FormFile(%q): %v", FileFieldName, err)
		}
		defer func() { _ = f.Close() }()
		gotFile, _ = io.ReadAll(f)
		gotFileName = fh.Filename
		gotUserID = r.FormValue("userId")
		gotNote = r.FormValue("note")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"uploaded": true}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0)
	env := UploadFile[map[string]bool](context.Background(), c, "/api/uploads", Upload{
		FileName: "receipt.png",
		Content:  fileBytes,
		Fields:   map[string]any{"userId": 7, "note": "booking receipt"},
	})
	checkInvariant(t, env)

	if !env.Success {
		t.Fatalf("Success = false, error = %q", env.Error)
	}
	if !env.Data["uploaded"] {
		t.Errorf("Data = %v, want server-echoed payload", env.Data)
	}
	if !bytes.Equal(gotFile, fileBytes) {
		t.Errorf("file bytes = %v, want unmodified %v", gotFile, fileBytes)
	}
	if gotFileName != "receipt.png" {
		t.Errorf("filename = %q, want %q", gotFileName, "receipt.png")
	}
	if gotUserID != "7" {
		t.Errorf("userId = %q, want coerced string %q", gotUserID, "7")
	}
	if gotNote != "booking receipt" {
		t.Errorf("note = %q, want %q", gotNote, "booking receipt")
	}
}

func TestUploadFile_ReservedFieldCollision(t *testing.T) {
	c := newTestClient(t, "http://backend:8000", 0)

	env := UploadFile[struct{}](context.Background(), c, "/api/uploads", Upload{
		FileName: "a.txt",
		Content:  []byte("hello"),
		Fields:   map[string]any{FileFieldName: "collides"},
	})
	checkInvariant(t, env)

	if env.Kind != FailureRequest {
		t.Errorf("Kind = %q, want %q", env.Kind, FailureRequest)
	}
	if !strings.Contains(env.Error, "reserved") {
		t.Errorf("Error = %q, want mention of the reserved field", env.Error)
	}
}

func TestUpload_CustomContentType(t *testing.T) {
	var gotPartType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		_, fh, err := r.FormFile(FileFieldName)
		if err != nil {
			t.Fatalf("FormFile: %v", err)
		}
		gotPartType = fh.Header.Get("Content-Type")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0)
	env := UploadFile[struct{}](context.Background(), c, "/api/uploads", Upload{
		FileName:    "avatar.png",
		ContentType: "image/png",
		Content:     []byte("png-bytes"),
	})
	checkInvariant(t, env)

	if !env.Success {
		t.Fatalf("Success = false, error = %q", env.Error)
	}
	if gotPartType != "image/png" {
		t.Errorf("file part Content-Type = %q, want %q", gotPartType, "image/png")
	}
}

func TestUpload_StreamingReader(t *testing.T) {
	var gotFile []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		f, _, err := r.FormFile(FileFieldName)
		if err != nil {
			t.Fatalf("FormFile: %v", err)
		}
		defer func() { _ = f.Close() }()
		gotFile, _ = io.ReadAll(f)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0)
	env := UploadFile[struct{}](context.Background(), c, "/api/uploads", Upload{
		FileName: "big.bin",
		Reader:   strings.NewReader("streamed content"),
	})
	checkInvariant(t, env)

	if !env.Success {
		t.Fatalf("Success = false, error = %q", env.Error)
	}
	if string(gotFile) != "streamed content" {
		t.Errorf("file = %q, want %q", gotFile, "streamed content")
	}
}

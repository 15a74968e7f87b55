package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func echoHandler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"echo":"` + string(body) + `"}`))
}

func TestGzipMiddleware(t *testing.T) {
	tests := []struct {
		name            string
		requestBody     string
		acceptEncoding  string
		contentEncoding string
		wantEncoding    string
	}{
		{
			name:           "client accepts gzip",
			requestBody:    "hello",
			acceptEncoding: "gzip",
			wantEncoding:   "gzip",
		},
		{
			name:        "client does not accept gzip",
			requestBody: "plain",
		},
		{
			name:            "compressed request body",
			requestBody:     "compressed",
			acceptEncoding:  "gzip",
			contentEncoding: "gzip",
			wantEncoding:    "gzip",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requestBody io.Reader = strings.NewReader(tt.requestBody)
			if tt.contentEncoding == "gzip" {
				var buf bytes.Buffer
				gz := gzip.NewWriter(&buf)
				if _, err := gz.Write([]byte(tt.requestBody)); err != nil {
					t.Fatalf("write gzip: %v", err)
				}
				if err := gz.Close(); err != nil {
					t.Fatalf("close gzip: %v", err)
				}
				requestBody = &buf
			}

			req := httptest.NewRequest(http.MethodPost, "/echo", requestBody)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			if tt.contentEncoding != "" {
				req.Header.Set("Content-Encoding", tt.contentEncoding)
			}

			w := httptest.NewRecorder()
			GzipMiddleware(http.HandlerFunc(echoHandler)).ServeHTTP(w, req)

			res := w.Result()
			defer res.Body.Close()

			if res.StatusCode != http.StatusOK {
				t.Fatalf("status: got %d want %d", res.StatusCode, http.StatusOK)
			}
			if ce := res.Header.Get("Content-Encoding"); ce != tt.wantEncoding {
				t.Fatalf("content-encoding: got %q want %q", ce, tt.wantEncoding)
			}

			var body []byte
			var err error
			if res.Header.Get("Content-Encoding") == "gzip" {
				gr, grErr := gzip.NewReader(res.Body)
				if grErr != nil {
					t.Fatalf("new gzip reader: %v", grErr)
				}
				defer gr.Close()
				body, err = io.ReadAll(gr)
			} else {
				body, err = io.ReadAll(res.Body)
			}
			if err != nil {
				t.Fatalf("read body: %v", err)
			}

			want := `{"echo":"` + tt.requestBody + `"}`
			if string(body) != want {
				t.Fatalf("body %q, want %q", string(body), want)
			}
		})
	}
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))), srv
}

func TestURLResolution(t *testing.T) {
	c := New("https://api.example.com///")
	tests := []struct{ in, want string }{
		{"/quick-scan", "https://api.example.com/quick-scan"},
		{"quick-scan", "https://api.example.com/quick-scan"},
		{"https://other.example.com/x", "https://other.example.com/x"},
	}
	for _, tt := range tests {
		if got := c.URL(tt.in); got != tt.want {
			t.Errorf("URL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFetchJSONSendsHeaders(t *testing.T) {
	var gotAuth, gotCT, gotAccept, gotReqID string
	var gotBody map[string]string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotCT = r.Header.Get("Content-Type")
		gotAccept = r.Header.Get("Accept")
		gotReqID = r.Header.Get("X-Request-ID")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"success":true}`))
	})

	resp, err := c.FetchJSON(context.Background(), "POST", "/admin/blogs", map[string]string{"title": "Hello"}, "tok-1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !resp.OK || resp.Status != 200 {
		t.Errorf("ok/status = %v/%d, want true/200", resp.OK, resp.Status)
	}
	if gotAuth != "Bearer tok-1" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer tok-1")
	}
	if gotCT != "application/json" || gotAccept != "application/json" {
		t.Errorf("Content-Type/Accept = %q/%q, want application/json", gotCT, gotAccept)
	}
	if len(gotReqID) != 36 {
		t.Errorf("X-Request-ID = %q, want a uuid", gotReqID)
	}
	if gotBody["title"] != "Hello" {
		t.Errorf("body title = %q, want %q", gotBody["title"], "Hello")
	}
}

func TestFetchJSONNoTokenNoAuthHeader(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Header["Authorization"]; ok {
			t.Error("unexpected Authorization header")
		}
	})
	if _, err := c.FetchJSON(context.Background(), "GET", "/content/faqs", nil, ""); err != nil {
		t.Fatalf("fetch: %v", err)
	}
}

func TestFetchJSONEmptyBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	resp, err := c.FetchJSON(context.Background(), "DELETE", "/admin/faqs/1", nil, "t")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(resp.Data) != "{}" {
		t.Errorf("data = %s, want {}", resp.Data)
	}
	if resp.Kind != KindNone {
		t.Errorf("kind = %v, want none", resp.Kind)
	}
}

func TestFetchJSONHTMLIsNeverForwarded(t *testing.T) {
	pages := []string{
		"<!DOCTYPE html><html><head><title>502 Bad Gateway</title></head><body>nginx</body></html>",
		"  <html><body>Not Found</body></html>",
		"<!doctype html><title>x</title>",
	}
	for _, page := range pages {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusBadGateway)
			io.WriteString(w, page)
		})

		resp, err := c.FetchJSON(context.Background(), "GET", "/admin/blogs", nil, "")
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		if resp.Kind != KindHTML {
			t.Errorf("kind = %v, want html", resp.Kind)
		}
		want := "Unexpected HTML response (status 502). Check API base URL configuration."
		if got := resp.ErrorText(); got != want {
			t.Errorf("error = %q, want %q", got, want)
		}
		if strings.Contains(string(resp.Data), "<") {
			t.Errorf("data forwarded html: %s", resp.Data)
		}
		if KindOf(resp.Err("fallback")) != KindHTML {
			t.Errorf("Err kind = %v, want html", KindOf(resp.Err("fallback")))
		}
	}
}

func TestFetchJSONHTMLWithOKStatusStillFails(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<!DOCTYPE html><html></html>")
	})
	resp, err := c.FetchJSON(context.Background(), "GET", "/content/blogs", nil, "")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !resp.OK {
		t.Error("OK should mirror the 200 status")
	}
	if err := resp.Err("x"); err == nil {
		t.Error("expected an error for an HTML body")
	}
}

func TestFetchJSONInvalidJSON(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "oops {")
	})
	resp, err := c.FetchJSON(context.Background(), "GET", "/x", nil, "")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if resp.Kind != KindInvalidJSON {
		t.Errorf("kind = %v, want invalid_json", resp.Kind)
	}
	if got := resp.ErrorText(); got != MsgInvalidJSON {
		t.Errorf("error = %q, want %q", got, MsgInvalidJSON)
	}
}

func TestFetchJSONTransportError(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	_, err := c.FetchJSON(context.Background(), "GET", "/x", nil, "")
	if err == nil {
		t.Fatal("expected transport error")
	}
	if KindOf(err) != KindTransport {
		t.Errorf("kind = %v, want transport", KindOf(err))
	}
	if got := Message(err, "Try again"); got != "Try again" {
		t.Errorf("Message = %q, want fallback", got)
	}
}

func TestFetchJSONHTTPClientTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c := New(srv.URL, WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))
	_, err := c.FetchJSON(context.Background(), "GET", "/slow", nil, "")
	if KindOf(err) != KindTransport {
		t.Errorf("kind = %v, want transport", KindOf(err))
	}
}

func TestFetchJSONIdempotentShape(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"success":false,"error":"Not found"}`)
	})

	first, err := c.FetchJSON(context.Background(), "GET", "/content/blogs/x", nil, "")
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := c.FetchJSON(context.Background(), "GET", "/content/blogs/x", nil, "")
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.OK != second.OK || first.Status != second.Status || string(first.Data) != string(second.Data) || first.Kind != second.Kind {
		t.Errorf("responses differ: %+v vs %+v", first, second)
	}
}

func TestResponseErr(t *testing.T) {
	tests := []struct {
		name     string
		resp     Response
		wantNil  bool
		wantKind Kind
		wantMsg  string
	}{
		{"ok", Response{OK: true, Status: 200, Data: []byte(`{"success":true}`)}, true, KindNone, ""},
		{"ok without success field", Response{OK: true, Status: 200, Data: []byte(`{"posts":[]}`)}, true, KindNone, ""},
		{"success false", Response{OK: true, Status: 200, Data: []byte(`{"success":false,"error":"Title required"}`)}, false, KindHTTP, "Title required"},
		{"success false no message", Response{OK: true, Status: 200, Data: []byte(`{"success":false}`)}, false, KindHTTP, "Failed"},
		{"http error", Response{OK: false, Status: 500, Data: []byte(`{"error":"boom"}`)}, false, KindHTTP, "boom"},
		{"unverified", Response{OK: false, Status: 403, Data: []byte(`{"error":"Account not verified"}`)}, false, KindUnverified, "Account not verified"},
		{"forbidden", Response{OK: false, Status: 403, Data: []byte(`{"error":"Forbidden"}`)}, false, KindHTTP, "Forbidden"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.resp.Err("Failed")
			if tt.wantNil {
				if err != nil {
					t.Errorf("Err = %v, want nil", err)
				}
				return
			}
			var apiErr *Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("Err = %v, want *Error", err)
			}
			if apiErr.Kind != tt.wantKind {
				t.Errorf("kind = %v, want %v", apiErr.Kind, tt.wantKind)
			}
			if apiErr.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", apiErr.Message, tt.wantMsg)
			}
		})
	}
}

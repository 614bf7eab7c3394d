package scriptapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"pgregory.net/rapid"
)

type recordedRequest struct {
	method string
	uri    string
	form   map[string]string
}

type fakeServer struct {
	mu    sync.Mutex
	reqs  []recordedRequest
	files map[string]string
	fail  int
}

func newFakeServer(t *testing.T, prefix string) (*httptest.Server, *fakeServer) {
	t.Helper()
	fs := &fakeServer{files: map[string]string{}}
	mux := http.NewServeMux()
	mux.HandleFunc(prefix+"/scriptApi/file", func(w http.ResponseWriter, r *http.Request) {
		fs.record(r)
		if fs.fail != 0 {
			http.Error(w, "boom", fs.fail)
			return
		}
		body, ok := fs.files[r.URL.Query().Get("path")]
		if !ok {
			http.Error(w, "no such file", http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, body)
	})
	mux.HandleFunc(prefix+"/scriptApi/updateFile", func(w http.ResponseWriter, r *http.Request) {
		fs.record(r)
		if fs.fail != 0 {
			http.Error(w, "boom", fs.fail)
			return
		}
		fs.files[r.PostFormValue("path")] = r.PostFormValue("content")
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc(prefix+"/scriptApi/scripts", func(w http.ResponseWriter, r *http.Request) {
		fs.record(r)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"data":[{"path":"/srv/a.sh","name":"a.sh","size":3}]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, fs
}

func (f *fakeServer) record(r *http.Request) {
	_ = r.ParseForm()
	form := map[string]string{}
	for k := range r.PostForm {
		form[k] = r.PostForm.Get(k)
	}
	f.mu.Lock()
	f.reqs = append(f.reqs, recordedRequest{method: r.Method, uri: r.URL.RequestURI(), form: form})
	f.mu.Unlock()
}

func TestClient_FileReturnsBodyUnchanged(t *testing.T) {
	t.Parallel()

	srv, fs := newFakeServer(t, "")
	body := "#!/bin/sh\r\necho \"hi\" <tag> &amp;\n\n\t"
	fs.files["/srv/a.sh"] = body

	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	got, err := c.File(context.Background(), "/srv/a.sh")
	if err != nil {
		t.Fatalf("file: %v", err)
	}
	if got != body {
		t.Fatalf("body changed in transit: got %q want %q", got, body)
	}
	if fs.reqs[0].method != http.MethodGet || fs.reqs[0].uri != "/scriptApi/file?path=%2Fsrv%2Fa.sh" {
		t.Fatalf("unexpected request: %+v", fs.reqs[0])
	}
}

func TestClient_UpdateFilePostsForm(t *testing.T) {
	t.Parallel()

	srv, fs := newFakeServer(t, "/ci")
	c, err := NewClient(srv.URL + "/ci")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := c.UpdateFile(context.Background(), "/srv/b.py", "print('x')\n"); err != nil {
		t.Fatalf("update: %v", err)
	}
	r := fs.reqs[0]
	if r.method != http.MethodPost || r.uri != "/ci/scriptApi/updateFile" {
		t.Fatalf("unexpected request: %+v", r)
	}
	if r.form["path"] != "/srv/b.py" || r.form["content"] != "print('x')\n" {
		t.Fatalf("unexpected form: %+v", r.form)
	}
}

func TestClient_NonSuccessIsStatusError(t *testing.T) {
	t.Parallel()

	srv, fs := newFakeServer(t, "")
	c, _ := NewClient(srv.URL)

	_, err := c.File(context.Background(), "/missing")
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	fs.fail = http.StatusInternalServerError
	err = c.UpdateFile(context.Background(), "/x", "y")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %T %v", err, err)
	}
	if se.Code != http.StatusInternalServerError || se.Op != "updateFile" || se.Body != "boom" {
		t.Fatalf("unexpected status error: %+v", se)
	}
}

func TestClient_Scripts(t *testing.T) {
	t.Parallel()

	srv, _ := newFakeServer(t, "")
	c, _ := NewClient(srv.URL + "/")
	got, err := c.Scripts(context.Background())
	if err != nil {
		t.Fatalf("scripts: %v", err)
	}
	if len(got) != 1 || got[0].Name != "a.sh" || got[0].Path != "/srv/a.sh" || got[0].Size != 3 {
		t.Fatalf("unexpected scripts: %+v", got)
	}
}

func TestClient_TransportErrorIsWrapped(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, WithTimeout(20*time.Millisecond))
	_, err := c.File(context.Background(), "/slow")
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if StatusCode(err) != 0 {
		t.Fatalf("transport errors must not look like status errors: %v", err)
	}
	if !strings.Contains(err.Error(), "scriptapi: file") {
		t.Fatalf("expected op prefix, got %v", err)
	}
}

func TestNormalizeBaseURL_Rejects(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "   ", "/relative/only", "::bad"} {
		if _, err := NormalizeBaseURL(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestNormalizeBaseURL_TrailingSlashIsIrrelevant(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		host := rapid.StringMatching(`[a-z]{1,10}(\.[a-z]{2,5})?(:[1-9][0-9]{1,4})?`).Draw(t, "host")
		segs := rapid.SliceOfN(rapid.StringMatching(`[A-Za-z0-9_-]{1,8}`), 0, 4).Draw(t, "segs")
		path := rapid.StringMatching(`/[a-z0-9/._-]{0,20}`).Draw(t, "file")

		base := "http://" + host
		if len(segs) > 0 {
			base += "/" + strings.Join(segs, "/")
		}

		a, err := NewClient(base)
		if err != nil {
			t.Fatalf("new client %q: %v", base, err)
		}
		b, err := NewClient(base + "/")
		if err != nil {
			t.Fatalf("new client %q/: %v", base, err)
		}
		if a.BaseURL() != b.BaseURL() {
			t.Fatalf("base urls differ: %q vs %q", a.BaseURL(), b.BaseURL())
		}
		q := map[string][]string{"path": {path}}
		if ea, eb := a.Endpoint(PathFile, q), b.Endpoint(PathFile, q); ea != eb {
			t.Fatalf("file endpoints differ: %q vs %q", ea, eb)
		}
		if ea, eb := a.Endpoint(PathUpdateFile, nil), b.Endpoint(PathUpdateFile, nil); ea != eb {
			t.Fatalf("update endpoints differ: %q vs %q", ea, eb)
		}
		if !strings.HasSuffix(a.BaseURL(), "/") {
			t.Fatalf("expected trailing slash: %q", a.BaseURL())
		}
	})
}

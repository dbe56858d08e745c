package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/collage/pkg/cache"
	"github.com/matzehuels/collage/pkg/config"
	"github.com/matzehuels/collage/pkg/errors"
	"github.com/matzehuels/collage/pkg/layout"
	"github.com/matzehuels/collage/pkg/pipeline"
	"github.com/matzehuels/collage/pkg/session"
	"github.com/matzehuels/collage/pkg/share"
)

const iPhoneUA = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Defaults()
	cfg.Layout = layout.Params{BaseUnit: 40, Spacing: 5, OuterBorder: 5, Asymmetry: 0.18}
	cfg.Ingest = config.Ingest{MaxFileBytes: 1 << 20}
	cfg.Server.CleanupDelay = 0

	logger := log.New(io.Discard)
	srv := New(Options{
		Config:   cfg,
		Runner:   pipeline.NewRunner(cfg, nil, nil, logger),
		Sessions: session.NewMemoryStore(0),
		Shares:   share.NewStore(cache.NewMemoryCache(), share.Options{BaseURL: "http://collage.test"}),
		Logger:   logger,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type part struct {
	name, mediaType string
	data            []byte
}

func multipartBody(t *testing.T, field string, parts ...part) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, p.name))
		h.Set("Content-Type", p.mediaType)
		w, err := mw.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		w.Write(p.data)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func do(t *testing.T, method, url, contentType string, body io.Reader, ua string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatal(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func createSession(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp := do(t, http.MethodPost, ts.URL+"/api/v1/sessions", "", nil, "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session status = %d", resp.StatusCode)
	}
	return decode[sessionView](t, resp).ID
}

func upload(t *testing.T, ts *httptest.Server, id string, parts ...part) uploadView {
	t.Helper()
	body, ct := multipartBody(t, "files", parts...)
	resp := do(t, http.MethodPost, ts.URL+"/api/v1/sessions/"+id+"/slots?wait=true", ct, body, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload status = %d", resp.StatusCode)
	}
	return decode[uploadView](t, resp)
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts)
	base := ts.URL + "/api/v1/sessions/" + id

	v := decode[sessionView](t, do(t, http.MethodGet, base, "", nil, ""))
	if len(v.Slots) != 8 || v.Layout != layout.Grid {
		t.Fatalf("session = %+v", v)
	}
	for _, sl := range v.Slots {
		if sl.State.String() != "empty" {
			t.Errorf("slot %d = %v, want empty", sl.Index, sl.State)
		}
	}

	if resp := do(t, http.MethodDelete, base, "", nil, ""); resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d", resp.StatusCode)
	}
	resp := do(t, http.MethodGet, base, "", nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get deleted status = %d, want 404", resp.StatusCode)
	}
	if e := decode[errorResponse](t, resp); e.Code != errors.ErrCodeSessionNotFound {
		t.Errorf("code = %s, want %s", e.Code, errors.ErrCodeSessionNotFound)
	}
}

func TestUploadMoveAndSource(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts)
	base := ts.URL + "/api/v1/sessions/" + id
	img := pngBytes(t)

	up := upload(t, ts, id,
		part{"a.png", "image/png", img},
		part{"b.png", "image/png", img},
		part{"notes.txt", "text/plain", []byte("hi")},
		part{"c.heic", "image/heic", []byte("heic")},
	)
	if up.Accepted != 4 || len(up.Results) != 4 {
		t.Fatalf("upload = %+v", up)
	}
	if r := up.Results[2]; r.Error == "" || r.Route != "" {
		t.Errorf("txt result = %+v, want validation error", r)
	}
	if r := up.Results[3]; r.State.String() != "unsupported" || r.Guidance == "" {
		t.Errorf("heic result = %+v, want unsupported with guidance", r)
	}

	resp := do(t, http.MethodPost, base+"/move", "application/json", strings.NewReader(`{"from":0,"to":1}`), "")
	v := decode[sessionView](t, resp)
	if v.Slots[0].Name != "b.png" || v.Slots[1].Name != "a.png" {
		t.Errorf("after move = %q, %q", v.Slots[0].Name, v.Slots[1].Name)
	}

	resp = do(t, http.MethodGet, base+"/slots/1/source", "", nil, "")
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("source = %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if got, _ := io.ReadAll(resp.Body); !bytes.Equal(got, img) {
		t.Error("source bytes differ from upload")
	}

	if resp := do(t, http.MethodGet, base+"/slots/2/source", "", nil, ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("empty slot source status = %d, want 404", resp.StatusCode)
	}
	if resp := do(t, http.MethodDelete, base+"/slots/9", "", nil, ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid index status = %d, want 400", resp.StatusCode)
	}
}

func TestUploadAt(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts)
	base := ts.URL + "/api/v1/sessions/" + id

	body, ct := multipartBody(t, "file", part{"x.png", "image/png", pngBytes(t)})
	resp := do(t, http.MethodPut, base+"/slots/5?wait=true", ct, body, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload status = %d", resp.StatusCode)
	}

	v := decode[sessionView](t, do(t, http.MethodGet, base, "", nil, ""))
	if v.Slots[5].State.String() != "ready" || v.Slots[5].Name != "x.png" {
		t.Errorf("slot 5 = %+v", v.Slots[5])
	}

	body, ct = multipartBody(t, "file", part{"x.txt", "text/plain", []byte("x")})
	if resp := do(t, http.MethodPut, base+"/slots/0", ct, body, ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid file status = %d, want 400", resp.StatusCode)
	}
}

func TestGeometryAndLayout(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts)
	base := ts.URL + "/api/v1/sessions/" + id
	img := pngBytes(t)
	upload(t, ts, id, part{"a.png", "image/png", img}, part{"b.png", "image/png", img}, part{"c.png", "image/png", img})

	geo := decode[layout.Geometry](t, do(t, http.MethodGet, base+"/geometry", "", nil, ""))
	if geo.Width != 140 || geo.Height != 50 || len(geo.Rects) != 3 {
		t.Errorf("geometry = %+v", geo)
	}
	geo = decode[layout.Geometry](t, do(t, http.MethodGet, base+"/geometry?width=70", "", nil, ""))
	if geo.Width != 70 || geo.Height != 25 {
		t.Errorf("scaled geometry = %vx%v, want 70x25", geo.Width, geo.Height)
	}

	resp := do(t, http.MethodPut, base+"/layout", "application/json", strings.NewReader(`{"layout":"asymmetric"}`), "")
	if v := decode[sessionView](t, resp); v.Layout != layout.Asymmetric {
		t.Errorf("layout = %v, want asymmetric", v.Layout)
	}
	resp = do(t, http.MethodPut, base+"/layout", "application/json", strings.NewReader(`{"layout":"mosaic"}`), "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad layout status = %d, want 400", resp.StatusCode)
	}
}

func TestExportDownload(t *testing.T) {
	tests := []struct {
		name        string
		ua          string
		disposition string
	}{
		{"desktop", "Mozilla/5.0 (X11; Linux x86_64)", "attachment"},
		{"iphone", iPhoneUA, "inline"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			id := createSession(t, ts)
			upload(t, ts, id, part{"a.png", "image/png", pngBytes(t)})

			resp := do(t, http.MethodPost, ts.URL+"/api/v1/sessions/"+id+"/export", "application/json",
				strings.NewReader(`{"format":"jpeg"}`), tt.ua)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("export status = %d", resp.StatusCode)
			}
			rc := decode[receiptView](t, resp)
			if rc.Strategy != "download" || !strings.HasPrefix(rc.Location, "http://collage.test/downloads/") {
				t.Fatalf("receipt = %+v", rc)
			}
			if !strings.HasPrefix(rc.Name, "collage_") || !strings.HasSuffix(rc.Name, ".jpg") {
				t.Errorf("name = %q", rc.Name)
			}

			path := strings.TrimPrefix(rc.Location, "http://collage.test")
			dl := do(t, http.MethodGet, ts.URL+path, "", nil, "")
			if dl.StatusCode != http.StatusOK || dl.Header.Get("Content-Type") != "image/jpeg" {
				t.Fatalf("download = %d %s", dl.StatusCode, dl.Header.Get("Content-Type"))
			}
			want := fmt.Sprintf("%s; filename=%q", tt.disposition, rc.Name)
			if got := dl.Header.Get("Content-Disposition"); got != want {
				t.Errorf("Content-Disposition = %q, want %q", got, want)
			}
		})
	}
}

func TestExportShare(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts)
	upload(t, ts, id, part{"a.png", "image/png", pngBytes(t)})

	resp := do(t, http.MethodPost, ts.URL+"/api/v1/sessions/"+id+"/export", "application/json",
		strings.NewReader(`{"share":true}`), "")
	rc := decode[receiptView](t, resp)
	if rc.Strategy != "share" || rc.Name != "collage.png" {
		t.Fatalf("receipt = %+v", rc)
	}

	path := strings.TrimPrefix(rc.Location, "http://collage.test")
	shared := do(t, http.MethodGet, ts.URL+path, "", nil, "")
	if shared.StatusCode != http.StatusOK || shared.Header.Get("Content-Type") != "image/png" {
		t.Errorf("shared = %d %s", shared.StatusCode, shared.Header.Get("Content-Type"))
	}
}

func TestExportErrors(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts)
	url := ts.URL + "/api/v1/sessions/" + id + "/export"

	resp := do(t, http.MethodPost, url, "", nil, "")
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("empty export status = %d, want 422", resp.StatusCode)
	}
	if e := decode[errorResponse](t, resp); e.Code != errors.ErrCodeNoContent {
		t.Errorf("code = %s, want %s", e.Code, errors.ErrCodeNoContent)
	}

	resp = do(t, http.MethodPost, url, "application/json", strings.NewReader(`{"format":"gif"}`), "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad format status = %d, want 400", resp.StatusCode)
	}

	if resp := do(t, http.MethodGet, ts.URL+"/downloads/nope", "", nil, ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown download status = %d, want 404", resp.StatusCode)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code errors.Code
		want int
	}{
		{errors.ErrCodeInvalidInput, http.StatusBadRequest},
		{errors.ErrCodeInvalidIndex, http.StatusBadRequest},
		{errors.ErrCodeSessionNotFound, http.StatusNotFound},
		{errors.ErrCodeExportInProgress, http.StatusConflict},
		{errors.ErrCodeDecodeFailure, http.StatusUnsupportedMediaType},
		{errors.ErrCodeNoContent, http.StatusUnprocessableEntity},
		{errors.ErrCodeCompositeFailure, http.StatusUnprocessableEntity},
		{errors.ErrCodeDeliveryFailure, http.StatusBadGateway},
		{errors.ErrCodeInternal, http.StatusInternalServerError},
		{"", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.code); got != tt.want {
			t.Errorf("statusFor(%q) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	if resp := do(t, http.MethodGet, ts.URL+"/healthz", "", nil, ""); resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}
}

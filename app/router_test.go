package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"bitwise74/proffer/config"
	"bitwise74/proffer/internal"
	"bitwise74/proffer/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

const testConfig = `
[upload]
root = "/files"
spool_dir = "/spool"
allowed_types = ["image/*", "text/plain"]

[proffer.photos.photo]
dir = "photo_dir"

[[proffer.photos.photo.thumbnail_sizes]]
label = "square"
w = 20
h = 20
crop = true

[[proffer.photos.photo.thumbnail_sizes]]
label = "wide"
w = 40

[rules.photos]
title = "required,max=20"
photo = "omitempty"
`

type photoResponse struct {
	ID         uint              `json:"id"`
	Title      string            `json:"title"`
	Photo      string            `json:"photo"`
	PhotoDir   string            `json:"photo_dir"`
	URL        string            `json:"url"`
	Thumbnails map[string]string `json:"thumbnails"`
}

func newTestServer(t *testing.T) (*gin.Engine, *internal.Deps) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	viper.Reset()
	t.Cleanup(viper.Reset)

	config.SetDefaults()
	viper.SetConfigType("toml")
	require.NoError(t, viper.ReadConfig(strings.NewReader(testConfig)))
	require.NoError(t, config.Validate())

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())

	d, err := Wire(Options{
		Fs:        afero.NewMemMapFs(),
		Dialector: sqlite.Open(dsn),
	})
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	return NewRouter(d), d
}

func pngData(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 80, 60))))

	return buf.Bytes()
}

func multipartRequest(t *testing.T, method, url string, fields map[string]string, name string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}

	if name != "" {
		part, err := w.CreateFormFile(model.FieldPhoto, name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, url, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())

	return req
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) photoResponse {
	t.Helper()

	var r photoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))

	return r
}

func TestPhotoLifecycle(t *testing.T) {
	router, d := newTestServer(t)

	rec := serve(router, multipartRequest(t, http.MethodPost, "/api/photos",
		map[string]string{"title": "cat", "tags": "pets, cute"}, "cat.png", pngData(t)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode(t, rec)
	assert.Equal(t, "cat.png", created.Photo)
	require.NotEmpty(t, created.PhotoDir)
	assert.Equal(t, "/files/photos/"+created.PhotoDir+"/cat.png", created.URL)
	assert.Equal(t, map[string]string{
		"square": "/files/photos/" + created.PhotoDir + "/square_cat.png",
		"wide":   "/files/photos/" + created.PhotoDir + "/wide_cat.png",
	}, created.Thumbnails)

	dir := filepath.Join("/files", "photos", created.PhotoDir)
	for _, name := range []string{"cat.png", "square_cat.png", "wide_cat.png"} {
		ok, _ := afero.Exists(d.Fs, filepath.Join(dir, name))
		assert.True(t, ok, name)
	}

	// Nothing is left in the spool
	left, err := afero.ReadDir(d.Fs, d.Spool.Dir())
	require.NoError(t, err)
	assert.Empty(t, left)

	rec = serve(router, httptest.NewRequest(http.MethodGet, created.URL, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pngData(t), rec.Body.Bytes())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = serve(router, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/photos/%d", created.ID), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cat", decode(t, rec).Title)

	rec = serve(router, multipartRequest(t, http.MethodPatch, fmt.Sprintf("/api/photos/%d", created.ID),
		map[string]string{"title": "dog"}, "dog.png", pngData(t)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	updated := decode(t, rec)
	assert.Equal(t, "dog", updated.Title)
	assert.Equal(t, "dog.png", updated.Photo)
	assert.Equal(t, created.PhotoDir, updated.PhotoDir)

	var stats model.Stats
	require.NoError(t, d.DB.First(&stats, "name = ?", "photos").Error)
	assert.Equal(t, 2, stats.UploadedFiles)

	rec = serve(router, httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/photos/%d", created.ID), nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	ok, _ := afero.DirExists(d.Fs, dir)
	assert.False(t, ok)

	rec = serve(router, httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/photos/%d", created.ID), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateWithoutFile(t *testing.T) {
	router, _ := newTestServer(t)

	rec := serve(router, multipartRequest(t, http.MethodPost, "/api/photos", map[string]string{"title": "empty"}, "", nil))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	r := decode(t, rec)
	assert.Empty(t, r.Photo)
	assert.Empty(t, r.PhotoDir)
	assert.Empty(t, r.URL)
}

func TestCreateNonImageHasNoThumbnails(t *testing.T) {
	router, d := newTestServer(t)

	rec := serve(router, multipartRequest(t, http.MethodPost, "/api/photos",
		map[string]string{"title": "notes"}, "notes.txt", []byte("just some text")))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	r := decode(t, rec)
	assert.Equal(t, "notes.txt", r.Photo)
	assert.Empty(t, r.Thumbnails)

	entries, err := afero.ReadDir(d.Fs, filepath.Join("/files", "photos", r.PhotoDir))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCreateValidationFails(t *testing.T) {
	router, d := newTestServer(t)

	rec := serve(router, multipartRequest(t, http.MethodPost, "/api/photos", nil, "cat.png", pngData(t)))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	var body struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "required", body.Fields["title"])

	// The spooled file is discarded and nothing is moved
	left, err := afero.ReadDir(d.Fs, d.Spool.Dir())
	require.NoError(t, err)
	assert.Empty(t, left)

	ok, _ := afero.DirExists(d.Fs, "/files/photos")
	assert.False(t, ok)
}

func TestCreateRejectsUnsupportedType(t *testing.T) {
	router, _ := newTestServer(t)

	rec := serve(router, multipartRequest(t, http.MethodPost, "/api/photos",
		map[string]string{"title": "zip"}, "a.zip", []byte("PK\x03\x04\x14\x00\x00\x00\x08\x00")))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code, rec.Body.String())
}

func TestFetchMissing(t *testing.T) {
	router, _ := newTestServer(t)

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/photos/999", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHeartbeat(t *testing.T) {
	router, _ := newTestServer(t)

	rec := serve(router, httptest.NewRequest(http.MethodHead, "/api/heartbeat", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestCreateRejectsSVG(t *testing.T) {
	router, d := newTestServer(t)

	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg"><script>alert(document.cookie)</script></svg>`)

	rec := serve(router, multipartRequest(t, http.MethodPost, "/api/photos",
		map[string]string{"title": "x"}, "x.svg", svg))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code, rec.Body.String())

	ok, _ := afero.DirExists(d.Fs, "/files/photos")
	assert.False(t, ok)
}

func TestFetchAfterChangeIsFresh(t *testing.T) {
	router, _ := newTestServer(t)

	rec := serve(router, multipartRequest(t, http.MethodPost, "/api/photos", map[string]string{"title": "old"}, "", nil))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	url := fmt.Sprintf("/api/photos/%d", decode(t, rec).ID)

	rec = serve(router, httptest.NewRequest(http.MethodGet, url, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "old", decode(t, rec).Title)

	rec = serve(router, multipartRequest(t, http.MethodPatch, url, map[string]string{"title": "new"}, "", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(router, httptest.NewRequest(http.MethodGet, url, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "new", decode(t, rec).Title)

	rec = serve(router, httptest.NewRequest(http.MethodDelete, url, nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(router, httptest.NewRequest(http.MethodGet, url, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

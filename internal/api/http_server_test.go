package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"advocat/internal/collection"
	"advocat/internal/config"
	"advocat/internal/events"
	"advocat/internal/export"
	"advocat/internal/remote"
	"advocat/internal/repository"
	"advocat/internal/schedule"
	"advocat/internal/service"
	"advocat/internal/visitor"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminToken = "admin-token"

// fakeRemote mimics the REST API the gateway sits in front of.
type fakeRemote struct {
	mux          *http.ServeMux
	contacts     atomic.Int32
	unauthorized atomic.Bool
}

func newFakeRemote() *fakeRemote {
	f := &fakeRemote{mux: http.NewServeMux()}
	m := f.mux

	m.HandleFunc("HEAD /{$}", func(w http.ResponseWriter, r *http.Request) {})
	m.HandleFunc("GET /api/category/list", jsonAnswer(`[{"id":1,"name":"Droit civil","slug":"civil"}]`))
	m.HandleFunc("GET /api/service/list", jsonAnswer(`[{"id":10,"name":"Consultation","category_id":1}]`))
	m.HandleFunc("GET /api/staff/list", jsonAnswer(`[{"id":5,"firstname":"Anne","lastname":"Petit","is_active":true}]`))
	m.HandleFunc("GET /api/appointment/slots", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("date") == "" {
			http.Error(w, "missing date", http.StatusBadRequest)
			return
		}
		_, _ = io.WriteString(w, `[{"start":"2026-03-05 10:00","end":"2026-03-05 11:00","label":"10h"}]`)
	})
	m.HandleFunc("POST /api/appointment/create", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":42,"firstname":"Jeanne","lastname":"Martin","email":"j@m.fr","phone":"0601020304","datetime":"2026-03-05 10:00"}`)
	})
	m.HandleFunc("POST /api/contact/create", func(w http.ResponseWriter, r *http.Request) {
		f.contacts.Add(1)
		_, _ = io.WriteString(w, `{"id":7,"firstname":"Paul","lastname":"Durand","email":"p@d.fr","message":"Bonjour"}`)
	})
	m.HandleFunc("GET /api/testimonial/list", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("offset") {
		case "0":
			_, _ = io.WriteString(w, `[{"id":1,"author":"A","rating":5},{"id":2,"author":"B","rating":4}]`)
		default:
			_, _ = io.WriteString(w, `[{"id":3,"author":"C","rating":3}]`)
		}
	})
	m.HandleFunc("POST /api/testimonial/create", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()
		_, _, err := r.FormFile("filename")
		hasImage := err == nil
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": 99, "author": r.FormValue("author"), "rating": 5, "message": r.FormValue("message"),
			"is_published": hasImage,
		})
	})
	m.HandleFunc("POST /api/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"token":"`+adminToken+`"}`)
	})
	m.HandleFunc("POST /api/user/existing", jsonAnswer(`{"exists":true}`))
	m.HandleFunc("GET /api/user/me", f.authed(jsonAnswer(`{"id":1,"email":"admin@cabinet.fr","roles":["ROLE_USER","ROLE_ADMIN"]}`)))

	m.HandleFunc("GET /api/admin/appointment/list", f.authed(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("offset") {
		case "0":
			_, _ = io.WriteString(w, `[{"id":1,"lastname":"Un"},{"id":2,"lastname":"Deux"}]`)
		case "2":
			_, _ = io.WriteString(w, `[{"id":3,"lastname":"Trois"}]`)
		default:
			_, _ = io.WriteString(w, `[]`)
		}
	}))
	m.HandleFunc("GET /api/admin/appointment/search", f.authed(jsonAnswer(`[{"id":2,"lastname":"Deux"}]`)))
	m.HandleFunc("GET /api/admin/appointment/show/{id}", f.authed(jsonAnswer(`{"id":2,"lastname":"Deux"}`)))
	m.HandleFunc("DELETE /api/admin/appointment/delete/{id}", f.authed(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	m.HandleFunc("GET /api/admin/contact/list", f.authed(jsonAnswer(`{"id":7,"lastname":"Durand"}`)))
	m.HandleFunc("POST /api/admin/staff/create", f.authed(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": 6, "firstname": r.FormValue("firstname"), "lastname": r.FormValue("lastname"), "is_active": true,
		})
	}))
	m.HandleFunc("DELETE /api/admin/staff/delete/{id}/picture/{pic}", f.authed(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	return f
}

// authed answers 401 unless the admin token is sent and the session was not revoked.
func (f *fakeRemote) authed(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if f.unauthorized.Load() || r.Header.Get("Authorization") != "Bearer "+adminToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		h(w, r)
	}
}

func jsonAnswer(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

type gateway struct {
	t      *testing.T
	url    string
	client *http.Client
	remote *fakeRemote
	bus    *events.EventBus
	server *HTTPServer
}

func testConfig(remoteURL string) *config.Config {
	return &config.Config{
		App:    config.AppConfig{Name: "Cabinet Test"},
		Remote: config.RemoteConfig{BaseURL: remoteURL, Timeout: 2 * time.Second},
		Server: config.ServerConfig{
			Port:        0,
			CookieName:  "advocat_vid",
			RateLimit:   config.RateLimitConfig{RPS: 1000, Burst: 1000},
			Submissions: config.SubmissionLimitConfig{Max: 100, Window: time.Minute},
		},
		Session:    config.SessionConfig{Store: config.StoreMemory, TTL: time.Hour},
		Pagination: config.PaginationConfig{Limit: 2, MinSearchLength: 2},
		Exports:    config.ExportConfig{PageSize: 2},
		Schedule: config.ScheduleConfig{Timezone: "UTC", Days: map[string]config.HoursConfig{
			"monday": {Open: 9, Close: 18},
		}},
	}
}

func newGateway(t *testing.T, mutate func(*config.Config)) *gateway {
	t.Helper()
	fr := newFakeRemote()
	remoteSrv := httptest.NewServer(fr.mux)
	t.Cleanup(remoteSrv.Close)

	cfg := testConfig(remoteSrv.URL)
	if mutate != nil {
		mutate(cfg)
	}

	logger := zerolog.Nop()
	bus := events.NewEventBus(&logger)
	state := service.NewStateService(repository.NewMemoryStateRepository(time.Hour), &logger)
	base := remote.NewClient(cfg.Remote, &logger)
	sched, err := schedule.New(cfg.Schedule)
	require.NoError(t, err)

	registry := visitor.NewRegistry(base, state, bus, collection.Options{
		Limit:     cfg.Pagination.Limit,
		MinSearch: cfg.Pagination.MinSearchLength,
	}, time.Minute, &logger)

	srv := NewHTTPServer(Deps{
		Config:   cfg,
		Registry: registry,
		Catalog:  service.NewCatalogService(base, time.Minute, &logger),
		Contacts: service.NewContactService(base, bus, &logger),
		State:    state,
		Schedule: sched,
		Ready:    []ReadyCheck{{Name: "remote", Check: base.Ping}},
		Logger:   &logger,
	})
	srv.now = func() time.Time { return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) }

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &gateway{t: t, url: ts.URL, client: client, remote: fr, bus: bus, server: srv}
}

func (g *gateway) do(method, path string, body any) (*http.Response, map[string]any) {
	g.t.Helper()
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(g.t, err)
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, g.url+path, rdr)
	require.NoError(g.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return g.send(req)
}

func (g *gateway) send(req *http.Request) (*http.Response, map[string]any) {
	g.t.Helper()
	resp, err := g.client.Do(req)
	require.NoError(g.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(g.t, err)

	out := map[string]any{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(g.t, json.Unmarshal(raw, &out), string(raw))
	} else {
		out["raw"] = raw
	}
	return resp, out
}

func (g *gateway) login() {
	g.t.Helper()
	resp, body := g.do(http.MethodPost, "/login", map[string]string{"email": "admin@cabinet.fr", "password": "secret"})
	require.Equal(g.t, http.StatusOK, resp.StatusCode)
	require.Equal(g.t, true, body["isLoggedIn"])
}

func itemIDs(t *testing.T, body map[string]any) []float64 {
	t.Helper()
	items, ok := body["items"].([]any)
	require.True(t, ok, "items missing in %v", body)
	ids := make([]float64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.(map[string]any)["id"].(float64))
	}
	return ids
}

// multipartRequest builds a form post with text fields and one image of size bytes.
func (g *gateway) multipartRequest(path string, fields map[string]string, size int) *http.Request {
	g.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(g.t, mw.WriteField(k, v))
	}
	part, err := mw.CreateFormFile("image", "photo.jpg")
	require.NoError(g.t, err)
	_, err = part.Write(bytes.Repeat([]byte{0xff}, size))
	require.NoError(g.t, err)
	require.NoError(g.t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, g.url+path, &buf)
	require.NoError(g.t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func fieldNames(body map[string]any) []string {
	fields, _ := body["fields"].([]any)
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.(map[string]any)["field"].(string))
	}
	return names
}

func TestHealthAndReady(t *testing.T) {
	g := newGateway(t, nil)

	resp, body := g.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))

	resp, body = g.do(http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"remote": "ok"}, body["checks"])
}

func TestReadyFailsWhenCheckFails(t *testing.T) {
	g := newGateway(t, nil)
	g.server.ready = append(g.server.ready, ReadyCheck{Name: "redis", Check: func(context.Context) error {
		return errors.New("connection refused")
	}})

	resp, body := g.do(http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "connection refused", body["checks"].(map[string]any)["redis"])
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	g := newGateway(t, nil)
	resp, body := g.do(http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not found", body["error"])
}

func TestVisitorCookieIssuedOnce(t *testing.T) {
	g := newGateway(t, nil)

	resp, _ := g.do(http.MethodGet, "/healthz", nil)
	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "advocat_vid", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, 3600, cookies[0].MaxAge)

	resp, _ = g.do(http.MethodGet, "/healthz", nil)
	assert.Empty(t, resp.Cookies(), "a known visitor keeps its cookie")
}

func TestHomeShowsCatalogAndOpening(t *testing.T) {
	g := newGateway(t, nil)

	resp, body := g.do(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["services"], 1)
	assert.Len(t, body["categories"], 1)
	assert.Equal(t, false, body["bookingOpen"])
	assert.Equal(t, false, body["loading"])

	opening := body["opening"].(map[string]any)
	assert.Equal(t, true, opening["isOpen"])
	assert.Equal(t, "18h", opening["closingHour"])

	_, body = g.do(http.MethodPost, "/booking/panel/open", nil)
	assert.Equal(t, true, body["bookingOpen"])
	_, body = g.do(http.MethodGet, "/", nil)
	assert.Equal(t, true, body["bookingOpen"])
}

func TestContactFormPublishesEvent(t *testing.T) {
	g := newGateway(t, nil)
	var published atomic.Int32
	g.bus.Subscribe(events.EventContactCreated, func(*events.Event) error {
		published.Add(1)
		return nil
	})

	resp, body := g.do(http.MethodPost, "/contact/form", map[string]string{
		"firstname": "Paul", "lastname": "Durand", "email": "p@d.fr", "message": "Bonjour",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, float64(7), body["contact"].(map[string]any)["id"])
	assert.Equal(t, int32(1), published.Load())

	resp, body = g.do(http.MethodPost, "/contact/form", map[string]string{"firstname": "Paul"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, fieldNames(body), "email")
	assert.Equal(t, int32(1), g.remote.contacts.Load(), "invalid forms never reach the API")
}

func TestSubmissionCapPerVisitor(t *testing.T) {
	g := newGateway(t, func(c *config.Config) {
		c.Server.Submissions = config.SubmissionLimitConfig{Max: 1, Window: time.Minute}
	})
	form := map[string]string{"firstname": "Paul", "lastname": "Durand", "email": "p@d.fr", "message": "Bonjour"}

	resp, _ := g.do(http.MethodPost, "/contact/form", form)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = g.do(http.MethodPost, "/contact/form", form)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestRateLimitPerAddress(t *testing.T) {
	g := newGateway(t, func(c *config.Config) {
		c.Server.RateLimit = config.RateLimitConfig{RPS: 0.001, Burst: 1}
	})

	resp, _ := g.do(http.MethodPost, "/login", map[string]string{"email": "x@y.fr", "password": "bad"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, body := g.do(http.MethodPost, "/login", map[string]string{"email": "x@y.fr", "password": "bad"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "rate limit exceeded", body["error"])

	resp, _ = g.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "reads are not limited")
}

func TestBookingDraftSlotsAndCreate(t *testing.T) {
	g := newGateway(t, nil)
	var published atomic.Int32
	g.bus.Subscribe(events.EventBookingCreated, func(*events.Event) error {
		published.Add(1)
		return nil
	})

	_, body := g.do(http.MethodPost, "/booking/draft", map[string]any{"categoryId": 1, "serviceId": 10})
	assert.Empty(t, body["slots"], "no slots until the draft is complete")

	_, body = g.do(http.MethodPost, "/booking/draft", map[string]any{"staffId": 5, "date": "2026-03-05"})
	require.Len(t, body["slots"], 1)
	draft := body["draft"].(map[string]any)
	assert.Equal(t, float64(1), draft["categoryId"])
	assert.Equal(t, "2026-03-05", draft["date"])

	_, body = g.do(http.MethodGet, "/booking", nil)
	assert.Equal(t, "Consultation", body["selectedService"].(map[string]any)["name"])

	g.do(http.MethodPost, "/booking/draft", map[string]any{"datetime": "2026-03-05 10:00"})

	resp, body := g.do(http.MethodPost, "/booking/form", map[string]string{
		"firstname": "Jeanne", "lastname": "Martin", "email": "j@m.fr", "phone": "0601020304",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "/confirmation", body["redirect"])
	assert.Equal(t, int32(1), published.Load())

	_, body = g.do(http.MethodGet, "/confirmation", nil)
	assert.Equal(t, float64(42), body["booking"].(map[string]any)["id"])

	_, body = g.do(http.MethodGet, "/booking", nil)
	assert.Len(t, body["staff"], 1)
	assert.Len(t, body["services"], 1)

	_, body = g.do(http.MethodDelete, "/booking/draft", nil)
	assert.Nil(t, body["draft"].(map[string]any)["categoryId"])
}

func TestBookingDraftNullClearsField(t *testing.T) {
	g := newGateway(t, nil)

	_, body := g.do(http.MethodPost, "/booking/draft", map[string]any{
		"categoryId": 1, "serviceId": 10, "staffId": 5, "date": "2026-03-05",
	})
	require.Len(t, body["slots"], 1)

	resp, body := g.do(http.MethodPost, "/booking/draft", map[string]any{"staffId": nil})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	draft := body["draft"].(map[string]any)
	assert.Nil(t, draft["staffId"])
	assert.Equal(t, float64(1), draft["categoryId"])
	assert.Equal(t, float64(10), draft["serviceId"])
	assert.Equal(t, "2026-03-05", draft["date"])
	assert.Empty(t, body["slots"], "an incomplete draft has no slots")

	_, body = g.do(http.MethodGet, "/booking", nil)
	assert.Nil(t, body["draft"].(map[string]any)["staffId"])

	resp, _ = g.do(http.MethodPost, "/booking/draft", []int{1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTestimonialsLazyLoadAndCreate(t *testing.T) {
	g := newGateway(t, nil)

	_, body := g.do(http.MethodGet, "/testimonials", nil)
	assert.Equal(t, []float64{1, 2}, itemIDs(t, body))
	assert.Equal(t, true, body["hasMore"])

	_, body = g.do(http.MethodGet, "/testimonials?more=1", nil)
	assert.Equal(t, []float64{1, 2, 3}, itemIDs(t, body))
	assert.Equal(t, false, body["hasMore"])

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("author", "Claire"))
	require.NoError(t, mw.WriteField("rating", "5"))
	require.NoError(t, mw.WriteField("message", "Très bon accueil"))
	part, err := mw.CreateFormFile("image", "photo.jpg")
	require.NoError(t, err)
	_, _ = part.Write([]byte("jpeg"))
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, g.url+"/testimonials", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, body := g.send(req)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	created := body["testimonial"].(map[string]any)
	assert.Equal(t, "Claire", created["author"])
	assert.Equal(t, true, created["is_published"], "the image is forwarded to the API")

	_, body = g.do(http.MethodGet, "/testimonials?more=1", nil)
	assert.Equal(t, float64(99), itemIDs(t, body)[0])
}

func TestUploadsLeaveNoTempFiles(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)
	g := newGateway(t, nil)

	req := g.multipartRequest("/testimonials", map[string]string{
		"author": "Claire", "rating": "5", "message": "Très bon accueil",
	}, 2*maxFormMemory)
	resp, body := g.send(req)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)

	g.login()
	req = g.multipartRequest("/admin/staff/form", map[string]string{"firstname": "Luc", "lastname": "Moreau"}, 2*maxFormMemory)
	resp, body = g.send(req)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "Luc", body["item"].(map[string]any)["firstname"])

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries, "multipart temp files are removed once the form is handled")
}

func TestLoginLogoutAndMe(t *testing.T) {
	g := newGateway(t, nil)

	resp, body := g.do(http.MethodPost, "/login", map[string]string{"email": "admin@cabinet.fr", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid credentials", body["error"])

	g.login()
	_, body = g.do(http.MethodGet, "/me", nil)
	assert.Equal(t, true, body["isLoggedIn"])
	assert.Contains(t, body["roles"], "ROLE_ADMIN")

	_, body = g.do(http.MethodPost, "/logout", nil)
	assert.Equal(t, false, body["isLoggedIn"])
	assert.Empty(t, body["roles"])
}

func TestRequestPassword(t *testing.T) {
	g := newGateway(t, nil)

	resp, _ := g.do(http.MethodPost, "/request-password", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, body := g.do(http.MethodPost, "/request-password", map[string]string{"email": "a@b.fr"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"exists": true}, body["result"])
}

func TestAdminGuardRedirectsAnonymous(t *testing.T) {
	g := newGateway(t, nil)

	resp, body := g.do(http.MethodGet, "/admin/booking/list", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	assert.Equal(t, "/", body["redirect"])
}

func TestAdminBookingListSearchMoreReset(t *testing.T) {
	g := newGateway(t, nil)
	g.login()

	resp, _ := g.do(http.MethodGet, "/admin", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/admin/booking/list", resp.Header.Get("Location"))

	_, body := g.do(http.MethodGet, "/admin/booking/list", nil)
	assert.Equal(t, []float64{1, 2}, itemIDs(t, body))
	assert.Equal(t, true, body["hasMore"])

	_, body = g.do(http.MethodGet, "/admin/booking/list?more=1", nil)
	assert.Equal(t, []float64{1, 2, 3}, itemIDs(t, body))
	assert.Equal(t, false, body["hasMore"])

	_, body = g.do(http.MethodGet, "/admin/booking/list?search=De", nil)
	assert.Equal(t, []float64{2}, itemIDs(t, body))
	assert.Equal(t, true, body["isSearching"])
	assert.Equal(t, "De", body["searchTerm"])

	_, body = g.do(http.MethodGet, "/admin/booking/list?reset=1", nil)
	assert.Equal(t, []float64{1, 2}, itemIDs(t, body))
	assert.Equal(t, false, body["isSearching"])

	_, body = g.do(http.MethodGet, "/admin/contact/list", nil)
	assert.Equal(t, []float64{7}, itemIDs(t, body), "a single object answer is one row")
}

func TestAdminDetailsAndDelete(t *testing.T) {
	g := newGateway(t, nil)
	g.login()

	_, body := g.do(http.MethodGet, "/admin/booking/details/2", nil)
	assert.Equal(t, float64(2), body["item"].(map[string]any)["id"])

	_, body = g.do(http.MethodGet, "/admin/service/details/1", nil)
	assert.Nil(t, body["item"])

	resp, _ := g.do(http.MethodGet, "/admin/booking/details/abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	g.do(http.MethodGet, "/admin/booking/list", nil)
	_, body = g.do(http.MethodDelete, "/admin/booking/details/1", nil)
	assert.Equal(t, true, body["deleted"])
	_, body = g.do(http.MethodGet, "/admin/booking/list?more=1", nil)
	assert.NotContains(t, itemIDs(t, body), float64(1))

	_, body = g.do(http.MethodDelete, "/admin/staff/show/5?picture=8", nil)
	assert.Equal(t, true, body["deleted"])

	resp, _ = g.do(http.MethodDelete, "/admin/staff/show/5?picture=x", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminRejectedTokenLogsOut(t *testing.T) {
	g := newGateway(t, nil)
	g.login()
	g.remote.unauthorized.Store(true)

	resp, body := g.do(http.MethodGet, "/admin/booking/list", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", body["redirect"])

	_, body = g.do(http.MethodGet, "/me", nil)
	assert.Equal(t, false, body["isLoggedIn"])
}

func TestAdminExportBookings(t *testing.T) {
	g := newGateway(t, nil)
	g.login()

	resp, body := g.do(http.MethodGet, "/admin/booking/export", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, export.ContentType, resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "bookings_2026-03-02_1000.xlsx")
	data := body["raw"].([]byte)
	assert.True(t, bytes.HasPrefix(data, []byte("PK")), "xlsx is a zip archive")
}

func TestCORSPreflight(t *testing.T) {
	g := newGateway(t, func(c *config.Config) {
		c.Server.CORS = config.CORSConfig{AllowedOrigins: []string{"https://cabinet.fr"}, AllowCredentials: true}
	})

	req, err := http.NewRequest(http.MethodOptions, g.url+"/contact/form", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://cabinet.fr")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, _ := g.send(req)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://cabinet.fr", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))

	req, err = http.NewRequest(http.MethodGet, g.url+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://evil.example")
	resp, _ = g.send(req)
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestMatchOrigin(t *testing.T) {
	got, ok := matchOrigin("https://a.fr", []string{"*"}, false)
	assert.True(t, ok)
	assert.Equal(t, "*", got)

	got, ok = matchOrigin("https://a.fr", []string{"*"}, true)
	assert.True(t, ok)
	assert.Equal(t, "https://a.fr", got)

	_, ok = matchOrigin("https://b.fr", []string{"https://a.fr"}, false)
	assert.False(t, ok)
}

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/agro-portal/internal/assets"
	"github.com/i474232898/agro-portal/internal/auth"
	"github.com/i474232898/agro-portal/internal/dashboard"
	"github.com/i474232898/agro-portal/internal/news"
	"github.com/i474232898/agro-portal/internal/session"
	"github.com/i474232898/agro-portal/internal/weather"
)

type fakeWeather struct {
	err error
	got weather.Coordinates
}

func (f *fakeWeather) GetConditions(_ context.Context, c weather.Coordinates) (weather.Conditions, error) {
	f.got = c
	if f.err != nil {
		return weather.Conditions{}, f.err
	}
	return weather.Conditions{
		Current:      weather.WeatherSnapshot{TemperatureC: 24, HumidityPct: 40, Condition: weather.ConditionSunny},
		Forecast:     weather.ForecastSnapshot{RainProbabilityPct: 20, WindDirection: weather.WindNE},
		LocationName: "Río Tercero",
		Timestamp:    time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}, nil
}

type fakeNews struct{}

func (fakeNews) GetNews(context.Context) []news.Item {
	return []news.Item{
		{Title: "Cosecha récord", SourceURL: "https://example.com/1", SourceName: "Infocampo"},
		{Title: "Lluvias en Córdoba", SourceURL: "https://example.com/2", SourceName: "Bichos de Campo"},
	}
}

// memDirectory is an in-memory auth.Directory.
type memDirectory struct {
	mu    sync.Mutex
	users map[string]memUser
	roles map[string]auth.Role
}

type memUser struct {
	auth.User
	password string
}

func newMemDirectory() *memDirectory {
	return &memDirectory{users: map[string]memUser{}, roles: map[string]auth.Role{}}
}

func (m *memDirectory) Authenticate(_ context.Context, email, password string) (auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[strings.ToLower(email)]
	if !ok || u.password != password {
		return auth.User{}, auth.ErrInvalidCredentials
	}
	return u.User, nil
}

func (m *memDirectory) CreateUser(_ context.Context, email, password string) (auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(email)
	if _, ok := m.users[email]; ok {
		return auth.User{}, auth.ErrEmailTaken
	}
	u := memUser{User: auth.User{ID: uuid.NewString(), Email: email}, password: password}
	m.users[email] = u
	return u.User, nil
}

func (m *memDirectory) FindByEmail(_ context.Context, email string) (auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[strings.ToLower(email)]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	return u.User, nil
}

func (m *memDirectory) AssignRole(_ context.Context, userID string, role auth.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles[userID] = role
	return nil
}

func (m *memDirectory) RoleOf(_ context.Context, userID string) (auth.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.roles[userID]; ok {
		return r, nil
	}
	return auth.RoleUser, nil
}

type testEnv struct {
	app     *fiber.App
	weather *fakeWeather
	dir     *memDirectory
	gate    *auth.Gate
	store   *assets.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, func(*Deps) {})
}

func newTestEnvWith(t *testing.T, adjust func(*Deps)) *testEnv {
	t.Helper()

	w := &fakeWeather{}
	dir := newMemDirectory()
	gate := auth.NewGate(dir, session.NewMemoryStore(time.Hour))
	store := assets.NewStore(assets.NewAferoBackend(afero.NewMemMapFs(), "/objects"), nil, assets.Config{
		Namespace:    "pizarra",
		PublicBase:   "/storage",
		FallbackPath: "/pizarra2011.png",
		MaxBytes:     64,
	})
	view := dashboard.NewView(w, fakeNews{}, store, dashboard.Config{})

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	deps := Deps{
		Weather:        w,
		News:           fakeNews{},
		Assets:         store,
		Gate:           gate,
		View:           view,
		ServiceRoleKey: "service-key",
	}
	adjust(&deps)
	RegisterRoutes(app, deps)
	return &testEnv{app: app, weather: w, dir: dir, gate: gate, store: store}
}

func (e *testEnv) do(t *testing.T, req *http.Request) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := e.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body := map[string]interface{}{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	}
	return resp, body
}

func jsonRequest(method, target string, v interface{}) *http.Request {
	var body io.Reader
	if v != nil {
		b, _ := json.Marshal(v)
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, body)
	if v != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	return req
}

func (e *testEnv) signIn(t *testing.T, email, password string) string {
	t.Helper()
	resp, body := e.do(t, jsonRequest(http.MethodPost, "/api/v1/auth/sign-in", map[string]string{
		"email": email, "password": password,
	}))
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	return body["token"].(string)
}

func uploadRequest(t *testing.T, token, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="board"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/pizarra", &buf)
	req.Header.Set(fiber.HeaderContentType, mw.FormDataContentType())
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	return req
}

func TestWeatherEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, jsonRequest(http.MethodPost, "/api/v1/weather", map[string]float64{"lat": -31.4, "lon": -64.2}))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	for _, key := range []string{"weather", "forecast", "location", "timestamp"} {
		assert.Contains(t, body, key)
	}
	assert.Equal(t, "Río Tercero", body["location"])
	require.NotNil(t, env.weather.got.Lat)
	assert.Equal(t, -31.4, *env.weather.got.Lat)

	resp, _ = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/weather", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, env.weather.got.Lat, "omitted coordinates stay nil for the service defaults")
}

func TestWeatherEndpointErrors(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/weather?lat=120", nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "error")

	resp, _ = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/weather?lat=north", nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	env.weather.err = &weather.UpstreamError{Op: "credentials", Err: weather.ErrMissingAPIKey}
	resp, body = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/weather", nil))
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, body["error"], "api key")
}

func TestNewsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/news", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items, ok := body["noticias"].([]interface{})
	require.True(t, ok)
	assert.Len(t, items, 2)
	assert.Contains(t, body, "timestamp")
}

func TestPizarraUploadGate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.dir.CreateUser(ctx, "user@example.com", "password1")
	require.NoError(t, err)
	_, err = env.gate.ProvisionAdmin(ctx, "admin@example.com", "password2")
	require.NoError(t, err)

	resp, _ := env.do(t, uploadRequest(t, "", "image/png", []byte("png")))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	userToken := env.signIn(t, "user@example.com", "password1")
	resp, _ = env.do(t, uploadRequest(t, userToken, "image/png", []byte("png")))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/pizarra", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/pizarra2011.png", body["url"])

	adminToken := env.signIn(t, "admin@example.com", "password2")
	resp, body = env.do(t, uploadRequest(t, adminToken, "image/png", []byte("png-bytes")))
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.True(t, strings.HasPrefix(body["url"].(string), "/storage/pizarra/pizarra-"))

	_, body = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/pizarra", nil))
	current := body["url"].(string)
	assert.True(t, strings.HasPrefix(current, "/storage/pizarra/"))

	path := current[:strings.Index(current, "?")]
	resp, err = env.app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "png-bytes", string(raw))
}

func TestPizarraUploadErrors(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.gate.ProvisionAdmin(context.Background(), "admin@example.com", "password2")
	require.NoError(t, err)
	token := env.signIn(t, "admin@example.com", "password2")

	resp, _ := env.do(t, uploadRequest(t, token, "image/gif", []byte("gif")))
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)

	resp, _ = env.do(t, uploadRequest(t, token, "image/jpeg", bytes.Repeat([]byte{1}, 65)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	resp, _ = env.do(t, uploadRequest(t, token, "image/jpeg", bytes.Repeat([]byte{1}, 64)))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestStorageOnlyServesOwnNamespace(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, httptest.NewRequest(http.MethodGet, "/storage/other/a.png", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = env.do(t, httptest.NewRequest(http.MethodGet, "/storage/pizarra/missing.png", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.dir.CreateUser(context.Background(), "user@example.com", "password1")
	require.NoError(t, err)

	resp, _ := env.do(t, jsonRequest(http.MethodPost, "/api/v1/auth/sign-in", map[string]string{
		"email": "user@example.com", "password": "wrong",
	}))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, jsonRequest(http.MethodPost, "/api/v1/auth/sign-in", map[string]string{
		"email": "not-an-email", "password": "x",
	}))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := env.do(t, jsonRequest(http.MethodPost, "/api/v1/auth/sign-in", map[string]string{
		"email": "user@example.com", "password": "password1",
	}))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, body["token"], cookie.Value)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: cookie.Value})
	_, body = env.do(t, req)
	p := body["principal"].(map[string]interface{})
	assert.Equal(t, true, p["isAuthenticated"])
	assert.Equal(t, "user", p["role"])
	assert.Equal(t, false, p["isAdmin"])

	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/sign-out", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+cookie.Value)
	resp, _ = env.do(t, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/auth/session", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+cookie.Value)
	_, body = env.do(t, req)
	p = body["principal"].(map[string]interface{})
	assert.Equal(t, false, p["isAuthenticated"])
	assert.Equal(t, "anonymous", p["role"])
}

func TestProvisionAdminEndpoint(t *testing.T) {
	env := newTestEnv(t)
	payload := map[string]string{"email": "boss@example.com", "password": "longenough"}

	req := jsonRequest(http.MethodPost, "/api/v1/auth/admins", payload)
	req.Header.Set("X-Service-Key", "wrong")
	resp, _ := env.do(t, req)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req = jsonRequest(http.MethodPost, "/api/v1/auth/admins", payload)
	req.Header.Set("X-Service-Key", "service-key")
	resp, body := env.do(t, req)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "admin", body["role"])

	token := env.signIn(t, "boss@example.com", "longenough")
	req = httptest.NewRequest(http.MethodGet, "/api/v1/auth/session", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	_, body = env.do(t, req)
	assert.Equal(t, true, body["principal"].(map[string]interface{})["isAdmin"])
}

func TestRadarEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/radar/refresh", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	notice := body["notice"].(map[string]interface{})
	assert.Equal(t, "success", notice["kind"])

	_, body = env.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/radar/news/prev", nil))
	assert.Equal(t, float64(1), body["newsIndex"])
	_, body = env.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/radar/news/next?index=1", nil))
	assert.Equal(t, float64(0), body["newsIndex"])

	// Clients hold their own position; the shared rotation does not move.
	_, body = env.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/radar/news/next", nil))
	assert.Equal(t, float64(1), body["newsIndex"])
	_, body = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/radar", nil))
	assert.Equal(t, float64(0), body["newsIndex"])

	resp, _ = env.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/radar/news/next?index=x", nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	env.weather.err = fmt.Errorf("boom")
	_, body = env.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/radar/refresh", nil))
	notice = body["notice"].(map[string]interface{})
	assert.Equal(t, "error", notice["kind"])
	state := body["state"].(map[string]interface{})
	assert.NotNil(t, state["weather"], "last good weather is kept")

	resp, body = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/radar", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["noticias"], 2)
}

func sessionCookieOf(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	return nil
}

func TestSessionCookieSecureFlag(t *testing.T) {
	signIn := map[string]string{"email": "user@example.com", "password": "password1"}

	plain := newTestEnv(t)
	_, err := plain.dir.CreateUser(context.Background(), "user@example.com", "password1")
	require.NoError(t, err)
	resp, _ := plain.do(t, jsonRequest(http.MethodPost, "/api/v1/auth/sign-in", signIn))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cookie := sessionCookieOf(resp)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.False(t, cookie.Secure)

	secure := newTestEnvWith(t, func(d *Deps) { d.SecureCookies = true })
	_, err = secure.dir.CreateUser(context.Background(), "user@example.com", "password1")
	require.NoError(t, err)
	resp, _ = secure.do(t, jsonRequest(http.MethodPost, "/api/v1/auth/sign-in", signIn))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cookie = sessionCookieOf(resp)
	require.NotNil(t, cookie)
	assert.True(t, cookie.Secure)

	resp, _ = secure.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/auth/sign-out", nil))
	cookie = sessionCookieOf(resp)
	require.NotNil(t, cookie)
	assert.True(t, cookie.Secure)
}

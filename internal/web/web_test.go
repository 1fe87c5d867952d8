package web

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imobiliaria/web/internal/client"
	"imobiliaria/web/internal/database"
	"imobiliaria/web/internal/fakeapi"
	"imobiliaria/web/internal/media"
	"imobiliaria/web/internal/models"
	"imobiliaria/web/internal/session"
)

type fixture struct {
	t         *testing.T
	api       *fakeapi.Server
	apiServer *httptest.Server
	apiURL    string
	db        *database.Database
	cookies   sessions.Store
	logger    *logrus.Logger
	site      *httptest.Server
	browser   *http.Client

	admin  models.User
	broker models.User
	buyer  models.User
	house  models.Property
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	api := fakeapi.New("test-secret")
	apiServer := httptest.NewServer(api)
	t.Cleanup(apiServer.Close)

	db, err := database.NewTestDB()
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { db.Close() })

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	f := &fixture{
		t:         t,
		api:       api,
		apiServer: apiServer,
		apiURL:    apiServer.URL + "/api",
		db:        db,
		cookies:   sessions.NewCookieStore([]byte("0123456789abcdef0123456789abcdef")),
		logger:    logger,
		browser: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		admin:  api.AddUser("Admin", "admin@example.com", "secret1", models.RoleAdmin),
		broker: api.AddUser("Bruna Broker", "broker@example.com", "secret1", models.RoleBroker),
		buyer:  api.AddUser("Carlos Client", "client@example.com", "secret1", models.RoleClient),
	}
	f.house = api.AddProperty(models.Property{
		Name:     "Casa na Praia",
		Type:     models.CategoryHouse,
		Value:    450000,
		Bedrooms: 3,
		City:     "Florianópolis",
		Active:   true,
		BrokerID: f.broker.ID,
	})
	f.site = f.start(media.NewUploader("", "", logger))
	return f
}

// start serves a fresh site backed by the fixture's database and cookie secret.
func (f *fixture) start(uploader *media.Uploader) *httptest.Server {
	manager := session.NewManager(f.db, f.logger)
	api := client.NewClient(f.apiURL, nil, f.logger)
	handler := NewHandler(api, manager, f.cookies, uploader, Options{}, f.logger)

	router := gin.New()
	SetupRoutes(router, handler, nil)

	site := httptest.NewServer(router)
	f.t.Cleanup(site.Close)
	return site
}

func (f *fixture) get(path string) (*http.Response, string) {
	f.t.Helper()
	resp, err := f.browser.Get(f.site.URL + path)
	require.NoError(f.t, err)
	return resp, readBody(f.t, resp)
}

func (f *fixture) post(path string, form url.Values) (*http.Response, string) {
	f.t.Helper()
	resp, err := f.browser.PostForm(f.site.URL+path, form)
	require.NoError(f.t, err)
	return resp, readBody(f.t, resp)
}

func (f *fixture) login(email string) {
	f.t.Helper()
	resp, _ := f.post("/", url.Values{"email": {email}, "password": {"secret1"}})
	require.Equal(f.t, http.StatusFound, resp.StatusCode)
	require.Equal(f.t, "/home", resp.Header.Get("Location"))
}

// sessionCookie returns the browser's current auth-storage cookie.
func (f *fixture) sessionCookie() *http.Cookie {
	f.t.Helper()
	siteURL, err := url.Parse(f.site.URL)
	require.NoError(f.t, err)
	for _, c := range f.browser.Jar.Cookies(siteURL) {
		if c.Name == "auth-storage" {
			return c
		}
	}
	f.t.Fatal("browser holds no auth-storage cookie")
	return nil
}

// replay requests path from a different client that only carries cookie.
func (f *fixture) replay(path string, cookie *http.Cookie) *http.Response {
	f.t.Helper()
	req, err := http.NewRequest(http.MethodGet, f.site.URL+path, nil)
	require.NoError(f.t, err)
	req.AddCookie(cookie)

	other := &http.Client{CheckRedirect: f.browser.CheckRedirect}
	resp, err := other.Do(req)
	require.NoError(f.t, err)
	readBody(f.t, resp)
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func TestProtectedViewsRedirectAnonymousBrowsers(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/home", "/properties", "/favorites", "/user", fmt.Sprintf("/property/%d", f.house.ID)} {
		t.Run(path, func(t *testing.T) {
			resp, _ := f.get(path)
			assert.Equal(t, http.StatusFound, resp.StatusCode)
			assert.Equal(t, "/", resp.Header.Get("Location"))
		})
	}

	requests := f.api.Requests()
	resp, _ := f.post(fmt.Sprintf("/property/%d/delete", f.house.ID), nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, requests, f.api.Requests(), "guarded views must not call the API")
}

func TestLoginFlow(t *testing.T) {
	f := newFixture(t)

	resp, body := f.get("/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Sign in")

	f.login(f.buyer.Email)

	resp, body = f.get("/home")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Casa na Praia")
	assert.Contains(t, body, "Favorites")
	assert.NotContains(t, body, "New listing")

	resp, _ = f.get("/")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/home", resp.Header.Get("Location"))
}

func TestLoginRejected(t *testing.T) {
	f := newFixture(t)

	resp, body := f.post("/", url.Values{"email": {f.buyer.Email}, "password": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, `class="error"`)

	resp, _ = f.get("/home")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestLoginRequiresBothFields(t *testing.T) {
	f := newFixture(t)

	requests := f.api.Requests()
	resp, body := f.post("/", url.Values{"email": {f.buyer.Email}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "Email and password are required")
	assert.Equal(t, requests, f.api.Requests())
}

func TestRegisterRedirectsToLogin(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.post("/register", url.Values{
		"name":     {"Nova Pessoa"},
		"email":    {"nova@example.com"},
		"password": {"secret1"},
	})
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	f.login("nova@example.com")
}

func TestLogoutClearsSession(t *testing.T) {
	f := newFixture(t)
	f.login(f.buyer.Email)

	resp, _ := f.post("/logout", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	resp, _ = f.get("/home")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
}

func TestLoginIssuesFreshSessionKey(t *testing.T) {
	f := newFixture(t)
	f.get("/")
	anonymous := f.sessionCookie()

	f.login(f.buyer.Email)
	assert.NotEqual(t, anonymous.Value, f.sessionCookie().Value)

	resp := f.replay("/user", anonymous)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	resp, _ = f.get("/user")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var count int64
	require.NoError(t, f.db.GetDB().Model(&database.SessionRecord{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestLogoutIssuesFreshSessionKey(t *testing.T) {
	f := newFixture(t)
	f.login(f.buyer.Email)
	authenticated := f.sessionCookie()

	f.post("/logout", nil)
	assert.NotEqual(t, authenticated.Value, f.sessionCookie().Value)

	resp := f.replay("/home", authenticated)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
}

func TestLoginFailure(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantText   string
	}{
		{"malformed token", fmt.Errorf("%w: missing subject id", session.ErrMalformedToken), http.StatusBadGateway, "unusable token"},
		{"expired token", fmt.Errorf("%w at 2020-01-01T00:00:00Z", session.ErrTokenExpired), http.StatusBadGateway, "unusable token"},
		{"storage failure", errors.New("database is locked"), http.StatusInternalServerError, "could not be saved"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, text := loginFailure(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Contains(t, text, tt.wantText)
		})
	}
}

func TestSessionSurvivesRestart(t *testing.T) {
	f := newFixture(t)
	f.login(f.broker.Email)

	f.site = f.start(media.NewUploader("", "", f.logger))

	resp, body := f.get("/home")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "My listings")
}

func TestRejectedTokenLogsOut(t *testing.T) {
	f := newFixture(t)
	f.login(f.buyer.Email)

	err := f.db.GetDB().Model(&database.SessionRecord{}).Where("1 = 1").Update("token", "revoked").Error
	require.NoError(t, err)

	resp, _ := f.get("/home")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	var count int64
	require.NoError(t, f.db.GetDB().Model(&database.SessionRecord{}).Count(&count).Error)
	assert.Zero(t, count)

	resp, _ = f.get("/home")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestFavorites(t *testing.T) {
	f := newFixture(t)
	f.login(f.buyer.Email)
	path := fmt.Sprintf("/property/%d", f.house.ID)

	_, body := f.get(path)
	assert.Contains(t, body, "Add to favorites")
	assert.NotContains(t, body, "Manage listing")

	resp, _ := f.post(path+"/favorite", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, path, resp.Header.Get("Location"))

	_, body = f.get(path)
	assert.Contains(t, body, "Remove from favorites")

	_, body = f.get("/favorites")
	assert.Contains(t, body, "Casa na Praia")

	resp, _ = f.post(path+"/unfavorite", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	_, body = f.get("/favorites")
	assert.NotContains(t, body, "Casa na Praia")
}

func TestOwnerManagesListing(t *testing.T) {
	f := newFixture(t)
	f.login(f.broker.Email)
	path := fmt.Sprintf("/property/%d", f.house.ID)

	_, body := f.get(path)
	assert.Contains(t, body, "Manage listing")
	assert.NotContains(t, body, "Add to favorites")

	resp, _ := f.post(path+"/edit", url.Values{"name": {"Casa Reformada"}, "value": {"500000"}})
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	_, body = f.get(path)
	assert.Contains(t, body, "Casa Reformada")
	assert.Contains(t, body, "R$ 500.000,00")

	resp, _ = f.post(path+"/status", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	_, body = f.get(path)
	assert.Contains(t, body, "Inactive")

	resp, _ = f.post(path+"/delete", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/home", resp.Header.Get("Location"))

	resp, _ = f.get(path)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEditRejectsEmptyForm(t *testing.T) {
	f := newFixture(t)
	f.login(f.broker.Email)

	resp, body := f.post(fmt.Sprintf("/property/%d/edit", f.house.ID), url.Values{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "nothing to update")
}

func TestForeignBrokerCannotManage(t *testing.T) {
	f := newFixture(t)
	f.api.AddUser("Other Broker", "other@example.com", "secret1", models.RoleBroker)
	f.login("other@example.com")
	path := fmt.Sprintf("/property/%d", f.house.ID)

	_, body := f.get(path)
	assert.NotContains(t, body, "Manage listing")

	resp, body := f.post(path+"/delete", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, body, `class="error"`)
}

func TestCreatePropertyWithImages(t *testing.T) {
	f := newFixture(t)

	cloud := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fmt.Fprintf(w, `{"secure_url":"https://img.test/%s"}`, header.Filename)
	}))
	defer cloud.Close()
	f.site = f.start(media.NewUploader("demo", "listings", f.logger).WithEndpoint(cloud.URL, cloud.Client()))
	f.login(f.broker.Email)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	for k, v := range map[string]string{
		"name":     "Apartamento Centro",
		"type":     string(models.CategoryApartment),
		"value":    "320000",
		"bedrooms": "2",
		"city":     "Curitiba",
	} {
		require.NoError(t, form.WriteField(k, v))
	}
	for _, name := range []string{"sala.jpg", "quarto.jpg"} {
		part, err := form.CreateFormFile("images", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("jpeg"))
		require.NoError(t, err)
	}
	require.NoError(t, form.Close())

	req, err := http.NewRequest(http.MethodPost, f.site.URL+"/property", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", form.FormDataContentType())
	resp, err := f.browser.Do(req)
	require.NoError(t, err)
	readBody(t, resp)
	require.Equal(t, http.StatusFound, resp.StatusCode)

	location := resp.Header.Get("Location")
	assert.True(t, strings.HasPrefix(location, "/property/"))

	_, page := f.get(location)
	assert.Contains(t, page, "Apartamento Centro")
	assert.Contains(t, page, "https://img.test/sala.jpg")
	assert.Contains(t, page, "https://img.test/quarto.jpg")
}

func TestClientCannotCreateProperty(t *testing.T) {
	f := newFixture(t)
	f.login(f.buyer.Email)

	resp, body := f.post("/property", url.Values{
		"name":  {"Terreno"},
		"type":  {string(models.CategoryLand)},
		"value": {"1000"},
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, body, `class="error"`)
}

func TestMyPropertiesFiltersLocally(t *testing.T) {
	f := newFixture(t)
	f.api.AddProperty(models.Property{Name: "Sala Comercial", Type: models.CategoryApartment, Value: 90000, Active: true, BrokerID: f.broker.ID})
	f.login(f.broker.Email)

	_, body := f.get("/properties")
	assert.Contains(t, body, "Casa na Praia")
	assert.Contains(t, body, "Sala Comercial")

	_, body = f.get("/properties?name=sala")
	assert.NotContains(t, body, "Casa na Praia")
	assert.Contains(t, body, "Sala Comercial")
}

func TestHomePagination(t *testing.T) {
	f := newFixture(t)
	for i := 1; i <= 12; i++ {
		f.api.AddProperty(models.Property{Name: fmt.Sprintf("Lote %02d", i), Type: models.CategoryLand, Value: float64(i * 1000), Active: true, BrokerID: f.broker.ID})
	}
	f.login(f.buyer.Email)

	_, body := f.get("/home?type=TERRENO")
	assert.Contains(t, body, "Page 1 of 2")
	assert.Contains(t, body, "Next")
	assert.NotContains(t, body, "Casa na Praia")

	_, body = f.get("/home?type=TERRENO&page=1")
	assert.Contains(t, body, "Page 2 of 2")
	assert.Contains(t, body, "Previous")
}

func TestHomeWithUnreachableAPI(t *testing.T) {
	f := newFixture(t)
	f.login(f.buyer.Email)
	f.apiServer.Close()

	resp, body := f.get("/home")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Failed to load properties")
	assert.NotContains(t, body, "Previous")
	assert.NotContains(t, body, "page=-1")
	assert.NotContains(t, body, "Page 1 of 0")
}

func TestClearFiltersLink(t *testing.T) {
	f := newFixture(t)
	f.login(f.broker.Email)

	_, body := f.get("/home")
	assert.NotContains(t, body, "Clear filters")

	_, body = f.get("/home?name=casa")
	assert.Contains(t, body, "Clear filters")

	_, body = f.get("/properties?minBedrooms=2")
	assert.Contains(t, body, "Clear filters")
}

func TestProfileUpdate(t *testing.T) {
	f := newFixture(t)
	f.login(f.buyer.Email)

	resp, body := f.post("/user", url.Values{"password": {"abcdef"}, "confirmPassword": {"abcdeg"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "Passwords do not match")

	resp, body = f.post("/user", url.Values{"name": {"Carlos Souza"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Profile updated")
	assert.Contains(t, body, "Carlos Souza")
}

func TestCreateUserRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	form := url.Values{
		"name":     {"Novo Corretor"},
		"email":    {"novo@example.com"},
		"password": {"secret1"},
		"role":     {string(models.RoleBroker)},
	}

	f.login(f.broker.Email)
	resp, body := f.post("/user/create", form)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, body, "access denied: only administrators can create users")

	f.post("/logout", nil)
	f.login(f.admin.Email)
	resp, body = f.post("/user/create", form)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "User novo@example.com created")
}

func TestPropertyFormUpdate(t *testing.T) {
	tests := []struct {
		name    string
		form    PropertyForm
		wantErr string
		check   func(t *testing.T, u models.PropertyUpdate)
	}{
		{
			name:    "empty",
			form:    PropertyForm{Name: "  "},
			wantErr: "nothing to update",
		},
		{
			name:    "bad type",
			form:    PropertyForm{Type: "CASTELO"},
			wantErr: "choose a property type",
		},
		{
			name:    "bad value",
			form:    PropertyForm{Value: "abc"},
			wantErr: "value must be a positive number",
		},
		{
			name: "only filled fields",
			form: PropertyForm{Name: "Casa", Bedrooms: "4"},
			check: func(t *testing.T, u models.PropertyUpdate) {
				require.NotNil(t, u.Name)
				assert.Equal(t, "Casa", *u.Name)
				require.NotNil(t, u.Bedrooms)
				assert.Equal(t, 4, *u.Bedrooms)
				assert.Nil(t, u.Value)
				assert.Nil(t, u.City)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := tt.form.Update()
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, u)
		})
	}
}

func TestPropertyFormCreate(t *testing.T) {
	_, err := PropertyForm{Name: "Casa", Type: "CASA", Value: "-1"}.Create()
	assert.Error(t, err)

	data, err := PropertyForm{Name: " Casa ", Type: "CASA", Value: "100.5", Area: "80"}.Create()
	require.NoError(t, err)
	assert.Equal(t, "Casa", data.Name)
	assert.Equal(t, 100.5, data.Value)
	assert.Equal(t, 80, data.Area)
	assert.Zero(t, data.Bedrooms)
}

func TestProfileFormUpdate(t *testing.T) {
	tests := []struct {
		name        string
		form        ProfileForm
		wantProblem string
		want        models.UserUpdate
	}{
		{"mismatch", ProfileForm{Password: "abcdef", ConfirmPassword: "abcdex"}, "Passwords do not match", models.UserUpdate{}},
		{"too short", ProfileForm{Password: "abc", ConfirmPassword: "abc"}, "Password must be at least 6 characters", models.UserUpdate{}},
		{"nothing", ProfileForm{}, "Nothing to update", models.UserUpdate{}},
		{"name only", ProfileForm{Name: "Ana"}, "", models.UserUpdate{Name: "Ana"}},
		{"password", ProfileForm{Password: "abcdef", ConfirmPassword: "abcdef"}, "", models.UserUpdate{Password: "abcdef"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, problem := tt.form.Update()
			assert.Equal(t, tt.wantProblem, problem)
			if tt.wantProblem == "" {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestFormatBRL(t *testing.T) {
	tests := map[float64]string{
		0:          "R$ 0,00",
		999.5:      "R$ 999,50",
		1000:       "R$ 1.000,00",
		1250000.75: "R$ 1.250.000,75",
		-42:        "-R$ 42,00",
	}
	for in, want := range tests {
		assert.Equal(t, want, formatBRL(in))
	}
}

func TestPageURL(t *testing.T) {
	q := url.Values{"name": {"casa"}, "page": {"3"}}
	assert.Equal(t, "/home?name=casa&page=4", pageURL("/home", q, 4))
}

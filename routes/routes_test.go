package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"bikes-api/config"
	"bikes-api/database/dbtest"
	"bikes-api/models"
	"bikes-api/repositories"
	"bikes-api/services"
)

var siteURL, _ = url.Parse("http://example.com/")

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	services.PasswordCost = bcrypt.MinCost
	m.Run()
}

type mailbox struct {
	mu    sync.Mutex
	links []string
}

func (m *mailbox) SendResetPasswordInstructions(email, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = append(m.links, link)
	return nil
}

func (m *mailbox) SendPasswordChanged(email string) error { return nil }

func (m *mailbox) lastLink() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.links) == 0 {
		return ""
	}
	return m.links[len(m.links)-1]
}

// browser drives the router like a user agent: it keeps cookies between
// requests but never follows redirects.
type browser struct {
	t       *testing.T
	handler http.Handler
	db      *gorm.DB
	mail    *mailbox
	jar     *cookiejar.Jar
	log     *logrus.Logger
}

func newBrowser(t *testing.T, configure ...func(*config.Config)) *browser {
	t.Helper()

	cfg := config.Default()
	for _, fn := range configure {
		fn(cfg)
	}
	log, _ := test.NewNullLogger()
	db := dbtest.Open(t)
	mail := &mailbox{}

	handler, err := NewRouter(Dependencies{
		Config:   cfg,
		Log:      log,
		DB:       db,
		Sessions: repositories.NewSessionRepository(db),
		Mailer:   mail,
	})
	require.NoError(t, err)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &browser{t: t, handler: handler, db: db, mail: mail, jar: jar, log: log}
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range b.jar.Cookies(siteURL) {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	b.handler.ServeHTTP(w, req)
	b.jar.SetCookies(siteURL, w.Result().Cookies())
	return w
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (b *browser) getJSON(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Accept", "application/json")
	return b.do(req)
}

func (b *browser) submit(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) sendJSON(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return b.do(req)
}

func (b *browser) cookie(name string) string {
	for _, c := range b.jar.Cookies(siteURL) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func (b *browser) register(email, password string) *models.User {
	b.t.Helper()
	auth := services.NewAuthService(repositories.NewUserRepository(b.db), b.mail, "http://example.com", b.log)
	user, err := auth.Register(context.Background(), email, password, password)
	require.NoError(b.t, err)
	return user
}

func (b *browser) signIn(email, password string) *httptest.ResponseRecorder {
	return b.submit("/users/sign_in", url.Values{
		"user[email]":    {email},
		"user[password]": {password},
	})
}

func (b *browser) bikeCount() int64 {
	n, err := repositories.NewBikeRepository(b.db).Count(context.Background())
	require.NoError(b.t, err)
	return n
}

func (b *browser) addBike(brand, model string, year int) *models.Bike {
	bike := &models.Bike{Brand: brand, Model: model, ModelYear: year}
	require.NoError(b.t, repositories.NewBikeRepository(b.db).Create(context.Background(), bike))
	return bike
}

func TestPing(t *testing.T) {
	b := newBrowser(t)
	w := b.get("/ping")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pong")
}

func TestAnonymousHTMLBikeRoutesRedirectToSignIn(t *testing.T) {
	b := newBrowser(t)
	bike := b.addBike("Honda", "CB500F", 2021)

	for _, path := range []string{"/bikes", "/bikes/new", bike.Path(), bike.Path() + "/edit"} {
		w := b.get(path)
		assert.Equal(t, http.StatusFound, w.Code, path)
		assert.Equal(t, "/users/sign_in", w.Header().Get("Location"), path)
	}

	w := b.submit("/bikes", url.Values{"bike[brand]": {"Yamaha"}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.EqualValues(t, 1, b.bikeCount())
}

func TestJSONListingIsPublic(t *testing.T) {
	b := newBrowser(t)
	b.addBike("Honda", "CB500F", 2021)
	b.addBike("Ducati", "Monster", 2019)

	for _, w := range []*httptest.ResponseRecorder{b.get("/bikes.json"), b.getJSON("/bikes")} {
		require.Equal(t, http.StatusOK, w.Code)

		var bikes []map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bikes))
		require.Len(t, bikes, 2)
		assert.Equal(t, "Honda", bikes[0]["brand"])
		assert.Equal(t, "CB500F", bikes[0]["model"])
		assert.EqualValues(t, 2021, bikes[0]["model_year"])
		assert.Equal(t, fmt.Sprintf("/bikes/%v.json", bikes[0]["id"]), bikes[0]["url"])
	}
}

func TestSignInReturnsToRequestedPage(t *testing.T) {
	b := newBrowser(t)
	b.register("rider@example.com", "secret123")

	b.get("/bikes")
	w := b.signIn("rider@example.com", "secret123")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/bikes", w.Header().Get("Location"))
	assert.NotEmpty(t, b.cookie(services.SessionCookieName))

	w = b.get("/bikes")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Signed in successfully.")
	assert.Contains(t, w.Body.String(), "rider@example.com")
}

func TestSignInRejectsBadPassword(t *testing.T) {
	b := newBrowser(t)
	b.register("rider@example.com", "secret123")

	w := b.signIn("rider@example.com", "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid Email or password.")
	assert.Empty(t, b.cookie(services.SessionCookieName))
}

func TestCreateBikeThroughForm(t *testing.T) {
	b := newBrowser(t)
	user := b.register("rider@example.com", "secret123")
	b.signIn("rider@example.com", "secret123")

	before := b.bikeCount()
	w := b.submit("/bikes", url.Values{
		"bike[brand]":      {"Kawasaki"},
		"bike[model]":      {"Z900"},
		"bike[model_year]": {"2022"},
	})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, before+1, b.bikeCount())

	bikes, err := repositories.NewBikeRepository(b.db).List(context.Background())
	require.NoError(t, err)
	created := bikes[len(bikes)-1]
	assert.Equal(t, created.Path(), w.Header().Get("Location"))
	assert.Equal(t, user.ID, created.UserID)
	assert.Equal(t, 2022, created.ModelYear)

	w = b.get(created.Path())
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Bike was successfully created.")
	assert.Contains(t, w.Body.String(), "Z900")
}

func TestCreateBikeRejectsNonNumericYear(t *testing.T) {
	b := newBrowser(t)
	b.register("rider@example.com", "secret123")
	b.signIn("rider@example.com", "secret123")

	w := b.submit("/bikes", url.Values{"bike[brand]": {"BMW"}, "bike[model_year]": {"soon"}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Model year is not a number")
	assert.Contains(t, w.Body.String(), `value="soon"`)
	assert.EqualValues(t, 0, b.bikeCount())
}

func TestUpdateBikeThroughMethodOverride(t *testing.T) {
	b := newBrowser(t)
	b.register("rider@example.com", "secret123")
	b.signIn("rider@example.com", "secret123")
	bike := b.addBike("Honda", "CB500F", 2021)

	w := b.submit(bike.Path(), url.Values{"_method": {"patch"}, "bike[model]": {"CB650R"}})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, bike.Path(), w.Header().Get("Location"))

	got, err := repositories.NewBikeRepository(b.db).Get(context.Background(), bike.ID)
	require.NoError(t, err)
	assert.Equal(t, "CB650R", got.Model)
	assert.Equal(t, "Honda", got.Brand)
	assert.Equal(t, 2021, got.ModelYear)
}

func TestDestroyBikeThroughMethodOverride(t *testing.T) {
	b := newBrowser(t)
	b.register("rider@example.com", "secret123")
	b.signIn("rider@example.com", "secret123")
	bike := b.addBike("Honda", "CB500F", 2021)
	b.addBike("Ducati", "Monster", 2019)

	before := b.bikeCount()
	w := b.submit(bike.Path(), url.Values{"_method": {"delete"}})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/bikes", w.Header().Get("Location"))
	assert.Equal(t, before-1, b.bikeCount())

	w = b.get("/bikes")
	assert.Contains(t, w.Body.String(), "Bike was successfully destroyed.")
	assert.Equal(t, 1, strings.Count(w.Body.String(), `<tr class="bike">`))
}

func TestEditAndMissingBikePages(t *testing.T) {
	b := newBrowser(t)
	b.register("rider@example.com", "secret123")
	b.signIn("rider@example.com", "secret123")
	bike := b.addBike("Honda", "CB500F", 2021)

	w := b.get(bike.Path() + "/edit")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `value="CB500F"`)
	assert.Contains(t, w.Body.String(), `name="_method" value="patch"`)

	w = b.get("/bikes/new")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Create Bike")

	assert.Equal(t, http.StatusNotFound, b.get("/bikes/999").Code)
	assert.Equal(t, http.StatusNotFound, b.get("/bikes/abc").Code)
}

func TestJSONBikeLifecycleWithoutSession(t *testing.T) {
	b := newBrowser(t)

	w := b.sendJSON(http.MethodPost, "/bikes.json", `{"bike": {"brand": "Triumph", "model": "Bonneville", "model_year": 2020, "user_id": 3}}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	id := created["id"]
	assert.Equal(t, fmt.Sprintf("/bikes/%v", id), w.Header().Get("Location"))
	assert.EqualValues(t, 3, created["user_id"])

	path := fmt.Sprintf("/bikes/%v.json", id)
	w = b.sendJSON(http.MethodPatch, path, `{"model_year": "2021"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"model_year":2021`)
	assert.Contains(t, w.Body.String(), `"brand":"Triumph"`)

	w = b.get(path)
	assert.Equal(t, http.StatusOK, w.Code)

	w = b.sendJSON(http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.EqualValues(t, 0, b.bikeCount())

	w = b.get(path)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error": "Not Found"}`, w.Body.String())
}

func TestJSONRejectsNonNumericFields(t *testing.T) {
	b := newBrowser(t)

	w := b.sendJSON(http.MethodPost, "/bikes.json", `{"brand": "KTM", "model_year": "new", "user_id": "me"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"errors": {"model_year": ["is not a number"], "user_id": ["is not a number"]}}`, w.Body.String())

	w = b.sendJSON(http.MethodPost, "/bikes.json", `{"brand": `)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.EqualValues(t, 0, b.bikeCount())
}

func TestFormPagesAreNotAcceptableAsJSON(t *testing.T) {
	b := newBrowser(t)
	assert.Equal(t, http.StatusNotAcceptable, b.getJSON("/bikes/new").Code)
}

func TestSignOutInvalidatesCookie(t *testing.T) {
	b := newBrowser(t)
	b.register("rider@example.com", "secret123")
	b.signIn("rider@example.com", "secret123")
	stolen := b.cookie(services.SessionCookieName)
	require.NotEmpty(t, stolen)

	w := b.submit("/users/sign_out", url.Values{"_method": {"delete"}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	assert.Empty(t, b.cookie(services.SessionCookieName))

	req := httptest.NewRequest(http.MethodGet, "/bikes", nil)
	req.AddCookie(&http.Cookie{Name: services.SessionCookieName, Value: stolen})
	w = httptest.NewRecorder()
	b.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/users/sign_in", w.Header().Get("Location"))
}

func TestCatchAllServesClientShell(t *testing.T) {
	b := newBrowser(t)

	w := b.get("/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Welcome to Bikes")

	w = b.get("/app/bikes")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/users/sign_in", w.Header().Get("Location"))

	w = b.getJSON("/app/bikes")
	assert.Equal(t, http.StatusNotFound, w.Code)

	b.register("rider@example.com", "secret123")
	b.signIn("rider@example.com", "secret123")

	w = b.get("/app/bikes")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `<div id="app"`)
	assert.Contains(t, w.Body.String(), `/assets/app.js`)

	w = b.get("/assets/app.js")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRegistration(t *testing.T) {
	b := newBrowser(t)
	b.register("taken@example.com", "secret123")

	w := b.submit("/users", url.Values{
		"user[email]":                 {"taken@example.com"},
		"user[password]":              {"secret123"},
		"user[password_confirmation]": {"secret123"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Email has already been taken")

	w = b.submit("/users", url.Values{
		"user[email]":                 {"new@example.com"},
		"user[password]":              {"secret123"},
		"user[password_confirmation]": {"secret123"},
	})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.NotEmpty(t, b.cookie(services.SessionCookieName))

	w = b.get("/users/sign_up")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestPasswordResetRoundTrip(t *testing.T) {
	b := newBrowser(t)
	b.register("rider@example.com", "secret123")

	w := b.submit("/users/password", url.Values{"user[email]": {"nobody@example.com"}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/users/sign_in", w.Header().Get("Location"))
	assert.Empty(t, b.mail.lastLink())

	w = b.submit("/users/password", url.Values{"user[email]": {"rider@example.com"}})
	assert.Equal(t, http.StatusFound, w.Code)
	link, err := url.Parse(b.mail.lastLink())
	require.NoError(t, err)
	token := link.Query().Get("reset_password_token")
	require.NotEmpty(t, token)

	w = b.get(link.RequestURI())
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), token)

	w = b.submit("/users/password", url.Values{
		"_method":                     {"put"},
		"user[reset_password_token]":  {"bogus"},
		"user[password]":              {"newsecret"},
		"user[password_confirmation]": {"newsecret"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Reset password token is invalid")

	w = b.submit("/users/password", url.Values{
		"_method":                     {"put"},
		"user[reset_password_token]":  {token},
		"user[password]":              {"newsecret"},
		"user[password_confirmation]": {"newsecret"},
	})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, http.StatusOK, b.get("/bikes").Code)

	b.submit("/users/sign_out", url.Values{"_method": {"delete"}})
	assert.Equal(t, http.StatusUnauthorized, b.signIn("rider@example.com", "secret123").Code)
	assert.Equal(t, http.StatusFound, b.signIn("rider@example.com", "newsecret").Code)
}

func TestPasswordEditWithoutToken(t *testing.T) {
	b := newBrowser(t)
	w := b.get("/users/password/edit")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/users/sign_in", w.Header().Get("Location"))
}

func TestSignInIsRateLimited(t *testing.T) {
	b := newBrowser(t, func(cfg *config.Config) {
		cfg.SignInRatePerMinute = 1
		cfg.SignInBurst = 2
	})

	assert.Equal(t, http.StatusUnauthorized, b.signIn("a@example.com", "x").Code)
	assert.Equal(t, http.StatusUnauthorized, b.signIn("a@example.com", "x").Code)
	assert.Equal(t, http.StatusTooManyRequests, b.signIn("a@example.com", "x").Code)
}

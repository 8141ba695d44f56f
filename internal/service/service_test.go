package service

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gitlab.com/dirk.krummacker/contact-book/internal/config"
	"gitlab.com/dirk.krummacker/contact-book/internal/testutil"
	api "gitlab.com/dirk.krummacker/contact-book/pkg/model"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"
)

// testServer is a running contact book on an in-memory database.
type testServer struct {
	*httptest.Server
	db   *sqlx.DB
	logs *observer.ObservedLogs
}

// startServer starts the service with test settings.
func startServer(t *testing.T) *testServer {
	db := testutil.OpenDB(t)
	cfg := config.Defaults()
	cfg.DBDriver = "sqlite3"
	cfg.GinLogging = false
	cfg.SessionSecret = "0123456789abcdef"
	cfg.BcryptCost = bcrypt.MinCost
	cfg.MaxUploadMB = 1
	core, logs := observer.New(zap.InfoLevel)

	server, err := New(cfg, db, zap.New(core))
	require.NoError(t, err)
	gin.SetMode(gin.ReleaseMode)
	httpServer := httptest.NewServer(server.SetupHttpRouter())
	t.Cleanup(httpServer.Close)
	return &testServer{Server: httpServer, db: db, logs: logs}
}

// browser is an HTTP client with its own cookie jar. It does not follow redirects.
type browser struct {
	t      *testing.T
	server *testServer
	client *http.Client
}

func (s *testServer) newBrowser(t *testing.T) *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{t: t, server: s, client: &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}}
}

// do executes a request and returns the response with its body read.
func (b *browser) do(method string, path string, contentType string, body io.Reader) (*http.Response, []byte) {
	b.t.Helper()
	request, err := http.NewRequest(method, b.server.URL+path, body)
	require.NoError(b.t, err)
	if contentType != "" {
		request.Header.Set("Content-Type", contentType)
	}
	response, err := b.client.Do(request)
	require.NoError(b.t, err)
	defer response.Body.Close()
	data, err := io.ReadAll(response.Body)
	require.NoError(b.t, err)
	return response, data
}

// sendJSON executes a request with a JSON body and returns status and body.
func (b *browser) sendJSON(method string, path string, body string) (int, []byte) {
	b.t.Helper()
	response, data := b.do(method, path, "application/json", strings.NewReader(body))
	return response.StatusCode, data
}

// get executes a GET request and returns status and body.
func (b *browser) get(path string) (int, []byte) {
	b.t.Helper()
	response, data := b.do(http.MethodGet, path, "", nil)
	return response.StatusCode, data
}

// upload posts a file as the multipart field 'file'.
func (b *browser) upload(path string, filename string, content []byte) (int, []byte) {
	b.t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(b.t, err)
	_, err = part.Write(content)
	require.NoError(b.t, err)
	require.NoError(b.t, writer.Close())
	response, data := b.do(http.MethodPost, path, writer.FormDataContentType(), &body)
	return response.StatusCode, data
}

// signUp registers and logs in a new user.
func (b *browser) signUp(username string) api.Identity {
	b.t.Helper()
	credentials := `{"username": "` + username + `", "password": "pw"}`
	status, _ := b.sendJSON(http.MethodPost, "/register", credentials)
	require.Equal(b.t, http.StatusCreated, status)
	status, data := b.sendJSON(http.MethodPost, "/login", credentials)
	require.Equal(b.t, http.StatusOK, status)
	var identity api.Identity
	require.NoError(b.t, json.Unmarshal(data, &identity))
	return identity
}

// addContact creates a contact and returns it.
func (b *browser) addContact(body string) api.Contact {
	b.t.Helper()
	status, data := b.sendJSON(http.MethodPost, "/contacts", body)
	require.Equal(b.t, http.StatusCreated, status, string(data))
	var contact api.Contact
	require.NoError(b.t, json.Unmarshal(data, &contact))
	return contact
}

// message extracts the message of an error answer.
func message(t *testing.T, data []byte) string {
	var body api.Message
	require.NoError(t, json.Unmarshal(data, &body))
	return body.Message
}

// TestContactsRequireLogin expects anonymous callers to be sent to the login page.
func TestContactsRequireLogin(t *testing.T) {
	server := startServer(t)
	b := server.newBrowser(t)

	for _, path := range []string{"/contacts", "/contacts/1", "/contacts/export"} {
		response, _ := b.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusSeeOther, response.StatusCode, path)
		assert.Equal(t, "/login", response.Header.Get("Location"), path)
	}
	response, _ := b.do(http.MethodPost, "/contacts", "application/json", strings.NewReader(`{"name": "A", "phone": "1"}`))
	assert.Equal(t, http.StatusSeeOther, response.StatusCode)
	response, _ = b.do(http.MethodDelete, "/contacts/1", "", nil)
	assert.Equal(t, http.StatusSeeOther, response.StatusCode)
}

// TestRegisterLoginLogout walks a browser through the session states.
func TestRegisterLoginLogout(t *testing.T) {
	server := startServer(t)
	b := server.newBrowser(t)

	status, data := b.get("/login")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "please log in", message(t, data))

	status, data = b.sendJSON(http.MethodPost, "/register", `{"username": "bob", "password": "pw"}`)
	require.Equal(t, http.StatusCreated, status)
	var registered api.Identity
	require.NoError(t, json.Unmarshal(data, &registered))
	assert.Equal(t, "bob", registered.Username)
	assert.NotZero(t, registered.UserId)

	status, _ = b.sendJSON(http.MethodPost, "/register", `{"username": "bob", "password": "other"}`)
	assert.Equal(t, http.StatusConflict, status)
	status, data = b.sendJSON(http.MethodPost, "/register", `{"username": " ", "password": "pw"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, message(t, data), "username is required")
	status, _ = b.sendJSON(http.MethodPost, "/register", `{"username": `)
	assert.Equal(t, http.StatusBadRequest, status)

	// registering does not log in
	status, _ = b.get("/contacts")
	assert.Equal(t, http.StatusSeeOther, status)

	status, data = b.sendJSON(http.MethodPost, "/login", `{"username": "bob", "password": "wrongpw"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "invalid username or password", message(t, data))
	status, data = b.sendJSON(http.MethodPost, "/login", `{"username": "alice", "password": "pw"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "invalid username or password", message(t, data))

	response, data := b.do(http.MethodPost, "/login", "application/x-www-form-urlencoded",
		strings.NewReader("username=bob&password=pw"))
	require.Equal(t, http.StatusOK, response.StatusCode)
	var identity api.Identity
	require.NoError(t, json.Unmarshal(data, &identity))
	assert.Equal(t, registered, identity)

	status, _ = b.get("/contacts")
	assert.Equal(t, http.StatusOK, status)
	response, _ = b.do(http.MethodGet, "/login", "", nil)
	assert.Equal(t, http.StatusSeeOther, response.StatusCode)
	assert.Equal(t, "/contacts", response.Header.Get("Location"))
	status, _ = b.sendJSON(http.MethodPost, "/register", `{"username": "carl", "password": "pw"}`)
	assert.Equal(t, http.StatusSeeOther, status)

	status, data = b.get("/logout")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "logged out", message(t, data))
	status, _ = b.get("/contacts")
	assert.Equal(t, http.StatusSeeOther, status)
}

// sessionToken returns the session cookie the browser holds, or "".
func (b *browser) sessionToken() string {
	u, err := url.Parse(b.server.URL)
	require.NoError(b.t, err)
	for _, cookie := range b.client.Jar.Cookies(u) {
		if cookie.Name == sessionCookie {
			return cookie.Value
		}
	}
	return ""
}

// plantToken makes the browser send token as its session cookie.
func (b *browser) plantToken(token string) {
	u, err := url.Parse(b.server.URL)
	require.NoError(b.t, err)
	b.client.Jar.SetCookies(u, []*http.Cookie{{Name: sessionCookie, Value: token, Path: "/"}})
}

// TestLoginRenewsSession expects a login to issue a new session token, so a
// token handed to the victim beforehand never becomes authenticated.
func TestLoginRenewsSession(t *testing.T) {
	server := startServer(t)
	attacker := server.newBrowser(t)
	attacker.signUp("mallory")
	fixated := attacker.sessionToken()
	require.NotEmpty(t, fixated)
	status, _ := attacker.get("/logout")
	require.Equal(t, http.StatusOK, status)

	victim := server.newBrowser(t)
	victim.plantToken(fixated)
	victim.signUp("alice")
	assert.NotEmpty(t, victim.sessionToken())
	assert.NotEqual(t, fixated, victim.sessionToken())
	status, _ = victim.get("/contacts")
	assert.Equal(t, http.StatusOK, status)

	attacker.plantToken(fixated)
	status, _ = attacker.get("/contacts")
	assert.Equal(t, http.StatusSeeOther, status)

	// a second login of the same browser also changes the token
	before := victim.sessionToken()
	status, _ = victim.get("/logout")
	require.Equal(t, http.StatusOK, status)
	status, _ = victim.sendJSON(http.MethodPost, "/login", `{"username": "alice", "password": "pw"}`)
	require.Equal(t, http.StatusOK, status)
	assert.NotEqual(t, before, victim.sessionToken())
	victim.plantToken(before)
	status, _ = victim.get("/contacts")
	assert.Equal(t, http.StatusSeeOther, status)
}

// TestContactCRUD runs the contact endpoints for a single user.
func TestContactCRUD(t *testing.T) {
	server := startServer(t)
	b := server.newBrowser(t)
	b.signUp("alice")

	erika := b.addContact(`{"name": " Erika Mustermann ", "phone": "+49 0815 4711", "email": "erika@example.com"}`)
	assert.NotZero(t, erika.Id)
	assert.Equal(t, "Erika Mustermann", erika.Name)
	hans := b.addContact(`{"name": "Hans Wurst", "phone": "0815", "address": "Hamburg"}`)

	status, data := b.sendJSON(http.MethodPost, "/contacts", `{"name": "Copy", "phone": "0815"}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "phone number already exists", message(t, data))
	status, data = b.sendJSON(http.MethodPost, "/contacts", `{"name": "", "phone": "1"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, message(t, data), "name is required")
	status, _ = b.sendJSON(http.MethodPost, "/contacts", `{"name": "A", "phone": "`+strings.Repeat("1", 21)+`"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = b.sendJSON(http.MethodPost, "/contacts", `[]`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, data = b.get("/contacts")
	require.Equal(t, http.StatusOK, status)
	var contacts []api.Contact
	require.NoError(t, json.Unmarshal(data, &contacts))
	assert.Equal(t, []api.Contact{erika, hans}, contacts)

	status, data = b.get("/contacts?query=ERIKA@")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(data, &contacts))
	assert.Equal(t, []api.Contact{erika}, contacts)

	status, data = b.get("/contacts?limit=1&offset=1")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(data, &contacts))
	assert.Equal(t, []api.Contact{hans}, contacts)

	for _, query := range []string{"limit=0", "limit=x", "offset=-1", "offset=y"} {
		status, _ = b.get("/contacts?" + query)
		assert.Equal(t, http.StatusBadRequest, status, query)
	}

	path := "/contacts/" + jsonID(erika.Id)
	status, data = b.get(path)
	require.Equal(t, http.StatusOK, status)
	var single api.Contact
	require.NoError(t, json.Unmarshal(data, &single))
	assert.Equal(t, erika, single)

	status, data = b.sendJSON(http.MethodPut, path, `{"name": "Rudi Völler", "phone": "81970"}`)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(data, &single))
	assert.Equal(t, api.Contact{Id: erika.Id, Name: "Rudi Völler", Phone: "81970"}, single)
	status, _ = b.sendJSON(http.MethodPut, path, `{"name": "Rudi Völler", "phone": "0815"}`)
	assert.Equal(t, http.StatusConflict, status)
	status, _ = b.sendJSON(http.MethodPut, path, `{"name": "Rudi Völler"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	response, data := b.do(http.MethodDelete, path, "", nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, "contact deleted", message(t, data))
	status, _ = b.get(path)
	assert.Equal(t, http.StatusNotFound, status)
	response, _ = b.do(http.MethodDelete, path, "", nil)
	assert.Equal(t, http.StatusNotFound, response.StatusCode)

	for _, id := range []string{"abc", "0", "-1", "99999", "1.5"} {
		status, data = b.get("/contacts/" + id)
		assert.Equal(t, http.StatusNotFound, status, id)
		assert.Equal(t, "contact not found", message(t, data), id)
	}
}

// TestForeignContactsAreInvisible expects a contact of another user to look like a missing one.
func TestForeignContactsAreInvisible(t *testing.T) {
	server := startServer(t)
	alice := server.newBrowser(t)
	alice.signUp("alice")
	bob := server.newBrowser(t)
	bob.signUp("bob")

	secret := alice.addContact(`{"name": "Secret", "phone": "555-1234", "email": "secret@example.com"}`)
	path := "/contacts/" + jsonID(secret.Id)

	status, data := bob.get(path)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "contact not found", message(t, data))
	status, _ = bob.sendJSON(http.MethodPut, path, `{"name": "Hacked", "phone": "0"}`)
	assert.Equal(t, http.StatusNotFound, status)
	response, _ := bob.do(http.MethodDelete, path, "", nil)
	assert.Equal(t, http.StatusNotFound, response.StatusCode)

	status, data = bob.get("/contacts?query=secret")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(data))

	// same phone for another user is fine
	bob.addContact(`{"name": "Mine", "phone": "555-1234"}`)

	status, data = alice.get(path)
	require.Equal(t, http.StatusOK, status)
	var unchanged api.Contact
	require.NoError(t, json.Unmarshal(data, &unchanged))
	assert.Equal(t, secret, unchanged)
}

// TestImportExport uploads a CSV file and downloads the workbook.
func TestImportExport(t *testing.T) {
	server := startServer(t)
	b := server.newBrowser(t)
	b.signUp("alice")

	status, data := b.upload("/contacts/import", "contacts.csv", []byte("Name,Phone\nA,1\n,2\nB,1\n"))
	require.Equal(t, http.StatusOK, status, string(data))
	var report api.ImportReport
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, api.ImportReport{Added: 1, Duplicates: 1, Invalid: 1}, report)

	status, _ = b.upload("/contacts/import", "contacts.txt", []byte("Name,Phone\nC,3\n"))
	assert.Equal(t, http.StatusUnsupportedMediaType, status)
	status, _ = b.upload("/contacts/import", "contacts.xlsx", []byte("not a workbook"))
	assert.Equal(t, http.StatusUnsupportedMediaType, status)
	status, data = b.sendJSON(http.MethodPost, "/contacts/import", `{}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "no file uploaded", message(t, data))

	response, data := b.do(http.MethodGet, "/contacts/export", "", nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, `attachment; filename="contacts.xlsx"`, response.Header.Get("Content-Disposition"))
	assert.Equal(t, xlsxContentType, response.Header.Get("Content-Type"))

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Contacts")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Name", "Phone", "Email", "Address"}, {"A", "1"}}, rows)

	status, body := b.upload("/contacts/import", "contacts.xlsx", data)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &report))
	assert.Equal(t, api.ImportReport{Duplicates: 1}, report)
}

// TestHealth expects the health check to follow the database.
func TestHealth(t *testing.T) {
	server := startServer(t)
	b := server.newBrowser(t)
	b.signUp("alice")

	status, data := b.get("/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status": "ok"}`, string(data))

	require.NoError(t, server.db.Close())
	status, data = b.get("/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.JSONEq(t, `{"status": "unavailable"}`, string(data))

	// failures outside the domain are logged and hidden
	status, data = b.get("/contacts")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal error", message(t, data))
	assert.Equal(t, 1, server.logs.FilterMessage("request failed").Len())
}

func jsonID(id int64) string {
	data, _ := json.Marshal(id)
	return string(data)
}

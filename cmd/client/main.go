package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	api "gitlab.com/dirk.krummacker/contact-book/pkg/model"
)

var (
	serverURL   string
	sessionFile string
)

var rootCmd = &cobra.Command{
	Use:   "contact-book",
	Short: "Command line client for the contact book service",
	Long: `Talks to a running contact book service over its REST API.

The session cookie received by "login" is kept in a file, so that the
following commands run as the logged-in user.

Example:
  contact-book register bob secret
  contact-book login bob secret
  contact-book add "Hans Wurst" 0815 --email hans@example.com
  contact-book list --query wurst`,
	SilenceUsage: true,
}

func init() {
	home, _ := os.UserHomeDir()
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "base URL of the service")
	rootCmd.PersistentFlags().StringVar(&sessionFile, "session", filepath.Join(home, ".contact-book-session"), "file holding the session cookie")
}

// Usage example on the command line:
// > go run . --server http://localhost:8080 list
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// client sends requests carrying the stored session cookie.
type client struct {
	baseURL     string
	sessionFile string
	http        *http.Client
}

func newClient() *client {
	return &client{
		baseURL:     strings.TrimRight(serverURL, "/"),
		sessionFile: sessionFile,
		http: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// statusError is an answer outside the 2xx range.
type statusError struct {
	status  int
	message string
}

func (e *statusError) Error() string {
	if e.status == http.StatusSeeOther {
		return "not logged in"
	}
	return fmt.Sprintf("%d %s: %s", e.status, http.StatusText(e.status), e.message)
}

// send executes a request and returns the response body. Cookies set by the
// response replace the stored session.
func (c *client) send(method string, path string, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if cookie, err := os.ReadFile(c.sessionFile); err == nil {
		req.Header.Set("Cookie", strings.TrimSpace(string(cookie)))
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making http request: %w", err)
	}
	defer res.Body.Close()
	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read response body: %w", err)
	}
	if err := c.storeSession(res.Cookies()); err != nil {
		return nil, err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		var msg api.Message
		_ = json.Unmarshal(resBody, &msg)
		return nil, &statusError{status: res.StatusCode, message: msg.Message}
	}
	return resBody, nil
}

// sendJSON marshals payload, sends it and unmarshals the answer into result.
func (c *client) sendJSON(method string, path string, payload interface{}, result interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	resBody, err := c.send(method, path, "application/json", body)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(resBody, result); err != nil {
		return fmt.Errorf("could not unmarshal JSON: %w", err)
	}
	return nil
}

// storeSession writes the cookies of a response to the session file. An
// expired cookie removes the file.
func (c *client) storeSession(cookies []*http.Cookie) error {
	for _, cookie := range cookies {
		if cookie.MaxAge < 0 || cookie.Value == "" {
			if err := os.Remove(c.sessionFile); err != nil && !os.IsNotExist(err) {
				return err
			}
			continue
		}
		if err := os.WriteFile(c.sessionFile, []byte(cookie.Name+"="+cookie.Value), 0o600); err != nil {
			return fmt.Errorf("could not store session: %w", err)
		}
	}
	return nil
}

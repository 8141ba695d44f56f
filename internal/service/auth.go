package service

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	gsessions "github.com/gorilla/sessions"
	"gitlab.com/dirk.krummacker/contact-book/internal/auth"
	"gitlab.com/dirk.krummacker/contact-book/internal/model"
	api "gitlab.com/dirk.krummacker/contact-book/pkg/model"
)

// loggedIn sends a caller who already has a session to the contact list.
func (s *Server) loggedIn(c *gin.Context) bool {
	if _, err := s.authenticator.Current(sessions.Default(c)); err != nil {
		return false
	}
	c.Redirect(http.StatusSeeOther, "/contacts")
	c.Abort()
	return true
}

// loginPage is the entry point for anonymous callers.
//
// Example REST API call:
//
//	> curl http://localhost:8080/login
func (s *Server) loginPage(c *gin.Context) {
	if s.loggedIn(c) {
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"message": "please log in"})
}

// register creates a user from a JSON or form body. The new user is not
// logged in.
//
// Example REST API call:
//
//	> curl http://localhost:8080/register --request "POST" --include --header "Content-Type: application/json" --data '{"username": "bob", "password": "pw"}'
func (s *Server) register(c *gin.Context) {
	if s.loggedIn(c) {
		return
	}
	var submitted model.Credentials
	if err := c.ShouldBind(&submitted); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}
	id, err := s.credentials.Register(c.Request.Context(), submitted.Username, submitted.Password)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, api.Identity{UserId: id, Username: strings.TrimSpace(submitted.Username)})
}

// login binds the user to a new session that replaces the one of the caller.
//
// Example REST API call:
//
//	> curl http://localhost:8080/login --request "POST" --cookie-jar cookies.txt --data "username=bob&password=pw"
func (s *Server) login(c *gin.Context) {
	if s.loggedIn(c) {
		return
	}
	var submitted model.Credentials
	if err := c.ShouldBind(&submitted); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}
	renew := func() (auth.Session, error) { return s.renewSession(c) }
	identity, err := s.authenticator.Login(c.Request.Context(), renew, submitted.Username, submitted.Password)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, toIdentity(identity))
}

// logout ends the session of the caller and expires its cookie. Anonymous
// callers get the same answer.
//
// Example REST API call:
//
//	> curl http://localhost:8080/logout --cookie cookies.txt
func (s *Server) logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Options(sessionOptions(-1))
	if err := s.authenticator.Logout(session); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"message": "logged out"})
}

// renewSession expires the session the request came with and starts a new one
// under a fresh token. The new cookie is written after the expired one, so it
// is the one the client keeps.
func (s *Server) renewSession(c *gin.Context) (auth.Session, error) {
	current := sessions.Default(c)
	if current.ID() != "" {
		current.Clear()
		current.Options(sessionOptions(-1))
		if err := current.Save(); err != nil {
			return nil, err
		}
	}

	anonymous := c.Request.Clone(c.Request.Context())
	anonymous.Header.Del("Cookie")
	fresh, err := s.sessionStore.New(anonymous, sessionCookie)
	if err != nil {
		return nil, err
	}
	fresh.Options = sessionOptions(s.cfg.SessionMaxAge).ToGorillaOptions()
	return &storedSession{session: fresh, c: c}, nil
}

// storedSession is a gorilla session written straight to the store, bypassing
// the per-request session of the middleware.
type storedSession struct {
	session *gsessions.Session
	c       *gin.Context
}

func (s *storedSession) Get(key interface{}) interface{}      { return s.session.Values[key] }
func (s *storedSession) Set(key interface{}, val interface{}) { s.session.Values[key] = val }

func (s *storedSession) Clear() {
	for key := range s.session.Values {
		delete(s.session.Values, key)
	}
}

func (s *storedSession) Save() error {
	return s.session.Save(s.c.Request, s.c.Writer)
}

func toIdentity(identity auth.Identity) api.Identity {
	return api.Identity{UserId: identity.UserID, Username: identity.Username}
}

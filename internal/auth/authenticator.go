package auth

import (
	"context"
	"fmt"

	"gitlab.com/dirk.krummacker/contact-book/internal/common"
)

// Session keys of the authenticated identity.
const (
	userIDKey   = "user_id"
	usernameKey = "username"
)

// Session is a server-side key/value binding addressed by an opaque client
// token. sessions.Session of gin-contrib/sessions implements it.
type Session interface {
	Get(key interface{}) interface{}
	Set(key interface{}, val interface{})
	Clear()
	Save() error
}

// Identity is the user an authenticated session belongs to.
type Identity struct {
	UserID   int64
	Username string
}

// Authenticator moves a session between the anonymous and the authenticated
// state.
type Authenticator struct {
	credentials *Credentials
}

// NewAuthenticator returns an Authenticator verifying passwords with credentials.
func NewAuthenticator(credentials *Credentials) *Authenticator {
	return &Authenticator{credentials: credentials}
}

// Login verifies the password and, on success, binds the user to the session
// returned by renew. renew replaces the session the caller came with, so a
// token known before the login is never authenticated. A failed login leaves
// the current session untouched.
func (a *Authenticator) Login(ctx context.Context, renew func() (Session, error), username string, password string) (Identity, error) {
	user, err := a.credentials.Verify(ctx, username, password)
	if err != nil {
		return Identity{}, err
	}
	session, err := renew()
	if err != nil {
		return Identity{}, fmt.Errorf("renew session: %w", err)
	}
	session.Clear()
	session.Set(userIDKey, user.Id)
	session.Set(usernameKey, user.Username)
	if err := session.Save(); err != nil {
		return Identity{}, fmt.Errorf("save session: %w", err)
	}
	return Identity{UserID: user.Id, Username: user.Username}, nil
}

// Logout returns the session to the anonymous state.
func (a *Authenticator) Logout(session Session) error {
	session.Clear()
	if err := session.Save(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Current returns the identity bound to the session, or
// common.ErrUnauthenticated for an anonymous session.
func (a *Authenticator) Current(session Session) (Identity, error) {
	userID, ok := session.Get(userIDKey).(int64)
	if !ok || userID == 0 {
		return Identity{}, common.ErrUnauthenticated
	}
	username, _ := session.Get(usernameKey).(string)
	return Identity{UserID: userID, Username: username}, nil
}

// Package service is the HTTP layer of the contact book. It binds requests,
// resolves the session identity and maps the domain errors to status codes.
package service

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/memstore"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"gitlab.com/dirk.krummacker/contact-book/internal/auth"
	"gitlab.com/dirk.krummacker/contact-book/internal/common"
	"gitlab.com/dirk.krummacker/contact-book/internal/config"
	"gitlab.com/dirk.krummacker/contact-book/internal/contacts"
	"gitlab.com/dirk.krummacker/contact-book/internal/logging"
	"gitlab.com/dirk.krummacker/contact-book/internal/model"
	"gitlab.com/dirk.krummacker/contact-book/internal/spreadsheet"
	"gitlab.com/dirk.krummacker/contact-book/internal/store"
	"go.uber.org/zap"
)

// sessionCookie is the name of the cookie carrying the session token.
const sessionCookie = "contactbook"

// identityKey is the gin context key of the logged-in user.
const identityKey = "identity"

// Server holds the components behind the HTTP endpoints.
type Server struct {
	cfg           config.Config
	db            *sqlx.DB
	log           *zap.Logger
	credentials   *auth.Credentials
	authenticator *auth.Authenticator
	contacts      *contacts.Service
	bridge        *spreadsheet.Bridge
	sessionStore  memstore.Store
}

// New wires the services on top of db.
func New(cfg config.Config, db *sqlx.DB, log *zap.Logger) (*Server, error) {
	credentials, err := auth.NewCredentials(store.NewUserStore(db, cfg.DBQueryTimeout), cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	contactService := contacts.NewService(db, cfg.DBQueryTimeout)
	sessionStore := memstore.NewStore([]byte(cfg.SessionSecret))
	sessionStore.Options(sessionOptions(cfg.SessionMaxAge))
	return &Server{
		cfg:           cfg,
		db:            db,
		log:           log,
		credentials:   credentials,
		authenticator: auth.NewAuthenticator(credentials),
		contacts:      contactService,
		bridge:        spreadsheet.NewBridge(db, cfg.DBQueryTimeout, contactService, spreadsheet.XLSXWriter{}),
		sessionStore:  sessionStore,
	}, nil
}

// sessionOptions are the cookie settings of the session; a negative maxAge
// expires it.
func sessionOptions(maxAge int) sessions.Options {
	return sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// SetupHttpRouter initializes the REST API router and registers all endpoints.
func (s *Server) SetupHttpRouter() *gin.Engine {
	router := gin.New()
	router.Use(logging.RequestID())
	if s.cfg.GinLogging {
		router.Use(logging.Middleware(s.log))
	} else {
		s.log.Info("Turning off HTTP request logging.")
	}
	router.Use(gin.Recovery())

	router.Use(sessions.Sessions(sessionCookie, s.sessionStore))

	router.GET("/healthz", s.health)
	router.GET("/login", s.loginPage)
	router.POST("/login", s.login)
	router.POST("/register", s.register)
	router.GET("/logout", s.logout)
	router.POST("/logout", s.logout)

	authorized := router.Group("/contacts", s.requireLogin)
	authorized.GET("", s.findContacts)
	authorized.POST("", s.createContact)
	authorized.POST("/import", s.importContacts)
	authorized.GET("/export", s.exportContacts)
	authorized.GET("/:id", s.findContactByID)
	authorized.PUT("/:id", s.updateContactByID)
	authorized.DELETE("/:id", s.deleteContactByID)
	return router
}

// requireLogin sends anonymous callers to the login page. For a logged-in
// caller, the identity is stored on the context.
func (s *Server) requireLogin(c *gin.Context) {
	identity, err := s.authenticator.Current(sessions.Default(c))
	if err != nil {
		c.Redirect(http.StatusSeeOther, "/login")
		c.Abort()
		return
	}
	c.Set(identityKey, identity)
	c.Next()
}

// identity returns the user stored by requireLogin.
func identity(c *gin.Context) auth.Identity {
	return c.MustGet(identityKey).(auth.Identity)
}

// parseID reads the id parameter of the request URL. A malformed id is
// answered like a missing contact.
func parseID(c *gin.Context) (id int64, success bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "contact not found"})
		return 0, false
	}
	return id, true
}

// parseLimitAndOffset inspects the URL parameters and determines values for limit and offset of
// the result set.
func parseLimitAndOffset(c *gin.Context) (page model.Page, success bool) {
	if limit := c.Query("limit"); limit != "" {
		limitAsInt, errConv := strconv.Atoi(limit)
		if errConv != nil || limitAsInt < 1 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid limit parameter"})
			return model.Page{}, false
		}
		page.Limit = limitAsInt
	}
	if offset := c.Query("offset"); offset != "" {
		offsetAsInt, errConv := strconv.Atoi(offset)
		if errConv != nil || offsetAsInt < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid offset parameter"})
			return model.Page{}, false
		}
		page.Offset = offsetAsInt
	}
	return page, true
}

// abortWithError answers a failed operation. Errors outside the domain
// taxonomy are logged and hidden from the client.
func (s *Server) abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrValidation):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": err.Error()})
	case errors.Is(err, common.ErrNotFound), errors.Is(err, common.ErrUnauthorized):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "contact not found"})
	case errors.Is(err, common.ErrDuplicateUsername):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"message": common.ErrDuplicateUsername.Error()})
	case errors.Is(err, common.ErrDuplicatePhone):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"message": common.ErrDuplicatePhone.Error()})
	case errors.Is(err, common.ErrAuthFailure):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": common.ErrAuthFailure.Error()})
	case errors.Is(err, common.ErrUnsupportedFormat):
		c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{"message": err.Error()})
	case errors.Is(err, common.ErrExportUnavailable):
		logging.FromContext(c, s.log).Error("export failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"message": common.ErrExportUnavailable.Error()})
	default:
		logging.FromContext(c, s.log).Error("request failed", zap.Error(err))
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
	}
}

package service

import (
	"crypto/subtle"

	"github.com/webitel/im-tag-router/config"
	"github.com/webitel/im-tag-router/internal/domain/model"
)

// Auther answers the two authorization questions of the router.
type Auther interface {
	// AuthorizeOpen decides whether a pending connection may open.
	AuthorizeOpen(conn model.Connector) bool
	// AuthorizeSend decides whether a request may be fanned out. conn is nil
	// for server-side producers.
	AuthorizeSend(conn model.Connector, req *model.Request) bool
}

var (
	_ Auther = (*ApplicationsAuth)(nil)
	_ Auther = PermissiveAuth{}
)

// Query parameters read on connection open.
const (
	QueryKey    = "key"
	QuerySecret = "secret"
)

// ApplicationsAuth restricts access with a static table of application credentials.
type ApplicationsAuth struct {
	// authorizeOpen is the server-wide default open policy.
	authorizeOpen bool
	keyMap        map[string]model.Application
}

// NewApplicationsAuth validates the raw table and builds the gate.
// Malformed entries and duplicate keys fail with ErrConfiguration.
func NewApplicationsAuth(raw []config.ApplicationConfig, authorizeOpen bool) (*ApplicationsAuth, error) {
	apps, err := config.ToApplications(raw)
	if err != nil {
		return nil, err
	}

	keyMap := make(map[string]model.Application, len(apps))
	for i, app := range apps {
		if _, dup := keyMap[app.Key]; dup {
			return nil, model.Configurationf("auth.new", "duplicate application key '%s' in application '%d'", app.Key, i+1)
		}
		keyMap[app.Key] = app
	}

	return &ApplicationsAuth{
		authorizeOpen: authorizeOpen,
		keyMap:        keyMap,
	}, nil
}

// NewApplicationsAuthFromFile reads the YAML table at path. extra entries are
// appended after the file entries.
func NewApplicationsAuthFromFile(path string, authorizeOpen bool, extra ...config.ApplicationConfig) (*ApplicationsAuth, error) {
	raw, err := config.LoadApplications(path)
	if err != nil {
		return nil, err
	}
	return NewApplicationsAuth(append(raw, extra...), authorizeOpen)
}

// NewAuthFromConfig picks the gate described by cfg.Auth. The file table and
// the inline table are concatenated. An enabled gate without applications
// could never authorize a send, so it is a configuration error.
func NewAuthFromConfig(cfg *config.Config) (Auther, error) {
	if !cfg.Auth.Enabled {
		return PermissiveAuth{}, nil
	}

	var (
		gate *ApplicationsAuth
		err  error
	)
	if cfg.Auth.ApplicationsFile != "" {
		gate, err = NewApplicationsAuthFromFile(cfg.Auth.ApplicationsFile, cfg.Auth.AuthorizeOpen, cfg.Auth.Applications...)
	} else {
		gate, err = NewApplicationsAuth(cfg.Auth.Applications, cfg.Auth.AuthorizeOpen)
	}
	if err != nil {
		return nil, err
	}

	if gate.Applications() == 0 {
		return nil, model.Configurationf("auth.new", "auth is enabled but no application is configured")
	}
	return gate, nil
}

func (a *ApplicationsAuth) AuthorizeOpen(conn model.Connector) bool {
	if a.authorizeOpen {
		return true
	}
	if conn == nil {
		return false
	}

	q := conn.Query()
	if !q.Has(QueryKey) {
		return false
	}

	app, ok := a.keyMap[q.Get(QueryKey)]
	if !ok {
		return false
	}

	// [APPLICATION_POLICY] The application may open without a secret.
	if app.AuthorizeOpen {
		return true
	}

	if !q.Has(QuerySecret) {
		return false
	}
	return secretEqual(q.Get(QuerySecret), app.Secret)
}

func (a *ApplicationsAuth) AuthorizeSend(_ model.Connector, req *model.Request) bool {
	key, secret, ok := req.Credentials()
	if !ok {
		return false
	}

	app, ok := a.keyMap[key]
	if !ok {
		return false
	}
	return secretEqual(secret, app.Secret)
}

// Applications returns the number of loaded credentials.
func (a *ApplicationsAuth) Applications() int { return len(a.keyMap) }

func secretEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// PermissiveAuth authorizes everything. It is installed when auth is disabled.
type PermissiveAuth struct{}

func (PermissiveAuth) AuthorizeOpen(model.Connector) bool                 { return true }
func (PermissiveAuth) AuthorizeSend(model.Connector, *model.Request) bool { return true }

package portal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/shunichi-ikebuchi/billing-portal/pkg/identity"
)

// SessionCookie is the name of the cookie carrying the signed session.
const SessionCookie = "access_token"

const sessionIssuer = "billing-portal"

// ErrNoSession is returned when the request carries no valid session.
var ErrNoSession = errors.New("portal: no valid session")

type sessionClaims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Token string `json:"token"`
	jwt.RegisteredClaims
}

// SessionManager issues and verifies HS256-signed session cookies. The
// cookie is signed, not encrypted.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewSessionManager creates a SessionManager. A zero ttl means 24 hours.
func NewSessionManager(secret string, ttl time.Duration, secure bool) *SessionManager {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &SessionManager{
		secret: []byte(secret),
		ttl:    ttl,
		secure: secure,
		now:    time.Now,
	}
}

// Issue signs the identity into a session cookie.
func (m *SessionManager) Issue(w http.ResponseWriter, id *identity.Identity) error {
	now := m.now()
	claims := sessionClaims{
		Name:  id.Name,
		Email: id.Email,
		Token: id.Token,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			Issuer:    sessionIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return fmt.Errorf("failed to sign session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    signed,
		Path:     "/",
		Expires:  now.Add(m.ttl),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Read returns the identity of a valid session cookie.
func (m *SessionManager) Read(r *http.Request) (*identity.Identity, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return nil, ErrNoSession
	}

	var claims sessionClaims
	_, err = jwt.ParseWithClaims(cookie.Value, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoSession, err)
	}
	if claims.Token == "" {
		return nil, ErrNoSession
	}

	return &identity.Identity{
		ID:    claims.Subject,
		Name:  claims.Name,
		Email: claims.Email,
		Token: claims.Token,
	}, nil
}

// Clear expires the session cookie.
func (m *SessionManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

type identityKey struct{}

func withIdentity(ctx context.Context, id *identity.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// identityFrom returns the identity set by requireSession.
func identityFrom(ctx context.Context) *identity.Identity {
	id, _ := ctx.Value(identityKey{}).(*identity.Identity)
	return id
}

// requireSession redirects requests without a valid session to /login.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := s.sessions.Read(r)
		if err != nil {
			if _, cookieErr := r.Cookie(SessionCookie); cookieErr == nil {
				s.sessions.Clear(w)
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
	})
}

package access

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/mux"

	"github.com/docstack-tech/docstack/core/logger"
)

// JwtMiddlewareBuilder is a helper builder for the JWT middleware
type JwtMiddlewareBuilder struct {
	// Secret is the HMAC key the tokens are signed with. Mandatory.
	Secret []byte
	// Issuer is the accepted issuer for the token. Optional.
	Issuer string
	// RoleClaim is the claim carrying the caller's role. Defaults to "role".
	RoleClaim string
}

// NewJwtMiddleware returns a middleware handler to validate JWT bearer
// token.
//
// Java-Web-Token (JWT) are accepted as "Authorization: Bearer" header or as
// "Docstack-JWT"-cookie. A valid token establishes the caller's role in the
// request context; an invalid token terminates the request with
// http.StatusUnauthorized. Requests without a token pass through without a
// role, the permission gate then applies its default-deny rule.
func NewJwtMiddleware(jmb *JwtMiddlewareBuilder) mux.MiddlewareFunc {
	if len(jmb.Secret) == 0 {
		panic("jwt middleware: secret is missing")
	}
	roleClaim := jmb.RoleClaim
	if roleClaim == "" {
		roleClaim = "role"
	}

	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if RoleFromContext(r.Context()) != "" { // already authorized?
				h.ServeHTTP(w, r)
				return
			}

			tokenString := ""
			bearer := r.Header.Get("Authorization")
			if len(bearer) > 0 && bearer != "null" {
				if len(bearer) >= 8 && strings.ToLower(bearer[:7]) == "bearer " {
					tokenString = bearer[7:]
				} else {
					tokenString = bearer
				}
			} else if cookie, _ := r.Cookie("Docstack-JWT"); cookie != nil {
				tokenString = cookie.Value
			}
			if len(tokenString) == 0 {
				h.ServeHTTP(w, r) // no token no auth, moving on
				return
			}

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
				return jmb.Secret, nil
			})
			if err != nil || !token.Valid {
				logger.FromContext(r.Context()).Debugln("invalid bearer token for", r.URL)
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			if jmb.Issuer != "" {
				if issuer, _ := claims["iss"].(string); issuer != jmb.Issuer {
					http.Error(w, "invalid token", http.StatusUnauthorized)
					return
				}
			}

			role, _ := claims[roleClaim].(string)
			r = r.WithContext(ContextWithRole(r.Context(), role))
			h.ServeHTTP(w, r)
		})
	}
}

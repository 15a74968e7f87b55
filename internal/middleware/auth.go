// Package middleware содержит HTTP middleware сервиса витрины.
package middleware

import (
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	userIDKey contextKey = "userID"
	adminKey  contextKey = "isAdmin"
)

const (
	userTokenTTL  = 24 * time.Hour
	adminTokenTTL = 12 * time.Hour
)

// ErrInvalidToken возвращается при не прошедшем проверку токене сессии.
var ErrInvalidToken = errors.New("invalid session token")

type sessionClaims struct {
	jwt.RegisteredClaims
	UserID int64 `json:"uid,omitempty"`
	Admin  bool  `json:"adm,omitempty"`
}

// AuthMiddleware проверяет аутентификацию по bearer-токену в заголовке
// Authorization и выпускает токены сессий.
type AuthMiddleware struct {
	secretKey []byte
}

// NewAuthMiddleware создаёт AuthMiddleware с указанным секретным ключом.
// При пустом ключе генерируется случайный: такие токены не переживут
// перезапуск сервиса.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &AuthMiddleware{
		secretKey: key,
	}
}

// IssueUserToken выпускает токен пользовательской сессии.
func (a *AuthMiddleware) IssueUserToken(userID int64) (string, error) {
	return a.issue(sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(userTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UserID: userID,
	})
}

// IssueAdminToken выпускает токен административной сессии.
func (a *AuthMiddleware) IssueAdminToken() (string, error) {
	return a.issue(sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(adminTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Admin: true,
	})
}

func (a *AuthMiddleware) issue(claims sessionClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secretKey)
}

// ParseToken проверяет подпись и срок действия токена сессии.
func (a *AuthMiddleware) ParseToken(tokenString string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return a.secretKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Middleware требует действительный пользовательский токен и добавляет
// идентификатор пользователя в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := a.claimsFromRequest(r)
		if !ok || claims.UserID == 0 {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AdminMiddleware требует действительный административный токен.
func (a *AuthMiddleware) AdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := a.claimsFromRequest(r)
		if !ok || !claims.Admin {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}

		ctx := context.WithValue(r.Context(), adminKey, true)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *AuthMiddleware) claimsFromRequest(r *http.Request) (*sessionClaims, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, false
	}

	tokenString, found := strings.CutPrefix(header, "Bearer ")
	if !found || tokenString == "" {
		return nil, false
	}

	claims, err := a.ParseToken(tokenString)
	if err != nil {
		return nil, false
	}
	return claims, true
}

// GetUserIDFromContext извлекает идентификатор пользователя из контекста запроса.
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

// IsAdminFromContext сообщает, выполнена ли административная аутентификация.
func IsAdminFromContext(ctx context.Context) bool {
	admin, ok := ctx.Value(adminKey).(bool)
	return ok && admin
}

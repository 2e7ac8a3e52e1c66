package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/dgrijalva/jwt-go"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

type contextKey string

const (
	identityContextKey contextKey = "identity"
	sessionContextKey  contextKey = "session"

	sessionHeader = "X-Session-ID"
)

// accessClaims — полезная нагрузка access-токена. Выдача токенов — внешний
// контракт; сервис только проверяет подпись и читает claims.
type accessClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.StandardClaims
}

// Authenticator проверяет bearer-токены и извлекает Identity запроса.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator создаёт Authenticator с HMAC-секретом.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Middleware кладёт Identity и гостевую сессию в контекст запроса.
// Запрос без токена проходит дальше как анонимный: решение о доступе
// принимает операция, а не транспорт.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if sessionID := r.Header.Get(sessionHeader); sessionID != "" {
			ctx = context.WithValue(ctx, sessionContextKey, sessionID)
		}

		header := r.Header.Get("Authorization")
		if header != "" {
			identity, err := a.verify(header)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid access token")
				return
			}
			ctx = context.WithValue(ctx, identityContextKey, identity)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) verify(header string) (domain.Identity, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return domain.Identity{}, fmt.Errorf("malformed authorization header")
	}

	claims := &accessClaims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return domain.Identity{}, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return domain.Identity{}, fmt.Errorf("token is not valid")
	}

	return domain.Identity{
		UserID: claims.Subject,
		Email:  claims.Email,
		Role:   domain.Role(claims.Role),
	}, nil
}

// IssueToken подписывает access-токен для пользователя. Используется в
// тестах и локальной разработке.
func (a *Authenticator) IssueToken(identity domain.Identity, expiresAt int64) (string, error) {
	claims := accessClaims{
		Email: identity.Email,
		Role:  string(identity.Role),
		StandardClaims: jwt.StandardClaims{
			Subject:   identity.UserID,
			ExpiresAt: expiresAt,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// identityFrom возвращает Identity запроса; пустая Identity означает
// анонимный запрос.
func identityFrom(ctx context.Context) domain.Identity {
	identity, _ := ctx.Value(identityContextKey).(domain.Identity)
	return identity
}

// sessionFrom возвращает идентификатор гостевой сессии, если он был передан.
func sessionFrom(ctx context.Context) string {
	sessionID, _ := ctx.Value(sessionContextKey).(string)
	return sessionID
}

// cartOwnerFrom выводит владельца корзины: пользователь имеет приоритет
// над гостевой сессией.
func cartOwnerFrom(ctx context.Context) (domain.CartOwner, error) {
	if identity := identityFrom(ctx); identity.Authenticated() {
		return domain.UserOwner(identity.UserID), nil
	}
	if sessionID := sessionFrom(ctx); sessionID != "" {
		return domain.GuestOwner(sessionID), nil
	}
	return domain.CartOwner{}, domain.ErrCartOwnerInvalid
}

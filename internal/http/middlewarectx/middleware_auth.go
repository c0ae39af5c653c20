// Package middlewarectx содержит HTTP middleware для проверки JWT и ограничения частоты запросов.
//
// JWTMiddleware проверяет токен из заголовка Authorization и кладёт в контекст
// ID пользователя, email и роль. AdminOnly пропускает только администраторов.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-billing/internal/http/response"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/jwt"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-billing/internal/models"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// UserID: ключ для ID пользователя в контексте
	UserID Key = "user_id"
	// Email: ключ для email пользователя в контексте
	Email Key = "email"
	// Role: ключ для роли пользователя в контексте
	Role Key = "role"
)

// TokenParser разбирает и проверяет токен.
type TokenParser interface {
	ParseToken(tokenStr string) (*jwt.CustomClaims, error)
}

// JWTMiddleware возвращает HTTP middleware, который проверяет JWT в заголовке Authorization.
//
// При ошибке отвечает 401 Unauthorized.
func JWTMiddleware(parser TokenParser, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"

			log := log.With(
				sl.Op(op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Info("missing or invalid authorization header")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("missing or invalid authorization header"))
				return
			}

			claims, err := parser.ParseToken(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				log.Info("invalid or expired token", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid or expired token"))
				return
			}

			ctx := context.WithValue(r.Context(), UserID, claims.UserID)
			ctx = context.WithValue(ctx, Email, claims.Email)
			ctx = context.WithValue(ctx, Role, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminOnly отвечает 403, если в контексте не роль администратора.
// Ставится после JWTMiddleware.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if role, _ := r.Context().Value(Role).(string); role != models.RoleAdmin {
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, response.Error("admin role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// UserIDFrom достаёт ID пользователя из контекста запроса.
func UserIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserID).(string)
	return id, ok && id != ""
}

// EmailFrom достаёт email пользователя из контекста запроса.
func EmailFrom(ctx context.Context) string {
	email, _ := ctx.Value(Email).(string)
	return email
}

package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"stash-backend/pkg/config"
	"stash-backend/pkg/models"
	"stash-backend/pkg/utils"

	"github.com/golang-jwt/jwt/v5"
)

// ContextKey 用于在context中存储用户信息的键
type ContextKey string

const (
	UserContextKey ContextKey = "user"
)

// AuthMiddleware JWT认证中间件。
// 用户身份只来自验证过的token claims，任何请求参数里的身份字段都被忽略。
func AuthMiddleware(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 从Authorization头获取token
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				fmt.Printf("❌ Auth middleware: Missing authorization header\n")
				utils.WriteErrorResponseWithCode(w, http.StatusUnauthorized, "NO_CREDENTIAL", "Missing authorization header", "")
				return
			}

			// 检查Bearer前缀
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				fmt.Printf("❌ Auth middleware: Invalid authorization header format\n")
				utils.WriteErrorResponseWithCode(w, http.StatusUnauthorized, "NO_CREDENTIAL", "Invalid authorization header format", "")
				return
			}

			// 解析和验证JWT token
			token, err := jwt.ParseWithClaims(tokenString, &models.TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
				// 验证签名方法
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(cfg.JWTSecret), nil
			})

			if err != nil {
				fmt.Printf("❌ Auth middleware: Token parsing failed: %v\n", err)
				utils.WriteErrorResponseWithCode(w, http.StatusUnauthorized, "INVALID_CREDENTIAL", "Invalid token", "")
				return
			}

			if !token.Valid {
				fmt.Printf("❌ Auth middleware: Token is not valid\n")
				utils.WriteErrorResponseWithCode(w, http.StatusUnauthorized, "INVALID_CREDENTIAL", "Invalid token", "")
				return
			}

			// 获取claims
			claims, ok := token.Claims.(*models.TokenClaims)
			if !ok {
				fmt.Printf("❌ Auth middleware: Invalid token claims\n")
				utils.WriteErrorResponseWithCode(w, http.StatusUnauthorized, "INVALID_CREDENTIAL", "Invalid token claims", "")
				return
			}

			// 只接受access token
			if claims.Type != "access" {
				fmt.Printf("❌ Auth middleware: Invalid token type: %s\n", claims.Type)
				utils.WriteErrorResponseWithCode(w, http.StatusUnauthorized, "INVALID_CREDENTIAL", "Invalid token type", "")
				return
			}

			// 检查token是否过期
			if time.Now().Unix() > claims.Exp {
				fmt.Printf("❌ Auth middleware: Token expired. Current: %d, Exp: %d\n", time.Now().Unix(), claims.Exp)
				utils.WriteErrorResponseWithCode(w, http.StatusUnauthorized, "INVALID_CREDENTIAL", "Token expired", "")
				return
			}

			if claims.Email == "" {
				fmt.Printf("❌ Auth middleware: Token has no email claim\n")
				utils.WriteErrorResponseWithCode(w, http.StatusUnauthorized, "INVALID_CREDENTIAL", "Token missing identity", "")
				return
			}

			// 创建用户对象并添加到context
			user := &models.User{
				ID:    claims.UserID,
				Email: claims.Email,
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserFromContext 从context中获取用户信息
func GetUserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	return user, ok
}

// RequireUser 要求用户必须已认证的辅助函数
func RequireUser(ctx context.Context) (*models.User, error) {
	user, ok := GetUserFromContext(ctx)
	if !ok || user == nil {
		return nil, fmt.Errorf("user not authenticated")
	}
	return user, nil
}

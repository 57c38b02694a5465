package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoToken      = errors.New("no access token")
	ErrInvalidToken = errors.New("invalid access token")
	ErrNoUser       = errors.New("token has no user_id claim")
)

func ExtractAccessToken(r *http.Request) string {
	// Cookie (preferred)
	if cookie, err := r.Cookie("access_token"); err == nil {
		if cookie.Value != "" {
			return cookie.Value
		}
	}

	// Authorization header (fallback)
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}

// ParseUser validates an HS256 token and returns its user_id and email claims.
// user_id may be encoded as a number or a string.
func ParseUser(tokenStr string, secret []byte) (User, error) {
	if tokenStr == "" {
		return User{}, ErrNoToken
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return User{}, ErrInvalidToken
	}

	var u User
	switch id := claims["user_id"].(type) {
	case float64:
		u.ID = strconv.FormatInt(int64(id), 10)
	case string:
		u.ID = id
	}
	if u.ID == "" {
		return User{}, ErrNoUser
	}
	u.Email, _ = claims["email"].(string)
	return u, nil
}

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL is how long a login token stays valid.
const DefaultTokenTTL = 24 * time.Hour

const issuer = "marketchat"

// Claims identifies the account behind a request.
//
// Login puts these fields into the token. On every later request the REST
// middleware reads them back, and so does the websocket upgrade. That is
// how the server knows who is calling without a database round trip, and
// it is why a socket can only act as the account that logged in.
//
// Why embed jwt.RegisteredClaims?
//   - exp, iat and iss come with it, and jwt.ParseWithClaims validates
//     exp on its own.
//   - Tooling such as the jwt.io debugger recognizes the standard names.
//   - UserID and Email sit on top as our own fields.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	jwt.RegisteredClaims
}

// GenerateToken creates an HS256-signed JWT for a user.
//
// Parameters:
//   - userID, email: who this token represents.
//   - secret: the HMAC key (config.JWTSecret). An empty secret is an error.
//   - ttl: lifetime of the token; zero or negative means DefaultTokenTTL.
//
// Why HS256?
//   - One shared secret between the login handler and the middleware, and
//     both live in this process.
//   - If another service ever needs to verify tokens without issuing them,
//     RS256 with a private key kept here would be the switch to make.
func GenerateToken(userID uuid.UUID, email, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("sign token: empty secret")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := time.Now()

	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			// After ExpiresAt the middleware and the socket upgrade reject it.
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			// ParseToken only accepts our own issuer.
			Issuer: issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken returns the claims of a token signed with secret.
//
// Rejected:
//   - expired tokens, and tokens from another issuer
//   - any algorithm other than HMAC, including "none" and RSA; accepting
//     RSA here would let a public key be used as the HMAC secret
//   - tokens whose user id is missing or nil
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		},
		jwt.WithIssuer(issuer),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.UserID == uuid.Nil {
		return nil, fmt.Errorf("token has no user")
	}
	return claims, nil
}

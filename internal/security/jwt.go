package security

import (
	"fmt"
	"time"

	"github.com/chatgrid/chat-service/internal/errs"

	"github.com/golang-jwt/jwt"
)

// Используется SigningMethodHS256: сервис один, общий секрет из конфига.
type JWTSigner struct {
	secret    []byte
	issuer    string
	audience  string
	ttl       time.Duration
	clockSkew time.Duration
}

func NewJWTSigner(secret []byte, issuer, audience string, ttl, clockSkew time.Duration) *JWTSigner {
	return &JWTSigner{
		secret:    secret,
		issuer:    issuer,
		audience:  audience,
		ttl:       ttl,
		clockSkew: clockSkew,
	}
}

func (s *JWTSigner) TTL() time.Duration {
	return s.ttl
}

type AccessClaims struct {
	jwt.StandardClaims // включает поля Issuer, Audience, ExpiresAt, NotBefore, IssuedAt, Subject
}

// SignAccessToken выпускает JWT с sub=userID и exp=now+ttl.
func (s *JWTSigner) SignAccessToken(userID int64, now time.Time) (string, error) {
	claims := AccessClaims{
		StandardClaims: jwt.StandardClaims{
			Subject:   fmt.Sprint(userID),
			Issuer:    s.issuer,
			Audience:  s.audience,
			IssuedAt:  now.Unix(),
			NotBefore: now.Add(-s.clockSkew).Unix(),
			ExpiresAt: now.Add(s.ttl).Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString(s.secret)
}

func (s *JWTSigner) ParseAndValidate(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok || t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errs.ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errs.ErrInvalidToken
	}

	now := time.Now()

	// issuer
	if !claims.VerifyIssuer(s.issuer, true) {
		return nil, errs.ErrInvalidIssuer
	}
	// audience
	if !claims.VerifyAudience(s.audience, true) {
		return nil, errs.ErrInvalidAudience
	}

	// временные клеймы с допуском clockSkew
	nbf := time.Unix(claims.NotBefore, 0).Add(-s.clockSkew)
	exp := time.Unix(claims.ExpiresAt, 0).Add(s.clockSkew)
	if now.Before(nbf) || now.After(exp) {
		return nil, errs.ErrTokenExpired
	}

	return claims, nil
}

// SubjectAsUserID парсит sub в int64.
func SubjectAsUserID(claims *AccessClaims) (int64, error) {
	if claims == nil || claims.Subject == "" {
		return 0, errs.ErrInvalidSubject
	}
	var id int64
	_, err := fmt.Sscan(claims.Subject, &id)
	if err != nil {
		return 0, errs.ErrInvalidSubject
	}

	return id, nil
}

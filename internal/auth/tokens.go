package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/market"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

type claims struct {
	Name  string `json:"name"`
	Admin bool   `json:"admin"`
	jwt.RegisteredClaims
}

type tokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func (t *tokenIssuer) issue(u *models.User) (string, error) {
	now := t.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Name:  u.Name,
		Admin: u.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	})

	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (t *tokenIssuer) parse(raw string) (market.Principal, error) {
	var c claims
	token, err := jwt.ParseWithClaims(raw, &c,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !token.Valid || c.Subject == "" {
		return market.Principal{}, ErrInvalidToken
	}

	return market.Principal{ID: c.Subject, Name: c.Name, IsAdmin: c.Admin}, nil
}

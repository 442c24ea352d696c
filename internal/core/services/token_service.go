package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vncsmyrnk/ballot/internal/core/domain"
	"github.com/vncsmyrnk/ballot/internal/core/ports"
)

var ErrInvalidToken = errors.New("invalid access token")

type TokenService struct {
	jwtSecret []byte
	ttl       time.Duration
	clock     ports.Clock
}

func NewTokenService(secret string, ttl time.Duration, clock ports.Clock) ports.TokenService {
	if clock == nil {
		clock = systemClock{}
	}
	return &TokenService{
		jwtSecret: []byte(secret),
		ttl:       ttl,
		clock:     clock,
	}
}

func (s *TokenService) Issue(caller domain.Caller) (string, error) {
	if !caller.Authenticated() {
		return "", errors.New("cannot issue a token for an anonymous caller")
	}
	role := caller.Role
	if role == "" {
		role = domain.RoleMember
	}

	now := s.clock.Now()
	claims := jwt.MapClaims{
		"sub":  caller.MemberID.String(),
		"role": string(role),
		"exp":  now.Add(s.ttl).Unix(),
		"iat":  now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *TokenService) Parse(tokenString string) (domain.Caller, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return domain.Caller{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return domain.Caller{}, ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return domain.Caller{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	memberID, err := uuid.Parse(sub)
	if err != nil {
		return domain.Caller{}, fmt.Errorf("%w: subject is not a member id", ErrInvalidToken)
	}

	role := domain.RoleMember
	if r, _ := claims["role"].(string); r == string(domain.RoleAdmin) {
		role = domain.RoleAdmin
	}

	return domain.Caller{MemberID: memberID, Role: role}, nil
}

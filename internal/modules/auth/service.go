package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/demandly/casefile-backend/internal/data/repos"
	types "github.com/demandly/casefile-backend/internal/domain"
	apperrors "github.com/demandly/casefile-backend/internal/pkg/errors"
	"github.com/demandly/casefile-backend/internal/platform/dbctx"
	"github.com/demandly/casefile-backend/internal/platform/envutil"
	"github.com/demandly/casefile-backend/internal/platform/logger"
)

type Service interface {
	Register(ctx context.Context, attorney *types.Attorney) error
	Login(ctx context.Context, email, password string) (token string, attorney *types.Attorney, err error)
	ParseToken(tokenString string) (uuid.UUID, error)
	AccessTTL() time.Duration
}

type jwtClaims struct {
	jwt.RegisteredClaims
	AttorneyID string `json:"attorney_id"`
}

type service struct {
	log       *logger.Logger
	attorneys repos.AttorneyRepo
	secret    string
	accessTTL time.Duration
}

func NewService(baseLog *logger.Logger, attorneys repos.AttorneyRepo) Service {
	ttl := time.Duration(envutil.Int("JWT_ACCESS_TTL_MINUTES", 720)) * time.Minute
	return &service{
		log:       baseLog.With("service", "AuthService"),
		attorneys: attorneys,
		secret:    envutil.String("JWT_SECRET_KEY", ""),
		accessTTL: ttl,
	}
}

func (s *service) Register(ctx context.Context, attorney *types.Attorney) error {
	attorney.Email = strings.ToLower(strings.TrimSpace(attorney.Email))
	if attorney.Email == "" || attorney.Password == "" {
		return fmt.Errorf("%w: email and password are required", apperrors.ErrInvalidArgument)
	}
	if len(attorney.Password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", apperrors.ErrInvalidArgument)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(attorney.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	attorney.Password = string(hashed)

	dbc := dbctx.Context{Ctx: ctx}
	if existing, err := s.attorneys.GetByEmail(dbc, attorney.Email); err == nil && existing != nil {
		return fmt.Errorf("%w: email already registered", apperrors.ErrInvalidArgument)
	}
	if _, err := s.attorneys.Create(dbc, []*types.Attorney{attorney}); err != nil {
		return fmt.Errorf("create attorney: %w", err)
	}
	s.log.Info("attorney registered", "attorney_id", attorney.ID.String(), "email", attorney.Email)
	return nil
}

func (s *service) Login(ctx context.Context, email, password string) (string, *types.Attorney, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	attorney, err := s.attorneys.GetByEmail(dbctx.Context{Ctx: ctx}, email)
	if err != nil {
		return "", nil, apperrors.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(attorney.Password), []byte(password)); err != nil {
		return "", nil, apperrors.ErrUnauthorized
	}
	token, err := s.generateToken(attorney)
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}
	return token, attorney, nil
}

func (s *service) generateToken(attorney *types.Attorney) (string, error) {
	now := time.Now()
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   attorney.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		AttorneyID: attorney.ID.String(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.secret))
}

func (s *service) ParseToken(tokenString string) (uuid.UUID, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &jwtClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(s.secret), nil
	})
	if err != nil || !parsed.Valid {
		return uuid.Nil, apperrors.ErrUnauthorized
	}
	claims, ok := parsed.Claims.(*jwtClaims)
	if !ok {
		return uuid.Nil, apperrors.ErrUnauthorized
	}
	id, err := uuid.Parse(claims.AttorneyID)
	if err != nil {
		return uuid.Nil, apperrors.ErrUnauthorized
	}
	return id, nil
}

func (s *service) AccessTTL() time.Duration { return s.accessTTL }

package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/qrave1/GoldLink/internal/application/constant"
	"github.com/qrave1/GoldLink/internal/domain"
	"github.com/qrave1/GoldLink/internal/domain/models"
)

// Claims - содержимое токена сессии
type Claims struct {
	Name string      `json:"name,omitempty"`
	Role models.Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Credentials - то, что подключение предъявляет при входе
type Credentials struct {
	Token      string
	GuestID    string
	GuestName  string
	GuestEmail string
}

type IdentityUsecase interface {
	// VerifyToken проверяет токен сессии. ErrUnauthenticated, если токен пуст или невалиден.
	VerifyToken(ctx context.Context, token string) (models.Participant, error)

	// Resolve отдаёт аутентифицированного участника или гостя; гостевой fallback есть всегда
	Resolve(ctx context.Context, creds Credentials) (models.Participant, error)
}

type identityUsecase struct {
	jwtSecret []byte
}

func NewIdentityUsecase(jwtSecret []byte) IdentityUsecase {
	return &identityUsecase{jwtSecret: jwtSecret}
}

func (uc *identityUsecase) VerifyToken(ctx context.Context, token string) (models.Participant, error) {
	if token == "" {
		return models.Participant{}, fmt.Errorf("%w: empty token", domain.ErrUnauthenticated)
	}

	parsed, err := jwt.ParseWithClaims(
		token,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			return uc.jwtSecret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return models.Participant{}, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return models.Participant{}, fmt.Errorf("%w: invalid claims", domain.ErrUnauthenticated)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return models.Participant{}, fmt.Errorf("%w: invalid subject", domain.ErrUnauthenticated)
	}

	role := claims.Role
	if role != models.RoleAdmin {
		role = models.RoleCustomer
	}

	name := claims.Name
	if name == "" {
		name = "User"
	}

	return models.Participant{
		ID:          userID.String(),
		Kind:        models.KindAuthenticated,
		DisplayName: name,
		Role:        role,
	}, nil
}

func (uc *identityUsecase) Resolve(ctx context.Context, creds Credentials) (models.Participant, error) {
	if creds.Token != "" {
		p, err := uc.VerifyToken(ctx, creds.Token)
		if err == nil {
			return p, nil
		}

		if !errors.Is(err, domain.ErrUnauthenticated) {
			return models.Participant{}, err
		}

		// Невалидный токен не мешает войти гостем
		slog.Debug("token rejected, falling back to guest", slog.Any(constant.Error, err))
	}

	id := creds.GuestID
	if !models.IsGuestID(id) {
		id = models.NewGuestID()
	}

	return models.NewGuest(id, creds.GuestName, creds.GuestEmail), nil
}

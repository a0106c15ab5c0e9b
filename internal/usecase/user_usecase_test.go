package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	"github.com/qrave1/GoldLink/internal/domain"
	"github.com/qrave1/GoldLink/internal/domain/models"
	"github.com/qrave1/GoldLink/internal/mocks"
)

func TestUserUsecase_CreateUser(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockUserRepository(ctrl)
	uc := NewUserUsecase(testSecret, repo)

	t.Run("stores a hashed password", func(t *testing.T) {
		req := require.New(t)

		var stored *models.User
		repo.EXPECT().
			CreateUser(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, u *models.User) error {
				copied := *u
				stored = &copied
				return nil
			}).
			Times(1)

		user, err := uc.CreateUser(ctx, "support", "pa55word", "Support", models.RoleAdmin)
		req.NoError(err)
		req.Empty(user.Password)
		req.Equal(models.RoleAdmin, user.Role)

		req.NotEqual("pa55word", stored.Password)
		req.NoError(bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("pa55word")))
	})

	t.Run("duplicate username", func(t *testing.T) {
		repo.EXPECT().CreateUser(gomock.Any(), gomock.Any()).Return(domain.ErrUserAlreadyExists)

		_, err := uc.CreateUser(ctx, "support", "pa55word", "", models.RoleCustomer)
		require.ErrorIs(t, err, domain.ErrUserAlreadyExists)
	})

	t.Run("unknown role never reaches the repository", func(t *testing.T) {
		repo.EXPECT().CreateUser(gomock.Any(), gomock.Any()).Times(0)

		_, err := uc.CreateUser(ctx, "x", "y", "", models.Role("root"))
		require.ErrorIs(t, err, domain.ErrBadRequest)
	})
}

func TestUserUsecase_ValidateCredentials(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockUserRepository(ctrl)
	uc := NewUserUsecase(testSecret, repo)

	hash, err := bcrypt.GenerateFromPassword([]byte("right"), bcrypt.MinCost)
	require.NoError(t, err)

	user := models.NewUser()
	user.Username = "bob"
	user.Password = string(hash)

	t.Run("correct password", func(t *testing.T) {
		req := require.New(t)

		stored := *user
		repo.EXPECT().GetUserByUsername(gomock.Any(), "bob").Return(&stored, nil)

		got, err := uc.ValidateCredentials(ctx, "bob", "right")
		req.NoError(err)
		req.Equal(user.ID, got.ID)
		req.Empty(got.Password)
	})

	t.Run("wrong password", func(t *testing.T) {
		stored := *user
		repo.EXPECT().GetUserByUsername(gomock.Any(), "bob").Return(&stored, nil)

		_, err := uc.ValidateCredentials(ctx, "bob", "wrong")
		require.ErrorIs(t, err, domain.ErrUnauthenticated)
	})

	t.Run("unknown user", func(t *testing.T) {
		repo.EXPECT().GetUserByUsername(gomock.Any(), "eve").Return(nil, domain.ErrUserNotFound)

		_, err := uc.ValidateCredentials(ctx, "eve", "any")
		require.ErrorIs(t, err, domain.ErrUnauthenticated)
	})
}

func TestUserUsecase_GenerateJWTRoundTrip(t *testing.T) {
	req := require.New(t)
	users := NewUserUsecase(testSecret, nil)
	identity := NewIdentityUsecase(testSecret)

	user := models.NewUser()
	user.Username = "support"
	user.Role = models.RoleAdmin

	token, err := users.GenerateJWT(user)
	req.NoError(err)

	p, err := identity.VerifyToken(context.Background(), token)
	req.NoError(err)
	req.Equal(user.ID.String(), p.ID)
	req.Equal("support", p.DisplayName)
	req.True(p.IsAdmin())
}

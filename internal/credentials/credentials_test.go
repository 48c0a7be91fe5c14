package credentials

import (
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/picstream/picstream/internal/entities"
	"github.com/picstream/picstream/internal/storage"
	"github.com/picstream/picstream/internal/storage/mock"
)

var ctx = context.Background()

func TestService_Register(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := mock.NewMockStorage(ctrl)
	svc := New(s, []byte("secret"), time.Hour)

	s.EXPECT().CreateUser(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, p *storage.CreateUserParams) (*entities.User, error) {
			assert.Equal(t, "alice", p.Username)
			assert.Equal(t, entities.DefaultProfileImage, p.ProfileImage)
			assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(p.HashedPassword), []byte("password")))

			return &entities.User{ID: "id", Username: p.Username, HashedPassword: p.HashedPassword}, nil
		})

	u, err := svc.Register(ctx, "alice", "password")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
}

func TestService_Register_conflict(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := mock.NewMockStorage(ctrl)
	svc := New(s, []byte("secret"), time.Hour)

	s.EXPECT().CreateUser(gomock.Any(), gomock.Any()).Return(nil, storage.ErrConflict)

	_, err := svc.Register(ctx, "alice", "password")
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestService_Authenticate(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	require.NoError(t, err)

	tt := []struct {
		name     string
		password string
		user     *entities.User
		userErr  error

		err error
	}{
		{
			name:     "success",
			password: "password",
			user:     &entities.User{ID: "id", Username: "alice", HashedPassword: string(hash)},
		},
		{
			name:     "wrong password",
			password: "nope",
			user:     &entities.User{ID: "id", Username: "alice", HashedPassword: string(hash)},
			err:      ErrUnauthorized,
		},
		{
			name:     "unknown username",
			password: "password",
			userErr:  storage.ErrNotFound,
			err:      ErrUnauthorized,
		},
	}

	for i := range tt {
		tc := tt[i]

		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)

			s := mock.NewMockStorage(ctrl)
			svc := New(s, []byte("secret"), time.Hour)

			s.EXPECT().GetUserByUsername(gomock.Any(), "alice").Return(tc.user, tc.userErr)

			u, err := svc.Authenticate(ctx, "alice", tc.password)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "alice", u.Username)
		})
	}
}

func TestService_TokenRoundTrip(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := mock.NewMockStorage(ctrl)
	svc := New(s, []byte("secret"), time.Hour)

	user := &entities.User{ID: "id", Username: "alice"}

	token, err := svc.IssueToken(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	s.EXPECT().GetUserByUsername(gomock.Any(), "alice").Return(user, nil)

	resolved, err := svc.ResolveToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user, resolved)
}

func TestService_ResolveToken_expired(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := mock.NewMockStorage(ctrl)
	svc := New(s, []byte("secret"), time.Hour)

	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := svc.IssueToken(&entities.User{Username: "alice"})
	require.NoError(t, err)

	svc.now = time.Now

	_, err = svc.ResolveToken(ctx, token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestService_ResolveToken_badToken(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := mock.NewMockStorage(ctrl)
	svc := New(s, []byte("secret"), time.Hour)

	_, err := svc.ResolveToken(ctx, "garbage")
	assert.ErrorIs(t, err, ErrUnauthorized)

	other := New(s, []byte("other secret"), time.Hour)
	token, err := other.IssueToken(&entities.User{Username: "alice"})
	require.NoError(t, err)

	_, err = svc.ResolveToken(ctx, token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestService_ResolveToken_deletedUser(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := mock.NewMockStorage(ctrl)
	svc := New(s, []byte("secret"), time.Hour)

	token, err := svc.IssueToken(&entities.User{Username: "alice"})
	require.NoError(t, err)

	s.EXPECT().GetUserByUsername(gomock.Any(), "alice").Return(nil, storage.ErrNotFound)

	_, err = svc.ResolveToken(ctx, token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

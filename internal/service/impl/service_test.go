package impl

import (
	"context"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picstream/picstream/internal/blob"
	"github.com/picstream/picstream/internal/entities"
	"github.com/picstream/picstream/internal/storage"
	"github.com/picstream/picstream/internal/storage/mock"
)

var ctx = context.Background()

func TestSrv_CreatePost(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := mock.NewMockStorage(ctrl)
	fs := blob.NewMemoryStore()

	srv := New(s, fs)

	image := []byte("image bytes")

	s.EXPECT().CreatePost(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, p *storage.CreatePostParams) (*entities.Post, error) {
			assert.Equal(t, "owner", p.Owner)
			assert.Equal(t, "caption", p.Caption)
			assert.True(t, strings.HasPrefix(p.Image, "imgs_post/"))

			stored, err := fs.Get(ctx, p.Image)
			require.NoError(t, err)
			assert.Equal(t, image, stored)

			return &entities.Post{ID: "post", Owner: p.Owner, Image: p.Image, Caption: p.Caption}, nil
		})

	p, err := srv.CreatePost(ctx, "owner", image, "caption")
	require.NoError(t, err)
	assert.Equal(t, "post", p.ID)
}

func TestSrv_CreatePost_storageError(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := mock.NewMockStorage(ctrl)
	fs := blob.NewMemoryStore()

	srv := New(s, fs)

	var ref string
	s.EXPECT().CreatePost(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, p *storage.CreatePostParams) (*entities.Post, error) {
			ref = p.Image
			return nil, context.Canceled
		})

	_, err := srv.CreatePost(ctx, "owner", []byte("image"), "caption")
	require.Error(t, err)

	// the stored image is cleaned up when the record was not saved
	_, err = fs.Get(ctx, ref)
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

func TestSrv_GetPostImage(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := mock.NewMockStorage(ctrl)
	fs := blob.NewMemoryStore()

	srv := New(s, fs)

	ref, err := fs.Put(ctx, "imgs_post", []byte("image bytes"))
	require.NoError(t, err)

	s.EXPECT().GetPost(gomock.Any(), "post").Return(&entities.Post{ID: "post", Image: ref}, nil)

	data, err := srv.GetPostImage(ctx, "post")
	require.NoError(t, err)
	assert.Equal(t, []byte("image bytes"), data)
}

func TestSrv_UpdateProfileImage(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := mock.NewMockStorage(ctrl)
	fs := blob.NewMemoryStore()

	srv := New(s, fs)

	oldRef, err := fs.Put(ctx, "imgs_profile", []byte("old"))
	require.NoError(t, err)

	s.EXPECT().GetUserByID(gomock.Any(), "id").Return(&entities.User{ID: "id", ProfileImage: oldRef}, nil)

	var newRef string
	s.EXPECT().SetProfileImage(gomock.Any(), "id", gomock.Any()).DoAndReturn(
		func(_ context.Context, id, image string) (*entities.User, error) {
			newRef = image
			return &entities.User{ID: id, ProfileImage: image}, nil
		})

	u, err := srv.UpdateProfileImage(ctx, "id", []byte("new"))
	require.NoError(t, err)
	assert.Equal(t, newRef, u.ProfileImage)
	assert.True(t, strings.HasPrefix(newRef, "imgs_profile/"))

	// the old image is gone, the new one is stored
	_, err = fs.Get(ctx, oldRef)
	assert.ErrorIs(t, err, blob.ErrNotFound)

	data, err := fs.Get(ctx, newRef)
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), data)
}

func TestSrv_UpdateProfileImage_defaultKept(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := mock.NewMockStorage(ctrl)
	fs := blob.NewMemoryStore()

	srv := New(s, fs)

	s.EXPECT().GetUserByID(gomock.Any(), "id").
		Return(&entities.User{ID: "id", ProfileImage: entities.DefaultProfileImage}, nil)
	s.EXPECT().SetProfileImage(gomock.Any(), "id", gomock.Any()).DoAndReturn(
		func(_ context.Context, id, image string) (*entities.User, error) {
			return &entities.User{ID: id, ProfileImage: image}, nil
		})

	_, err := srv.UpdateProfileImage(ctx, "id", []byte("new"))
	require.NoError(t, err)
}

func TestSrv_GetProfileImage_default(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := mock.NewMockStorage(ctrl)

	srv := New(s, blob.NewMemoryStore())

	s.EXPECT().GetUserByID(gomock.Any(), "id").
		Return(&entities.User{ID: "id", ProfileImage: entities.DefaultProfileImage}, nil)

	data, err := srv.GetProfileImage(ctx, "id")
	require.NoError(t, err)
	assert.Equal(t, placeholderImage, data)
	assert.NotEmpty(t, data)
}

func TestSrv_DeletePost(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := mock.NewMockStorage(ctrl)
	fs := blob.NewMemoryStore()

	srv := New(s, fs)

	ref, err := fs.Put(ctx, "imgs_post", []byte("image"))
	require.NoError(t, err)

	s.EXPECT().InTx(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, f func(s storage.Storage) error) error {
			return f(s)
		})
	s.EXPECT().GetPost(gomock.Any(), "post").Return(&entities.Post{ID: "post", Owner: "owner", Image: ref}, nil)
	s.EXPECT().DeletePost(gomock.Any(), "post", "owner").Return(nil)

	require.NoError(t, srv.DeletePost(ctx, "post", "owner"))

	_, err = fs.Get(ctx, ref)
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

func TestSrv_DeletePost_forbidden(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := mock.NewMockStorage(ctrl)
	fs := blob.NewMemoryStore()

	srv := New(s, fs)

	ref, err := fs.Put(ctx, "imgs_post", []byte("image"))
	require.NoError(t, err)

	s.EXPECT().InTx(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, f func(s storage.Storage) error) error {
			return f(s)
		})
	s.EXPECT().GetPost(gomock.Any(), "post").Return(&entities.Post{ID: "post", Owner: "owner", Image: ref}, nil)
	s.EXPECT().DeletePost(gomock.Any(), "post", "intruder").Return(storage.ErrForbidden)

	err = srv.DeletePost(ctx, "post", "intruder")
	assert.ErrorIs(t, err, storage.ErrForbidden)

	// image of the kept post is untouched
	_, err = fs.Get(ctx, ref)
	assert.NoError(t, err)
}

func TestSrv_DeleteUser(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := mock.NewMockStorage(ctrl)
	fs := blob.NewMemoryStore()

	srv := New(s, fs)

	profileRef, err := fs.Put(ctx, "imgs_profile", []byte("profile"))
	require.NoError(t, err)
	postRef, err := fs.Put(ctx, "imgs_post", []byte("post"))
	require.NoError(t, err)

	s.EXPECT().InTx(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, f func(s storage.Storage) error) error {
			return f(s)
		})
	s.EXPECT().GetUserByID(gomock.Any(), "id").Return(&entities.User{ID: "id", ProfileImage: profileRef}, nil)
	s.EXPECT().GetProfileFeed(gomock.Any(), "id", gomock.Any()).
		Return([]*entities.Post{{ID: "post", Owner: "id", Image: postRef}}, nil)
	s.EXPECT().DeleteUser(gomock.Any(), "id").Return(nil)

	require.NoError(t, srv.DeleteUser(ctx, "id"))

	_, err = fs.Get(ctx, profileRef)
	assert.ErrorIs(t, err, blob.ErrNotFound)
	_, err = fs.Get(ctx, postRef)
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

func TestSrv_SetLike(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := mock.NewMockStorage(ctrl)

	srv := New(s, blob.NewMemoryStore())

	s.EXPECT().SetLike(gomock.Any(), "post", "user").Return(nil)
	s.EXPECT().GetPost(gomock.Any(), "post").Return(&entities.Post{ID: "post", Likes: 1}, nil)

	p, err := srv.SetLike(ctx, "post", "user")
	require.NoError(t, err)
	assert.EqualValues(t, 1, p.Likes)
}

func TestSrv_UnsetLike(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := mock.NewMockStorage(ctrl)

	srv := New(s, blob.NewMemoryStore())

	s.EXPECT().UnsetLike(gomock.Any(), "post", "user").Return(nil)
	s.EXPECT().GetPost(gomock.Any(), "post").Return(&entities.Post{ID: "post", Likes: 0}, nil)

	p, err := srv.UnsetLike(ctx, "post", "user")
	require.NoError(t, err)
	assert.Zero(t, p.Likes)
}

func TestSrv_Subscribe(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := mock.NewMockStorage(ctrl)

	srv := New(s, blob.NewMemoryStore())

	s.EXPECT().Subscribe(gomock.Any(), "follower", "followee").Return(nil)
	require.NoError(t, srv.Subscribe(ctx, "follower", "followee"))

	s.EXPECT().Subscribe(gomock.Any(), "follower", "follower").Return(storage.ErrSelfReference)
	assert.ErrorIs(t, srv.Subscribe(ctx, "follower", "follower"), storage.ErrSelfReference)
}

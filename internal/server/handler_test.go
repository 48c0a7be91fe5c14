package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/picstream/picstream/internal/credentials"
	"github.com/picstream/picstream/internal/entities"
	mm "github.com/picstream/picstream/internal/middleware"
	servicemock "github.com/picstream/picstream/internal/service/mock"
	"github.com/picstream/picstream/internal/storage"
	storagemock "github.com/picstream/picstream/internal/storage/mock"
)

func Test_signup(t *testing.T) {
	timestamp := time.Unix(100, 0)

	b, err := json.Marshal(AuthRequest{Username: "alice", Password: "hunter2"})
	require.NoError(t, err)

	r, err := http.NewRequest(http.MethodPost, "/v1/auth/signup", bytes.NewReader(b))
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	s := storagemock.NewMockStorage(ctrl)

	s.EXPECT().CreateUser(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, p *storage.CreateUserParams) (*entities.User, error) {
			assert.Equal(t, "alice", p.Username)
			assert.Equal(t, entities.DefaultProfileImage, p.ProfileImage)
			assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(p.HashedPassword), []byte("hunter2")))

			return &entities.User{
				ID:           "id",
				Username:     p.Username,
				ProfileImage: p.ProfileImage,
				CreatedAt:    timestamp,
				UpdatedAt:    timestamp,
			}, nil
		})

	router := chi.NewRouter()
	srv := server{c: credentials.New(s, []byte("secret"), time.Hour)}
	router.Post("/v1/auth/signup", srv.signup)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `
{
   "id":"id",
   "username":"alice",
   "name":"",
   "surname":"",
   "bio":"",
   "age":0,
   "gender":"",
   "email":"",
   "profileImage":"default",
   "createdAt":100,
   "updatedAt":100
}
	`, w.Body.String())
}

func Test_signup_usernameTaken(t *testing.T) {
	b, err := json.Marshal(AuthRequest{Username: "alice", Password: "hunter2"})
	require.NoError(t, err)

	r, err := http.NewRequest(http.MethodPost, "/v1/auth/signup", bytes.NewReader(b))
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	s := storagemock.NewMockStorage(ctrl)

	s.EXPECT().CreateUser(gomock.Any(), gomock.Any()).Return(nil, storage.ErrConflict)

	router := chi.NewRouter()
	srv := server{c: credentials.New(s, []byte("secret"), time.Hour)}
	router.Post("/v1/auth/signup", srv.signup)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"already exists"}`, w.Body.String())
}

func Test_login(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.DefaultCost)
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	s := storagemock.NewMockStorage(ctrl)

	u := &entities.User{ID: "id", Username: "alice", HashedPassword: string(hash)}
	s.EXPECT().GetUserByUsername(gomock.Any(), "alice").Return(u, nil).Times(2)

	creds := credentials.New(s, []byte("secret"), time.Hour)

	router := chi.NewRouter()
	srv := server{c: creds}
	router.Post("/v1/auth/login", srv.login)

	b, err := json.Marshal(AuthRequest{Username: "alice", Password: "hunter2"})
	require.NoError(t, err)

	r, err := http.NewRequest(http.MethodPost, "/v1/auth/login", bytes.NewReader(b))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var resp TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)

	resolved, err := creds.ResolveToken(context.Background(), resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "id", resolved.ID)
}

func Test_login_wrongPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.DefaultCost)
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	s := storagemock.NewMockStorage(ctrl)

	s.EXPECT().GetUserByUsername(gomock.Any(), "alice").
		Return(&entities.User{ID: "id", Username: "alice", HashedPassword: string(hash)}, nil)

	router := chi.NewRouter()
	srv := server{c: credentials.New(s, []byte("secret"), time.Hour)}
	router.Post("/v1/auth/login", srv.login)

	b, err := json.Marshal(AuthRequest{Username: "alice", Password: "wrong"})
	require.NoError(t, err)

	r, err := http.NewRequest(http.MethodPost, "/v1/auth/login", bytes.NewReader(b))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"unauthorized"}`, w.Body.String())
}

func Test_listUsers(t *testing.T) {
	timestamp := time.Unix(100, 0)

	r, err := http.NewRequest(http.MethodGet, "/v1/users?limit=50&skip=10", nil)
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	s := servicemock.NewMockService(ctrl)

	s.EXPECT().ListUsers(gomock.Any(), uint16(50), uint32(10)).Return([]*entities.User{
		{
			ID:           "id",
			Username:     "alice",
			Name:         "Alice",
			Surname:      "Liddell",
			Bio:          "bio",
			Age:          30,
			Gender:       "female",
			Email:        "alice@example.com",
			ProfileImage: "imgs_profile/ref",
			CreatedAt:    timestamp,
			UpdatedAt:    timestamp,
		},
	}, nil)

	router := chi.NewRouter()
	srv := server{s: s}
	router.Get("/v1/users", srv.listUsers)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `
{
   "users":[
      {
         "id":"id",
         "username":"alice",
         "name":"Alice",
         "surname":"Liddell",
         "bio":"bio",
         "age":30,
         "gender":"female",
         "email":"alice@example.com",
         "profileImage":"imgs_profile/ref",
         "createdAt":100,
         "updatedAt":100
      }
   ]
}
	`, w.Body.String())
}

func Test_getPost(t *testing.T) {
	timestamp := time.Unix(100, 0)

	r, err := http.NewRequest(http.MethodGet, "/v1/posts/post", nil)
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	s := servicemock.NewMockService(ctrl)

	s.EXPECT().GetPost(gomock.Any(), "post").Return(&entities.Post{
		ID:        "post",
		Owner:     "id",
		Image:     "imgs_post/ref",
		Caption:   "caption",
		Likes:     2,
		CreatedAt: timestamp,
	}, nil)

	router := chi.NewRouter()
	srv := server{s: s}
	router.Get("/v1/posts/{id}", srv.getPost)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `
{
   "id":"post",
   "owner":"id",
   "image":"imgs_post/ref",
   "caption":"caption",
   "likes":2,
   "createdAt":100
}
	`, w.Body.String())
}

func Test_getPost_notFound(t *testing.T) {
	r, err := http.NewRequest(http.MethodGet, "/v1/posts/post", nil)
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	s := servicemock.NewMockService(ctrl)

	s.EXPECT().GetPost(gomock.Any(), "post").Return(nil, storage.ErrNotFound)

	router := chi.NewRouter()
	srv := server{s: s}
	router.Get("/v1/posts/{id}", srv.getPost)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"not found"}`, w.Body.String())
}

func Test_subscribe(t *testing.T) {
	tt := []struct {
		name string
		err  error
		code int
	}{
		{
			name: "success",
			err:  nil,
			code: http.StatusNoContent,
		},
		{
			name: "self",
			err:  storage.ErrSelfReference,
			code: http.StatusBadRequest,
		},
		{
			name: "not found",
			err:  storage.ErrNotFound,
			code: http.StatusNotFound,
		},
	}

	for i := range tt {
		tc := tt[i]
		t.Run(tc.name, func(t *testing.T) {
			r, err := http.NewRequest(http.MethodPost, "/v1/users/bob/subscription", nil)
			require.NoError(t, err)
			r = r.WithContext(mm.WithUser(r.Context(), &entities.User{ID: "alice"}))

			ctrl := gomock.NewController(t)
			defer ctrl.Finish()
			s := servicemock.NewMockService(ctrl)

			s.EXPECT().Subscribe(gomock.Any(), "alice", "bob").Return(tc.err)

			router := chi.NewRouter()
			srv := server{s: s}
			router.Post("/v1/users/{id}/subscription", srv.subscribe)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, r)

			assert.Equal(t, tc.code, w.Code)
		})
	}
}

func Test_subscribe_unauthorized(t *testing.T) {
	r, err := http.NewRequest(http.MethodPost, "/v1/users/bob/subscription", nil)
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	s := servicemock.NewMockService(ctrl)

	router := chi.NewRouter()
	srv := server{s: s}
	router.Post("/v1/users/{id}/subscription", srv.subscribe)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func Test_like(t *testing.T) {
	timestamp := time.Unix(100, 0)

	r, err := http.NewRequest(http.MethodPost, "/v1/posts/post/like", nil)
	require.NoError(t, err)
	r = r.WithContext(mm.WithUser(r.Context(), &entities.User{ID: "alice"}))

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	s := servicemock.NewMockService(ctrl)

	s.EXPECT().SetLike(gomock.Any(), "post", "alice").Return(&entities.Post{
		ID:        "post",
		Owner:     "bob",
		Image:     "imgs_post/ref",
		Likes:     1,
		CreatedAt: timestamp,
	}, nil)

	router := chi.NewRouter()
	srv := server{s: s}
	router.Post("/v1/posts/{id}/like", srv.like)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `
{
   "id":"post",
   "owner":"bob",
   "image":"imgs_post/ref",
   "caption":"",
   "likes":1,
   "createdAt":100
}
	`, w.Body.String())
}

func Test_deletePost(t *testing.T) {
	r, err := http.NewRequest(http.MethodDelete, "/v1/posts/post", nil)
	require.NoError(t, err)
	r = r.WithContext(mm.WithUser(r.Context(), &entities.User{ID: "alice"}))

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	s := servicemock.NewMockService(ctrl)

	s.EXPECT().DeletePost(gomock.Any(), "post", "alice").Return(nil)

	router := chi.NewRouter()
	srv := server{s: s}
	router.Delete("/v1/posts/{id}", srv.deletePost)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func Test_deletePost_forbidden(t *testing.T) {
	r, err := http.NewRequest(http.MethodDelete, "/v1/posts/post", nil)
	require.NoError(t, err)
	r = r.WithContext(mm.WithUser(r.Context(), &entities.User{ID: "alice"}))

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	s := servicemock.NewMockService(ctrl)

	s.EXPECT().DeletePost(gomock.Any(), "post", "alice").Return(storage.ErrForbidden)

	router := chi.NewRouter()
	srv := server{s: s}
	router.Delete("/v1/posts/{id}", srv.deletePost)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"forbidden"}`, w.Body.String())
}

func Test_createComment(t *testing.T) {
	timestamp := time.Unix(100, 0)

	b, err := json.Marshal(CommentRequest{Body: "nice"})
	require.NoError(t, err)

	r, err := http.NewRequest(http.MethodPost, "/v1/posts/post/comments", bytes.NewReader(b))
	require.NoError(t, err)
	r = r.WithContext(mm.WithUser(r.Context(), &entities.User{ID: "alice"}))

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	s := servicemock.NewMockService(ctrl)

	s.EXPECT().CreateComment(gomock.Any(), "post", "alice", "nice").Return(&entities.Comment{
		ID:        "comment",
		PostID:    "post",
		Owner:     "alice",
		Body:      "nice",
		CreatedAt: timestamp,
	}, nil)

	router := chi.NewRouter()
	srv := server{s: s}
	router.Post("/v1/posts/{id}/comments", srv.createComment)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `
{
   "id":"comment",
   "postId":"post",
   "owner":"alice",
   "body":"nice",
   "createdAt":100
}
	`, w.Body.String())
}

func Test_createComment_emptyBody(t *testing.T) {
	r, err := http.NewRequest(http.MethodPost, "/v1/posts/post/comments", strings.NewReader(`{"body":""}`))
	require.NoError(t, err)
	r = r.WithContext(mm.WithUser(r.Context(), &entities.User{ID: "alice"}))

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	s := servicemock.NewMockService(ctrl)

	router := chi.NewRouter()
	srv := server{s: s}
	router.Post("/v1/posts/{id}/comments", srv.createComment)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func Test_createPost(t *testing.T) {
	timestamp := time.Unix(100, 0)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", "cat.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte("image bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("caption", "my cat"))
	require.NoError(t, mw.Close())

	r, err := http.NewRequest(http.MethodPost, "/v1/posts", &body)
	require.NoError(t, err)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	r = r.WithContext(mm.WithUser(r.Context(), &entities.User{ID: "alice"}))

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	s := servicemock.NewMockService(ctrl)

	s.EXPECT().CreatePost(gomock.Any(), "alice", []byte("image bytes"), "my cat").Return(&entities.Post{
		ID:        "post",
		Owner:     "alice",
		Image:     "imgs_post/ref",
		Caption:   "my cat",
		CreatedAt: timestamp,
	}, nil)

	router := chi.NewRouter()
	srv := server{s: s}
	router.Post("/v1/posts", srv.createPost)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `
{
   "id":"post",
   "owner":"alice",
   "image":"imgs_post/ref",
   "caption":"my cat",
   "likes":0,
   "createdAt":100
}
	`, w.Body.String())
}

func Test_getFeed(t *testing.T) {
	timestamp := time.Unix(100, 0)

	r, err := http.NewRequest(http.MethodGet, "/v1/feed", nil)
	require.NoError(t, err)
	r = r.WithContext(mm.WithUser(r.Context(), &entities.User{ID: "alice"}))

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	s := servicemock.NewMockService(ctrl)

	s.EXPECT().GetFeed(gomock.Any(), "alice", uint16(defaultLimit), uint32(0)).Return([]*entities.Post{
		{
			ID:        "post",
			Owner:     "bob",
			Image:     "imgs_post/ref",
			Caption:   "caption",
			Likes:     1,
			CreatedAt: timestamp,
		},
	}, nil)

	router := chi.NewRouter()
	srv := server{s: s}
	router.Get("/v1/feed", srv.getFeed)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `
{
   "posts":[
      {
         "id":"post",
         "owner":"bob",
         "image":"imgs_post/ref",
         "caption":"caption",
         "likes":1,
         "createdAt":100
      }
   ]
}
	`, w.Body.String())
}

func Test_getLikedPosts(t *testing.T) {
	r, err := http.NewRequest(http.MethodGet, "/v1/users/me/liked", nil)
	require.NoError(t, err)
	r = r.WithContext(mm.WithUser(r.Context(), &entities.User{ID: "alice"}))

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	s := servicemock.NewMockService(ctrl)

	s.EXPECT().GetLikedPosts(gomock.Any(), "alice").Return([]string{"p1", "p2"}, nil)

	router := chi.NewRouter()
	srv := server{s: s}
	router.Get("/v1/users/me/liked", srv.getLikedPosts)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"posts":["p1","p2"]}`, w.Body.String())
}

func Test_extractListParamsFromQuery(t *testing.T) {
	tt := []struct {
		name   string
		query  string
		limit  uint16
		offset uint32
		err    bool
	}{
		{
			name:  "defaults",
			query: "",
			limit: defaultLimit,
		},
		{
			name:   "explicit",
			query:  "limit=50&skip=10",
			limit:  50,
			offset: 10,
		},
		{
			name:  "over max",
			query: "limit=1000",
			err:   true,
		},
		{
			name:  "garbage limit",
			query: "limit=abc",
			err:   true,
		},
		{
			name:  "garbage skip",
			query: "skip=-1",
			err:   true,
		},
	}

	for i := range tt {
		tc := tt[i]
		t.Run(tc.name, func(t *testing.T) {
			q, err := url.ParseQuery(tc.query)
			require.NoError(t, err)

			limit, offset, err := extractListParamsFromQuery(q)
			if tc.err {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.limit, limit)
			assert.Equal(t, tc.offset, offset)
		})
	}
}

// Package server Picstream
//
// Picstream is a social-media backend which provides accounts, image posts,
// likes, comments and subscriptions.
//
//     Schemes: https
//     BasePath: /v1
//     Version: 1.0.0
//
//     Produces:
//     - application/json
//     Consumes:
//     - application/json
//
// swagger:meta
package server

import (
	"context"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"

	"github.com/picstream/picstream/internal/entities"
	mm "github.com/picstream/picstream/internal/middleware"
	"github.com/picstream/picstream/internal/service"
)

//go:generate swagger generate spec -t swagger -m -c . -o ../../static/swagger.json

// Image uploads have to fit into a request body.
const maxBodySize = 8 << 20

// Credentials covers the auth operations the handlers need.
type Credentials interface {
	Register(ctx context.Context, username, password string) (*entities.User, error)
	Authenticate(ctx context.Context, username, password string) (*entities.User, error)
	IssueToken(u *entities.User) (string, error)
	ResolveToken(ctx context.Context, token string) (*entities.User, error)
}

type server struct {
	s service.Service
	c Credentials
}

// SetupRouter setups handlers to chi router.
func SetupRouter(svc service.Service, creds Credentials, r chi.Router, timeout time.Duration) {
	r.Use(
		mm.Logger,
		middleware.StripSlashes,
		cors.AllowAll().Handler,
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		mm.BodyLimiter(maxBodySize),
	)

	srv := server{
		s: svc,
		c: creds,
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/signup", srv.signup)
		r.Post("/auth/login", srv.login)

		r.Get("/users", srv.listUsers)
		r.Get("/users/{id}", srv.getUser)
		r.Get("/users/{id}/image", srv.getProfileImage)
		r.Get("/users/{id}/subscribers", srv.getSubscribers)
		r.Get("/users/{id}/subscriptions", srv.getSubscriptions)

		r.Get("/posts", srv.listPosts)
		r.Get("/posts/{id}", srv.getPost)
		r.Get("/posts/{id}/image", srv.getPostImage)
		r.Get("/posts/{id}/comments", srv.listComments)

		r.Group(func(r chi.Router) {
			r.Use(mm.Auth(creds))

			r.Patch("/users/me", srv.updateProfile)
			r.Put("/users/me/username", srv.updateUsername)
			r.Put("/users/me/bio", srv.updateBio)
			r.Put("/users/me/name", srv.updateNameSurname)
			r.Post("/users/me/image", srv.updateProfileImage)
			r.Delete("/users/me", srv.deleteUser)
			r.Get("/users/me/liked", srv.getLikedPosts)
			r.Post("/users/{id}/subscription", srv.subscribe)
			r.Delete("/users/{id}/subscription", srv.unsubscribe)

			r.Post("/posts", srv.createPost)
			r.Delete("/posts/{id}", srv.deletePost)
			r.Get("/feed", srv.getFeed)
			r.Get("/feed/profile", srv.getProfileFeed)
			r.Post("/posts/{id}/like", srv.like)
			r.Delete("/posts/{id}/like", srv.unlike)
			r.Post("/posts/{id}/comments", srv.createComment)
		})
	})
}

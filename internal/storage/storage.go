// Package storage contains a storage interface.
package storage

import (
	"context"
	"fmt"

	"github.com/picstream/picstream/internal/entities"
)

//go:generate mockgen -destination=./mock/storage.go -package=mock -source=storage.go

// ErrNotFound ...
var ErrNotFound = fmt.Errorf("not found")

// ErrConflict is returned when a unique field is already taken.
var ErrConflict = fmt.Errorf("already exists")

// ErrForbidden is returned when a caller tries to delete a post they do not own.
var ErrForbidden = fmt.Errorf("forbidden")

// ErrSelfReference is returned when a user tries to subscribe to themself.
var ErrSelfReference = fmt.Errorf("self reference")

// Storage provides methods for interacting with database.
type Storage interface {
	InTx(ctx context.Context, f func(s Storage) error) error

	CreateUser(ctx context.Context, p *CreateUserParams) (*entities.User, error)
	GetUserByID(ctx context.Context, id string) (*entities.User, error)
	GetUserByUsername(ctx context.Context, username string) (*entities.User, error)
	ListUsers(ctx context.Context, p *ListParams) ([]*entities.User, error)
	UpdateUser(ctx context.Context, id string, p *UpdateUserParams) (*entities.User, error)
	SetUsername(ctx context.Context, id, username string) (*entities.User, error)
	SetBio(ctx context.Context, id, bio string) (*entities.User, error)
	SetNameSurname(ctx context.Context, id, name, surname string) (*entities.User, error)
	SetProfileImage(ctx context.Context, id, image string) (*entities.User, error)
	DeleteUser(ctx context.Context, id string) error

	Subscribe(ctx context.Context, follower, followee string) error
	Unsubscribe(ctx context.Context, follower, followee string) error
	GetSubscribers(ctx context.Context, id string) ([]*entities.User, error)
	GetSubscriptions(ctx context.Context, id string) ([]*entities.User, error)

	CreatePost(ctx context.Context, p *CreatePostParams) (*entities.Post, error)
	GetPost(ctx context.Context, id string) (*entities.Post, error)
	ListPosts(ctx context.Context, p *ListParams) ([]*entities.Post, error)
	DeletePost(ctx context.Context, id, requestedBy string) error
	GetFeed(ctx context.Context, viewer string, p *ListParams) ([]*entities.Post, error)
	GetProfileFeed(ctx context.Context, owner string, p *ListParams) ([]*entities.Post, error)

	SetLike(ctx context.Context, postID, likedBy string) error
	UnsetLike(ctx context.Context, postID, likedBy string) error
	GetLikedPosts(ctx context.Context, userID string) ([]string, error)

	CreateComment(ctx context.Context, p *CreateCommentParams) (*entities.Comment, error)
	ListComments(ctx context.Context, postID string) ([]*entities.Comment, error)
}

// ListParams bounds list queries. Results are always ordered by creation
// time, newest first.
type ListParams struct {
	Limit  uint16
	Offset uint32
}

// CreateUserParams ...
type CreateUserParams struct {
	Username       string
	HashedPassword string
	ProfileImage   string
}

// UpdateUserParams holds a partial profile update; nil fields are left
// untouched.
type UpdateUserParams struct {
	Name    *string
	Surname *string
	Bio     *string
	Age     *uint8
	Gender  *string
	Email   *string
}

// CreatePostParams ...
type CreatePostParams struct {
	Owner   string
	Image   string
	Caption string
}

// CreateCommentParams ...
type CreateCommentParams struct {
	PostID string
	Owner  string
	Body   string
}

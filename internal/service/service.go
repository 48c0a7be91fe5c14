// Package service contains interface for service business-logic.
package service

import (
	"context"

	"github.com/picstream/picstream/internal/entities"
)

//go:generate mockgen -destination=./mock/service.go -package=mock -source=service.go

// ProfileUpdate holds a partial profile update; nil fields are left untouched.
type ProfileUpdate struct {
	Name    *string
	Surname *string
	Bio     *string
	Age     *uint8
	Gender  *string
	Email   *string
}

// Service ...
type Service interface {
	ListUsers(ctx context.Context, limit uint16, offset uint32) ([]*entities.User, error)
	GetUser(ctx context.Context, id string) (*entities.User, error)
	UpdateProfile(ctx context.Context, id string, p *ProfileUpdate) (*entities.User, error)
	UpdateUsername(ctx context.Context, id, username string) (*entities.User, error)
	UpdateBio(ctx context.Context, id, bio string) (*entities.User, error)
	UpdateNameSurname(ctx context.Context, id, name, surname string) (*entities.User, error)
	UpdateProfileImage(ctx context.Context, id string, image []byte) (*entities.User, error)
	GetProfileImage(ctx context.Context, id string) ([]byte, error)
	DeleteUser(ctx context.Context, id string) error

	Subscribe(ctx context.Context, follower, followee string) error
	Unsubscribe(ctx context.Context, follower, followee string) error
	GetSubscribers(ctx context.Context, id string) ([]*entities.User, error)
	GetSubscriptions(ctx context.Context, id string) ([]*entities.User, error)

	CreatePost(ctx context.Context, owner string, image []byte, caption string) (*entities.Post, error)
	GetPost(ctx context.Context, id string) (*entities.Post, error)
	ListPosts(ctx context.Context, limit uint16, offset uint32) ([]*entities.Post, error)
	GetPostImage(ctx context.Context, id string) ([]byte, error)
	DeletePost(ctx context.Context, id, requestedBy string) error
	GetFeed(ctx context.Context, viewer string, limit uint16, offset uint32) ([]*entities.Post, error)
	GetProfileFeed(ctx context.Context, owner string, limit uint16, offset uint32) ([]*entities.Post, error)

	SetLike(ctx context.Context, postID, likedBy string) (*entities.Post, error)
	UnsetLike(ctx context.Context, postID, likedBy string) (*entities.Post, error)
	GetLikedPosts(ctx context.Context, userID string) ([]string, error)

	CreateComment(ctx context.Context, postID, owner, body string) (*entities.Comment, error)
	ListComments(ctx context.Context, postID string) ([]*entities.Comment, error)
}

// Package impl is implementation of service interface.
package impl

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/picstream/picstream/internal/blob"
	"github.com/picstream/picstream/internal/entities"
	"github.com/picstream/picstream/internal/service"
	"github.com/picstream/picstream/internal/storage"
)

var log = logrus.WithField("layer", "service")

// Blob namespaces for profile and post images.
const (
	profileImagePrefix = "imgs_profile"
	postImagePrefix    = "imgs_post"
)

// deletePageSize bounds the profile-feed pages walked when collecting image
// references of a user being deleted.
const deletePageSize = 1000

//go:embed placeholder.png
var placeholderImage []byte

type srv struct {
	s  storage.Storage
	fs blob.Store
}

// New creates new instance of service.
func New(s storage.Storage, fs blob.Store) service.Service {
	return srv{
		s:  s,
		fs: fs,
	}
}

func (s srv) ListUsers(ctx context.Context, limit uint16, offset uint32) ([]*entities.User, error) {
	out, err := s.s.ListUsers(ctx, &storage.ListParams{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return out, nil
}

func (s srv) GetUser(ctx context.Context, id string) (*entities.User, error) {
	u, err := s.s.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return u, nil
}

func (s srv) UpdateProfile(ctx context.Context, id string, p *service.ProfileUpdate) (*entities.User, error) {
	u, err := s.s.UpdateUser(ctx, id, &storage.UpdateUserParams{
		Name:    p.Name,
		Surname: p.Surname,
		Bio:     p.Bio,
		Age:     p.Age,
		Gender:  p.Gender,
		Email:   p.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return u, nil
}

func (s srv) UpdateUsername(ctx context.Context, id, username string) (*entities.User, error) {
	u, err := s.s.SetUsername(ctx, id, username)
	if err != nil {
		return nil, fmt.Errorf("failed to set username: %w", err)
	}

	return u, nil
}

func (s srv) UpdateBio(ctx context.Context, id, bio string) (*entities.User, error) {
	u, err := s.s.SetBio(ctx, id, bio)
	if err != nil {
		return nil, fmt.Errorf("failed to set bio: %w", err)
	}

	return u, nil
}

func (s srv) UpdateNameSurname(ctx context.Context, id, name, surname string) (*entities.User, error) {
	u, err := s.s.SetNameSurname(ctx, id, name, surname)
	if err != nil {
		return nil, fmt.Errorf("failed to set name and surname: %w", err)
	}

	return u, nil
}

// UpdateProfileImage stores the new image, drops the previous one unless it is
// the default placeholder, and records the new reference. The blob write and
// the record update are not one transaction; a failure in between leaves an
// unreferenced blob but never a dangling reference on the user.
func (s srv) UpdateProfileImage(ctx context.Context, id string, image []byte) (*entities.User, error) {
	u, err := s.s.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	ref, err := s.fs.Put(ctx, profileImagePrefix, image)
	if err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}

	if u.ProfileImage != entities.DefaultProfileImage {
		if err := s.fs.Delete(ctx, u.ProfileImage); err != nil {
			log.WithError(err).WithField("ref", u.ProfileImage).Warn("failed to delete old profile image")
		}
	}

	updated, err := s.s.SetProfileImage(ctx, id, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to set profile image: %w", err)
	}

	return updated, nil
}

func (s srv) GetProfileImage(ctx context.Context, id string) ([]byte, error) {
	u, err := s.s.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if u.ProfileImage == entities.DefaultProfileImage {
		return placeholderImage, nil
	}

	data, err := s.fs.Get(ctx, u.ProfileImage)
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}

	return data, nil
}

func (s srv) DeleteUser(ctx context.Context, id string) error {
	var refs []string

	if err := s.s.InTx(ctx, func(tx storage.Storage) error {
		u, err := tx.GetUserByID(ctx, id)
		if err != nil {
			return err
		}

		if u.ProfileImage != entities.DefaultProfileImage {
			refs = append(refs, u.ProfileImage)
		}

		for offset := uint32(0); ; offset += deletePageSize {
			posts, err := tx.GetProfileFeed(ctx, id, &storage.ListParams{Limit: deletePageSize, Offset: offset})
			if err != nil {
				return err
			}

			for _, p := range posts {
				refs = append(refs, p.Image)
			}

			if len(posts) < deletePageSize {
				break
			}
		}

		return tx.DeleteUser(ctx, id)
	}); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	for _, ref := range refs {
		if err := s.fs.Delete(ctx, ref); err != nil {
			log.WithError(err).WithField("ref", ref).Warn("failed to delete image of removed user")
		}
	}

	return nil
}

func (s srv) Subscribe(ctx context.Context, follower, followee string) error {
	if err := s.s.Subscribe(ctx, follower, followee); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	return nil
}

func (s srv) Unsubscribe(ctx context.Context, follower, followee string) error {
	if err := s.s.Unsubscribe(ctx, follower, followee); err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}

	return nil
}

func (s srv) GetSubscribers(ctx context.Context, id string) ([]*entities.User, error) {
	out, err := s.s.GetSubscribers(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscribers: %w", err)
	}

	return out, nil
}

func (s srv) GetSubscriptions(ctx context.Context, id string) ([]*entities.User, error) {
	out, err := s.s.GetSubscriptions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscriptions: %w", err)
	}

	return out, nil
}

func (s srv) CreatePost(ctx context.Context, owner string, image []byte, caption string) (*entities.Post, error) {
	ref, err := s.fs.Put(ctx, postImagePrefix, image)
	if err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}

	p, err := s.s.CreatePost(ctx, &storage.CreatePostParams{
		Owner:   owner,
		Image:   ref,
		Caption: caption,
	})
	if err != nil {
		if err := s.fs.Delete(ctx, ref); err != nil {
			log.WithError(err).WithField("ref", ref).Warn("failed to delete image of unsaved post")
		}

		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	return p, nil
}

func (s srv) GetPost(ctx context.Context, id string) (*entities.Post, error) {
	p, err := s.s.GetPost(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	return p, nil
}

func (s srv) ListPosts(ctx context.Context, limit uint16, offset uint32) ([]*entities.Post, error) {
	out, err := s.s.ListPosts(ctx, &storage.ListParams{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	return out, nil
}

func (s srv) GetPostImage(ctx context.Context, id string) ([]byte, error) {
	p, err := s.s.GetPost(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	data, err := s.fs.Get(ctx, p.Image)
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}

	return data, nil
}

func (s srv) DeletePost(ctx context.Context, id, requestedBy string) error {
	var image string

	if err := s.s.InTx(ctx, func(tx storage.Storage) error {
		p, err := tx.GetPost(ctx, id)
		if err != nil {
			return err
		}

		if err := tx.DeletePost(ctx, id, requestedBy); err != nil {
			return err
		}

		image = p.Image

		return nil
	}); err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}

	if err := s.fs.Delete(ctx, image); err != nil {
		log.WithError(err).WithField("ref", image).Warn("failed to delete image of removed post")
	}

	return nil
}

func (s srv) GetFeed(ctx context.Context, viewer string, limit uint16, offset uint32) ([]*entities.Post, error) {
	out, err := s.s.GetFeed(ctx, viewer, &storage.ListParams{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}

	return out, nil
}

func (s srv) GetProfileFeed(ctx context.Context, owner string, limit uint16, offset uint32) ([]*entities.Post, error) {
	out, err := s.s.GetProfileFeed(ctx, owner, &storage.ListParams{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("failed to get profile feed: %w", err)
	}

	return out, nil
}

func (s srv) SetLike(ctx context.Context, postID, likedBy string) (*entities.Post, error) {
	if err := s.s.SetLike(ctx, postID, likedBy); err != nil {
		return nil, fmt.Errorf("failed to set like: %w", err)
	}

	p, err := s.s.GetPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	return p, nil
}

func (s srv) UnsetLike(ctx context.Context, postID, likedBy string) (*entities.Post, error) {
	if err := s.s.UnsetLike(ctx, postID, likedBy); err != nil {
		return nil, fmt.Errorf("failed to unset like: %w", err)
	}

	p, err := s.s.GetPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	return p, nil
}

func (s srv) GetLikedPosts(ctx context.Context, userID string) ([]string, error) {
	out, err := s.s.GetLikedPosts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get liked posts: %w", err)
	}

	return out, nil
}

func (s srv) CreateComment(ctx context.Context, postID, owner, body string) (*entities.Comment, error) {
	c, err := s.s.CreateComment(ctx, &storage.CreateCommentParams{
		PostID: postID,
		Owner:  owner,
		Body:   body,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	return c, nil
}

func (s srv) ListComments(ctx context.Context, postID string) ([]*entities.Comment, error) {
	out, err := s.s.ListComments(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	return out, nil
}

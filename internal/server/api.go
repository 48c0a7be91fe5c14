package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/picstream/picstream/internal/entities"
)

const maxLimit = 100
const defaultLimit = 20

// Error ...
// swagger:model
type Error struct {
	Error string `json:"error"`
}

// AuthRequest carries signup and login credentials.
type AuthRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse ...
// swagger:model
type TokenResponse struct {
	Token string `json:"token"`
}

// User ...
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Name         string `json:"name"`
	Surname      string `json:"surname"`
	Bio          string `json:"bio"`
	Age          uint8  `json:"age"`
	Gender       string `json:"gender"`
	Email        string `json:"email"`
	ProfileImage string `json:"profileImage"`
	CreatedAt    uint64 `json:"createdAt"`
	UpdatedAt    uint64 `json:"updatedAt"`
}

// Post ...
type Post struct {
	ID        string `json:"id"`
	Owner     string `json:"owner"`
	Image     string `json:"image"`
	Caption   string `json:"caption"`
	Likes     uint32 `json:"likes"`
	CreatedAt uint64 `json:"createdAt"`
}

// Comment ...
type Comment struct {
	ID        string `json:"id"`
	PostID    string `json:"postId"`
	Owner     string `json:"owner"`
	Body      string `json:"body"`
	CreatedAt uint64 `json:"createdAt"`
}

// ListUsersResponse ...
// swagger:model
type ListUsersResponse struct {
	Users []*User `json:"users"`
}

// ListPostsResponse ...
// swagger:model
type ListPostsResponse struct {
	Posts []*Post `json:"posts"`
}

// ListCommentsResponse ...
// swagger:model
type ListCommentsResponse struct {
	Comments []*Comment `json:"comments"`
}

// LikedPostsResponse holds ids of posts liked by the caller.
// swagger:model
type LikedPostsResponse struct {
	Posts []string `json:"posts"`
}

// ProfileUpdateRequest carries a partial profile update; absent fields are
// left untouched.
type ProfileUpdateRequest struct {
	Name    *string `json:"name"`
	Surname *string `json:"surname"`
	Bio     *string `json:"bio"`
	Age     *uint8  `json:"age"`
	Gender  *string `json:"gender"`
	Email   *string `json:"email"`
}

// UsernameRequest ...
type UsernameRequest struct {
	Username string `json:"username"`
}

// BioRequest ...
type BioRequest struct {
	Bio string `json:"bio"`
}

// NameSurnameRequest ...
type NameSurnameRequest struct {
	Name    string `json:"name"`
	Surname string `json:"surname"`
}

// CommentRequest ...
type CommentRequest struct {
	Body string `json:"body"`
}

func toAPIUser(u *entities.User) *User {
	if u == nil {
		return nil
	}

	return &User{
		ID:           u.ID,
		Username:     u.Username,
		Name:         u.Name,
		Surname:      u.Surname,
		Bio:          u.Bio,
		Age:          u.Age,
		Gender:       u.Gender,
		Email:        u.Email,
		ProfileImage: u.ProfileImage,
		CreatedAt:    uint64(u.CreatedAt.Unix()),
		UpdatedAt:    uint64(u.UpdatedAt.Unix()),
	}
}

func toAPIUsers(in []*entities.User) []*User {
	out := make([]*User, len(in))
	for i, v := range in {
		out[i] = toAPIUser(v)
	}

	return out
}

func toAPIPost(p *entities.Post) *Post {
	if p == nil {
		return nil
	}

	return &Post{
		ID:        p.ID,
		Owner:     p.Owner,
		Image:     p.Image,
		Caption:   p.Caption,
		Likes:     p.Likes,
		CreatedAt: uint64(p.CreatedAt.Unix()),
	}
}

func toAPIPosts(in []*entities.Post) []*Post {
	out := make([]*Post, len(in))
	for i, v := range in {
		out[i] = toAPIPost(v)
	}

	return out
}

func toAPIComment(c *entities.Comment) *Comment {
	if c == nil {
		return nil
	}

	return &Comment{
		ID:        c.ID,
		PostID:    c.PostID,
		Owner:     c.Owner,
		Body:      c.Body,
		CreatedAt: uint64(c.CreatedAt.Unix()),
	}
}

func toAPIComments(in []*entities.Comment) []*Comment {
	out := make([]*Comment, len(in))
	for i, v := range in {
		out[i] = toAPIComment(v)
	}

	return out
}

func writeOK(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeOK(w, status, Error{Error: message})
}

func writeInternalError(_ context.Context, w http.ResponseWriter, message string) {
	logrus.Error(message)
	writeError(w, http.StatusInternalServerError, "internal error")
}

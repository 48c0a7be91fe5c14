package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/picstream/picstream/internal/blob"
	"github.com/picstream/picstream/internal/credentials"
	"github.com/picstream/picstream/internal/entities"
	mm "github.com/picstream/picstream/internal/middleware"
	"github.com/picstream/picstream/internal/service"
	"github.com/picstream/picstream/internal/storage"
)

var errInvalidRequest = errors.New("invalid request")

func (s server) signup(w http.ResponseWriter, r *http.Request) {
	// swagger:operation POST /auth/signup Auth Signup
	//
	// Register a new account.
	//
	// ---
	// responses:
	//   '201':
	//     description: created user
	//     schema:
	//       "$ref": "#/definitions/User"
	//   '409':
	//     description: username already taken
	//     schema:
	//       "$ref": "#/definitions/Error"

	req, err := decodeAuthRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	u, err := s.c.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(r, w, err, "sign up user")
		return
	}

	writeOK(w, http.StatusCreated, toAPIUser(u))
}

func (s server) login(w http.ResponseWriter, r *http.Request) {
	// swagger:operation POST /auth/login Auth Login
	//
	// Exchange username and password for a bearer token.
	//
	// ---
	// responses:
	//   '200':
	//     description: token
	//     schema:
	//       "$ref": "#/definitions/TokenResponse"
	//   '401':
	//     description: invalid credentials
	//     schema:
	//       "$ref": "#/definitions/Error"

	req, err := decodeAuthRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	u, err := s.c.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(r, w, err, "authenticate user")
		return
	}

	token, err := s.c.IssueToken(u)
	if err != nil {
		writeInternalError(r.Context(), w, fmt.Sprintf("failed to issue token: %s", err))
		return
	}

	writeOK(w, http.StatusOK, TokenResponse{Token: token})
}

func (s server) listUsers(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /users Users ListUsers
	//
	// Return users, newest first.
	//
	// ---
	// parameters:
	// - name: limit
	//   in: query
	//   required: false
	//   default: 20
	//   maximum: 100
	// - name: skip
	//   in: query
	//   required: false
	// responses:
	//   '200':
	//     description: users
	//     schema:
	//       "$ref": "#/definitions/ListUsersResponse"

	limit, offset, err := extractListParamsFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	users, err := s.s.ListUsers(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(r, w, err, "list users")
		return
	}

	writeOK(w, http.StatusOK, ListUsersResponse{Users: toAPIUsers(users)})
}

func (s server) getUser(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /users/{id} Users GetUser
	//
	// Get user by id.
	//
	// ---
	// responses:
	//   '200':
	//     description: user
	//     schema:
	//       "$ref": "#/definitions/User"
	//   '404':
	//     description: user not found
	//     schema:
	//       "$ref": "#/definitions/Error"

	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	u, err := s.s.GetUser(r.Context(), id)
	if err != nil {
		writeServiceError(r, w, err, "get user")
		return
	}

	writeOK(w, http.StatusOK, toAPIUser(u))
}

func (s server) getProfileImage(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /users/{id}/image Users GetProfileImage
	//
	// Get the profile image bytes of a user.
	//
	// ---
	// produces:
	// - application/octet-stream

	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	data, err := s.s.GetProfileImage(r.Context(), id)
	if err != nil {
		writeServiceError(r, w, err, "get profile image")
		return
	}

	writeImage(w, data)
}

func (s server) updateProfile(w http.ResponseWriter, r *http.Request) {
	// swagger:operation PATCH /users/me Users UpdateProfile
	//
	// Partially update the caller's profile fields.
	//
	// ---
	// responses:
	//   '200':
	//     description: updated user
	//     schema:
	//       "$ref": "#/definitions/User"

	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var req ProfileUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	u, err := s.s.UpdateProfile(r.Context(), caller.ID, req.toProfileUpdate())
	if err != nil {
		writeServiceError(r, w, err, "update profile")
		return
	}

	writeOK(w, http.StatusOK, toAPIUser(u))
}

func (s server) updateUsername(w http.ResponseWriter, r *http.Request) {
	// swagger:operation PUT /users/me/username Users UpdateUsername
	//
	// Change the caller's username.
	//
	// ---
	// responses:
	//   '200':
	//     description: updated user
	//     schema:
	//       "$ref": "#/definitions/User"
	//   '409':
	//     description: username already taken
	//     schema:
	//       "$ref": "#/definitions/Error"

	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var req UsernameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		writeError(w, http.StatusBadRequest, "invalid username")
		return
	}

	u, err := s.s.UpdateUsername(r.Context(), caller.ID, req.Username)
	if err != nil {
		writeServiceError(r, w, err, "update username")
		return
	}

	writeOK(w, http.StatusOK, toAPIUser(u))
}

func (s server) updateBio(w http.ResponseWriter, r *http.Request) {
	// swagger:operation PUT /users/me/bio Users UpdateBio
	//
	// Change the caller's bio.

	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var req BioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	u, err := s.s.UpdateBio(r.Context(), caller.ID, req.Bio)
	if err != nil {
		writeServiceError(r, w, err, "update bio")
		return
	}

	writeOK(w, http.StatusOK, toAPIUser(u))
}

func (s server) updateNameSurname(w http.ResponseWriter, r *http.Request) {
	// swagger:operation PUT /users/me/name Users UpdateNameSurname
	//
	// Change the caller's name and surname.

	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var req NameSurnameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	u, err := s.s.UpdateNameSurname(r.Context(), caller.ID, req.Name, req.Surname)
	if err != nil {
		writeServiceError(r, w, err, "update name")
		return
	}

	writeOK(w, http.StatusOK, toAPIUser(u))
}

func (s server) updateProfileImage(w http.ResponseWriter, r *http.Request) {
	// swagger:operation POST /users/me/image Users UpdateProfileImage
	//
	// Replace the caller's profile image. The previous image is removed from
	// the blob store unless it is the default placeholder.
	//
	// ---
	// consumes:
	// - multipart/form-data

	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	data, err := readImage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	u, err := s.s.UpdateProfileImage(r.Context(), caller.ID, data)
	if err != nil {
		writeServiceError(r, w, err, "update profile image")
		return
	}

	writeOK(w, http.StatusOK, toAPIUser(u))
}

func (s server) deleteUser(w http.ResponseWriter, r *http.Request) {
	// swagger:operation DELETE /users/me Users DeleteUser
	//
	// Delete the caller's account with its posts, comments, likes and
	// subscriptions.

	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	if err := s.s.DeleteUser(r.Context(), caller.ID); err != nil {
		writeServiceError(r, w, err, "delete user")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s server) subscribe(w http.ResponseWriter, r *http.Request) {
	// swagger:operation POST /users/{id}/subscription Users Subscribe
	//
	// Subscribe the caller to the given user. Subscribing twice is a no-op.
	//
	// ---
	// responses:
	//   '204':
	//     description: subscribed
	//   '400':
	//     description: self subscription
	//     schema:
	//       "$ref": "#/definitions/Error"
	//   '404':
	//     description: user not found
	//     schema:
	//       "$ref": "#/definitions/Error"

	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := s.s.Subscribe(r.Context(), caller.ID, id); err != nil {
		writeServiceError(r, w, err, "subscribe")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s server) unsubscribe(w http.ResponseWriter, r *http.Request) {
	// swagger:operation DELETE /users/{id}/subscription Users Unsubscribe
	//
	// Remove the caller's subscription to the given user.

	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := s.s.Unsubscribe(r.Context(), caller.ID, id); err != nil {
		writeServiceError(r, w, err, "unsubscribe")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s server) getSubscribers(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /users/{id}/subscribers Users GetSubscribers
	//
	// Users following the given user, oldest subscription first.

	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	users, err := s.s.GetSubscribers(r.Context(), id)
	if err != nil {
		writeServiceError(r, w, err, "get subscribers")
		return
	}

	writeOK(w, http.StatusOK, ListUsersResponse{Users: toAPIUsers(users)})
}

func (s server) getSubscriptions(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /users/{id}/subscriptions Users GetSubscriptions
	//
	// Users the given user follows, oldest subscription first.

	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	users, err := s.s.GetSubscriptions(r.Context(), id)
	if err != nil {
		writeServiceError(r, w, err, "get subscriptions")
		return
	}

	writeOK(w, http.StatusOK, ListUsersResponse{Users: toAPIUsers(users)})
}

func (s server) getLikedPosts(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /users/me/liked Users GetLikedPosts
	//
	// Ids of posts liked by the caller.

	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	posts, err := s.s.GetLikedPosts(r.Context(), caller.ID)
	if err != nil {
		writeServiceError(r, w, err, "get liked posts")
		return
	}

	writeOK(w, http.StatusOK, LikedPostsResponse{Posts: posts})
}

func (s server) createPost(w http.ResponseWriter, r *http.Request) {
	// swagger:operation POST /posts Posts CreatePost
	//
	// Create a post owned by the caller from an uploaded image and caption.
	//
	// ---
	// consumes:
	// - multipart/form-data
	// responses:
	//   '201':
	//     description: created post
	//     schema:
	//       "$ref": "#/definitions/Post"

	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	data, err := readImage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := s.s.CreatePost(r.Context(), caller.ID, data, r.FormValue("caption"))
	if err != nil {
		writeServiceError(r, w, err, "create post")
		return
	}

	writeOK(w, http.StatusCreated, toAPIPost(p))
}

func (s server) listPosts(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /posts Posts ListPosts
	//
	// Return posts, newest first.

	limit, offset, err := extractListParamsFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	posts, err := s.s.ListPosts(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(r, w, err, "list posts")
		return
	}

	writeOK(w, http.StatusOK, ListPostsResponse{Posts: toAPIPosts(posts)})
}

func (s server) getPost(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /posts/{id} Posts GetPost
	//
	// Get post by id.

	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	p, err := s.s.GetPost(r.Context(), id)
	if err != nil {
		writeServiceError(r, w, err, "get post")
		return
	}

	writeOK(w, http.StatusOK, toAPIPost(p))
}

func (s server) getPostImage(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /posts/{id}/image Posts GetPostImage
	//
	// Get the image bytes of a post.
	//
	// ---
	// produces:
	// - application/octet-stream

	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	data, err := s.s.GetPostImage(r.Context(), id)
	if err != nil {
		writeServiceError(r, w, err, "get post image")
		return
	}

	writeImage(w, data)
}

func (s server) deletePost(w http.ResponseWriter, r *http.Request) {
	// swagger:operation DELETE /posts/{id} Posts DeletePost
	//
	// Delete a post owned by the caller.
	//
	// ---
	// responses:
	//   '204':
	//     description: deleted
	//   '403':
	//     description: caller does not own the post
	//     schema:
	//       "$ref": "#/definitions/Error"

	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := s.s.DeletePost(r.Context(), id, caller.ID); err != nil {
		writeServiceError(r, w, err, "delete post")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s server) getFeed(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /feed Posts GetFeed
	//
	// Posts authored by users the caller subscribes to, newest first.

	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	limit, offset, err := extractListParamsFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	posts, err := s.s.GetFeed(r.Context(), caller.ID, limit, offset)
	if err != nil {
		writeServiceError(r, w, err, "get feed")
		return
	}

	writeOK(w, http.StatusOK, ListPostsResponse{Posts: toAPIPosts(posts)})
}

func (s server) getProfileFeed(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /feed/profile Posts GetProfileFeed
	//
	// Posts authored by the caller, newest first.

	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	limit, offset, err := extractListParamsFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	posts, err := s.s.GetProfileFeed(r.Context(), caller.ID, limit, offset)
	if err != nil {
		writeServiceError(r, w, err, "get profile feed")
		return
	}

	writeOK(w, http.StatusOK, ListPostsResponse{Posts: toAPIPosts(posts)})
}

func (s server) like(w http.ResponseWriter, r *http.Request) {
	// swagger:operation POST /posts/{id}/like Posts Like
	//
	// Like a post. Liking twice is a no-op.
	//
	// ---
	// responses:
	//   '200':
	//     description: post with the updated like count
	//     schema:
	//       "$ref": "#/definitions/Post"

	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	p, err := s.s.SetLike(r.Context(), id, caller.ID)
	if err != nil {
		writeServiceError(r, w, err, "set like")
		return
	}

	writeOK(w, http.StatusOK, toAPIPost(p))
}

func (s server) unlike(w http.ResponseWriter, r *http.Request) {
	// swagger:operation DELETE /posts/{id}/like Posts Unlike
	//
	// Remove the caller's like from a post. Removing an absent like is a
	// no-op.

	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	p, err := s.s.UnsetLike(r.Context(), id, caller.ID)
	if err != nil {
		writeServiceError(r, w, err, "unset like")
		return
	}

	writeOK(w, http.StatusOK, toAPIPost(p))
}

func (s server) createComment(w http.ResponseWriter, r *http.Request) {
	// swagger:operation POST /posts/{id}/comments Posts CreateComment
	//
	// Comment on a post.
	//
	// ---
	// responses:
	//   '201':
	//     description: created comment
	//     schema:
	//       "$ref": "#/definitions/Comment"
	//   '404':
	//     description: post not found
	//     schema:
	//       "$ref": "#/definitions/Error"

	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Body == "" {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	c, err := s.s.CreateComment(r.Context(), id, caller.ID, req.Body)
	if err != nil {
		writeServiceError(r, w, err, "create comment")
		return
	}

	writeOK(w, http.StatusCreated, toAPIComment(c))
}

func (s server) listComments(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /posts/{id}/comments Posts ListComments
	//
	// Comments of a post, oldest first.

	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	comments, err := s.s.ListComments(r.Context(), id)
	if err != nil {
		writeServiceError(r, w, err, "list comments")
		return
	}

	writeOK(w, http.StatusOK, ListCommentsResponse{Comments: toAPIComments(comments)})
}

func writeServiceError(r *http.Request, w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, blob.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, storage.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, storage.ErrConflict):
		writeError(w, http.StatusConflict, "already exists")
	case errors.Is(err, storage.ErrSelfReference):
		writeError(w, http.StatusBadRequest, "can not subscribe to yourself")
	case errors.Is(err, credentials.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	default:
		writeInternalError(r.Context(), w, fmt.Sprintf("failed to %s: %s", action, err))
	}
}

func callerFrom(w http.ResponseWriter, r *http.Request) (*entities.User, bool) {
	u, ok := mm.UserFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
	}

	return u, ok
}

func decodeAuthRequest(r *http.Request) (*AuthRequest, error) {
	var req AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("%w: invalid body", errInvalidRequest)
	}

	if req.Username == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: username and password are required", errInvalidRequest)
	}

	return &req, nil
}

func extractListParamsFromQuery(q url.Values) (limit uint16, offset uint32, err error) {
	limit = defaultLimit

	if s := q.Get("limit"); s != "" {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: failed to parse limit", errInvalidRequest)
		}

		if v == 0 || v > maxLimit {
			return 0, 0, fmt.Errorf("%w: invalid limit", errInvalidRequest)
		}

		limit = uint16(v)
	}

	if s := q.Get("skip"); s != "" {
		v, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: failed to parse skip", errInvalidRequest)
		}

		offset = uint32(v)
	}

	return limit, offset, nil
}

func readImage(r *http.Request) ([]byte, error) {
	f, _, err := r.FormFile("image")
	if err != nil {
		return nil, fmt.Errorf("%w: image file is required", errInvalidRequest)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("%w: image is empty", errInvalidRequest)
	}

	return data, nil
}

func writeImage(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (r *ProfileUpdateRequest) toProfileUpdate() *service.ProfileUpdate {
	return &service.ProfileUpdate{
		Name:    r.Name,
		Surname: r.Surname,
		Bio:     r.Bio,
		Age:     r.Age,
		Gender:  r.Gender,
		Email:   r.Email,
	}
}

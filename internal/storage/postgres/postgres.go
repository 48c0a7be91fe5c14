// Package postgres is implementation of storage interface.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/picstream/picstream/internal/entities"
	"github.com/picstream/picstream/internal/storage"
)

var log = logrus.WithField("layer", "storage").WithField("package", "postgres")
var errBeginCalledWithinTx = errors.New("can not run InTx in tx")

const (
	foreignKeyViolation = "23503"
	uniqueViolation     = "23505"
)

type pg struct {
	ext sqlx.ExtContext
}

type userDTO struct {
	ID             string    `db:"id"`
	Username       string    `db:"username"`
	HashedPassword string    `db:"hashed_password"`
	Name           string    `db:"name"`
	Surname        string    `db:"surname"`
	Bio            string    `db:"bio"`
	Age            uint8     `db:"age"`
	Gender         string    `db:"gender"`
	Email          string    `db:"email"`
	ProfileImage   string    `db:"profile_image"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

type postDTO struct {
	ID        string    `db:"id"`
	Owner     string    `db:"owner"`
	Image     string    `db:"image"`
	Caption   string    `db:"caption"`
	Likes     uint32    `db:"likes"`
	CreatedAt time.Time `db:"created_at"`
}

type commentDTO struct {
	ID        string    `db:"id"`
	PostID    string    `db:"post_id"`
	Owner     string    `db:"owner"`
	Body      string    `db:"body"`
	CreatedAt time.Time `db:"created_at"`
}

const userColumns = `id, username, hashed_password, name, surname, bio, age, gender, email, profile_image, created_at, updated_at`

const postColumns = `p.id, p.owner, p.image, p.caption, p.created_at,
	(SELECT COUNT(*) FROM "like" l WHERE l.post_id = p.id) AS likes`

func (s pg) InTx(ctx context.Context, f func(s storage.Storage) error) error {
	db, ok := s.ext.(*sqlx.DB)
	if !ok {
		return errBeginCalledWithinTx
	}

	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to create tx: %w", err)
	}

	if err := f(pg{ext: tx}); err != nil {
		if err := tx.Rollback(); err != nil {
			log.WithError(err).Error("failed to rollback tx")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}

	return nil
}

func (s pg) CreateUser(ctx context.Context, p *storage.CreateUserParams) (*entities.User, error) {
	var u userDTO

	if err := sqlx.GetContext(ctx, s.ext, &u, `
			INSERT INTO users(id, username, hashed_password, profile_image)
			VALUES($1, $2, $3, $4)
			RETURNING `+userColumns,
		uuid.New().String(), p.Username, p.HashedPassword, p.ProfileImage,
	); err != nil {
		if err, ok := err.(*pq.Error); ok && err.Code == uniqueViolation {
			return nil, storage.ErrConflict
		}

		return nil, fmt.Errorf("failed to exec: %w", err)
	}

	return toUser(&u), nil
}

func (s pg) GetUserByID(ctx context.Context, id string) (*entities.User, error) {
	var u userDTO

	if err := sqlx.GetContext(ctx, s.ext, &u,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to query: %w", err)
	}

	return toUser(&u), nil
}

func (s pg) GetUserByUsername(ctx context.Context, username string) (*entities.User, error) {
	var u userDTO

	if err := sqlx.GetContext(ctx, s.ext, &u,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to query: %w", err)
	}

	return toUser(&u), nil
}

func (s pg) ListUsers(ctx context.Context, p *storage.ListParams) ([]*entities.User, error) {
	var out []*userDTO

	if err := sqlx.SelectContext(ctx, s.ext, &out, `
			SELECT `+userColumns+` FROM users
			ORDER BY created_at DESC, id
			LIMIT $1 OFFSET $2
		`, p.Limit, p.Offset,
	); err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	return toUsers(out), nil
}

func (s pg) UpdateUser(ctx context.Context, id string, p *storage.UpdateUserParams) (*entities.User, error) {
	var u userDTO

	if err := sqlx.GetContext(ctx, s.ext, &u, `
			UPDATE users SET
				name=COALESCE($2, name),
				surname=COALESCE($3, surname),
				bio=COALESCE($4, bio),
				age=COALESCE($5, age),
				gender=COALESCE($6, gender),
				email=COALESCE($7, email),
				updated_at=now()
			WHERE id = $1
			RETURNING `+userColumns,
		id, p.Name, p.Surname, p.Bio, p.Age, p.Gender, p.Email,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to exec: %w", err)
	}

	return toUser(&u), nil
}

func (s pg) SetUsername(ctx context.Context, id, username string) (*entities.User, error) {
	var u userDTO

	if err := sqlx.GetContext(ctx, s.ext, &u,
		`UPDATE users SET username=$2, updated_at=now() WHERE id = $1 RETURNING `+userColumns,
		id, username,
	); err != nil {
		if err, ok := err.(*pq.Error); ok && err.Code == uniqueViolation {
			return nil, storage.ErrConflict
		}

		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to exec: %w", err)
	}

	return toUser(&u), nil
}

func (s pg) SetBio(ctx context.Context, id, bio string) (*entities.User, error) {
	var u userDTO

	if err := sqlx.GetContext(ctx, s.ext, &u,
		`UPDATE users SET bio=$2, updated_at=now() WHERE id = $1 RETURNING `+userColumns,
		id, bio,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to exec: %w", err)
	}

	return toUser(&u), nil
}

func (s pg) SetNameSurname(ctx context.Context, id, name, surname string) (*entities.User, error) {
	var u userDTO

	if err := sqlx.GetContext(ctx, s.ext, &u,
		`UPDATE users SET name=$2, surname=$3, updated_at=now() WHERE id = $1 RETURNING `+userColumns,
		id, name, surname,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to exec: %w", err)
	}

	return toUser(&u), nil
}

func (s pg) SetProfileImage(ctx context.Context, id, image string) (*entities.User, error) {
	var u userDTO

	if err := sqlx.GetContext(ctx, s.ext, &u,
		`UPDATE users SET profile_image=$2, updated_at=now() WHERE id = $1 RETURNING `+userColumns,
		id, image,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to exec: %w", err)
	}

	return toUser(&u), nil
}

func (s pg) DeleteUser(ctx context.Context, id string) error {
	res, err := s.ext.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to exec: %w", err)
	}

	if c, _ := res.RowsAffected(); c == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func (s pg) Subscribe(ctx context.Context, follower, followee string) error {
	if follower == followee {
		return storage.ErrSelfReference
	}

	if _, err := s.ext.ExecContext(ctx,
		`INSERT INTO follow(follower, followee) VALUES($1, $2) ON CONFLICT DO NOTHING`,
		follower, followee,
	); err != nil {
		if err, ok := err.(*pq.Error); ok && err.Code == foreignKeyViolation {
			return storage.ErrNotFound
		}

		return fmt.Errorf("failed to exec: %w", err)
	}

	return nil
}

func (s pg) Unsubscribe(ctx context.Context, follower, followee string) error {
	if _, err := s.ext.ExecContext(ctx,
		`DELETE FROM follow WHERE follower=$1 AND followee=$2`,
		follower, followee,
	); err != nil {
		return fmt.Errorf("failed to exec: %w", err)
	}

	return nil
}

func (s pg) GetSubscribers(ctx context.Context, id string) ([]*entities.User, error) {
	if err := s.checkUserExists(ctx, id); err != nil {
		return nil, err
	}

	var out []*userDTO

	if err := sqlx.SelectContext(ctx, s.ext, &out, `
			SELECT u.id, u.username, u.hashed_password, u.name, u.surname, u.bio, u.age, u.gender, u.email,
				u.profile_image, u.created_at, u.updated_at
			FROM users u
			JOIN follow f ON f.follower = u.id
			WHERE f.followee = $1
			ORDER BY f.created_at
		`, id,
	); err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	return toUsers(out), nil
}

func (s pg) GetSubscriptions(ctx context.Context, id string) ([]*entities.User, error) {
	if err := s.checkUserExists(ctx, id); err != nil {
		return nil, err
	}

	var out []*userDTO

	if err := sqlx.SelectContext(ctx, s.ext, &out, `
			SELECT u.id, u.username, u.hashed_password, u.name, u.surname, u.bio, u.age, u.gender, u.email,
				u.profile_image, u.created_at, u.updated_at
			FROM users u
			JOIN follow f ON f.followee = u.id
			WHERE f.follower = $1
			ORDER BY f.created_at
		`, id,
	); err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	return toUsers(out), nil
}

func (s pg) CreatePost(ctx context.Context, p *storage.CreatePostParams) (*entities.Post, error) {
	var post postDTO

	if err := sqlx.GetContext(ctx, s.ext, &post, `
			INSERT INTO post(id, owner, image, caption)
			VALUES($1, $2, $3, $4)
			RETURNING id, owner, image, caption, created_at, 0 AS likes
		`, uuid.New().String(), p.Owner, p.Image, p.Caption,
	); err != nil {
		if err, ok := err.(*pq.Error); ok && err.Code == foreignKeyViolation {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to exec: %w", err)
	}

	return toPost(&post), nil
}

func (s pg) GetPost(ctx context.Context, id string) (*entities.Post, error) {
	var p postDTO

	if err := sqlx.GetContext(ctx, s.ext, &p,
		`SELECT `+postColumns+` FROM post p WHERE p.id = $1`, id,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to query: %w", err)
	}

	return toPost(&p), nil
}

func (s pg) ListPosts(ctx context.Context, p *storage.ListParams) ([]*entities.Post, error) {
	var out []*postDTO

	if err := sqlx.SelectContext(ctx, s.ext, &out, `
			SELECT `+postColumns+` FROM post p
			ORDER BY p.created_at DESC, p.id
			LIMIT $1 OFFSET $2
		`, p.Limit, p.Offset,
	); err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	return toPosts(out), nil
}

func (s pg) DeletePost(ctx context.Context, id, requestedBy string) error {
	var owner string

	if err := sqlx.GetContext(ctx, s.ext, &owner, `SELECT owner FROM post WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}

		return fmt.Errorf("failed to query: %w", err)
	}

	if owner != requestedBy {
		return storage.ErrForbidden
	}

	if _, err := s.ext.ExecContext(ctx, `DELETE FROM post WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to exec: %w", err)
	}

	return nil
}

func (s pg) GetFeed(ctx context.Context, viewer string, p *storage.ListParams) ([]*entities.Post, error) {
	var out []*postDTO

	if err := sqlx.SelectContext(ctx, s.ext, &out, `
			SELECT `+postColumns+` FROM post p
			JOIN follow f ON f.followee = p.owner
			WHERE f.follower = $1
			ORDER BY p.created_at DESC, p.id
			LIMIT $2 OFFSET $3
		`, viewer, p.Limit, p.Offset,
	); err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	return toPosts(out), nil
}

func (s pg) GetProfileFeed(ctx context.Context, owner string, p *storage.ListParams) ([]*entities.Post, error) {
	var out []*postDTO

	if err := sqlx.SelectContext(ctx, s.ext, &out, `
			SELECT `+postColumns+` FROM post p
			WHERE p.owner = $1
			ORDER BY p.created_at DESC, p.id
			LIMIT $2 OFFSET $3
		`, owner, p.Limit, p.Offset,
	); err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	return toPosts(out), nil
}

func (s pg) SetLike(ctx context.Context, postID, likedBy string) error {
	if _, err := s.ext.ExecContext(ctx, `
			INSERT INTO "like"(post_id, liked_by) VALUES($1, $2)
			ON CONFLICT DO NOTHING
		`, postID, likedBy,
	); err != nil {
		if err, ok := err.(*pq.Error); ok && err.Code == foreignKeyViolation {
			return storage.ErrNotFound
		}

		return fmt.Errorf("failed to exec: %w", err)
	}

	return nil
}

// UnsetLike removes the like row if it exists. Removing an absent like is a
// no-op, so the derived counter can not go below zero.
func (s pg) UnsetLike(ctx context.Context, postID, likedBy string) error {
	if _, err := s.ext.ExecContext(ctx,
		`DELETE FROM "like" WHERE post_id=$1 AND liked_by=$2`,
		postID, likedBy,
	); err != nil {
		return fmt.Errorf("failed to exec: %w", err)
	}

	return nil
}

func (s pg) GetLikedPosts(ctx context.Context, userID string) ([]string, error) {
	out := make([]string, 0)

	if err := sqlx.SelectContext(ctx, s.ext, &out,
		`SELECT post_id FROM "like" WHERE liked_by = $1 ORDER BY liked_at`,
		userID,
	); err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	return out, nil
}

func (s pg) CreateComment(ctx context.Context, p *storage.CreateCommentParams) (*entities.Comment, error) {
	var c commentDTO

	if err := sqlx.GetContext(ctx, s.ext, &c, `
			INSERT INTO comment(id, post_id, owner, body)
			VALUES($1, $2, $3, $4)
			RETURNING id, post_id, owner, body, created_at
		`, uuid.New().String(), p.PostID, p.Owner, p.Body,
	); err != nil {
		if err, ok := err.(*pq.Error); ok && err.Code == foreignKeyViolation {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to exec: %w", err)
	}

	return toComment(&c), nil
}

func (s pg) ListComments(ctx context.Context, postID string) ([]*entities.Comment, error) {
	var out []*commentDTO

	if err := sqlx.SelectContext(ctx, s.ext, &out, `
			SELECT id, post_id, owner, body, created_at
			FROM comment
			WHERE post_id = $1
			ORDER BY created_at, id
		`, postID,
	); err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	res := make([]*entities.Comment, len(out))
	for i, v := range out {
		res[i] = toComment(v)
	}

	return res, nil
}

func (s pg) checkUserExists(ctx context.Context, id string) error {
	var exists bool

	if err := sqlx.GetContext(ctx, s.ext, &exists,
		`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id,
	); err != nil {
		return fmt.Errorf("failed to query: %w", err)
	}

	if !exists {
		return storage.ErrNotFound
	}

	return nil
}

// New creates new instance of pg.
func New(db *sql.DB) storage.Storage {
	return pg{
		ext: sqlx.NewDb(db, "postgres"),
	}
}

func toUser(u *userDTO) *entities.User {
	return &entities.User{
		ID:             u.ID,
		Username:       u.Username,
		HashedPassword: u.HashedPassword,
		Name:           u.Name,
		Surname:        u.Surname,
		Bio:            u.Bio,
		Age:            u.Age,
		Gender:         u.Gender,
		Email:          u.Email,
		ProfileImage:   u.ProfileImage,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

func toUsers(in []*userDTO) []*entities.User {
	out := make([]*entities.User, len(in))
	for i, v := range in {
		out[i] = toUser(v)
	}

	return out
}

func toPost(p *postDTO) *entities.Post {
	return &entities.Post{
		ID:        p.ID,
		Owner:     p.Owner,
		Image:     p.Image,
		Caption:   p.Caption,
		Likes:     p.Likes,
		CreatedAt: p.CreatedAt,
	}
}

func toPosts(in []*postDTO) []*entities.Post {
	out := make([]*entities.Post, len(in))
	for i, v := range in {
		out[i] = toPost(v)
	}

	return out
}

func toComment(c *commentDTO) *entities.Comment {
	return &entities.Comment{
		ID:        c.ID,
		PostID:    c.PostID,
		Owner:     c.Owner,
		Body:      c.Body,
		CreatedAt: c.CreatedAt,
	}
}

// Package entities contains main entities of service.
package entities

import (
	"time"
)

// DefaultProfileImage is the reference assigned to every new user. The blob
// store never holds it; the service serves an embedded placeholder instead.
const DefaultProfileImage = "default"

// User ...
type User struct {
	ID             string
	Username       string
	HashedPassword string
	Name           string
	Surname        string
	Bio            string
	Age            uint8
	Gender         string
	Email          string
	ProfileImage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Post ...
type Post struct {
	ID        string
	Owner     string
	Image     string
	Caption   string
	Likes     uint32
	CreatedAt time.Time
}

// Comment ...
type Comment struct {
	ID        string
	PostID    string
	Owner     string
	Body      string
	CreatedAt time.Time
}

package project

import (
	"errors"
	"time"

	"github.com/geocoder89/insighthub/internal/domain/user"
)

var (
	ErrNotFound      = errors.New("project not found")
	ErrOwnerNotFound = errors.New("project owner not found")
)

type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"ownerId"`
	Owner     user.Ref  `json:"owner"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// create and update share the same payload
type Request struct {
	Name string `json:"name" binding:"required,min=1,max=200"`
}

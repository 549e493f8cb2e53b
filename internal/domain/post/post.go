package post

import (
	"errors"
	"html"
	"strings"
	"time"

	"github.com/geocoder89/insighthub/internal/domain/user"
	"github.com/microcosm-cc/bluemonday"
)

var ErrNotFound = errors.New("post not found")

type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	OwnerID   string    `json:"ownerId"`
	Owner     user.Ref  `json:"owner"`
	Tags      []string  `json:"tags"`
	Likes     int       `json:"likes"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Request struct {
	Title   string `json:"title" binding:"required,min=1,max=200"`
	Content string `json:"content" binding:"required,max=20000"`
	// comma separated, e.g. "go, backend"
	Tags string `json:"tags" binding:"omitempty,max=500"`
}

type Input struct {
	Title   string
	Content string
	Tags    []string
}

var contentPolicy = bluemonday.StrictPolicy()

func (r Request) ToInput() Input {
	return Input{
		Title:   strings.TrimSpace(r.Title),
		Content: PlainText(r.Content),
		Tags:    ParseTags(r.Tags),
	}
}

// PlainText drops every tag from s and returns the remaining text unescaped,
// so "a < b & c" is stored as typed. Clients render content as text.
func PlainText(s string) string {
	return html.UnescapeString(contentPolicy.Sanitize(s))
}

// ParseTags splits a comma separated tag string, trimming names, dropping
// empty ones and keeping the first occurrence of each name.
func ParseTags(raw string) []string {
	seen := make(map[string]struct{})
	out := []string{}

	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}

	return out
}

// ToggleResult is the like state of a post after a toggle.
type ToggleResult struct {
	Liked bool `json:"liked"`
	Likes int  `json:"likes"`
}

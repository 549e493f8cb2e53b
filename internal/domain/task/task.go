package task

import (
	"errors"
	"time"

	"github.com/geocoder89/insighthub/internal/domain/project"
	"github.com/geocoder89/insighthub/internal/domain/user"
)

var (
	ErrNotFound         = errors.New("task not found")
	ErrAssigneeNotFound = errors.New("assignee not found")
)

type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
	Attachment  *string    `json:"attachment,omitempty"`
	ProjectID   string     `json:"projectId"`
	Project     ProjectRef `json:"project"`
	AssigneeID  *string    `json:"assigneeId,omitempty"`
	Assignee    *user.Ref  `json:"assignee,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// ProjectRef is the parent project as seen from a task.
type ProjectRef struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Owner user.Ref `json:"owner"`
}

// Board is a project with all of its tasks.
type Board struct {
	Project project.Project `json:"project"`
	Tasks   []Task          `json:"tasks"`
}

// Request is bound from JSON or from a multipart form carrying an "attachment" file.
type Request struct {
	Title       string `json:"title" form:"title" binding:"required,min=1,max=200"`
	Description string `json:"description" form:"description" binding:"omitempty,max=5000"`
	Completed   bool   `json:"completed" form:"completed"`
	AssigneeID  string `json:"assigneeId" form:"assigneeId" binding:"omitempty,uuid"`
}

// Input is what the repository writes. A nil Attachment on update keeps the stored file.
type Input struct {
	Title       string
	Description string
	Completed   bool
	AssigneeID  *string
	Attachment  *string
}

func (r Request) ToInput(attachment *string) Input {
	in := Input{
		Title:       r.Title,
		Description: r.Description,
		Completed:   r.Completed,
		Attachment:  attachment,
	}

	if r.AssigneeID != "" {
		id := r.AssigneeID
		in.AssigneeID = &id
	}

	return in
}

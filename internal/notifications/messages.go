package notifications

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/geocoder89/insighthub/internal/domain/post"
	"github.com/geocoder89/insighthub/internal/domain/project"
	"github.com/geocoder89/insighthub/internal/domain/task"
)

const (
	KindProject = "project"
	KindTask    = "task"
	KindPost    = "post"

	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"

	subjectPrefix = "[InsightHub]"
	placeholder   = "—"
)

type ProjectPayload struct {
	Kind      string `json:"kind"`
	Event     string `json:"event"`
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
}

type TaskPayload struct {
	Kind        string `json:"kind"`
	Event       string `json:"event"`
	TaskID      string `json:"task_id"`
	Title       string `json:"title"`
	Completed   bool   `json:"completed"`
	ProjectID   string `json:"project_id"`
	ProjectName string `json:"project_name"`
}

// TaskDeletedPayload carries project_id only on the project owner's copy.
type TaskDeletedPayload struct {
	Kind      string  `json:"kind"`
	Event     string  `json:"event"`
	TaskID    string  `json:"task_id"`
	Title     string  `json:"title"`
	ProjectID *string `json:"project_id,omitempty"`
}

type PostPayload struct {
	Kind   string `json:"kind"`
	Event  string `json:"event"`
	PostID string `json:"post_id"`
	Title  string `json:"title"`
}

type email struct {
	subject string
	body    string
}

func savedEvent(created bool) string {
	if created {
		return EventCreated
	}
	return EventUpdated
}

func subject(entity, event, name string) string {
	return fmt.Sprintf("%s %s %s: %s", subjectPrefix, entity, event, name)
}

func projectSavedEmail(p project.Project, created bool) email {
	return email{
		subject: subject("Project", savedEvent(created), p.Name),
		body:    fmt.Sprintf("Project: %s\nOwner: %s (%s)\n", p.Name, p.Owner.Username, p.Owner.Email),
	}
}

func projectDeletedEmail(p project.Project) email {
	return email{
		subject: subject("Project", EventDeleted, p.Name),
		body:    fmt.Sprintf("Project: %s\n", p.Name),
	}
}

func taskSavedEmail(t task.Task, created bool) email {
	assigneeName, assigneeEmail := placeholder, placeholder
	if t.Assignee != nil {
		assigneeName = orPlaceholder(t.Assignee.Username)
		assigneeEmail = orPlaceholder(t.Assignee.Email)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\n", t.Project.Name)
	fmt.Fprintf(&b, "Task: %s\n", t.Title)
	fmt.Fprintf(&b, "Completed: %s\n", strconv.FormatBool(t.Completed))
	fmt.Fprintf(&b, "Owner: %s (%s)\n", t.Project.Owner.Username, t.Project.Owner.Email)
	fmt.Fprintf(&b, "Assignee: %s (%s)\n", assigneeName, assigneeEmail)

	return email{
		subject: subject("Task", savedEvent(created), t.Title),
		body:    b.String(),
	}
}

func taskDeletedEmail(t task.Task) email {
	return email{
		subject: subject("Task", EventDeleted, t.Title),
		body:    fmt.Sprintf("Task: %s\nProject ID: %s\n", t.Title, orPlaceholder(t.ProjectID)),
	}
}

func postSavedEmail(p post.Post, created bool) email {
	return email{
		subject: subject("Post", savedEvent(created), p.Title),
		body:    fmt.Sprintf("Author: %s\nTitle: %s\n", p.Owner.Username, p.Title),
	}
}

func postDeletedEmail(p post.Post) email {
	return email{
		subject: subject("Post", EventDeleted, p.Title),
		body:    fmt.Sprintf("Title: %s\n", p.Title),
	}
}

func orPlaceholder(s string) string {
	if s == "" {
		return placeholder
	}
	return s
}

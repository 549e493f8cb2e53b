// Package notifications fans persisted changes out to the affected users over
// the real-time bus and by email.
package notifications

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/geocoder89/insighthub/internal/domain/post"
	"github.com/geocoder89/insighthub/internal/domain/project"
	"github.com/geocoder89/insighthub/internal/domain/task"
	"github.com/geocoder89/insighthub/internal/mailer"
	"github.com/geocoder89/insighthub/internal/observability"
	"github.com/geocoder89/insighthub/internal/realtime"
)

const (
	channelRealtime = "realtime"
	channelEmail    = "email"
)

type Config struct {
	From        string
	AdminEmails []string // empty disables admin alerts
}

// Dispatcher is called by the repositories after a write commits. Every
// publish and every email runs in its own failure boundary: errors and panics
// are logged and counted, never returned.
type Dispatcher struct {
	bus  realtime.Bus
	mail mailer.Mailer
	cfg  Config
	log  *slog.Logger
	prom *observability.Prom
}

func NewDispatcher(bus realtime.Bus, mail mailer.Mailer, cfg Config, log *slog.Logger, prom *observability.Prom) *Dispatcher {
	return &Dispatcher{bus: bus, mail: mail, cfg: cfg, log: log, prom: prom}
}

func (d *Dispatcher) ProjectSaved(ctx context.Context, p project.Project, created bool) {
	ctx = context.WithoutCancel(ctx)

	d.push(ctx, KindProject, p.OwnerID, ProjectPayload{
		Kind:      KindProject,
		Event:     savedEvent(created),
		ProjectID: p.ID,
		Name:      p.Name,
	})
	d.emailAdmins(ctx, KindProject, projectSavedEmail(p, created))
}

func (d *Dispatcher) ProjectDeleted(ctx context.Context, p project.Project) {
	ctx = context.WithoutCancel(ctx)

	d.push(ctx, KindProject, p.OwnerID, ProjectPayload{
		Kind:      KindProject,
		Event:     EventDeleted,
		ProjectID: p.ID,
		Name:      p.Name,
	})
	d.emailAdmins(ctx, KindProject, projectDeletedEmail(p))
}

func (d *Dispatcher) TaskSaved(ctx context.Context, t task.Task, created bool) {
	ctx = context.WithoutCancel(ctx)

	payload := TaskPayload{
		Kind:        KindTask,
		Event:       savedEvent(created),
		TaskID:      t.ID,
		Title:       t.Title,
		Completed:   t.Completed,
		ProjectID:   t.ProjectID,
		ProjectName: t.Project.Name,
	}

	d.push(ctx, KindTask, t.Project.Owner.ID, payload)
	if t.AssigneeID != nil {
		d.push(ctx, KindTask, *t.AssigneeID, payload)
	}

	msg := taskSavedEmail(t, created)
	d.emailAdmins(ctx, KindTask, msg)
	d.emailUser(ctx, KindTask, t.Project.Owner.Email, msg)
	if t.Assignee != nil {
		d.emailUser(ctx, KindTask, t.Assignee.Email, msg)
	}
}

func (d *Dispatcher) TaskDeleted(ctx context.Context, t task.Task) {
	ctx = context.WithoutCancel(ctx)

	var projectID *string
	if t.ProjectID != "" {
		id := t.ProjectID
		projectID = &id
	}

	d.push(ctx, KindTask, t.Project.Owner.ID, TaskDeletedPayload{
		Kind:      KindTask,
		Event:     EventDeleted,
		TaskID:    t.ID,
		Title:     t.Title,
		ProjectID: projectID,
	})
	if t.AssigneeID != nil {
		d.push(ctx, KindTask, *t.AssigneeID, TaskDeletedPayload{
			Kind:   KindTask,
			Event:  EventDeleted,
			TaskID: t.ID,
			Title:  t.Title,
		})
	}

	msg := taskDeletedEmail(t)
	d.emailAdmins(ctx, KindTask, msg)
	d.emailUser(ctx, KindTask, t.Project.Owner.Email, msg)
	if t.Assignee != nil {
		d.emailUser(ctx, KindTask, t.Assignee.Email, msg)
	}
}

func (d *Dispatcher) PostSaved(ctx context.Context, p post.Post, created bool) {
	ctx = context.WithoutCancel(ctx)

	d.push(ctx, KindPost, p.OwnerID, PostPayload{
		Kind:   KindPost,
		Event:  savedEvent(created),
		PostID: p.ID,
		Title:  p.Title,
	})
	d.emailAdmins(ctx, KindPost, postSavedEmail(p, created))
}

func (d *Dispatcher) PostDeleted(ctx context.Context, p post.Post) {
	ctx = context.WithoutCancel(ctx)

	d.push(ctx, KindPost, p.OwnerID, PostPayload{
		Kind:   KindPost,
		Event:  EventDeleted,
		PostID: p.ID,
		Title:  p.Title,
	})
	d.emailAdmins(ctx, KindPost, postDeletedEmail(p))
}

// push is a no-op for an unknown user.
func (d *Dispatcher) push(ctx context.Context, kind, userID string, payload any) {
	if userID == "" {
		return
	}

	d.guard(ctx, channelRealtime, kind, func() error {
		return d.bus.Publish(ctx, realtime.GroupForUser(userID), realtime.Envelope{
			Type:    realtime.TypeNotify,
			Payload: payload,
		})
	})
}

func (d *Dispatcher) emailAdmins(ctx context.Context, kind string, e email) {
	if len(d.cfg.AdminEmails) == 0 {
		return
	}

	d.send(ctx, kind, d.cfg.AdminEmails, e)
}

func (d *Dispatcher) emailUser(ctx context.Context, kind, addr string, e email) {
	if addr == "" {
		return
	}

	d.send(ctx, kind, []string{addr}, e)
}

func (d *Dispatcher) send(ctx context.Context, kind string, to []string, e email) {
	d.guard(ctx, channelEmail, kind, func() error {
		return d.mail.Send(ctx, mailer.Message{
			From:    d.cfg.From,
			To:      to,
			Subject: e.subject,
			Body:    e.body,
		})
	})
}

func (d *Dispatcher) guard(ctx context.Context, channel, kind string, fn func() error) {
	result := "ok"

	defer func() {
		if r := recover(); r != nil {
			result = "panic"
			d.log.WarnContext(ctx, "notify.dispatch_panic",
				"channel", channel,
				"kind", kind,
				"panic", fmt.Sprint(r),
			)
		}
		if d.prom != nil {
			d.prom.ObserveNotify(channel, kind, result)
		}
	}()

	if err := fn(); err != nil {
		result = "error"
		d.log.WarnContext(ctx, "notify.dispatch_failed",
			"channel", channel,
			"kind", kind,
			"err", err,
		)
	}
}

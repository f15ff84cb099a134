package service

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"melody-planner/internal/model"
	"melody-planner/internal/tree"
)

// DigestService builds the daily report sent through the bot.
type DigestService struct {
	store *Store
}

func NewDigestService(store *Store) *DigestService {
	return &DigestService{store: store}
}

type openTask struct {
	task    model.Task
	project string
}

// DailySummary renders open tasks across the workspace, soonest due first, as
// Telegram HTML.
func (s *DigestService) DailySummary(now time.Time) string {
	ws := s.store.Snapshot()

	var open []openTask
	tree.Walk(ws.Projects, func(p model.Project) {
		for _, t := range p.Tasks {
			if t.Status != model.StatusCompleted {
				open = append(open, openTask{task: t, project: p.Name})
			}
		}
	})
	sort.SliceStable(open, func(i, j int) bool {
		return open[i].task.EndDate.Before(open[j].task.EndDate)
	})

	summary := tree.Progress(tree.AggregateForest(ws.Projects))

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("%s <b>%s</b> · daily report\n", html.EscapeString(ws.Logo), html.EscapeString(ws.Name)))
	builder.WriteString(fmt.Sprintf("🗓 %s\n", now.Format("02.01.2006")))
	builder.WriteString(fmt.Sprintf("📈 %d tasks · %d done · %d%% average progress\n\n", summary.Total, summary.Completed, summary.AverageProgress))

	builder.WriteString("🔥 <b>Open tasks</b>\n")
	if len(open) == 0 {
		builder.WriteString("— nothing open\n")
	} else {
		for _, o := range open {
			builder.WriteString(formatTask(o.task, o.project, now))
		}
	}

	return strings.TrimSpace(builder.String())
}

func formatTask(task model.Task, project string, now time.Time) string {
	var sb strings.Builder

	d := task.EndDate.In(now.Location())
	icon := "🟢"
	switch {
	case now.After(d):
		icon = "⚠️"
	case d.Sub(now) <= 48*time.Hour:
		icon = "⏳"
	}

	title := html.EscapeString(strings.TrimSpace(task.Title))
	sb.WriteString(fmt.Sprintf("%s %s", icon, title))

	if trimmed := strings.TrimSpace(project); trimmed != "" {
		sb.WriteString(fmt.Sprintf(" <i>(%s)</i>", html.EscapeString(trimmed)))
	}
	if task.Progress > 0 {
		sb.WriteString(fmt.Sprintf(" · %d%%", task.Progress))
	}

	if now.After(d) {
		sb.WriteString(fmt.Sprintf("\n   ⏰ due %s · <b>overdue</b>", d.Format("2006-01-02")))
	} else {
		daysLeft := int(d.Sub(now).Hours()/24) + 1
		sb.WriteString(fmt.Sprintf("\n   ⏰ due %s · ≈%d days left", d.Format("2006-01-02"), daysLeft))
	}

	if len(task.Tags) > 0 {
		names := make([]string, 0, len(task.Tags))
		for _, tag := range task.Tags {
			names = append(names, "#"+html.EscapeString(tag.Name))
		}
		sb.WriteString("\n   🏷 " + strings.Join(names, " "))
	}

	if task.Description != "" {
		sb.WriteString(fmt.Sprintf("\n   📝 %s", html.EscapeString(strings.TrimSpace(task.Description))))
	}

	sb.WriteByte('\n')
	return sb.String()
}

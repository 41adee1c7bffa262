package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/creatia-api/internal/models"
	appErrors "github.com/noah-isme/creatia-api/pkg/errors"
	"github.com/noah-isme/creatia-api/pkg/export"
)

// Supported report formats.
const (
	ReportFormatCSV = "csv"
	ReportFormatPDF = "pdf"
)

type reportRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

type reportUserRepository interface {
	List(ctx context.Context) ([]models.User, error)
}

type reportStatsRepository interface {
	StatsByAssignee(ctx context.Context, today time.Time) ([]models.UserTaskStats, error)
}

// ReportFile is a rendered export ready to download.
type ReportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ReportService renders per-user task statistics exports.
type ReportService struct {
	users     reportUserRepository
	stats     reportStatsRepository
	renderers map[string]reportRenderer
	logger    *zap.Logger
	now       func() time.Time
}

// NewReportService constructs the report service with CSV and PDF renderers.
func NewReportService(users reportUserRepository, stats reportStatsRepository, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		users: users,
		stats: stats,
		renderers: map[string]reportRenderer{
			ReportFormatCSV: export.NewCSVExporter(),
			ReportFormatPDF: export.NewPDFExporter(),
		},
		logger: logger,
		now:    time.Now,
	}
}

var taskReportColumns = []export.Column{
	{Key: "id", Title: "ID", Weight: 0.6},
	{Key: "username", Title: "Username", Weight: 1.4},
	{Key: "full_name", Title: "Full name", Weight: 2},
	{Key: "role", Title: "Role", Weight: 1.2},
	{Key: "assigned", Title: "Assigned", Weight: 1},
	{Key: "completed", Title: "Completed", Weight: 1},
	{Key: "overdue", Title: "Overdue", Weight: 1},
	{Key: "on_time_pct", Title: "On time %", Weight: 1},
	{Key: "completion_pct", Title: "Completion %", Weight: 1.1},
	{Key: "overdue_pct", Title: "Overdue %", Weight: 1},
}

// TaskStats renders task statistics for every user. An empty format means CSV.
func (s *ReportService) TaskStats(ctx context.Context, actor *models.JWTClaims, format string) (*ReportFile, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "Not allowed")
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ReportFormatCSV
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Validation("Invalid format.")
	}

	users, err := s.users.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list users")
	}
	now := s.now()
	stats, err := s.stats.StatsByAssignee(ctx, dateOnly(now))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load task stats")
	}
	byUser := make(map[int64]models.UserTaskStats, len(stats))
	for _, st := range stats {
		byUser[st.UserID] = st
	}

	sortUsersForCards(users)
	data := export.Dataset{
		Title:   "Task report " + now.UTC().Format(dateLayout),
		Columns: taskReportColumns,
		Rows:    make([]map[string]string, 0, len(users)),
	}
	for i := range users {
		u := &users[i]
		st := byUser[u.ID]
		st.Compute()
		data.Rows = append(data.Rows, map[string]string{
			"id":             formatID(u.ID),
			"username":       u.Username,
			"full_name":      stringValue(u.FullName),
			"role":           string(u.Role),
			"assigned":       strconv.Itoa(st.Assigned),
			"completed":      strconv.Itoa(st.Completed),
			"overdue":        strconv.Itoa(st.Overdue),
			"on_time_pct":    formatPct(st.OnTimePct),
			"completion_pct": formatPct(st.CompletionPct),
			"overdue_pct":    formatPct(st.OverduePct),
		})
	}

	content, err := renderer.Render(data)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render report")
	}
	s.logger.Info("task report rendered",
		zap.String("format", format),
		zap.Int("rows", len(data.Rows)),
		zap.Int64("actor_id", actor.UserID),
	)
	return &ReportFile{
		Filename:    fmt.Sprintf("task-report-%s%s", now.UTC().Format("20060102"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Content:     content,
	}, nil
}

func formatPct(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

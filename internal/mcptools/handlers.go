package mcptools

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/sitegen/internal/export"
	"github.com/dusk-indust/sitegen/internal/logging"
	"github.com/dusk-indust/sitegen/internal/orchestrator"
	"github.com/dusk-indust/sitegen/internal/session"
	"github.com/dusk-indust/sitegen/internal/site"
	"github.com/dusk-indust/sitegen/internal/sitegraph"
)

const defaultListLimit = 20

// SiteService holds the collaborators used by the MCP tool handlers.
type SiteService struct {
	generator orchestrator.Generator
	sessions  *session.Registry
	index     sitegraph.Store
	exporter  *export.Writer
	logger    *slog.Logger
}

// ServiceOption configures a SiteService.
type ServiceOption func(*SiteService)

// WithIndex enables query_site and indexes finished artifacts.
func WithIndex(s sitegraph.Store) ServiceOption {
	return func(svc *SiteService) { svc.index = s }
}

// WithExporter writes finished artifacts.
func WithExporter(w *export.Writer) ServiceOption {
	return func(svc *SiteService) { svc.exporter = w }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(svc *SiteService) { svc.logger = l }
}

// NewSiteService creates a SiteService.
func NewSiteService(g orchestrator.Generator, sessions *session.Registry, opts ...ServiceOption) *SiteService {
	svc := &SiteService{generator: g, sessions: sessions, logger: logging.Discard()}
	for _, o := range opts {
		o(svc)
	}
	svc.logger = logging.Component(svc.logger, "mcp")
	return svc
}

// GenerateSite runs the pipeline to completion and reports how every stage
// ended. A pipeline failure is reported in the output, not as a tool error,
// so the caller still gets the session ID.
func (s *SiteService) GenerateSite(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GenerateSiteInput,
) (*mcp.CallToolResult, GenerateSiteOutput, error) {
	cfg := input.config()
	if err := cfg.Validate(); err != nil {
		return nil, GenerateSiteOutput{}, err
	}

	id, artifact, err := s.sessions.Run(ctx, s.generator, cfg)
	out := GenerateSiteOutput{
		SessionID: id,
		Slug:      cfg.Slug(),
		State:     string(session.StateSucceeded),
		Stages:    []StageSummary{},
		Files:     []string{},
	}
	if err != nil {
		var failure *orchestrator.PipelineFailure
		if errors.As(err, &failure) {
			artifact = failure.Partial
		}
		sess, gerr := s.sessions.Get(id)
		if gerr == nil {
			out.State = string(sess.State)
		}
		out.ErrorKind = string(site.KindOf(err))
		if failure != nil {
			out.ErrorKind = string(failure.Kind)
		}
		out.Error = err.Error()
	}
	if artifact == nil {
		return nil, out, nil
	}
	out.Degraded = artifact.Degraded
	out.Partial = artifact.Partial
	out.Stages = stageSummaries(artifact.Outcomes)

	if err != nil {
		return nil, out, nil
	}
	if s.index != nil {
		if ierr := sitegraph.SaveArtifact(ctx, s.index, artifact); ierr != nil {
			s.logger.Warn("index artifact failed", "session", id, "error", ierr)
		}
	}
	if s.exporter != nil {
		m, xerr := s.exporter.Write(artifact)
		if xerr != nil {
			return nil, out, fmt.Errorf("export %s: %w", artifact.Slug, xerr)
		}
		out.Files = m.Files
	}
	return nil, out, nil
}

// GetSession returns the recorded state of one run.
func (s *SiteService) GetSession(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input GetSessionInput,
) (*mcp.CallToolResult, GetSessionOutput, error) {
	if input.SessionID == "" {
		return nil, GetSessionOutput{}, fmt.Errorf("sessionId is required")
	}
	sess, err := s.sessions.Get(input.SessionID)
	if err != nil {
		return nil, GetSessionOutput{}, fmt.Errorf("session %s: %w", input.SessionID, err)
	}

	out := GetSessionOutput{
		SessionID: sess.ID,
		Project:   sess.Project,
		Slug:      sess.Slug,
		State:     string(sess.State),
		Aggregate: sess.Aggregate,
		Events:    make([]EventSummary, 0, len(sess.Events)),
		Stages:    []StageSummary{},
		ErrorKind: string(sess.ErrorKind),
		Error:     sess.Error,
	}
	for _, ev := range sess.Events {
		out.Events = append(out.Events, EventSummary{
			Stage:     string(ev.Stage),
			Status:    string(ev.Status),
			Progress:  ev.Progress,
			Aggregate: ev.Aggregate,
			Message:   ev.Message,
		})
	}
	if sess.Artifact != nil {
		out.Stages = stageSummaries(sess.Artifact.Outcomes)
	}
	return nil, out, nil
}

// ListSessions returns recent runs, newest first.
func (s *SiteService) ListSessions(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input ListSessionsInput,
) (*mcp.CallToolResult, ListSessionsOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	all := s.sessions.List()
	out := ListSessionsOutput{Sessions: []SessionSummary{}}
	for _, sum := range all {
		if input.State != "" && string(sum.State) != input.State {
			continue
		}
		out.Total++
		if len(out.Sessions) >= limit {
			continue
		}
		out.Sessions = append(out.Sessions, SessionSummary{
			SessionID: sum.ID,
			Project:   sum.Project,
			State:     string(sum.State),
			Aggregate: sum.Aggregate,
			Degraded:  sum.Degraded,
			Partial:   sum.Partial,
			Created:   sum.Created.UTC().Format(time.RFC3339),
		})
	}
	return nil, out, nil
}

// QuerySite returns the indexed sections and images of a generated site.
func (s *SiteService) QuerySite(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QuerySiteInput,
) (*mcp.CallToolResult, QuerySiteOutput, error) {
	if s.index == nil {
		return nil, QuerySiteOutput{}, fmt.Errorf("site index is disabled")
	}
	if input.Slug == "" {
		return nil, QuerySiteOutput{}, fmt.Errorf("slug is required")
	}

	sections, err := s.index.Sections(ctx, input.Slug)
	if err != nil {
		return nil, QuerySiteOutput{}, fmt.Errorf("sections of %s: %w", input.Slug, err)
	}
	images, err := s.index.Images(ctx, input.Slug, input.Section)
	if err != nil {
		return nil, QuerySiteOutput{}, fmt.Errorf("images of %s: %w", input.Slug, err)
	}

	out := QuerySiteOutput{
		Slug:     input.Slug,
		Sections: make([]SectionEntry, 0, len(sections)),
		Images:   make([]ImageEntry, 0, len(images)),
	}
	for _, sec := range sections {
		out.Sections = append(out.Sections, SectionEntry{Page: sec.Page, Type: sec.Type, Variant: sec.Variant, Headline: sec.Headline})
	}
	for _, img := range images {
		out.Images = append(out.Images, ImageEntry{ID: img.ID, Placement: img.Placement, URL: img.URL, Placeholder: img.Placeholder})
	}
	return nil, out, nil
}

func stageSummaries(outcomes map[site.StageName]site.Outcome) []StageSummary {
	out := make([]StageSummary, 0, len(outcomes))
	for stage, o := range outcomes {
		out = append(out, StageSummary{
			Stage:        string(stage),
			Status:       o.Status,
			UsedFallback: o.UsedFallback,
			Error:        string(o.Error),
		})
	}
	slices.SortFunc(out, func(a, b StageSummary) int { return cmp.Compare(a.Stage, b.Stage) })
	return out
}

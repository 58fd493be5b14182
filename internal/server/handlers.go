package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/dusk-indust/sitegen/internal/orchestrator"
	"github.com/dusk-indust/sitegen/internal/session"
	"github.com/dusk-indust/sitegen/internal/site"
	"github.com/dusk-indust/sitegen/internal/sitegraph"
)

// maxBodyBytes bounds a generate request body.
const maxBodyBytes = 1 << 20

// ErrorBody is the JSON error payload of non-streaming responses.
type ErrorBody struct {
	Kind    site.ErrorKind `json:"kind,omitempty"`
	Message string         `json:"message"`
}

// SessionEvent opens a generate stream.
type SessionEvent struct {
	SessionID string `json:"sessionId"`
	Slug      string `json:"slug"`
}

// ResultEvent closes a successful generate stream.
type ResultEvent struct {
	SessionID string             `json:"sessionId"`
	Artifact  *site.SiteArtifact `json:"artifact"`
}

// ErrorEvent closes a failed generate stream.
type ErrorEvent struct {
	SessionID string                        `json:"sessionId"`
	Failure   *orchestrator.PipelineFailure `json:"failure"`
}

type runOutcome struct {
	artifact *site.SiteArtifact
	err      error
}

// handleGenerate runs the pipeline and streams its progress. An invalid
// configuration is rejected with 400 before the stream opens; everything
// after that is reported in-stream. A client disconnect cancels the run.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var cfg site.BusinessConfiguration
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorBody{Kind: site.KindConfigurationInvalid, Message: "decode configuration: " + err.Error()})
		return
	}
	// reaching EOF lets the server notice a client disconnect
	_, _ = io.Copy(io.Discard, body)
	if err := cfg.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorBody{Kind: site.KindConfigurationInvalid, Message: err.Error()})
		return
	}

	ctx := r.Context()
	id := s.opts.Sessions.Create(cfg)
	logger := s.logger.With("session", id, "project", cfg.ProjectName)

	events := make(chan orchestrator.Event, eventBuffer)
	forward := func(ev orchestrator.Event) {
		select {
		case events <- ev:
		default:
			logger.Warn("progress event dropped", "stage", ev.Stage, "status", ev.Status)
		}
	}

	done := make(chan runOutcome, 1)
	go func() {
		artifact, err := s.opts.Generator.Generate(ctx, cfg, s.opts.Sessions.Observer(id), forward)
		if ferr := s.opts.Sessions.Finish(id, artifact, err); ferr != nil {
			logger.Warn("session finish failed", "error", ferr)
		}
		if err == nil {
			s.persist(context.WithoutCancel(ctx), logger, artifact)
		}
		done <- runOutcome{artifact: artifact, err: err}
	}()

	stream := newEventStream(w)
	writeFailed := false
	write := func(name string, v any) {
		if writeFailed {
			return
		}
		if err := stream.send(name, v); err != nil {
			writeFailed = true
			logger.Info("stream closed by client", "error", err)
		}
	}
	write(EventSession, SessionEvent{SessionID: id, Slug: cfg.Slug()})

	for {
		select {
		case ev := <-events:
			write(EventProgress, ev)
		case out := <-done:
			for drained := false; !drained; {
				select {
				case ev := <-events:
					write(EventProgress, ev)
				default:
					drained = true
				}
			}
			if out.err == nil {
				write(EventResult, ResultEvent{SessionID: id, Artifact: out.artifact})
				return
			}
			write(EventError, ErrorEvent{SessionID: id, Failure: asFailure(out.err)})
			return
		}
	}
}

// persist indexes and exports a finished artifact. Failures are logged;
// the artifact has already been delivered.
func (s *Server) persist(ctx context.Context, logger *slog.Logger, artifact *site.SiteArtifact) {
	if s.opts.Index != nil {
		if err := sitegraph.SaveArtifact(ctx, s.opts.Index, artifact); err != nil {
			logger.Warn("index artifact failed", "error", err)
		}
	}
	if s.opts.Exporter != nil {
		if _, err := s.opts.Exporter.Write(artifact); err != nil {
			logger.Warn("export artifact failed", "error", err)
		}
	}
}

func asFailure(err error) *orchestrator.PipelineFailure {
	var f *orchestrator.PipelineFailure
	if errors.As(err, &f) {
		return f
	}
	return &orchestrator.PipelineFailure{Kind: site.KindOf(err), Message: err.Error(), Err: err}
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": s.opts.Sessions.List()})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.opts.Sessions.Get(r.PathValue("id"))
	if errors.Is(err, session.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, ErrorBody{Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleListSites(w http.ResponseWriter, r *http.Request) {
	if !s.requireIndex(w) {
		return
	}
	sites, err := s.opts.Index.Sites(r.Context())
	if err != nil {
		s.indexError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sites": sites})
}

func (s *Server) handleSections(w http.ResponseWriter, r *http.Request) {
	if !s.requireIndex(w) {
		return
	}
	sections, err := s.opts.Index.Sections(r.Context(), r.PathValue("slug"))
	if err != nil {
		s.indexError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sections": sections})
}

func (s *Server) handleImages(w http.ResponseWriter, r *http.Request) {
	if !s.requireIndex(w) {
		return
	}
	images, err := s.opts.Index.Images(r.Context(), r.PathValue("slug"), r.URL.Query().Get("section"))
	if err != nil {
		s.indexError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"images": images})
}

func (s *Server) requireIndex(w http.ResponseWriter) bool {
	if s.opts.Index == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorBody{Message: "site index disabled"})
		return false
	}
	return true
}

func (s *Server) indexError(w http.ResponseWriter, err error) {
	if errors.Is(err, sitegraph.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, ErrorBody{Message: err.Error()})
		return
	}
	s.logger.Error("index query failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, ErrorBody{Message: "index query failed"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"mode":     s.opts.Mode,
		"sessions": s.opts.Sessions.Len(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

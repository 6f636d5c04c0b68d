package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"buildgate/internal/gate"
	"buildgate/internal/githubapi"
	"buildgate/internal/history"
	"buildgate/internal/project"
	"buildgate/internal/security"
	"buildgate/internal/sources"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-github/v57/github"
)

const (
	MaxPayloadBytes      = 1_000_000 // 1 MB
	RecentDecisionsLimit = 10        // Number of recent decisions returned by the status endpoint
)

// Gate names recorded with decisions and used as status context suffixes
const (
	GatePush  = "push"
	GateMerge = "merge"
)

var handledEvents = map[string]bool{
	"ping":         true,
	"push":         true,
	"pull_request": true,
	"status":       true,
	"check_run":    true,
}

// pullRequestActions are the pull_request actions that may change the
// destination branch of a pull request or need a fresh veto.
var pullRequestActions = map[string]bool{
	"opened":           true,
	"reopened":         true,
	"synchronize":      true,
	"edited":           true,
	"ready_for_review": true,
}

// decisionResponse is the JSON form of a gate decision
type decisionResponse struct {
	Project string `json:"project"`
	Gate    string `json:"gate"`
	Ref     string `json:"ref"`
	Outcome string `json:"outcome"`
	Reason  string `json:"reason"`
	Commit  string `json:"commit,omitempty"`
	Summary string `json:"summary,omitempty"`
	Message string `json:"message,omitempty"`
	Notice  string `json:"notice,omitempty"`
}

// reportResponse is the JSON form of a build report
type reportResponse struct {
	Key         string `json:"key"`
	Name        string `json:"name,omitempty"`
	State       string `json:"state"`
	URL         string `json:"url,omitempty"`
	Description string `json:"description,omitempty"`
}

// HandleWebhook handles GitHub webhook requests
func (s *Server) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	projectName := chi.URLParam(r, "projectName")

	// Validate project name for security
	if err := security.ValidateProjectName(projectName); err != nil {
		s.Logger.Warn("Invalid project name in webhook request", "project", projectName, "error", err)
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("Invalid project name: %v", err)})
		return
	}

	// Check if project exists
	proj, err := s.Registry.Get(projectName)
	if err != nil {
		s.respondJSON(w, http.StatusNotFound, map[string]string{"error": "Unknown project"})
		return
	}

	// ContentLength is -1 when unknown; the body is limited below as well
	if r.ContentLength > MaxPayloadBytes {
		s.respondJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "Payload too large"})
		return
	}

	if r.Header.Get("Content-Type") != "application/json" {
		s.respondJSON(w, http.StatusUnsupportedMediaType, map[string]string{"error": "Invalid content type"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxPayloadBytes+1))
	if err != nil {
		s.Logger.Error("Failed to read request body", "error", err, "project", projectName)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to read payload"})
		return
	}
	if len(body) > MaxPayloadBytes {
		s.respondJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "Payload too large"})
		return
	}

	if err := verifySignature(r, body, proj.Secret); err != nil {
		s.Logger.Warn("Rejected webhook signature", "project", projectName, "error", err)
		s.respondJSON(w, http.StatusForbidden, map[string]string{"error": "Invalid signature"})
		return
	}

	eventType := github.WebHookType(r)
	if !handledEvents[eventType] {
		s.respondJSON(w, http.StatusOK, map[string]string{"message": "Ignoring event", "event": eventType})
		return
	}

	event, err := github.ParseWebHook(eventType, body)
	if err != nil {
		s.Logger.Error("Failed to parse webhook payload", "error", err, "project", projectName, "event", eventType)
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON payload"})
		return
	}

	switch e := event.(type) {
	case *github.PingEvent:
		s.respondJSON(w, http.StatusOK, map[string]string{"message": "pong"})
	case *github.StatusEvent:
		if proj.IsOwnContext(e.GetContext()) {
			s.respondJSON(w, http.StatusOK, map[string]string{"message": "Ignoring own status"})
			return
		}
		report, ok := githubapi.ReportFromStatus(e)
		s.handleReport(w, r, proj, report, ok)
	case *github.CheckRunEvent:
		report, ok := githubapi.ReportFromCheckRun(e)
		s.handleReport(w, r, proj, report, ok)
	case *github.PushEvent:
		s.handlePush(w, r, proj, e)
	case *github.PullRequestEvent:
		s.handlePullRequest(w, r, proj, e)
	default:
		s.respondJSON(w, http.StatusOK, map[string]string{"message": "Ignoring event", "event": eventType})
	}
}

// handleReport stores a build report delivered by a status or check_run event
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request, proj *project.Project, report gate.BuildReport, ok bool) {
	if !ok {
		s.respondJSON(w, http.StatusOK, map[string]string{"message": "No build state in event, ignoring"})
		return
	}

	if proj.Reports != project.BackendStore || s.History == nil {
		s.respondJSON(w, http.StatusOK, map[string]string{"message": "Report store disabled, ignoring"})
		return
	}

	if err := security.ValidateCommitHash(report.Commit); err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("Invalid commit: %v", err)})
		return
	}

	err := s.History.RecordReport(r.Context(), &history.ReportRecord{
		Project:     proj.Name,
		CommitHash:  report.Commit,
		Key:         report.Key,
		State:       report.State.String(),
		Name:        report.Name,
		URL:         report.URL,
		Description: report.Description,
	})
	if err != nil {
		s.Logger.Error("Failed to record build report", "error", err, "project", proj.Name, "commit", report.Commit)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to record report"})
		return
	}

	s.Logger.Info("build report recorded",
		"project", proj.Name,
		"commit", gate.ShortID(report.Commit),
		"key", report.Key,
		"state", report.State.String())

	s.respondJSON(w, http.StatusOK, map[string]string{
		"message": "Report recorded",
		"commit":  report.Commit,
		"state":   report.State.String(),
	})
}

// handlePush runs the push gate for a branch update
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request, proj *project.Project, e *github.PushEvent) {
	if e.GetRef() == "" {
		s.respondJSON(w, http.StatusOK, map[string]string{"message": "Missing payload, skipping"})
		return
	}

	binding, ok := s.connect(w, proj)
	if !ok {
		return
	}

	change := gate.NewRefChange(e.GetRef(), e.GetBefore(), e.GetAfter())
	d, err := gate.NewPushGate(binding.Sources, s.gateConfig(proj)).Evaluate(r.Context(), change)
	if err != nil {
		s.Logger.Error("Push gate could not determine build status", "error", err, "project", proj.Name, "ref", change.RefID)
		d = gate.Unavailable(gate.BranchName(change.RefID), err)
	}

	s.finishDecision(r.Context(), proj, binding, GatePush, change, change.ToHash, d)
	s.respondJSON(w, http.StatusOK, newDecisionResponse(proj, GatePush, change.RefID, d))
}

// handlePullRequest runs the merge gate for a pull request
func (s *Server) handlePullRequest(w http.ResponseWriter, r *http.Request, proj *project.Project, e *github.PullRequestEvent) {
	if !pullRequestActions[e.GetAction()] {
		s.respondJSON(w, http.StatusOK, map[string]string{"message": "Ignoring pull request action", "action": e.GetAction()})
		return
	}

	pr := e.GetPullRequest()
	target := pr.GetBase().GetRef()
	head := pr.GetHead().GetSHA()
	if target == "" || head == "" {
		s.respondJSON(w, http.StatusOK, map[string]string{"message": "Missing payload, skipping"})
		return
	}

	binding, ok := s.connect(w, proj)
	if !ok {
		return
	}

	d, err := gate.NewMergeGate(binding.Sources, s.gateConfig(proj)).Evaluate(r.Context(), gate.MergeRequest{TargetRef: target})
	if err != nil {
		s.Logger.Error("Merge gate could not determine build status", "error", err, "project", proj.Name, "target", target)
		d = gate.Unavailable(target, err)
	}

	change := gate.RefChange{RefID: gate.BranchRef(target), ToHash: head}
	s.finishDecision(r.Context(), proj, binding, GateMerge, change, head, d)

	response := newDecisionResponse(proj, GateMerge, change.RefID, d)
	s.respondJSON(w, http.StatusOK, response)
}

// connect resolves the project's sources, answering the request on failure
func (s *Server) connect(w http.ResponseWriter, proj *project.Project) (*sources.Binding, bool) {
	binding, err := s.Connector.Connect(proj)
	if err != nil {
		s.Logger.Error("Failed to connect project sources", "error", err, "project", proj.Name)
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Build status sources unavailable"})
		return nil, false
	}
	return binding, true
}

func (s *Server) gateConfig(proj *project.Project) gate.Config {
	cfg := proj.GateConfig()
	cfg.Logger = s.Logger.With("project", proj.Name)
	return cfg
}

// finishDecision logs, records and publishes a decision. Recording and
// publishing failures are logged; the decision itself stands.
func (s *Server) finishDecision(ctx context.Context, proj *project.Project, binding *sources.Binding, gateName string, change gate.RefChange, sha string, d gate.Decision) {
	s.Logger.Info("gate decision",
		"project", proj.Name,
		"gate", gateName,
		"ref", change.RefID,
		"outcome", d.Outcome.String(),
		"reason", string(d.Reason),
		"commit", d.Commit)

	if s.History != nil {
		record := history.NewDecisionRecord(proj.Name, gateName, change, d)
		if _, err := s.History.RecordDecision(ctx, record); err != nil {
			s.Logger.Error("Failed to record decision", "error", err, "project", proj.Name)
		}
	}

	if binding.Publisher != nil && sha != "" {
		statusContext := proj.StatusContext + "/" + gateName
		if err := binding.Publisher.PublishDecision(ctx, sha, statusContext, d); err != nil {
			s.Logger.Error("Failed to publish decision", "error", err, "project", proj.Name, "sha", sha)
		}
	}
}

func newDecisionResponse(proj *project.Project, gateName, ref string, d gate.Decision) decisionResponse {
	return decisionResponse{
		Project: proj.Name,
		Gate:    gateName,
		Ref:     ref,
		Outcome: d.Outcome.String(),
		Reason:  string(d.Reason),
		Commit:  d.Commit,
		Summary: d.Summary,
		Message: d.Message,
		Notice:  d.Notice,
	}
}

// HandleHealth handles health check requests
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	projectNames := s.Registry.List()

	response := map[string]interface{}{
		"status":        "ok",
		"projects":      projectNames,
		"project_count": s.Registry.Count(),
	}

	if s.History != nil {
		latest, err := s.History.GetAllProjectsStatus(r.Context())
		if err != nil {
			s.Logger.Error("Failed to get project status", "error", err)
			s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": "History unavailable"})
			return
		}
		response["latest_decisions"] = latest
	}

	s.respondJSON(w, http.StatusOK, response)
}

// HandleStatus returns the most recent gate decisions of a project
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	proj, ok := s.lookupProject(w, r)
	if !ok {
		return
	}

	if s.History == nil {
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "History not available"})
		return
	}

	latest, err := s.History.GetLatestDecision(r.Context(), proj.Name)
	if err != nil {
		s.Logger.Error("Failed to get latest decision", "error", err, "project", proj.Name)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch gate status"})
		return
	}

	recent, err := s.History.GetDecisionHistory(r.Context(), proj.Name, RecentDecisionsLimit)
	if err != nil {
		s.Logger.Error("Failed to get decision history", "error", err, "project", proj.Name)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch gate status"})
		return
	}

	response := map[string]interface{}{
		"project":          proj.Name,
		"latest_decision":  latest,
		"recent_decisions": recent,
	}

	s.respondJSON(w, http.StatusOK, response)
}

// HandleVerdict returns the aggregated build state of one commit
func (s *Server) HandleVerdict(w http.ResponseWriter, r *http.Request) {
	proj, ok := s.lookupProject(w, r)
	if !ok {
		return
	}

	commit := chi.URLParam(r, "commit")
	if err := security.ValidateCommitHash(commit); err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("Invalid commit: %v", err)})
		return
	}

	binding, ok := s.connect(w, proj)
	if !ok {
		return
	}

	reports, err := binding.Sources.Reports.ReportsFor(r.Context(), commit)
	if err != nil {
		s.Logger.Error("Failed to fetch build reports", "error", err, "project", proj.Name, "commit", commit)
		s.respondJSON(w, http.StatusBadGateway, map[string]string{"error": "Failed to fetch build reports"})
		return
	}

	views := make([]reportResponse, 0, len(reports))
	for _, report := range reports {
		views = append(views, reportResponse{
			Key:         report.Key,
			Name:        report.Name,
			State:       report.State.String(),
			URL:         report.URL,
			Description: report.Description,
		})
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"project": proj.Name,
		"commit":  commit,
		"state":   gate.Aggregate(reports).String(),
		"reports": views,
	})
}

// lookupProject validates the projectName URL parameter and resolves it,
// answering the request when it cannot
func (s *Server) lookupProject(w http.ResponseWriter, r *http.Request) (*project.Project, bool) {
	projectName := chi.URLParam(r, "projectName")

	if err := security.ValidateProjectName(projectName); err != nil {
		s.Logger.Warn("Invalid project name in request", "project", projectName, "error", err)
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("Invalid project name: %v", err)})
		return nil, false
	}

	proj, err := s.Registry.Get(projectName)
	if err != nil {
		s.respondJSON(w, http.StatusNotFound, map[string]string{"error": "Unknown project"})
		return nil, false
	}

	return proj, true
}

// respondJSON sends a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.Logger.Error("Failed to encode JSON response", "error", err)
	}
}

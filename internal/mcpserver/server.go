// Package mcpserver exposes run status over the Model Context Protocol
// so editor agents can inspect pipeline runs and their review sheets
// without shelling out to the CLI.
package mcpserver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"symposium/internal/engine"
	"symposium/internal/review"
	"symposium/internal/store"
)

// Server wraps the MCP SDK server over the run catalog and state files.
type Server struct {
	MCPServer *sdkmcp.Server

	catalog store.Store
	dataDir string
}

// NewServer creates an MCP server with run inspection tools. The
// catalog lists runs; per-run detail is read from each run's state file
// under dataDir.
func NewServer(catalog store.Store, dataDir string) *Server {
	s := &Server{catalog: catalog, dataDir: dataDir}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "symposium", Version: "dev"},
		nil,
	)
	s.registerTools()
	return s
}

// Run serves MCP over the transport until ctx is done.
func (s *Server) Run(ctx context.Context, t sdkmcp.Transport) error {
	return s.MCPServer.Run(ctx, t)
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_runs",
		Description: "List all pipeline runs with their current phase.",
	}, s.handleListRuns)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_run_status",
		Description: "Get one run's phase, per-phase history, and result counts.",
	}, s.handleGetRunStatus)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_review_sheet",
		Description: "Read a run's exported match or evaluation review sheet.",
	}, s.handleGetReviewSheet)
}

// --- Tool input/output types ---

type listRunsInput struct{}

type runSummary struct {
	RunID      string `json:"run_id"`
	Event      string `json:"event"`
	Phase      string `json:"phase"`
	ReportPath string `json:"report_path,omitempty"`
	UpdatedAt  string `json:"updated_at"`
}

type listRunsOutput struct {
	Runs []runSummary `json:"runs"`
}

type getRunStatusInput struct {
	RunID string `json:"run_id" jsonschema:"run ID from list_runs"`
}

type transition struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Outcome   string `json:"outcome,omitempty"`
	Timestamp string `json:"timestamp"`
}

type getRunStatusOutput struct {
	RunID                string       `json:"run_id"`
	Event                string       `json:"event"`
	Phase                string       `json:"phase"`
	AwaitingReview       bool         `json:"awaiting_review"`
	Sessions             int          `json:"sessions"`
	Artifacts            int          `json:"artifacts"`
	Matches              int          `json:"matches"`
	UnmatchedArtifactIDs []string     `json:"unmatched_artifact_ids,omitempty"`
	Summaries            int          `json:"summaries"`
	SummaryErrors        int          `json:"summary_errors"`
	ReportPath           string       `json:"report_path,omitempty"`
	History              []transition `json:"history"`
}

type getReviewSheetInput struct {
	RunID string `json:"run_id" jsonschema:"run ID from list_runs"`
	Kind  string `json:"kind" jsonschema:"sheet kind: match or eval"`
}

type getReviewSheetOutput struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// --- Handlers ---

func (s *Server) handleListRuns(_ context.Context, _ *sdkmcp.CallToolRequest, _ listRunsInput) (*sdkmcp.CallToolResult, listRunsOutput, error) {
	runs, err := s.catalog.ListRuns()
	if err != nil {
		return nil, listRunsOutput{}, err
	}
	out := listRunsOutput{Runs: []runSummary{}}
	for _, r := range runs {
		out.Runs = append(out.Runs, runSummary{
			RunID:      r.RunID,
			Event:      r.Event,
			Phase:      r.Phase,
			ReportPath: r.ReportPath,
			UpdatedAt:  r.UpdatedAt,
		})
	}
	return nil, out, nil
}

func (s *Server) handleGetRunStatus(_ context.Context, _ *sdkmcp.CallToolRequest, input getRunStatusInput) (*sdkmcp.CallToolResult, getRunStatusOutput, error) {
	st, err := engine.LoadState(s.dataDir, input.RunID)
	if err != nil {
		return nil, getRunStatusOutput{}, fmt.Errorf("run %q: %w", input.RunID, err)
	}
	out := getRunStatusOutput{
		RunID:                st.RunID,
		Event:                st.Event,
		Phase:                string(st.Phase),
		AwaitingReview:       st.Phase.Gate(),
		Sessions:             len(st.Sessions),
		Artifacts:            len(st.Artifacts),
		Matches:              len(st.Matches),
		UnmatchedArtifactIDs: st.UnmatchedArtifactIDs,
		Summaries:            len(st.Summaries),
		SummaryErrors:        len(st.SummaryErrors),
		ReportPath:           st.ReportPath,
	}
	for _, h := range st.History {
		out.History = append(out.History, transition{
			From:      string(h.From),
			To:        string(h.To),
			Outcome:   h.Outcome,
			Timestamp: h.Timestamp,
		})
	}
	return nil, out, nil
}

func (s *Server) handleGetReviewSheet(_ context.Context, _ *sdkmcp.CallToolRequest, input getReviewSheetInput) (*sdkmcp.CallToolResult, getReviewSheetOutput, error) {
	var name string
	switch input.Kind {
	case "match":
		name = review.MatchSheetFile
	case "eval":
		name = review.EvalSheetFile
	default:
		return nil, getReviewSheetOutput{}, fmt.Errorf("unknown sheet kind %q: want match or eval", input.Kind)
	}
	path := filepath.Join(engine.ReviewDir(s.dataDir, input.RunID), name)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, getReviewSheetOutput{}, fmt.Errorf("run %q has no %s sheet: %w", input.RunID, input.Kind, err)
	}
	return nil, getReviewSheetOutput{Path: path, Content: string(data)}, nil
}

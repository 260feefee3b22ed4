package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/aretw0/prt/internal/logging"
	"github.com/aretw0/prt/internal/presentation/graph"
	"github.com/aretw0/prt/internal/runtime"
	"github.com/aretw0/prt/pkg/domain"
	"github.com/aretw0/prt/pkg/driver"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const definitionsURI = "prt://definitions"

// Engine is what the MCP server drives. *prt.Engine satisfies it.
type Engine interface {
	Run(ctx context.Context, payload domain.Value) (*driver.Result, error)
	Explore(ctx context.Context, payload domain.Value) (*driver.Exploration, error)
	Replay(ctx context.Context, id string) (*driver.Result, error)
	Machines() []domain.MachineRecord
}

// Definitions resolves machine definitions by name.
type Definitions interface {
	Definition(name string) (*runtime.Definition, bool)
	Definitions() []string
}

// RunResponse is the structured result of the run and replay tools.
type RunResponse struct {
	RunID      string                 `json:"run_id" jsonschema_description:"Identifier of the run"`
	Outcome    string                 `json:"outcome" jsonschema_description:"ok, pruned, bug, liveness, bound or canceled"`
	Steps      int                    `json:"steps" jsonschema_description:"Number of scheduling steps taken"`
	Checkpoint string                 `json:"checkpoint,omitempty" jsonschema_description:"Checkpoint saved for a failing run"`
	Error      string                 `json:"error,omitempty" jsonschema_description:"Failure the run ended with"`
	Machines   []domain.MachineRecord `json:"machines,omitempty" jsonschema_description:"Final records of the machines"`
}

// ExploreResponse is the structured result of the explore tool.
type ExploreResponse struct {
	Runs     int            `json:"runs" jsonschema_description:"Number of runs executed"`
	Outcomes map[string]int `json:"outcomes" jsonschema_description:"Run count per outcome"`
	Seed     *uint64        `json:"seed,omitempty" jsonschema_description:"Seed of the first failing run"`
	Failure  *RunResponse   `json:"failure,omitempty" jsonschema_description:"The first failing run"`
}

// Server exposes an Engine as an MCP server.
type Server struct {
	engine    Engine
	defs      Definitions
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, defs Definitions, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		engine:    engine,
		defs:      defs,
		mcpServer: server.NewMCPServer("prt-mcp", version),
		logger:    logger,
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the MCP protocol over SSE on addr until ctx is canceled.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL("http://"+baseHost(addr)))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func baseHost(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	runTool := mcp.NewTool("run",
		mcp.WithDescription("Execute one run of the program with the configured strategy and seed."),
		mcp.WithString("payload", mcp.Description("JSON value passed to the main machine (optional)")),
		mcp.WithOutputSchema[RunResponse](),
	)
	s.mcpServer.AddTool(runTool, mcp.NewStructuredToolHandler(s.handleRun))

	exploreTool := mcp.NewTool("explore",
		mcp.WithDescription("Execute the configured number of runs with successive seeds and report the first failure."),
		mcp.WithString("payload", mcp.Description("JSON value passed to the main machine (optional)")),
		mcp.WithOutputSchema[ExploreResponse](),
	)
	s.mcpServer.AddTool(exploreTool, mcp.NewStructuredToolHandler(s.handleExplore))

	replayTool := mcp.NewTool("replay",
		mcp.WithDescription("Replay the run saved in a checkpoint."),
		mcp.WithString("checkpoint", mcp.Required(), mcp.Description("Checkpoint ID")),
		mcp.WithOutputSchema[RunResponse](),
	)
	s.mcpServer.AddTool(replayTool, mcp.NewStructuredToolHandler(s.handleReplay))

	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the Mermaid diagram of a machine type."),
		mcp.WithString("machine_type", mcp.Required(), mcp.Description("Machine type name")),
	), s.handleGraph)

	s.mcpServer.AddTool(mcp.NewTool("list_machines",
		mcp.WithDescription("List the machine records of the latest run."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jsonBytes, err := json.Marshal(s.engine.Machines())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode failed: %v", err)), nil
		}
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

func payloadArg(args map[string]interface{}) (domain.Value, error) {
	raw, ok := args["payload"].(string)
	if !ok || raw == "" {
		return nil, nil
	}
	var v domain.Value
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("invalid payload JSON: %w", err)
	}
	return v, nil
}

func response(res *driver.Result, err error) RunResponse {
	out := RunResponse{
		RunID:      res.RunID,
		Outcome:    res.Outcome,
		Steps:      res.Steps,
		Checkpoint: res.Checkpoint,
	}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}

func (s *Server) handleRun(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (RunResponse, error) {
	payload, err := payloadArg(args)
	if err != nil {
		return RunResponse{}, err
	}
	res, runErr := s.engine.Run(ctx, payload)
	if res == nil {
		return RunResponse{}, runErr
	}
	if runErr != nil {
		s.logger.Warn("MCP Run: run failed", "run", res.RunID, "outcome", res.Outcome, "err", runErr)
	}
	out := response(res, runErr)
	out.Machines = s.engine.Machines()
	return out, nil
}

func (s *Server) handleExplore(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (ExploreResponse, error) {
	payload, err := payloadArg(args)
	if err != nil {
		return ExploreResponse{}, err
	}
	exp, err := s.engine.Explore(ctx, payload)
	if err != nil {
		return ExploreResponse{}, fmt.Errorf("explore failed: %w", err)
	}
	out := ExploreResponse{Runs: exp.Runs, Outcomes: exp.Outcomes}
	if f := exp.Failure; f != nil {
		seed := f.Seed
		failure := response(f.Result, f.Err)
		out.Seed = &seed
		out.Failure = &failure
	}
	return out, nil
}

func (s *Server) handleReplay(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (RunResponse, error) {
	id, _ := args["checkpoint"].(string)
	if id == "" {
		return RunResponse{}, errors.New("checkpoint is required")
	}
	res, err := s.engine.Replay(ctx, id)
	if res == nil {
		return RunResponse{}, fmt.Errorf("replay failed: %w", err)
	}
	return response(res, err), nil
}

func (s *Server) handleGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("machine_type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	def, ok := s.defs.Definition(name)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown machine type %s", name)), nil
	}
	return mcp.NewToolResultText(graph.GenerateMermaid(def, nil)), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(definitionsURI, "Machine Types",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		names := s.defs.Definitions()
		sort.Strings(names)
		jsonBytes, err := json.Marshal(names)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      definitionsURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}

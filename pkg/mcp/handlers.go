package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gnana997/movets/pkg/editor"
	"github.com/gnana997/movets/pkg/mover"
)

// jsonResult marshals v into a text result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// abs interprets p relative to the workspace root.
func (s *Server) abs(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(s.idx.Root(), p)
}

// moveResult reports a finished or failed move. A failed move still carries
// the partial result so callers can see what was rewritten.
func moveResult(result *mover.Result, err error) (*mcp.CallToolResult, error) {
	if err == nil {
		return jsonResult(result)
	}
	if result == nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, merr := json.Marshal(struct {
		Error  string        `json:"error"`
		Result *mover.Result `json:"result"`
	}{err.Error(), result})
	if merr != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultError(string(data)), nil
}

func (s *Server) handleMovePath(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	target, err := req.RequireString("target")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	item, err := mover.NewItem(s.abs(source), s.abs(target))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return moveResult(s.coord.Move(ctx, item))
}

type batchArgs struct {
	Items []struct {
		Source string `json:"source"`
		Target string `json:"target"`
	} `json:"items"`
}

func (s *Server) handleMoveBatch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(req.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var args batchArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid items: %v", err)), nil
	}
	if len(args.Items) == 0 {
		return mcp.NewToolResultError("items must contain at least one move"), nil
	}

	items := make([]mover.MoveItem, 0, len(args.Items))
	for i, it := range args.Items {
		if it.Source == "" || it.Target == "" {
			return mcp.NewToolResultError(fmt.Sprintf("item %d: source and target are required", i)), nil
		}
		item, err := mover.NewItem(s.abs(it.Source), s.abs(it.Target))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		items = append(items, item)
	}

	if _, ok := req.GetArguments()["synthesize_index"]; ok {
		return moveResult(s.coord.MoveBatchWith(ctx, items, req.GetBool("synthesize_index", false)))
	}
	return moveResult(s.coord.MoveBatch(ctx, items))
}

func (s *Server) handleMoveSiblings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sources, err := req.RequireStringSlice("sources")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	targetDir, err := req.RequireString("target_dir")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(sources) == 0 {
		return mcp.NewToolResultError("sources must not be empty"), nil
	}

	for i := range sources {
		sources[i] = s.abs(sources[i])
	}
	return moveResult(s.coord.MoveSiblings(ctx, sources, s.abs(targetDir)))
}

func (s *Server) handleComponentize(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dir, err := req.RequireString("dir")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return moveResult(s.coord.Componentize(ctx, s.abs(dir)))
}

type reindexResult struct {
	FilesIndexed int      `json:"files_indexed"`
	FilesFailed  int      `json:"files_failed"`
	Edges        int      `json:"edges"`
	Unresolved   int      `json:"unresolved"`
	TotalTimeMs  int64    `json:"total_time_ms"`
	Ambiguous    []string `json:"ambiguous_packages,omitempty"`
}

func (s *Server) handleReindex(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.idx.Reindex(ctx, nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("reindex failed: %v", err)), nil
	}
	return jsonResult(reindexResult{
		FilesIndexed: stats.FilesIndexed,
		FilesFailed:  stats.FilesFailed,
		Edges:        s.idx.Graph().Stats().Edges,
		Unresolved:   stats.Unresolved,
		TotalTimeMs:  stats.TotalTimeMs,
		Ambiguous:    s.idx.Resolver().Ambiguous(),
	})
}

func (s *Server) handleGetReferences(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	refs := s.idx.Dependents(s.abs(path))
	if refs == nil {
		refs = []string{}
	}
	return jsonResult(refs)
}

type specifierInfo struct {
	Specifier  string `json:"specifier"`
	Line       int    `json:"line"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
	StartUTF16 int    `json:"start_utf16"`
	EndUTF16   int    `json:"end_utf16"`
	Resolved   string `json:"resolved,omitempty"`
}

func (s *Server) handleListSpecifiers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	file := s.abs(path)

	text, err := s.idx.Store().ReadText(file)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	occurrences, err := s.idx.Extractor().ExtractSpecifiers(file, []byte(text))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res := s.idx.Resolver()
	out := make([]specifierInfo, 0, len(occurrences))
	for _, occ := range occurrences {
		info := specifierInfo{
			Specifier:  occ.Specifier,
			Line:       occ.Line,
			Start:      occ.Start,
			End:        occ.End,
			StartUTF16: editor.UTF16Offset(text, occ.Start),
			EndUTF16:   editor.UTF16Offset(text, occ.End),
		}
		if target, ok := res.Resolve(file, occ.Specifier); ok {
			info.Resolved = res.ProbeFile(target)
		}
		out = append(out, info)
	}
	return jsonResult(out)
}

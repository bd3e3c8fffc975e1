package server

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chazu/scriptc/compiler"
	"github.com/chazu/scriptc/pkg/bytecode"
)

// Procedure paths of the compile service. Messages are
// google.protobuf.Struct values, so the service needs no generated code.
const (
	CompileServiceName    = "scriptc.v1.CompileService"
	CompileProcedure      = "/" + CompileServiceName + "/Compile"
	CheckSyntaxProcedure  = "/" + CompileServiceName + "/CheckSyntax"
	DisassembleProcedure  = "/" + CompileServiceName + "/Disassemble"
	compileServicePattern = "/" + CompileServiceName + "/"
)

// CompileService implements the Connect compile handlers.
type CompileService struct {
	worker *CompileWorker
}

// NewCompileService creates a CompileService.
func NewCompileService(worker *CompileWorker) *CompileService {
	return &CompileService{worker: worker}
}

// Handler returns the mount path and HTTP handler serving every procedure.
func (s *CompileService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(CompileProcedure, connect.NewUnaryHandler(CompileProcedure, s.Compile, opts...))
	mux.Handle(CheckSyntaxProcedure, connect.NewUnaryHandler(CheckSyntaxProcedure, s.CheckSyntax, opts...))
	mux.Handle(DisassembleProcedure, connect.NewUnaryHandler(DisassembleProcedure, s.Disassemble, opts...))
	return compileServicePattern, mux
}

// compileArgs holds the decoded request fields.
type compileArgs struct {
	source string
	params string
	name   string // non-empty compiles a function body
	opts   compiler.Options
}

func (s *CompileService) args(msg *structpb.Struct) (compileArgs, error) {
	f := msg.GetFields()
	a := compileArgs{
		source: f["source"].GetStringValue(),
		params: f["params"].GetStringValue(),
		name:   f["name"].GetStringValue(),
		opts:   s.worker.Options(),
	}
	if a.source == "" && a.name == "" {
		return a, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("source is required"))
	}
	if v, ok := f["strict"]; ok {
		a.opts.Strict = v.GetBoolValue()
	}
	if v, ok := f["line_info"]; ok {
		a.opts.LineInfo = v.GetBoolValue()
	}
	if v, ok := f["breakpoints"]; ok {
		a.opts.Breakpoints = v.GetBoolValue()
	}
	return a, nil
}

func (s *CompileService) run(ctx context.Context, msg *structpb.Struct) (CompileOutcome, error) {
	a, err := s.args(msg)
	if err != nil {
		return CompileOutcome{}, err
	}
	out, err := s.worker.Compile(ctx, a.source, a.params, a.name, a.opts)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return out, connect.NewError(connect.CodeCanceled, err)
		}
		return out, connect.NewError(connect.CodeInternal, err)
	}
	return out, nil
}

// Compile compiles the request source and returns the artifact summary
// and its CBOR encoding. Compile errors are reported in the response.
func (s *CompileService) Compile(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	out, err := s.run(ctx, req.Msg)
	if err != nil {
		return nil, err
	}
	if out.Err != nil {
		return failure(out.Err)
	}

	fields, err := summary(out.Code)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	data, err := bytecode.Marshal(out.Code)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	fields["code"] = base64.StdEncoding.EncodeToString(data)
	fields["cached"] = out.Cached
	return response(fields)
}

// CheckSyntax compiles the request source and reports diagnostics only.
func (s *CompileService) CheckSyntax(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	out, err := s.run(ctx, req.Msg)
	if err != nil {
		return nil, err
	}
	if out.Err != nil {
		return failure(out.Err)
	}
	return response(map[string]any{"success": true})
}

// Disassemble compiles the request source and returns the listing.
func (s *CompileService) Disassemble(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	out, err := s.run(ctx, req.Msg)
	if err != nil {
		return nil, err
	}
	if out.Err != nil {
		return failure(out.Err)
	}
	fields, err := summary(out.Code)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	fields["disassembly"] = out.Code.Disassemble()
	return response(fields)
}

func summary(code *bytecode.CompiledCode) (map[string]any, error) {
	fp, err := bytecode.Fingerprint(code)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"success":     true,
		"fingerprint": hex.EncodeToString(fp[:]),
		"code_size":   len(code.Code),
		"literals":    len(code.Literals),
		"stack_limit": int(code.StackLimit),
		"registers":   code.RegisterCount(),
		"strict":      code.Has(bytecode.FlagStrict),
	}, nil
}

func failure(err error) (*connect.Response[structpb.Struct], error) {
	var cerr *compiler.Error
	if !errors.As(err, &cerr) {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return response(map[string]any{
		"success": false,
		"error": map[string]any{
			"kind":    cerr.Kind.String(),
			"code":    cerr.Code.String(),
			"message": cerr.Message,
			"line":    cerr.Line,
			"column":  cerr.Column,
			"offset":  cerr.Offset,
		},
	})
}

func response(fields map[string]any) (*connect.Response[structpb.Struct], error) {
	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

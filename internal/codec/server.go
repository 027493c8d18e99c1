package codec

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/lucid/internal/retrieval"
	"github.com/danielpatrickdp/lucid/internal/session"
)

// #region collaborators
// Completer is the generation side served over Backend/Complete.
type Completer interface {
	Complete(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error)
}

// Reflector runs one reflection turn.
type Reflector interface {
	Reflect(ctx context.Context, sessionID, message string) (Reply, error)
}

// ReflectorFunc adapts a function to Reflector.
type ReflectorFunc func(ctx context.Context, sessionID, message string) (Reply, error)

func (f ReflectorFunc) Reflect(ctx context.Context, sessionID, message string) (Reply, error) {
	return f(ctx, sessionID, message)
}

// #endregion collaborators

// #region backend-service
// BackendServer is the handler interface of lucid.v1.Backend.
type BackendServer interface {
	Complete(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Search(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type backendServer struct {
	gen    Completer
	search retrieval.Backend
}

// NewBackendServer serves gen and search. Either may be nil, in which case
// the method reports Unimplemented.
func NewBackendServer(gen Completer, search retrieval.Backend) BackendServer {
	return &backendServer{gen: gen, search: search}
}

func (s *backendServer) Complete(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.gen == nil {
		return nil, status.Error(codes.Unimplemented, "no generation backend")
	}
	m := req.AsMap()
	prompt := str(m, "prompt")
	if strings.TrimSpace(prompt) == "" {
		return nil, status.Error(codes.InvalidArgument, "prompt is required")
	}
	text, err := s.gen.Complete(ctx, prompt, num(m, "temperature"), int(num(m, "max_tokens")))
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]any{"text": text})
}

func (s *backendServer) Search(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.search == nil {
		return nil, status.Error(codes.Unimplemented, "no retrieval backend")
	}
	m := req.AsMap()
	hits, err := s.search.Search(ctx, str(m, "query"), int(num(m, "k")))
	if err != nil {
		return nil, toStatus(err)
	}
	return encodeHits(hits)
}

// RegisterBackendServer registers srv as lucid.v1.Backend on s.
func RegisterBackendServer(s grpc.ServiceRegistrar, srv BackendServer) {
	s.RegisterService(&backendServiceDesc, srv)
}

var backendServiceDesc = grpc.ServiceDesc{
	ServiceName: backendService,
	HandlerType: (*BackendServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Complete", Handler: unaryHandler(completeMethod, func(srv any, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			return srv.(BackendServer).Complete(ctx, in)
		})},
		{MethodName: "Search", Handler: unaryHandler(searchMethod, func(srv any, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			return srv.(BackendServer).Search(ctx, in)
		})},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "lucid/v1/backend.proto",
}

// #endregion backend-service

// #region reflection-service
// ReflectionServer is the handler interface of lucid.v1.Reflection.
type ReflectionServer interface {
	Reflect(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type reflectionServer struct {
	r Reflector
}

// NewReflectionServer serves turns through r.
func NewReflectionServer(r Reflector) ReflectionServer {
	return &reflectionServer{r: r}
}

func (s *reflectionServer) Reflect(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	m := req.AsMap()
	reply, err := s.r.Reflect(ctx, str(m, "session_id"), str(m, "message"))
	if err != nil {
		return nil, toStatus(err)
	}
	meta := reply.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	return newStruct(map[string]any{
		"response":   reply.Response,
		"session_id": reply.SessionID,
		"metadata":   meta,
	})
}

// RegisterReflectionServer registers srv as lucid.v1.Reflection on s.
func RegisterReflectionServer(s grpc.ServiceRegistrar, srv ReflectionServer) {
	s.RegisterService(&reflectionServiceDesc, srv)
}

var reflectionServiceDesc = grpc.ServiceDesc{
	ServiceName: reflectionService,
	HandlerType: (*ReflectionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Reflect", Handler: unaryHandler(reflectMethod, func(srv any, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			return srv.(ReflectionServer).Reflect(ctx, in)
		})},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "lucid/v1/reflection.proto",
}

// #endregion reflection-service

// #region handlers
type structCall func(srv any, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

// unaryHandler builds the method handler grpc-go generates for unary RPCs.
func unaryHandler(fullMethod string, call structCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv, ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// toStatus maps domain errors onto grpc status codes.
func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return status.FromContextError(err).Err()
	case errors.Is(err, session.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, retrieval.ErrUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// #endregion handlers

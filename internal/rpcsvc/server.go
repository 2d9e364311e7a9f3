// Package rpcsvc exposes decoding, decryption, assembly and full image
// analysis over gRPC.
package rpcsvc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/RowanDark/wraith/internal/analyzer"
	"github.com/RowanDark/wraith/internal/cipher"
	"github.com/RowanDark/wraith/internal/fragments"
	"github.com/RowanDark/wraith/internal/history"
	"github.com/RowanDark/wraith/internal/imageio"
	"github.com/RowanDark/wraith/internal/logging"
	"github.com/RowanDark/wraith/internal/pixels"
)

// Server implements AnalysisServer.
//
// Request fields:
//
//	Decode:   input | input_b64, layers [string], auto bool
//	Decrypt:  data | data_b64, key, method, unarmor bool
//	Assemble: fragments {id: text}, order [string], separator
//	Analyze:  image_b64, name, key, method, order [string], separator
//
// Byte outputs are returned both as text and as *_b64.
type Server struct {
	UnimplementedAnalysisServer

	Options analyzer.Options
	Logger  *logging.Logger
	// History, when set, receives every Analyze report.
	History *history.Store
}

// Decode removes layers from the input, or auto-detects them.
func (s *Server) Decode(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	input, err := bytesField(req, "input")
	if err != nil {
		return nil, err
	}
	layers, err := cipher.ParseLayers(stringList(req, "layers"))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	var res cipher.DecodeResult
	if len(layers) == 0 || boolField(req, "auto") {
		res = cipher.AutoDecode(input)
	} else {
		res = cipher.Decode(input, layers)
	}

	steps := make([]any, 0, len(res.Steps))
	for _, st := range res.Steps {
		step := map[string]any{"layer": st.Layer.String(), "ok": st.OK}
		if st.Err != nil {
			step["error"] = st.Err.Error()
		}
		steps = append(steps, step)
	}
	out := map[string]any{
		"label":      res.Label,
		"score":      res.Score,
		"steps":      steps,
		"candidates": candidateList(res.Candidates),
	}
	putBytes(out, "output", res.Output)
	return newStruct(out)
}

// Decrypt decrypts data with key.
func (s *Server) Decrypt(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	data, err := bytesField(req, "data")
	if err != nil {
		return nil, err
	}
	key := stringField(req, "key")
	if key == "" {
		return nil, status.Error(codes.InvalidArgument, "key is required")
	}
	method, err := cipher.ParseMethod(stringField(req, "method"))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if boolField(req, "unarmor") {
		codec, _ := cipher.GetCodec(cipher.Base64)
		raw, err := codec.Decode(data)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "unarmor: %v", err)
		}
		data = raw
	}

	res, err := cipher.Decrypt(data, []byte(key), method)
	if err != nil {
		var all *cipher.AllMethodsFailedError
		if errors.As(err, &all) {
			return nil, status.Error(codes.FailedPrecondition, err.Error())
		}
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	failures := make([]any, 0, len(res.Failures))
	for _, f := range res.Failures {
		failures = append(failures, map[string]any{"method": f.Method.String(), "error": f.Err.Error()})
	}
	out := map[string]any{
		"method":     res.Method.String(),
		"score":      res.Score,
		"candidates": candidateList(res.Candidates),
		"failures":   failures,
	}
	putBytes(out, "output", res.Output)
	return newStruct(out)
}

// Assemble joins fragments in the requested or natural order.
func (s *Server) Assemble(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	set := make(fragments.Set)
	for id, v := range req.GetFields()["fragments"].GetStructValue().GetFields() {
		f, err := fragments.New(id, []byte(v.GetStringValue()), fragments.ProvenanceFile)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		if err := set.Add(f); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
	}
	order := stringList(req, "order")
	if len(order) == 0 {
		order = set.IDs()
	}
	assembled, err := fragments.Assemble(set, order, fragments.WithSeparator([]byte(rawField(req, "separator"))))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	ids := make([]any, len(order))
	for i, id := range order {
		ids[i] = id
	}
	out := map[string]any{"order": ids}
	putBytes(out, "assembled", assembled)
	return newStruct(out)
}

// Analyze runs the full pipeline over an uploaded image.
func (s *Server) Analyze(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	raw, err := base64.StdEncoding.DecodeString(stringField(req, "image_b64"))
	if err != nil || len(raw) == 0 {
		return nil, status.Error(codes.InvalidArgument, "image_b64 must hold a base64 encoded image")
	}
	name := stringField(req, "name")
	if name == "" {
		name = "upload"
	}
	img, err := imageio.DecodeBytes(raw, name)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	opts := s.Options
	if key := stringField(req, "key"); key != "" {
		opts.Key = key
	}
	if m := stringField(req, "method"); m != "" {
		method, err := cipher.ParseMethod(m)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		opts.Method = method
	}
	if order := stringList(req, "order"); len(order) > 0 {
		opts.Order = order
	}
	if _, ok := req.GetFields()["separator"]; ok {
		opts.Separator = rawField(req, "separator")
	}

	report, err := analyzer.New(opts, s.Logger).Run(ctx, analyzer.InputFromImage(img))
	if err != nil {
		return nil, runError(err)
	}
	if s.History != nil {
		if err := s.History.Save(ctx, report); err != nil {
			_ = s.logger().Emit(logging.Event{
				Stage:   logging.StagePersist,
				RunID:   report.ID,
				Outcome: logging.OutcomeWarning,
				Reason:  err.Error(),
			})
		}
	}

	data, err := json.Marshal(report)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return newStruct(out)
}

func (s *Server) logger() *logging.Logger {
	if s.Logger == nil {
		return logging.Nop()
	}
	return s.Logger
}

func runError(err error) error {
	var (
		access *pixels.AccessError
		order  *fragments.OrderError
	)
	switch {
	case errors.As(err, &access), errors.As(err, &order):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// LoggingInterceptor emits one rpc event per unary call.
func LoggingInterceptor(l *logging.Logger) grpc.UnaryServerInterceptor {
	if l == nil {
		l = logging.Nop()
	}
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, h grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := h(ctx, req)
		ev := logging.Event{
			Stage:   logging.StageRPC,
			Outcome: logging.OutcomeOK,
			Metadata: map[string]any{
				"method":      info.FullMethod,
				"code":        status.Code(err).String(),
				"duration_ms": time.Since(start).Milliseconds(),
			},
		}
		if err != nil {
			ev.Outcome = logging.OutcomeFailed
			ev.Reason = status.Convert(err).Message()
		}
		_ = l.Emit(ev)
		return resp, err
	}
}

// rawField returns a string field untrimmed, for values where whitespace
// is significant.
func rawField(req *structpb.Struct, name string) string {
	return req.GetFields()[name].GetStringValue()
}

func stringField(req *structpb.Struct, name string) string {
	return strings.TrimSpace(req.GetFields()[name].GetStringValue())
}

func boolField(req *structpb.Struct, name string) bool {
	return req.GetFields()[name].GetBoolValue()
}

func stringList(req *structpb.Struct, name string) []string {
	var out []string
	for _, v := range req.GetFields()[name].GetListValue().GetValues() {
		if s := strings.TrimSpace(v.GetStringValue()); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// bytesField reads name as text or name_b64 as standard base64.
func bytesField(req *structpb.Struct, name string) ([]byte, error) {
	fields := req.GetFields()
	if v, ok := fields[name+"_b64"]; ok {
		raw, err := base64.StdEncoding.DecodeString(v.GetStringValue())
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "%s_b64: %v", name, err)
		}
		return raw, nil
	}
	if v, ok := fields[name]; ok {
		return []byte(v.GetStringValue()), nil
	}
	return nil, status.Errorf(codes.InvalidArgument, "%s or %s_b64 is required", name, name)
}

func putBytes(out map[string]any, name string, data []byte) {
	out[name] = strings.ToValidUTF8(string(data), "\uFFFD")
	out[name+"_b64"] = base64.StdEncoding.EncodeToString(data)
}

func candidateList(cands []cipher.Candidate) []any {
	out := make([]any, 0, len(cands))
	for _, c := range cands {
		out = append(out, map[string]any{
			"label":    c.Label,
			"score":    c.Score,
			"priority": c.Priority,
			"rejected": c.Rejected,
		})
	}
	return out
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	return out, nil
}

package querier

import (
	"context"
	"fmt"
	"math"
	"net"
	"sync"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/flight"
	flightgen "github.com/apache/arrow/go/v14/arrow/flight/gen/flight"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/osekit/auxquerier/core"
)

// FrameRequest addresses a frame range of an auxiliary file.
// It travels as a protobuf Struct in flight descriptors and tickets.
type FrameRequest struct {
	Path            string
	TimestampColumn string
	Start           int
	// Stop is exclusive; nil reads to the last frame
	Stop      *int
	Variables []string
}

// EncodeCommand serializes req for a flight descriptor or ticket
func EncodeCommand(req FrameRequest) ([]byte, error) {
	fields := map[string]any{
		"path":             req.Path,
		"timestamp_column": req.TimestampColumn,
		"start":            float64(req.Start),
	}
	if req.Stop != nil {
		fields["stop"] = float64(*req.Stop)
	}
	if len(req.Variables) > 0 {
		vars := make([]any, len(req.Variables))
		for i, v := range req.Variables {
			vars[i] = v
		}
		fields["variables"] = vars
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

// DecodeCommand parses a command produced by EncodeCommand
func DecodeCommand(cmd []byte) (FrameRequest, error) {
	s := &structpb.Struct{}
	if err := proto.Unmarshal(cmd, s); err != nil {
		return FrameRequest{}, fmt.Errorf("failed to unmarshal command: %w", err)
	}
	fields := s.GetFields()
	req := FrameRequest{
		Path:            fields["path"].GetStringValue(),
		TimestampColumn: fields["timestamp_column"].GetStringValue(),
		Start:           int(fields["start"].GetNumberValue()),
	}
	if req.Path == "" {
		return FrameRequest{}, fmt.Errorf("command has no path")
	}
	if stop, ok := fields["stop"]; ok {
		v := int(stop.GetNumberValue())
		req.Stop = &v
	}
	for _, v := range fields["variables"].GetListValue().GetValues() {
		req.Variables = append(req.Variables, v.GetStringValue())
	}
	return req, nil
}

// FlightServer streams frame ranges of auxiliary files as Arrow record batches
type FlightServer struct {
	flightgen.UnimplementedFlightServiceServer
	reader  core.FrameReader
	resolve func(string) (string, error)
	mu      *sync.Mutex
	mem     memory.Allocator
	addr    string
	// timestampColumn is used by commands that name none
	timestampColumn string
}

// mustEmbedUnimplementedFlightServiceServer implements the FlightServiceServer interface
func (s *FlightServer) mustEmbedUnimplementedFlightServiceServer() {}

// NewFlightServer creates a FlightServer sharing the HTTP server's files and lock
func (s *Server) NewFlightServer(addr string) *FlightServer {
	return &FlightServer{
		reader:          s.Manager,
		resolve:         s.ResolvePath,
		mu:              &s.mu,
		mem:             memory.DefaultAllocator,
		addr:            addr,
		timestampColumn: s.TimestampColumn,
	}
}

// window resolves the file, timestamp column and frame range of req
func (s *FlightServer) window(ctx context.Context, req FrameRequest) (FrameRequest, int, error) {
	path, err := s.resolve(req.Path)
	if err != nil {
		return req, 0, err
	}
	req.Path = path
	if req.TimestampColumn == "" {
		req.TimestampColumn = s.timestampColumn
	}
	if req.Stop != nil {
		return req, *req.Stop, nil
	}
	info, err := s.reader.Info(ctx, path, req.TimestampColumn)
	if err != nil {
		return req, 0, err
	}
	return req, info.Frames, nil
}

// GetFlightInfo implements the FlightService interface
func (s *FlightServer) GetFlightInfo(ctx context.Context, desc *flight.FlightDescriptor) (*flight.FlightInfo, error) {
	ctx = core.WithDefaultLogger(ctx, "flight")
	if desc.Type != flight.DescriptorCMD {
		return nil, fmt.Errorf("unsupported flight descriptor type: %v", desc.Type)
	}
	req, err := DecodeCommand(desc.Cmd)
	if err != nil {
		core.Errorf(ctx, "Failed to decode command: %v", err)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	resolved, stop, err := s.window(ctx, req)
	if err != nil {
		return nil, err
	}
	start := resolved.Start

	core.Infof(ctx, "Returning flight info for %s frames [%d, %d)", req.Path, start, stop)
	return &flight.FlightInfo{
		FlightDescriptor: desc,
		Endpoint: []*flight.FlightEndpoint{
			{
				Ticket: &flight.Ticket{Ticket: desc.Cmd},
				Location: []*flight.Location{
					{Uri: "grpc://" + s.addr},
				},
			},
		},
		TotalRecords: int64(stop - start),
		TotalBytes:   -1,
	}, nil
}

// DoGet implements the FlightService interface for retrieving frames
func (s *FlightServer) DoGet(ticket *flight.Ticket, stream flight.FlightService_DoGetServer) error {
	ctx := core.WithDefaultLogger(stream.Context(), "flight")
	req, err := DecodeCommand(ticket.Ticket)
	if err != nil {
		return err
	}

	s.mu.Lock()
	resolved, stop, err := s.window(ctx, req)
	start := resolved.Start
	var frames *core.Frames
	if err == nil {
		frames, err = s.reader.Read(ctx, resolved.Path, resolved.TimestampColumn, start, stop, resolved.Variables)
	}
	s.mu.Unlock()
	if err != nil {
		core.Errorf(ctx, "Read of %s failed: %v", req.Path, err)
		return err
	}

	record := framesToArrow(s.mem, frames, start)
	defer record.Release()

	writer := flight.NewRecordWriter(stream, ipc.WithSchema(record.Schema()))
	if err := writer.Write(record); err != nil {
		core.Errorf(ctx, "Failed to write record batch: %v", err)
		return fmt.Errorf("failed to write record batch: %w", err)
	}
	core.Infof(ctx, "Successfully wrote record batch with %d rows", record.NumRows())
	return writer.Close()
}

// framesToArrow converts frames to a record with a frame index column followed by one
// float64 column per variable. NaN samples become nulls.
func framesToArrow(mem memory.Allocator, frames *core.Frames, firstFrame int) arrow.Record {
	fields := make([]arrow.Field, 0, frames.Cols+1)
	fields = append(fields, arrow.Field{Name: "frame", Type: arrow.PrimitiveTypes.Int64})
	for _, name := range frames.Variables {
		fields = append(fields, arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Float64, Nullable: true})
	}
	schema := arrow.NewSchema(fields, nil)

	arrays := make([]arrow.Array, len(fields))
	index := array.NewInt64Builder(mem)
	for i := 0; i < frames.Rows; i++ {
		index.Append(int64(firstFrame + i))
	}
	arrays[0] = index.NewArray()
	index.Release()

	for col := 0; col < frames.Cols; col++ {
		builder := array.NewFloat64Builder(mem)
		for row := 0; row < frames.Rows; row++ {
			v := frames.At(row, col)
			if math.IsNaN(v) {
				builder.AppendNull()
				continue
			}
			builder.Append(v)
		}
		arrays[col+1] = builder.NewArray()
		builder.Release()
	}

	record := array.NewRecord(schema, arrays, int64(frames.Rows))
	for _, a := range arrays {
		a.Release()
	}
	return record
}

// ServeFlight runs the flight server on port until ctx is done
func ServeFlight(ctx context.Context, port int, server *FlightServer) error {
	s := grpc.NewServer()
	flightgen.RegisterFlightServiceServer(s, server)
	reflection.Register(s)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()
	core.Infof(ctx, "Flight server listening on port %d", port)
	return s.Serve(lis)
}

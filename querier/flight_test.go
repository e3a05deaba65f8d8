package querier

import (
	"context"
	"io"
	"math"
	"testing"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/flight"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"

	"github.com/osekit/auxquerier/core"
)

func TestFramesToArrow(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	frames := core.NewFrames(3, []string{"temperature", "pressure"})
	for i := 0; i < 3; i++ {
		frames.Set(i, 0, float64(i)+0.5)
		frames.Set(i, 1, float64(1000+i))
	}
	frames.Set(1, 1, math.NaN())

	record := framesToArrow(mem, frames, 7)
	defer record.Release()

	assert.Equal(t, int64(3), record.NumRows())
	assert.Equal(t, int64(3), record.NumCols())
	assert.Equal(t, "frame", record.Schema().Field(0).Name)
	assert.Equal(t, "temperature", record.Schema().Field(1).Name)
	assert.Equal(t, arrow.PrimitiveTypes.Float64, record.Schema().Field(2).Type)

	index := record.Column(0).(*array.Int64)
	assert.Equal(t, []int64{7, 8, 9}, index.Int64Values())

	temperature := record.Column(1).(*array.Float64)
	assert.Equal(t, []float64{0.5, 1.5, 2.5}, temperature.Float64Values())

	pressure := record.Column(2).(*array.Float64)
	assert.False(t, pressure.IsNull(0))
	assert.True(t, pressure.IsNull(1))
	assert.Equal(t, 1002.0, pressure.Value(2))
}

func TestCommandRoundTrip(t *testing.T) {
	stop := 12
	cmd, err := EncodeCommand(FrameRequest{
		Path:            "site/aux.csv",
		TimestampColumn: "timestamp",
		Start:           3,
		Stop:            &stop,
		Variables:       []string{"a", "b"},
	})
	require.NoError(t, err)

	req, err := DecodeCommand(cmd)
	require.NoError(t, err)
	assert.Equal(t, "site/aux.csv", req.Path)
	assert.Equal(t, "timestamp", req.TimestampColumn)
	assert.Equal(t, 3, req.Start)
	require.NotNil(t, req.Stop)
	assert.Equal(t, 12, *req.Stop)
	assert.Equal(t, []string{"a", "b"}, req.Variables)

	cmd, err = EncodeCommand(FrameRequest{Path: "aux.nc"})
	require.NoError(t, err)
	req, err = DecodeCommand(cmd)
	require.NoError(t, err)
	assert.Nil(t, req.Stop)
	assert.Empty(t, req.Variables)

	_, err = DecodeCommand([]byte("not a struct"))
	assert.Error(t, err)
}

// doGetStream records the flight data sent by DoGet
type doGetStream struct {
	grpc.ServerStream
	ctx  context.Context
	sent []*flight.FlightData
}

func (s *doGetStream) Context() context.Context {
	return s.ctx
}

func (s *doGetStream) Send(d *flight.FlightData) error {
	s.sent = append(s.sent, proto.Clone(d).(*flight.FlightData))
	return nil
}

// Recv replays the sent data to a record reader
func (s *doGetStream) Recv() (*flight.FlightData, error) {
	if len(s.sent) == 0 {
		return nil, io.EOF
	}
	d := s.sent[0]
	s.sent = s.sent[1:]
	return d, nil
}

func TestFlightDefaultsTimestampColumn(t *testing.T) {
	fs := newTestServer(t).NewFlightServer("localhost:0")

	t.Run("GetFlightInfo", func(t *testing.T) {
		cmd, err := EncodeCommand(FrameRequest{Path: "aux.csv"})
		require.NoError(t, err)

		info, err := fs.GetFlightInfo(context.Background(), &flight.FlightDescriptor{Type: flight.DescriptorCMD, Cmd: cmd})
		require.NoError(t, err)
		assert.Equal(t, int64(10), info.TotalRecords)
		require.Len(t, info.Endpoint, 1)
		assert.Equal(t, cmd, info.Endpoint[0].Ticket.Ticket)
	})

	t.Run("DoGet", func(t *testing.T) {
		stop := 5
		cmd, err := EncodeCommand(FrameRequest{Path: "aux.csv", Start: 2, Stop: &stop, Variables: []string{"a"}})
		require.NoError(t, err)

		stream := &doGetStream{ctx: context.Background()}
		require.NoError(t, fs.DoGet(&flight.Ticket{Ticket: cmd}, stream))

		reader, err := flight.NewRecordReader(stream)
		require.NoError(t, err)
		defer reader.Release()

		require.True(t, reader.Next())
		record := reader.Record()
		assert.Equal(t, int64(3), record.NumRows())
		assert.Equal(t, "a", record.Schema().Field(1).Name)
		assert.Equal(t, []int64{2, 3, 4}, record.Column(0).(*array.Int64).Int64Values())
		assert.Equal(t, []float64{20, 30, 40}, record.Column(1).(*array.Float64).Float64Values())
	})

	t.Run("out of range", func(t *testing.T) {
		stop := 50
		cmd, err := EncodeCommand(FrameRequest{Path: "aux.csv", Stop: &stop})
		require.NoError(t, err)
		assert.Error(t, fs.DoGet(&flight.Ticket{Ticket: cmd}, &doGetStream{ctx: context.Background()}))
	})
}

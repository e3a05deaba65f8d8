// server.go
package querier

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"

	"github.com/osekit/auxquerier/auxdata"
	"github.com/osekit/auxquerier/config"
	"github.com/osekit/auxquerier/core"
	"github.com/osekit/auxquerier/metrics"
)

// Server represents the API server
type Server struct {
	Manager         *auxdata.Manager
	DataDir         string
	Location        *time.Location
	TimestampColumn string
	Fs              afero.Fs

	// mu serializes access to Manager, which holds shared open files
	mu sync.Mutex
}

func GetRootDir() string {
	dataDir := os.Getenv("DATA_DIR")
	if dataDir != "" {
		return dataDir
	}
	dataDir = config.Config.DataDir
	if dataDir != "" {
		return dataDir
	}
	return "./data"
}

// NewServer creates a new server instance
func NewServer(dataDir string) (*Server, error) {
	loc, err := config.Config.Location()
	if err != nil {
		return nil, err
	}
	return &Server{
		Manager:         auxdata.NewManager(),
		DataDir:         dataDir,
		Location:        loc,
		TimestampColumn: config.Config.TimestampColumn,
		Fs:              afero.NewOsFs(),
	}, nil
}

// InfoRequest represents an info API request
type InfoRequest struct {
	Path            string `json:"path"`
	TimestampColumn string `json:"timestamp_column,omitempty"`
}

// InfoResponse represents an info API response
type InfoResponse struct {
	Path       string   `json:"path"`
	Format     string   `json:"format"`
	SampleRate *float64 `json:"sample_rate"`
	Frames     int      `json:"frames"`
	Variables  []string `json:"variables"`
	Duration   float64  `json:"duration_seconds"`
	Begin      string   `json:"begin,omitempty"`
}

// ReadRequest represents a read API request
type ReadRequest struct {
	Path            string   `json:"path"`
	TimestampColumn string   `json:"timestamp_column,omitempty"`
	Begin           string   `json:"begin,omitempty"`
	StrptimeFormat  string   `json:"strptime_format,omitempty"`
	Start           string   `json:"start"`
	Stop            string   `json:"stop"`
	Variables       []string `json:"variables,omitempty"`
	Format          string   `json:"format,omitempty"`
}

// ReadResponse represents a read API response
type ReadResponse struct {
	Path       string   `json:"path"`
	StartFrame int      `json:"start_frame"`
	StopFrame  int      `json:"stop_frame"`
	Variables  []string `json:"variables"`
	Shape      [2]int   `json:"shape"`
	Data       [][]any  `json:"data"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}

var reqId int32

// addCORSHeaders adds CORS headers to the response
func addCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// ResolvePath maps a request path into the data directory, refusing paths escaping it
func (s *Server) ResolvePath(p string) (string, error) {
	if p == "" {
		return "", errors.New("missing path parameter")
	}
	root, err := filepath.Abs(s.DataDir)
	if err != nil {
		return "", err
	}
	abs := filepath.Join(root, filepath.Clean("/"+p))
	if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid path: %s", p)
	}
	return abs, nil
}

// open builds the descriptor of a file. s.mu must be held.
func (s *Server) open(r *http.Request, path, column, begin, strptimeFormat string) (*auxdata.File, error) {
	abs, err := s.ResolvePath(path)
	if err != nil {
		return nil, err
	}
	if column == "" && begin == "" && strptimeFormat == "" {
		column = s.TimestampColumn
	}
	opts := auxdata.Options{
		TimestampColumn: column,
		StrptimeFormat:  strptimeFormat,
		Timezone:        s.Location,
		Fs:              s.Fs,
	}
	if begin != "" {
		if opts.Begin, err = ParseTimestamp(begin); err != nil {
			return nil, err
		}
	}
	return auxdata.Open(r.Context(), s.Manager, abs, opts)
}

// HandleInfo Handles the /info endpoint
func (s *Server) HandleInfo(w http.ResponseWriter, r *http.Request) {
	ctx := core.WithDefaultLogger(r.Context(), fmt.Sprintf("req-%d", atomic.AddInt32(&reqId, 1)))
	r = r.WithContext(ctx)
	addCORSHeaders(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req InfoRequest
	switch r.Method {
	case http.MethodGet:
		req.Path = r.URL.Query().Get("path")
		req.TimestampColumn = r.URL.Query().Get("timestamp_column")
	case http.MethodPost:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendErrorResponse(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	f, err := s.open(r, req.Path, req.TimestampColumn, "", "")
	s.mu.Unlock()
	if err != nil {
		core.Errorf(ctx, "Failed to open %s: %v", req.Path, err)
		sendErrorResponse(w, err.Error(), statusOf(err))
		return
	}

	resp := InfoResponse{
		Path:      req.Path,
		Format:    auxdata.FormatOf(f.Path).String(),
		Frames:    f.Frames(),
		Variables: f.Info.Variables,
		Duration:  f.Info.Duration.Seconds(),
		Begin:     f.Begin.Format(time.RFC3339Nano),
	}
	if hz := f.SampleRate().Hz(); !math.IsNaN(hz) {
		resp.SampleRate = &hz
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// HandleRead Handles the /read endpoint
func (s *Server) HandleRead(w http.ResponseWriter, r *http.Request) {
	ctx := core.WithDefaultLogger(r.Context(), fmt.Sprintf("req-%d", atomic.AddInt32(&reqId, 1)))
	r = r.WithContext(ctx)
	addCORSHeaders(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	// Only allow POST
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	format := req.Format
	if format == "" {
		format = r.URL.Query().Get("format")
	}
	if format == "" {
		format = "json"
	}
	formatter, ok := formatters[format]
	if !ok {
		sendErrorResponse(w, fmt.Sprintf("Unsupported format %q", format), http.StatusBadRequest)
		return
	}

	start, err := ParseTimestamp(req.Start)
	if err != nil {
		sendErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	stop, err := ParseTimestamp(req.Stop)
	if err != nil {
		sendErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := s.read(r, req, start, stop)
	if err != nil {
		core.Errorf(ctx, "Read of %s failed: %v", req.Path, err)
		sendErrorResponse(w, err.Error(), statusOf(err))
		return
	}

	if err := formatter(resp, w); err != nil {
		core.Errorf(ctx, "Failed to write response: %v", err)
	}
}

func (s *Server) read(r *http.Request, req ReadRequest, start, stop time.Time) (*ReadResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open(r, req.Path, req.TimestampColumn, req.Begin, req.StrptimeFormat)
	if err != nil {
		return nil, err
	}
	if err := f.SelectVariables(req.Variables...); err != nil {
		return nil, err
	}
	frames, startFrame, stopFrame, err := f.ReadWindow(r.Context(), start, stop)
	if err != nil {
		return nil, err
	}
	core.Infof(r.Context(), "Read frames [%d, %d) of %s", startFrame, stopFrame, req.Path)

	return &ReadResponse{
		Path:       req.Path,
		StartFrame: startFrame,
		StopFrame:  stopFrame,
		Variables:  frames.Variables,
		Shape:      [2]int{frames.Rows, frames.Cols},
		Data:       ProcessFramesForJSON(frames),
	}, nil
}

// statusOf maps an error to the HTTP status reported to the client
func statusOf(err error) int {
	switch {
	case errors.Is(err, auxdata.ErrInvalidRange),
		errors.Is(err, auxdata.ErrUnknownVariable),
		errors.Is(err, auxdata.ErrMissingBeginSource):
		return http.StatusBadRequest
	case errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Send an error response in JSON format
func sendErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
	})
}

// Health check endpoint
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	addCORSHeaders(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	s.mu.Lock()
	open := s.Manager.OpenFiles()
	s.mu.Unlock()
	files := make(map[string]string, len(open))
	for format, path := range open {
		files[format.String()] = path
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":     "ok",
		"timestamp":  time.Now().Format(time.RFC3339),
		"open_files": files,
	})
}

// Routes registers the HTTP endpoints on mux
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.HandleHealth)
	mux.HandleFunc("/info", s.HandleInfo)
	mux.HandleFunc("/read", s.HandleRead)
	mux.Handle("/metrics", metrics.Handler())
}

// Close the server and release resources
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Manager.Close()
}

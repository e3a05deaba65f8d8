package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/osekit/auxquerier/auxdata"
	"github.com/osekit/auxquerier/config"
	"github.com/osekit/auxquerier/core"
	"github.com/osekit/auxquerier/querier"
)

func main() {
	configFlag := flag.String("config", "", "Path to a configuration file")
	fileFlag := flag.String("file", "", "Read a window of an auxiliary file and exit")
	columnFlag := flag.String("timestamp-col", "", "Timestamp column or variable of the file")
	beginFlag := flag.String("begin", "", "Begin timestamp of the file, overrides the file content")
	strptimeFlag := flag.String("strptime", "", "strftime format of the begin timestamp in the file name")
	startFlag := flag.String("start", "", "First timestamp of the window")
	stopFlag := flag.String("stop", "", "Timestamp after the window")
	varsFlag := flag.String("vars", "", "Comma separated variables to read")
	flag.Parse()

	if err := config.InitConfig(*configFlag); err != nil {
		log.Fatalf("Config error: %v", err)
	}
	if err := core.InitLogger(config.Config.LogLevel, config.Config.LogFormat); err != nil {
		log.Fatalf("Logger error: %v", err)
	}
	defer core.SyncLogger()

	ctx := core.WithDefaultLogger(context.Background(), "main")

	// If file flag is provided, read the window and exit
	if *fileFlag != "" {
		var vars []string
		if *varsFlag != "" {
			vars = strings.Split(*varsFlag, ",")
		}
		resp, err := readOnce(ctx, *fileFlag, *columnFlag, *beginFlag, *strptimeFlag, *startFlag, *stopFlag, vars)
		if err != nil {
			log.Fatalf("Read error: %v", err)
		}
		jsonData, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			log.Fatalf("Failed to marshal results: %v", err)
		}
		fmt.Println(string(jsonData))
		return
	}

	server, err := querier.NewServer(querier.GetRootDir())
	if err != nil {
		core.Errorf(ctx, "Failed to initialize server: %v", err)
		os.Exit(1)
	}
	defer server.Close()

	mux := http.NewServeMux()
	server.Routes(mux)
	httpServer := &http.Server{Addr: fmt.Sprintf(":%d", config.Config.Port), Handler: mux}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		core.Infof(ctx, "Auxiliary querier running at http://localhost:%d", config.Config.Port)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		return httpServer.Shutdown(context.Background())
	})
	if !config.Config.DisableFlight {
		g.Go(func() error {
			flightAddr := fmt.Sprintf("localhost:%d", config.Config.FlightPort)
			return querier.ServeFlight(ctx, config.Config.FlightPort, server.NewFlightServer(flightAddr))
		})
	}

	if err := g.Wait(); err != nil {
		core.Errorf(ctx, "Server stopped: %v", err)
		os.Exit(1)
	}
}

// readOnce opens path and reads the frames between start and stop
func readOnce(ctx context.Context, path, column, begin, strptimeFormat, start, stop string, vars []string) (*querier.ReadResponse, error) {
	loc, err := config.Config.Location()
	if err != nil {
		return nil, err
	}
	opts := auxdata.Options{TimestampColumn: column, StrptimeFormat: strptimeFormat, Timezone: loc}
	if begin != "" {
		if opts.Begin, err = querier.ParseTimestamp(begin); err != nil {
			return nil, err
		}
	}

	m := auxdata.NewManager()
	defer m.Close()

	f, err := auxdata.Open(ctx, m, path, opts)
	if err != nil {
		return nil, err
	}
	if err := f.SelectVariables(vars...); err != nil {
		return nil, err
	}

	startTs, stopTs := f.Begin, f.End
	if start != "" {
		if startTs, err = querier.ParseTimestamp(start); err != nil {
			return nil, err
		}
	}
	if stop != "" {
		if stopTs, err = querier.ParseTimestamp(stop); err != nil {
			return nil, err
		}
	}
	startFrame, stopFrame, err := f.FramesIndexes(ctx, startTs, stopTs)
	if err != nil {
		return nil, err
	}
	if stop == "" {
		stopFrame = f.Frames()
	}

	frames, err := m.Read(ctx, f.Path, f.TimestampColumn, startFrame, stopFrame, f.Variables())
	if err != nil {
		return nil, err
	}
	return &querier.ReadResponse{
		Path:       path,
		StartFrame: startFrame,
		StopFrame:  stopFrame,
		Variables:  frames.Variables,
		Shape:      [2]int{frames.Rows, frames.Cols},
		Data:       querier.ProcessFramesForJSON(frames),
	}, nil
}

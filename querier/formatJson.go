package querier

import (
	"encoding/json"
	"math"
	"net/http"

	"github.com/osekit/auxquerier/core"
)

func JsonFormatter(resp *ReadResponse, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(resp)
}

// NDJsonFormatter writes one object per frame, keyed by variable name
func NDJsonFormatter(resp *ReadResponse, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/x-ndjson")
	enc := json.NewEncoder(w)
	for i, row := range resp.Data {
		obj := make(map[string]any, len(row)+1)
		obj["frame"] = resp.StartFrame + i
		for j, v := range row {
			obj[resp.Variables[j]] = v
		}
		if err := enc.Encode(obj); err != nil {
			return err
		}
	}
	return nil
}

// ProcessFramesForJSON turns frames into rows JSON can carry; NaN and infinities become null
func ProcessFramesForJSON(frames *core.Frames) [][]any {
	rows := make([][]any, frames.Rows)
	for i := range rows {
		row := make([]any, frames.Cols)
		for j, v := range frames.Row(i) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				row[j] = nil
				continue
			}
			row[j] = v
		}
		rows[i] = row
	}
	return rows
}

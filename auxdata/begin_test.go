package auxdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBegin(t *testing.T) {
	paris := time.FixedZone("CEST", 2*3600)

	tests := []struct {
		name    string
		file    string
		format  string
		tz      *time.Location
		want    time.Time
		wantErr bool
	}{
		{
			name:   "embedded in name",
			file:   "sensor_230101_120000.csv",
			format: "%y%m%d_%H%M%S",
			want:   time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			name:   "localized",
			file:   "2023-07-01T08-30-00.nc",
			format: "%Y-%m-%dT%H-%M-%S",
			tz:     paris,
			want:   time.Date(2023, 7, 1, 8, 30, 0, 0, paris),
		},
		{
			name:   "converted",
			file:   "log_20230701083000+0000.csv",
			format: "%Y%m%d%H%M%S%z",
			tz:     paris,
			want:   time.Date(2023, 7, 1, 10, 30, 0, 0, paris),
		},
		{
			name:    "no match",
			file:    "sensor.csv",
			format:  "%y%m%d_%H%M%S",
			wantErr: true,
		},
		{
			name:    "unsupported directive",
			file:    "sensor_2023.csv",
			format:  "%Q",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBegin(tt.file, tt.format, tt.tz)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v, want %v", got, tt.want)
			if tt.tz != nil {
				assert.Equal(t, tt.tz.String(), got.Location().String())
			}
		})
	}
}

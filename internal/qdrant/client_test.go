package qdrant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQdrantAddress(t *testing.T) {
	tests := []struct {
		raw      string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{"", "localhost", 6334, false},
		{"   ", "localhost", 6334, false},
		{"qdrant.internal", "qdrant.internal", 6334, false},
		{"qdrant.internal:7000", "qdrant.internal", 7000, false},
		{"http://qdrant.internal:6334", "qdrant.internal", 6334, false},
		{"https://cloud.example.com", "cloud.example.com", 6334, false},
		{":6400", "localhost", 6400, false},
		{"host:notaport", "", 0, true},
	}
	for _, tt := range tests {
		host, port, err := parseQdrantAddress(tt.raw)
		if tt.wantErr {
			assert.Error(t, err, tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.wantHost, host, tt.raw)
		assert.Equal(t, tt.wantPort, port, tt.raw)
	}
}

func TestPayloadConversion(t *testing.T) {
	in := map[string]interface{}{
		"file_path":   "/src/app.py",
		"entry_count": 2,
		"entries":     []string{"class App:", "    def run():"},
		"ratio":       0.5,
		"ok":          true,
	}

	out := PayloadToMap(MapToPayload(in))

	assert.Equal(t, "/src/app.py", out["file_path"])
	assert.Equal(t, int64(2), out["entry_count"])
	assert.Equal(t, []interface{}{"class App:", "    def run():"}, out["entries"])
	assert.Equal(t, 0.5, out["ratio"])
	assert.Equal(t, true, out["ok"])
}

func TestValueToInterfaceNil(t *testing.T) {
	assert.Nil(t, valueToInterface(nil))
}

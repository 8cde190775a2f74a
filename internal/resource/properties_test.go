package resource

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPropertiesGetters(t *testing.T) {
	p := Properties{
		"name":    "vol-a",
		"size":    float64(1024),
		"num":     json.Number("7"),
		"text":    "42",
		"thin":    true,
		"pool":    map[string]any{"id": "pool_1", "raidType": float64(1)},
		"hosts":   []any{map[string]any{"id": "Host_1"}, "junk", map[string]any{"id": "Host_2"}},
		"typed":   []map[string]any{{"id": "a"}},
		"nothing": nil,
	}

	t.Run("string", func(t *testing.T) {
		assert.Equal(t, "vol-a", p.String("name"))
		assert.Equal(t, "1024", p.String("size"))
		assert.Equal(t, "pool_1", p.String("pool.id"))
		assert.Equal(t, "", p.String("missing"))
		assert.Equal(t, "", p.String("nothing"))
		assert.Equal(t, "", p.String("name.deeper"))
	})

	t.Run("int", func(t *testing.T) {
		tests := []struct {
			path   string
			want   int64
			wantOK bool
		}{
			{"size", 1024, true},
			{"num", 7, true},
			{"text", 42, true},
			{"pool.raidType", 1, true},
			{"name", 0, false},
			{"missing", 0, false},
		}
		for _, tt := range tests {
			got, ok := p.Int(tt.path)
			assert.Equal(t, tt.wantOK, ok, tt.path)
			assert.Equal(t, tt.want, got, tt.path)
		}
	})

	t.Run("bool", func(t *testing.T) {
		assert.True(t, p.Bool("thin"))
		assert.False(t, p.Bool("name"))
		assert.False(t, p.Bool("missing"))
	})

	t.Run("objects", func(t *testing.T) {
		pool, ok := p.Object("pool")
		assert.True(t, ok)
		assert.Equal(t, "pool_1", pool.String("id"))

		assert.Equal(t, []string{"Host_1", "Host_2"}, p.RefIDs("hosts"))
		assert.Equal(t, []string{"a"}, p.RefIDs("typed"))
		assert.Equal(t, "pool_1", p.RefID("pool"))
		assert.Nil(t, p.Objects("missing"))
	})
}

package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueText(t *testing.T) {
	assert.Equal(t, "3", Number(3).Text())
	assert.Equal(t, "2.5", Number(2.5).Text())
	assert.Equal(t, "2024-01-15", Date(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)).Text())
	assert.Equal(t, "2024-01-15T10:30:00Z", Date(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)).Text())
	assert.Equal(t, "", Null().Text())
	assert.Equal(t, "true", ValueOf(true).Text())
	assert.Equal(t, KindNumber, ValueOf(42).Kind())
}

func TestValueIsBlank(t *testing.T) {
	assert.True(t, Null().IsBlank())
	assert.True(t, String("   ").IsBlank())
	assert.True(t, String("NULL").IsBlank())
	assert.False(t, String("x").IsBlank())
	assert.False(t, Number(0).IsBlank())
}

func TestRecordJSON(t *testing.T) {
	data := []byte(`{
		"recordId": "r-1",
		"objectType": "contact",
		"fields": [
			{"name": "email", "value": "jane@example.com"},
			{"name": "age", "value": 42},
			{"name": "vip", "value": true},
			{"name": "notes", "value": null}
		]
	}`)

	var r Record
	require.NoError(t, json.Unmarshal(data, &r))
	assert.Equal(t, "r-1", r.RecordID)
	require.Len(t, r.Fields, 4)

	age, ok := r.Get("age")
	require.True(t, ok)
	assert.Equal(t, KindNumber, age.Kind())
	assert.Equal(t, "42", age.Text())

	vip, _ := r.Get("vip")
	assert.Equal(t, "true", vip.Text())

	notes, ok := r.Get("notes")
	assert.True(t, ok)
	assert.True(t, notes.IsNull())

	_, ok = r.Get("missing")
	assert.False(t, ok)

	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(out), `{"name":"age","value":42}`)
	assert.Contains(t, string(out), `{"name":"notes","value":null}`)

	var bad Record
	assert.Error(t, json.Unmarshal([]byte(`{"fields":[{"name":"x","value":{"nested":1}}]}`), &bad))
}

func TestNewRecordPreservesOrder(t *testing.T) {
	r := NewRecord("r", "b", "2", "a", 1, "c", nil)
	names := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"b", "a", "c"}, names)
	assert.Len(t, r.FieldMap(), 3)
}

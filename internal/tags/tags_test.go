package tags

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	testCases := []struct {
		name     string
		input    []string
		expected []string
	}{
		{"sorts and lowercases", []string{"B", "a"}, []string{"a", "b"}},
		{"trims whitespace", []string{"  go ", "\tweb"}, []string{"go", "web"}},
		{"drops empties", []string{"", "  ", "ai"}, []string{"ai"}},
		{"keeps duplicates", []string{"a", "A", "b"}, []string{"a", "a", "b"}},
		{"empty input", []string{}, []string{}},
		{"nil input", nil, []string{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Normalize(tc.input))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	once := Normalize([]string{"Beta", "ALPHA", " gamma "})
	twice := Normalize(once)
	assert.Equal(t, once, twice)
}

func TestNormalizeOrderInsensitive(t *testing.T) {
	a := Normalize([]string{"B", "a", "a"})
	b := NormalizeString("a,B,a")
	assert.Equal(t, a, b)
	assert.Equal(t, "a|a|b", Key(a))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "", Key(nil))
	assert.Equal(t, "", Key([]string{}))
	assert.Equal(t, "alpha|beta", Key([]string{"alpha", "beta"}))
}

func TestSplitRoundTrip(t *testing.T) {
	normalized := Normalize([]string{"web", "go", "ai"})
	assert.Equal(t, normalized, Split(Key(normalized)))
	assert.Equal(t, []string{}, Split(""))
}

func TestListUnmarshalArray(t *testing.T) {
	var l List
	require.NoError(t, json.Unmarshal([]byte(`["Go"," Web "]`), &l))
	assert.Equal(t, []string{"go", "web"}, l.Normalized())
}

func TestListUnmarshalCommaString(t *testing.T) {
	var l List
	require.NoError(t, json.Unmarshal([]byte(`"go, web,AI"`), &l))
	assert.Equal(t, []string{"ai", "go", "web"}, l.Normalized())
}

func TestListUnmarshalInvalid(t *testing.T) {
	var l List
	assert.Error(t, json.Unmarshal([]byte(`42`), &l))
}

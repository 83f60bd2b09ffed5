package iojson

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func TestWriteLine(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLine(&buf, sample{Key: "a", Value: "1"}))
	require.NoError(t, WriteLine(&buf, sample{Key: "b", Value: "2"}))

	assert.Equal(t, "{\"key\":\"a\",\"value\":\"1\"}\n{\"key\":\"b\",\"value\":\"2\"}\n", buf.String())
}

func TestWriteWith_MarshalFailure(t *testing.T) {
	var out, errOut bytes.Buffer

	err := WriteWith(&out, &errOut, map[string]any{"bad": make(chan int)})
	require.Error(t, err)
	assert.Empty(t, out.String())

	var decoded Error
	require.NoError(t, json.Unmarshal(errOut.Bytes(), &decoded))
	assert.Contains(t, decoded.Message, "error marshaling")
}

func TestWriteErrorTo(t *testing.T) {
	var buf bytes.Buffer
	want := errors.New("import failed")

	got := WriteErrorTo(&buf, want, map[string]any{"failed": 2})
	assert.Equal(t, want, got)

	var decoded Error
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "import failed", decoded.Message)
	assert.EqualValues(t, 2, decoded.Data["failed"])
}

func TestFileReader_Stdin(t *testing.T) {
	fr := &FileReader[sample]{Stdin: strings.NewReader(`{"key":"a","value":"1"}`)}

	got, err := fr.Read()
	require.NoError(t, err)
	assert.Equal(t, sample{Key: "a", Value: "1"}, got)
}

func TestFileReader_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"key":"f","value":"2"}`), 0o644))

	fr := &FileReader[sample]{}
	fr.SetFile(path)

	got, err := fr.Read()
	require.NoError(t, err)
	assert.Equal(t, "f", got.Key)
}

func TestFileReader_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: "empty input"},
		{name: "malformed", input: "{", want: "decode JSON"},
		{name: "unknown field", input: `{"key":"a","extra":1}`, want: "unknown field"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fr := &FileReader[sample]{Stdin: strings.NewReader(tt.input)}
			_, err := fr.Read()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFileReader_MissingFile(t *testing.T) {
	fr := &FileReader[sample]{}
	fr.SetFile(filepath.Join(t.TempDir(), "nope.json"))

	_, err := fr.Read()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open file")
}

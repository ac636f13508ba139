package store

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDocument(t *testing.T) {
	tests := []struct {
		Name    string
		Input   string
		Want    Document
		WantErr bool
	}{
		{Name: "empty object", Input: `{}`, Want: Document{}},
		{Name: "numbers kept as json.Number", Input: `{"n": 1700000000123}`, Want: Document{"n": json.Number("1700000000123")}},
		{Name: "surrounding whitespace", Input: "\n {\"a\": null}\n", Want: Document{"a": nil}},
		{Name: "empty input", Input: ``, WantErr: true},
		{Name: "array", Input: `[]`, WantErr: true},
		{Name: "null", Input: `null`, WantErr: true},
		{Name: "truncated", Input: `{"Users": {`, WantErr: true},
		{Name: "trailing data", Input: `{}{}`, WantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			doc, err := DecodeDocument([]byte(tt.Input))
			if tt.WantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrCorruptData))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.Want, doc)
		})
	}
}

func TestDocument_LookupPutRemove(t *testing.T) {
	doc := Document{}

	require.Error(t, doc.Put(nil, "x"))
	require.NoError(t, doc.Put([]string{"Users", "1", "Username"}, "1"))
	require.NoError(t, doc.Put([]string{"Options"}, Document{"UsernameAttributes": []string{"email"}}))

	v, ok := doc.Lookup("Users", "1", "Username")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	// Document values nested by callers are traversed too
	v, ok = doc.Lookup("Options", "UsernameAttributes")
	assert.True(t, ok)
	assert.Equal(t, []string{"email"}, v)

	_, ok = doc.Lookup("Users", "1", "Username", "deeper")
	assert.False(t, ok)

	root, ok := doc.Lookup()
	assert.True(t, ok)
	assert.Equal(t, doc, root)

	assert.False(t, doc.Remove())
	assert.False(t, doc.Remove("Users", "2"))
	assert.False(t, doc.Remove("Nope", "1"))
	assert.True(t, doc.Remove("Users", "1"))

	v, ok = doc.Lookup("Users")
	assert.True(t, ok)
	assert.Equal(t, map[string]interface{}{}, v)
}

func TestToDocument(t *testing.T) {
	type options struct {
		UsernameAttributes []string
	}

	doc, err := ToDocument(struct {
		Options options
		Users   map[string]interface{}
	}{Options: options{UsernameAttributes: []string{}}, Users: map[string]interface{}{}})
	require.NoError(t, err)
	assert.Equal(t, Document{
		"Options": map[string]interface{}{"UsernameAttributes": []interface{}{}},
		"Users":   map[string]interface{}{},
	}, doc)

	_, err = ToDocument([]int{1})
	assert.Error(t, err)
	_, err = ToDocument(nil)
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	var out struct {
		Username       string
		UserCreateDate int64
	}
	err := Decode(map[string]interface{}{
		"Username":       "1",
		"UserCreateDate": json.Number("1700000000123"),
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "1", out.Username)
	assert.Equal(t, int64(1700000000123), out.UserCreateDate)

	assert.Error(t, Decode("not an object", &out))
}

func TestEncodeDocument(t *testing.T) {
	data, err := EncodeDocument(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(data))

	data, err = EncodeDocument(Document{"b": 1, "a": []string{}})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": [],\n  \"b\": 1\n}\n", string(data))
}

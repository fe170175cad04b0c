// Package jsonflat loads JSON documents and flattens nested objects into
// dotted-path records. Documents are gjson values, so object members are
// walked in document order and numbers keep their literal text.
package jsonflat

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/tidwall/gjson"

	"github.com/IshaanNene/WoWHarvest/internal/types"
)

var errInvalidJSON = errors.New("invalid JSON")

// Decode validates data as a single JSON value and returns it.
func Decode(data []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, errInvalidJSON
	}
	return gjson.ParseBytes(data), nil
}

// LoadFile reads and decodes the JSON document at path.
func LoadFile(path string) (gjson.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return gjson.Result{}, &types.NotFoundError{Path: path, Err: err}
		}
		return gjson.Result{}, fmt.Errorf("read %s: %w", path, err)
	}
	v, err := Decode(data)
	if err != nil {
		return gjson.Result{}, &types.MalformedInputError{Source: path, Reason: err.Error(), Err: err}
	}
	return v, nil
}

// IsNull reports whether v is absent or JSON null.
func IsNull(v gjson.Result) bool {
	return !v.Exists() || v.Type == gjson.Null
}

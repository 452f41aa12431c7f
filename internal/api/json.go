package api

import (
	"encoding/json"
	"errors"
	"io"
)

var errExtraJSON = errors.New("unexpected extra JSON data")

// decodeJSON decodes exactly one JSON value from r.
func decodeJSON(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errExtraJSON
	}
	return nil
}

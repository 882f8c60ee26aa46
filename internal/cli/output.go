package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	formatJSON    = "json"
	formatYAML    = "yaml"
	formatMsgpack = "msgpack"
)

type encodeFunc func(w io.Writer, v any) error

func encoderFor(format string) (encodeFunc, error) {
	switch format {
	case formatJSON:
		return encodeJSON, nil
	case formatYAML:
		return encodeYAML, nil
	case formatMsgpack:
		return encodeMsgpack, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (json|yaml|msgpack)", format)
	}
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func encodeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func encodeMsgpack(w io.Writer, v any) error {
	return msgpack.NewEncoder(w).Encode(v)
}

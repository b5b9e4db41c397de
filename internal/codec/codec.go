// Package codec decodes MONARC export documents into generic values and
// encodes assembled documents back to JSON.
package codec

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Object is a decoded JSON object.
type Object = map[string]interface{}

// List is a decoded JSON array.
type List = []interface{}

// ErrNotObject is returned when a document root is not a JSON object.
var ErrNotObject = errors.New("document root is not an object")

// Decode parses a single JSON value. Numbers are kept as json.Number.
func Decode(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("failed to decode document: trailing data after value")
	}
	return v, nil
}

// DecodeObject parses a document whose root must be an object.
func DecodeObject(data []byte) (Object, error) {
	v, err := Decode(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(Object)
	if !ok {
		return nil, ErrNotObject
	}
	return obj, nil
}

// Encode serializes v without HTML escaping and without a trailing newline.
func Encode(v interface{}) ([]byte, error) {
	return encode(v, "")
}

// EncodeIndent is Encode with indentation.
func EncodeIndent(v interface{}, indent string) ([]byte, error) {
	return encode(v, indent)
}

func encode(v interface{}, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Fingerprint returns a content hash of a decoded value. Map keys are
// serialized in sorted order so equal content hashes equally.
func Fingerprint(v interface{}) string {
	data, err := Encode(v)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

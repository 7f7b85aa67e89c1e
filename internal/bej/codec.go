// Package bej translates between JSON and BEJ (Binary Encoded JSON, DMTF
// DSP0218), the compact property encoding RDE operations carry on the
// wire. Encoding/decoding is driven by two dictionaries: the resource's
// major schema dictionary (property names to sequence numbers) and a
// shared annotation dictionary (for Redfish "@odata.*"-style properties
// that don't belong to any one schema).
package bej

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Codec implements internal/rde's BEJCodec interface.
type Codec struct{}

// NewCodec constructs a stateless BEJ<->JSON codec.
func NewCodec() *Codec { return &Codec{} }

// EncodeJSONToBEJ parses payload as a JSON object and encodes it as a BEJ
// Set tuple against schemaDict, falling back to annotationDict for
// properties the schema dictionary doesn't define.
func (c *Codec) EncodeJSONToBEJ(schemaDict, annotationDict []byte, payload string) ([]byte, error) {
	schema, err := Parse(schemaDict)
	if err != nil {
		return nil, fmt.Errorf("bej: parsing schema dictionary: %w", err)
	}
	annotation, err := Parse(annotationDict)
	if err != nil {
		return nil, fmt.Errorf("bej: parsing annotation dictionary: %w", err)
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(payload), &obj); err != nil {
		return nil, fmt.Errorf("bej: payload is not a JSON object: %w", err)
	}
	return encodeSet(schema, annotation, obj)
}

// DecodeBEJToJSON decodes a BEJ-encoded Set tuple into a JSON object
// string, resolving property names against schemaDict and
// annotationDict.
func (c *Codec) DecodeBEJToJSON(schemaDict, annotationDict []byte, payload []byte) (string, error) {
	schema, err := Parse(schemaDict)
	if err != nil {
		return "", fmt.Errorf("bej: parsing schema dictionary: %w", err)
	}
	annotation, err := Parse(annotationDict)
	if err != nil {
		return "", fmt.Errorf("bej: parsing annotation dictionary: %w", err)
	}

	obj, _, err := decodeSet(schema, annotation, payload)
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(obj)
	if err != nil {
		return "", fmt.Errorf("bej: marshaling decoded object: %w", err)
	}
	return string(out), nil
}

// lookup resolves a property name against the schema dictionary first,
// falling back to the annotation dictionary for names the schema doesn't
// define (the shared "@odata.*" properties).
func lookup(schema, annotation *Dictionary, name string) (Entry, bool) {
	if e, ok := schema.ByName(name); ok {
		return e, true
	}
	return annotation.ByName(name)
}

func encodeSet(schema, annotation *Dictionary, obj map[string]any) ([]byte, error) {
	names := make([]string, 0, len(obj))
	for k := range obj {
		names = append(names, k)
	}
	sort.Strings(names)

	var tuples []byte
	for _, name := range names {
		entry, ok := lookup(schema, annotation, name)
		if !ok {
			return nil, fmt.Errorf("bej: property %q not found in schema or annotation dictionary", name)
		}
		tuple, err := encodeValue(schema, annotation, entry, obj[name])
		if err != nil {
			return nil, fmt.Errorf("bej: encoding property %q: %w", name, err)
		}
		tuples = append(tuples, tuple...)
	}

	var out []byte
	out = append(out, encodeNNInt(uint64(len(names)))...)
	out = append(out, tuples...)
	return out, nil
}

func encodeValue(schema, annotation *Dictionary, entry Entry, v any) ([]byte, error) {
	var value []byte
	var err error

	switch entry.Format {
	case FormatSet:
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected object for set property")
		}
		value, err = encodeSet(schema, annotation, obj)
	case FormatArray:
		arr, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("expected array for array property")
		}
		value, err = encodeArray(schema, annotation, entry, arr)
	case FormatString, FormatEnum:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string value")
		}
		value = []byte(s)
	case FormatInteger:
		n, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("expected numeric value")
		}
		value = encodeSignedInt(int64(n))
	case FormatReal:
		n, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("expected numeric value")
		}
		value = []byte(strconv.FormatFloat(n, 'g', -1, 64))
	case FormatBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected boolean value")
		}
		if b {
			value = []byte{1}
		} else {
			value = []byte{0}
		}
	case FormatNull:
		value = nil
	default:
		return nil, fmt.Errorf("unsupported bej format %d", entry.Format)
	}
	if err != nil {
		return nil, err
	}

	var tuple []byte
	tuple = append(tuple, encodeNNInt(uint64(entry.SequenceNumber))...)
	tuple = append(tuple, byte(entry.Format)<<4)
	tuple = append(tuple, encodeNNInt(uint64(len(value)))...)
	tuple = append(tuple, value...)
	return tuple, nil
}

func encodeArray(schema, annotation *Dictionary, entry Entry, arr []any) ([]byte, error) {
	children := schema.Children(entry)
	if len(children) == 0 {
		children = annotation.Children(entry)
	}
	if len(children) == 0 {
		return nil, fmt.Errorf("array entry %q has no element template", entry.Name)
	}
	elemEntry := children[0]

	var out []byte
	out = append(out, encodeNNInt(uint64(len(arr)))...)
	for _, v := range arr {
		tuple, err := encodeValue(schema, annotation, elemEntry, v)
		if err != nil {
			return nil, err
		}
		out = append(out, tuple...)
	}
	return out, nil
}

// encodeSignedInt stores n as a leading sign byte (0 positive, 1
// negative) followed by the minimal little-endian magnitude, avoiding
// any ambiguity between a magnitude byte and a sign marker.
func encodeSignedInt(n int64) []byte {
	u := uint64(n)
	sign := byte(0)
	if n < 0 {
		u = uint64(-n)
		sign = 1
	}
	var magnitude []byte
	for u > 0 || len(magnitude) == 0 {
		magnitude = append(magnitude, byte(u))
		u >>= 8
	}
	return append([]byte{sign}, magnitude...)
}

func decodeSignedInt(b []byte) int64 {
	if len(b) < 1 {
		return 0
	}
	negative := b[0] == 1
	var v int64
	for i := len(b) - 1; i >= 1; i-- {
		v = v<<8 | int64(b[i])
	}
	if negative {
		v = -v
	}
	return v
}

func decodeSet(schema, annotation *Dictionary, data []byte) (map[string]any, int, error) {
	count, n, err := decodeNNInt(data)
	if err != nil {
		return nil, 0, fmt.Errorf("bej: decoding set property count: %w", err)
	}
	offset := n
	obj := make(map[string]any, count)
	for i := uint64(0); i < count; i++ {
		seq, format, value, consumed, err := decodeTuple(data[offset:])
		if err != nil {
			return nil, 0, err
		}
		offset += consumed

		entry, ok := schema.BySequenceNumber(seq)
		if !ok {
			entry, ok = annotation.BySequenceNumber(seq)
		}
		if !ok {
			return nil, 0, fmt.Errorf("bej: sequence number %d not found in either dictionary", seq)
		}

		decoded, err := decodeValue(schema, annotation, entry, format, value)
		if err != nil {
			return nil, 0, fmt.Errorf("bej: decoding property %q: %w", entry.Name, err)
		}
		obj[entry.Name] = decoded
	}
	return obj, offset, nil
}

func decodeTuple(data []byte) (seq uint16, format Format, value []byte, consumed int, err error) {
	seqVal, n1, err := decodeNNInt(data)
	if err != nil {
		return 0, 0, nil, 0, fmt.Errorf("bej: decoding tuple sequence number: %w", err)
	}
	offset := n1
	if offset >= len(data) {
		return 0, 0, nil, 0, fmt.Errorf("bej: truncated tuple format byte")
	}
	format = Format(data[offset] >> 4)
	offset++

	length, n2, err := decodeNNInt(data[offset:])
	if err != nil {
		return 0, 0, nil, 0, fmt.Errorf("bej: decoding tuple length: %w", err)
	}
	offset += n2
	if uint64(len(data)-offset) < length {
		return 0, 0, nil, 0, fmt.Errorf("bej: truncated tuple value (want %d, have %d)", length, len(data)-offset)
	}
	value = data[offset : offset+int(length)]
	offset += int(length)
	return uint16(seqVal), format, value, offset, nil
}

func decodeValue(schema, annotation *Dictionary, entry Entry, format Format, value []byte) (any, error) {
	switch format {
	case FormatSet:
		obj, _, err := decodeSet(schema, annotation, value)
		return obj, err
	case FormatArray:
		return decodeArray(schema, annotation, entry, value)
	case FormatString, FormatEnum:
		return string(value), nil
	case FormatInteger:
		return float64(decodeSignedInt(value)), nil
	case FormatReal:
		f, err := strconv.ParseFloat(string(value), 64)
		if err != nil {
			return nil, fmt.Errorf("decoding real value: %w", err)
		}
		return f, nil
	case FormatBoolean:
		return len(value) > 0 && value[0] != 0, nil
	case FormatNull:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported bej format %d", format)
	}
}

func decodeArray(schema, annotation *Dictionary, entry Entry, data []byte) ([]any, error) {
	children := schema.Children(entry)
	if len(children) == 0 {
		children = annotation.Children(entry)
	}
	if len(children) == 0 {
		return nil, fmt.Errorf("array entry %q has no element template", entry.Name)
	}
	elemEntry := children[0]

	count, n, err := decodeNNInt(data)
	if err != nil {
		return nil, fmt.Errorf("decoding array element count: %w", err)
	}
	offset := n
	out := make([]any, 0, count)
	for i := uint64(0); i < count; i++ {
		_, format, value, consumed, err := decodeTuple(data[offset:])
		if err != nil {
			return nil, err
		}
		offset += consumed
		decoded, err := decodeValue(schema, annotation, elemEntry, format, value)
		if err != nil {
			return nil, err
		}
		out = append(out, decoded)
	}
	return out, nil
}

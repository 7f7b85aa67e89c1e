package bej

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func emptyDict() []byte {
	return (&dictBuilder{}).build()
}

func TestCodecRoundTripsFlatObject(t *testing.T) {
	b := &dictBuilder{}
	b.add(Entry{Format: FormatString, SequenceNumber: 1, Name: "Id"})
	b.add(Entry{Format: FormatString, SequenceNumber: 2, Name: "Name"})
	schema := b.build()

	c := NewCodec()
	encoded, err := c.EncodeJSONToBEJ(schema, emptyDict(), `{"Id":"1","Name":"Chassis 1"}`)
	require.NoError(t, err)

	decoded, err := c.DecodeBEJToJSON(schema, emptyDict(), encoded)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(decoded), &got))
	require.Equal(t, "1", got["Id"])
	require.Equal(t, "Chassis 1", got["Name"])
}

func TestCodecRoundTripsNestedSetAndArray(t *testing.T) {
	b := &dictBuilder{}
	statusIdx := b.add(Entry{Format: FormatString, SequenceNumber: 20, Name: "State"})
	statusSetIdx := b.add(Entry{Format: FormatSet, SequenceNumber: 10, Name: "Status", ChildOffset: uint16(statusIdx), ChildCount: 1})
	elemIdx := b.add(Entry{Format: FormatInteger, SequenceNumber: 30, Name: "elem"})
	b.add(Entry{Format: FormatArray, SequenceNumber: 11, Name: "Voltages", ChildOffset: uint16(elemIdx), ChildCount: 1})
	_ = statusSetIdx
	schema := b.build()

	c := NewCodec()
	payload := `{"Status":{"State":"Enabled"},"Voltages":[12,24,48]}`
	encoded, err := c.EncodeJSONToBEJ(schema, emptyDict(), payload)
	require.NoError(t, err)

	decoded, err := c.DecodeBEJToJSON(schema, emptyDict(), encoded)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(decoded), &got))
	status := got["Status"].(map[string]any)
	require.Equal(t, "Enabled", status["State"])
	voltages := got["Voltages"].([]any)
	require.Equal(t, []any{12.0, 24.0, 48.0}, voltages)
}

func TestCodecFallsBackToAnnotationDictionary(t *testing.T) {
	schemaB := &dictBuilder{}
	schemaB.add(Entry{Format: FormatString, SequenceNumber: 1, Name: "Id"})
	schema := schemaB.build()

	annotationB := &dictBuilder{}
	annotationB.add(Entry{Format: FormatString, SequenceNumber: 100, Name: "@odata.type"})
	annotation := annotationB.build()

	c := NewCodec()
	encoded, err := c.EncodeJSONToBEJ(schema, annotation, `{"Id":"1","@odata.type":"#Chassis.v1_0_0.Chassis"}`)
	require.NoError(t, err)

	decoded, err := c.DecodeBEJToJSON(schema, annotation, encoded)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(decoded), &got))
	require.Equal(t, "#Chassis.v1_0_0.Chassis", got["@odata.type"])
}

func TestCodecEncodeUnknownPropertyFails(t *testing.T) {
	c := NewCodec()
	_, err := c.EncodeJSONToBEJ(emptyDict(), emptyDict(), `{"Unknown":"x"}`)
	require.Error(t, err)
}

func TestCodecRoundTripsBooleanAndNegativeInteger(t *testing.T) {
	b := &dictBuilder{}
	b.add(Entry{Format: FormatBoolean, SequenceNumber: 1, Name: "PowerOn"})
	b.add(Entry{Format: FormatInteger, SequenceNumber: 2, Name: "Offset"})
	schema := b.build()

	c := NewCodec()
	encoded, err := c.EncodeJSONToBEJ(schema, emptyDict(), `{"PowerOn":true,"Offset":-42}`)
	require.NoError(t, err)

	decoded, err := c.DecodeBEJToJSON(schema, emptyDict(), encoded)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(decoded), &got))
	require.Equal(t, true, got["PowerOn"])
	require.Equal(t, -42.0, got["Offset"])
}

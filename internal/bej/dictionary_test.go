package bej

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// dictBuilder assembles a binary dictionary for tests: a fixed-size entry
// table plus an appended string table, matching the layout Parse expects.
type dictBuilder struct {
	entries []Entry
	names   []string
}

func (b *dictBuilder) add(e Entry) int {
	b.entries = append(b.entries, e)
	b.names = append(b.names, e.Name)
	return len(b.entries) - 1
}

func (b *dictBuilder) build() []byte {
	var strs []byte
	offsets := make([]int, len(b.names))
	for i, name := range b.names {
		offsets[i] = len(strs)
		strs = append(strs, []byte(name)...)
	}

	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(b.entries)))
	for i, e := range b.entries {
		rec := make([]byte, entryRecordSize)
		rec[0] = byte(e.Format)
		binary.LittleEndian.PutUint16(rec[1:3], e.SequenceNumber)
		binary.LittleEndian.PutUint16(rec[3:5], e.ChildOffset)
		binary.LittleEndian.PutUint16(rec[5:7], e.ChildCount)
		rec[7] = byte(len(b.names[i]))
		binary.LittleEndian.PutUint16(rec[8:10], uint16(offsets[i]))
		out = append(out, rec...)
	}
	out = append(out, strs...)
	return out
}

func TestDictionaryParseRoundTripsNamesAndSequenceNumbers(t *testing.T) {
	b := &dictBuilder{}
	b.add(Entry{Format: FormatString, SequenceNumber: 1, Name: "Id"})
	b.add(Entry{Format: FormatString, SequenceNumber: 2, Name: "Name"})

	dict, err := Parse(b.build())
	require.NoError(t, err)

	e, ok := dict.ByName("Name")
	require.True(t, ok)
	require.Equal(t, uint16(2), e.SequenceNumber)

	e2, ok := dict.BySequenceNumber(1)
	require.True(t, ok)
	require.Equal(t, "Id", e2.Name)
}

func TestDictionaryChildrenSliceForArray(t *testing.T) {
	b := &dictBuilder{}
	b.add(Entry{Format: FormatString, SequenceNumber: 10, Name: "element"})
	arrIdx := b.add(Entry{Format: FormatArray, SequenceNumber: 11, Name: "Items", ChildOffset: 0, ChildCount: 1})

	dict, err := Parse(b.build())
	require.NoError(t, err)

	children := dict.Children(dict.Entries[arrIdx])
	require.Len(t, children, 1)
	require.Equal(t, "element", children[0].Name)
}

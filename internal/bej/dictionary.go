package bej

import (
	"encoding/binary"
	"fmt"
)

// Format is the BEJ type tag a dictionary entry carries, one nibble of
// DSP0218's Format byte (the flags nibble is not modeled here since
// nothing in the operation workflow consults deferred-binding or
// read-only bits).
type Format uint8

const (
	FormatSet Format = iota
	FormatArray
	FormatNull
	FormatInteger
	FormatEnum
	FormatString
	FormatReal
	FormatBoolean
)

// Entry is one row of a parsed schema dictionary: a property's sequence
// number (its identity on the wire), its BEJ type, and the span of child
// entries for Set/Array types.
type Entry struct {
	Format         Format
	SequenceNumber uint16
	ChildCount     uint16
	ChildOffset    uint16 // index into Dictionary.Entries of the first child
	Name           string
}

// Dictionary is a parsed schema or annotation dictionary: a flat entry
// table plus the name/sequence-number indexes a codec needs to translate
// between a JSON property name and its BEJ sequence number.
type Dictionary struct {
	Entries []Entry

	byName by
	bySeq  bySeqIndex
}

type by map[string]int
type bySeqIndex map[uint16]int

// entryRecordSize is the fixed per-entry record layout: format(1) +
// sequence number(2) + child offset(2) + child count(2) + name length(1)
// + name offset(2).
const entryRecordSize = 10

// Parse decodes a binary dictionary: a 4-byte entry count header followed
// by fixed-size entry records, followed by a string table the name
// offsets index into.
func Parse(data []byte) (*Dictionary, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("bej: dictionary too short for header")
	}
	count := binary.LittleEndian.Uint32(data[0:4])
	body := data[4:]
	need := int(count) * entryRecordSize
	if len(body) < need {
		return nil, fmt.Errorf("bej: dictionary truncated (want %d entry bytes, have %d)", need, len(body))
	}
	strs := body[need:]

	d := &Dictionary{
		Entries: make([]Entry, count),
		byName:  make(by, count),
		bySeq:   make(bySeqIndex, count),
	}
	for i := 0; i < int(count); i++ {
		rec := body[i*entryRecordSize : (i+1)*entryRecordSize]
		nameLen := int(rec[7])
		nameOff := int(binary.LittleEndian.Uint16(rec[8:10]))
		if nameOff+nameLen > len(strs) {
			return nil, fmt.Errorf("bej: entry %d name out of bounds", i)
		}
		e := Entry{
			Format:         Format(rec[0]),
			SequenceNumber: binary.LittleEndian.Uint16(rec[1:3]),
			ChildOffset:    binary.LittleEndian.Uint16(rec[3:5]),
			ChildCount:     binary.LittleEndian.Uint16(rec[5:7]),
			Name:           string(strs[nameOff : nameOff+nameLen]),
		}
		d.Entries[i] = e
		if e.Name != "" {
			d.byName[e.Name] = i
		}
		d.bySeq[e.SequenceNumber] = i
	}
	return d, nil
}

// ByName looks up a top-level or nested property's entry by name.
func (d *Dictionary) ByName(name string) (Entry, bool) {
	i, ok := d.byName[name]
	if !ok {
		return Entry{}, false
	}
	return d.Entries[i], true
}

// BySequenceNumber looks up an entry by its wire sequence number.
func (d *Dictionary) BySequenceNumber(seq uint16) (Entry, bool) {
	i, ok := d.bySeq[seq]
	if !ok {
		return Entry{}, false
	}
	return d.Entries[i], true
}

// Children returns the child entries of a Set/Array entry.
func (d *Dictionary) Children(e Entry) []Entry {
	if int(e.ChildOffset)+int(e.ChildCount) > len(d.Entries) {
		return nil
	}
	return d.Entries[e.ChildOffset : int(e.ChildOffset)+int(e.ChildCount)]
}

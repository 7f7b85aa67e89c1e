package platform

import (
	"fmt"

	"github.com/openbmc/pldm-sub002/internal/rde"
	"github.com/openbmc/pldm-sub002/internal/terminus"
)

// PDRTypeRedfishResource is the vendor-defined OEM PDR type a Platform
// terminus uses to advertise the Redfish resources an RDE session can
// enumerate. DSP0248 reserves the OEM range for this; the byte layout
// below is not published by any retrieved source, so it is sized to
// exactly what the resource registry needs: resource id, containing
// (parent) id, schema class, schema name/version, containing name, and
// a supported-operations bitmask.
const PDRTypeRedfishResource PDRType = 0xf0

// Bits in a Redfish Resource PDR's operations byte, LSB first:
// Read, Update, Create, Delete.
const (
	opBitRead uint8 = 1 << iota
	opBitUpdate
	opBitCreate
	opBitDelete
)

// RedfishResourcePDREntries scans term's raw (unrecognized-by-parseRecord)
// PDR records for Redfish Resource PDRs and decodes them into
// rde.ResourcePDREntry, ready to hand to rde.Discover.
func RedfishResourcePDREntries(term *terminus.Terminus) ([]rde.ResourcePDREntry, error) {
	var entries []rde.ResourcePDREntry
	for handle, data := range term.RawPDRs {
		hdr, body, err := decodePDRCommonHeader(data)
		if err != nil {
			continue
		}
		if PDRType(hdr.pdrType) != PDRTypeRedfishResource {
			continue
		}
		entry, err := parseRedfishResourcePDR(body)
		if err != nil {
			return nil, fmt.Errorf("platform: record handle %d: %w", handle, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func parseRedfishResourcePDR(body []byte) (rde.ResourcePDREntry, error) {
	var e rde.ResourcePDREntry
	r := byteReader{buf: body}

	resourceID, err := r.uint32()
	if err != nil {
		return e, fmt.Errorf("resource id: %w", err)
	}
	containingID, err := r.uint32()
	if err != nil {
		return e, fmt.Errorf("containing id: %w", err)
	}
	class, err := r.byte()
	if err != nil {
		return e, fmt.Errorf("schema class: %w", err)
	}
	schemaName, err := r.lengthPrefixedString()
	if err != nil {
		return e, fmt.Errorf("schema name: %w", err)
	}
	schemaVersion, err := r.lengthPrefixedString()
	if err != nil {
		return e, fmt.Errorf("schema version: %w", err)
	}
	containingName, err := r.lengthPrefixedString()
	if err != nil {
		return e, fmt.Errorf("containing name: %w", err)
	}
	opBits, err := r.byte()
	if err != nil {
		return e, fmt.Errorf("operations: %w", err)
	}

	e.ResourceID = resourceID
	e.ContainingID = containingID
	e.SchemaClass = rde.SchemaClass(class)
	e.SchemaName = schemaName
	e.SchemaVersion = schemaVersion
	e.ContainingName = containingName
	e.Operations = decodeOperationBits(opBits)
	return e, nil
}

func decodeOperationBits(bits uint8) []rde.OperationType {
	var ops []rde.OperationType
	if bits&opBitRead != 0 {
		ops = append(ops, rde.OperationRead)
	}
	if bits&opBitUpdate != 0 {
		ops = append(ops, rde.OperationUpdate)
	}
	if bits&opBitCreate != 0 {
		ops = append(ops, rde.OperationCreate)
	}
	if bits&opBitDelete != 0 {
		ops = append(ops, rde.OperationDelete)
	}
	return ops
}

// byteReader is a minimal cursor over a PDR body, reading the
// fixed/length-prefixed fields parseRedfishResourcePDR needs.
type byteReader struct {
	buf []byte
	pos int
}

func (r *byteReader) uint32() (uint32, error) {
	if len(r.buf)-r.pos < 4 {
		return 0, fmt.Errorf("short read")
	}
	v := uint32(r.buf[r.pos]) | uint32(r.buf[r.pos+1])<<8 | uint32(r.buf[r.pos+2])<<16 | uint32(r.buf[r.pos+3])<<24
	r.pos += 4
	return v, nil
}

func (r *byteReader) byte() (uint8, error) {
	if len(r.buf)-r.pos < 1 {
		return 0, fmt.Errorf("short read")
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *byteReader) lengthPrefixedString() (string, error) {
	n, err := r.byte()
	if err != nil {
		return "", err
	}
	if len(r.buf)-r.pos < int(n) {
		return "", fmt.Errorf("short read")
	}
	s := string(r.buf[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

// Package sensor implements the typed numeric sensor/effecter entities
// the platform initializer materializes from NumericSensor/NumericEffecter
// PDRs, and their raw<->unit<->base value conversions.
//
// Grounded on original_source's
// platform-mc/effecters/numeric/effecter.{hpp,cpp}: rawToUnit/unitToRaw
// (unit = raw*resolution + offset), unitToBase/baseToUnit
// (base = unit * 10^unitModifier), with NaN resolution/offset treated as
// 1/0 respectively.
package sensor

import "math"

// DataSize tags the wire width/signedness of a PDR's raw numeric fields.
type DataSize uint8

const (
	DataSizeUint8 DataSize = iota
	DataSizeSint8
	DataSizeUint16
	DataSizeSint16
	DataSizeUint32
	DataSizeSint32
	DataSizeReal32
)

// NumericSensor is the materialized form of a NumericSensor PDR.
type NumericSensor struct {
	TID          uint8
	SensorID     uint16
	Name         string
	BaseUnit     uint8
	UnitModifier int8
	Resolution   float64
	Offset       float64
	DataSize     DataSize
}

// NumericEffecter is the materialized form of a NumericEffecter PDR.
type NumericEffecter struct {
	TID          uint8
	EffecterID   uint16
	Name         string
	BaseUnit     uint8
	UnitModifier int8
	Resolution   float64
	Offset       float64
	DataSize     DataSize
}

// resolveResolution treats NaN as the multiplicative identity, matching
// the original's std::isnan(resolution) ? 1 : resolution guard for PDRs
// that omit a resolution field.
func resolveResolution(resolution float64) float64 {
	if math.IsNaN(resolution) {
		return 1
	}
	return resolution
}

// resolveOffset treats NaN as the additive identity.
func resolveOffset(offset float64) float64 {
	if math.IsNaN(offset) {
		return 0
	}
	return offset
}

// RawToUnit converts a raw PDR-scaled reading into its engineering unit:
// unit = raw*resolution + offset.
func RawToUnit(raw, resolution, offset float64) float64 {
	return raw*resolveResolution(resolution) + resolveOffset(offset)
}

// UnitToRaw is RawToUnit's inverse: raw = (unit - offset) / resolution.
// Returns 0 if resolution is exactly zero (division would be undefined).
func UnitToRaw(unit, resolution, offset float64) float64 {
	r := resolveResolution(resolution)
	if r == 0 {
		return 0
	}
	return (unit - resolveOffset(offset)) / r
}

// UnitToBase converts an engineering-unit value to its base-unit value:
// base = unit * 10^unitModifier.
func UnitToBase(unit float64, unitModifier int8) float64 {
	return unit * math.Pow(10, float64(unitModifier))
}

// BaseToUnit is UnitToBase's inverse: unit = base * 10^(-unitModifier).
func BaseToUnit(base float64, unitModifier int8) float64 {
	return base * math.Pow(10, float64(-unitModifier))
}

// RawToUnit converts s's raw reading to engineering units using the
// sensor's own resolution/offset.
func (s *NumericSensor) RawToUnit(raw float64) float64 {
	return RawToUnit(raw, s.Resolution, s.Offset)
}

// RawToBase converts s's raw reading all the way to base units.
func (s *NumericSensor) RawToBase(raw float64) float64 {
	return UnitToBase(s.RawToUnit(raw), s.UnitModifier)
}

// RawToUnit converts e's raw reading to engineering units using the
// effecter's own resolution/offset.
func (e *NumericEffecter) RawToUnit(raw float64) float64 {
	return RawToUnit(raw, e.Resolution, e.Offset)
}

// UnitToRaw converts an engineering-unit set-point to a raw value for e.
func (e *NumericEffecter) UnitToRaw(unit float64) float64 {
	return UnitToRaw(unit, e.Resolution, e.Offset)
}

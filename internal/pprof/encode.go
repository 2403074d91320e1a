package pprof

import (
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	// message Profile
	tagProfileSampleType  = 1  // repeated ValueType
	tagProfileSample      = 2  // repeated Sample
	tagProfileLocation    = 4  // repeated Location
	tagProfileFunction    = 5  // repeated Function
	tagProfileStringTable = 6  // repeated string
	tagProfilePeriodType  = 11 // ValueType
	tagProfilePeriod      = 12 // int64

	// message ValueType
	tagValueTypeType = 1 // int64 (string table index)
	tagValueTypeUnit = 2 // int64 (string table index)

	// message Sample
	tagSampleLocation = 1 // repeated uint64
	tagSampleValue    = 2 // repeated int64
	tagSampleLabel    = 3 // repeated Label

	// message Label
	tagLabelKey = 1 // int64 (string table index)
	tagLabelStr = 2 // int64 (string table index)

	// message Location
	tagLocationID   = 1 // uint64
	tagLocationLine = 4 // repeated Line

	// message Line
	tagLineFunctionID = 1 // uint64

	// message Function
	tagFunctionID   = 1 // uint64
	tagFunctionName = 2 // int64 (string table index)
)

// Write encodes p to w, uncompressed.
func (p *Profile) Write(w io.Writer) error {
	_, err := w.Write(p.Marshal())
	return err
}

// Marshal encodes p. Fields are written in field number order and zero
// scalars are omitted.
func (p *Profile) Marshal() []byte {
	var b []byte
	for _, st := range p.SampleTypes {
		b = appendMessage(b, tagProfileSampleType, st.marshal(nil))
	}
	for _, s := range p.Samples {
		b = appendMessage(b, tagProfileSample, s.marshal(nil))
	}
	for _, l := range p.Locations {
		b = appendMessage(b, tagProfileLocation, l.marshal(nil))
	}
	for _, f := range p.Functions {
		b = appendMessage(b, tagProfileFunction, f.marshal(nil))
	}
	for _, s := range p.StringTable {
		b = protowire.AppendTag(b, tagProfileStringTable, protowire.BytesType)
		b = protowire.AppendString(b, s)
	}
	b = appendMessage(b, tagProfilePeriodType, p.PeriodType.marshal(nil))
	b = appendVarint(b, tagProfilePeriod, uint64(p.Period))
	return b
}

func (vt ValueType) marshal(b []byte) []byte {
	b = appendVarint(b, tagValueTypeType, uint64(vt.Type))
	b = appendVarint(b, tagValueTypeUnit, uint64(vt.Unit))
	return b
}

func (s Sample) marshal(b []byte) []byte {
	if len(s.LocationIDs) > 0 {
		var packed []byte
		for _, id := range s.LocationIDs {
			packed = protowire.AppendVarint(packed, id)
		}
		b = appendMessage(b, tagSampleLocation, packed)
	}
	if len(s.Values) > 0 {
		var packed []byte
		for _, v := range s.Values {
			packed = protowire.AppendVarint(packed, uint64(v))
		}
		b = appendMessage(b, tagSampleValue, packed)
	}
	for _, l := range s.Labels {
		b = appendMessage(b, tagSampleLabel, l.marshal(nil))
	}
	return b
}

func (l Label) marshal(b []byte) []byte {
	b = appendVarint(b, tagLabelKey, uint64(l.Key))
	b = appendVarint(b, tagLabelStr, uint64(l.Str))
	return b
}

func (l Location) marshal(b []byte) []byte {
	b = appendVarint(b, tagLocationID, l.ID)
	for _, line := range l.Lines {
		b = appendMessage(b, tagLocationLine, appendVarint(nil, tagLineFunctionID, line.FunctionID))
	}
	return b
}

func (f Function) marshal(b []byte) []byte {
	b = appendVarint(b, tagFunctionID, f.ID)
	b = appendVarint(b, tagFunctionName, uint64(f.Name))
	return b
}

// appendMessage writes a length delimited field, empty messages included.
func appendMessage(b []byte, num protowire.Number, m []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

package godb

// Field and tuple types (DBType, FieldType, TupleDesc, DBValue, Tuple) and
// the serialization/comparison/projection helpers the heap file and buffer
// pool layers build on.

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// DBType is the type of a tuple field: IntType or StringType.
type DBType int

const (
	IntType    DBType = iota
	StringType DBType = iota
	// UnknownType matches any type in findFieldInTd, for callers that know a
	// field's name but not its declared type.
	UnknownType DBType = iota
)

func (t DBType) String() string {
	switch t {
	case IntType:
		return "int"
	case StringType:
		return "string"
	}
	return "unknown"
}

// FieldType names one field of a tuple: its name, its DBType, and the
// table it came from. TableQualifier is empty when a field's table was
// never specified.
type FieldType struct {
	Fname          string
	TableQualifier string
	Ftype          DBType
}

// TupleDesc is a tuple's schema: an ordered list of its fields' names and
// types.
type TupleDesc struct {
	Fields []FieldType
}

// equals reports whether d1 and d2 have the same length and every field
// matches on name and type, in order.
func (d1 *TupleDesc) equals(d2 *TupleDesc) bool {
	if len(d1.Fields) != len(d2.Fields) {
		return false
	}
	for i := range d1.Fields {
		if d1.Fields[i].Fname != d2.Fields[i].Fname {
			return false
		}
		if d1.Fields[i].Ftype != d2.Fields[i].Ftype {
			return false
		}

	}
	return true

}

// findFieldInTd resolves field against desc, matching on name and type (an
// UnknownType field matches any type). A qualified field prefers a candidate
// with the same TableQualifier and otherwise resolves to the first
// name-and-type match; an unqualified field that matches more than one
// column is ambiguous.
func findFieldInTd(field FieldType, desc *TupleDesc) (int, error) {
	best := -1
	for i, f := range desc.Fields {
		if f.Fname == field.Fname && (f.Ftype == field.Ftype || field.Ftype == UnknownType) {
			if field.TableQualifier == "" && best != -1 {
				return 0, GoDBError{AmbiguousNameError, fmt.Sprintf("select name %s is ambiguous", f.Fname)}
			}
			if f.TableQualifier == field.TableQualifier || best == -1 {
				best = i
			}
		}
	}
	if best != -1 {
		return best, nil
	}
	return -1, GoDBError{IncompatibleTypesError, fmt.Sprintf("field %s.%s not found", field.TableQualifier, field.Fname)}

}

// copy returns a TupleDesc with its own backing Fields slice, so mutating
// the copy's fields never affects td.
func (td *TupleDesc) copy() *TupleDesc {
	fields := make([]FieldType, len(td.Fields))
	copy(fields, td.Fields)
	return &TupleDesc{Fields: fields}
}

// merge returns a new TupleDesc whose fields are desc's fields followed by
// desc2's, as produced by a join of the two descriptors' tuples.
func (desc *TupleDesc) merge(desc2 *TupleDesc) *TupleDesc {
	return &TupleDesc{Fields: append(desc.Fields, desc2.Fields...)}
}

// DBValue is a tuple field's value: either an IntField or a StringField.
type DBValue interface {
}

// IntField is an integer-valued field.
type IntField struct {
	Value int64
}

// StringField is a string-valued field.
type StringField struct {
	Value string
}

// Tuple is a row: its schema plus one value per field.
type Tuple struct {
	Desc   TupleDesc
	Fields []DBValue
	Rid    RecordID // the page and slot this tuple occupies, once inserted
}

// writeStringField writes strField to b as StringLength bytes, little
// endian, right-padded with zeros (e.g. with StringLength 5, "mit" is
// written as 'm', 'i', 't', 0, 0).
func writeStringField(b *bytes.Buffer, strField StringField) error {
	bytes := []byte(strField.Value)
	make_pad := make([]byte, StringLength)
	copy(make_pad, bytes)
	result := binary.Write(b, binary.LittleEndian, make_pad)
	return result
}

func writeIntField(b *bytes.Buffer, intField IntField) error {
	int_val := int64(intField.Value)
	if err := binary.Write(b, binary.LittleEndian, int_val); err != nil {
		return err
	}
	return nil
}

// writeTo serializes t's fields in order into b, in the fixed-width layout
// a heapPage expects: each field occupies a constant number of bytes, so
// tuples of the same TupleDesc always serialize to the same length.
func (t *Tuple) writeTo(b *bytes.Buffer) error {
	for _, field := range t.Fields {
		switch v := field.(type) {
		case StringField:
			if err := writeStringField(b, v); err != nil {
				return err
			}
		case IntField:
			if err := writeIntField(b, v); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported field type: %T", field)
		}
	}
	return nil
}

// readStringField reads StringLength little-endian bytes from b and trims
// the trailing zero padding writeStringField added.
func readStringField(b *bytes.Buffer) (StringField, error) {
	make_result := make([]byte, StringLength)
	err := binary.Read(b, binary.LittleEndian, make_result)
	if err != nil {
		return StringField{}, err
	}
	return StringField{Value: strings.TrimRight(string(make_result), "\x00")}, nil
}

func readIntField(b *bytes.Buffer) (IntField, error) {
	var val_int int64
	err := binary.Read(b, binary.LittleEndian, &val_int)
	if err != nil {
		return IntField{}, err
	}
	return IntField{Value: val_int}, nil
}

// readTupleFrom reads one tuple matching desc's field order out of b,
// mirroring writeTo's layout field by field.
func readTupleFrom(b *bytes.Buffer, desc *TupleDesc) (*Tuple, error) {
	tuple := &Tuple{Desc: *desc}

	for _, fieldDesc := range desc.Fields {
		switch fieldDesc.Ftype {
		case 1:
			strField, err := readStringField(b)
			if err != nil {
				return nil, err
			}
			tuple.Fields = append(tuple.Fields, strField)
		default:
			intField, err := readIntField(b)
			if err != nil {
				return nil, err
			}
			tuple.Fields = append(tuple.Fields, intField)
		}
	}
	return tuple, nil
}

// equals reports whether t1 and t2 have equal TupleDescs and equal fields,
// in order. A nil Tuple equals only another nil Tuple.
func (t1 *Tuple) equals(t2 *Tuple) bool {
	if t1 == nil && t2 == nil {
		return true
	}
	if t1 == nil || t2 == nil {
		return false
	}
	if len(t1.Fields) != len(t2.Fields) {
		return false
	}
	if !t1.Desc.equals(&t2.Desc) {
		return false
	}
	for ind := range t1.Fields {
		if t1.Fields[ind] != t2.Fields[ind] {
			return false
		}
	}
	return true
}

// joinTuples returns a new Tuple with t1's fields followed by t2's, and a
// TupleDesc merged the same way. A nil operand acts as the empty tuple.
func joinTuples(t1 *Tuple, t2 *Tuple) *Tuple {
	if t1 == nil {
		return t2
	}
	if t2 == nil {
		return t1
	}
	mergedTupleDesc := TupleDesc{
		Fields: append(t1.Desc.Fields, t2.Desc.Fields...),
	}
	return &Tuple{
		Desc:   mergedTupleDesc,
		Fields: append(t1.Fields, t2.Fields...),
	}
}

// project returns a new Tuple containing only the fields named in fields,
// in that order. A TableQualifier on a requested field is preferred but not
// required: an unqualified match is accepted only if no qualified match
// exists (e.g. a request for "t1.name" prefers "t1.name" in t over
// "t2.name", but falls back to any "name" column if "t1.name" is absent).
func (t *Tuple) project(fields []FieldType) (*Tuple, error) {
	projected := &Tuple{
		Desc:   TupleDesc{},
		Fields: []DBValue{},
	}
	for _, field := range fields {
		matchedIndex := -1
		for i, descField := range t.Desc.Fields {
			if field.Fname == descField.Fname && field.TableQualifier == descField.TableQualifier {
				matchedIndex = i
				break
			}
		}
		if matchedIndex == -1 {
			for i, descField := range t.Desc.Fields {
				if field.Fname == descField.Fname {
					matchedIndex = i
					break
				}
			}
		}
		if matchedIndex == -1 {
			return nil, fmt.Errorf("field %s.%s not found", field.TableQualifier, field.Fname)
		}
		projected.Fields = append(projected.Fields, t.Fields[matchedIndex])
		projected.Desc.Fields = append(projected.Desc.Fields, t.Desc.Fields[matchedIndex])
	}
	return projected, nil
}

// tupleKey returns a comparable value suitable as a map key for t, derived
// from its serialized bytes so that equal tuples always produce equal keys.
func (t *Tuple) tupleKey() any {
	var buf bytes.Buffer
	t.writeTo(&buf)
	return buf.String()
}

// winWidth is the assumed terminal width used to size columns in aligned
// output.
var winWidth int = 120

// fmtCol centers v (or truncates it) within a column sized by dividing
// winWidth evenly across ncols, and appends a trailing separator.
func fmtCol(v string, ncols int) string {
	colWid := winWidth / ncols
	nextLen := len(v) + 3
	remLen := colWid - nextLen
	if remLen > 0 {
		spacesRight := remLen / 2
		spacesLeft := remLen - spacesRight
		return strings.Repeat(" ", spacesLeft) + v + strings.Repeat(" ", spacesRight) + " |"
	} else {
		return " " + v[0:colWid-4] + " |"
	}
}

// HeaderString renders d's field names as a header line: space-padded
// columns when aligned, comma-separated otherwise.
func (d *TupleDesc) HeaderString(aligned bool) string {
	outstr := ""
	for i, f := range d.Fields {
		tableName := ""
		if f.TableQualifier != "" {
			tableName = f.TableQualifier + "."
		}

		if aligned {
			outstr = fmt.Sprintf("%s %s", outstr, fmtCol(tableName+f.Fname, len(d.Fields)))
		} else {
			sep := ","
			if i == 0 {
				sep = ""
			}
			outstr = fmt.Sprintf("%s%s%s", outstr, sep, tableName+f.Fname)
		}
	}
	return outstr
}

// PrettyPrintString renders t's field values the same way HeaderString
// renders field names, so a header line and its rows line up.
func (t *Tuple) PrettyPrintString(aligned bool) string {
	outstr := ""
	for i, f := range t.Fields {
		str := ""
		switch f := f.(type) {
		case IntField:
			str = strconv.FormatInt(f.Value, 10)
		case StringField:
			str = f.Value
		}
		if aligned {
			outstr = fmt.Sprintf("%s %s", outstr, fmtCol(str, len(t.Fields)))
		} else {
			sep := ","
			if i == 0 {
				sep = ""
			}
			outstr = fmt.Sprintf("%s%s%s", outstr, sep, str)
		}
	}
	return outstr
}

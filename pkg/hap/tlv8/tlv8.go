package tlv8

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
)

// Separator is a zero-length item that divides entries of a list
const Separator = 0xFF

var ErrMalformed = errors.New("tlv8: malformed")

type Item struct {
	Tag   byte
	Value []byte
}

func Encode(items ...Item) []byte {
	var b []byte
	for _, item := range items {
		b = appendItem(b, item.Tag, item.Value)
	}
	return b
}

// EncodeList joins entries with Separator items
func EncodeList(entries ...[]Item) []byte {
	var b []byte
	for i, entry := range entries {
		if i > 0 {
			b = append(b, Separator, 0)
		}
		b = append(b, Encode(entry...)...)
	}
	return b
}

// Decode returns the value of every run of same-tag items. A later run
// with the same tag replaces the earlier one.
func Decode(b []byte) (map[byte][]byte, error) {
	m := map[byte][]byte{}
	for len(b) > 0 {
		tag, v, rest, err := readRun(b)
		if err != nil {
			return nil, err
		}
		m[tag] = v
		b = rest
	}
	return m, nil
}

// DecodeList splits b into entries at each delimiter item. An empty
// delimiter item (like Separator) only divides entries, otherwise it
// becomes the first field of the next entry.
func DecodeList(b []byte, delimiter byte) ([]map[byte][]byte, error) {
	var list []map[byte][]byte
	var entry map[byte][]byte

	for len(b) > 0 {
		tag, v, rest, err := readRun(b)
		if err != nil {
			return nil, err
		}
		b = rest

		if tag == delimiter {
			if entry != nil {
				list = append(list, entry)
			}
			entry = map[byte][]byte{}
			if len(v) == 0 {
				continue
			}
		} else if entry == nil {
			entry = map[byte][]byte{}
		}

		entry[tag] = v
	}

	if entry != nil {
		list = append(list, entry)
	}

	return list, nil
}

func appendItem(b []byte, tag byte, v []byte) []byte {
	// support "big" values
	for len(v) > 255 {
		b = append(b, tag, 255)
		b = append(b, v[:255]...)
		v = v[255:]
	}
	b = append(b, tag, byte(len(v)))
	return append(b, v...)
}

// readRun concatenates consecutive items with the same tag
func readRun(b []byte) (tag byte, v []byte, rest []byte, err error) {
	tag = b[0]
	v = []byte{}

	for len(b) > 0 && b[0] == tag {
		if len(b) < 2 {
			return 0, nil, nil, fmt.Errorf("%w: T=%d without length", ErrMalformed, tag)
		}

		l := int(b[1])
		if len(b) < 2+l {
			return 0, nil, nil, fmt.Errorf("%w: T=%d,L=%d,remain=%d", ErrMalformed, tag, l, len(b)-2)
		}

		v = append(v, b[2:2+l]...)
		b = b[2+l:]
	}

	return tag, v, b, nil
}

type errReader struct {
	err error
}

func (e *errReader) Read([]byte) (int, error) {
	return 0, e.err
}

func MarshalReader(v any) io.Reader {
	b, err := Marshal(v)
	if err != nil {
		return &errReader{err: err}
	}
	return bytes.NewReader(b)
}

func Marshal(v any) ([]byte, error) {
	value := reflect.ValueOf(v)
	kind := value.Type().Kind()

	if kind == reflect.Pointer {
		value = value.Elem()
		kind = value.Type().Kind()
	}

	switch kind {
	case reflect.Struct:
		return appendStruct(nil, value)
	}

	return nil, errors.New("tlv8: not implemented: " + kind.String())
}

func appendStruct(b []byte, value reflect.Value) ([]byte, error) {
	valueType := value.Type()

	for i := 0; i < value.NumField(); i++ {
		refField := value.Field(i)
		s, ok := valueType.Field(i).Tag.Lookup("tlv8")
		if !ok {
			continue
		}

		s, opt, _ := strings.Cut(s, ",")
		if opt == "omitempty" && refField.IsZero() {
			continue
		}

		tag, err := strconv.Atoi(s)
		if err != nil {
			return nil, err
		}

		b, err = appendValue(b, byte(tag), refField)
		if err != nil {
			return nil, err
		}
	}

	return b, nil
}

func appendValue(b []byte, tag byte, value reflect.Value) ([]byte, error) {
	var err error

	switch value.Kind() {
	case reflect.Uint8:
		v := value.Uint()
		return append(b, tag, 1, byte(v)), nil

	case reflect.Uint16:
		v := value.Uint()
		return append(b, tag, 2, byte(v), byte(v>>8)), nil

	case reflect.Uint32:
		v := value.Uint()
		return append(b, tag, 4, byte(v), byte(v>>8), byte(v>>16), byte(v>>24)), nil

	case reflect.Uint64:
		b = append(b, tag, 8)
		return binary.LittleEndian.AppendUint64(b, value.Uint()), nil

	case reflect.String:
		return appendItem(b, tag, []byte(value.String())), nil

	case reflect.Array:
		if value.Type().Elem().Kind() == reflect.Uint8 {
			v := make([]byte, value.Len())
			reflect.Copy(reflect.ValueOf(v), value)
			return appendItem(b, tag, v), nil
		}

	case reflect.Slice:
		if value.Type().Elem().Kind() == reflect.Uint8 {
			return appendItem(b, tag, value.Bytes()), nil
		}

		for i := 0; i < value.Len(); i++ {
			if i > 0 {
				b = append(b, Separator, 0)
			}
			if b, err = appendValue(b, tag, value.Index(i)); err != nil {
				return nil, err
			}
		}
		return b, nil

	case reflect.Struct:
		var v []byte
		if v, err = appendStruct(nil, value); err != nil {
			return nil, err
		}
		return appendItem(b, tag, v), nil
	}

	return nil, errors.New("tlv8: not implemented: " + value.Kind().String())
}

func UnmarshalReader(r io.Reader, v any) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return Unmarshal(data, v)
}

func Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return errors.New("tlv8: unmarshal zero data")
	}

	value := reflect.ValueOf(v)
	kind := value.Kind()

	if kind != reflect.Pointer {
		return errors.New("tlv8: value should be pointer: " + kind.String())
	}

	value = value.Elem()
	kind = value.Kind()

	if kind == reflect.Interface {
		value = value.Elem()
		kind = value.Kind()
	}

	if kind != reflect.Struct {
		return errors.New("tlv8: not implemented: " + kind.String())
	}

	return unmarshalStruct(data, value)
}

func unmarshalStruct(b []byte, value reflect.Value) error {
	for len(b) > 0 {
		t, v, rest, err := readRun(b)
		if err != nil {
			return err
		}
		b = rest

		if t == Separator && len(v) == 0 {
			continue
		}

		// unknown tags are skipped, controllers may send more than we need
		valueField, ok := getStructField(value, strconv.Itoa(int(t)))
		if !ok {
			continue
		}

		if err = unmarshalValue(v, valueField); err != nil {
			return fmt.Errorf("%w, T=%d for: %s", err, t, value.Type().Name())
		}
	}

	return nil
}

func unmarshalValue(v []byte, value reflect.Value) error {
	switch value.Kind() {
	case reflect.Uint8:
		if len(v) != 1 {
			return errors.New("tlv8: wrong size")
		}
		value.SetUint(uint64(v[0]))

	case reflect.Uint16:
		if len(v) != 2 {
			return errors.New("tlv8: wrong size")
		}
		value.SetUint(uint64(binary.LittleEndian.Uint16(v)))

	case reflect.Uint32:
		if len(v) != 4 {
			return errors.New("tlv8: wrong size")
		}
		value.SetUint(uint64(binary.LittleEndian.Uint32(v)))

	case reflect.Uint64:
		if len(v) != 8 {
			return errors.New("tlv8: wrong size")
		}
		value.SetUint(binary.LittleEndian.Uint64(v))

	case reflect.String:
		value.SetString(string(v))

	case reflect.Array:
		if kind := value.Type().Elem().Kind(); kind != reflect.Uint8 {
			return errors.New("tlv8: unsupported array: " + kind.String())
		}
		if len(v) != value.Len() {
			return errors.New("tlv8: wrong size")
		}
		reflect.Copy(value, reflect.ValueOf(v))

	case reflect.Slice:
		if value.Type().Elem().Kind() == reflect.Uint8 {
			value.SetBytes(v)
			return nil
		}
		i := growSlice(value)
		return unmarshalValue(v, value.Index(i))

	case reflect.Struct:
		return unmarshalStruct(v, value)

	default:
		return errors.New("tlv8: not implemented: " + value.Kind().String())
	}

	return nil
}

func getStructField(value reflect.Value, tag string) (reflect.Value, bool) {
	valueType := value.Type()

	for i := 0; i < value.NumField(); i++ {
		valueField := value.Field(i)

		if s, ok := valueType.Field(i).Tag.Lookup("tlv8"); ok {
			if s, _, _ = strings.Cut(s, ","); s == tag {
				return valueField, true
			}
		}
	}

	return reflect.Value{}, false
}

func growSlice(value reflect.Value) int {
	size := value.Len()

	if size >= value.Cap() {
		newcap := value.Cap() + value.Cap()/2
		if newcap < 4 {
			newcap = 4
		}
		newValue := reflect.MakeSlice(value.Type(), value.Len(), newcap)
		reflect.Copy(newValue, value)
		value.Set(newValue)
	}

	if size >= value.Len() {
		value.SetLen(size + 1)
	}

	return size
}

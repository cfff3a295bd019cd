package apiv1

import (
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// fields reads typed values out of a Struct. Missing keys yield zero values;
// a key of the wrong kind records the first error in err.
type fields struct {
	s   *structpb.Struct
	err error
}

func (f *fields) value(key string) *structpb.Value {
	if f.s == nil {
		return nil
	}
	return f.s.GetFields()[key]
}

func (f *fields) fail(key, want string) {
	if f.err == nil {
		f.err = fmt.Errorf("field %q: expected %s", key, want)
	}
}

func (f *fields) str(key string) string {
	v := f.value(key)
	if v == nil {
		return ""
	}
	if _, ok := v.GetKind().(*structpb.Value_StringValue); !ok {
		f.fail(key, "string")
		return ""
	}
	return v.GetStringValue()
}

func (f *fields) flag(key string) bool {
	v := f.value(key)
	if v == nil {
		return false
	}
	if _, ok := v.GetKind().(*structpb.Value_BoolValue); !ok {
		f.fail(key, "bool")
		return false
	}
	return v.GetBoolValue()
}

func (f *fields) optInt(key string) *int {
	v := f.value(key)
	if v == nil {
		return nil
	}
	if _, ok := v.GetKind().(*structpb.Value_NullValue); ok {
		return nil
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	// float64(math.MaxInt) rounds up to 2^63, which no int can hold
	if !ok || n.NumberValue != math.Trunc(n.NumberValue) ||
		n.NumberValue < float64(math.MinInt) || n.NumberValue >= float64(math.MaxInt) {
		f.fail(key, "integer")
		return nil
	}
	i := int(n.NumberValue)
	return &i
}

func (f *fields) num(key string) int {
	if i := f.optInt(key); i != nil {
		return *i
	}
	return 0
}

func (f *fields) strs(key string) []string {
	v := f.value(key)
	if v == nil {
		return nil
	}
	list, ok := v.GetKind().(*structpb.Value_ListValue)
	if !ok {
		f.fail(key, "list")
		return nil
	}
	var out []string
	for _, item := range list.ListValue.GetValues() {
		s, ok := item.GetKind().(*structpb.Value_StringValue)
		if !ok {
			f.fail(key, "list of strings")
			return nil
		}
		out = append(out, s.StringValue)
	}
	return out
}

func (f *fields) objects(key string) []*structpb.Struct {
	v := f.value(key)
	if v == nil {
		return nil
	}
	list, ok := v.GetKind().(*structpb.Value_ListValue)
	if !ok {
		f.fail(key, "list")
		return nil
	}
	var out []*structpb.Struct
	for _, item := range list.ListValue.GetValues() {
		s, ok := item.GetKind().(*structpb.Value_StructValue)
		if !ok {
			f.fail(key, "list of objects")
			return nil
		}
		out = append(out, s.StructValue)
	}
	return out
}

func (f *fields) dur(key string) time.Duration {
	s := f.str(key)
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		f.fail(key, "duration")
		return 0
	}
	return d
}

func (f *fields) timestamp(key string) time.Time {
	s := f.str(key)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		f.fail(key, "RFC 3339 timestamp")
		return time.Time{}
	}
	return t
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func anyList(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

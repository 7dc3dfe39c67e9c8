package otel

import (
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/tailspan/tailspan/pkg/otel/model"
)

// EncodeValue converts a stored tag or log-field value into the OTLP value
// union. Whole-number numerics become integer values rendered as decimal
// strings, other numerics become doubles, sequences recurse element-wise, and
// anything unrecognized falls back to its textual representation.
func EncodeValue(value interface{}) model.AnyValue {
	switch typed := value.(type) {
	case string:
		return stringValue(typed)
	case bool:
		return model.AnyValue{BoolValue: &typed}
	case int:
		return intValue(int64(typed))
	case int8:
		return intValue(int64(typed))
	case int16:
		return intValue(int64(typed))
	case int32:
		return intValue(int64(typed))
	case int64:
		return intValue(typed)
	case uint:
		return intValue(int64(typed))
	case uint8:
		return intValue(int64(typed))
	case uint16:
		return intValue(int64(typed))
	case uint32:
		return intValue(int64(typed))
	case uint64:
		return intValue(int64(typed))
	case float32:
		return floatValue(float64(typed))
	case float64:
		return floatValue(typed)
	case nil:
		return stringValue("")
	default:
		reflected := reflect.ValueOf(value)
		if reflected.Kind() == reflect.Slice || reflected.Kind() == reflect.Array {
			values := make([]model.AnyValue, 0, reflected.Len())
			for i := 0; i < reflected.Len(); i++ {
				values = append(values, EncodeValue(reflected.Index(i).Interface()))
			}
			return model.AnyValue{ArrayValue: &model.ArrayValue{Values: values}}
		}
		return stringValue(fmt.Sprintf("%v", value))
	}
}

func stringValue(text string) model.AnyValue {
	return model.AnyValue{StringValue: &text}
}

func intValue(number int64) model.AnyValue {
	rendered := strconv.FormatInt(number, 10)
	return model.AnyValue{IntValue: &rendered}
}

func floatValue(number float64) model.AnyValue {
	if number == math.Trunc(number) && !math.IsInf(number, 0) && !math.IsNaN(number) {
		return intValue(int64(number))
	}
	return model.AnyValue{DoubleValue: &number}
}

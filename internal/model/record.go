// Package model defines shared types used across the sync engine and adapters.
package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Category identifies one independently synced health-data kind. The three
// activity sub-metrics are distinct categories for the engine but share a
// single config toggle and a single persisted sensor type.
type Category string

const (
	CategorySteps       Category = "activity.steps"
	CategoryDistance    Category = "activity.distance"
	CategoryCalories    Category = "activity.calories"
	CategorySleep       Category = "sleep"
	CategoryHeartRate   Category = "heart_rate"
	CategoryBloodOxygen Category = "blood_oxygen"
	CategoryExercise    Category = "exercise"
)

// SyncOrder is the fixed order categories are processed within one cycle:
// activity sub-metrics, then sleep, heart rate, blood oxygen, exercise.
var SyncOrder = []Category{
	CategorySteps,
	CategoryDistance,
	CategoryCalories,
	CategorySleep,
	CategoryHeartRate,
	CategoryBloodOxygen,
	CategoryExercise,
}

// Group is the user-facing configuration toggle that enables a category.
type Group string

const (
	GroupActivity    Group = "activity"
	GroupSleep       Group = "sleep"
	GroupHeartRate   Group = "heart_rate"
	GroupBloodOxygen Group = "blood_oxygen"
	GroupExercise    Group = "exercise"
)

// Groups lists all config toggles in display order.
var Groups = []Group{GroupActivity, GroupSleep, GroupHeartRate, GroupBloodOxygen, GroupExercise}

// Group returns the config toggle that controls this category.
func (c Category) Group() Group {
	switch c {
	case CategorySteps, CategoryDistance, CategoryCalories:
		return GroupActivity
	case CategorySleep:
		return GroupSleep
	case CategoryHeartRate:
		return GroupHeartRate
	case CategoryBloodOxygen:
		return GroupBloodOxygen
	default:
		return GroupExercise
	}
}

// SensorType returns the sensor_type tag stored on persisted records.
// The activity sub-metrics share the "activity" tag; blood oxygen is
// persisted under its historical "spo2" tag.
func (c Category) SensorType() string {
	switch c {
	case CategorySteps, CategoryDistance, CategoryCalories:
		return "activity"
	case CategoryBloodOxygen:
		return "spo2"
	default:
		return string(c)
	}
}

// SubType returns the sub-metric tag for activity categories ("steps",
// "distance", "calories") and "" for every other category. Records of
// sub-typed categories carry this tag in their own "type" field, which is
// what dedup key construction reads back.
func (c Category) SubType() string {
	switch c {
	case CategorySteps:
		return "steps"
	case CategoryDistance:
		return "distance"
	case CategoryCalories:
		return "calories"
	default:
		return ""
	}
}

// ValueKind discriminates the payload carried by a [Value].
type ValueKind int

const (
	KindInt ValueKind = iota
	KindFloat
	KindString
	KindBool
)

// Value is a tagged variant holding one typed measurement value.
// Exactly one payload field is meaningful, selected by Kind.
type Value struct {
	Kind  ValueKind
	Int   int64
	Float float64
	Str   string
	Bool  bool
}

// IntValue returns an integer-kinded Value.
func IntValue(v int64) Value { return Value{Kind: KindInt, Int: v} }

// FloatValue returns a float-kinded Value.
func FloatValue(v float64) Value { return Value{Kind: KindFloat, Float: v} }

// StringValue returns a string-kinded Value.
func StringValue(v string) Value { return Value{Kind: KindString, Str: v} }

// BoolValue returns a bool-kinded Value.
func BoolValue(v bool) Value { return Value{Kind: KindBool, Bool: v} }

// String renders the payload for logging.
func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	default:
		return v.Str
	}
}

// Field is one ordered (key, typed value) pair of a sensor record document.
type Field struct {
	Key   string
	Value Value
}

// fieldJSON is the wire/document form of a Field.
type fieldJSON struct {
	Key   string          `json:"key"`
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON encodes the field as {"key":..., "type":..., "value":...}
// with the value rendered in its native JSON type.
func (f Field) MarshalJSON() ([]byte, error) {
	var raw []byte
	var typ string
	var err error
	switch f.Value.Kind {
	case KindInt:
		typ, raw = "int", []byte(strconv.FormatInt(f.Value.Int, 10))
	case KindFloat:
		typ = "double"
		raw, err = json.Marshal(f.Value.Float)
	case KindBool:
		typ, raw = "bool", []byte(strconv.FormatBool(f.Value.Bool))
	default:
		typ = "string"
		raw, err = json.Marshal(f.Value.Str)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(fieldJSON{Key: f.Key, Type: typ, Value: raw})
}

// UnmarshalJSON decodes the document form produced by [Field.MarshalJSON].
func (f *Field) UnmarshalJSON(data []byte) error {
	var fj fieldJSON
	if err := json.Unmarshal(data, &fj); err != nil {
		return err
	}
	f.Key = fj.Key
	switch fj.Type {
	case "int":
		var n int64
		if err := json.Unmarshal(fj.Value, &n); err != nil {
			return fmt.Errorf("field %q: %w", fj.Key, err)
		}
		f.Value = IntValue(n)
	case "double":
		var n float64
		if err := json.Unmarshal(fj.Value, &n); err != nil {
			return fmt.Errorf("field %q: %w", fj.Key, err)
		}
		f.Value = FloatValue(n)
	case "bool":
		var b bool
		if err := json.Unmarshal(fj.Value, &b); err != nil {
			return fmt.Errorf("field %q: %w", fj.Key, err)
		}
		f.Value = BoolValue(b)
	case "string":
		var s string
		if err := json.Unmarshal(fj.Value, &s); err != nil {
			return fmt.Errorf("field %q: %w", fj.Key, err)
		}
		f.Value = StringValue(s)
	default:
		return fmt.Errorf("field %q: unknown value type %q", fj.Key, fj.Type)
	}
	return nil
}

// Fields is the ordered field list of a sensor record.
type Fields []Field

// Get returns the value for key and whether it was present.
func (fs Fields) Get(key string) (Value, bool) {
	for _, f := range fs {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// SubType returns the record's own "type" tag, or "" when absent or not a
// string. Sub-typed categories tag every record this way so that records
// sharing a timestamp remain distinguishable.
func (fs Fields) SubType() string {
	v, ok := fs.Get("type")
	if !ok || v.Kind != KindString {
		return ""
	}
	return v.Str
}

// SensorRecord is the canonical unit persisted in the remote store.
type SensorRecord struct {
	UserID     string
	DeviceID   string
	SensorType string
	Timestamp  time.Time
	Fields     Fields
}

// DedupSubType returns the tag that disambiguates records sharing a
// timestamp under the same sensor type. Only activity records are
// sub-typed; every other sensor type keys on timestamp alone, whatever
// its own "type" field says.
func (r SensorRecord) DedupSubType() string {
	if r.SensorType == "activity" {
		return r.Fields.SubType()
	}
	return ""
}

// DedupKey is the stable identity of a record within a sync window:
// the UTC timestamp in microseconds plus, for sub-typed categories, the
// record's sub-metric tag. Microsecond grain matches the remote store's
// timestamp precision, so keys built from a freshly read record and from
// its persisted round-trip always agree.
type DedupKey struct {
	UnixMicro int64
	SubType   string
}

// KeyAt builds the dedup key for a freshly read record of this category
// at the given native timestamp.
func (c Category) KeyAt(ts time.Time) DedupKey {
	return DedupKey{UnixMicro: ts.UTC().UnixMicro(), SubType: c.SubType()}
}

// KeyFor builds the dedup key for an already-persisted record. Sub-typed
// categories read the tag from the record's own "type" field rather than
// assuming it from call order.
func (c Category) KeyFor(rec SensorRecord) DedupKey {
	key := DedupKey{UnixMicro: rec.Timestamp.UTC().UnixMicro()}
	if c.SubType() != "" {
		key.SubType = rec.Fields.SubType()
	}
	return key
}

// --- Raw source records ------------------------------------------------------

// StepsRecord is a step-count bucket read from the health gateway.
type StepsRecord struct {
	Start time.Time
	Count int64
}

// DistanceRecord is a travelled-distance bucket in meters.
type DistanceRecord struct {
	Start  time.Time
	Meters float64
}

// CaloriesRecord is an energy-burned bucket in kilocalories.
type CaloriesRecord struct {
	Start        time.Time
	Kilocalories float64
}

// SleepSession is one recorded sleep session.
type SleepSession struct {
	Start time.Time
	End   time.Time
}

// HeartRateSample is a single heart-rate measurement.
type HeartRateSample struct {
	Time time.Time
	BPM  int64
}

// HeartRateSeries is one gateway record possibly holding several samples.
// The engine flattens each sample into its own persisted record.
type HeartRateSeries struct {
	Samples []HeartRateSample
}

// OxygenReading is a single blood-oxygen saturation measurement.
type OxygenReading struct {
	Time       time.Time
	Percentage float64
}

// ExerciseSession is one recorded workout session. TypeCode is the raw
// numeric exercise type; Title may be empty.
type ExerciseSession struct {
	Start    time.Time
	End      time.Time
	TypeCode int
	Title    string
}

package ir

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealed(t *testing.T) {
	var _ Value = Null{}
	var _ Value = String("test")
	var _ Value = Int(42)
	var _ Value = Float(1.5)
	var _ Value = Bool(true)
	var _ Value = Time(time.Unix(0, 0))
	var _ Value = Array{String("a"), Int(1)}
	var _ Value = Object{"key": String("value")}
}

func TestObjectSortedKeys(t *testing.T) {
	obj := Object{
		"zebra":  String("z"),
		"apple":  String("a"),
		"banana": String("b"),
	}

	assert.Equal(t, []string{"apple", "banana", "zebra"}, obj.SortedKeys())
}

func TestObjectSortedKeysUTF16Order(t *testing.T) {
	obj := Object{
		"a":  Int(1),
		"A":  Int(2),
		"aa": Int(3),
		"aA": Int(4),
		"Aa": Int(5),
		"AA": Int(6),
	}

	assert.Equal(t, []string{"A", "AA", "Aa", "a", "aA", "aa"}, obj.SortedKeys())
}

func TestObjectMergeNewerWins(t *testing.T) {
	obj := NewObject(O("name", NewString("old")), O("age", NewInt(30)))
	obj.Merge(NewObject(O("name", NewString("new")), O("email", NewString("a@b.c"))))

	assert.Equal(t, String("new"), obj["name"])
	assert.Equal(t, Int(30), obj["age"])
	assert.Equal(t, String("a@b.c"), obj["email"])
}

func TestObjectCloneIsDeep(t *testing.T) {
	orig := Object{"nested": Object{"k": Int(1)}, "list": Array{Int(1)}}
	clone := orig.Clone()

	clone["nested"].(Object)["k"] = Int(2)
	clone["list"].(Array)[0] = Int(9)

	assert.Equal(t, Int(1), orig["nested"].(Object)["k"])
	assert.Equal(t, Int(1), orig["list"].(Array)[0])
}

func TestObjectJSONRoundTripKeepsKinds(t *testing.T) {
	when := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	obj := Object{
		"name":    String("Ada"),
		"count":   Int(3),
		"ratio":   Float(0.25),
		"ok":      Bool(true),
		"when":    NewTime(when),
		"nothing": Null{},
		"tags":    Array{String("a"), Int(2)},
		"profile": Object{"city": String("Oslo")},
	}

	data, err := json.Marshal(obj)
	require.NoError(t, err)

	var decoded Object
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, String("Ada"), decoded["name"])
	assert.Equal(t, Int(3), decoded["count"])
	assert.Equal(t, Float(0.25), decoded["ratio"])
	assert.Equal(t, Bool(true), decoded["ok"])
	assert.Equal(t, Null{}, decoded["nothing"])
	assert.Equal(t, Array{String("a"), Int(2)}, decoded["tags"])
	assert.Equal(t, Object{"city": String("Oslo")}, decoded["profile"])

	got, ok := decoded["when"].(Time)
	require.True(t, ok, "time should decode as Time, got %T", decoded["when"])
	assert.True(t, time.Time(got).Equal(when))
}

func TestUnmarshalValueNumbers(t *testing.T) {
	tests := []struct {
		input string
		want  Value
	}{
		{"42", Int(42)},
		{"-7", Int(-7)},
		{"1.5", Float(1.5)},
		{"1e3", Float(1000)},
		{"9223372036854775807", Int(9223372036854775807)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := UnmarshalValue([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnmarshalValueEmpty(t *testing.T) {
	_, err := UnmarshalValue([]byte("  "))
	assert.Error(t, err)
}

func TestMarshalValueRejectsNaN(t *testing.T) {
	_, err := MarshalValue(Float(nanValue()))
	assert.Error(t, err)
}

func TestFromAnyConvertsPlainGoValues(t *testing.T) {
	got, err := FromAny(map[string]any{
		"s":    "x",
		"i":    7,
		"f":    2.5,
		"b":    false,
		"list": []any{"a", 1},
		"nil":  nil,
	})
	require.NoError(t, err)

	assert.Equal(t, Object{
		"s":    String("x"),
		"i":    Int(7),
		"f":    Float(2.5),
		"b":    Bool(false),
		"list": Array{String("a"), Int(1)},
		"nil":  Null{},
	}, got)
}

func TestFromAnyRejectsUnsupported(t *testing.T) {
	_, err := FromAny(struct{}{})
	assert.Error(t, err)

	_, err = ObjectFromAny(map[string]any{"ch": make(chan int)})
	assert.Error(t, err)
}

func nanValue() float64 {
	zero := 0.0
	return zero / zero
}

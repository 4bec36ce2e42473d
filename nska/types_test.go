package nska

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueAccessors(t *testing.T) {
	b, err := Bool(true).AsBool()
	require.NoError(t, err)
	assert.True(t, b)

	i, err := Int(-7).AsInt()
	require.NoError(t, err)
	assert.Equal(t, int64(-7), i)

	u, err := Int(7).AsUint()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), u)
	_, err = Int(-7).AsUint()
	assert.Error(t, err)

	big := Uint(math.MaxUint64)
	assert.Equal(t, KindUint, big.Kind())
	u, err = big.AsUint()
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), u)
	assert.Equal(t, KindInt, Uint(5).Kind())

	when := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	got, err := Time(when).AsTime()
	require.NoError(t, err)
	assert.Equal(t, when, got)

	uid, err := UID(12).AsUID()
	require.NoError(t, err)
	assert.Equal(t, uint64(12), uid)

	_, err = Str("x").AsInt()
	assert.EqualError(t, err, "nska: expected int, got str")
	var nilValue *Value
	_, err = nilValue.AsStr()
	assert.Error(t, err)
	assert.Equal(t, KindNull, nilValue.Kind())
	assert.True(t, nilValue.IsNull())
}

func TestValueKindPredicates(t *testing.T) {
	tests := []struct {
		v         *Value
		container bool
		scalar    bool
	}{
		{Null(), false, true},
		{Str("s"), false, true},
		{Bytes(nil), false, true},
		{UID(1), false, false},
		{List(), true, false},
		{Map(), true, false},
	}
	for _, tt := range tests {
		t.Run(tt.v.Kind().String(), func(t *testing.T) {
			assert.Equal(t, tt.container, tt.v.IsContainer())
			assert.Equal(t, tt.scalar, tt.v.IsScalar())
		})
	}
}

func TestValueContainers(t *testing.T) {
	m := Map(Entry("a", Int(1)))
	m.Set("b", Str("two"))
	m.Set("a", Int(3))
	assert.Equal(t, 2, m.Len())
	assert.True(t, m.Has("b"))
	assert.False(t, m.Has("c"))
	assert.Nil(t, m.Get("c"))
	requireValue(t, Int(3), m.Get("a"))
	assert.Equal(t, "a", m.mapVal[0].Key)

	l := List()
	l.Append(Str("x"))
	l.Append(Null())
	assert.Equal(t, 2, l.Len())
	elem, err := l.Index(1)
	require.NoError(t, err)
	assert.True(t, elem.IsNull())
	_, err = l.Index(2)
	assert.Error(t, err)
	_, err = m.Index(0)
	assert.Error(t, err)

	assert.Panics(t, func() { l.Set("k", Null()) })
	assert.Panics(t, func() { m.Append(Null()) })
}

func TestValueEqual(t *testing.T) {
	a := Map(Entry("x", List(Int(1), Bytes([]byte{1}))), Entry("y", Null()))
	b := Map(Entry("y", Null()), Entry("x", List(Int(1), Bytes([]byte{1}))))
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(Map(Entry("x", List(Int(1))), Entry("y", Null()))))
	assert.False(t, Int(1).Equal(Float(1)))
	assert.False(t, UID(1).Equal(Uint(1)))
	assert.True(t, Uint(1<<63).Equal(Uint(1<<63)))
	assert.False(t, List(Str("a")).Equal(List(Str("b"))))
}

package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeObjectRejectsNonObjectRoot(t *testing.T) {
	_, err := DecodeObject([]byte(`[1,2]`))
	require.ErrorIs(t, err, ErrNotObject)

	_, err = DecodeObject([]byte(`{"a":1} {"b":2}`))
	require.Error(t, err)

	obj, err := DecodeObject([]byte(" {\"a\":1}\n"))
	require.NoError(t, err)
	assert.Contains(t, obj, "a")
}

func TestLookupDistinguishesNullFromAbsent(t *testing.T) {
	obj, err := DecodeObject([]byte(`{"present":null}`))
	require.NoError(t, err)

	v, ok := Lookup(obj, "present")
	assert.True(t, ok)
	assert.Nil(t, v)

	_, ok = Lookup(obj, "missing")
	assert.False(t, ok)
}

func TestContainerTreatsListAsEmpty(t *testing.T) {
	obj, err := DecodeObject([]byte(`{"risks":[],"vuls":{"u1":{}},"threats":null,"amvs":"x"}`))
	require.NoError(t, err)

	_, ok := Container(obj, "risks")
	assert.False(t, ok)
	_, ok = Container(obj, "threats")
	assert.False(t, ok)
	_, ok = Container(obj, "amvs")
	assert.False(t, ok)
	_, ok = Container(obj, "missing")
	assert.False(t, ok)

	vuls, ok := Container(obj, "vuls")
	require.True(t, ok)
	assert.Len(t, vuls, 1)
}

func TestIntCoercion(t *testing.T) {
	obj, err := DecodeObject([]byte(`{"n":3,"f":2.0,"s":"7","b":true,"e":"","x":null,"o":{}}`))
	require.NoError(t, err)

	cases := map[string]struct {
		want int
		ok   bool
	}{
		"n": {3, true},
		"f": {2, true},
		"s": {7, true},
		"b": {1, true},
		"e": {0, false},
		"x": {0, false},
		"o": {0, false},
		"z": {0, false},
	}
	for key, tc := range cases {
		got, ok := Int(obj, key)
		assert.Equal(t, tc.ok, ok, key)
		assert.Equal(t, tc.want, got, key)
	}
	assert.Equal(t, -1, IntOr(obj, "x", -1))
	assert.Nil(t, OptInt(obj, "x"))
	require.NotNil(t, OptInt(obj, "n"))
	assert.Equal(t, 3, *OptInt(obj, "n"))
}

func TestStringRendersIdentifiers(t *testing.T) {
	obj, err := DecodeObject([]byte(`{"s":"abc","n":12,"x":null,"b":false}`))
	require.NoError(t, err)

	assert.Equal(t, "abc", String(obj, "s"))
	assert.Equal(t, "12", String(obj, "n"))
	assert.Equal(t, "", String(obj, "x"))
	assert.Equal(t, "false", String(obj, "b"))
	assert.Equal(t, "", String(obj, "missing"))
}

func TestStringListAcceptsListAndMap(t *testing.T) {
	obj, err := DecodeObject([]byte(`{"l":["a",1,null],"m":{"2":"b","1":"a"}}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "1"}, StringList(obj, "l"))
	assert.Equal(t, []string{"a", "b"}, StringList(obj, "m"))
	assert.Nil(t, StringList(obj, "missing"))
}

func TestSortedKeysNumericFirst(t *testing.T) {
	obj := Object{"10": 1, "2": 1, "b": 1, "a": 1, "1": 1}
	assert.Equal(t, []string{"1", "2", "10", "a", "b"}, SortedKeys(obj))
}

func TestEncodeIsStableAndUnescaped(t *testing.T) {
	obj, err := DecodeObject([]byte(`{"b":"<x>","a":1.50,"c":[1,2]}`))
	require.NoError(t, err)

	out, err := Encode(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1.50,"b":"<x>","c":[1,2]}`, string(out))

	again, err := DecodeObject(out)
	require.NoError(t, err)
	assert.Equal(t, Fingerprint(obj), Fingerprint(again))
}

func TestPath(t *testing.T) {
	obj, err := DecodeObject([]byte(`{"object":{"asset":{"asset":{"code":"SRV"}}}}`))
	require.NoError(t, err)

	v, ok := Path(obj, "object.asset.asset.code")
	require.True(t, ok)
	assert.Equal(t, "SRV", v)

	_, ok = Path(obj, "object.missing.code")
	assert.False(t, ok)
}

package memo

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultKeyEncoding(t *testing.T) {
	s, err := DefaultKey("plain key")
	require.NoError(t, err)
	assert.Equal(t, "plain key", s)

	n, err := DefaultKey(42)
	require.NoError(t, err)
	assert.Equal(t, "42", n)

	type point struct {
		X, Y int
	}
	p, err := DefaultKey(point{X: 1, Y: 2})
	require.NoError(t, err)
	assert.Equal(t, `{"X":1,"Y":2}`, p)

	other, err := DefaultKey(point{X: 2, Y: 1})
	require.NoError(t, err)
	assert.NotEqual(t, p, other)
}

func TestDefaultKeyRejectsUnencodable(t *testing.T) {
	_, err := DefaultKey(make(chan int))
	assert.ErrorIs(t, err, ErrKeyNotEncodable)

	n := 1
	_, err = DefaultKey(&n)
	assert.ErrorIs(t, err, ErrKeyNotEncodable)
	assert.Contains(t, err.Error(), "pointer")

	type hidden struct {
		ID   int
		rank int
	}
	_, err = DefaultKey(hidden{ID: 1, rank: 2})
	assert.ErrorIs(t, err, ErrKeyNotEncodable)
	assert.Contains(t, err.Error(), "unexported field rank")

	type skipped struct {
		ID   int
		Note string `json:"-"`
	}
	_, err = DefaultKey(skipped{ID: 1})
	assert.ErrorIs(t, err, ErrKeyNotEncodable)

	type wrapped struct{ Inner any }
	_, err = DefaultKey(wrapped{Inner: 1})
	assert.ErrorIs(t, err, ErrKeyNotEncodable)
}

func TestDefaultKeyInterfaceKeepsDynamicType(t *testing.T) {
	str, err := DefaultKey[any]("3")
	require.NoError(t, err)
	num, err := DefaultKey[any](3)
	require.NoError(t, err)
	assert.Equal(t, "string:3", str)
	assert.Equal(t, "int:3", num)

	type label string
	named, err := DefaultKey[any](label("3"))
	require.NoError(t, err)
	assert.NotEqual(t, str, named)

	null, err := DefaultKey[any](nil)
	require.NoError(t, err)
	assert.Equal(t, "<nil>", null)

	n := 3
	_, err = DefaultKey[any](&n)
	assert.ErrorIs(t, err, ErrKeyNotEncodable)
}

func TestDefaultKeyTrustsMarshalers(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s, err := DefaultKey(at)
	require.NoError(t, err)
	assert.Equal(t, `"2024-05-01T12:00:00Z"`, s)
}

func TestValueTypeProblem(t *testing.T) {
	type plain struct {
		Name string
		Tags map[string][]int
		At   time.Time
	}
	type loose struct {
		Meta map[string]any
	}
	assert.Empty(t, valueTypeProblem(reflect.TypeFor[plain]()))
	assert.Empty(t, valueTypeProblem(reflect.TypeFor[*plain]()))
	assert.Contains(t, valueTypeProblem(reflect.TypeFor[any]()), "interface")
	assert.Contains(t, valueTypeProblem(reflect.TypeFor[loose]()), "interface")
	assert.Contains(t, valueTypeProblem(reflect.TypeFor[[]error]()), "interface")
	assert.Contains(t, valueTypeProblem(reflect.TypeFor[func()]()), "func")
}

func TestJSONCodecRoundTrip(t *testing.T) {
	type profile struct {
		Name  string   `json:"name"`
		Roles []string `json:"roles"`
	}
	codec := JSONCodec[profile]()
	body, err := codec.Encode(profile{Name: "ada", Roles: []string{"admin"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"ada","roles":["admin"]}`, string(body))

	got, err := codec.Decode(body)
	require.NoError(t, err)
	assert.Equal(t, "ada", got.Name)
	assert.Equal(t, []string{"admin"}, got.Roles)

	_, err = codec.Decode([]byte("{"))
	assert.Error(t, err)
}

func TestStringCodecVerbatim(t *testing.T) {
	codec := StringCodec()
	body, err := codec.Encode("raw \x00 bytes")
	require.NoError(t, err)
	assert.Equal(t, []byte("raw \x00 bytes"), body)
	got, err := codec.Decode(body)
	require.NoError(t, err)
	assert.Equal(t, "raw \x00 bytes", got)
}

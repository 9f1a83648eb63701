package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrderSpec_Valid(t *testing.T) {
	spec, err := NewOrderSpec(catalog(), mAge.Desc(), mUserName.Asc().NullsLast())
	require.NoError(t, err)

	keys := spec.Keys()
	require.Len(t, keys, 2)
	assert.Equal(t, Descending, keys[0].Direction)
	assert.Equal(t, NullsDefault, keys[0].Nulls)
	assert.Equal(t, NullsLast, keys[1].Nulls)
}

func TestNewOrderSpec_RepeatedKeysKept(t *testing.T) {
	spec, err := NewOrderSpec(catalog(), mAge.Desc(), mAge.Desc())
	require.NoError(t, err)
	assert.Equal(t, 2, spec.Len())
}

func TestNewOrderSpec_Errors(t *testing.T) {
	tests := []struct {
		name string
		key  OrderKey
	}{
		{"unknown field", Field{Entity: "Member", Alias: "m", Name: "nickname"}.Asc()},
		{"unknown entity", Field{Entity: "Club", Alias: "c", Name: "id"}.Asc()},
		{"not sortable", mTeamID.Asc()},
		{"no expression", OrderKey{Direction: Ascending}},
		{"bad direction", OrderKey{Expr: mAge, Direction: "SIDEWAYS"}},
		{"unknown field inside case", Asc(CaseWhen(Field{Entity: "Member", Alias: "m", Name: "rank"}.Eq(1), 0).Else(1))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOrderSpec(catalog(), tt.key)
			require.Error(t, err)
			assert.True(t, IsInvalidSortField(err), "got %v", err)
		})
	}
}

func TestNewOrderSpec_CaseKeyOverKnownFields(t *testing.T) {
	rank := CaseWhen(mAge.Between(0, 20), 2).When(mAge.Between(21, 30), 1).Else(3)

	spec, err := NewOrderSpec(catalog(), Desc(rank), mAge.Asc())
	require.NoError(t, err)
	assert.Equal(t, 2, spec.Len())
}

func TestOrderSpec_KeysIsACopy(t *testing.T) {
	spec, err := NewOrderSpec(catalog(), mAge.Desc())
	require.NoError(t, err)

	keys := spec.Keys()
	keys[0] = mAge.Asc()

	assert.Equal(t, Descending, spec.Keys()[0].Direction)
}

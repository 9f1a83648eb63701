package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querydeck/internal/ir"
)

func TestAndOf_DropsNilOperands(t *testing.T) {
	p := AndOf(nil, mAge.Goe(20), nil)

	// A single remaining operand is returned unwrapped.
	assert.Equal(t, Compare{Left: mAge, Op: OpGe, Right: Const{Value: ir.IRInt(20)}}, p)
}

func TestAndOf_AllNilIsEmptyConjunction(t *testing.T) {
	p := AndOf(nil, nil)

	assert.Equal(t, And{Predicates: []Predicate{}}, p)
	assert.True(t, IsTrue(p))
}

func TestAndOf_FlattensNested(t *testing.T) {
	a := mAge.Goe(20)
	b := mAge.Loe(40)
	c := mUserName.Eq("member1")

	p := AndOf(AndOf(a, b), c)

	require.IsType(t, And{}, p)
	assert.Equal(t, []Predicate{a, b, c}, p.(And).Predicates)
}

func TestOrOf(t *testing.T) {
	a := mAge.Eq(10)
	b := mAge.Eq(20)

	assert.Nil(t, OrOf())
	assert.Nil(t, OrOf(nil, nil))
	assert.Equal(t, a, OrOf(nil, a))
	assert.Equal(t, Or{Predicates: []Predicate{a, b}}, OrOf(a, nil, b))
}

func TestOrOf_AlwaysTrueOperandFiltersNothing(t *testing.T) {
	p := OrOf(AndOf(nil, nil), mAge.Gt(10))

	assert.Equal(t, And{Predicates: []Predicate{}}, p)
	assert.True(t, IsTrue(p))
	assert.NoError(t, Validate(catalog(), From(memberRef).Select(mID).Where(p)))
}

func TestFieldBuilders(t *testing.T) {
	tests := []struct {
		name string
		got  Predicate
		want Predicate
	}{
		{"eq", mUserName.Eq("member1"), Equals{Left: mUserName, Right: Const{Value: ir.IRString("member1")}}},
		{"eq field", mUserName.Eq(tName), Equals{Left: mUserName, Right: tName}},
		{"ne", mAge.Ne(10), Compare{Left: mAge, Op: OpNe, Right: Const{Value: ir.IRInt(10)}}},
		{"lt", mAge.Lt(10), Compare{Left: mAge, Op: OpLt, Right: Const{Value: ir.IRInt(10)}}},
		{"loe", mAge.Loe(10), Compare{Left: mAge, Op: OpLe, Right: Const{Value: ir.IRInt(10)}}},
		{"gt", mAge.Gt(10), Compare{Left: mAge, Op: OpGt, Right: Const{Value: ir.IRInt(10)}}},
		{"goe", mAge.Goe(10), Compare{Left: mAge, Op: OpGe, Right: Const{Value: ir.IRInt(10)}}},
		{"between", mAge.Between(10, 30), Between{Expr: mAge, Low: Const{Value: ir.IRInt(10)}, High: Const{Value: ir.IRInt(30)}}},
		{"contains", mUserName.Contains("mem"), Contains{Expr: mUserName, Substring: "mem"}},
		{"in", mAge.In(10, 20), In{Expr: mAge, Values: []Expr{Const{Value: ir.IRInt(10)}, Const{Value: ir.IRInt(20)}}}},
		{"is null", mUserName.IsNull(), IsNull{Expr: mUserName}},
		{"is not null", mUserName.IsNotNull(), IsNull{Expr: mUserName, Negate: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestLit_UnsupportedValue(t *testing.T) {
	e := Lit(make(chan int))

	_, ok := e.(invalidLiteral)
	assert.True(t, ok, "unsupported Go values become invalid literals")
}

func TestSelectBuilder_IsImmutable(t *testing.T) {
	base := From(memberRef).Select(mID).Where(mAge.Goe(10))
	older := base.Where(mAge.Goe(30)).OrderBy(mAge.Desc())
	joined := base.Join(mTeam, "t")

	assert.Equal(t, mAge.Goe(10), base.Filter)
	assert.Empty(t, base.Order)
	assert.Empty(t, base.Joins)

	assert.Equal(t, AndOf(mAge.Goe(10), mAge.Goe(30)), older.Filter)
	require.Len(t, joined.Joins, 1)
	assert.Equal(t, teamRef, joined.Joins[0].Target)
	assert.Equal(t, InnerJoin, joined.Joins[0].Kind)
}

func TestSelectBuilder_WhereWithOnlyNils(t *testing.T) {
	sel := From(memberRef).Where(nil, AndOf())

	assert.Nil(t, sel.Filter)
}

func TestSelect_FetchJoins(t *testing.T) {
	sel := From(memberRef).Join(mTeam.Fetched(), "t").LeftJoin(mTeam, "t2")

	fetched := sel.FetchJoins()
	require.Len(t, fetched, 1)
	assert.Equal(t, "t", fetched[0].Target.Alias)
	assert.Equal(t, []EntityRef{memberRef, teamRef, {Name: "Team", Alias: "t2"}}, sel.Scope())
}

func TestCaseBuilder(t *testing.T) {
	e := CaseWhen(mAge.Eq(10), "ten").When(mAge.Eq(20), "twenty").Else("other")

	c, ok := e.(Case)
	require.True(t, ok)
	require.Len(t, c.Whens, 2)
	assert.Equal(t, Const{Value: ir.IRString("other")}, c.Else)

	open := CaseWhen(mAge.Eq(10), 1).End()
	assert.Nil(t, open.(Case).Else)
}

func TestUnalias(t *testing.T) {
	assert.Equal(t, mUserName, Unalias(As(As(mUserName, "a"), "b")))
	assert.Equal(t, mAge, Unalias(mAge))
}

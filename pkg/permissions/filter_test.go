package permissions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterSentinels(t *testing.T) {
	assert.True(t, Unrestricted().IsUnrestricted())
	assert.False(t, Unrestricted().IsDenyAll())
	assert.True(t, DenyAll().IsDenyAll())
	assert.False(t, DenyAll().IsUnrestricted())
}

func TestIn(t *testing.T) {
	t.Run("empty set denies all", func(t *testing.T) {
		assert.True(t, In("chapter_id", nil).IsDenyAll())
	})

	t.Run("binds every value", func(t *testing.T) {
		f := In("chapter_id", []string{"CH-A", "CH-B"})
		assert.Equal(t, "chapter_id IN (?, ?)", f.Expr)
		assert.Equal(t, []interface{}{"CH-A", "CH-B"}, f.Args)
	})
}

func TestOr(t *testing.T) {
	t.Run("unrestricted absorbs", func(t *testing.T) {
		f := Or(Eq("id", "X"), Unrestricted())
		assert.True(t, f.IsUnrestricted())
	})

	t.Run("deny-all terms drop out", func(t *testing.T) {
		f := Or(DenyAll(), Eq("id", "X"))
		assert.Equal(t, "id = ?", f.Expr)
		assert.Equal(t, []interface{}{"X"}, f.Args)
	})

	t.Run("all deny-all denies", func(t *testing.T) {
		assert.True(t, Or(DenyAll(), DenyAll()).IsDenyAll())
		assert.True(t, Or().IsDenyAll())
	})

	t.Run("combines terms with args in order", func(t *testing.T) {
		f := Or(Eq("id", "X"), In("chapter_id", []string{"A", "B"}))
		assert.Equal(t, "(id = ?) OR (chapter_id IN (?, ?))", f.Expr)
		assert.Equal(t, []interface{}{"X", "A", "B"}, f.Args)
	})
}

func TestAnd(t *testing.T) {
	t.Run("deny-all dominates", func(t *testing.T) {
		assert.True(t, And(Eq("id", "X"), DenyAll()).IsDenyAll())
	})

	t.Run("unrestricted terms drop out", func(t *testing.T) {
		f := And(Unrestricted(), Eq("id", "X"))
		assert.Equal(t, "id = ?", f.Expr)
	})

	t.Run("empty is unrestricted", func(t *testing.T) {
		assert.True(t, And().IsUnrestricted())
	})
}

func TestRebind(t *testing.T) {
	f := Or(Eq("id", "X"), In("chapter_id", []string{"A", "B"}))
	assert.Equal(t, "(id = $1) OR (chapter_id IN ($2, $3))", f.Rebind())
}

func TestWhereClause(t *testing.T) {
	assert.Equal(t, "", Unrestricted().WhereClause())
	assert.Equal(t, " WHERE id = $1", Eq("id", "X").WhereClause())
}

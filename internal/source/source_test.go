package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllStatementsWalksNestedLambdas(t *testing.T) {
	unit := &Unit{
		Path: "Program.cs",
		Statements: []Statement{{
			Calls: []Call{{
				Name: "AddAuthorization",
				Nested: []Statement{
					{Assign: "options.FallbackPolicy", Calls: []Call{{Name: "Build"}}},
				},
			}},
		}},
		Functions: []Function{{
			Name: "Configure",
			Body: []Statement{{Calls: []Call{{Name: "UseRouting"}}}},
		}},
	}

	stmts := unit.AllStatements()
	require.Len(t, stmts, 3)
	assert.Equal(t, "options.FallbackPolicy", stmts[1].Assign)
	assert.Equal(t, "UseRouting", stmts[2].Calls[0].Name)
}

func TestStatementFindAndAfter(t *testing.T) {
	stmt := Statement{Calls: []Call{
		{Name: "MapGet"}, {Name: "WithName"}, {Name: "RequireAuthorization"},
	}}
	require.NotNil(t, stmt.Find("MapGet"))
	assert.Nil(t, stmt.Find("MapPost"))
	after := stmt.After(0)
	require.Len(t, after, 2)
	assert.Equal(t, "WithName", after[0].Name)
	assert.Nil(t, stmt.After(2))
}

func TestTrimAttributeSuffix(t *testing.T) {
	assert.Equal(t, "Authorize", TrimAttributeSuffix("AuthorizeAttribute"))
	assert.Equal(t, "Authorize", TrimAttributeSuffix("Authorize"))
}

func TestJSONProvider(t *testing.T) {
	provider, err := NewProvider("json")
	require.NoError(t, err)
	assert.True(t, provider.Match("Controllers/Orders.cs.json"))
	assert.False(t, provider.Match("Controllers/Orders.cs"))

	path := filepath.Join(t.TempDir(), "Orders.cs.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"classes":[{"name":"OrdersController"}]}`), 0o644))

	unit, err := provider.Parse(context.Background(), path)
	require.NoError(t, err)
	require.NotNil(t, unit.FindClass("OrdersController"))
	assert.Nil(t, unit.FindClass("orderscontroller"))
	// The unit path falls back to the file path with the .json layer trimmed.
	assert.Equal(t, filepath.Join(filepath.Dir(path), "Orders.cs"), unit.Path)
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider("antlr")
	assert.Error(t, err)
	assert.Contains(t, ListProviders(), "json")
}

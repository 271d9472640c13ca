package template

import (
	"testing"

	"github.com/dukex/engageflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_SimpleExpression(t *testing.T) {
	data := map[string]any{
		"name":  "John",
		"age":   30,
		"isNew": true,
	}

	result, err := Render("{{ .name }}", data)
	require.NoError(t, err)
	assert.Equal(t, "John", result)

	result, err = Render("{{ .name }} is {{ .age }} (new: {{ .isNew }})", data)
	require.NoError(t, err)
	assert.Equal(t, "John is 30 (new: true)", result)
}

func TestRenderContext_NestedFields(t *testing.T) {
	rc := models.Context{
		"lead": map[string]any{"name": "ana", "score": 91},
	}

	result, err := RenderContext("Hot lead {{ .lead.name | title }} scored {{ .lead.score }}", rc)
	require.NoError(t, err)
	assert.Equal(t, "Hot lead Ana scored 91", result)
}

func TestRender_MissingKeysAreEmpty(t *testing.T) {
	rc := models.Context{"lead": map[string]any{}}

	result, err := RenderContext("Hi {{ .lead.name }}!", rc)
	require.NoError(t, err)
	assert.Equal(t, "Hi !", result)

	result, err = RenderContext(`Hi {{ default "there" .lead.name }}!`, rc)
	require.NoError(t, err)
	assert.Equal(t, "Hi there!", result)
}

func TestRender_PlainText(t *testing.T) {
	result, err := Render("no templating here", nil)
	require.NoError(t, err)
	assert.Equal(t, "no templating here", result)
}

func TestRender_Errors(t *testing.T) {
	_, err := Render("{{ .name ", map[string]any{})
	require.Error(t, err)

	require.Error(t, Validate("{{ if }}"))
	require.NoError(t, Validate("{{ upper .lead.name }}"))
	require.NoError(t, Validate("plain"))
}

func TestRender_Now(t *testing.T) {
	result, err := Render("{{ now }}", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, result)
}

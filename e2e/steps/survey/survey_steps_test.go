package survey

import (
	"testing"

	"github.com/cucumber/godog"
	messages "github.com/cucumber/messages/go/v21"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"welfare/internal/survey/models"
)

func tableOf(rows ...[]string) *godog.Table {
	table := &godog.Table{}
	for _, values := range rows {
		row := &messages.PickleTableRow{}
		for _, v := range values {
			row.Cells = append(row.Cells, &messages.PickleTableCell{Value: v})
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

func TestParseQuestions(t *testing.T) {
	t.Run("reads columns by header name", func(t *testing.T) {
		rows, err := parseQuestions(tableOf(
			[]string{"key", "kind", "text", "required", "repeat", "options"},
			[]string{"children", "textual", "Child name", "yes", "fixed:3", ""},
			[]string{"consent", "single_choice", "Consent?", "no", "none", "Yes, No"},
		))
		require.NoError(t, err)
		require.Len(t, rows, 2)

		assert.Equal(t, "children", rows[0].key)
		assert.Equal(t, models.QuestionTextual, rows[0].spec.Kind)
		assert.True(t, rows[0].spec.Required)
		assert.Equal(t, 1, rows[0].spec.Order)
		assert.Equal(t, 3, rows[0].spec.RepeatPolicy.MaxRepeats())
		assert.Empty(t, rows[0].options)

		assert.Equal(t, 2, rows[1].spec.Order)
		assert.False(t, rows[1].spec.Required)
		assert.False(t, rows[1].spec.RepeatPolicy.IsRepeatable())
		assert.Equal(t, []string{"Yes", "No"}, rows[1].options)
	})

	t.Run("missing columns read as blank", func(t *testing.T) {
		rows, err := parseQuestions(tableOf(
			[]string{"key", "kind", "text"},
			[]string{"name", "textual", "Name"},
		))
		require.NoError(t, err)
		assert.False(t, rows[0].spec.RepeatPolicy.IsRepeatable())
		assert.False(t, rows[0].spec.Required)
	})

	t.Run("rejects a header-only table", func(t *testing.T) {
		_, err := parseQuestions(tableOf([]string{"key", "kind"}))
		assert.Error(t, err)
	})

	t.Run("rejects an unknown repeat policy", func(t *testing.T) {
		_, err := parseQuestions(tableOf(
			[]string{"key", "kind", "text", "repeat"},
			[]string{"name", "textual", "Name", "sometimes"},
		))
		assert.Error(t, err)
	})
}

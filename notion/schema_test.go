package notion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reportSchemaYAML = `
columns:
  - name: userid
    type: title
  - name: 活動報告
    type: rich_text
  - name: タグ
    type: multi_select
  - name: 内容
    type: rich_text
`

func TestSchemaDecodeRow(t *testing.T) {
	t.Parallel()

	schema, err := ParseSchema([]byte(reportSchemaYAML))
	require.NoError(t, err)
	name, ok := schema.TitleColumn()
	require.True(t, ok)
	assert.Equal(t, "userid", name)

	row, err := schema.DecodeRow(loadFixture(t).Results[0])
	require.NoError(t, err)
	assert.Equal(t, "U024BE7LH", row.Text("userid"))
	assert.Equal(t, "1Q-03", row.Text("活動報告"))
	assert.Equal(t, "研究, 開発", row.Text("タグ"))
	assert.Equal(t, "", row.Text("missing"))
}

func TestSchemaDecodeRowMismatch(t *testing.T) {
	t.Parallel()

	schema := Schema{Columns: []Column{{Name: "タグ", Type: TypeTitle}}}
	_, err := schema.DecodeRow(loadFixture(t).Results[0])
	var sm *SchemaMismatchError
	require.ErrorAs(t, err, &sm)
	assert.Equal(t, "properties.タグ.type", sm.Path)

	schema = Schema{Columns: []Column{{Name: "nope", Type: TypeTitle}}}
	_, err = schema.DecodeRow(loadFixture(t).Results[0])
	require.ErrorAs(t, err, &sm)
	assert.Equal(t, "properties.nope", sm.Path)
}

func TestSchemaValidate(t *testing.T) {
	t.Parallel()

	_, err := ParseSchema([]byte("columns: []"))
	require.Error(t, err)

	_, err = ParseSchema([]byte("columns:\n  - name: a\n    type: formula\n"))
	require.ErrorIs(t, err, ErrUnsupportedPropertyType)

	_, err = ParseSchema([]byte("columns:\n  - name: a\n    type: title\n  - name: a\n    type: url\n"))
	require.Error(t, err)
}

func TestParseSchemaTrimsNamesAndTypes(t *testing.T) {
	t.Parallel()

	schema, err := ParseSchema([]byte("columns:\n  - name: \" userid \"\n    type: \" title\"\n  - name: 活動報告\n    type: \"rich_text \"\n"))
	require.NoError(t, err)
	assert.Equal(t, []Column{{Name: "userid", Type: TypeTitle}, {Name: "活動報告", Type: TypeRichText}}, schema.Columns)

	row, err := schema.DecodeRow(loadFixture(t).Results[0])
	require.NoError(t, err)
	assert.Equal(t, "U024BE7LH", row.Text("userid"))
	assert.Equal(t, "1Q-03", row.Text("活動報告"))
}

func TestSchemaBuildInputs(t *testing.T) {
	t.Parallel()

	schema, err := ParseSchema([]byte(reportSchemaYAML))
	require.NoError(t, err)
	inputs, err := schema.BuildInputs(map[string]string{
		"userid": "U1",
		"タグ":     "研究,開発",
	})
	require.NoError(t, err)
	assert.Equal(t, TitleInput{Content: "U1"}, inputs["userid"])
	assert.Equal(t, MultiSelectInput{Names: []string{"研究", "開発"}}, inputs["タグ"])

	_, err = schema.BuildInputs(map[string]string{"unknown": "x"})
	require.ErrorIs(t, err, ErrSchemaMismatch)
}

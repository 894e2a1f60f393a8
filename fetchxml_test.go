package dvql_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlch/dvql"
)

func TestQueryToFetchXML_Simple(t *testing.T) {
	t.Parallel()

	got, err := dvql.QueryToFetchXML("SELECT TOP 5 name FROM account")
	require.NoError(t, err)

	want := `<fetch top="5">
  <entity name="account">
    <attribute name="name"></attribute>
  </entity>
</fetch>`
	assert.Equal(t, want, got)
}

func TestQueryToFetchXML_Join(t *testing.T) {
	t.Parallel()

	got, err := dvql.QueryToFetchXML(
		"SELECT a.name, c.fullname FROM account a LEFT JOIN contact c " +
			"ON c.parentcustomerid = a.accountid WHERE c.statecode = 0")
	require.NoError(t, err)

	want := `<fetch>
  <entity name="account">
    <attribute name="name"></attribute>
    <filter type="and">
      <condition entityname="c" attribute="statecode" operator="eq" value="0"></condition>
    </filter>
    <link-entity name="contact" from="parentcustomerid" to="accountid" alias="c" link-type="outer">
      <attribute name="fullname"></attribute>
    </link-entity>
  </entity>
</fetch>`
	assert.Equal(t, want, got)
}

func TestQueryToFetchXML_Fragments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		query    string
		contains []string
	}{
		{
			name:     "all attributes and distinct",
			query:    "SELECT DISTINCT * FROM contact",
			contains: []string{`<fetch distinct="true">`, `<all-attributes></all-attributes>`},
		},
		{
			name:     "order descending",
			query:    "SELECT name FROM account ORDER BY createdon DESC",
			contains: []string{`<order attribute="createdon" descending="true"></order>`},
		},
		{
			name:  "or with nested and",
			query: "SELECT name FROM account WHERE a = 1 OR b = 2 AND c <> 'x'",
			contains: []string{
				`<filter type="or">`,
				`<condition attribute="a" operator="eq" value="1"></condition>`,
				`<filter type="and">`,
				`<condition attribute="c" operator="ne" value="x"></condition>`,
			},
		},
		{
			name:     "in values",
			query:    "SELECT name FROM account WHERE statecode NOT IN (0, 1)",
			contains: []string{`operator="not-in"`, `<value>0</value>`, `<value>1</value>`},
		},
		{
			name:     "between values",
			query:    "SELECT name FROM account WHERE revenue BETWEEN 10 AND 20",
			contains: []string{`operator="between"`, `<value>10</value>`, `<value>20</value>`},
		},
		{
			name:     "null checks",
			query:    "SELECT name FROM account WHERE a IS NULL AND b IS NOT NULL AND c = NULL",
			contains: []string{`attribute="a" operator="null"`, `attribute="b" operator="not-null"`, `attribute="c" operator="null"`},
		},
		{
			name:     "like escapes",
			query:    "SELECT name FROM account WHERE name LIKE '%&co%'",
			contains: []string{`operator="like" value="%&amp;co%"`},
		},
		{
			name:     "empty string value",
			query:    "SELECT name FROM account WHERE name = '' OR name LIKE ''",
			contains: []string{`operator="eq" value=""></condition>`, `operator="like" value=""></condition>`},
		},
		{
			name:     "null check has no value",
			query:    "SELECT name FROM account WHERE name IS NULL",
			contains: []string{`<condition attribute="name" operator="null"></condition>`},
		},
		{
			name:     "root alias is not an entityname",
			query:    "SELECT a.name FROM account a WHERE a.name = 'x'",
			contains: []string{`<condition attribute="name" operator="eq" value="x"></condition>`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := dvql.QueryToFetchXML(tt.query)
			require.NoError(t, err)

			for _, frag := range tt.contains {
				assert.True(t, strings.Contains(got, frag), "missing %s in\n%s", frag, got)
			}
		})
	}
}

func TestQueryToFetchXML_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query string
		want  error
	}{
		{"unknown column alias", "SELECT x.name FROM account a", dvql.ErrUnknownAlias},
		{"unknown condition alias", "SELECT name FROM account a WHERE x.name = 1", dvql.ErrUnknownAlias},
		{"duplicate alias", "SELECT name FROM account a JOIN contact a ON a.x = a.y", dvql.ErrDuplicateAlias},
		{"join not referencing itself", "SELECT name FROM account a JOIN contact c ON a.x = a.y", dvql.ErrInvalidJoin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := dvql.QueryToFetchXML(tt.query)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

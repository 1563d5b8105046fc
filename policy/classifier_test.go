package policy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/splitdb/types"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		command string
		want    types.Kind
	}{
		{"plain select", "SELECT * FROM t", types.KindRead},
		{"lower case select", "select id from t where x = 1", types.KindRead},
		{"mixed case select", "SeLeCt 1", types.KindRead},
		{"leading whitespace", "  \n\t SELECT 1", types.KindRead},
		{"leading parenthesis", "(SELECT 1) UNION (SELECT 2)", types.KindRead},
		{"select followed by newline", "SELECT\n*\nFROM t", types.KindRead},
		{"insert with leading whitespace", "  insert into t values (1)", types.KindWrite},
		{"update", "UPDATE t SET a = 1", types.KindWrite},
		{"delete", "DELETE FROM t", types.KindWrite},
		{"empty", "", types.KindWrite},
		{"only punctuation", "  ;;; 123 ", types.KindWrite},
		{"cte is conservative", "WITH x AS (SELECT 1) SELECT * FROM x", types.KindWrite},
		{"stored procedure call", "EXEC dbo.report", types.KindWrite},
		{"select prefix is not select", "SELECTED_ROWS()", types.KindWrite},
		{"keyword glued to digits", "SELECT1", types.KindRead},
		{"underscore ends the keyword", "select_for_update()", types.KindRead},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Classify(tt.command))
			require.Equal(t, tt.want, NewKeywordClassifier().Classify(tt.command))
		})
	}
}

func TestLeadingKeyword(t *testing.T) {
	require.Equal(t, "", LeadingKeyword(""))
	require.Equal(t, "", LeadingKeyword(" 42 ; "))
	require.Equal(t, "insert", LeadingKeyword("  insert into t"))
	require.Equal(t, "hint", LeadingKeyword("/* hint */ SELECT 1"))
	require.Equal(t, "Größe", LeadingKeyword("1 Größe"))
}

func FuzzClassifyNeverPanics(f *testing.F) {
	f.Add("SELECT 1")
	f.Add("")
	f.Add("\xff\xfeSELECT")
	f.Fuzz(func(t *testing.T, command string) {
		kind := Classify(command)
		if kind == types.KindRead {
			require.True(t, strings.EqualFold("SELECT", LeadingKeyword(command)))
		}
	})
}

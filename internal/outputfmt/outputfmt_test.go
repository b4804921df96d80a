package outputfmt

import "testing"

func TestFormatLLMText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  【活動内容と成果の実績】\n・実装した  ", "【活動内容と成果の実績】\n・実装した"},
		{"json literal", `"一行目\n二行目"`, "一行目\n二行目"},
		{"escaped newlines", `一行目\n二行目\n三行目`, "一行目\n二行目\n三行目"},
		{"single escape kept", `path C:\new`, `path C:\new`},
		{"code fence", "```markdown\n・要約\n```", "・要約"},
		{"empty", " \n ", ""},
	}
	for _, tc := range cases {
		if got := FormatLLMText(tc.in); got != tc.want {
			t.Fatalf("%s: FormatLLMText() = %q, want %q", tc.name, got, tc.want)
		}
	}
}

package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMake(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "simple", in: "Search", want: "search"},
		{name: "spaces and symbols", in: "Data Science & ML", want: "data-science-ml"},
		{name: "diacritics", in: "Café Tools", want: "cafe-tools"},
		{name: "already slug", in: "code-review", want: "code-review"},
		{name: "trims separators", in: "  --DevOps--  ", want: "devops"},
		{name: "empty", in: "", want: ""},
		{name: "only symbols", in: "!!!", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Make(tt.in))
		})
	}
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Code Review", Title("code-review"))
	assert.Equal(t, "Search", Title("search"))
	assert.Equal(t, "", Title(""))
}

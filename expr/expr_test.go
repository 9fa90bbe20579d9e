package expr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	ctx := Context{
		"kills":     int64(120),
		"wins":      3,
		"hour":      22,
		"isWeekend": true,
		"userId":    "u-1",
		"stats":     map[string]any{"messages": 40.0, "nested": map[string]int{"deep": 7}},
	}

	tests := []struct {
		name string
		src  string
		want bool
	}{
		{"comparison", "kills >= 100", true},
		{"and", "kills >= 100 && wins > 5", false},
		{"or keyword", "wins > 5 or isWeekend", true},
		{"not", "!isWeekend", false},
		{"not keyword", "not (hour < 6)", true},
		{"arithmetic precedence", "kills + wins * 10 == 150", true},
		{"modulo", "hour % 2 == 0", true},
		{"unary minus", "-kills < 0", true},
		{"dotted", "stats.messages > 39.5", true},
		{"deep map", "stats.nested.deep == 7", true},
		{"string equality", "userId == 'u-1'", true},
		{"string inequality", `userId != "u-2"`, true},
		{"bool equality", "isWeekend == true", true},
		{"grouping", "(kills > 200 || wins == 3) && hour >= 22", true},
		{"underscore number", "kills < 1_000", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.src, ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShortCircuitSkipsRightSide(t *testing.T) {
	got, err := Evaluate("false && missing > 1", Context{})
	require.NoError(t, err)
	assert.False(t, got)

	got, err = Evaluate("true || 1 / 0 > 1", Context{})
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEvalErrors(t *testing.T) {
	ctx := Context{"kills": 5, "name": "x", "flag": true}
	tests := []struct {
		src  string
		want error
	}{
		{"missing > 1", ErrUnknownField},
		{"kills.total > 1", ErrType},
		{"kills / 0 > 1", ErrDivisionByZero},
		{"kills % 0 > 1", ErrDivisionByZero},
		{"kills + 1", ErrType},
		{"name > 1", ErrType},
		{"flag && kills", ErrType},
		{"!kills", ErrType},
		{"-flag > 0", ErrType},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			_, err := Evaluate(tt.src, ctx)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, src := range []string{
		"",
		"   ",
		"kills >",
		"(kills > 1",
		"kills > 1)",
		"kills = 1",
		"a < b < c",
		"stats.",
		"'unterminated",
		"kills > 1.2.3",
		"kills # 1",
		"os.Exit(1)",
	} {
		t.Run(src, func(t *testing.T) {
			_, err := Parse(src)
			assert.ErrorIs(t, err, ErrSyntax)
		})
	}
}

func TestParseLimits(t *testing.T) {
	_, err := Parse(strings.Repeat("a", MaxSourceLength+1))
	assert.ErrorIs(t, err, ErrTooComplex)

	_, err = Parse(strings.Repeat("(", 200) + "true" + strings.Repeat(")", 200))
	assert.ErrorIs(t, err, ErrTooComplex)
}

func TestProgramFields(t *testing.T) {
	p := MustParse("kills > 10 && stats.messages > kills && hour < 3")
	assert.Equal(t, []string{"kills", "stats.messages", "hour"}, p.Fields())
	assert.Equal(t, "kills > 10 && stats.messages > kills && hour < 3", p.String())
}

func TestProgramReuse(t *testing.T) {
	p := MustParse("kills >= 10")
	for i, want := range []bool{false, true} {
		got, err := p.Eval(Context{"kills": i * 20})
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

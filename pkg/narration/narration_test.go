package narration

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanKnownFormulas(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"newton's second law",
			`Apply $F = ma$ here.`,
			"Apply force equals mass times acceleration here.",
		},
		{
			"mass-energy equivalence",
			`Recall that $E = mc^2$.`,
			"Recall that energy equals m c squared.",
		},
		{
			"kinematics",
			`Use $v = u + at$ first.`,
			"Use v equals u plus a t first.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestCleanGenericMath(t *testing.T) {
	got := Clean(`The area is $\frac{1}{2}bh$ for a triangle.`)
	assert.NotContains(t, got, "$")
	assert.NotContains(t, got, `\frac`)
	assert.Contains(t, got, "the fraction 1 over 2")

	got = Clean(`Take $\sqrt{x}$ of both sides.`)
	assert.Contains(t, got, "the square root of x")
}

func TestCleanStripsResidualMarkup(t *testing.T) {
	got := Clean("velocity^2 and x_1")
	assert.Equal(t, "velocity squared and x sub 1", got)

	assert.Equal(t, "plain text stays", Clean("plain text stays"))
}

func TestSpeak(t *testing.T) {
	assert.Equal(t, "a equals b times c", Speak(`a = b \times c`))
	assert.Contains(t, Speak(`\theta \approx \pi`), "theta")
	assert.Contains(t, Speak(`x^{10}`), "to the power of 10")
	assert.Contains(t, Speak(`v_0`), "sub 0")
}

func TestValidateLaTeX(t *testing.T) {
	assert.True(t, ValidateLaTeX(`balanced $x = y$ math`))
	assert.True(t, ValidateLaTeX("no math at all"))
	assert.False(t, ValidateLaTeX(`unbalanced $x = y`))
	assert.False(t, ValidateLaTeX(`stray \\ outside math`))
	assert.True(t, ValidateLaTeX(`$\begin{bmatrix} 1 \\ 2 \end{bmatrix}$`))
}

// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package narration converts step content with embedded LaTeX math into
// speakable English, for callers that feed explanations to a text-to-speech
// engine.
package narration

import (
	"regexp"
	"strings"
)

// Well-known physics formulas narrated as a whole; matched before the
// generic symbol-by-symbol conversion.
var knownFormulas = []struct {
	pattern   *regexp.Regexp
	narration string
}{
	{regexp.MustCompile(`\$KE = \\frac\{1\}\{2\}mv\^2\$`), "kinetic energy equals one-half m v squared"},
	{regexp.MustCompile(`\$W = \\frac\{1\}\{2\}m\(v\^2 - u\^2\)\$`), "work equals one-half m times v squared minus u squared"},
	{regexp.MustCompile(`\$F = ma\$`), "force equals mass times acceleration"},
	{regexp.MustCompile(`\$E = mc\^2\$`), "energy equals m c squared"},
	{regexp.MustCompile(`\$s = ut \+ \\frac\{1\}\{2\}at\^2\$`), "s equals u t plus one-half a t squared"},
	{regexp.MustCompile(`\$v = u \+ at\$`), "v equals u plus a t"},
	{regexp.MustCompile(`\$v\^2 = u\^2 \+ 2as\$`), "v squared equals u squared plus 2 a s"},
	{regexp.MustCompile(`\$v = \\frac\{ds\}\{dt\}\$`), "velocity v equals ds by dt"},
	{regexp.MustCompile(`\\begin\{bmatrix\}(?s:.*?)\\end\{bmatrix\}`), "matrix"},
}

var inlineMath = regexp.MustCompile(`\$([^$]+)\$`)

// Symbol replacements applied in order inside a math expression.
var symbolReplacements = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`\\frac\{([^}]+)\}\{([^}]+)\}`), "the fraction $1 over $2"},
	{regexp.MustCompile(`\\sqrt\{([^}]+)\}`), "the square root of $1"},
	{regexp.MustCompile(`\\int`), "the integral of"},
	{regexp.MustCompile(`\\sum`), "the sum of"},
	{regexp.MustCompile(`\\lim`), "the limit as"},
	{regexp.MustCompile(`\\log`), "log"},
	{regexp.MustCompile(`\\ln`), "natural log"},
	{regexp.MustCompile(`\\sin`), "sine"},
	{regexp.MustCompile(`\\cos`), "cosine"},
	{regexp.MustCompile(`\\tan`), "tangent"},
	{regexp.MustCompile(`\\Delta`), "delta"},
	{regexp.MustCompile(`\\theta`), "theta"},
	{regexp.MustCompile(`\\alpha`), "alpha"},
	{regexp.MustCompile(`\\beta`), "beta"},
	{regexp.MustCompile(`\\gamma`), "gamma"},
	{regexp.MustCompile(`\\omega`), "omega"},
	{regexp.MustCompile(`\\pi`), "pi"},
	{regexp.MustCompile(`\^\{?([\w+\-]+)\}?`), " to the power of $1"},
	{regexp.MustCompile(`_\{?(\w+)\}?`), " sub $1"},
	{regexp.MustCompile(`\\times`), "times"},
	{regexp.MustCompile(`\\cdot`), "dot"},
	{regexp.MustCompile(`\\approx`), "approximately equals"},
	{regexp.MustCompile(`\\neq`), "not equal to"},
	{regexp.MustCompile(`\\leq`), "less than or equal to"},
	{regexp.MustCompile(`\\geq`), "greater than or equal to"},
	{regexp.MustCompile(`\\pm`), "plus or minus"},
	{regexp.MustCompile(`\\in\b`), "is an element of"},
	{regexp.MustCompile(`\\rightarrow`), "approaches or implies"},
	{regexp.MustCompile(`\\Rightarrow`), "implies"},
	{regexp.MustCompile(`\\leftrightarrow`), "if and only if"},
	{regexp.MustCompile(`\\Leftrightarrow`), "if and only if"},
	{regexp.MustCompile(`\\infty`), "infinity"},
	{regexp.MustCompile(`\\partial`), "the partial derivative with respect to"},
	{regexp.MustCompile(`\\nabla`), "nabla"},
	{regexp.MustCompile(`\\vec\{(\w)\}`), "vector $1"},
	{regexp.MustCompile(`\{`), ""},
	{regexp.MustCompile(`\}`), ""},
}

var equationSplit = regexp.MustCompile(`(?s)^(.+?)\s*=\s*(.+)$`)

var doubleSpace = regexp.MustCompile(`\s{2,}`)

// Clean converts text containing LaTeX math into speakable English. Known
// formulas are narrated as a whole; remaining inline math is converted
// symbol by symbol, and leftover LaTeX punctuation is stripped.
func Clean(text string) string {
	for _, f := range knownFormulas {
		text = f.pattern.ReplaceAllString(text, f.narration)
	}

	text = inlineMath.ReplaceAllStringFunc(text, func(m string) string {
		inner := strings.Trim(m, "$")
		return Speak(inner)
	})

	text = strings.ReplaceAll(text, "$", "")
	text = strings.ReplaceAll(text, "\\", "")
	text = strings.ReplaceAll(text, "^2", " squared")
	text = strings.ReplaceAll(text, "^3", " cubed")
	text = strings.ReplaceAll(text, "_", " sub ")

	return strings.TrimSpace(text)
}

// Speak converts a single LaTeX expression (without surrounding dollar
// signs) into readable speech.
func Speak(latex string) string {
	latex = strings.TrimSpace(latex)

	for _, r := range symbolReplacements {
		latex = r.pattern.ReplaceAllString(latex, r.replacement)
	}

	if m := equationSplit.FindStringSubmatch(latex); m != nil {
		return strings.TrimSpace(m[1]) + " equals " + strings.TrimSpace(m[2])
	}

	return strings.TrimSpace(doubleSpace.ReplaceAllString(latex, " "))
}

// ValidateLaTeX performs a cheap sanity check on step content: dollar signs
// must be balanced, and LaTeX line breaks must appear inside math delimiters.
func ValidateLaTeX(content string) bool {
	if strings.Count(content, "$")%2 != 0 {
		return false
	}
	if strings.Contains(content, `\\`) {
		inMath := regexp.MustCompile(`(?s)\$.*\\\\.*\$`)
		if !inMath.MatchString(content) {
			return false
		}
	}
	return true
}

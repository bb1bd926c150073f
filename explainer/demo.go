package explainer

import (
	"context"
	"strings"
)

type demoEntry struct {
	key         string
	explanation string
	code        string
}

// Demo answers from a fixed set of topics and needs no credentials.
type Demo struct {
	entries []demoEntry
}

// NewDemo returns the offline explainer.
func NewDemo() *Demo {
	return &Demo{entries: demoEntries}
}

// Name returns "demo".
func (d *Demo) Name() string { return "demo" }

// Explain matches prompt against the known topics by case-insensitive
// substring. Unknown topics get a generic answer without code.
func (d *Demo) Explain(_ context.Context, prompt string) (*Explanation, error) {
	lower := strings.ToLower(prompt)
	for _, e := range d.entries {
		if strings.Contains(lower, e.key) {
			return &Explanation{Markdown: e.explanation, ManimCode: e.code}, nil
		}
	}
	return &Explanation{
		Markdown: "I understand you're asking about " + lower + ". While I'm in demo mode, I can only provide detailed responses about the Pythagorean theorem and quadratic equations. Please try one of those topics!",
	}, nil
}

var demoEntries = []demoEntry{
	{
		key: "pythagorean theorem",
		explanation: `# The Pythagorean Theorem

The Pythagorean theorem states that in a right triangle, the square of the length of the hypotenuse (c) equals the sum of squares of the other two sides (a and b).

Mathematically: a² + b² = c²

Key points:
- Only works for right triangles
- The hypotenuse is always the longest side
- Used extensively in geometry and real-world applications

Example:
If a = 3 and b = 4, then:
3² + 4² = c²
9 + 16 = c²
c = √25 = 5`,
		code: `from manim import *

class PythagoreanTheorem(Scene):
    def construct(self):
        triangle = Polygon(
            ORIGIN, RIGHT * 3, UP * 4,
            color=WHITE
        )

        labels = VGroup(
            MathTex("a = 3").next_to(triangle, DOWN),
            MathTex("b = 4").next_to(triangle, RIGHT),
            MathTex("c = 5").next_to(triangle, UP+LEFT)
        )

        equation = MathTex(
            "a^2 + b^2 = c^2",
            "\\\\",
            "3^2 + 4^2 = 5^2",
            "\\\\",
            "9 + 16 = 25"
        ).to_edge(RIGHT)

        self.play(Create(triangle))
        self.play(Write(labels))
        self.play(Write(equation))
        self.wait(2)`,
	},
	{
		key: "quadratic equations",
		explanation: `# Quadratic Equations

A quadratic equation has the form: ax² + bx + c = 0

The solution is found using the quadratic formula:
x = (-b ± √(b² - 4ac)) / 2a

Key concepts:
1. The discriminant (b² - 4ac) determines the number of solutions:
   - If > 0: Two real solutions
   - If = 0: One real solution (repeated)
   - If < 0: Two complex solutions

2. The graph is always a parabola
   - Opens upward if a > 0
   - Opens downward if a < 0`,
		code: `from manim import *

class QuadraticEquation(Scene):
    def construct(self):
        axes = Axes(
            x_range=[-4, 4, 1],
            y_range=[-2, 6, 1],
            axis_config={"include_tip": True}
        )

        graph = axes.plot(
            lambda x: x**2 - 2*x - 3,
            color=BLUE
        )

        labels = VGroup(
            axes.get_x_axis_label("x"),
            axes.get_y_axis_label("y")
        )

        equation = MathTex(
            "x^2 - 2x - 3 = 0"
        ).to_edge(UP)

        solutions = VGroup(
            Dot(axes.c2p(-1, 0), color=RED),
            Dot(axes.c2p(3, 0), color=RED)
        )

        self.play(Create(axes), Create(labels))
        self.play(Write(equation))
        self.play(Create(graph))
        self.play(Create(solutions))
        self.wait(2)`,
	},
}

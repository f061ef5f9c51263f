package engine

import (
	"strings"
	"testing"

	"github.com/chazu/amgen/pkg/geom"
)

// ---------------------------------------------------------------------------
// Preprocessing tests
// ---------------------------------------------------------------------------

func TestPreprocessKeywords(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "simple keyword",
			input:  `(sphere :radius 4)`,
			expect: `(sphere "__kw_radius" 4)`,
		},
		{
			name:   "multiple keywords",
			input:  `(box :x 400 :y 200)`,
			expect: `(box "__kw_x" 400 "__kw_y" 200)`,
		},
		{
			name:   "keyword in string preserved",
			input:  `"thing with :keyword inside"`,
			expect: `"thing with :keyword inside"`,
		},
		{
			name:   "assignment operator preserved",
			input:  `(def x := 10)`,
			expect: `(def x := 10)`,
		},
		{
			name:   "kebab-case identifier",
			input:  `(box wall-thickness 1 1)`,
			expect: `(box wall_thickness 1 1)`,
		},
		{
			name:   "minus operator preserved",
			input:  `(- 10 5)`,
			expect: `(- 10 5)`,
		},
		{
			name:   "negative literal preserved",
			input:  `(def x -3.0)`,
			expect: `(def x -3.0)`,
		},
		{
			name:   "comment converted to // style",
			input:  `;; comment with :keyword`,
			expect: `// comment with :keyword`,
		},
		{
			name:   "single semicolon comment",
			input:  `; simple comment`,
			expect: `// simple comment`,
		},
		{
			name:   "hyphen in keyword preserved",
			input:  `:fillet-radius`,
			expect: `"__kw_fillet-radius"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := preprocessSource(tt.input)
			if got != tt.expect {
				t.Errorf("preprocessSource(%q) = %q, want %q", tt.input, got, tt.expect)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Builtin tests
// ---------------------------------------------------------------------------

// mustModel evaluates source and fails the test on any error.
func mustModel(t *testing.T, source string, params map[string]float64) (*Model, *bboxKernel) {
	t.Helper()
	eng, k := newTestEngine()
	m, evalErrs, err := eng.Evaluate(source, params)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	if m == nil {
		t.Fatal("expected non-nil model")
	}
	return m, k
}

// mustEvalError evaluates source and returns the first EvalError.
func mustEvalError(t *testing.T, source string) EvalError {
	t.Helper()
	eng, _ := newTestEngine()
	m, evalErrs, err := eng.Evaluate(source, nil)
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if m != nil {
		t.Fatal("expected nil model on eval error")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected eval errors")
	}
	return evalErrs[0]
}

func TestBoxPositionalAndKeyword(t *testing.T) {
	for _, src := range []string{
		`(box 10 20 5)`,
		`(box :x 10 :y 20 :z 5)`,
		`(box 10 :z 5 :y 20)`,
	} {
		t.Run(src, func(t *testing.T) {
			m, _ := mustModel(t, src, nil)
			if len(m.Parts) != 1 || m.Parts[0].Name != "model" {
				t.Fatalf("parts = %+v, want one implicit part", m.Parts)
			}
			bb := m.Parts[0].Solid.BoundingBox()
			if bb.Max != (geom.Vec3{X: 10, Y: 20, Z: 5}) {
				t.Errorf("box max = %v, want (10,20,5)", bb.Max)
			}
		})
	}
}

func TestParametersAreBound(t *testing.T) {
	src := `
; bracket with a parametric leg
(def leg (translate (box leg-width 2 height) (- 10 leg-width) 0 0))
(union (box 10 10 2) leg)
`
	m, k := mustModel(t, src, map[string]float64{"leg-width": 3, "height": 7.5})
	bb := m.Solid(k).BoundingBox()
	if bb.Min != (geom.Vec3{}) {
		t.Errorf("min = %v, want origin", bb.Min)
	}
	if bb.Max != (geom.Vec3{X: 10, Y: 10, Z: 7.5}) {
		t.Errorf("max = %v, want (10,10,7.5)", bb.Max)
	}
}

func TestParametersAreFloats(t *testing.T) {
	// Integer division would truncate 7/2 to 3.
	m, _ := mustModel(t, `(box (/ w 2) 1 1)`, map[string]float64{"w": 7})
	if x := m.Parts[0].Solid.BoundingBox().Max.X; x != 3.5 {
		t.Errorf("box x = %v, want 3.5", x)
	}
}

func TestNamedParts(t *testing.T) {
	src := `
(part "base" (box 10 10 1))
(part "post" (translate (cylinder :height 8 :radius 1) 5 5 1))
`
	m, k := mustModel(t, src, nil)
	if len(m.Parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(m.Parts))
	}
	if m.Parts[0].Name != "base" || m.Parts[1].Name != "post" {
		t.Errorf("part names = %q, %q", m.Parts[0].Name, m.Parts[1].Name)
	}
	if z := m.Solid(k).BoundingBox().Max.Z; z != 9 {
		t.Errorf("union max z = %v, want 9", z)
	}
}

func TestDuplicatePartName(t *testing.T) {
	e := mustEvalError(t, `(part "a" (box 1 1 1)) (part "a" (box 1 1 1))`)
	if !strings.Contains(e.Message, "duplicate") {
		t.Errorf("message = %q, want duplicate part error", e.Message)
	}
}

func TestBooleansFoldLeft(t *testing.T) {
	src := `(difference (box 10 10 10) (sphere 2) (cylinder 20 1))`
	m, k := mustModel(t, src, nil)
	if len(m.Parts) != 1 {
		t.Fatalf("expected 1 part, got %d", len(m.Parts))
	}
	var diffs int
	for _, c := range k.calls {
		if c == "difference" {
			diffs++
		}
	}
	if diffs != 2 {
		t.Errorf("difference called %d times, want 2 (calls %v)", diffs, k.calls)
	}
}

func TestUnionOfList(t *testing.T) {
	src := `(union (list (box 1 1 1) (translate (box 1 1 1) 4 0 0)) (translate (box 1 1 1) 0 6 0))`
	m, k := mustModel(t, src, nil)
	bb := m.Solid(k).BoundingBox()
	if bb.Max != (geom.Vec3{X: 5, Y: 7, Z: 1}) {
		t.Errorf("union max = %v, want (5,7,1)", bb.Max)
	}
}

func TestTranslateForms(t *testing.T) {
	for _, src := range []string{
		`(translate (box 1 1 1) 2 3 4)`,
		`(translate (box 1 1 1) (vec3 2 3 4))`,
		`(translate (box 1 1 1) :by (vec3 2 3 4))`,
	} {
		t.Run(src, func(t *testing.T) {
			m, _ := mustModel(t, src, nil)
			if min := m.Parts[0].Solid.BoundingBox().Min; min != (geom.Vec3{X: 2, Y: 3, Z: 4}) {
				t.Errorf("min = %v, want (2,3,4)", min)
			}
		})
	}
}

func TestRotateCallsKernel(t *testing.T) {
	_, k := mustModel(t, `(rotate (box 1 2 3) 0 0 90)`, nil)
	if k.calls[len(k.calls)-1] != "rotate" {
		t.Errorf("last kernel call = %q, want rotate", k.calls[len(k.calls)-1])
	}
}

func TestBuiltinErrors(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		wantMsg string
	}{
		{"zero box", `(box 0 1 1)`, "must be positive"},
		{"negative radius", `(sphere -1)`, "must be positive"},
		{"missing cylinder radius", `(cylinder :height 3)`, "must be positive"},
		{"box from string", `(box "a" 1 1)`, "expected number"},
		{"union of numbers", `(union 1 2)`, "expected solid"},
		{"empty difference", `(difference)`, "at least one solid"},
		{"translate arity", `(translate (box 1 1 1) 1 2)`, "expected x y z"},
		{"vec3 arity", `(vec3 1 2)`, "exactly 3"},
		{"part without solid", `(part "a" 3)`, "expected solid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := mustEvalError(t, tt.source)
			if !strings.Contains(e.Message, tt.wantMsg) {
				t.Errorf("message = %q, want containing %q", e.Message, tt.wantMsg)
			}
		})
	}
}

func TestArithmeticStillWorks(t *testing.T) {
	m, _ := mustModel(t, `(box (* 2 3) (+ 1 1) (- 10 7))`, nil)
	if max := m.Parts[0].Solid.BoundingBox().Max; max != (geom.Vec3{X: 6, Y: 2, Z: 3}) {
		t.Errorf("max = %v, want (6,2,3)", max)
	}
}

func TestSexpStrings(t *testing.T) {
	v := &sexpVec3{vec: geom.Vec3{X: 1, Y: 2, Z: 3}}
	if got := v.SexpString(nil); got != "(vec3 1.0 2.0 3.0)" {
		t.Errorf("vec3 SexpString = %q", got)
	}
	s := &sexpSolid{solid: (&bboxKernel{}).Box(1, 2, 3), op: "box"}
	if got := s.SexpString(nil); got != "(box 1.0x2.0x3.0)" {
		t.Errorf("solid SexpString = %q", got)
	}
}

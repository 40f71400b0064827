package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chazu/mayhem/pkg/geometry"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource rewrites design script source before passing it to
// zygomys. It performs three transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: floor-level -> floor_level
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
//  3. Line comments: ; and ;; become //.
//
// All transformations respect string literal boundaries.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments for zygomys.
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			// Skip additional ; characters (;; style).
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			// Check for keyword: colon followed by a letter.
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpVec3 wraps a geometry.Vec3.
type sexpVec3 struct {
	vec geometry.Vec3
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %.1f %.1f %.1f)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpElement refers to an intent declared with `element`.
type sexpElement struct {
	name        string
	elementType string
}

func (e *sexpElement) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(element :%s %q)", e.elementType, e.name)
}
func (e *sexpElement) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Keyword at end with no value is a flag.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// paramName converts a script keyword (riser-height, riser_height) to the
// camelCase key builders read (riserHeight).
func paramName(kw string) string {
	var b strings.Builder
	upper := false
	for _, r := range kw {
		if r == '-' || r == '_' {
			upper = b.Len() > 0
			continue
		}
		if upper && r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		upper = false
		b.WriteRune(r)
	}
	return b.String()
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_z) and plain strings ("z").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], nil
	}
	return str.S, nil
}

// toVec3 extracts a Vec3 from a sexpVec3.
func toVec3(s zygo.Sexp) (geometry.Vec3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return geometry.Vec3{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// toElementName accepts an element reference or an element name string.
func toElementName(s zygo.Sexp) (string, error) {
	switch v := s.(type) {
	case *sexpElement:
		return v.name, nil
	case *zygo.SexpStr:
		if !strings.HasPrefix(v.S, kwPrefix) {
			return v.S, nil
		}
	}
	return "", fmt.Errorf("expected element reference or name, got %T (%s)", s, s.SexpString(nil))
}

func toConnectionKind(s zygo.Sexp) (geometry.ConnectionKind, error) {
	name, err := toKeywordString(s)
	if err != nil {
		return "", err
	}
	switch k := geometry.ConnectionKind(name); k {
	case geometry.ConnectionBolted, geometry.ConnectionWelded, geometry.ConnectionBearing:
		return k, nil
	}
	return "", fmt.Errorf("invalid connection kind %q, expected bolted, welded or bearing", name)
}

// ---------------------------------------------------------------------------
// Design accumulation
// ---------------------------------------------------------------------------

var (
	// ErrDuplicateName is returned when two elements share a name.
	ErrDuplicateName = errors.New("duplicate element name")
	// ErrUnknownReference is returned when a connection names an element
	// that was never declared.
	ErrUnknownReference = errors.New("unknown element")
)

// designBuilder collects the declarations of one evaluation.
type designBuilder struct {
	d        geometry.Design
	names    map[string]int // name -> index into d.Intents
	counts   map[string]int // per element type, for default names
	obstacle int
	// pointless holds indexes of connections declared without :at.
	pointless []int
}

func newDesignBuilder() *designBuilder {
	return &designBuilder{
		names:  make(map[string]int),
		counts: make(map[string]int),
	}
}

func (db *designBuilder) addIntent(in geometry.Intent) error {
	if in.Name == "" {
		for {
			db.counts[in.ElementType]++
			in.Name = fmt.Sprintf("%s-%d", in.ElementType, db.counts[in.ElementType])
			if _, taken := db.names[in.Name]; !taken {
				break
			}
		}
	}
	if _, taken := db.names[in.Name]; taken {
		return fmt.Errorf("%w %q", ErrDuplicateName, in.Name)
	}
	db.names[in.Name] = len(db.d.Intents)
	db.d.Intents = append(db.d.Intents, in)
	return nil
}

// resolve checks connection endpoints once every element is known and
// places connections declared without a point at the end of their first
// element.
func (db *designBuilder) resolve() error {
	for _, c := range db.d.Connections {
		for _, n := range []string{c.From, c.To} {
			if _, ok := db.names[n]; !ok {
				return fmt.Errorf("connect: %w %q", ErrUnknownReference, n)
			}
		}
	}
	for _, i := range db.pointless {
		c := &db.d.Connections[i]
		c.Point = db.d.Intents[db.names[c.From]].PointB
	}
	return nil
}

func (db *designBuilder) design() *geometry.Design {
	d := db.d
	return &d
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the design DSL builtins into a zygomys
// environment. The builtins populate db during evaluation.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, db *designBuilder) {

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}

		x, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: x: %w", err)
		}
		y, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: y: %w", err)
		}
		z, err := toFloat64(args[2])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: z: %w", err)
		}

		return &sexpVec3{vec: geometry.Vec3{X: x, Y: y, Z: z}}, nil
	})

	// -----------------------------------------------------------------------
	// (element :stairs :name "s1" :from (vec3 0 0 0) :to (vec3 4000 0 3000)
	//          :material "steel" :width 1000 :riser-height 170)
	//
	// Keywords other than name, from, to and material become numeric
	// builder parameters.
	// -----------------------------------------------------------------------
	env.AddFunction("element", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 {
			return zygo.SexpNull, fmt.Errorf("element requires an element type")
		}
		elementType, err := toKeywordString(args[0])
		if err != nil || elementType == "" {
			return zygo.SexpNull, fmt.Errorf("element: type: expected keyword such as :stairs")
		}

		pa := parseArgs(args[1:])
		if len(pa.positional) > 0 {
			return zygo.SexpNull, fmt.Errorf("element: unexpected argument %s", pa.positional[0].SexpString(nil))
		}
		in := geometry.Intent{ElementType: elementType}

		from, ok := pa.kw["from"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("element %s: :from is required", elementType)
		}
		if in.PointA, err = toVec3(from); err != nil {
			return zygo.SexpNull, fmt.Errorf("element %s: from: %w", elementType, err)
		}
		to, ok := pa.kw["to"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("element %s: :to is required", elementType)
		}
		if in.PointB, err = toVec3(to); err != nil {
			return zygo.SexpNull, fmt.Errorf("element %s: to: %w", elementType, err)
		}

		for kw, v := range pa.kw {
			switch kw {
			case "from", "to":
			case "name":
				if in.Name, err = toString(v); err != nil {
					return zygo.SexpNull, fmt.Errorf("element %s: name: %w", elementType, err)
				}
			case "material":
				m, err := toKeywordString(v)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("element %s: material: %w", elementType, err)
				}
				if _, ok := geometry.LookupMaterial(m); !ok {
					return zygo.SexpNull, fmt.Errorf("element %s: unknown material %q", elementType, m)
				}
				in.Material = m
			default:
				f, err := toFloat64(v)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("element %s: %s: %w", elementType, kw, err)
				}
				if in.Parameters == nil {
					in.Parameters = make(map[string]float64)
				}
				in.Parameters[paramName(kw)] = f
			}
		}

		if err := db.addIntent(in); err != nil {
			return zygo.SexpNull, fmt.Errorf("element %s: %w", elementType, err)
		}
		stored := db.d.Intents[len(db.d.Intents)-1]
		return &sexpElement{name: stored.Name, elementType: elementType}, nil
	})

	// -----------------------------------------------------------------------
	// (obstacle "duct" :min (vec3 0 0 2400) :max (vec3 6000 400 2800)
	//           :clearance 100)
	// -----------------------------------------------------------------------
	env.AddFunction("obstacle", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		db.obstacle++
		ob := geometry.Obstacle{Name: fmt.Sprintf("obstacle-%d", db.obstacle)}

		if len(pa.positional) > 0 {
			s, err := toString(pa.positional[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("obstacle: name: %w", err)
			}
			ob.Name = s
		}
		ob.ID = ob.Name

		lo, ok := pa.kw["min"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("obstacle %s: :min is required", ob.Name)
		}
		hi, ok := pa.kw["max"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("obstacle %s: :max is required", ob.Name)
		}
		var err error
		if ob.Bounds.Min, err = toVec3(lo); err != nil {
			return zygo.SexpNull, fmt.Errorf("obstacle %s: min: %w", ob.Name, err)
		}
		if ob.Bounds.Max, err = toVec3(hi); err != nil {
			return zygo.SexpNull, fmt.Errorf("obstacle %s: max: %w", ob.Name, err)
		}
		if !ob.Bounds.IsValid() {
			return zygo.SexpNull, fmt.Errorf("obstacle %s: min must not exceed max", ob.Name)
		}
		if v, ok := pa.kw["clearance"]; ok {
			if ob.Clearance, err = toFloat64(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("obstacle %s: clearance: %w", ob.Name, err)
			}
		}

		db.d.Environment.Obstacles = append(db.d.Environment.Obstacles, ob)
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (floor-level 150)
	// -----------------------------------------------------------------------
	env.AddFunction("floor_level", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("floor-level requires exactly 1 argument, got %d", len(args))
		}
		f, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("floor-level: %w", err)
		}
		db.d.Environment.FloorLevel = f
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (connect s1 "p1" :kind :welded :at (vec3 4000 0 3000))
	// -----------------------------------------------------------------------
	env.AddFunction("connect", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 2 {
			return zygo.SexpNull, fmt.Errorf("connect requires two elements, got %d", len(pa.positional))
		}
		from, err := toElementName(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("connect: from: %w", err)
		}
		to, err := toElementName(pa.positional[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("connect: to: %w", err)
		}
		c := geometry.Connection{From: from, To: to, Kind: geometry.ConnectionBolted}

		if v, ok := pa.kw["kind"]; ok {
			if c.Kind, err = toConnectionKind(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("connect: kind: %w", err)
			}
		}
		if v, ok := pa.kw["at"]; ok {
			if c.Point, err = toVec3(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("connect: at: %w", err)
			}
		} else {
			db.pointless = append(db.pointless, len(db.d.Connections))
		}

		db.d.Connections = append(db.d.Connections, c)
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (assembly "mezzanine" s1 p1 ...)
	// -----------------------------------------------------------------------
	env.AddFunction("assembly", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 {
			return zygo.SexpNull, fmt.Errorf("assembly requires a name argument")
		}

		asmName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("assembly: name: %w", err)
		}
		if db.d.Name != "" {
			return zygo.SexpNull, fmt.Errorf("assembly: already declared as %q", db.d.Name)
		}

		for i := 1; i < len(args); i++ {
			if _, ok := args[i].(*sexpElement); !ok {
				return zygo.SexpNull, fmt.Errorf("assembly: child %d: expected element reference, got %T (%s)",
					i, args[i], args[i].SexpString(nil))
			}
		}

		db.d.Name = asmName
		return zygo.SexpNull, nil
	})
}

// Package builtins holds the static signature table for BR system
// functions. The table drives call-site classification, completion,
// hover, signature help and argument checking.
package builtins

import "strings"

// ParamKind classifies a parameter slot.
type ParamKind int

const (
	ParamNumber ParamKind = iota
	ParamString
	ParamNumberArray
	ParamStringArray
	ParamAny
)

func (k ParamKind) String() string {
	switch k {
	case ParamNumber:
		return "numeric"
	case ParamString:
		return "string"
	case ParamNumberArray:
		return "numeric array"
	case ParamStringArray:
		return "string array"
	default:
		return "any"
	}
}

// Param is one parameter slot of a system function signature.
type Param struct {
	Name     string
	Kind     ParamKind
	Optional bool
}

// Signature describes one callable form of a system function. A name
// may map to several signatures when the function is overloaded.
type Signature struct {
	Name   string
	Params []Param
	Doc    string
}

// MinArgs returns how many leading required parameters the signature has.
func (s Signature) MinArgs() int {
	n := 0
	for _, p := range s.Params {
		if p.Optional {
			break
		}
		n++
	}
	return n
}

// Label renders the signature for display, e.g. `Pos(haystack$, needle$[, start])`.
func (s Signature) Label() string {
	var b strings.Builder
	b.WriteString(s.Name)
	b.WriteByte('(')
	opt := false
	for i, p := range s.Params {
		switch {
		case p.Optional && !opt && i > 0:
			opt = true
			b.WriteString("[, ")
		case p.Optional && !opt:
			opt = true
			b.WriteByte('[')
		case i > 0:
			b.WriteString(", ")
		}
		if p.Kind == ParamNumberArray || p.Kind == ParamStringArray {
			b.WriteString("mat ")
		}
		b.WriteString(p.Name)
	}
	if opt {
		b.WriteByte(']')
	}
	b.WriteByte(')')
	return b.String()
}

// parseParam infers a parameter's kind from its spec: a trailing `$`
// means string, a `mat ` prefix means array, a leading `;` marks the
// start of the optional section.
func parseParam(spec string, optional bool) Param {
	p := Param{Name: spec, Optional: optional}
	name := spec
	if strings.HasPrefix(strings.ToLower(name), "mat ") {
		name = name[4:]
		p.Kind = ParamNumberArray
		if strings.HasSuffix(name, "$") {
			p.Kind = ParamStringArray
		}
	} else if strings.HasSuffix(name, "$") {
		p.Kind = ParamString
	} else {
		p.Kind = ParamNumber
	}
	p.Name = name
	return p
}

// sig builds a signature from parameter specs. Specs after the one
// beginning with ";" are optional.
func sig(name, doc string, specs ...string) Signature {
	s := Signature{Name: name, Doc: doc}
	optional := false
	for _, spec := range specs {
		if strings.HasPrefix(spec, ";") {
			optional = true
			spec = strings.TrimPrefix(spec, ";")
		}
		s.Params = append(s.Params, parseParam(spec, optional))
	}
	return s
}

var table = []Signature{
	sig("Abs", "Returns the absolute value of a number.", "x"),
	sig("Aidx", "Returns the ascending sort order of a string array.", "mat a$"),
	sig("Atn", "Returns the arctangent of a number, in radians.", "x"),
	sig("Bell", "Rings the terminal bell and returns an empty string."),
	sig("Ceil", "Rounds a number up to the nearest integer.", "x"),
	sig("Chr$", "Returns the character for a character code.", "code"),
	sig("Cnvrt$", "Converts a number to its string form under a format spec.", "spec$", "value"),
	sig("Cos", "Returns the cosine of an angle given in radians.", "x"),
	sig("Date", "Returns the current date as a number in the given format.", ";format$"),
	sig("Date$", "Returns the current date as a string in the given format.", ";format$"),
	sig("Days", "Returns the serial day number for a date.", "date", ";format$"),
	sig("Decrypt$", "Decrypts a string produced by Encrypt$.", "value$"),
	sig("Decrypt$", "Decrypts a string using an explicit algorithm.", "value$", "algorithm$"),
	sig("Didx", "Returns the descending sort order of a string array.", "mat a$"),
	sig("Encrypt$", "Encrypts a string.", "value$", ";algorithm$"),
	sig("Exists", "Reports whether a file exists.", "path$"),
	sig("Exp", "Returns e raised to the given power.", "x"),
	sig("File", "Returns the status of an open file handle.", "handle"),
	sig("Fkey", "Returns the last function key pressed.", ";set"),
	sig("Hex$", "Returns the hexadecimal representation of a string.", "value$"),
	sig("Int", "Rounds a number down to the nearest integer.", "x"),
	sig("Kstat$", "Reads keyboard status or a pending keystroke.", ";wait"),
	sig("Len", "Returns the length of a string.", "value$"),
	sig("Log", "Returns the natural logarithm of a number.", "x"),
	sig("Lpad$", "Left-pads a string to a length.", "value$", "length"),
	sig("Lrec", "Returns the last record number of an open file.", "handle"),
	sig("Lwrc$", "Converts a string to lower case.", "value$"),
	sig("Max", "Returns the largest of its arguments.", "x", "y"),
	sig("Min", "Returns the smallest of its arguments.", "x", "y"),
	sig("Mod", "Returns the remainder of x divided by y.", "x", "y"),
	sig("Msg", "Sends a message to the operator console.", "text$"),
	sig("Msgbox", "Shows a message box and returns the chosen button.", "prompt$", ";caption$", "buttons$", "icon$"),
	sig("Ord", "Returns the character code of the first character.", "value$"),
	sig("Pi", "Returns the value of pi."),
	sig("Pos", "Returns the position of a substring, or zero.", "haystack$", "needle$", ";start"),
	sig("Rec", "Returns the current record number of an open file.", "handle"),
	sig("Rem", "Returns the remainder of x divided by y.", "x", "y"),
	sig("Rln", "Returns the record length of an open file.", "handle"),
	sig("Rnd", "Returns a pseudo random number.", ";seed"),
	sig("Rpad$", "Right-pads a string to a length.", "value$", "length"),
	sig("Rpt$", "Repeats a string a number of times.", "value$", "count"),
	sig("Sin", "Returns the sine of an angle given in radians.", "x"),
	sig("Sgn", "Returns the sign of a number as -1, 0 or 1.", "x"),
	sig("Sqr", "Returns the square root of a number.", "x"),
	sig("Srep$", "Replaces occurrences of a substring.", "value$", "search$", "replace$"),
	sig("Str$", "Converts a number to its string form.", "x"),
	sig("Sum", "Returns the sum of a numeric array.", "mat a"),
	sig("Tab", "Moves print output to a column.", "column"),
	sig("Time$", "Returns the current time as a string."),
	sig("Trim$", "Removes leading and trailing blanks.", "value$"),
	sig("Udim", "Returns the upper dimension of an array.", "mat a", ";dimension"),
	sig("Uprc$", "Converts a string to upper case.", "value$"),
	sig("Val", "Converts a string to a number.", "value$"),
}

var byName = func() map[string][]Signature {
	m := make(map[string][]Signature, len(table))
	for _, s := range table {
		key := strings.ToLower(s.Name)
		m[key] = append(m[key], s)
	}
	return m
}()

// Lookup returns all signatures registered for a name, case
// insensitively, or nil when the name is not a system function.
func Lookup(name string) []Signature {
	return byName[strings.ToLower(name)]
}

// IsBuiltin reports whether name is a known system function.
func IsBuiltin(name string) bool {
	_, ok := byName[strings.ToLower(name)]
	return ok
}

// All returns every signature in display order.
func All() []Signature {
	out := make([]Signature, len(table))
	copy(out, table)
	return out
}

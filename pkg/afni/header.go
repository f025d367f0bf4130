// Package afni reads and writes AFNI datasets: the attribute-oriented .HEAD
// text header and the raw .BRIK voxel array it describes.
package afni

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"afniplace/internal/models"
)

// Kind is the declared type of a header attribute
type Kind int

const (
	StringAttr Kind = iota
	IntegerAttr
	FloatAttr
)

// String returns the keyword used for the kind on the "type = " line
func (k Kind) String() string {
	switch k {
	case StringAttr:
		return "string-attribute"
	case IntegerAttr:
		return "integer-attribute"
	case FloatAttr:
		return "float-attribute"
	}
	return fmt.Sprintf("attribute-kind-%d", int(k))
}

func parseKind(s string) (Kind, bool) {
	switch s {
	case "string-attribute":
		return StringAttr, true
	case "integer-attribute":
		return IntegerAttr, true
	case "float-attribute":
		return FloatAttr, true
	}
	return 0, false
}

// Attribute is one typed header entry.
//
// For numeric kinds Count equals the length of Ints or Floats. For strings
// Count is carried as read (AFNI counts the characters after the opening
// quote, including the '~' terminator).
type Attribute struct {
	Name   string
	Kind   Kind
	Count  int
	Str    string
	Ints   []int
	Floats []float64
}

// NewStringAttribute builds a string attribute from its raw value, e.g.
// "'LSB_FIRST~", computing Count the way AFNI does.
func NewStringAttribute(name, value string) Attribute {
	return Attribute{Name: name, Kind: StringAttr, Count: len(strings.TrimPrefix(value, "'")), Str: value}
}

func NewIntAttribute(name string, values ...int) Attribute {
	return Attribute{Name: name, Kind: IntegerAttr, Count: len(values), Ints: append([]int(nil), values...)}
}

func NewFloatAttribute(name string, values ...float64) Attribute {
	return Attribute{Name: name, Kind: FloatAttr, Count: len(values), Floats: append([]float64(nil), values...)}
}

// Tokens splits a string attribute on its internal delimiter after removing
// the leading quote and the trailing '~' terminator.
func (a Attribute) Tokens(sep string) []string {
	s := strings.TrimSuffix(strings.TrimPrefix(a.Str, "'"), "~")
	return strings.Split(s, sep)
}

// valueLine renders the value the way it is written to a .HEAD file
func (a Attribute) valueLine() string {
	switch a.Kind {
	case IntegerAttr:
		parts := make([]string, len(a.Ints))
		for i, v := range a.Ints {
			parts[i] = strconv.Itoa(v)
		}
		return strings.Join(parts, " ")
	case FloatAttr:
		parts := make([]string, len(a.Floats))
		for i, v := range a.Floats {
			parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		return strings.Join(parts, " ")
	}
	return a.Str
}

// Table is the ordered set of attributes present in one header. It only
// ever holds attributes that were read or explicitly set.
type Table struct {
	order []string
	attrs map[string]Attribute
}

func NewTable() *Table {
	return &Table{attrs: make(map[string]Attribute)}
}

// Get returns the named attribute and whether it is present
func (t *Table) Get(name string) (Attribute, bool) {
	a, ok := t.attrs[name]
	return a, ok
}

// Has reports whether the attribute is present
func (t *Table) Has(name string) bool {
	_, ok := t.attrs[name]
	return ok
}

// Set adds or replaces an attribute. New names are appended to the order.
func (t *Table) Set(a Attribute) {
	if _, ok := t.attrs[a.Name]; !ok {
		t.order = append(t.order, a.Name)
	}
	t.attrs[a.Name] = a
}

// Names returns attribute names in table order
func (t *Table) Names() []string {
	return append([]string(nil), t.order...)
}

// Len returns the number of attributes present
func (t *Table) Len() int {
	return len(t.order)
}

// Ints returns the values of an integer attribute
func (t *Table) Ints(name string) ([]int, bool) {
	a, ok := t.attrs[name]
	if !ok || a.Kind != IntegerAttr {
		return nil, false
	}
	return a.Ints, true
}

// Floats returns the values of a float attribute
func (t *Table) Floats(name string) ([]float64, bool) {
	a, ok := t.attrs[name]
	if !ok || a.Kind != FloatAttr {
		return nil, false
	}
	return a.Floats, true
}

// String returns the raw value of a string attribute
func (t *Table) String(name string) (string, bool) {
	a, ok := t.attrs[name]
	if !ok || a.Kind != StringAttr {
		return "", false
	}
	return a.Str, true
}

// Clone returns a deep copy so datasets never share header state
func (t *Table) Clone() *Table {
	c := NewTable()
	for _, name := range t.order {
		a := t.attrs[name]
		a.Ints = append([]int(nil), a.Ints...)
		a.Floats = append([]float64(nil), a.Floats...)
		c.Set(a)
	}
	return c
}

// rawAttr is one name/type/count triple located in the header text along
// with the lines that make up its value block.
type rawAttr struct {
	name   string
	typ    string
	count  string
	values []string
	line   int
}

// collapse trims a line and folds internal runs of whitespace to one space
func collapse(line string) string {
	return strings.Join(strings.Fields(line), " ")
}

func marker(line, key string) (string, bool) {
	c := collapse(line)
	prefix := key + " = "
	if strings.HasPrefix(c, prefix) {
		return strings.TrimSpace(c[len(prefix):]), true
	}
	if c == key+" =" {
		return "", true
	}
	return "", false
}

// scan locates every "name = " marker with its surrounding type and count
// lines. Values run until the next "type = " line.
func scan(lines []string) []rawAttr {
	var found []rawAttr
	for i, line := range lines {
		name, ok := marker(line, "name")
		if !ok || name == "" {
			continue
		}
		ra := rawAttr{name: name, line: i + 1}
		if i > 0 {
			ra.typ, _ = marker(lines[i-1], "type")
		}
		start := i + 1
		if i+1 < len(lines) {
			if c, ok := marker(lines[i+1], "count"); ok {
				ra.count = c
				start = i + 2
			}
		}
		for j := start; j < len(lines); j++ {
			if _, ok := marker(lines[j], "type"); ok {
				break
			}
			ra.values = append(ra.values, lines[j])
		}
		found = append(found, ra)
	}
	return found
}

// Parse reads header text into a Table.
//
// Every registered name found in the text is decoded; names that appear in
// the text but not in reg are added to reg first. A name line without a
// preceding type line is not an attribute and is skipped. Registered names that do
// not appear are absent from the result. The table is ordered by the
// registry. path is used only for error context.
func Parse(r io.Reader, reg *Registry, path string) (*Table, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read header %s: %w", path, err)
	}

	found := scan(lines)
	byName := make(map[string]rawAttr, len(found))
	for _, ra := range found {
		if ra.typ == "" {
			reg.skipped(ra.name, ra.line)
			continue
		}
		reg.Extend(ra.name)
		if _, dup := byName[ra.name]; !dup {
			byName[ra.name] = ra
		}
	}

	table := NewTable()
	for _, name := range reg.Names() {
		ra, ok := byName[name]
		if !ok {
			continue
		}
		attr, err := decodeAttr(ra, path)
		if err != nil {
			return nil, err
		}
		table.Set(attr)
	}
	return table, nil
}

// ParseString is Parse over an in-memory header
func ParseString(text string, reg *Registry) (*Table, error) {
	return Parse(strings.NewReader(text), reg, "")
}

func decodeAttr(ra rawAttr, path string) (Attribute, error) {
	kind, ok := parseKind(ra.typ)
	if !ok {
		return Attribute{}, models.ParseErrorf(path, ra.name, "line %d: unrecognized attribute type %q", ra.line, ra.typ)
	}
	count, err := strconv.Atoi(ra.count)
	if err != nil || count < 0 {
		return Attribute{}, models.ParseErrorf(path, ra.name, "line %d: invalid count %q", ra.line, ra.count)
	}

	attr := Attribute{Name: ra.name, Kind: kind, Count: count}
	switch kind {
	case StringAttr:
		attr.Str = strings.TrimSpace(strings.Join(ra.values, "\n"))
		return attr, nil
	case IntegerAttr:
		fields := strings.Fields(strings.Join(ra.values, " "))
		attr.Ints = make([]int, len(fields))
		for i, f := range fields {
			v, err := strconv.Atoi(f)
			if err != nil {
				return Attribute{}, models.ParseErrorf(path, ra.name, "invalid integer %q", f)
			}
			attr.Ints[i] = v
		}
	case FloatAttr:
		fields := strings.Fields(strings.Join(ra.values, " "))
		attr.Floats = make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return Attribute{}, models.ParseErrorf(path, ra.name, "invalid float %q", f)
			}
			attr.Floats[i] = v
		}
	}

	n := len(attr.Ints) + len(attr.Floats)
	if n != count {
		return Attribute{}, models.ParseErrorf(path, ra.name, "count is %d but %d values were found", count, n)
	}
	return attr, nil
}

// Serialize writes the table as .HEAD text: for each attribute a type, name
// and count line, the value line and a blank separator.
func Serialize(w io.Writer, t *Table) error {
	bw := bufio.NewWriter(w)
	for _, name := range t.order {
		a := t.attrs[name]
		fmt.Fprintf(bw, "type  = %s\n", a.Kind)
		fmt.Fprintf(bw, "name  = %s\n", a.Name)
		fmt.Fprintf(bw, "count = %d\n", a.Count)
		fmt.Fprintf(bw, "%s\n\n", a.valueLine())
	}
	return bw.Flush()
}

// SerializeString returns the .HEAD text for t
func SerializeString(t *Table) string {
	var sb strings.Builder
	Serialize(&sb, t)
	return sb.String()
}

package schemaimport

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// ErrUnsupported marks an expression the evaluator cannot reduce to a literal.
var ErrUnsupported = errors.New("unsupported expression")

// object keeps insertion order, which fixes category and collection order.
type object struct {
	keys []string
	vals map[string]any
}

func newObject() *object { return &object{vals: make(map[string]any)} }

func (o *object) set(k string, v any) {
	if _, ok := o.vals[k]; !ok {
		o.keys = append(o.keys, k)
	}
	o.vals[k] = v
}

func (o *object) get(k string) (any, bool) {
	v, ok := o.vals[k]
	return v, ok
}

func (o *object) str(k string) string {
	s, _ := o.vals[k].(string)
	return s
}

type scope struct {
	vars   map[string]any
	parent *scope
}

func (s *scope) lookup(name string) (any, bool) {
	for c := s; c != nil; c = c.parent {
		if v, ok := c.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

type declState struct {
	node  *ts.Node
	value any
	err   error
	done  bool
	busy  bool
}

// evaluator reduces top-level declarations to plain values: string,
// float64, bool, nil, []any and *object. Declarations are evaluated on
// first reference.
type evaluator struct {
	src   []byte
	decls map[string]*declState
}

func newEvaluator(src []byte) *evaluator {
	return &evaluator{src: src, decls: make(map[string]*declState)}
}

func (e *evaluator) declare(name string, value *ts.Node) {
	if _, ok := e.decls[name]; !ok {
		e.decls[name] = &declState{node: value}
	}
}

func (e *evaluator) decl(name string) (any, error) {
	d, ok := e.decls[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown identifier %s", ErrUnsupported, name)
	}
	if d.done {
		return d.value, d.err
	}
	if d.busy {
		return nil, fmt.Errorf("%w: %s refers to itself", ErrUnsupported, name)
	}
	d.busy = true
	d.value, d.err = e.eval(d.node, nil)
	d.busy, d.done = false, true
	return d.value, d.err
}

func (e *evaluator) text(n *ts.Node) string { return n.Utf8Text(e.src) }

func namedChildren(n *ts.Node) []*ts.Node {
	count := n.NamedChildCount()
	out := make([]*ts.Node, 0, count)
	for i := uint(0); i < count; i++ {
		c := n.NamedChild(i)
		if c == nil || c.Kind() == "comment" {
			continue
		}
		out = append(out, c)
	}
	return out
}

func firstNamed(n *ts.Node) *ts.Node {
	kids := namedChildren(n)
	if len(kids) == 0 {
		return nil
	}
	return kids[0]
}

func unsupported(n *ts.Node) error {
	p := n.StartPosition()
	return fmt.Errorf("%w %s at line %d", ErrUnsupported, n.Kind(), p.Row+1)
}

func (e *evaluator) eval(n *ts.Node, sc *scope) (any, error) {
	if n == nil {
		return nil, fmt.Errorf("%w: empty expression", ErrUnsupported)
	}
	switch n.Kind() {
	case "as_expression", "satisfies_expression", "parenthesized_expression", "non_null_expression":
		return e.eval(firstNamed(n), sc)
	case "string":
		raw := e.text(n)
		if len(raw) < 2 {
			return "", nil
		}
		return unescape(raw[1 : len(raw)-1]), nil
	case "template_string":
		return e.template(n, sc)
	case "number":
		return parseNumber(e.text(n))
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "null", "undefined":
		return nil, nil
	case "identifier", "shorthand_property_identifier":
		return e.ident(e.text(n), sc)
	case "unary_expression":
		return e.unary(n, sc)
	case "binary_expression":
		return e.binary(n, sc)
	case "array":
		return e.array(n, sc)
	case "object":
		return e.object(n, sc)
	case "member_expression":
		return e.member(n, sc)
	case "call_expression":
		return e.call(n, sc)
	default:
		return nil, unsupported(n)
	}
}

func (e *evaluator) ident(name string, sc *scope) (any, error) {
	if name == "undefined" {
		return nil, nil
	}
	if v, ok := sc.lookup(name); ok {
		return v, nil
	}
	return e.decl(name)
}

func (e *evaluator) template(n *ts.Node, sc *scope) (string, error) {
	var b strings.Builder
	start := n.StartByte() + 1
	end := n.EndByte() - 1
	pos := start
	for _, c := range namedChildren(n) {
		if c.Kind() != "template_substitution" {
			continue
		}
		b.WriteString(unescape(string(e.src[pos:c.StartByte()])))
		v, err := e.eval(firstNamed(c), sc)
		if err != nil {
			return "", err
		}
		b.WriteString(toString(v))
		pos = c.EndByte()
	}
	if pos < end {
		b.WriteString(unescape(string(e.src[pos:end])))
	}
	return b.String(), nil
}

func (e *evaluator) unary(n *ts.Node, sc *scope) (any, error) {
	op := n.ChildByFieldName("operator")
	arg, err := e.eval(n.ChildByFieldName("argument"), sc)
	if err != nil || op == nil {
		return nil, err
	}
	switch e.text(op) {
	case "-":
		if f, ok := arg.(float64); ok {
			return -f, nil
		}
	case "+":
		if f, ok := arg.(float64); ok {
			return f, nil
		}
	case "!":
		return !truthy(arg), nil
	}
	return nil, unsupported(n)
}

func (e *evaluator) binary(n *ts.Node, sc *scope) (any, error) {
	op := n.ChildByFieldName("operator")
	if op == nil || e.text(op) != "+" {
		return nil, unsupported(n)
	}
	l, err := e.eval(n.ChildByFieldName("left"), sc)
	if err != nil {
		return nil, err
	}
	r, err := e.eval(n.ChildByFieldName("right"), sc)
	if err != nil {
		return nil, err
	}
	lf, lok := l.(float64)
	rf, rok := r.(float64)
	if lok && rok {
		return lf + rf, nil
	}
	return toString(l) + toString(r), nil
}

func (e *evaluator) array(n *ts.Node, sc *scope) ([]any, error) {
	out := make([]any, 0)
	for _, c := range namedChildren(n) {
		if c.Kind() == "spread_element" {
			v, err := e.eval(firstNamed(c), sc)
			if err != nil {
				return nil, err
			}
			items, ok := v.([]any)
			if !ok {
				return nil, fmt.Errorf("%w: spread of non-array at line %d", ErrUnsupported, c.StartPosition().Row+1)
			}
			out = append(out, items...)
			continue
		}
		v, err := e.eval(c, sc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (e *evaluator) object(n *ts.Node, sc *scope) (*object, error) {
	obj := newObject()
	for _, c := range namedChildren(n) {
		switch c.Kind() {
		case "pair":
			key, err := e.key(c.ChildByFieldName("key"), sc)
			if err != nil {
				return nil, err
			}
			v, err := e.eval(c.ChildByFieldName("value"), sc)
			if err != nil {
				return nil, err
			}
			obj.set(key, v)
		case "shorthand_property_identifier":
			name := e.text(c)
			v, err := e.ident(name, sc)
			if err != nil {
				return nil, err
			}
			obj.set(name, v)
		case "spread_element":
			v, err := e.eval(firstNamed(c), sc)
			if err != nil {
				return nil, err
			}
			src, ok := v.(*object)
			if !ok {
				return nil, fmt.Errorf("%w: spread of non-object at line %d", ErrUnsupported, c.StartPosition().Row+1)
			}
			for _, k := range src.keys {
				obj.set(k, src.vals[k])
			}
		case "method_definition":
			// Methods carry no schema data.
		default:
			return nil, unsupported(c)
		}
	}
	return obj, nil
}

func (e *evaluator) key(n *ts.Node, sc *scope) (string, error) {
	if n == nil {
		return "", fmt.Errorf("%w: missing key", ErrUnsupported)
	}
	switch n.Kind() {
	case "property_identifier":
		return e.text(n), nil
	case "string", "number":
		v, err := e.eval(n, sc)
		return toString(v), err
	case "computed_property_name":
		v, err := e.eval(firstNamed(n), sc)
		return toString(v), err
	default:
		return "", unsupported(n)
	}
}

func (e *evaluator) member(n *ts.Node, sc *scope) (any, error) {
	recv, err := e.eval(n.ChildByFieldName("object"), sc)
	if err != nil {
		return nil, err
	}
	prop := n.ChildByFieldName("property")
	if prop == nil {
		return nil, unsupported(n)
	}
	name := e.text(prop)
	switch r := recv.(type) {
	case *object:
		if v, ok := r.get(name); ok {
			return v, nil
		}
		return nil, fmt.Errorf("%w: no property %s at line %d", ErrUnsupported, name, prop.StartPosition().Row+1)
	case []any:
		if name == "length" {
			return float64(len(r)), nil
		}
	case string:
		if name == "length" {
			return float64(utf8.RuneCountInString(r)), nil
		}
	}
	return nil, unsupported(n)
}

func (e *evaluator) args(n *ts.Node, sc *scope) ([]any, []*ts.Node, error) {
	argsNode := n.ChildByFieldName("arguments")
	if argsNode == nil {
		return nil, nil, unsupported(n)
	}
	nodes := namedChildren(argsNode)
	vals := make([]any, 0, len(nodes))
	for _, a := range nodes {
		if a.Kind() == "arrow_function" {
			vals = append(vals, nil)
			continue
		}
		v, err := e.eval(a, sc)
		if err != nil {
			return nil, nil, err
		}
		vals = append(vals, v)
	}
	return vals, nodes, nil
}

func (e *evaluator) call(n *ts.Node, sc *scope) (any, error) {
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return nil, unsupported(n)
	}
	args, argNodes, err := e.args(n, sc)
	if err != nil {
		return nil, err
	}

	if fn.Kind() == "identifier" {
		if e.text(fn) == "String" && len(args) == 1 {
			return toString(args[0]), nil
		}
		return nil, unsupported(n)
	}
	if fn.Kind() != "member_expression" {
		return nil, unsupported(n)
	}
	recvNode := fn.ChildByFieldName("object")
	method := e.text(fn.ChildByFieldName("property"))

	if recvNode.Kind() == "identifier" && e.text(recvNode) == "Object" {
		if len(args) != 1 {
			return nil, unsupported(n)
		}
		obj, ok := args[0].(*object)
		if !ok {
			return nil, unsupported(n)
		}
		switch method {
		case "keys":
			out := make([]any, len(obj.keys))
			for i, k := range obj.keys {
				out[i] = k
			}
			return out, nil
		case "values", "entries":
			out := make([]any, len(obj.keys))
			for i, k := range obj.keys {
				if method == "values" {
					out[i] = obj.vals[k]
				} else {
					out[i] = []any{k, obj.vals[k]}
				}
			}
			return out, nil
		}
		return nil, unsupported(n)
	}

	recv, err := e.eval(recvNode, sc)
	if err != nil {
		return nil, err
	}
	switch r := recv.(type) {
	case []any:
		if (method == "map" || method == "flatMap") && len(argNodes) >= 1 && argNodes[0].Kind() == "arrow_function" {
			return e.mapArray(r, argNodes[0], method == "flatMap", sc)
		}
	case string:
		switch {
		case method == "replace" && len(args) == 2:
			return strings.Replace(r, toString(args[0]), toString(args[1]), 1), nil
		case method == "replaceAll" && len(args) == 2:
			return strings.ReplaceAll(r, toString(args[0]), toString(args[1])), nil
		case method == "toLowerCase":
			return strings.ToLower(r), nil
		case method == "toUpperCase":
			return strings.ToUpper(r), nil
		}
	}
	return nil, unsupported(n)
}

func (e *evaluator) mapArray(items []any, fn *ts.Node, flat bool, sc *scope) ([]any, error) {
	bind, err := e.params(fn)
	if err != nil {
		return nil, err
	}
	body := fn.ChildByFieldName("body")
	if body == nil || body.Kind() == "statement_block" {
		return nil, fmt.Errorf("%w: arrow function without expression body at line %d", ErrUnsupported, fn.StartPosition().Row+1)
	}

	out := make([]any, 0, len(items))
	for i, item := range items {
		inner := &scope{vars: bind(item, float64(i)), parent: sc}
		v, err := e.eval(body, inner)
		if err != nil {
			return nil, err
		}
		if flat {
			if list, ok := v.([]any); ok {
				out = append(out, list...)
				continue
			}
		}
		out = append(out, v)
	}
	return out, nil
}

// params returns a binder for the arrow's first parameter and optional
// index parameter. Identifiers and array patterns are supported.
func (e *evaluator) params(fn *ts.Node) (func(item any, index float64) map[string]any, error) {
	var patterns []*ts.Node
	if p := fn.ChildByFieldName("parameter"); p != nil {
		patterns = []*ts.Node{p}
	} else if ps := fn.ChildByFieldName("parameters"); ps != nil {
		for _, p := range namedChildren(ps) {
			if k := p.Kind(); k == "required_parameter" || k == "optional_parameter" {
				p = p.ChildByFieldName("pattern")
			}
			if p != nil {
				patterns = append(patterns, p)
			}
		}
	}
	if len(patterns) == 0 || len(patterns) > 2 {
		return nil, fmt.Errorf("%w: arrow parameters at line %d", ErrUnsupported, fn.StartPosition().Row+1)
	}

	for _, p := range patterns {
		switch p.Kind() {
		case "identifier":
		case "array_pattern":
			for _, el := range namedChildren(p) {
				if el.Kind() != "identifier" {
					return nil, unsupported(el)
				}
			}
		default:
			return nil, unsupported(p)
		}
	}

	bind := func(item any, index float64) map[string]any {
		vars := make(map[string]any, 4)
		bindPattern(e, patterns[0], item, vars)
		if len(patterns) == 2 {
			bindPattern(e, patterns[1], index, vars)
		}
		return vars
	}
	return bind, nil
}

func bindPattern(e *evaluator, p *ts.Node, v any, vars map[string]any) {
	if p.Kind() == "identifier" {
		vars[e.text(p)] = v
		return
	}
	list, _ := v.([]any)
	for i, el := range namedChildren(p) {
		if i < len(list) {
			vars[e.text(el)] = list[i]
		} else {
			vars[e.text(el)] = nil
		}
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	default:
		return true
	}
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return "undefined"
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, len(t))
		for i, x := range t {
			parts[i] = toString(x)
		}
		return strings.Join(parts, ",")
	default:
		return "[object Object]"
	}
}

func parseNumber(text string) (float64, error) {
	text = strings.ReplaceAll(text, "_", "")
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return f, nil
	}
	i, err := strconv.ParseInt(text, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: number %q", ErrUnsupported, text)
	}
	return float64(i), nil
}

func unescape(raw string) string {
	if !strings.Contains(raw, `\`) {
		return raw
	}
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 >= len(raw) {
			b.WriteByte(c)
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'u':
			if i+4 < len(raw) {
				if r, err := strconv.ParseUint(raw[i+1:i+5], 16, 32); err == nil {
					b.WriteRune(rune(r))
					i += 4
					continue
				}
			}
			b.WriteByte('u')
		default:
			b.WriteByte(raw[i])
		}
	}
	return b.String()
}

// Package treefile reads and writes expression trees as YAML documents.
//
// A stream holds one or more documents:
//
//	version: 1.0.0
//	name: scenario
//	expr:
//	  call: abs
//	  arg:
//	    op: "*"
//	    left: {var: x}
//	    right: {num: 4}
//
// Each expression mapping carries exactly one of the keys num, var, op or
// call. Documents are validated before any node is constructed, so malformed
// input yields an error instead of a construction panic.
package treefile

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/orizon-lang/exprtree/internal/ast"
	"github.com/orizon-lang/exprtree/internal/position"
)

// CurrentVersion is the document version written by Encode.
const CurrentVersion = "1.0.0"

// SupportedVersions is the constraint a document version must satisfy.
const SupportedVersions = "^1.0"

var supported = func() *semver.Constraints {
	c, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		panic(err)
	}
	return c
}()

// Document is one expression tree with its metadata.
type Document struct {
	Version string
	Name    string
	Expr    ast.Expression
}

// SyntaxError reports a malformed document.
type SyntaxError struct {
	Pos position.Position
	Msg string
}

func (e *SyntaxError) Error() string {
	return e.Pos.String() + ": " + e.Msg
}

type decoder struct {
	filename string
}

func (d *decoder) errorf(node *yaml.Node, format string, args ...interface{}) error {
	return &SyntaxError{
		Pos: position.FromNode(d.filename, node),
		Msg: fmt.Sprintf(format, args...),
	}
}

// Decode reads every document from r. filename is only used in error
// messages.
func Decode(r io.Reader, filename string) ([]Document, error) {
	d := &decoder{filename: filename}
	dec := yaml.NewDecoder(r)

	var docs []Document
	for {
		var root yaml.Node
		if err := dec.Decode(&root); err != nil {
			if errors.Is(err, io.EOF) {
				return docs, nil
			}
			return nil, errors.Wrapf(err, "reading %s", displayName(filename))
		}
		doc, err := d.document(&root)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
}

// DecodeString is Decode over an in-memory document stream.
func DecodeString(s string) ([]Document, error) {
	return Decode(strings.NewReader(s), "")
}

func (d *decoder) document(root *yaml.Node) (Document, error) {
	node := root
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		node = node.Content[0]
	}
	fields, err := d.mapping(node, "version", "name", "expr")
	if err != nil {
		return Document{}, err
	}

	doc := Document{Version: CurrentVersion}
	if v, ok := fields["version"]; ok {
		if doc.Version, err = d.version(v); err != nil {
			return Document{}, err
		}
	}
	if n, ok := fields["name"]; ok {
		if doc.Name, err = d.scalar(n, "name"); err != nil {
			return Document{}, err
		}
	}
	e, ok := fields["expr"]
	if !ok {
		return Document{}, d.errorf(node, "document has no expr")
	}
	if doc.Expr, err = d.expr(e); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func (d *decoder) version(node *yaml.Node) (string, error) {
	s, err := d.scalar(node, "version")
	if err != nil {
		return "", err
	}
	v, err := semver.NewVersion(s)
	if err != nil {
		return "", d.errorf(node, "invalid version %q", s)
	}
	if !supported.Check(v) {
		return "", d.errorf(node, "unsupported version %s, want %s", v, SupportedVersions)
	}
	return v.String(), nil
}

// expr validates one expression mapping and builds its node bottom up.
func (d *decoder) expr(node *yaml.Node) (ast.Expression, error) {
	fields, err := d.mapping(node, "num", "var", "op", "left", "right", "call", "arg")
	if err != nil {
		return nil, err
	}

	var kinds []string
	for _, k := range []string{"num", "var", "op", "call"} {
		if _, ok := fields[k]; ok {
			kinds = append(kinds, k)
		}
	}
	if len(kinds) != 1 {
		return nil, d.errorf(node, "expression needs exactly one of num, var, op, call; got %d", len(kinds))
	}

	switch kinds[0] {
	case "num":
		if err := d.only(node, fields, "num"); err != nil {
			return nil, err
		}
		var v float64
		if err := fields["num"].Decode(&v); err != nil {
			return nil, d.errorf(fields["num"], "num must be a number")
		}
		return ast.NewNumber(v), nil

	case "var":
		if err := d.only(node, fields, "var"); err != nil {
			return nil, err
		}
		name, err := d.scalar(fields["var"], "var")
		if err != nil {
			return nil, err
		}
		if name == "" {
			return nil, d.errorf(fields["var"], "variable name must not be empty")
		}
		return ast.NewVariable(name), nil

	case "op":
		if err := d.only(node, fields, "op", "left", "right"); err != nil {
			return nil, err
		}
		sym, err := d.scalar(fields["op"], "op")
		if err != nil {
			return nil, err
		}
		op, ok := ast.ParseOperator(sym)
		if !ok {
			return nil, d.errorf(fields["op"], "unsupported operator %q", sym)
		}
		left, err := d.operand(node, fields, "left")
		if err != nil {
			return nil, err
		}
		right, err := d.operand(node, fields, "right")
		if err != nil {
			return nil, err
		}
		return ast.NewBinaryOperation(left, op, right), nil

	default:
		if err := d.only(node, fields, "call", "arg"); err != nil {
			return nil, err
		}
		name, err := d.scalar(fields["call"], "call")
		if err != nil {
			return nil, err
		}
		fn, ok := ast.LookupFunction(name)
		if !ok {
			return nil, d.errorf(fields["call"], "unsupported function %q", name)
		}
		arg, err := d.operand(node, fields, "arg")
		if err != nil {
			return nil, err
		}
		return ast.NewCall(fn, arg), nil
	}
}

func (d *decoder) operand(parent *yaml.Node, fields map[string]*yaml.Node, key string) (ast.Expression, error) {
	child, ok := fields[key]
	if !ok {
		return nil, d.errorf(parent, "missing %s", key)
	}
	return d.expr(child)
}

// mapping returns the key/value pairs of a mapping node, rejecting unknown
// and duplicate keys.
func (d *decoder) mapping(node *yaml.Node, allowed ...string) (map[string]*yaml.Node, error) {
	if node.Kind != yaml.MappingNode {
		return nil, d.errorf(node, "expected a mapping")
	}
	fields := make(map[string]*yaml.Node, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if !contains(allowed, key.Value) {
			return nil, d.errorf(key, "unknown key %q", key.Value)
		}
		if _, dup := fields[key.Value]; dup {
			return nil, d.errorf(key, "duplicate key %q", key.Value)
		}
		fields[key.Value] = value
	}
	return fields, nil
}

// only rejects keys that do not belong to the expression kind.
func (d *decoder) only(node *yaml.Node, fields map[string]*yaml.Node, keys ...string) error {
	for k := range fields {
		if !contains(keys, k) {
			return d.errorf(node, "key %q is not valid for %s", k, keys[0])
		}
	}
	return nil
}

// scalar returns the text of a scalar node. Null (`null`, `~` or nothing)
// reads as the empty string.
func (d *decoder) scalar(node *yaml.Node, what string) (string, error) {
	if node.Kind != yaml.ScalarNode {
		return "", d.errorf(node, "%s must be a scalar", what)
	}
	if node.ShortTag() == "!!null" {
		return "", nil
	}
	return node.Value, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func displayName(filename string) string {
	if filename == "" {
		return "input"
	}
	return filename
}

// ===== Encoding =====

// Encode writes docs to w as a YAML stream. Documents without a version are
// written with CurrentVersion.
func Encode(w io.Writer, docs []Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	for i, doc := range docs {
		if doc.Expr == nil {
			return errors.Newf("document %d has no expression", i)
		}
		if err := enc.Encode(documentNode(doc)); err != nil {
			return errors.Wrapf(err, "encoding document %d", i)
		}
	}
	return errors.Wrap(enc.Close(), "flushing documents")
}

func documentNode(doc Document) *yaml.Node {
	version := doc.Version
	if version == "" {
		version = CurrentVersion
	}
	node := mappingNode()
	appendPair(node, "version", stringNode(version))
	if doc.Name != "" {
		appendPair(node, "name", stringNode(doc.Name))
	}
	appendPair(node, "expr", exprNode(doc.Expr))
	return node
}

func exprNode(e ast.Expression) *yaml.Node {
	node := mappingNode()
	switch n := e.(type) {
	case *ast.Number:
		appendPair(node, "num", numberNode(n.Value()))
	case *ast.Variable:
		appendPair(node, "var", stringNode(n.Name()))
	case *ast.BinaryOperation:
		op := stringNode(n.Operator().String())
		op.Style = yaml.DoubleQuotedStyle
		appendPair(node, "op", op)
		appendPair(node, "left", exprNode(n.Left()))
		appendPair(node, "right", exprNode(n.Right()))
	case *ast.FunctionCall:
		appendPair(node, "call", stringNode(n.Name()))
		appendPair(node, "arg", exprNode(n.Arg()))
	default:
		panic(errors.AssertionFailedf("unexpected expression kind %T", e))
	}
	return node
}

func numberNode(v float64) *yaml.Node {
	var s string
	switch {
	case math.IsInf(v, 1):
		s = ".inf"
	case math.IsInf(v, -1):
		s = "-.inf"
	case math.IsNaN(v):
		s = ".nan"
	case v == 0 && math.Signbit(v):
		s = "-0.0"
	default:
		s = strconv.FormatFloat(v, 'g', -1, 64)
	}
	tag := "!!float"
	if !strings.ContainsAny(s, ".eEinfa") {
		tag = "!!int"
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: s}
}

func mappingNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

func stringNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func appendPair(m *yaml.Node, key string, value *yaml.Node) {
	m.Content = append(m.Content, stringNode(key), value)
}

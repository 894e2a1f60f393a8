package dvql

import (
	"encoding/xml"
	"fmt"
	"strconv"
)

type fetchXML struct {
	XMLName  xml.Name  `xml:"fetch"`
	Top      string    `xml:"top,attr,omitempty"`
	Distinct string    `xml:"distinct,attr,omitempty"`
	Entity   entityXML `xml:"entity"`
}

type entityXML struct {
	Name string `xml:"name,attr"`
	nodeBody
}

type linkEntityXML struct {
	Name     string `xml:"name,attr"`
	From     string `xml:"from,attr"`
	To       string `xml:"to,attr"`
	Alias    string `xml:"alias,attr,omitempty"`
	LinkType string `xml:"link-type,attr"`
	nodeBody
}

// nodeBody is shared by <entity> and <link-entity>.
type nodeBody struct {
	AllAttributes *struct{}        `xml:"all-attributes"`
	Attributes    []attributeXML   `xml:"attribute"`
	Orders        []orderXML       `xml:"order"`
	Filter        *filterXML       `xml:"filter"`
	Links         []*linkEntityXML `xml:"link-entity"`
}

type attributeXML struct {
	Name  string `xml:"name,attr"`
	Alias string `xml:"alias,attr,omitempty"`
}

type orderXML struct {
	Attribute  string `xml:"attribute,attr"`
	Descending string `xml:"descending,attr,omitempty"`
}

type filterXML struct {
	XMLName xml.Name `xml:"filter"`
	Type    string   `xml:"type,attr"`
	Items   []any
}

type conditionXML struct {
	XMLName    xml.Name `xml:"condition"`
	EntityName string   `xml:"entityname,attr,omitempty"`
	Attribute  string   `xml:"attribute,attr"`
	Operator   string   `xml:"operator,attr"`
	Value      *string  `xml:"value,attr,omitempty"`
	Values     []string `xml:"value"`
}

var comparisonOperators = map[string]string{
	"=":  "eq",
	"<>": "ne",
	"!=": "ne",
	"<":  "lt",
	">":  "gt",
	"<=": "le",
	">=": "ge",
}

// ToFetchXML translates a parsed statement into an indented FetchXML document.
func ToFetchXML(stmt *Select) (string, error) {
	t := &translator{nodes: make(map[string]*nodeBody)}

	doc, err := t.translate(stmt)
	if err != nil {
		return "", err
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal fetchxml: %w", err)
	}

	return string(out), nil
}

// QueryToFetchXML parses query and translates it.
func QueryToFetchXML(query string) (string, error) {
	stmt, err := Parse(query)
	if err != nil {
		return "", err
	}

	return ToFetchXML(stmt)
}

type translator struct {
	root  string
	nodes map[string]*nodeBody
}

func (t *translator) translate(stmt *Select) (*fetchXML, error) {
	doc := &fetchXML{Entity: entityXML{Name: stmt.From.Entity}}

	if stmt.Top != nil {
		doc.Top = strconv.Itoa(*stmt.Top)
	}

	if stmt.Distinct {
		doc.Distinct = "true"
	}

	t.root = stmt.From.Name()
	t.nodes[t.root] = &doc.Entity.nodeBody

	for _, join := range stmt.Joins {
		err := t.addJoin(join)
		if err != nil {
			return nil, err
		}
	}

	if stmt.All {
		doc.Entity.AllAttributes = &struct{}{}
	}

	for _, col := range stmt.Columns {
		node, err := t.nodeFor(col.Column)
		if err != nil {
			return nil, err
		}

		node.Attributes = append(node.Attributes, attributeXML{Name: col.Column.Name(), Alias: col.Alias})
	}

	for _, item := range stmt.OrderBy {
		node, err := t.nodeFor(item.Column)
		if err != nil {
			return nil, err
		}

		order := orderXML{Attribute: item.Column.Name()}
		if item.Desc {
			order.Descending = "true"
		}

		node.Orders = append(node.Orders, order)
	}

	if stmt.Where != nil {
		filter, err := t.filter(stmt.Where)
		if err != nil {
			return nil, err
		}

		doc.Entity.Filter = filter
	}

	return doc, nil
}

// addJoin nests a link-entity under the node owning the other side of ON.
func (t *translator) addJoin(join *Join) error {
	name := join.Table.Name()
	if _, dup := t.nodes[name]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateAlias, name)
	}

	var own, other *ColumnRef

	switch {
	case join.On.Qualifier() == name:
		own, other = join.On, join.To
	case join.To.Qualifier() == name:
		own, other = join.To, join.On
	default:
		return fmt.Errorf("%w: ON clause does not reference %s", ErrInvalidJoin, name)
	}

	parent, err := t.nodeFor(other)
	if err != nil {
		return err
	}

	link := &linkEntityXML{
		Name:     join.Table.Entity,
		From:     own.Name(),
		To:       other.Name(),
		Alias:    name,
		LinkType: "inner",
	}
	if join.Left {
		link.LinkType = "outer"
	}

	parent.Links = append(parent.Links, link)
	t.nodes[name] = &link.nodeBody

	return nil
}

func (t *translator) nodeFor(col *ColumnRef) (*nodeBody, error) {
	q := col.Qualifier()
	if q == "" {
		return t.nodes[t.root], nil
	}

	node, ok := t.nodes[q]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAlias, q)
	}

	return node, nil
}

func (t *translator) filter(expr *Expr) (*filterXML, error) {
	if len(expr.Or) == 1 {
		return t.andFilter(expr.Or[0])
	}

	f := &filterXML{Type: "or"}

	for _, and := range expr.Or {
		if len(and.And) == 1 {
			item, err := t.term(and.And[0])
			if err != nil {
				return nil, err
			}

			f.Items = append(f.Items, item)

			continue
		}

		sub, err := t.andFilter(and)
		if err != nil {
			return nil, err
		}

		f.Items = append(f.Items, sub)
	}

	return f, nil
}

func (t *translator) andFilter(and *AndExpr) (*filterXML, error) {
	f := &filterXML{Type: "and"}

	for _, term := range and.And {
		item, err := t.term(term)
		if err != nil {
			return nil, err
		}

		f.Items = append(f.Items, item)
	}

	return f, nil
}

func (t *translator) term(term *Term) (any, error) {
	if term.Group != nil {
		return t.filter(term.Group)
	}

	return t.condition(term.Condition)
}

func (t *translator) condition(c *Condition) (*conditionXML, error) {
	q := c.Column.Qualifier()
	if q != "" {
		if _, ok := t.nodes[q]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAlias, q)
		}
	}

	cond := &conditionXML{Attribute: c.Column.Name()}
	if q != "" && q != t.root {
		cond.EntityName = q
	}

	switch {
	case c.Op != "":
		cond.Operator = comparisonOperators[c.Op]
		if c.Value.Null {
			// "= NULL" and "<> NULL" are read as null checks.
			if cond.Operator == "ne" {
				cond.Operator = "not-null"
			} else {
				cond.Operator = "null"
			}

			return cond, nil
		}

		cond.Value = ptr(c.Value.Text())
	case c.IsNull != nil:
		cond.Operator = "null"
		if c.IsNull.Not {
			cond.Operator = "not-null"
		}
	case c.Like != nil:
		cond.Operator = negate("like", c.Negated)
		cond.Value = ptr(*c.Like)
	case c.In != nil:
		cond.Operator = negate("in", c.Negated)
		for _, v := range c.In {
			cond.Values = append(cond.Values, v.Text())
		}
	case c.Between != nil:
		cond.Operator = negate("between", c.Negated)
		cond.Values = []string{c.Between.Low.Text(), c.Between.High.Text()}
	}

	return cond, nil
}

// ptr keeps empty values distinct from operators that take none.
func ptr(s string) *string { return &s }

func negate(op string, negated bool) string {
	if negated {
		return "not-" + op
	}

	return op
}

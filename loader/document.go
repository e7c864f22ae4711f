package loader

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/finmodel/finmodel/model"
)

// document is the on-disk shape of a model file.
type document struct {
	Include    []string                     `yaml:"include,omitempty"`
	Settings   settingsDoc                  `yaml:"settings,omitempty"`
	Periods    []periodDoc                  `yaml:"periods,omitempty"`
	Accounts   []accountDoc                 `yaml:"accounts,omitempty"`
	Values     map[string]map[string]Amount `yaml:"values,omitempty"`
	Parameters map[string]parameterDoc      `yaml:"parameters,omitempty"`
}

type settingsDoc struct {
	RevenueAccountID          string `yaml:"revenueAccountId,omitempty"`
	RetainedEarningsAccountID string `yaml:"retainedEarningsAccountId,omitempty"`
	CashAccountID             string `yaml:"cashAccountId,omitempty"`
	PreserveActuals           *bool  `yaml:"preserveActuals,omitempty"`
}

type periodDoc struct {
	ID         string `yaml:"id"`
	Sequence   int    `yaml:"sequence"`
	Year       int    `yaml:"year,omitempty"`
	Month      int    `yaml:"month,omitempty"`
	Historical bool   `yaml:"historical,omitempty"`
	Forecast   *bool  `yaml:"forecast,omitempty"`
}

type accountDoc struct {
	ID        string        `yaml:"id"`
	Name      string        `yaml:"name,omitempty"`
	Parent    string        `yaml:"parent,omitempty"`
	Sheet     string        `yaml:"sheet"`
	Polarity  string        `yaml:"polarity,omitempty"`
	Order     []int         `yaml:"order,omitempty"`
	Parameter *parameterDoc `yaml:"parameter,omitempty"`
	Impact    *impactDoc    `yaml:"impact,omitempty"`

	line int
}

func (a *accountDoc) UnmarshalYAML(node *yaml.Node) error {
	type plain accountDoc
	if err := node.Decode((*plain)(a)); err != nil {
		return err
	}
	a.line = node.Line
	return nil
}

type parameterDoc struct {
	Type         string         `yaml:"type"`
	Value        *Amount        `yaml:"value,omitempty"`
	Base         string         `yaml:"base,omitempty"`
	Lag          int            `yaml:"lag,omitempty"`
	Operation    string         `yaml:"operation,omitempty"`
	Days         *Amount        `yaml:"days,omitempty"`
	Default      *Amount        `yaml:"default,omitempty"`
	References   []referenceDoc `yaml:"references,omitempty"`
	Text         string         `yaml:"text,omitempty"`
	Dependencies []string       `yaml:"dependencies,omitempty"`

	line int
}

func (p *parameterDoc) UnmarshalYAML(node *yaml.Node) error {
	type plain parameterDoc
	if err := node.Decode((*plain)(p)); err != nil {
		return err
	}
	p.line = node.Line
	return nil
}

type referenceDoc struct {
	Account   string `yaml:"account"`
	Operation string `yaml:"operation,omitempty"`
	Lag       int    `yaml:"lag,omitempty"`
}

type impactDoc struct {
	Type      string `yaml:"type"`
	Target    string `yaml:"target,omitempty"`
	Operation string `yaml:"operation,omitempty"`
	From      string `yaml:"from,omitempty"`
	To        string `yaml:"to,omitempty"`

	line int
}

func (i *impactDoc) UnmarshalYAML(node *yaml.Node) error {
	type plain impactDoc
	if err := node.Decode((*plain)(i)); err != nil {
		return err
	}
	i.line = node.Line
	return nil
}

// Amount is a decimal written as a plain YAML scalar. Quoted and unquoted
// numbers are both accepted so that values never pass through float64.
type Amount struct {
	decimal.Decimal
}

func (a *Amount) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number", node.Line)
	}
	d, err := decimal.NewFromString(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid number %q", node.Line, node.Value)
	}
	a.Decimal = d
	return nil
}

func (a Amount) MarshalYAML() (interface{}, error) {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: a.String()}, nil
}

// Error is a problem in a model file that YAML decoding alone cannot catch.
type Error struct {
	Filename string
	Line     int
	Message  string
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Filename, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Filename, e.Message)
}

// converter turns documents into engine input, recording the file name for errors.
type converter struct {
	filename string
}

func (c converter) errorf(line int, format string, args ...interface{}) error {
	return &Error{Filename: c.filename, Line: line, Message: fmt.Sprintf(format, args...)}
}

func (c converter) period(doc periodDoc) model.Period {
	forecast := !doc.Historical
	if doc.Forecast != nil {
		forecast = *doc.Forecast
	}
	return model.Period{
		ID:         doc.ID,
		Sequence:   doc.Sequence,
		Year:       doc.Year,
		Month:      doc.Month,
		Historical: doc.Historical,
		Forecast:   forecast,
	}
}

func (c converter) account(doc accountDoc) (model.Account, error) {
	sheet, ok := model.ParseSheetType(doc.Sheet)
	if !ok {
		return model.Account{}, c.errorf(doc.line, "account %q: unknown sheet %q", doc.ID, doc.Sheet)
	}
	polarity, ok := model.ParsePolarity(doc.Polarity)
	if !ok {
		return model.Account{}, c.errorf(doc.line, "account %q: unknown polarity %q", doc.ID, doc.Polarity)
	}

	acc := model.Account{
		ID:       doc.ID,
		Name:     doc.Name,
		ParentID: doc.Parent,
		Sheet:    sheet,
		Polarity: polarity,
	}

	switch len(doc.Order) {
	case 0:
	case 3:
		acc.Order = model.DisplayOrder{Sheet: doc.Order[0], Section: doc.Order[1], Item: doc.Order[2]}
	default:
		return model.Account{}, c.errorf(doc.line, "account %q: order must be [sheet, section, item]", doc.ID)
	}

	if doc.Parameter != nil {
		p, err := c.parameter(*doc.Parameter)
		if err != nil {
			return model.Account{}, err
		}
		acc.Parameter = p
	}
	if doc.Impact != nil {
		impact, err := c.impact(*doc.Impact)
		if err != nil {
			return model.Account{}, err
		}
		acc.Impact = impact
	}
	return acc, nil
}

func (c converter) parameter(doc parameterDoc) (model.Parameter, error) {
	if doc.Type == "" {
		return nil, nil
	}
	kind, ok := model.ParseKind(doc.Type)
	if !ok {
		return nil, c.errorf(doc.line, "unknown parameter type %q", doc.Type)
	}

	value := func() (decimal.Decimal, error) {
		if doc.Value == nil {
			return decimal.Zero, c.errorf(doc.line, "%s parameter requires a value", kind)
		}
		return doc.Value.Decimal, nil
	}

	switch kind {
	case model.KindNull:
		return nil, nil
	case model.KindConstant:
		v, err := value()
		return model.Constant{Value: v}, err
	case model.KindPercentage:
		v, err := value()
		return model.Percentage{Value: v, BaseID: doc.Base, Lag: doc.Lag}, err
	case model.KindPercentageOfRevenue:
		v, err := value()
		return model.PercentageOfRevenue{Value: v}, err
	case model.KindGrowthRate:
		v, err := value()
		return model.GrowthRate{Value: v}, err
	case model.KindProportionate:
		op, err := c.operation(doc.line, doc.Operation)
		return model.Proportionate{BaseID: doc.Base, Operation: op, Lag: doc.Lag}, err
	case model.KindDaysBased:
		if doc.Days == nil {
			return nil, c.errorf(doc.line, "daysBased parameter requires days")
		}
		return model.DaysBased{Days: doc.Days.Decimal, BaseID: doc.Base}, nil
	case model.KindManualInput:
		p := model.ManualInput{}
		if doc.Default != nil {
			d := doc.Default.Decimal
			p.Default = &d
		}
		return p, nil
	case model.KindChildrenSum:
		return model.ChildrenSum{}, nil
	case model.KindCalculation:
		refs := make([]model.Reference, 0, len(doc.References))
		for _, r := range doc.References {
			op, err := c.operation(doc.line, r.Operation)
			if err != nil {
				return nil, err
			}
			refs = append(refs, model.Reference{AccountID: r.Account, Operation: op, Lag: r.Lag})
		}
		return model.Calculation{References: refs}, nil
	case model.KindFormula:
		return model.Formula{Text: doc.Text, DependencyIDs: doc.Dependencies}, nil
	default:
		return nil, c.errorf(doc.line, "unsupported parameter type %q", doc.Type)
	}
}

func (c converter) operation(line int, s string) (model.Operation, error) {
	op, ok := model.ParseOperation(s)
	if !ok {
		return op, c.errorf(line, "unknown operation %q", s)
	}
	return op, nil
}

func (c converter) impact(doc impactDoc) (model.CfImpact, error) {
	switch doc.Type {
	case "", "none":
		return nil, nil
	case "baseProfit":
		return model.BaseProfit{}, nil
	case "adjustment":
		op, err := c.operation(doc.line, doc.Operation)
		if err != nil {
			return nil, err
		}
		return model.Adjustment{TargetID: doc.Target, Operation: op}, nil
	case "reclassification":
		return model.Reclassification{FromID: doc.From, ToID: doc.To}, nil
	default:
		return nil, c.errorf(doc.line, "unknown impact type %q", doc.Type)
	}
}

package extract

import "fmt"

// Strategy produces candidates for one field from a document.
type Strategy struct {
	Name string
	Fn   func(*Document) ([]string, error)
}

// FaultFunc observes strategy failures that Chain.Run swallows.
type FaultFunc func(field, strategy string, err error)

// Chain is an ordered fallback list for one field.
type Chain struct {
	Field      string
	Strategies []Strategy
	OnFault    FaultFunc
}

// Result is the outcome of a chain run. Strategy is empty when nothing matched.
type Result struct {
	Values   []string
	Strategy string
}

// First returns the first value or "".
func (r Result) First() string {
	if len(r.Values) == 0 {
		return ""
	}
	return r.Values[0]
}

// Run tries each strategy in order and returns the first non-empty result.
func (c Chain) Run(doc *Document) Result {
	for _, s := range c.Strategies {
		values, err := c.try(s, doc)
		if err != nil {
			if c.OnFault != nil {
				c.OnFault(c.Field, s.Name, err)
			}
			continue
		}
		if values = dedupe(values); len(values) > 0 {
			return Result{Values: values, Strategy: s.Name}
		}
	}
	return Result{}
}

// try isolates a strategy so a panic inside the DOM library counts as a fault.
func (c Chain) try(s Strategy, doc *Document) (values []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy panicked: %v", r)
		}
	}()
	return s.Fn(doc)
}

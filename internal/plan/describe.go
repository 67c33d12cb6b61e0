package plan

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// describeOperator is the human-debuggable projection of one Operator,
// dropping the opaque Payload/user-function bytes a human can't read
// anyway.
type describeOperator struct {
	Index    int      `yaml:"index"`
	Kind     string   `yaml:"kind"`
	Inputs   []string `yaml:"inputs,omitempty"`
	HasSub   bool     `yaml:"has_sub_plan,omitempty"`
	MaxIters int32    `yaml:"max_iters,omitempty"`
	Join     string   `yaml:"join,omitempty"`
}

// Describe renders p as a human-readable YAML dump (`gflow plan
// describe`), independent of the pb wire encoding.
func Describe(p *Plan) (string, error) {
	ops := make([]describeOperator, len(p.Operators))
	for i, op := range p.Operators {
		d := describeOperator{Index: op.Index, Kind: string(op.Kind), HasSub: op.SubPlan != nil}
		for _, in := range op.Inputs {
			d.Inputs = append(d.Inputs, portString(in))
		}
		if op.IterCond != nil {
			d.MaxIters = op.IterCond.MaxIters
		}
		if op.JoinSpec != nil {
			d.Join = op.JoinSpec.Kind
		}
		ops[i] = d
	}
	out, err := yaml.Marshal(ops)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func portString(p Port) string {
	return fmt.Sprintf("%d:%d", p.OperatorIndex, p.Port)
}

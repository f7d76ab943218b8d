package command

// Bind fixes the inputs and output of b so it can be used as a Command
// alongside the mixing and audio builders.
func Bind(b *Builder, inputs []string, output string) Command {
	return &boundBuilder{
		builder: b,
		inputs:  append([]string(nil), inputs...),
		output:  output,
	}
}

type boundBuilder struct {
	builder *Builder
	inputs  []string
	output  string
}

func (c *boundBuilder) BuildSpec() (Spec, error) {
	return c.builder.Build(c.inputs, c.output)
}

func (c *boundBuilder) DryRun() (string, error) {
	return c.builder.DryRun(c.inputs, c.output)
}

func (c *boundBuilder) GetTaskType() TaskType {
	return c.builder.resolve().taskType()
}

func (c *boundBuilder) GetInputPath() string {
	if len(c.inputs) == 0 {
		return ""
	}
	return c.inputs[0]
}

func (c *boundBuilder) GetOutputPath() string {
	return c.output
}

package knowl

import "github.com/youta-t/flarc"

func New() (flarc.Command, error) {
	show, err := NewShow()
	if err != nil {
		return nil, err
	}
	render, err := NewRender()
	if err != nil {
		return nil, err
	}
	dump, err := NewDump()
	if err != nil {
		return nil, err
	}
	load, err := NewLoad()
	if err != nil {
		return nil, err
	}

	return flarc.NewCommandGroup(
		"Read, render and transfer Knowls.",
		struct{}{},
		flarc.WithSubcommand("show", show),
		flarc.WithSubcommand("render", render),
		flarc.WithSubcommand("dump", dump),
		flarc.WithSubcommand("load", load),
	)
}

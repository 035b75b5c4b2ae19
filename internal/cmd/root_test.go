package cmd

import "testing"

func TestNewRootCommandHasExpectedSubcommands(t *testing.T) {
	root := NewRootCommand()

	want := map[string]bool{"run": false, "history": false}
	for _, c := range root.Commands() {
		name := c.Name()
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}

	for name, found := range want {
		if !found {
			t.Errorf("expected subcommand %q to be registered", name)
		}
	}
}

package cmdhelper

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/table"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thoas/go-funk"
)

// DefaultGroupName is the unnamed flag group rendered first, without a
// title prefix.
const DefaultGroupName = ""

// globalGroupName collects the command's persistent flags.
const globalGroupName = "Global"

type group struct {
	name  string
	flags []string
}

// CmdHelper renders a command's help message as aligned tables, with
// flags arranged into named groups instead of cobra's flat listing.
type CmdHelper struct {
	root  *cobra.Command
	group []*group
}

// NewCmdHelper creates a CmdHelper for the given command.
func NewCmdHelper(root *cobra.Command) *CmdHelper {
	return &CmdHelper{root: root, group: []*group{}}
}

// getFlagGroup returns the group a flag was registered to, or nil.
func (c *CmdHelper) getFlagGroup(flagName string) *group {
	for _, g := range c.group {
		if funk.ContainsString(g.flags, flagName) {
			return g
		}
	}
	return nil
}

func (c *CmdHelper) findGroup(name string) *group {
	for _, g := range c.group {
		if g.name == name {
			return g
		}
	}
	return nil
}

func (c *CmdHelper) addToGroup(groupName, flagName string) {
	grp := c.findGroup(groupName)
	if grp == nil {
		c.group = append(c.group, &group{name: groupName, flags: []string{flagName}})
		return
	}
	grp.flags = append(grp.flags, flagName)
	grp.flags = funk.UniqString(grp.flags)
}

// Grp registers a flag under a named group.
func (c *CmdHelper) Grp(name, flagName string) *cobra.Command {
	c.addToGroup(name, flagName)
	return c.root
}

// Render generates the help message.
func (c *CmdHelper) Render() *bytes.Buffer {
	out := bytes.NewBuffer(nil)

	if c.root.Long != "" {
		out.WriteString(fmt.Sprintf("%s\n\n", c.root.Long))
	} else {
		out.WriteString(fmt.Sprintf("%s\n\n", c.root.Short))
	}

	render(out, func(t table.Writer) {
		out.WriteString("Usage:\n")
		t.SetColumnConfigs([]table.ColumnConfig{{Number: 1, WidthMin: 1}})
		usages := []string{c.root.Use}
		for _, cmd := range c.visibleCommands() {
			if !funk.ContainsString(usages, cmd.Use) {
				usages = append(usages, cmd.Use)
			}
		}
		for _, usage := range usages {
			var row []interface{}
			funk.ConvertSlice(strings.Split(usage, " "), &row)
			t.AppendRow(row)
		}
	})

	render(out, func(t table.Writer) {
		out.WriteString("\nAvailable Commands:\n")
		t.SetColumnConfigs([]table.ColumnConfig{{Number: 1, WidthMin: 8}})
		for _, cmd := range c.visibleCommands() {
			t.AppendRow([]interface{}{cmd.Name(), cmd.Short})
		}
	})

	// Flags never explicitly grouped land in the default group;
	// persistent flags land in the global group.
	c.root.Flags().VisitAll(func(flag *pflag.Flag) {
		if c.getFlagGroup(flag.Name) == nil {
			c.addToGroup(DefaultGroupName, flag.Name)
		}
	})
	c.root.PersistentFlags().VisitAll(func(flag *pflag.Flag) {
		if c.getFlagGroup(flag.Name) == nil {
			c.addToGroup(globalGroupName, flag.Name)
		}
	})

	for _, group := range c.group {
		title := group.name + " "
		if group.name == DefaultGroupName {
			title = ""
		}

		out.WriteString(fmt.Sprintf("\n%sFlags:\n", title))
		render(out, func(t table.Writer) {
			var flags []*pflag.Flag
			for _, flagName := range group.flags {
				fs := c.root.Flags()
				if group.name == globalGroupName {
					fs = c.root.PersistentFlags()
				}
				if flag := fs.Lookup(flagName); flag != nil {
					flags = append(flags, flag)
				}
			}

			t.SetColumnConfigs([]table.ColumnConfig{{Number: 1, WidthMin: 28}})
			for _, flag := range flags {
				short := "   "
				if flag.Shorthand != "" {
					short = "-" + flag.Shorthand + ","
				}
				defTxt := ""
				if flag.DefValue != "" {
					defTxt = fmt.Sprintf("(default: \"%s\")", flag.DefValue)
				}
				rowTxt := fmt.Sprintf("%s --%s %s", short, flag.Name, flag.Value.Type())
				t.AppendRow([]interface{}{rowTxt, fmt.Sprintf("%s %s", flag.Usage, defTxt)})
			}
		})
	}

	out.WriteString(fmt.Sprintf("\nUse \"%s --help\" for more information about a command.", c.root.Use))

	return out
}

// visibleCommands returns the command's subcommands minus hidden ones
// and cobra's auto-generated completion/help entries.
func (c *CmdHelper) visibleCommands() []*cobra.Command {
	var cmds []*cobra.Command
	for _, cmd := range c.root.Commands() {
		if cmd.Hidden || cmd.Name() == "completion" || cmd.Name() == "help" {
			continue
		}
		cmds = append(cmds, cmd)
	}
	return cmds
}

func render(out *bytes.Buffer, f func(t table.Writer)) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.Style().Options.DrawBorder = false
	t.Style().Options.SeparateColumns = false
	t.Style().Box.PaddingLeft = "  "
	f(t)
	t.Render()
}

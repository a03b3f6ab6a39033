package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"golang.org/x/term"
)

type Value interface {
	String() string
	Set(string) error
	Get() any
}

type stringValue struct{ p *string }

func (v *stringValue) Set(s string) error { *v.p = s; return nil }
func (v *stringValue) String() string     { return *v.p }
func (v *stringValue) Get() any           { return *v.p }

type boolValue struct{ p *bool }

func (v *boolValue) Set(s string) error {
	if s == "" {
		*v.p = true
		return nil
	}
	val, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("invalid boolean value '%s': %w", s, err)
	}
	*v.p = val
	return nil
}
func (v *boolValue) String() string { return strconv.FormatBool(*v.p) }
func (v *boolValue) Get() any       { return *v.p }

type intValue struct{ p *int }

func (v *intValue) Set(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid integer value '%s'", s)
	}
	*v.p = n
	return nil
}
func (v *intValue) String() string { return strconv.Itoa(*v.p) }
func (v *intValue) Get() any       { return *v.p }

type listValue struct{ p *[]string }

func (v *listValue) Set(s string) error { *v.p = append(*v.p, s); return nil }
func (v *listValue) String() string     { return strings.Join(*v.p, ", ") }
func (v *listValue) Get() any           { return *v.p }

type Flag struct {
	Name         string
	Shorthand    string
	Usage        string
	Value        Value
	DefValue     string
	ExpectedType string
}

func (f *Flag) isBool() bool {
	_, ok := f.Value.(*boolValue)
	return ok
}

// FlagGroup is a family of -<prefix><name> / -<prefix>no-<name> switches,
// such as the warning and feature tables.
type FlagGroup struct {
	Name        string
	Description string
	GroupType   string
	Flags       []FlagGroupEntry
}

type FlagGroupEntry struct {
	Name     string
	Prefix   string
	Usage    string
	Enabled  *bool
	Disabled *bool
	// Default is the state before any switch applies, shown on the help page.
	Default bool
}

type FlagSet struct {
	name       string
	flags      map[string]*Flag
	shorthands map[string]*Flag
	args       []string
	groups     []FlagGroup
}

func NewFlagSet(name string) *FlagSet {
	return &FlagSet{
		name:       name,
		flags:      make(map[string]*Flag),
		shorthands: make(map[string]*Flag),
	}
}

func (f *FlagSet) Args() []string { return f.args }

func (f *FlagSet) Lookup(name string) *Flag { return f.flags[name] }

func (f *FlagSet) String(p *string, name, shorthand, value, usage, expectedType string) {
	*p = value
	f.Var(&stringValue{p}, name, shorthand, usage, value, expectedType)
}

func (f *FlagSet) Bool(p *bool, name, shorthand string, value bool, usage string) {
	*p = value
	f.Var(&boolValue{p}, name, shorthand, usage, strconv.FormatBool(value), "")
}

func (f *FlagSet) Int(p *int, name, shorthand string, value int, usage, expectedType string) {
	*p = value
	f.Var(&intValue{p}, name, shorthand, usage, strconv.Itoa(value), expectedType)
}

func (f *FlagSet) List(p *[]string, name, shorthand string, value []string, usage, expectedType string) {
	*p = value
	f.Var(&listValue{p}, name, shorthand, usage, "", expectedType)
}

func (f *FlagSet) Var(value Value, name, shorthand, usage, defValue, expectedType string) {
	if name == "" {
		panic("flag name cannot be empty")
	}
	if _, ok := f.flags[name]; ok {
		panic(fmt.Sprintf("flag redefined: %s", name))
	}
	flag := &Flag{Name: name, Shorthand: shorthand, Usage: usage, Value: value, DefValue: defValue, ExpectedType: expectedType}
	f.flags[name] = flag
	if shorthand != "" {
		if _, ok := f.shorthands[shorthand]; ok {
			panic(fmt.Sprintf("shorthand flag redefined: %s", shorthand))
		}
		f.shorthands[shorthand] = flag
	}
}

// AddFlagGroup registers both switches of every entry and lists the group
// on the help page.
func (f *FlagSet) AddFlagGroup(name, description, groupType string, entries []FlagGroupEntry) {
	for i := range entries {
		e := &entries[i]
		if e.Enabled != nil {
			f.Bool(e.Enabled, e.Prefix+e.Name, "", *e.Enabled, e.Usage)
		}
		if e.Disabled != nil {
			f.Bool(e.Disabled, e.Prefix+"no-"+e.Name, "", *e.Disabled, "Disable '"+e.Name+"'")
		}
	}
	f.groups = append(f.groups, FlagGroup{Name: name, Description: description, GroupType: groupType, Flags: entries})
}

// Parse accepts --name, --name=value, --name value, -x value, -xvalue and
// single-dash long names such as -Wall or -Wno-extra.
func (f *FlagSet) Parse(arguments []string) error {
	f.args = []string{}
	for i := 0; i < len(arguments); i++ {
		arg := arguments[i]
		switch {
		case arg == "--":
			f.args = append(f.args, arguments[i+1:]...)
			return nil
		case len(arg) < 2 || arg[0] != '-':
			f.args = append(f.args, arg)
			continue
		}

		long := strings.HasPrefix(arg, "--")
		body := strings.TrimLeft(arg, "-")
		name, val, hasVal := strings.Cut(body, "=")
		flag, ok := f.flags[name]
		if !ok && !long {
			if flag, ok = f.shorthands[body[:1]]; ok {
				name, val, hasVal = body[:1], body[1:], len(body) > 1
			}
		}
		if !ok || name == "" {
			return fmt.Errorf("unknown flag: %s", arg)
		}

		switch {
		case hasVal:
		case flag.isBool():
			val = ""
		case i+1 < len(arguments):
			i++
			val = arguments[i]
		default:
			return fmt.Errorf("flag needs an argument: %s", arg)
		}
		if err := flag.Value.Set(val); err != nil {
			return fmt.Errorf("%s: %w", arg, err)
		}
	}
	return nil
}

type App struct {
	Name        string
	Synopsis    string
	Description string
	Authors     []string
	Repository  string
	Since       int
	FlagSet     *FlagSet
	Action      func(args []string) error
	Stdout      io.Writer
	Stderr      io.Writer
}

func NewApp(name string) *App {
	return &App{
		Name:    name,
		FlagSet: NewFlagSet(name),
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

func (a *App) Run(arguments []string) error {
	help := false
	a.FlagSet.Bool(&help, "help", "h", false, "Display this information")

	if err := a.FlagSet.Parse(arguments); err != nil {
		fmt.Fprintln(a.Stderr, err)
		a.writeUsage(a.Stderr)
		return err
	}
	if help {
		a.writeHelp(a.Stdout, terminalWidth())
		return nil
	}
	if a.Action != nil {
		return a.Action(a.FlagSet.Args())
	}
	return nil
}

func heading(level int, title string) string {
	return pad(level) + pterm.Bold.Sprint(title) + "\n"
}

func pad(level int) string { return strings.Repeat(" ", 4*level) }

func (a *App) writeUsage(w io.Writer) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Usage: %s %s\n", a.Name, a.Synopsis)
	fmt.Fprintf(&sb, "Run '%s --help' for all available options and flags.\n", a.Name)
	fmt.Fprint(w, sb.String())
}

// writeHelp lays the page out in columns that fit width.
func (a *App) writeHelp(w io.Writer, width int) {
	var sb strings.Builder
	options := a.optionFlags()

	left, usage := 0, 0
	widen := func(l, u string) {
		left = max(left, len(l))
		usage = max(usage, len(u))
	}
	for _, fl := range options {
		widen(flagString(fl), fl.Usage)
	}
	for _, g := range a.FlagSet.groups {
		widen(fmt.Sprintf("-%sno-<%s>", g.Flags[0].Prefix, g.GroupType), "")
		for _, e := range g.Flags {
			widen(e.Name, e.Usage)
		}
	}

	sb.WriteString("\n")
	since := ""
	if a.Since != 0 && a.Since != time.Now().Year() {
		since = strconv.Itoa(a.Since) + "-"
	}
	fmt.Fprintf(&sb, "%sCopyright (c) %s%d: %s and contributors\n", pad(1), since, time.Now().Year(), strings.Join(a.Authors, ", "))
	if a.Repository != "" {
		fmt.Fprintf(&sb, "%sFor more details refer to %s\n", pad(1), a.Repository)
	}
	if a.Synopsis != "" {
		sb.WriteString("\n" + heading(1, "Synopsis"))
		fmt.Fprintf(&sb, "%s%s %s\n", pad(2), a.Name, a.Synopsis)
	}
	if a.Description != "" {
		sb.WriteString("\n" + heading(1, "Description"))
		for _, line := range wrapText(a.Description, width-len(pad(2))) {
			fmt.Fprintf(&sb, "%s%s\n", pad(2), line)
		}
	}

	if len(options) > 0 {
		sb.WriteString("\n" + heading(1, "Options"))
		for _, fl := range options {
			right := ""
			if !fl.isBool() && fl.DefValue != "" {
				right = "|" + fl.DefValue + "|"
			}
			writeEntry(&sb, width, flagString(fl), fl.Usage, right, left, usage)
		}
	}

	groups := append([]FlagGroup(nil), a.FlagSet.groups...)
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	for _, g := range groups {
		prefix := g.Flags[0].Prefix
		sb.WriteString("\n" + heading(1, g.Name))
		fmt.Fprintf(&sb, "%s%-*s Enable a specific %s\n", pad(2), left, fmt.Sprintf("-%s<%s>", prefix, g.GroupType), g.GroupType)
		fmt.Fprintf(&sb, "%s%-*s Disable a specific %s\n", pad(2), left, fmt.Sprintf("-%sno-<%s>", prefix, g.GroupType), g.GroupType)
		if g.Description != "" {
			fmt.Fprintf(&sb, "%s%s\n", pad(1), g.Description)
		}
		entries := append([]FlagGroupEntry(nil), g.Flags...)
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
		for _, e := range entries {
			state := "|-|"
			if e.Default {
				state = "|x|"
			}
			writeEntry(&sb, width, e.Name, e.Usage, state, left, usage)
		}
	}
	fmt.Fprint(w, sb.String())
}

func (a *App) optionFlags() []*Flag {
	grouped := make(map[string]bool)
	for _, g := range a.FlagSet.groups {
		for _, e := range g.Flags {
			grouped[e.Prefix+e.Name] = true
			grouped[e.Prefix+"no-"+e.Name] = true
		}
	}
	var out []*Flag
	for name, fl := range a.FlagSet.flags {
		if !grouped[name] {
			out = append(out, fl)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func flagString(fl *Flag) string {
	var sb strings.Builder
	if fl.Shorthand != "" {
		fmt.Fprintf(&sb, "-%s, ", fl.Shorthand)
	}
	fmt.Fprintf(&sb, "--%s", fl.Name)
	if !fl.isBool() && fl.ExpectedType != "" {
		fmt.Fprintf(&sb, " <%s>", fl.ExpectedType)
	}
	return sb.String()
}

// writeEntry prints one "left usage right" row, wrapping usage under itself
// when it does not fit.
func writeEntry(sb *strings.Builder, width int, left, usage, right string, leftWidth, usageWidth int) {
	indent := pad(2)
	avail := width - len(indent) - leftWidth - 1 - len(right) - 2
	if avail < 10 {
		avail = 10
	}
	usageWidth = min(usageWidth, avail)

	lines := wrapText(usage, avail)
	first := ""
	if len(lines) > 0 {
		first = lines[0]
	}
	if right != "" {
		fmt.Fprintf(sb, "%s%-*s %-*s  %s\n", indent, leftWidth, left, usageWidth, first, right)
	} else {
		fmt.Fprintf(sb, "%s%-*s %s\n", indent, leftWidth, left, first)
	}
	for _, l := range lines[min(1, len(lines)):] {
		fmt.Fprintf(sb, "%s%s%s\n", indent, strings.Repeat(" ", leftWidth+1), l)
	}
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return max(width, 20)
}

func wrapText(text string, maxWidth int) []string {
	words := strings.Fields(text)
	if maxWidth <= 0 || len(words) == 0 {
		return words
	}
	var lines []string
	var line strings.Builder
	for _, word := range words {
		if line.Len() > 0 && line.Len()+1+len(word) > maxWidth {
			lines = append(lines, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteByte(' ')
		}
		line.WriteString(word)
	}
	return append(lines, line.String())
}

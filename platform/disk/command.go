package disk

import (
	"fmt"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
)

// Invocation is something the executor can run: a single Command or a
// generated Script.
type Invocation interface {
	String() string
}

type Arg struct {
	Value  string
	IsVar  bool
	Suffix string
}

// Lit is a literal argument; it is always quoted when rendered.
func Lit(value string) Arg {
	return Arg{Value: value}
}

// Var refers to a shell variable assigned earlier in a Script.
func Var(name string) Arg {
	return Arg{Value: name, IsVar: true}
}

// VarWithSuffix renders as "$name" followed by a literal suffix, e.g. "$END"s.
func VarWithSuffix(name, suffix string) Arg {
	return Arg{Value: name, IsVar: true, Suffix: suffix}
}

func (a Arg) String() string {
	if a.IsVar {
		rendered := `"$` + a.Value + `"`
		if a.Suffix != "" {
			rendered += shellquote.Join(a.Suffix)
		}
		return rendered
	}
	return shellquote.Join(a.Value)
}

type Command struct {
	Name string
	Args []Arg
}

func NewCommand(name string, args ...string) Command {
	cmd := Command{Name: name}
	for _, arg := range args {
		cmd.Args = append(cmd.Args, Lit(arg))
	}
	return cmd
}

// With returns a copy of c with args appended.
func (c Command) With(args ...Arg) Command {
	next := Command{Name: c.Name, Args: make([]Arg, 0, len(c.Args)+len(args))}
	next.Args = append(next.Args, c.Args...)
	next.Args = append(next.Args, args...)
	return next
}

// Argv returns the literal argument vector. It reports false when the
// command refers to script variables and only makes sense inside a Script.
func (c Command) Argv() ([]string, bool) {
	argv := make([]string, 0, len(c.Args))
	for _, arg := range c.Args {
		if arg.IsVar {
			return nil, false
		}
		argv = append(argv, arg.Value)
	}
	return argv, true
}

func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, shellquote.Join(c.Name))
	for _, arg := range c.Args {
		parts = append(parts, arg.String())
	}
	return strings.Join(parts, " ")
}

// Script is a bash script body assembled from typed commands. Only fixed
// control structure is emitted verbatim; every device path or label goes
// through Command quoting.
type Script struct {
	lines []string
}

const scriptHeader = "#!/bin/bash\nset -e\n"

func NewScript() *Script {
	return &Script{}
}

func (s *Script) Run(cmd Command) *Script {
	return s.add(cmd.String())
}

func (s *Script) RunIgnoringFailure(cmd Command) *Script {
	return s.add(cmd.String() + " || true")
}

func (s *Script) RunQuietIgnoringFailure(cmd Command) *Script {
	return s.add(cmd.String() + " 2>/dev/null || true")
}

func (s *Script) RunWithFallback(primary, fallback Command) *Script {
	return s.add(fmt.Sprintf("%s || %s", primary, fallback))
}

func (s *Script) RunWithInput(input string, cmd Command) *Script {
	return s.add(pipeInput(input, cmd))
}

func (s *Script) RunWithInputFallback(primary Command, input string, fallback Command) *Script {
	return s.add(fmt.Sprintf("%s || %s", primary, pipeInput(input, fallback)))
}

// RunAllowingExitCodes treats exit statuses up to maxStatus as success, for
// tools such as e2fsck that exit 1 after correcting errors.
func (s *Script) RunAllowingExitCodes(cmd Command, maxStatus int) *Script {
	return s.add(fmt.Sprintf("%s || [ $? -le %d ]", cmd, maxStatus))
}

// OnExit runs cmd when the script exits, whether or not it failed.
func (s *Script) OnExit(cmd Command) *Script {
	return s.add(fmt.Sprintf("trap %s EXIT", shellquote.Join(cmd.String()+" 2>/dev/null || true")))
}

// IfNotBlockDevice runs inner's lines only when $name is not a block device.
func (s *Script) IfNotBlockDevice(name string, inner *Script) *Script {
	return s.add(fmt.Sprintf(`if [ ! -b "$%s" ]; then %s; fi`, name, strings.Join(inner.lines, "; ")))
}

// AssignPrefixed sets name to a literal prefix followed by the value of variable.
func (s *Script) AssignPrefixed(name, prefix, variable string) *Script {
	return s.add(fmt.Sprintf(`%s=%s"$%s"`, name, shellquote.Join(prefix), variable))
}

// Assign stores the output of a pipeline of commands in name.
func (s *Script) Assign(name string, pipeline ...Command) *Script {
	rendered := make([]string, 0, len(pipeline))
	for _, cmd := range pipeline {
		rendered = append(rendered, cmd.String())
	}
	return s.add(fmt.Sprintf("%s=$(%s)", name, strings.Join(rendered, " | ")))
}

// Arithmetic assigns an integer expression built from numbers and names of
// variables set earlier in the script.
func (s *Script) Arithmetic(name, expression string) *Script {
	return s.add(fmt.Sprintf("%s=$(( %s ))", name, expression))
}

func (s *Script) Echo(message string) *Script {
	return s.add("echo " + shellquote.Join(message))
}

func (s *Script) EchoVar(label, name string) *Script {
	return s.add(fmt.Sprintf(`echo %s"$%s"`, shellquote.Join(label), name))
}

func (s *Script) RequireBlockDevice(name, message string) *Script {
	return s.add(fmt.Sprintf(`if [ ! -b "$%s" ]; then echo %s >&2; exit 1; fi`, name, shellquote.Join(message)))
}

func (s *Script) RequireNonEmpty(name, message string) *Script {
	return s.add(fmt.Sprintf(`if [ -z "$%s" ]; then echo %s >&2; exit 1; fi`, name, shellquote.Join(message)))
}

func (s *Script) Sleep(d time.Duration) *Script {
	return s.add(fmt.Sprintf("sleep %d", int(d.Seconds())))
}

// SelfDelete removes the script file once it has run.
func (s *Script) SelfDelete() *Script {
	return s.add(`rm -f "$0"`)
}

func (s *Script) Blank() *Script {
	return s.add("")
}

func (s *Script) Lines() []string {
	return append([]string(nil), s.lines...)
}

func (s *Script) Len() int {
	return len(s.lines)
}

func (s *Script) String() string {
	return scriptHeader + "\n" + strings.Join(s.lines, "\n") + "\n"
}

// pipeInput feeds input to cmd through printf, writing newlines as \n.
func pipeInput(input string, cmd Command) string {
	format := strings.ReplaceAll(input, "\n", `\n`)
	if strings.ContainsAny(format, "'%") {
		format = shellquote.Join(strings.ReplaceAll(format, "%", "%%"))
	} else {
		format = "'" + format + "'"
	}
	return fmt.Sprintf("printf %s | %s", format, cmd)
}

func (s *Script) add(line string) *Script {
	s.lines = append(s.lines, line)
	return s
}

package script

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ParseError represents a parsing error with location info.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Command line grammars. Keywords are case-sensitive, operands minimal:
// quoted strings, identifiers, numbers, /regex/.
var (
	reHeader         = regexp.MustCompile(`^(Test|Flow|Scenario):\s+(.+?)(?:\s+\[([A-Za-z0-9]+)\])?$`)
	reGoto           = regexp.MustCompile(`^Goto\s+"(.+)"$`)
	reClick          = regexp.MustCompile(`^Click\s+"(.+)"$`)
	reFill           = regexp.MustCompile(`^Fill\s+"(.+)"\s+with\s+"(.*)"$`)
	reFillAuto       = regexp.MustCompile(`^FillAuto\s+"(.+)"\s+with\s+"(.*)"$`)
	reScrollTo       = regexp.MustCompile(`^ScrollTo\s+"(.+)"$`)
	reWaitFor        = regexp.MustCompile(`^WaitFor\s+"(.+?)"(?:\s+timeout\s+(\d+)ms)?$`)
	reViewport       = regexp.MustCompile(`^Viewport\s+(\d+)x(\d+)$`)
	reSetVar         = regexp.MustCompile(`^SetVar\s+"([A-Za-z_][A-Za-z0-9_]*)"\s*=\s*(.+)$`)
	reRetry          = regexp.MustCompile(`^Retry\s+(\d+)\s+times\s+on\s+failure$`)
	reWaitForPopup   = regexp.MustCompile(`^WaitForPopup(?:\s+timeout\s+(\d+)ms)?$`)
	reSwitchToIFrame = regexp.MustCompile(`^SwitchToIFrame\s+"(.+)"$`)
	reSaveSession    = regexp.MustCompile(`^SaveSession\s+"(.+)"$`)
	reRestoreSession = regexp.MustCompile(`^RestoreSession\s+"(.+)"$`)
	reUse            = regexp.MustCompile(`^Use\s+"(.+)"$`)
	reImport         = regexp.MustCompile(`^Import\s+"(.+)"$`)
	reAssertCookie   = regexp.MustCompile(`^AssertCookie\s+"(.+)"\s+is\s+"(.*)"$`)
	reDataPair       = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)=(.*)$`)

	// SetVar right-hand sides.
	reExprLiteral  = regexp.MustCompile(`^"(.*)"$`)
	reExprVarRef   = regexp.MustCompile(`^\$([A-Za-z_][A-Za-z0-9_]*)$`)
	reExprLocal    = regexp.MustCompile(`^\$\{(.+)\}$`)
	reExprPageEval = regexp.MustCompile(`^eval\s+"(.+)"$`)

	// Assert expression grammars, tried in order.
	reAStatus    = regexp.MustCompile(`^page\.status\s+is\s+(\d+)$`)
	reAURL       = regexp.MustCompile(`^page\.url\s+is\s+"(.+)"$`)
	reAExists    = regexp.MustCompile(`^element\s+"(.+)"\s+exists$`)
	reAVisible   = regexp.MustCompile(`^element\s+"(.+)"\s+visible$`)
	reASimilar   = regexp.MustCompile(`^element\s+"(.+)"\s+similar to\s+"(.+)"\s*<\s*([\d.]+)$`)
	reAChildren  = regexp.MustCompile(`^children of\s+"(.+)"\s+count\s*(>=|<=|==|!=|>|<)\s*(\d+)$`)
	reACLS       = regexp.MustCompile(`^CLS\s*<\s*([\d.]+)$`)
	reAAttrRegex = regexp.MustCompile(`^attribute\s+(.+)@([\w-]+)\s+matches\s+/(.+)/$`)
	reAEachAttr  = regexp.MustCompile(`^each attribute\s+([\w-]+)\s+in elements\s+"([^"]+)"\s+matches\s+/(.+)/$`)
	reANoDup     = regexp.MustCompile(`^no duplicates in attribute\s+([\w-]+)\s+of elements\s+"([^"]+)"$`)
	reALanguage  = regexp.MustCompile(`^element\s+"(.+)"\s+language\s+equals\s+html@lang$`)
	reAQuoted    = regexp.MustCompile(`^"(.+)"$`)
)

// ParseFile parses a QScript file, resolving Import lines from disk.
func ParseFile(path string) (*Script, error) {
	return parseFile(path, nil)
}

// Parse parses QScript source. Import lines resolve relative to the
// directory of sourcePath.
func Parse(data []byte, sourcePath string) (*Script, error) {
	return parse(data, sourcePath, nil)
}

func parseFile(path string, importStack []string) (*Script, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is user-provided script file
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return parse(data, path, importStack)
}

type parser struct {
	path        string
	lines       []string
	script      *Script
	importStack []string
}

func parse(data []byte, sourcePath string, importStack []string) (*Script, error) {
	p := &parser{
		path:  sourcePath,
		lines: strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n"),
		script: &Script{
			SourcePath: sourcePath,
			Flows:      make(map[string]*TestCase),
		},
		importStack: append(importStack, cleanPath(sourcePath)),
	}
	if err := p.run(); err != nil {
		return nil, err
	}
	return p.script, nil
}

func cleanPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

func (p *parser) errorf(line int, format string, args ...interface{}) error {
	return &ParseError{Path: p.path, Line: line, Message: fmt.Sprintf(format, args...)}
}

// run is the top-level loop: header lines open cases, Import lines inline
// flow definitions, everything else must live inside a case.
func (p *parser) run() error {
	i := 0
	for i < len(p.lines) {
		lineNo := i + 1
		line := strings.TrimSpace(p.lines[i])
		if line == "" || strings.HasPrefix(line, "#") {
			i++
			continue
		}

		if m := reImport.FindStringSubmatch(line); m != nil {
			if err := p.importFlows(m[1], lineNo); err != nil {
				return err
			}
			i++
			continue
		}

		if m := reHeader.FindStringSubmatch(line); m != nil {
			next, err := p.parseCase(m, lineNo, i+1)
			if err != nil {
				return err
			}
			i = next
			continue
		}

		return p.errorf(lineNo, "expected Test:, Flow:, Scenario:, or Import, got %q", line)
	}
	return nil
}

// parseCase consumes a case body starting at line index start, through its
// closing End. Returns the index of the line after End.
func (p *parser) parseCase(header []string, headerLine, start int) (int, error) {
	tc := &TestCase{
		Kind:     CaseKind(header[1]),
		Name:     strings.TrimSpace(header[2]),
		Priority: PriorityP2,
		SrcLine:  headerLine,
	}
	if header[3] != "" {
		prio, ok := ParsePriority(header[3])
		if !ok {
			return 0, p.errorf(headerLine, "unknown priority %q", header[3])
		}
		tc.Priority = prio
	}

	i := start
	closed := false
	for i < len(p.lines) {
		lineNo := i + 1
		line := strings.TrimSpace(p.lines[i])
		if line == "" || strings.HasPrefix(line, "#") {
			i++
			continue
		}
		if line == "End" {
			closed = true
			i++
			break
		}
		if strings.HasPrefix(line, "Tags:") {
			tc.Tags = append(tc.Tags, splitTags(line[len("Tags:"):])...)
			i++
			continue
		}
		if reHeader.MatchString(line) {
			return 0, p.errorf(lineNo, "case %q not closed with End before next header", tc.Name)
		}

		cmd, next, err := p.parseCommand(line, lineNo, i, false)
		if err != nil {
			return 0, err
		}
		tc.Commands = append(tc.Commands, cmd)
		i = next
	}
	if !closed {
		return 0, p.errorf(headerLine, "case %q not closed with End", tc.Name)
	}

	if err := p.validateCase(tc); err != nil {
		return 0, err
	}

	p.script.Cases = append(p.script.Cases, tc)
	if tc.Kind == KindFlow {
		if _, exists := p.script.Flows[tc.Name]; exists {
			return 0, p.errorf(headerLine, "duplicate flow definition %q", tc.Name)
		}
		p.script.Flows[tc.Name] = tc
	}
	return i, nil
}

func splitTags(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// parseCommand parses one command starting at line index i. Block commands
// (ForEachURL, ForEachData) consume additional lines. Returns the command
// and the index of the next unconsumed line.
func (p *parser) parseCommand(line string, lineNo, i int, inBlock bool) (Command, int, error) {
	base := func(t CommandType) BaseCommand { return BaseCommand{CmdType: t, SrcLine: lineNo} }

	keyword := line
	if idx := strings.IndexAny(line, " \t:"); idx >= 0 {
		keyword = line[:idx]
	}

	switch keyword {
	case "Goto":
		m := reGoto.FindStringSubmatch(line)
		if m == nil {
			return nil, 0, p.errorf(lineNo, "malformed Goto, want: Goto \"<url>\"")
		}
		return &GotoCommand{base(CmdGoto), m[1]}, i + 1, nil

	case "Click":
		m := reClick.FindStringSubmatch(line)
		if m == nil {
			return nil, 0, p.errorf(lineNo, "malformed Click, want: Click \"<selector>\"")
		}
		return &ClickCommand{base(CmdClick), m[1]}, i + 1, nil

	case "Fill":
		m := reFill.FindStringSubmatch(line)
		if m == nil {
			return nil, 0, p.errorf(lineNo, "malformed Fill, want: Fill \"<selector>\" with \"<text>\"")
		}
		return &FillCommand{base(CmdFill), m[1], m[2]}, i + 1, nil

	case "FillAuto":
		m := reFillAuto.FindStringSubmatch(line)
		if m == nil {
			return nil, 0, p.errorf(lineNo, "malformed FillAuto, want: FillAuto \"<selector>\" with \"<text>\"")
		}
		return &FillAutoCommand{base(CmdFillAuto), m[1], m[2]}, i + 1, nil

	case "ScrollTo":
		m := reScrollTo.FindStringSubmatch(line)
		if m == nil {
			return nil, 0, p.errorf(lineNo, "malformed ScrollTo, want: ScrollTo \"<selector>\"")
		}
		return &ScrollToCommand{base(CmdScrollTo), m[1]}, i + 1, nil

	case "WaitFor":
		m := reWaitFor.FindStringSubmatch(line)
		if m == nil {
			return nil, 0, p.errorf(lineNo, "malformed WaitFor, want: WaitFor \"<selector>\" [timeout <ms>ms]")
		}
		timeout := 0
		if m[2] != "" {
			timeout, _ = strconv.Atoi(m[2])
		}
		return &WaitForCommand{base(CmdWaitFor), m[1], timeout}, i + 1, nil

	case "Viewport":
		m := reViewport.FindStringSubmatch(line)
		if m == nil {
			return nil, 0, p.errorf(lineNo, "malformed Viewport, want: Viewport <w>x<h>")
		}
		w, _ := strconv.Atoi(m[1])
		h, _ := strconv.Atoi(m[2])
		if w <= 0 || h <= 0 {
			return nil, 0, p.errorf(lineNo, "viewport dimensions must be positive")
		}
		return &ViewportCommand{base(CmdViewport), w, h}, i + 1, nil

	case "SetVar":
		m := reSetVar.FindStringSubmatch(line)
		if m == nil {
			return nil, 0, p.errorf(lineNo, "malformed SetVar, want: SetVar \"<NAME>\" = <value>")
		}
		expr, err := parseExpr(m[2])
		if err != nil {
			return nil, 0, p.errorf(lineNo, "malformed SetVar value: %v", err)
		}
		return &SetVarCommand{base(CmdSetVar), m[1], expr}, i + 1, nil

	case "Retry":
		m := reRetry.FindStringSubmatch(line)
		if m == nil {
			return nil, 0, p.errorf(lineNo, "malformed Retry, want: Retry <n> times on failure")
		}
		times, _ := strconv.Atoi(m[1])
		if times < 1 {
			return nil, 0, p.errorf(lineNo, "retry count must be at least 1")
		}
		return &RetryCommand{base(CmdRetry), times}, i + 1, nil

	case "WaitForPopup":
		m := reWaitForPopup.FindStringSubmatch(line)
		if m == nil {
			return nil, 0, p.errorf(lineNo, "malformed WaitForPopup, want: WaitForPopup [timeout <ms>ms]")
		}
		timeout := 0
		if m[1] != "" {
			timeout, _ = strconv.Atoi(m[1])
		}
		return &WaitForPopupCommand{base(CmdWaitForPopup), timeout}, i + 1, nil

	case "SwitchToPopup":
		if line != "SwitchToPopup" {
			return nil, 0, p.errorf(lineNo, "SwitchToPopup takes no operands")
		}
		return &SwitchToPopupCommand{base(CmdSwitchToPopup)}, i + 1, nil

	case "ClosePopup":
		if line != "ClosePopup" {
			return nil, 0, p.errorf(lineNo, "ClosePopup takes no operands")
		}
		return &ClosePopupCommand{base(CmdClosePopup)}, i + 1, nil

	case "SwitchToIFrame":
		m := reSwitchToIFrame.FindStringSubmatch(line)
		if m == nil {
			return nil, 0, p.errorf(lineNo, "malformed SwitchToIFrame, want: SwitchToIFrame \"<selector>\"")
		}
		return &SwitchToIFrameCommand{base(CmdSwitchToIFrame), m[1]}, i + 1, nil

	case "ReturnFromIFrame":
		if line != "ReturnFromIFrame" {
			return nil, 0, p.errorf(lineNo, "ReturnFromIFrame takes no operands")
		}
		return &ReturnFromIFrameCommand{base(CmdReturnFromIFrame)}, i + 1, nil

	case "SaveSession":
		m := reSaveSession.FindStringSubmatch(line)
		if m == nil {
			return nil, 0, p.errorf(lineNo, "malformed SaveSession, want: SaveSession \"<name>\"")
		}
		return &SaveSessionCommand{base(CmdSaveSession), m[1]}, i + 1, nil

	case "RestoreSession":
		m := reRestoreSession.FindStringSubmatch(line)
		if m == nil {
			return nil, 0, p.errorf(lineNo, "malformed RestoreSession, want: RestoreSession \"<name>\"")
		}
		return &RestoreSessionCommand{base(CmdRestoreSession), m[1]}, i + 1, nil

	case "ClearCookies":
		if line != "ClearCookies" {
			return nil, 0, p.errorf(lineNo, "ClearCookies takes no operands")
		}
		return &ClearCookiesCommand{base(CmdClearCookies)}, i + 1, nil

	case "Use":
		m := reUse.FindStringSubmatch(line)
		if m == nil {
			return nil, 0, p.errorf(lineNo, "malformed Use, want: Use \"<flow-name>\"")
		}
		return &UseCommand{base(CmdUse), m[1]}, i + 1, nil

	case "AssertCookie":
		m := reAssertCookie.FindStringSubmatch(line)
		if m == nil {
			return nil, 0, p.errorf(lineNo, "malformed AssertCookie, want: AssertCookie \"<name>\" is \"<value>\"")
		}
		return &AssertCookieCommand{base(CmdAssertCookie), m[1], m[2]}, i + 1, nil

	case "Assert":
		expr := strings.TrimSpace(strings.TrimPrefix(line, "Assert"))
		assertion, err := parseAssertion(expr)
		if err != nil {
			return nil, 0, p.errorf(lineNo, "%v", err)
		}
		return &AssertCommand{base(CmdAssert), assertion}, i + 1, nil

	case "ForEachURL":
		if inBlock {
			return nil, 0, p.errorf(lineNo, "ForEachURL cannot nest inside an iteration body")
		}
		return p.parseForEachURL(line, lineNo, i)

	case "ForEachData":
		if inBlock {
			return nil, 0, p.errorf(lineNo, "ForEachData cannot nest inside an iteration body")
		}
		return p.parseForEachData(line, lineNo, i)
	}

	return nil, 0, p.errorf(lineNo, "unknown command %q", keyword)
}

func parseExpr(rhs string) (Expr, error) {
	rhs = strings.TrimSpace(rhs)
	if m := reExprLocal.FindStringSubmatch(rhs); m != nil {
		return Expr{Kind: ExprLocal, Text: m[1]}, nil
	}
	if m := reExprPageEval.FindStringSubmatch(rhs); m != nil {
		return Expr{Kind: ExprPageEval, Text: m[1]}, nil
	}
	if m := reExprVarRef.FindStringSubmatch(rhs); m != nil {
		return Expr{Kind: ExprVarRef, Text: m[1]}, nil
	}
	if m := reExprLiteral.FindStringSubmatch(rhs); m != nil {
		return Expr{Kind: ExprLiteral, Text: m[1]}, nil
	}
	return Expr{}, fmt.Errorf("want a quoted literal, $VAR, ${expr}, or eval \"<js>\", got %q", rhs)
}

// parseAssertion matches the Assert expression grammars in order. The regex
// operand of matches-assertions must itself compile.
func parseAssertion(expr string) (Assertion, error) {
	if m := reAStatus.FindStringSubmatch(expr); m != nil {
		code, _ := strconv.Atoi(m[1])
		return &StatusAssertion{Code: code}, nil
	}
	if m := reAURL.FindStringSubmatch(expr); m != nil {
		return &URLAssertion{URL: m[1]}, nil
	}
	if m := reASimilar.FindStringSubmatch(expr); m != nil {
		threshold, err := strconv.ParseFloat(m[3], 64)
		if err != nil || threshold <= 0 || threshold > 1 {
			return nil, fmt.Errorf("similarity threshold must be in (0, 1], got %q", m[3])
		}
		return &SimilarAssertion{Selector: m[1], Phrase: m[2], Threshold: threshold}, nil
	}
	if m := reALanguage.FindStringSubmatch(expr); m != nil {
		return &LanguageAssertion{Selector: m[1]}, nil
	}
	if m := reAExists.FindStringSubmatch(expr); m != nil {
		return &ExistsAssertion{Selector: m[1]}, nil
	}
	if m := reAVisible.FindStringSubmatch(expr); m != nil {
		return &VisibleAssertion{Selector: m[1]}, nil
	}
	if m := reAChildren.FindStringSubmatch(expr); m != nil {
		count, _ := strconv.Atoi(m[3])
		return &ChildrenAssertion{Selector: m[1], Op: ChildrenOp(m[2]), Count: count}, nil
	}
	if m := reACLS.FindStringSubmatch(expr); m != nil {
		threshold, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed CLS threshold %q", m[1])
		}
		return &CLSAssertion{Threshold: threshold}, nil
	}
	if m := reAEachAttr.FindStringSubmatch(expr); m != nil {
		if _, err := regexp.Compile(m[3]); err != nil {
			return nil, fmt.Errorf("invalid regex /%s/: %v", m[3], err)
		}
		return &EachAttrRegexAssertion{Attr: m[1], Selector: m[2], Pattern: m[3]}, nil
	}
	if m := reANoDup.FindStringSubmatch(expr); m != nil {
		return &NoDuplicatesAssertion{Attr: m[1], Selector: m[2]}, nil
	}
	if m := reAAttrRegex.FindStringSubmatch(expr); m != nil {
		if _, err := regexp.Compile(m[3]); err != nil {
			return nil, fmt.Errorf("invalid regex /%s/: %v", m[3], err)
		}
		return &AttrRegexAssertion{Selector: m[1], Attr: m[2], Pattern: m[3]}, nil
	}
	if expr == "canonical href equals page.url" {
		return &CanonicalAssertion{}, nil
	}
	return nil, fmt.Errorf("unknown assertion: %s", expr)
}

// parseForEachURL consumes:
//
//	ForEachURL:
//	  "<url>"...
//	Do:
//	  <commands>
//	End
func (p *parser) parseForEachURL(line string, lineNo, i int) (Command, int, error) {
	if line != "ForEachURL:" {
		return nil, 0, p.errorf(lineNo, "malformed ForEachURL header, want: ForEachURL:")
	}
	cmd := &ForEachURLCommand{BaseCommand: BaseCommand{CmdType: CmdForEachURL, SrcLine: lineNo}}

	i++
	doSeen := false
	for i < len(p.lines) {
		n := i + 1
		l := strings.TrimSpace(p.lines[i])
		if l == "" || strings.HasPrefix(l, "#") {
			i++
			continue
		}
		if l == "Do:" {
			doSeen = true
			i++
			break
		}
		m := reAQuoted.FindStringSubmatch(l)
		if m == nil {
			return nil, 0, p.errorf(n, "ForEachURL entries must be quoted URLs, got %q", l)
		}
		cmd.URLs = append(cmd.URLs, m[1])
		i++
	}
	if !doSeen {
		return nil, 0, p.errorf(lineNo, "ForEachURL missing Do: section")
	}
	if len(cmd.URLs) == 0 {
		return nil, 0, p.errorf(lineNo, "ForEachURL requires at least one URL")
	}

	body, next, err := p.parseBlockBody(lineNo, i)
	if err != nil {
		return nil, 0, err
	}
	cmd.Body = body
	return cmd, next, nil
}

// parseForEachData consumes rows of comma-separated KEY=VALUE pairs, then a
// Do: body.
func (p *parser) parseForEachData(line string, lineNo, i int) (Command, int, error) {
	if line != "ForEachData:" {
		return nil, 0, p.errorf(lineNo, "malformed ForEachData header, want: ForEachData:")
	}
	cmd := &ForEachDataCommand{BaseCommand: BaseCommand{CmdType: CmdForEachData, SrcLine: lineNo}}

	i++
	doSeen := false
	for i < len(p.lines) {
		n := i + 1
		l := strings.TrimSpace(p.lines[i])
		if l == "" || strings.HasPrefix(l, "#") {
			i++
			continue
		}
		if l == "Do:" {
			doSeen = true
			i++
			break
		}
		row, err := parseDataRow(l)
		if err != nil {
			return nil, 0, p.errorf(n, "%v", err)
		}
		cmd.Rows = append(cmd.Rows, row)
		i++
	}
	if !doSeen {
		return nil, 0, p.errorf(lineNo, "ForEachData missing Do: section")
	}
	if len(cmd.Rows) == 0 {
		return nil, 0, p.errorf(lineNo, "ForEachData requires at least one data row")
	}

	body, next, err := p.parseBlockBody(lineNo, i)
	if err != nil {
		return nil, 0, err
	}
	cmd.Body = body
	return cmd, next, nil
}

func parseDataRow(line string) (DataRow, error) {
	row := DataRow{Values: make(map[string]string)}
	for _, part := range strings.Split(line, ",") {
		part = strings.TrimSpace(part)
		m := reDataPair.FindStringSubmatch(part)
		if m == nil {
			return DataRow{}, fmt.Errorf("ForEachData rows must be KEY=VALUE pairs, got %q", part)
		}
		if _, dup := row.Values[m[1]]; dup {
			return DataRow{}, fmt.Errorf("duplicate key %q in data row", m[1])
		}
		row.Keys = append(row.Keys, m[1])
		row.Values[m[1]] = m[2]
	}
	return row, nil
}

// parseBlockBody parses commands until the block's End. Iteration headers
// are rejected inside (one nesting level only).
func (p *parser) parseBlockBody(blockLine, i int) ([]Command, int, error) {
	var body []Command
	for i < len(p.lines) {
		n := i + 1
		l := strings.TrimSpace(p.lines[i])
		if l == "" || strings.HasPrefix(l, "#") {
			i++
			continue
		}
		if l == "End" {
			if len(body) == 0 {
				return nil, 0, p.errorf(blockLine, "iteration body is empty")
			}
			return body, i + 1, nil
		}
		cmd, next, err := p.parseCommand(l, n, i, true)
		if err != nil {
			return nil, 0, err
		}
		body = append(body, cmd)
		i = next
	}
	return nil, 0, p.errorf(blockLine, "iteration block not closed with End")
}

// importFlows eagerly parses the referenced file and merges its Flow
// definitions into this script's symbol table.
func (p *parser) importFlows(ref string, lineNo int) error {
	path := ref
	if !filepath.IsAbs(path) {
		path = filepath.Join(filepath.Dir(p.path), path)
	}
	abs := cleanPath(path)
	for _, seen := range p.importStack {
		if seen == abs {
			return p.errorf(lineNo, "import cycle through %q", ref)
		}
	}

	imported, err := parseFile(path, p.importStack)
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			return err
		}
		return p.errorf(lineNo, "cannot import %q: %v", ref, err)
	}

	for name, fl := range imported.Flows {
		if _, exists := p.script.Flows[name]; exists {
			return p.errorf(lineNo, "import %q redefines flow %q", ref, name)
		}
		p.script.Flows[name] = fl
	}
	return nil
}

// validateCase enforces the per-kind structural invariants.
func (p *parser) validateCase(tc *TestCase) error {
	asserts := countAssertions(tc.Commands)
	switch tc.Kind {
	case KindTest:
		if asserts == 0 {
			return p.errorf(tc.SrcLine, "Test %q must contain at least one assertion", tc.Name)
		}
	case KindFlow:
		if asserts > 0 {
			return p.errorf(tc.SrcLine, "Flow %q must not contain assertions", tc.Name)
		}
		if usesFlow(tc.Commands) {
			return p.errorf(tc.SrcLine, "Flow %q must not contain Use", tc.Name)
		}
	}
	return danglingRetry(p, tc.Name, tc.SrcLine, tc.Commands)
}

func countAssertions(cmds []Command) int {
	n := 0
	for _, c := range cmds {
		switch cmd := c.(type) {
		case *AssertCommand, *AssertCookieCommand:
			n++
		case *ForEachURLCommand:
			n += countAssertions(cmd.Body)
		case *ForEachDataCommand:
			n += countAssertions(cmd.Body)
		}
	}
	return n
}

func usesFlow(cmds []Command) bool {
	for _, c := range cmds {
		switch cmd := c.(type) {
		case *UseCommand:
			return true
		case *ForEachURLCommand:
			if usesFlow(cmd.Body) {
				return true
			}
		case *ForEachDataCommand:
			if usesFlow(cmd.Body) {
				return true
			}
		}
	}
	return false
}

// danglingRetry rejects a Retry that has no following command to bind to,
// or that binds to another Retry.
func danglingRetry(p *parser, name string, line int, cmds []Command) error {
	for idx, c := range cmds {
		switch cmd := c.(type) {
		case *RetryCommand:
			if idx == len(cmds)-1 {
				return p.errorf(cmd.SrcLine, "Retry in %q has no command to bind to", name)
			}
			if _, next := cmds[idx+1].(*RetryCommand); next {
				return p.errorf(cmd.SrcLine, "Retry in %q cannot bind to another Retry", name)
			}
		case *ForEachURLCommand:
			if err := danglingRetry(p, name, line, cmd.Body); err != nil {
				return err
			}
		case *ForEachDataCommand:
			if err := danglingRetry(p, name, line, cmd.Body); err != nil {
				return err
			}
		}
	}
	return nil
}

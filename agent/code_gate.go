package agent

import (
	"errors"
	"regexp"
)

// ErrForbiddenCode is returned for any generated code that trips the gate.
// The message is deliberately generic; rule details stay in the logs.
var ErrForbiddenCode = errors.New("generated code contains forbidden operations")

// gateRule is one precompiled denylist entry.
type gateRule struct {
	name    string
	pattern *regexp.Regexp
}

// CodeSafetyGate scans generated query code against an ordered denylist
// before any execution. First match rejects the whole string; there is no
// sanitization or rewriting. This is a best-effort gate over a narrow
// codegen contract, not a sandbox.
type CodeSafetyGate struct {
	rules []gateRule
}

// NewCodeSafetyGate builds a gate with the default rule set.
func NewCodeSafetyGate() *CodeSafetyGate {
	gate := &CodeSafetyGate{}
	for _, pattern := range defaultGatePatterns {
		gate.rules = append(gate.rules, gateRule{name: pattern, pattern: regexp.MustCompile(pattern)})
	}
	return gate
}

// AddPattern appends an extra denylist pattern, evaluated after the
// defaults.
func (g *CodeSafetyGate) AddPattern(pattern string) error {
	compiled, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	g.rules = append(g.rules, gateRule{name: pattern, pattern: compiled})
	return nil
}

// Check scans the code and returns ErrForbiddenCode on the first matching
// rule, along with the rule name for logging.
func (g *CodeSafetyGate) Check(code string) (string, error) {
	for _, rule := range g.rules {
		if rule.pattern.MatchString(code) {
			return rule.name, ErrForbiddenCode
		}
	}
	return "", nil
}

// defaultGatePatterns is the ordered denylist, kept as data so it can be
// extended and tested independently of the gate's control flow. Groups:
// import mechanisms, dynamic evaluation, filesystem, process, network,
// serialization, introspection, concurrency/signals, environment access,
// destructive data manipulation, and interpreter escapes.
var defaultGatePatterns = []string{
	`__import__`,
	`\bimport\b`,
	`\beval\(`,
	`\bexec\(`,
	`\bcompile\(`,
	`\bexecfile\(`,
	`\bopen\(`,
	`\bos\.`,
	`\bpathlib\.`,
	`\bshutil\.`,
	`\bglob\.`,
	`\btempfile\.`,
	`\bfnmatch\.`,
	`\bfileinput\.`,
	`\bsubprocess\.`,
	`\bos\.system\(`,
	`\bos\.popen\(`,
	`\bos\.spawn`,
	`\bos\.exec`,
	`\bpexpect\.`,
	`\bpty\.`,
	`\bcommands\.`,
	`\bsocket\.`,
	`\burllib\.`,
	`\burllib2\.`,
	`\brequests\.`,
	`\bhttplib\.`,
	`\bhttp\.client`,
	`\bftplib\.`,
	`\bsmtplib\.`,
	`\bimaplib\.`,
	`\bparamiko\.`,
	`\btwisted\.`,
	`\baiohttp\.`,
	`\bhttpx\.`,
	`\bpickle\.`,
	`\bcPickle\.`,
	`\bmarshal\.`,
	`\bshelve\.`,
	`\byaml\.load\(`,
	`\bjsonpickle\.`,
	`\bgetattr\(`,
	`\bsetattr\(`,
	`\bdelattr\(`,
	`\bhasattr\(`,
	`\bvars\(`,
	`\bdir\(`,
	`\bglobals\(`,
	`\blocals\(`,
	`\b__builtins__`,
	`\b__globals__`,
	`\b__locals__`,
	`\b__code__`,
	`\b__class__`,
	`\b__bases__`,
	`\b__subclasses__\(`,
	`\b__mro__`,
	`\bast\.`,
	`\bdis\.`,
	`\binspect\.`,
	`\btypes\.`,
	`\bctypes\.`,
	`\bcffi\.`,
	`\bmultiprocessing\.`,
	`\bthreading\.`,
	`\bconcurrent\.`,
	`\basyncio\.`,
	`\bsignal\.`,
	`\bos\.environ`,
	`\bos\.getenv\(`,
	`\bdotenv\.`,
	`\bconfigparser\.`,
	`\b\.execute\s*\(\s*['"]?\s*(INSERT|UPDATE|DELETE|DROP|CREATE|ALTER|TRUNCATE)`,
	`\bDROP\b`,
	`\bTRUNCATE\b`,
	`\bALTER\b`,
	`\bshlex\.`,
	`__class__.*__init__.*__globals__`,
	`\bbreakpoint\(`,
	`\binput\(`,
	`\bmemoryview\(`,
	`\b__debug__`,
}

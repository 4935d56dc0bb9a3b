package rules

import (
	"time"

	"deltascan/internal/model"

	"github.com/dlclark/regexp2"
	"go.uber.org/zap"
)

// DefaultMatchTimeout bounds a single rule evaluation against one value.
const DefaultMatchTimeout = 250 * time.Millisecond

// Rule is one compiled detection rule. Immutable after library initialization.
type Rule struct {
	Code        string
	Severity    model.Severity
	Pattern     *regexp2.Regexp
	Description string
	Tags        []string
}

// Library holds the ordered rule set: built-ins in catalogue order, then
// custom rules appended, with code collisions replacing the earlier rule.
type Library struct {
	rules        []Rule
	initialized  bool
	matchTimeout time.Duration
	logger       *zap.SugaredLogger
}

func NewLibrary(logger *zap.SugaredLogger) *Library {
	return &Library{
		matchTimeout: DefaultMatchTimeout,
		logger:       logger,
	}
}

// Initialize builds the rule set. It is idempotent: a second call is a
// no-op with a warning. A malformed custom pattern is dropped with a
// warning; it never aborts initialization of the remaining rules.
func (l *Library) Initialize(custom []CustomPattern) error {
	if l.initialized {
		l.logger.Warnw("rule library already initialized, ignoring repeat call")
		return nil
	}

	l.rules = make([]Rule, 0, len(builtinCatalogue)+len(custom))
	for _, s := range builtinCatalogue {
		rule, err := l.compile(s)
		if err != nil {
			// Built-ins are fixed at compile time; a failure here is a
			// programming error, not an input error.
			return err
		}
		l.rules = append(l.rules, rule)
	}

	for _, cp := range custom {
		s, err := cp.toSpec()
		if err != nil {
			l.logger.Warnw("dropping invalid custom pattern", "code", cp.Code, "error", err)
			continue
		}
		rule, err := l.compile(s)
		if err != nil {
			l.logger.Warnw("dropping custom pattern with invalid regex", "code", cp.Code, "error", err)
			continue
		}
		if idx := l.indexOf(rule.Code); idx >= 0 {
			// Last definition wins: the custom rule replaces the built-in
			// at its catalogue position.
			l.rules[idx] = rule
			l.logger.Infow("custom pattern replaces built-in rule", "code", rule.Code)
		} else {
			l.rules = append(l.rules, rule)
		}
	}

	l.initialized = true
	l.logger.Infow("rule library initialized", "rules", len(l.rules))
	return nil
}

func (l *Library) compile(s spec) (Rule, error) {
	re, err := regexp2.Compile(s.regex, 0)
	if err != nil {
		return Rule{}, err
	}
	re.MatchTimeout = l.matchTimeout
	return Rule{
		Code:        s.code,
		Severity:    s.severity,
		Pattern:     re,
		Description: s.description,
		Tags:        s.tags,
	}, nil
}

func (l *Library) indexOf(code string) int {
	for i := range l.rules {
		if l.rules[i].Code == code {
			return i
		}
	}
	return -1
}

// FindFirstViolation returns the first rule in construction order whose
// pattern matches value. Severity plays no part in the ordering. An empty
// value never matches; a per-rule match timeout counts as no match for
// that rule.
func (l *Library) FindFirstViolation(value string) (model.RuleMatch, bool) {
	if value == "" {
		return model.RuleMatch{}, false
	}
	for i := range l.rules {
		matched, err := l.rules[i].Pattern.MatchString(value)
		if err != nil {
			l.logger.Debugw("rule evaluation timed out", "code", l.rules[i].Code)
			continue
		}
		if matched {
			r := &l.rules[i]
			return model.RuleMatch{
				Code:        r.Code,
				Severity:    r.Severity,
				Description: r.Description,
			}, true
		}
	}
	return model.RuleMatch{}, false
}

// Rules returns a copy of the ordered rule set.
func (l *Library) Rules() []Rule {
	out := make([]Rule, len(l.rules))
	copy(out, l.rules)
	return out
}

var _ model.Classifier = (*Library)(nil)

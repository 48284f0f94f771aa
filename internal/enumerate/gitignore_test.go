package enumerate

import "testing"

func TestIgnoreRuleSet_MatchesSimplePattern(t *testing.T) {
	r, ok := parseIgnoreLine("*.log", "")
	if !ok {
		t.Fatal("expected a rule")
	}
	rules := ignoreRuleSet{r}

	if !rules.matches("debug.log", false) {
		t.Error("expected debug.log to be ignored")
	}
	if rules.matches("main.go", false) {
		t.Error("did not expect main.go to be ignored")
	}
}

func TestIgnoreRuleSet_NegationUnignores(t *testing.T) {
	all, _ := parseIgnoreLine("*.log", "")
	keep, _ := parseIgnoreLine("!keep.log", "")
	rules := ignoreRuleSet{all, keep}

	if rules.matches("keep.log", false) {
		t.Error("expected keep.log to survive the negated rule")
	}
	if !rules.matches("debug.log", false) {
		t.Error("expected debug.log to still be ignored")
	}
}

func TestIgnoreRuleSet_DirOnlyRuleSparesFiles(t *testing.T) {
	r, _ := parseIgnoreLine("build/", "")
	rules := ignoreRuleSet{r}

	if !rules.matches("build", true) {
		t.Error("expected the build directory to be ignored")
	}
	if rules.matches("build", false) {
		t.Error("a dir-only rule should never match a file of the same name")
	}
}

func TestIgnoreRuleSet_BaseScopesRuleToItsSubtree(t *testing.T) {
	r, _ := parseIgnoreLine("*.tmp", "vendor")
	rules := ignoreRuleSet{r}

	if !rules.matches("vendor/pkg/cache.tmp", false) {
		t.Error("expected a match scoped under its base directory")
	}
	if rules.matches("other/cache.tmp", false) {
		t.Error("a base-scoped rule must not match outside its subtree")
	}
}

func TestParseIgnoreLine_BlankAndCommentLinesYieldNoRule(t *testing.T) {
	if _, ok := parseIgnoreLine("", ""); ok {
		t.Error("blank line should not produce a rule")
	}
	if _, ok := parseIgnoreLine("# a comment", ""); ok {
		t.Error("comment line should not produce a rule")
	}
	if _, ok := parseIgnoreLine(`\#literal`, ""); !ok {
		t.Error("escaped comment marker should produce a literal rule")
	}
}

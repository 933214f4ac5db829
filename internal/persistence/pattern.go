package persistence

import (
	"regexp"
	"strings"
)

// SearchPattern is a glob over session keys and snapshot names. A '*' matches
// any run of characters, everything else matches itself and the whole name
// must match. The empty pattern matches nothing.
type SearchPattern struct {
	glob string
	re   *regexp.Regexp
}

func Pattern(glob string) SearchPattern {
	if glob == "" {
		return SearchPattern{}
	}
	var b strings.Builder
	b.WriteByte('^')
	for i, part := range strings.Split(glob, "*") {
		if i > 0 {
			b.WriteString(".*")
		}
		b.WriteString(regexp.QuoteMeta(part))
	}
	b.WriteByte('$')
	return SearchPattern{glob: glob, re: regexp.MustCompile(b.String())}
}

func (p SearchPattern) Valid() bool {
	return p.re != nil
}

func (p SearchPattern) Match(name string) bool {
	return p.re != nil && p.re.MatchString(name)
}

func (p SearchPattern) String() string {
	return p.glob
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`, `*`, `%`)

// LikeString turns the glob into a SQL LIKE operand escaped with '\'
func (p SearchPattern) LikeString() string {
	return likeEscaper.Replace(p.glob)
}

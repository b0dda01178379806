package expression

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mulesoft/mule-sub047/pkg/cache"
)

var regexCache cache.Cache[*regexp.Regexp]

func init() {
	var err error
	regexCache, err = cache.NewLRU[*regexp.Regexp](100)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize regex cache: %v", err))
	}
}

// compileRegex returns a cached compiled regex or compiles and caches a new one
func compileRegex(pattern string) (*regexp.Regexp, error) {
	if re, found := regexCache.Get(pattern); found {
		return re, nil
	}

	if err := validateRegexComplexity(pattern); err != nil {
		return nil, err
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern '%s': %w", pattern, err)
	}

	_, _ = regexCache.Set(pattern, re)
	return re, nil
}

// validateRegexComplexity rejects patterns that are long, deeply nested or
// built from nested quantifiers.
func validateRegexComplexity(pattern string) error {
	if len(pattern) > 500 {
		return fmt.Errorf("regex pattern too long (max 500 chars): %d chars", len(pattern))
	}

	for _, fragment := range []string{`(\w+)*`, `(\w*)+`, `(a+)+`, `(.*)*`, `(.+)+`, `(\d+)*`, `(\s+)*`} {
		if strings.Contains(pattern, fragment) {
			return fmt.Errorf("regex pattern contains nested quantifiers")
		}
	}

	nestLevel, maxNest := 0, 0
	for _, ch := range pattern {
		switch ch {
		case '(':
			nestLevel++
			if nestLevel > maxNest {
				maxNest = nestLevel
			}
		case ')':
			nestLevel--
		}
	}
	if maxNest > 5 {
		return fmt.Errorf("regex pattern has excessive nesting depth (max 5 levels)")
	}
	return nil
}

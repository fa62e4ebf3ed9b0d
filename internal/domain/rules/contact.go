package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

const (
	ContactPatternsV1     = "v1"
	DefaultContactVersion = ContactPatternsV1

	contactMatchTimeout = 250 * time.Millisecond
)

// ContactPatterns is one published revision of the contact-sharing heuristic.
// Known false positives: long digit runs such as order numbers or dates written
// without words. Known false negatives: spelled-out numbers and obfuscated e-mails.
type ContactPatterns struct {
	Version  string
	Email    string
	Phone    string
	Keywords []string
}

var contactPatternSets = map[string]ContactPatterns{
	ContactPatternsV1: {
		Version: ContactPatternsV1,
		Email:   `[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`,
		Phone:   `(?<![\w+])\+?(?:\d[\s().\-]{0,2}){7,14}\d(?!\d)`,
		Keywords: []string{
			"instagram",
			"insta",
			"snapchat",
			"whatsapp",
			"telegram",
			"tiktok",
			"facebook",
			"twitter",
			"discord",
			"signal",
			"viber",
		},
	},
}

func ContactPatternSet(version string) (ContactPatterns, bool) {
	set, ok := contactPatternSets[strings.TrimSpace(version)]
	return set, ok
}

type ContactDetector struct {
	version  string
	patterns []*regexp2.Regexp
}

func NewContactDetector(version string, extraKeywords []string) (*ContactDetector, error) {
	if strings.TrimSpace(version) == "" {
		version = DefaultContactVersion
	}
	set, ok := ContactPatternSet(version)
	if !ok {
		return nil, fmt.Errorf("unknown contact patterns version %q", version)
	}

	keywords := make([]string, 0, len(set.Keywords)+len(extraKeywords))
	for _, kw := range append(append([]string{}, set.Keywords...), extraKeywords...) {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		keywords = append(keywords, regexp2.Escape(kw))
	}

	sources := []string{set.Email, set.Phone}
	if len(keywords) > 0 {
		sources = append(sources, `(?<![\p{L}\p{N}_])(?:`+strings.Join(keywords, "|")+`)(?![\p{L}\p{N}_])`)
	}

	detector := &ContactDetector{version: set.Version}
	for _, src := range sources {
		re, err := regexp2.Compile(src, regexp2.IgnoreCase)
		if err != nil {
			return nil, fmt.Errorf("compile contact pattern: %w", err)
		}
		re.MatchTimeout = contactMatchTimeout
		detector.patterns = append(detector.patterns, re)
	}

	return detector, nil
}

func (d *ContactDetector) Version() string {
	return d.version
}

// Exchanged reports whether any message body contains contact details.
// The answer covers the whole conversation, never a single author.
func (d *ContactDetector) Exchanged(bodies []string) (bool, error) {
	for _, body := range bodies {
		if strings.TrimSpace(body) == "" {
			continue
		}
		for _, re := range d.patterns {
			ok, err := re.MatchString(body)
			if err != nil {
				return false, fmt.Errorf("match contact pattern: %w", err)
			}
			if ok {
				return true, nil
			}
		}
	}
	return false, nil
}

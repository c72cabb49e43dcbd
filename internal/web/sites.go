package web

import (
	"net/url"
	"strings"

	"github.com/ppiankov/dealdesk/internal/model"
)

// DefaultProfileDomains host profiles of organisations rather than the
// organisations themselves. A candidate website on one of these is kept as
// a source URL, never as the entity's website.
var DefaultProfileDomains = []string{
	"linkedin.com",
	"crunchbase.com",
	"pitchbook.com",
	"cbinsights.com",
	"wellfound.com",
	"angel.co",
	"wikipedia.org",
	"bloomberg.com",
	"zoominfo.com",
	"glassdoor.com",
	"facebook.com",
	"twitter.com",
	"x.com",
	"instagram.com",
	"youtube.com",
	"github.com",
}

// SiteClassifier tells official websites apart from profile pages
type SiteClassifier struct {
	profileMap map[string]bool
}

var defaultSites = NewSiteClassifier(nil)

// NewSiteClassifier classifies DefaultProfileDomains plus extra as profile
// hosts. Subdomains of a listed domain match too.
func NewSiteClassifier(extra []string) *SiteClassifier {
	s := &SiteClassifier{profileMap: make(map[string]bool, len(DefaultProfileDomains)+len(extra))}
	for _, domain := range append(append([]string{}, DefaultProfileDomains...), extra...) {
		domain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(domain), "www."))
		if domain != "" {
			s.profileMap[domain] = true
		}
	}
	return s
}

// IsProfile reports whether rawURL points at a profile host
func (s *SiteClassifier) IsProfile(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return false
	}

	if s.profileMap[host] {
		return true
	}
	for domain := range s.profileMap {
		if strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// Demote moves a profile-page website into the candidate's source URLs
func (s *SiteClassifier) Demote(c model.WebCandidate) model.WebCandidate {
	if c.Website == "" || !s.IsProfile(c.Website) {
		return c
	}
	for _, u := range c.SourceURLs {
		if u == c.Website {
			c.Website = ""
			return c
		}
	}
	c.SourceURLs = append([]string{c.Website}, c.SourceURLs...)
	c.Website = ""
	return c
}

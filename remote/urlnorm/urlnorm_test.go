package urlnorm_test

import (
	"testing"

	"github.com/nostrsync/ngit/remote/urlnorm"
)

func TestNormalizeLowercasesSchemeAndHostAndStripsTrailingSlash(t *testing.T) {
	cases := []struct{ in, want string }{
		{"HTTPS://Example.COM/repo/", "https://example.com/repo"},
		{"https://example.com/repo", "https://example.com/repo"},
		{"/srv/git/repo.git/", "/srv/git/repo.git"},
		{"/srv/git/repo.git", "/srv/git/repo.git"},
	}
	for _, c := range cases {
		if got := urlnorm.Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestDedupURLsPreservesFirstOccurrenceOrder(t *testing.T) {
	in := []string{
		"https://Mirror.example.com/repo/",
		"https://other.example.com/repo",
		"https://mirror.example.com/repo",
	}
	got := urlnorm.DedupURLs(in)
	want := []string{
		"https://Mirror.example.com/repo/",
		"https://other.example.com/repo",
	}
	if len(got) != len(want) {
		t.Fatalf("DedupURLs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("DedupURLs()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestContainsURLMatchesNormalizedForm(t *testing.T) {
	urls := []string{"https://Mirror.example.com/repo/"}
	if !urlnorm.ContainsURL(urls, "https://mirror.example.com/repo") {
		t.Error("ContainsURL() = false, want true for a normalization-equal URL")
	}
	if urlnorm.ContainsURL(urls, "https://mirror.example.com/other") {
		t.Error("ContainsURL() = true, want false for a genuinely different URL")
	}
}

package divergence_test

import (
	"testing"

	"github.com/nostrsync/ngit/remote/divergence"
)

func TestMessageFormats(t *testing.T) {
	cases := []struct {
		report divergence.Report
		want   string
	}{
		{divergence.Report{Status: divergence.Matches}, ""},
		{
			divergence.Report{Mirror: "/tmp/src", Ref: "refs/heads/main", Status: divergence.Missing},
			"WARNING: /tmp/src refs/heads/main is missing but tracked on nostr",
		},
		{
			divergence.Report{Mirror: "/tmp/src", Ref: "refs/heads/main", Status: divergence.Ahead, Ahead: 0, Behind: 1},
			"WARNING: /tmp/src refs/heads/main is 0 ahead 1 behind nostr",
		},
		{
			divergence.Report{Mirror: "/tmp/src", Ref: "refs/heads/main", Status: divergence.OutOfSync},
			"WARNING: /tmp/src refs/heads/main is out of sync with nostr",
		},
	}
	for _, c := range cases {
		if got := c.report.Message(); got != c.want {
			t.Errorf("Message() = %q, want %q", got, c.want)
		}
	}
}

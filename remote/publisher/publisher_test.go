package publisher

import "testing"

func TestParseRefspec(t *testing.T) {
	rs, err := ParseRefspec("+refs/heads/a:refs/heads/b")
	if err != nil {
		t.Fatalf("ParseRefspec: %v", err)
	}
	if !rs.Force || rs.Src != "refs/heads/a" || rs.Dst != "refs/heads/b" {
		t.Fatalf("unexpected refspec: %+v", rs)
	}
}

func TestParseRefspecDeletion(t *testing.T) {
	rs, err := ParseRefspec(":refs/heads/old")
	if err != nil {
		t.Fatalf("ParseRefspec: %v", err)
	}
	if rs.Src != "" || rs.Dst != "refs/heads/old" {
		t.Fatalf("unexpected deletion refspec: %+v", rs)
	}
}

func TestParseRefspecMalformed(t *testing.T) {
	if _, err := ParseRefspec("no-colon-here"); err == nil {
		t.Fatal("expected error for malformed refspec")
	}
}

func TestBuildResultsAllRejected(t *testing.T) {
	refspecs := []Refspec{{Src: "", Dst: "refs/heads/old"}}
	outcomes := []MirrorOutcome{
		{Rejected: map[string]string{"refs/heads/old": "non-grasp mirror refuses deletion"}},
	}
	results := buildResults(refspecs, outcomes)
	if len(results) != 1 || results[0].OK {
		t.Fatalf("expected rejected result, got %+v", results)
	}
	if results[0].Msg != "non-grasp mirror refuses deletion" {
		t.Fatalf("unexpected message: %q", results[0].Msg)
	}
}

func TestBuildResultsAcceptedWhenAnyMirrorSucceeds(t *testing.T) {
	refspecs := []Refspec{{Src: "abc", Dst: "refs/heads/feature"}}
	outcomes := []MirrorOutcome{
		{Rejected: map[string]string{"refs/heads/feature": "timeout"}},
		{Rejected: map[string]string{}},
	}
	results := buildResults(refspecs, outcomes)
	if len(results) != 1 || !results[0].OK {
		t.Fatalf("expected accepted result, got %+v", results)
	}
}

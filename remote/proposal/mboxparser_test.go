package proposal

import "testing"

const samplePatch = `From abc123def456 Mon Sep 17 00:00:00 2001
From: Jane Doe <jane@example.com>
Date: Tue, 15 Aug 2023 10:30:00 +0000
Subject: Re: Fix off-by-one in paginator

This fixes the off-by-one error reported in issue #42.

---
 paginator.go | 2 +-
 1 file changed, 1 insertion(+), 1 deletion(-)

diff --git a/paginator.go b/paginator.go
index 1111111..2222222 100644
--- a/paginator.go
+++ b/paginator.go
@@ -1,1 +1,1 @@
-old
+new
--
2.39.2
`

func TestParseMboxPatch(t *testing.T) {
	meta, err := ParseMboxPatch(samplePatch)
	if err != nil {
		t.Fatalf("ParseMboxPatch: %v", err)
	}
	if meta.CommitID != "abc123def456" {
		t.Errorf("CommitID = %q, want abc123def456", meta.CommitID)
	}
	if meta.AuthorName != "Jane Doe" || meta.AuthorEmail != "jane@example.com" {
		t.Errorf("author = %q <%q>, want Jane Doe <jane@example.com>", meta.AuthorName, meta.AuthorEmail)
	}
	if meta.Subject != "Fix off-by-one in paginator" {
		t.Errorf("Subject = %q, want cleaned subject without [PATCH]/Re: prefixes trimmed only of Re:", meta.Subject)
	}
	if meta.Body == "" {
		t.Error("expected a non-empty body")
	}
}

func TestParseMboxPatchRejectsNonMbox(t *testing.T) {
	if _, err := ParseMboxPatch("not a patch"); err == nil {
		t.Fatal("expected error for non-mbox content")
	}
}

package tools

import "testing"

func TestAutoCommitRunsConfigAddCommitPush(t *testing.T) {
	git := &fakeGit{}
	hash, err := autoCommit(git, GitIdentity{Name: "bot", Email: "bot@example.com"}, "/repo/a.txt", "created", "created")
	if err != nil {
		t.Fatalf("autoCommit: %v", err)
	}
	if hash != "deadbeef" {
		t.Fatalf("hash = %q, want deadbeef", hash)
	}
	if len(git.calls) != 5 {
		t.Fatalf("calls = %v, want 5 (config x2, add, commit, push)", git.calls)
	}
}

func TestHasWorkingTreeChangesReflectsStatus(t *testing.T) {
	clean := &fakeGit{}
	if hasWorkingTreeChanges(clean) {
		t.Fatal("expected clean tree to report no changes")
	}
	dirty := &fakeGit{dirty: true}
	if !hasWorkingTreeChanges(dirty) {
		t.Fatal("expected dirty tree to report changes")
	}
}

func TestClassifyCommitTypeByOperation(t *testing.T) {
	if got := classifyCommitType("created", "anything", "a.txt"); got != "feat" {
		t.Fatalf("got %q, want feat", got)
	}
	if got := classifyCommitType("overwritten", "anything", "a.txt"); got != "chore" {
		t.Fatalf("got %q, want chore", got)
	}
	if got := classifyCommitType("executed: ls", "anything", "a.txt"); got != "chore" {
		t.Fatalf("got %q, want chore", got)
	}
}

func TestClassifyCommitTypeByDescriptionKeyword(t *testing.T) {
	if got := classifyCommitType("other", "fix the bug", "a.txt"); got != "fix" {
		t.Fatalf("got %q, want fix", got)
	}
	if got := classifyCommitType("other", "add a new feature", "a.txt"); got != "feat" {
		t.Fatalf("got %q, want feat", got)
	}
}

func TestClassifyCommitTypeFallsBackToFileName(t *testing.T) {
	if got := classifyCommitType("other", "", "handler_test.go"); got != "test" {
		t.Fatalf("got %q, want test", got)
	}
	if got := classifyCommitType("other", "", "README.md"); got != "docs" {
		t.Fatalf("got %q, want docs", got)
	}
	if got := classifyCommitType("other", "", "styles.css"); got != "style" {
		t.Fatalf("got %q, want style", got)
	}
	if got := classifyCommitType("other", "", "plain.go"); got != "chore" {
		t.Fatalf("got %q, want chore", got)
	}
}

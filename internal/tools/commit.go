package tools

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/agentstart/agentstart-sub001/internal/agent"
)

// GitIdentity is the fixed commit author injected by configuration
// (§4.3.1 step 1).
type GitIdentity struct {
	Name  string
	Email string
}

// autoCommit runs the §4.3.1 protocol: configure identity, stage path,
// commit with a classified conventional-commit message, push. Any step
// failing after identity configuration is non-fatal — the caller still
// reports tool success, just without a commitHash. A failure to
// configure credentials propagates, per §4.3.1's last sentence.
func autoCommit(git agent.GitFacade, identity GitIdentity, relPath, operation, description string) (hash string, err error) {
	if res := git.Run("config", "user.name", identity.Name); !res.Success {
		return "", fmt.Errorf("git config user.name: %s", res.ErrorMsg)
	}
	if res := git.Run("config", "user.email", identity.Email); !res.Success {
		return "", fmt.Errorf("git config user.email: %s", res.ErrorMsg)
	}

	if res := git.Run("add", relPath); !res.Success {
		return "", nil
	}

	msg := fmt.Sprintf("%s(%s): %s", classifyCommitType(operation, description, relPath), filepath.Base(relPath), description)
	commitRes := git.Run("commit", "-m", msg)
	if !commitRes.Success {
		return "", nil
	}

	pushRes := git.Run("push")
	if !pushRes.Success {
		return "", nil
	}

	return commitRes.Hash, nil
}

// hasWorkingTreeChanges reports whether `git status --porcelain`
// shows any new/changed/deleted/renamed files, used by the bash tool
// to decide whether a shell command warrants an auto-commit.
func hasWorkingTreeChanges(git agent.GitFacade) bool {
	res := git.Run("status", "--porcelain")
	return res.Success && strings.TrimSpace(res.Message) != ""
}

var (
	fixKeywords    = regexp.MustCompile(`(?i)\b(fix|bug)\b`)
	featKeywords   = regexp.MustCompile(`(?i)\b(add|new)\b`)
	choreKeywords  = regexp.MustCompile(`(?i)\b(remove|delete|update|change)\b`)
	testFileRegexp = regexp.MustCompile(`(?i)test|\.spec\.`)
	docsFileRegexp = regexp.MustCompile(`(?i)^readme|\.md$`)
	styleFileRegexp = regexp.MustCompile(`(?i)\.(css|scss|less|sass)$`)
)

// classifyCommitType implements the glossary's "Auto-commit
// classification" priority chain.
func classifyCommitType(operation, description, fileName string) string {
	switch operation {
	case "created":
		return "feat"
	case "overwritten", "edited":
		return "chore"
	}
	if strings.HasPrefix(operation, "executed:") {
		return "chore"
	}

	if fixKeywords.MatchString(description) {
		return "fix"
	}
	if featKeywords.MatchString(description) {
		return "feat"
	}
	if choreKeywords.MatchString(description) {
		return "chore"
	}

	base := filepath.Base(fileName)
	switch {
	case testFileRegexp.MatchString(base):
		return "test"
	case docsFileRegexp.MatchString(base):
		return "docs"
	case styleFileRegexp.MatchString(base):
		return "style"
	}
	return "chore"
}

package sandbox

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	toolbox "github.com/daytonaio/daytona/libs/toolbox-api-client-go"

	"github.com/agentstart/agentstart-sub001/internal/agent"
	"github.com/agentstart/agentstart-sub001/internal/kv"
	"github.com/agentstart/agentstart-sub001/pkg/runtypes"
)

const leaseKeyPrefix = "sandbox:heartbeat:"

func leaseKey(sandboxID string) string { return leaseKeyPrefix + sandboxID }

// Adapter is the concrete Sandbox Adapter & Lease Manager (§4.2): one
// Daytona sandbox per thread, a KV-backed TTL lease standing in for
// the liveness heartbeat, and fs/shell/git façades built over the
// toolbox API's confirmed surface (ExecuteCommand plus the file
// primitives the teacher already exercised).
type Adapter struct {
	client *daytonaClient
	leases kv.Store

	mu            sync.Mutex
	sandboxID     string
	toolboxClient *toolbox.APIClient
	workDir       string
	createdAt     time.Time
	ttl           time.Duration
	reusable      bool
}

// NewAdapter builds an Adapter from a resolved Daytona config and a
// lease store. ttl governs both the KV heartbeat expiry and the
// Daytona auto-stop interval reported to GetStatus.
func NewAdapter(cfg *DaytonaConfig, leases kv.Store, ttl time.Duration) (*Adapter, error) {
	client, err := newDaytonaClient(cfg)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Adapter{client: client, leases: leases, ttl: ttl}, nil
}

// ConnectOrCreate attaches to an existing sandbox (restarting it if
// stopped) or provisions a new one when sandboxID is empty. On return
// the adapter's fs/shell/git façades are ready to use.
func (a *Adapter) ConnectOrCreate(ctx context.Context, sandboxID string, cfg *DaytonaConfig) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var id string
	if sandboxID != "" {
		sb, err := a.client.attachSandbox(ctx, sandboxID)
		if err != nil {
			return "", err
		}
		id = sb.GetId()
	} else {
		resolved, err := resolveDaytonaConfig(cfg)
		if err != nil {
			return "", err
		}
		sb, err := a.client.createSandbox(ctx, resolved)
		if err != nil {
			return "", err
		}
		id = sb.GetId()
		a.reusable = resolved.ReuseSandbox
	}

	tc, err := a.client.toolboxClient(ctx, id, "")
	if err != nil {
		return "", err
	}
	wd, err := a.fetchWorkDirLocked(ctx, tc)
	if err != nil {
		return "", err
	}

	a.sandboxID = id
	a.toolboxClient = tc
	a.workDir = wd
	a.createdAt = time.Now()

	if err := a.leases.Set(ctx, leaseKey(id), strconv.FormatInt(a.createdAt.UnixMilli(), 10), a.ttl); err != nil {
		return "", fmt.Errorf("sandbox: set lease: %w", err)
	}
	return id, nil
}

func (a *Adapter) fetchWorkDirLocked(ctx context.Context, tc *toolbox.APIClient) (string, error) {
	resp, httpResp, err := tc.InfoAPI.GetWorkDir(ctx).Execute()
	if err == nil && resp != nil && resp.GetDir() != "" {
		return resp.GetDir(), nil
	}
	if err != nil {
		return "", fmt.Errorf("daytona get workdir: %w", formatToolboxError(err, httpResp))
	}
	return "/home/daytona", nil
}

// KeepAlive refreshes the lease TTL. Callers invoke this on every tool
// call and every streamed chunk so an active thread's sandbox never
// expires mid-turn.
func (a *Adapter) KeepAlive(ctx context.Context) error {
	a.mu.Lock()
	id := a.sandboxID
	ttl := a.ttl
	a.mu.Unlock()
	if id == "" {
		return fmt.Errorf("sandbox: not connected")
	}
	return a.leases.Set(ctx, leaseKey(id), strconv.FormatInt(time.Now().UnixMilli(), 10), ttl)
}

// Stop releases the lease without deleting the underlying sandbox,
// allowing a later ConnectOrCreate to reattach.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	id := a.sandboxID
	a.mu.Unlock()
	if id == "" {
		return nil
	}
	return a.leases.Delete(ctx, leaseKey(id))
}

// Dispose stops the lease and permanently deletes the sandbox.
func (a *Adapter) Dispose(ctx context.Context) error {
	a.mu.Lock()
	id := a.sandboxID
	a.mu.Unlock()
	if id == "" {
		return nil
	}
	_ = a.leases.Delete(ctx, leaseKey(id))
	return a.client.deleteSandbox(ctx, id)
}

// GetStatus reports liveness and uptime for the RPC surface's
// sandbox.status contract.
func (a *Adapter) GetStatus(ctx context.Context) (runtypes.SandboxStatus, error) {
	a.mu.Lock()
	id, createdAt, reusable := a.sandboxID, a.createdAt, a.reusable
	a.mu.Unlock()
	if id == "" {
		return runtypes.SandboxStatus{}, nil
	}
	_, active, err := a.leases.Get(ctx, leaseKey(id))
	if err != nil {
		return runtypes.SandboxStatus{}, err
	}
	return runtypes.SandboxStatus{
		Active:       active,
		SandboxID:    id,
		Uptime:       time.Since(createdAt),
		LastActivity: time.Now(),
		Reusable:     reusable,
	}, nil
}

// Fs returns the filesystem façade for the connected sandbox.
func (a *Adapter) Fs() agent.FsFacade { return (*fsFacade)(a) }

// Shell returns the shell façade for the connected sandbox.
func (a *Adapter) Shell() agent.ShellFacade { return (*shellFacade)(a) }

// Git returns the git façade for the connected sandbox.
func (a *Adapter) Git() agent.GitFacade { return (*gitFacade)(a) }

func (a *Adapter) exec(ctx context.Context, cwd, command string, timeoutMs int) (agent.BashResult, error) {
	a.mu.Lock()
	tc := a.toolboxClient
	workDir := a.workDir
	a.mu.Unlock()
	if tc == nil {
		return agent.BashResult{}, fmt.Errorf("sandbox: not connected")
	}
	if cwd == "" {
		cwd = workDir
	}

	req := toolbox.NewExecuteRequest(command)
	req.SetCwd(cwd)
	if timeoutMs > 0 {
		req.SetTimeout(int32(timeoutMs / 1000))
	}

	start := time.Now()
	resp, httpResp, err := tc.ProcessAPI.ExecuteCommand(ctx).Request(*req).Execute()
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return agent.BashResult{Duration: elapsed, Err: err}, fmt.Errorf("daytona execute command: %w", formatToolboxError(err, httpResp))
	}
	exitCode := 0
	if resp.ExitCode != nil {
		exitCode = int(*resp.ExitCode)
	}
	return agent.BashResult{
		ExitCode: exitCode,
		Stdout:   resp.Result,
		Duration: elapsed,
	}, nil
}

// shellFacade adapts Adapter to agent.ShellFacade (§4.2 shell.bash).
type shellFacade Adapter

func (s *shellFacade) Bash(cwd, command string, env map[string]string, timeoutMs int) (agent.BashResult, error) {
	full := command
	if len(env) > 0 {
		var b strings.Builder
		for k, v := range env {
			b.WriteString(shellQuoteEnv(k, v))
			b.WriteByte(' ')
		}
		full = b.String() + command
	}
	return (*Adapter)(s).exec(context.Background(), cwd, full, timeoutMs)
}

func shellQuoteEnv(key, value string) string {
	return key + "=" + strconv.Quote(value)
}

// fsFacade adapts Adapter to agent.FsFacade (§4.2). Every operation is
// expressed as a portable shell command run through ExecuteCommand —
// the only toolbox capability the pack's own code exercised for
// arbitrary remote command execution — plus the confirmed
// FileSystemAPI primitives for writes.
type fsFacade Adapter

func (f *fsFacade) resolve(p string) string {
	if strings.HasPrefix(p, "/") {
		return p
	}
	return path.Join(f.workDirLocked(), p)
}

func (f *fsFacade) workDirLocked() string {
	a := (*Adapter)(f)
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.workDir
}

func (f *fsFacade) ReadDir(p string, recursive bool, ignores []string) ([]agent.Dirent, error) {
	target := f.resolve(p)
	depth := "-maxdepth 1"
	if recursive {
		depth = ""
	}
	prune := ""
	for _, ig := range ignores {
		prune += fmt.Sprintf(" -name %s -prune -o", strconv.Quote(ig))
	}
	cmd := fmt.Sprintf("find %s %s %s -mindepth 1 -printf '%%y|%%p|%%s|%%T@\\n'", strconv.Quote(target), depth, prune)
	res, err := (*Adapter)(f).exec(context.Background(), "", cmd, 30000)
	if err != nil {
		return nil, err
	}
	var out []agent.Dirent
	for _, line := range strings.Split(strings.TrimRight(res.Stdout, "\n"), "\n") {
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, "|", 4)
		if len(fields) != 4 {
			continue
		}
		typ := "file"
		switch fields[0] {
		case "d":
			typ = "dir"
		case "l":
			typ = "symlink"
		}
		size, _ := strconv.ParseInt(fields[2], 10, 64)
		mtimeF, _ := strconv.ParseFloat(fields[3], 64)
		out = append(out, agent.Dirent{
			Name:         path.Base(fields[1]),
			Path:         fields[1],
			ParentPath:   path.Dir(fields[1]),
			Type:         typ,
			Size:         size,
			ModifiedTime: int64(mtimeF * 1000),
		})
	}
	return out, nil
}

func (f *fsFacade) ReadFile(p string) ([]byte, error) {
	target := f.resolve(p)
	cmd := fmt.Sprintf("base64 -w0 %s", strconv.Quote(target))
	res, err := (*Adapter)(f).exec(context.Background(), "", cmd, 30000)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("sandbox: read %s: exit %d", p, res.ExitCode)
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(res.Stdout))
}

func (f *fsFacade) WriteFile(p string, data []byte, recursive bool) error {
	a := (*Adapter)(f)
	a.mu.Lock()
	tc := a.toolboxClient
	a.mu.Unlock()
	if tc == nil {
		return fmt.Errorf("sandbox: not connected")
	}
	target := f.resolve(p)
	if recursive {
		if err := f.Mkdir(path.Dir(target), true); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp("", "agentstart-upload-*")
	if err != nil {
		return fmt.Errorf("sandbox: stage upload: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("sandbox: stage upload: %w", err)
	}
	if _, err := tmp.Seek(0, 0); err != nil {
		tmp.Close()
		return fmt.Errorf("sandbox: stage upload: %w", err)
	}
	defer tmp.Close()

	_, httpResp, err := tc.FileSystemAPI.UploadFile(context.Background()).Path(target).File(tmp).Execute()
	if err != nil {
		return fmt.Errorf("daytona upload file: %w", formatToolboxError(err, httpResp))
	}
	return nil
}

func (f *fsFacade) Mkdir(p string, recursive bool) error {
	a := (*Adapter)(f)
	a.mu.Lock()
	tc := a.toolboxClient
	a.mu.Unlock()
	if tc == nil {
		return fmt.Errorf("sandbox: not connected")
	}
	target := f.resolve(p)
	httpResp, err := tc.FileSystemAPI.CreateFolder(context.Background()).Path(target).Mode("0755").Execute()
	if err != nil {
		return fmt.Errorf("daytona create folder: %w", formatToolboxError(err, httpResp))
	}
	return nil
}

func (f *fsFacade) Remove(p string, force, recursive bool) error {
	a := (*Adapter)(f)
	a.mu.Lock()
	tc := a.toolboxClient
	a.mu.Unlock()
	if tc == nil {
		return fmt.Errorf("sandbox: not connected")
	}
	target := f.resolve(p)
	httpResp, err := tc.FileSystemAPI.DeleteFile(context.Background()).Path(target).Recursive(recursive).Execute()
	if err != nil && !force {
		return fmt.Errorf("daytona delete file: %w", formatToolboxError(err, httpResp))
	}
	return nil
}

func (f *fsFacade) Rename(oldPath, newPath string) error {
	cmd := fmt.Sprintf("mv %s %s", strconv.Quote(f.resolve(oldPath)), strconv.Quote(f.resolve(newPath)))
	res, err := (*Adapter)(f).exec(context.Background(), "", cmd, 30000)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("sandbox: rename %s -> %s: exit %d", oldPath, newPath, res.ExitCode)
	}
	return nil
}

func (f *fsFacade) Stat(p string) (agent.Dirent, error) {
	target := f.resolve(p)
	cmd := fmt.Sprintf("stat --printf '%%F|%%s|%%Y\\n' %s", strconv.Quote(target))
	res, err := (*Adapter)(f).exec(context.Background(), "", cmd, 30000)
	if err != nil {
		return agent.Dirent{}, err
	}
	if res.ExitCode != 0 {
		return agent.Dirent{}, fmt.Errorf("sandbox: stat %s: not found", p)
	}
	fields := strings.SplitN(strings.TrimSpace(res.Stdout), "|", 3)
	if len(fields) != 3 {
		return agent.Dirent{}, fmt.Errorf("sandbox: stat %s: malformed output", p)
	}
	typ := "file"
	if strings.Contains(fields[0], "directory") {
		typ = "dir"
	} else if strings.Contains(fields[0], "symbolic link") {
		typ = "symlink"
	}
	size, _ := strconv.ParseInt(fields[1], 10, 64)
	mtime, _ := strconv.ParseInt(fields[2], 10, 64)
	return agent.Dirent{
		Name:         path.Base(target),
		Path:         target,
		ParentPath:   path.Dir(target),
		Type:         typ,
		Size:         size,
		ModifiedTime: mtime * 1000,
	}, nil
}

func (f *fsFacade) Exists(p string) (bool, error) {
	target := f.resolve(p)
	cmd := fmt.Sprintf("test -e %s", strconv.Quote(target))
	res, err := (*Adapter)(f).exec(context.Background(), "", cmd, 15000)
	if err != nil {
		return false, err
	}
	return res.ExitCode == 0, nil
}

func (f *fsFacade) Glob(patterns []string, cwd string, exclude []string) ([]string, error) {
	base := cwd
	if base == "" {
		base = f.workDirLocked()
	} else {
		base = f.resolve(base)
	}
	var names []string
	for _, pat := range patterns {
		cmd := fmt.Sprintf("cd %s && find . -path %s -print", strconv.Quote(base), strconv.Quote("./"+strings.TrimPrefix(pat, "/")))
		res, err := (*Adapter)(f).exec(context.Background(), "", cmd, 30000)
		if err != nil {
			return nil, err
		}
		for _, line := range strings.Split(strings.TrimRight(res.Stdout, "\n"), "\n") {
			if line == "" {
				continue
			}
			rel := strings.TrimPrefix(line, "./")
			if matchesAny(rel, exclude) {
				continue
			}
			names = append(names, rel)
		}
	}
	return names, nil
}

func matchesAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := path.Match(p, name); ok {
			return true
		}
		if strings.Contains(name, p) {
			return true
		}
	}
	return false
}

// gitFacade adapts Adapter to agent.GitFacade by shelling out to the
// sandbox's git binary (§4.2 git.run), matching the shell façade's
// execution path so askpass/credential env injection stays uniform.
type gitFacade Adapter

func (g *gitFacade) Run(args ...string) agent.GitResult {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = strconv.Quote(a)
	}
	cmd := "git " + strings.Join(quoted, " ")
	res, err := (*Adapter)(g).exec(context.Background(), "", cmd, 120000)
	if err != nil {
		return agent.GitResult{Success: false, ErrorMsg: err.Error()}
	}
	return agent.GitResult{
		Success:  res.ExitCode == 0,
		Message:  res.Stdout,
		ErrorMsg: errMsgFromExit(res),
		ExitCode: res.ExitCode,
		Hash:     extractCommitHash(res.Stdout),
	}
}

func errMsgFromExit(res agent.BashResult) string {
	if res.ExitCode == 0 {
		return ""
	}
	return res.Stdout
}

func extractCommitHash(output string) string {
	idx := strings.Index(output, "]")
	if idx < 0 {
		return ""
	}
	prefix := output[:idx]
	fields := strings.Fields(prefix)
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[len(fields)-1], "()")
}

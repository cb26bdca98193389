package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

type call struct {
	name string
	args []string
}

func (c call) String() string {
	return strings.TrimSpace(c.name + " " + strings.Join(c.args, " "))
}

// fakeRunner replays scripted output. onStart runs before lines are emitted
// and can create files the way the real utility would.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []call
	script  func(c call) (lines []string, err error)
	onStart func(c call)
	failAt  string
}

func (r *fakeRunner) Start(_ context.Context, name string, args ...string) (Process, error) {
	c := call{name: name, args: append([]string(nil), args...)}
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
	if r.failAt != "" && strings.Contains(c.String(), r.failAt) {
		return nil, fmt.Errorf("exec: %q: executable file not found", name)
	}
	if r.onStart != nil {
		r.onStart(c)
	}
	var (
		lines []string
		err   error
	)
	if r.script != nil {
		lines, err = r.script(c)
	}
	ch := make(chan string, len(lines))
	for _, l := range lines {
		ch <- l
	}
	close(ch)
	return &fakeProcess{lines: ch, err: err}, nil
}

func (r *fakeRunner) commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, c.String())
	}
	return out
}

type fakeProcess struct {
	lines chan string
	err   error
}

func (p *fakeProcess) Lines() <-chan string { return p.lines }
func (p *fakeProcess) Wait() error          { return p.err }

func pathLookup(found map[string]string) func(string) (string, error) {
	return func(name string) (string, error) {
		if p, ok := found[name]; ok {
			return p, nil
		}
		return "", errors.New("not found")
	}
}

func existsIn(paths ...string) func(string) bool {
	return func(p string) bool {
		for _, candidate := range paths {
			if candidate == p {
				return true
			}
		}
		return false
	}
}

func writeFile(path, body string) {
	_ = os.WriteFile(path, []byte(body), 0o600)
}

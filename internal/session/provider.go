// Package session keeps the signed-in session of the CLI and ties the task
// cache to it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/kazz187/agileboard/internal/remote"
	"github.com/kazz187/agileboard/pkg/storage"
)

const (
	sessionFile = "session.yaml"

	// debounceInterval lets the write and rename of one save settle before
	// the file is read again.
	debounceInterval = 100 * time.Millisecond
)

// Authenticator exchanges credentials for a session.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (*remote.Session, error)
	SignUp(ctx context.Context, email, password, name string) (*remote.Session, error)
}

// FileProvider is the auth provider of the CLI. The session lives in
// <state>/session.yaml so every CLI process shares it.
type FileProvider struct {
	state  *storage.LocalStorage
	auth   Authenticator
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	session   *remote.Session
	listeners map[uint64]func(*remote.Session)
	nextID    uint64

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

var _ remote.AuthProvider = (*FileProvider)(nil)

func NewFileProvider(state *storage.LocalStorage, auth Authenticator, logger *slog.Logger) (*FileProvider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &FileProvider{
		state:     state,
		auth:      auth,
		logger:    logger,
		now:       time.Now,
		listeners: make(map[uint64]func(*remote.Session)),
	}
	s, err := p.read()
	if err != nil {
		return nil, err
	}
	p.session = s
	return p, nil
}

func (p *FileProvider) read() (*remote.Session, error) {
	data, err := p.state.Read(context.Background(), sessionFile)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s remote.Session
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	if s.AccessToken == "" {
		return nil, nil
	}
	return &s, nil
}

// CurrentSession returns nil when signed out or when the session expired.
func (p *FileProvider) CurrentSession() *remote.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session.Expired(p.now()) {
		return nil
	}
	s := *p.session
	return &s
}

// AccessToken is the bearer token of the current session, or "".
func (p *FileProvider) AccessToken() string {
	if s := p.CurrentSession(); s != nil {
		return s.AccessToken
	}
	return ""
}

func (p *FileProvider) OnSessionChange(fn func(*remote.Session)) (remove func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := p.nextID
	p.listeners[id] = fn
	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *FileProvider) SignIn(ctx context.Context, email, password string) (*remote.Session, error) {
	s, err := p.auth.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s, p.store(ctx, s)
}

func (p *FileProvider) SignUp(ctx context.Context, email, password, name string) (*remote.Session, error) {
	s, err := p.auth.SignUp(ctx, email, password, name)
	if err != nil {
		return nil, err
	}
	return s, p.store(ctx, s)
}

// SignOut forgets the session. Signing out while signed out is a no-op.
func (p *FileProvider) SignOut(ctx context.Context) error {
	if err := p.state.Delete(ctx, sessionFile); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	p.set(nil)
	return nil
}

func (p *FileProvider) store(ctx context.Context, s *remote.Session) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := p.state.Write(ctx, sessionFile, data); err != nil {
		return err
	}
	p.set(s)
	return nil
}

// set replaces the session and notifies listeners when the signed-in user
// or token changed.
func (p *FileProvider) set(s *remote.Session) {
	p.mu.Lock()
	if sameSession(p.session, s) {
		p.mu.Unlock()
		return
	}
	p.session = s
	fns := make([]func(*remote.Session), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	var arg *remote.Session
	if s != nil {
		c := *s
		arg = &c
	}
	p.logger.Info("session changed", "signed_in", arg != nil)
	for _, fn := range fns {
		fn(arg)
	}
}

func sameSession(a, b *remote.Session) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.AccessToken == b.AccessToken
}

// Watch follows sign-ins and sign-outs made by other processes until Close.
func (p *FileProvider) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	// Watch the directory: saves replace the file by rename.
	if err := watcher.Add(p.state.Root()); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", p.state.Root(), err)
	}
	p.mu.Lock()
	p.watcher = watcher
	p.stopCh = make(chan struct{})
	stopCh := p.stopCh
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.watch(watcher, stopCh)
	}()
	return nil
}

func (p *FileProvider) watch(watcher *fsnotify.Watcher, stopCh <-chan struct{}) {
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != sessionFile {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceInterval, p.reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Warn("session watcher error", "error", err)
		case <-stopCh:
			return
		}
	}
}

func (p *FileProvider) reload() {
	s, err := p.read()
	if err != nil {
		p.logger.Warn("failed to reload session file", "error", err)
		return
	}
	p.set(s)
}

// Close stops the watcher started by Watch.
func (p *FileProvider) Close() error {
	p.mu.Lock()
	watcher, stopCh := p.watcher, p.stopCh
	p.watcher, p.stopCh = nil, nil
	p.mu.Unlock()
	if watcher == nil {
		return nil
	}
	close(stopCh)
	err := watcher.Close()
	p.wg.Wait()
	return err
}

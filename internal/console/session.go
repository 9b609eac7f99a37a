// Package console runs the interactive numbered-menu session.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/matheus3301/radio/internal/settings"
	"github.com/matheus3301/radio/internal/terminal"
	"go.uber.org/zap"
)

// ErrRegistrationFailed is returned by Run when the server rejects the user.
var ErrRegistrationFailed = errors.New("user registration failed")

// Gateway is the server surface the menu drives.
type Gateway interface {
	CreateUser(ctx context.Context, username string) bool
	ListUsers(ctx context.Context) []string
	SendMessage(ctx context.Context, to, body string) bool
	GetLatestMessage(ctx context.Context, username string, notifyIfUnchanged bool) bool
}

// Poller toggles background auto-check.
type Poller interface {
	Start(username string) bool
	Stop() bool
	Enabled() bool
}

// Settings is the editable settings store.
type Settings interface {
	Get() settings.Settings
	Set(key, raw string) error
}

// Session is one user's menu loop.
type Session struct {
	username string
	gateway  Gateway
	poller   Poller
	settings Settings
	in       io.Reader
	out      io.Writer
	logger   *zap.Logger

	lines chan string
}

// NewSession binds a menu loop to username.
func NewSession(username string, gw Gateway, p Poller, s Settings, in io.Reader, out io.Writer, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		username: username,
		gateway:  gw,
		poller:   p,
		settings: s,
		in:       in,
		out:      terminal.NewWriter(out),
		logger:   logger,
	}
}

// Username returns the user the session is bound to.
func (s *Session) Username() string {
	return s.username
}

// Run registers the user and then serves the menu until the user quits,
// input ends or ctx is canceled. Registration failure returns
// ErrRegistrationFailed before the menu is shown. Auto-check is always
// stopped before Run returns.
func (s *Session) Run(ctx context.Context) error {
	if !s.gateway.CreateUser(ctx, s.username) {
		return fmt.Errorf("%w: %s", ErrRegistrationFailed, s.username)
	}
	defer s.poller.Stop()

	stop := make(chan struct{})
	defer close(stop)
	s.lines = readLines(s.in, stop)
	for {
		s.printMenu()
		choice, err := s.prompt(ctx, "Choose an option (1-6): ")
		if err != nil {
			return s.finish(ctx, err)
		}

		switch strings.TrimSpace(choice) {
		case "1":
			err = s.sendMessage(ctx)
		case "2":
			s.gateway.GetLatestMessage(ctx, s.username, true)
		case "3":
			s.toggleAutoCheck()
		case "4":
			err = s.changeSettings(ctx)
		case "5":
			s.listUsers(ctx)
		case "6":
			s.stopAutoCheck()
			return nil
		default:
			s.printf("Invalid option. Please try again.\n")
		}
		if err != nil {
			return s.finish(ctx, err)
		}
	}
}

// finish maps the input error that ended the loop to Run's result.
func (s *Session) finish(ctx context.Context, err error) error {
	s.stopAutoCheck()
	if errors.Is(err, io.EOF) {
		s.logger.Info("input closed, leaving session")
		return nil
	}
	if ctx.Err() != nil {
		s.printf("\nStopping client...\n")
		return ctx.Err()
	}
	return err
}

func (s *Session) printMenu() {
	s.printf("\nOptions:\n")
	s.printf("1. Send message\n")
	s.printf("2. Check messages\n")
	s.printf("3. Toggle auto-check messages\n")
	s.printf("4. Change settings\n")
	s.printf("5. Get users\n")
	s.printf("6. Quit\n")
}

func (s *Session) sendMessage(ctx context.Context) error {
	to, err := s.prompt(ctx, "Enter recipient username (or 'all' to broadcast): ")
	if err != nil {
		return err
	}
	to = strings.TrimSpace(to)
	if to == "" {
		s.printf("Recipient cannot be empty.\n")
		return nil
	}
	body, err := s.prompt(ctx, "Enter message: ")
	if err != nil {
		return err
	}
	s.gateway.SendMessage(ctx, to, body)
	return nil
}

func (s *Session) toggleAutoCheck() {
	if s.poller.Enabled() {
		s.stopAutoCheck()
		return
	}
	if s.poller.Start(s.username) {
		s.printf("Auto-check messages enabled\n")
	}
}

func (s *Session) stopAutoCheck() {
	if s.poller.Stop() {
		s.printf("Auto-check messages disabled\n")
	}
}

func (s *Session) listUsers(ctx context.Context) {
	users := s.gateway.ListUsers(ctx)
	if len(users) == 0 {
		s.printf("Current users: none\n")
		return
	}
	s.printf("Current users: %s\n", strings.Join(users, ", "))
}

func (s *Session) changeSettings(ctx context.Context) error {
	for {
		s.printf("\nCurrent Settings:\n")
		cur := s.settings.Get()
		for _, f := range settings.Fields {
			s.printf("%s: %s\n", f.Name, f.Value(cur))
		}

		key, err := s.prompt(ctx, "\nEnter setting to change (or 'done' to finish): ")
		if err != nil {
			return err
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "done" || key == "" {
			return nil
		}
		f, ok := settings.Lookup(key)
		if !ok {
			s.printf("Setting not found!\n")
			continue
		}

		raw, err := s.prompt(ctx, fmt.Sprintf("Enter new value for %s (%s): ", f.Name, f.Kind))
		if err != nil {
			return err
		}
		s.applySetting(f.Name, raw)
	}
}

func (s *Session) applySetting(key, raw string) {
	err := s.settings.Set(key, raw)
	var invalid *settings.InvalidValueError
	switch {
	case err == nil:
		s.printf("Settings updated successfully!\n")
	case errors.As(err, &invalid):
		s.printf("Invalid value type! %v\n", invalid)
	case errors.Is(err, settings.ErrUnknownSetting):
		s.printf("Setting not found!\n")
	default:
		s.printf("Setting changed but could not be saved: %v\n", err)
	}
}

// prompt prints label and waits for the next input line.
func (s *Session) prompt(ctx context.Context, label string) (string, error) {
	s.printf("%s", label)
	select {
	case line, ok := <-s.lines:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *Session) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

// readLines feeds lines from r into a channel that is closed at EOF. Once
// stop is closed the reader exits after its current blocking read.
func readLines(r io.Reader, stop <-chan struct{}) chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case ch <- strings.TrimRight(sc.Text(), "\r"):
			case <-stop:
				return
			}
		}
	}()
	return ch
}

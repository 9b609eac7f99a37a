// Package gateway talks to the message server and turns every failure into a
// boolean or empty result, so a bad response never ends the session or the
// poll loop.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/matheus3301/radio/internal/history"
	"github.com/matheus3301/radio/internal/settings"
	"github.com/matheus3301/radio/internal/speech"
	"github.com/matheus3301/radio/internal/terminal"
	"go.uber.org/zap"
)

// Broadcast is the recipient that delivers to every user.
const Broadcast = "all"

// Backend is the server API the gateway drives.
type Backend interface {
	CreateUser(ctx context.Context, username string) error
	ListUsers(ctx context.Context) ([]string, error)
	SendMessage(ctx context.Context, to, body string) error
	LatestMessage(ctx context.Context, username string) (string, error)
}

// HistoryLog records sent and received messages.
type HistoryLog interface {
	Append(counterpart, body string, dir history.Direction)
}

// SettingsSource supplies the live voice rate.
type SettingsSource interface {
	Get() settings.Settings
}

// Gateway performs the four server operations and their local side effects.
// It owns the last-seen message used to suppress repeat notifications.
type Gateway struct {
	backend  Backend
	history  HistoryLog
	speaker  speech.Speaker
	settings SettingsSource
	out      io.Writer
	logger   *zap.Logger

	mu       sync.Mutex
	lastSeen string
}

// New creates a gateway printing to out.
func New(backend Backend, hist HistoryLog, speaker speech.Speaker, s SettingsSource, out io.Writer, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		backend:  backend,
		history:  hist,
		speaker:  speaker,
		settings: s,
		out:      terminal.NewWriter(out),
		logger:   logger,
	}
}

// LastSeen returns the most recent message already shown to the user.
func (g *Gateway) LastSeen() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastSeen
}

// CreateUser registers username and reports the outcome.
func (g *Gateway) CreateUser(ctx context.Context, username string) bool {
	if err := g.backend.CreateUser(ctx, username); err != nil {
		g.report("create user", "Failed to create user.", "Error creating user", err)
		return false
	}
	g.printf("User created successfully!\n")
	g.logger.Info("user created", zap.String("username", username))
	return true
}

// ListUsers returns the server's users, or an empty slice on any failure.
func (g *Gateway) ListUsers(ctx context.Context) []string {
	users, err := g.backend.ListUsers(ctx)
	if err != nil {
		g.report("list users", "Failed to get users.", "Error getting users", err)
		return []string{}
	}
	if users == nil {
		users = []string{}
	}
	return users
}

// SendMessage sends body to the lowercased recipient. The history keeps the
// recipient as typed.
func (g *Gateway) SendMessage(ctx context.Context, to, body string) bool {
	recipient := strings.ToLower(to)
	broadcast := recipient == Broadcast
	if broadcast {
		g.printf("Broadcasting message to all users...\n")
	}

	if err := g.backend.SendMessage(ctx, recipient, body); err != nil {
		g.report("send message", "Failed to send message.", "Error sending message", err)
		return false
	}

	if broadcast {
		g.printf("Message broadcast successfully!\n")
	} else {
		g.printf("Message sent successfully!\n")
	}
	g.logger.Info("message sent", zap.String("to", recipient))
	g.history.Append(to, body, history.Sent)
	return true
}

// GetLatestMessage fetches the latest message for username. A non-empty
// message that differs from the last one seen is printed, logged to history
// and spoken. An unchanged message only prints a notice when
// notifyIfUnchanged is set; an empty one is never new. It returns false when
// the fetch fails.
func (g *Gateway) GetLatestMessage(ctx context.Context, username string, notifyIfUnchanged bool) bool {
	msg, err := g.backend.LatestMessage(ctx, username)
	if err != nil {
		g.report("get message", "Failed to get message.", "Error getting message", err)
		return false
	}

	if msg == "" {
		return true
	}
	if !g.markSeen(msg) {
		if notifyIfUnchanged {
			g.printf("No new messages.\n")
		}
		return true
	}

	g.printf("Latest message for %s: %s\n", username, msg)
	g.logger.Info("message received", zap.String("username", username))
	g.history.Append(username, msg, history.Received)
	// Stopping the poll loop lets the current sentence finish.
	g.speaker.Speak(context.WithoutCancel(ctx), msg, g.settings.Get().VoiceRate)
	return true
}

// markSeen records msg as last seen and reports whether it was new.
func (g *Gateway) markSeen(msg string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if msg == g.lastSeen {
		return false
	}
	g.lastSeen = msg
	return true
}

func (g *Gateway) report(op, failure, transport string, err error) {
	if errors.Is(err, context.Canceled) {
		g.logger.Debug("gateway call canceled", zap.String("op", op))
		return
	}
	var serr *ServerError
	if errors.As(err, &serr) {
		g.printf("%s Error: %s\n", failure, serr.Message)
	} else {
		g.printf("%s: %v\n", transport, err)
	}
	g.logger.Info("gateway call failed", zap.String("op", op), zap.Error(err))
}

func (g *Gateway) printf(format string, args ...any) {
	fmt.Fprintf(g.out, format, args...)
}

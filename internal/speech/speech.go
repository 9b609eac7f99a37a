// Package speech reads messages aloud with whatever synthesizer the host
// provides.
package speech

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Speaker renders text as audible speech. Implementations swallow their own
// failures.
type Speaker interface {
	Speak(ctx context.Context, text string, rate int)
}

// TextEnv carries the text to the Windows synthesizer script.
const TextEnv = "RADIO_SPEECH_TEXT"

// Invocation is one synthesizer run. The text is passed on Stdin or through
// Env, never in Args.
type Invocation struct {
	Name  string
	Args  []string
	Stdin string
	Env   []string // added to the inherited environment
}

// Runner executes an external command and waits for it.
type Runner func(ctx context.Context, inv Invocation) error

func execRunner(ctx context.Context, inv Invocation) error {
	cmd := exec.CommandContext(ctx, inv.Name, inv.Args...)
	if inv.Stdin != "" {
		cmd.Stdin = strings.NewReader(inv.Stdin)
	}
	if len(inv.Env) > 0 {
		cmd.Env = append(os.Environ(), inv.Env...)
	}
	out, err := cmd.CombinedOutput()
	if err != nil && len(out) > 0 {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	return err
}

// System speaks through the OS: say on macOS, System.Speech via PowerShell on
// Windows and espeak everywhere else.
type System struct {
	goos   string
	run    Runner
	logger *zap.Logger
}

// NewSystem returns a Speaker for the running OS.
func NewSystem(logger *zap.Logger) *System {
	return newSystem(runtime.GOOS, execRunner, logger)
}

func newSystem(goos string, run Runner, logger *zap.Logger) *System {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &System{goos: goos, run: run, logger: logger}
}

// Speak blocks until the synthesizer exits. Errors are logged.
func (s *System) Speak(ctx context.Context, text string, rate int) {
	if strings.TrimSpace(text) == "" {
		return
	}
	inv := Command(s.goos, text, rate)
	if err := s.run(ctx, inv); err != nil {
		s.logger.Warn("error in text-to-speech", zap.String("engine", inv.Name), zap.Error(err))
	}
}

// Command returns the synthesizer invocation for goos. rate is in words per
// minute.
func Command(goos, text string, rate int) Invocation {
	switch goos {
	case "darwin":
		return Invocation{Name: "say", Args: []string{"-r", strconv.Itoa(rate), "-f", "-"}, Stdin: text}
	case "windows":
		script := fmt.Sprintf(
			"Add-Type -AssemblyName System.Speech; $s = New-Object System.Speech.Synthesis.SpeechSynthesizer; $s.Rate = %d; $s.Speak($env:%s)",
			sapiRate(rate), TextEnv)
		return Invocation{
			Name: "powershell",
			Args: []string{"-NoProfile", "-NonInteractive", "-Command", script},
			Env:  []string{TextEnv + "=" + text},
		}
	default:
		return Invocation{Name: "espeak", Args: []string{"-s", strconv.Itoa(rate), "--stdin"}, Stdin: text}
	}
}

// sapiRate maps words per minute onto SpeechSynthesizer's -10..10 scale,
// with 200 wpm as the neutral 0.
func sapiRate(wpm int) int {
	r := (wpm - 200) / 20
	return max(-10, min(10, r))
}

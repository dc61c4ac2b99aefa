// Package uibridge provides the terminal implementation of the interactive
// UI bridge: hidden password entry, numbered account selection and the
// terminal handoffs for resolved objects.
package uibridge

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/idmesh/reference-resolution-backend/interfaces"
)

// TerminalBridge implements interfaces.UIBridge on an interactive terminal.
type TerminalBridge struct {
	// In is the input stream. Hidden password input requires it to be a
	// terminal; otherwise input is read line-wise (useful in tests).
	In io.Reader

	// Out receives prompts and handoff output.
	Out io.Writer

	// DownloadDir receives resolved files. Defaults to the working directory.
	DownloadDir string

	Log *slog.Logger

	// reader buffers In across prompts. A prompt may read ahead of the line
	// it consumes, so one reader must serve the whole session.
	reader *bufio.Reader
}

// NewTerminalBridge creates a bridge on stdin/stdout.
func NewTerminalBridge(downloadDir string, log *slog.Logger) *TerminalBridge {
	if log == nil {
		log = slog.Default()
	}
	return &TerminalBridge{
		In:          os.Stdin,
		Out:         os.Stdout,
		DownloadDir: downloadDir,
		Log:         log,
	}
}

// EnterPassword prompts for a shared password or PIN. Empty input counts as
// cancellation. PIN input must consist of exactly the declared number of
// digits; anything else re-prompts without consuming a fetch attempt.
func (b *TerminalBridge) EnterPassword(ctx context.Context, req interfaces.PasswordRequest) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	if req.Attempt > 1 {
		fmt.Fprintf(b.Out, "Wrong password, try again (attempt %d).\n", req.Attempt)
	}
	if req.LocationIndicator != "" {
		fmt.Fprintf(b.Out, "The password was shared via: %s\n", req.LocationIndicator)
	}

	for {
		if req.Kind == interfaces.PasswordKindPIN {
			fmt.Fprintf(b.Out, "Enter the %d-digit PIN (empty to cancel): ", req.DigitCount)
		} else {
			fmt.Fprint(b.Out, "Enter the password (empty to cancel): ")
		}

		secret, err := b.readSecret()
		if err != nil {
			return "", false, err
		}
		if secret == "" {
			return "", false, nil
		}

		if req.Kind == interfaces.PasswordKindPIN {
			if !isDigits(secret) {
				fmt.Fprintln(b.Out, "A PIN consists of digits only.")
				continue
			}
			if len(secret) != req.DigitCount {
				fmt.Fprintf(b.Out, "The PIN has %d digits.\n", req.DigitCount)
				continue
			}
		}
		return secret, true, nil
	}
}

// RequestAccountSelection shows a numbered candidate list and reads the
// user's choice. Empty input cancels.
func (b *TerminalBridge) RequestAccountSelection(ctx context.Context, candidates []interfaces.AccountContext, title, description string) (*interfaces.AccountContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fmt.Fprintf(b.Out, "%s\n%s\n", title, description)
	for i, account := range candidates {
		fmt.Fprintf(b.Out, "  [%d] %s\n", i+1, account.Address)
	}
	fmt.Fprint(b.Out, "Select an account (empty to cancel): ")

	line, err := b.readLine()
	if err != nil {
		return nil, err
	}
	if line == "" {
		return nil, nil
	}

	choice, err := strconv.Atoi(line)
	if err != nil || choice < 1 || choice > len(candidates) {
		return nil, fmt.Errorf("invalid account selection: %q", line)
	}
	return &candidates[choice-1], nil
}

// ShowFile writes the resolved file into the download directory.
func (b *TerminalBridge) ShowFile(ctx context.Context, account interfaces.AccountContext, file *interfaces.FileRecord) error {
	if file == nil {
		return errors.New("no file record to show")
	}

	dir := b.DownloadDir
	if dir == "" {
		dir = "."
	}

	name := file.Filename
	if name == "" {
		name = file.ID
	}
	target := filepath.Join(dir, filepath.Base(name))

	if err := os.WriteFile(target, file.Content, 0o600); err != nil {
		return fmt.Errorf("failed to save file: %w", err)
	}

	b.logger().Info("Saved resolved file",
		slog.String("file_id", file.ID),
		slog.String("account", account.Address),
		slog.String("path", target))
	fmt.Fprintf(b.Out, "Saved %s (%s, %d bytes) to %s\n", name, file.MimeType, file.Filesize, target)
	return nil
}

// ShowDeviceOnboarding prints the onboarding secret handoff.
func (b *TerminalBridge) ShowDeviceOnboarding(ctx context.Context, info *interfaces.DeviceOnboardingInfo) error {
	if info == nil {
		return errors.New("no device onboarding info to show")
	}

	encoded, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(b.Out, "Device onboarding for %s:\n%s\n", info.Address, encoded)
	return nil
}

// readSecret reads password input, hidden when stdin is a terminal.
func (b *TerminalBridge) readSecret() (string, error) {
	if file, ok := b.In.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		secret, err := term.ReadPassword(int(file.Fd()))
		fmt.Fprintln(b.Out)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimSpace(string(secret)), nil
	}
	return b.readLine()
}

func (b *TerminalBridge) logger() *slog.Logger {
	if b.Log == nil {
		return slog.Default()
	}
	return b.Log
}

func (b *TerminalBridge) readLine() (string, error) {
	if b.reader == nil {
		b.reader = bufio.NewReader(b.In)
	}
	line, err := b.reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

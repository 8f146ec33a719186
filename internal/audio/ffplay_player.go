package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// FFPlayPlayer plays encoded audio (MP3 from remote synthesis) through ffplay.
type FFPlayPlayer struct {
	command string
}

func NewFFPlayPlayer(command string) *FFPlayPlayer {
	if command == "" {
		command = "ffplay"
	}
	return &FFPlayPlayer{command: command}
}

// Available reports whether the player binary can be found.
func (p *FFPlayPlayer) Available() bool {
	_, err := exec.LookPath(p.command)
	return err == nil
}

// Play blocks until playback finishes. Cancelling ctx kills the player and
// returns ctx.Err().
func (p *FFPlayPlayer) Play(ctx context.Context, audio []byte) error {
	if len(audio) == 0 {
		return errors.New("no audio to play")
	}

	cmd := exec.CommandContext(ctx, p.command, "-nodisp", "-autoexit", "-loglevel", "error", "-i", "pipe:0")
	cmd.Stdin = bytes.NewReader(audio)
	stderr := &syncBuffer{}
	cmd.Stderr = stderr
	cmd.WaitDelay = 500 * time.Millisecond

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if detail := strings.TrimSpace(stderr.String()); detail != "" {
			return fmt.Errorf("ffplay failed: %w: %s", err, detail)
		}
		return fmt.Errorf("ffplay failed: %w", err)
	}
	return nil
}

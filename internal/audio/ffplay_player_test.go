package audio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFFPlayPlayerPipesAudio(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "played")
	script := writeScript(t, "ffplay.sh", "#!/usr/bin/env bash\ncat > "+out+"\n")

	player := NewFFPlayPlayer(script)
	if !player.Available() {
		t.Fatalf("expected script to be available")
	}
	if err := player.Play(context.Background(), []byte("ID3audio")); err != nil {
		t.Fatalf("play: %v", err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(got) != "ID3audio" {
		t.Fatalf("unexpected piped audio: %q", got)
	}
}

func TestFFPlayPlayerCancel(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "slow.sh", "#!/usr/bin/env bash\nexec sleep 5\n")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := NewFFPlayPlayer(script).Play(ctx, []byte("x"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Fatalf("cancel did not stop playback promptly")
	}
}

func TestFFPlayPlayerFailure(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "bad.sh", "#!/usr/bin/env bash\necho 'Invalid data found' 1>&2\nexit 1\n")
	if err := NewFFPlayPlayer(script).Play(context.Background(), []byte("x")); err == nil {
		t.Fatalf("expected failure")
	}
	if err := NewFFPlayPlayer(script).Play(context.Background(), nil); err == nil {
		t.Fatalf("expected empty audio error")
	}
}

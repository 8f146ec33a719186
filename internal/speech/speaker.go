package speech

import (
	"context"
	"strings"
	"sync"

	"pkt.systems/pslog"

	"studysync/internal/logx"
	"studysync/internal/ports"
	"studysync/internal/telemetry"
)

const (
	tierRemote = "remote"
	tierLocal  = "local"
)

// Observer is told when speaking starts and stops.
type Observer interface {
	SpeakingChanged(speaking bool)
}

// Option configures a Speaker.
type Option func(*Speaker)

// WithRemote enables the remote tier. Both a synthesizer and a player are
// required for it to be used.
func WithRemote(synth ports.RemoteSynthesizer, player ports.AudioPlayer) Option {
	return func(s *Speaker) {
		s.remote = synth
		s.player = player
	}
}

func WithLocal(local ports.LocalSynthesizer) Option {
	return func(s *Speaker) { s.local = local }
}

// WithShaper rewrites text once before either tier sees it.
func WithShaper(rules ports.TextRules) Option {
	return func(s *Speaker) { s.shaper = rules }
}

func WithPreferences(prefs Preferences) Option {
	return func(s *Speaker) { s.prefs = prefs }
}

func WithProsody(p ports.Prosody) Option {
	return func(s *Speaker) { s.prosody = p }
}

func WithLogger(log pslog.Logger) Option {
	return func(s *Speaker) { s.log = log }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Speaker) { s.metrics = m }
}

func WithObserver(o Observer) Option {
	return func(s *Speaker) { s.observer = o }
}

// Speaker speaks one utterance at a time, preferring the remote tier and
// degrading to the local engine. Failures never reach the caller.
type Speaker struct {
	remote   ports.RemoteSynthesizer
	player   ports.AudioPlayer
	local    ports.LocalSynthesizer
	shaper   ports.TextRules
	prefs    Preferences
	prosody  ports.Prosody
	log      pslog.Logger
	metrics  *telemetry.Metrics
	observer Observer

	voiceMu  sync.Mutex
	voice    ports.Voice
	resolved bool

	speakMu sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSpeaker(opts ...Option) *Speaker {
	s := &Speaker{prosody: DefaultProsody()}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logx.OrDiscard(s.log)
	return s
}

// Speak cancels any current utterance and starts speaking text in the
// background.
func (s *Speaker) Speak(text string) {
	shaped := s.shape(text)
	if shaped == "" {
		return
	}

	s.speakMu.Lock()
	defer s.speakMu.Unlock()
	s.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()
	s.notify(true)

	go func() {
		defer close(done)
		s.deliver(ctx, shaped)

		s.mu.Lock()
		current := s.done == done
		if current {
			s.cancel = nil
			s.done = nil
		}
		s.mu.Unlock()
		cancel()
		if current {
			s.notify(false)
		}
	}()
}

// Stop silences the current utterance and waits for it to wind down. It is a
// no-op when nothing is speaking.
func (s *Speaker) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.notify(false)
}

// Speaking reports whether an utterance is in progress.
func (s *Speaker) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done != nil
}

// Wait blocks until the current utterance ends or ctx is done.
func (s *Speaker) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Voices lists local voices; it is empty without a local tier.
func (s *Speaker) Voices(ctx context.Context) ([]ports.Voice, error) {
	if s.local == nil {
		return nil, nil
	}
	return s.local.Voices(ctx)
}

func (s *Speaker) shape(text string) string {
	text = strings.TrimSpace(text)
	if text == "" || s.shaper == nil {
		return text
	}
	shaped, err := s.shaper.Apply(text)
	if err != nil {
		s.log.Debug("speech shaping failed", "err", err)
		return text
	}
	return shaped
}

func (s *Speaker) deliver(ctx context.Context, text string) {
	if s.remote != nil && s.player != nil {
		log := logx.WithTier(s.log, tierRemote)
		err := s.speakRemote(ctx, text)
		if err == nil {
			s.metrics.Synthesis(tierRemote, "success")
			return
		}
		if ctx.Err() != nil {
			s.metrics.Synthesis(tierRemote, "cancelled")
			return
		}
		s.metrics.Synthesis(tierRemote, "error")
		log.Debug("remote synthesis failed, falling back", "err", err)
	}

	if s.local == nil {
		return
	}
	log := logx.WithTier(s.log, tierLocal)
	if err := s.local.Speak(ctx, text, s.localVoice(ctx), s.prosody); err != nil {
		if ctx.Err() != nil {
			s.metrics.Synthesis(tierLocal, "cancelled")
			return
		}
		s.metrics.Synthesis(tierLocal, "error")
		log.Debug("local synthesis failed", "err", err)
		return
	}
	s.metrics.Synthesis(tierLocal, "success")
}

func (s *Speaker) speakRemote(ctx context.Context, text string) error {
	audio, err := s.remote.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	return s.player.Play(ctx, audio)
}

// localVoice resolves the preferred voice once; a failed lookup falls back to
// the engine default and is retried next time.
func (s *Speaker) localVoice(ctx context.Context) ports.Voice {
	s.voiceMu.Lock()
	defer s.voiceMu.Unlock()
	if s.resolved {
		return s.voice
	}
	voices, err := s.local.Voices(ctx)
	if err != nil {
		s.log.Debug("listing local voices failed", "err", err)
		return ports.Voice{}
	}
	if voice, ok := SelectVoice(voices, s.prefs); ok {
		s.voice = voice
	}
	s.resolved = true
	return s.voice
}

func (s *Speaker) notify(speaking bool) {
	if s.observer != nil {
		s.observer.SpeakingChanged(speaking)
	}
}

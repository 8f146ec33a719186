package bootstrap

import (
	"strings"

	"pkt.systems/pslog"

	"studysync/internal/audio"
	"studysync/internal/capture"
	"studysync/internal/config"
	"studysync/internal/generation"
	"studysync/internal/logx"
	"studysync/internal/ports"
	"studysync/internal/providers/deepgram"
	"studysync/internal/providers/espeak"
	"studysync/internal/providers/gemini"
	"studysync/internal/providers/googletts"
	"studysync/internal/retry"
	"studysync/internal/rules"
	"studysync/internal/speech"
	"studysync/internal/telemetry"
	"studysync/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Config      config.Config
	Coordinator *usecase.Coordinator
	Requests    *generation.Client
	Speaker     *speech.Speaker
	Capture     *capture.Capture
	// Synthesizer is nil when no text-to-speech key is configured.
	Synthesizer *googletts.Client
	Metrics     *telemetry.Metrics
	Logger      pslog.Logger
}

// Option adjusts how Build assembles the graph.
type Option func(*options)

type options struct {
	log     pslog.Logger
	cfg     *config.Config
	runtime bool
}

func WithLogger(log pslog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithConfig skips config.Load.
func WithConfig(cfg config.Config) Option {
	return func(o *options) { o.cfg = &cfg }
}

// WithRuntimeMetrics adds Go runtime and process collectors.
func WithRuntimeMetrics() Option {
	return func(o *options) { o.runtime = true }
}

// Build wires all backend dependencies for the current runtime. Missing
// credentials degrade capabilities instead of failing.
func Build(eventSink ports.EventSink, opts ...Option) (Services, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	log := logx.OrDiscard(o.log)

	cfg := config.Config{}
	if o.cfg != nil {
		cfg = *o.cfg
	} else {
		loaded, err := config.Load()
		if err != nil {
			return Services{}, err
		}
		cfg = loaded
	}
	for _, warning := range cfg.Warnings() {
		log.Warn(warning)
	}

	metrics := telemetry.New(o.runtime)

	transcriptRules, err := rules.NewEngine(cfg.Rules.Path, cfg.Rules.IterationLimit)
	if err != nil {
		return Services{}, err
	}
	shaper, err := rules.NewSpeechEngine("", cfg.Rules.IterationLimit)
	if err != nil {
		return Services{}, err
	}

	requests, err := generation.NewClient(
		gemini.NewClient(gemini.Config{
			APIKey:  cfg.Gemini.APIKey,
			BaseURL: cfg.Gemini.BaseURL,
			Model:   cfg.Gemini.Model,
			Timeout: cfg.Gemini.Timeout,
		}),
		generation.WithPolicy(retry.Policy{
			MaxAttempts: cfg.Request.MaxAttempts,
			Delay:       retry.ExponentialDelay(cfg.Request.BaseDelay),
		}),
		generation.WithLogger(log),
		generation.WithMetrics(metrics),
	)
	if err != nil {
		return Services{}, err
	}

	relay := &usecase.Relay{}

	mic := capture.New(
		recognizerFor(cfg, log),
		audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand),
		capture.Config{Audio: ports.AudioConfig{
			SampleRate:  cfg.Audio.SampleRate,
			Channels:    cfg.Audio.Channels,
			InputFormat: cfg.Audio.InputFormat,
			InputDevice: cfg.Audio.InputDevice,
		}},
		capture.WithLogger(log),
		capture.WithMetrics(metrics),
		capture.WithObserver(relay),
	)

	speakerOpts := []speech.Option{
		speech.WithLocal(espeak.New(cfg.Audio.LocalTTSCommand, espeakLanguage(cfg.Voice.Locale))),
		speech.WithShaper(shaper),
		speech.WithPreferences(speech.Preferences{Name: cfg.Voice.Name, Locale: cfg.Voice.Locale}),
		speech.WithProsody(ports.Prosody{Rate: cfg.Voice.Rate, Pitch: cfg.Voice.Pitch, Volume: cfg.Voice.Volume}),
		speech.WithLogger(log),
		speech.WithMetrics(metrics),
		speech.WithObserver(relay),
	}
	var synth *googletts.Client
	if cfg.TTS.APIKey != "" {
		synth = googletts.NewClient(googletts.Config{
			APIKey:       cfg.TTS.APIKey,
			BaseURL:      cfg.TTS.BaseURL,
			LanguageCode: cfg.TTS.LanguageCode,
			VoiceName:    cfg.TTS.VoiceName,
			Gender:       cfg.TTS.Gender,
		})
		speakerOpts = append(speakerOpts, speech.WithRemote(synth, audio.NewFFPlayPlayer(cfg.Audio.PlayerCommand)))
	}
	speaker := speech.NewSpeaker(speakerOpts...)

	coordinator, err := usecase.NewCoordinator(
		mic,
		speaker,
		requests,
		eventSink,
		usecase.Config{
			MinTranscript: cfg.Request.MinTranscript,
			MaxImages:     cfg.Request.MaxImages,
		},
		usecase.WithLogger(log),
		usecase.WithTranscriptRules(transcriptRules),
	)
	if err != nil {
		return Services{}, err
	}
	relay.Bind(coordinator)

	return Services{
		Config:      cfg,
		Coordinator: coordinator,
		Requests:    requests,
		Speaker:     speaker,
		Capture:     mic,
		Synthesizer: synth,
		Metrics:     metrics,
		Logger:      log,
	}, nil
}

func recognizerFor(cfg config.Config, log pslog.Logger) ports.Recognizer {
	provider := deepgram.NewProvider(deepgram.Config{
		APIKey:      cfg.Deepgram.APIKey,
		APIBaseURL:  cfg.Deepgram.APIBaseURL,
		Model:       cfg.Deepgram.Model,
		Language:    cfg.Deepgram.Language,
		SmartFormat: cfg.Deepgram.SmartFormat,
	})
	if !provider.Configured() {
		return capture.UnsupportedRecognizer{}
	}
	return deepgram.NewRecognizer(provider, ports.StreamingConfig{
		SampleRate: cfg.Audio.SampleRate,
		Channels:   cfg.Audio.Channels,
		Encoding:   "linear16",
	}, deepgram.WithRecognizerLogger(log))
}

// espeakLanguage maps a BCP 47 locale onto the espeak-ng language family.
func espeakLanguage(locale string) string {
	language, _, _ := strings.Cut(strings.TrimSpace(locale), "-")
	return strings.ToLower(language)
}

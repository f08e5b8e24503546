// Package speech renders reply text to audio through ElevenLabs. It is
// best-effort: every failure yields a nil handle.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"
)

const (
	DefaultBaseURL = "https://api.elevenlabs.io"
	DefaultVoiceID = "21m00Tcm4TlvDq8ikWAM"
	DefaultModel   = "eleven_turbo_v2"
)

// Config selects the voice. An empty APIKey disables synthesis.
type Config struct {
	APIKey  string
	VoiceID string
	Model   string
	BaseURL string
	// Dir holds the temp files backing audio handles; "" means os.TempDir.
	Dir string
}

type request struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

type Synthesizer struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Synthesizer {
	if cfg.VoiceID == "" {
		cfg.VoiceID = DefaultVoiceID
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Synthesizer{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
		logger: logger,
	}
}

// Enabled reports whether a credential is configured.
func (s *Synthesizer) Enabled() bool {
	return s.cfg.APIKey != ""
}

// Synthesize returns a playable handle for text, or nil when synthesis is
// disabled or fails for any reason. The caller owns the handle.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) *Audio {
	if !s.Enabled() {
		return nil
	}

	body, err := json.Marshal(request{Text: text, ModelID: s.cfg.Model})
	if err != nil {
		return nil
	}

	endpoint := s.cfg.BaseURL + "/v1/text-to-speech/" + url.PathEscape(s.cfg.VoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		s.logger.Debug("speech request not built", "error", err)
		return nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Debug("speech endpoint unreachable", "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Debug("speech endpoint returned error status", "status", resp.StatusCode)
		return nil
	}

	audio, err := newAudio(s.cfg.Dir, resp.Header.Get("Content-Type"), resp.Body)
	if err != nil {
		s.logger.Debug("speech audio not stored", "error", err)
		return nil
	}
	return audio
}

// Audio is an owned, file-backed audio clip. Release frees it; a released
// handle can no longer be opened.
type Audio struct {
	path        string
	contentType string
	size        int64

	once sync.Once
}

func newAudio(dir, contentType string, r io.Reader) (*Audio, error) {
	f, err := os.CreateTemp(dir, "assist-speech-*.mp3")
	if err != nil {
		return nil, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n == 0 {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		os.Remove(f.Name())
		return nil, err
	}
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return &Audio{path: f.Name(), contentType: contentType, size: n}, nil
}

func (a *Audio) Path() string        { return a.path }
func (a *Audio) ContentType() string { return a.contentType }
func (a *Audio) Size() int64         { return a.size }

// Open returns a reader over the clip.
func (a *Audio) Open() (*os.File, error) {
	return os.Open(a.path)
}

// Release deletes the backing file. Calling it more than once is safe.
func (a *Audio) Release() {
	if a == nil {
		return
	}
	a.once.Do(func() {
		os.Remove(a.path)
	})
}

// Slot keeps at most one outstanding clip: storing a new one releases the
// previous, and Close releases whatever is left.
type Slot struct {
	mu      sync.Mutex
	current *Audio
	closed  bool
}

// Swap makes a the current clip, releasing the one it replaces. After Close,
// a is released immediately.
func (s *Slot) Swap(a *Audio) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		a.Release()
		return
	}
	prev := s.current
	s.current = a
	s.mu.Unlock()

	prev.Release()
}

// Current returns the outstanding clip, or nil.
func (s *Slot) Current() *Audio {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Slot) Close() {
	s.mu.Lock()
	prev := s.current
	s.current = nil
	s.closed = true
	s.mu.Unlock()

	prev.Release()
}

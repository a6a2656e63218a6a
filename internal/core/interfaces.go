// Package core defines the interfaces shared by the speech batch components.
package core

import "context"

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// SpeechRequest is a single line of text to be spoken with a given voice.
type SpeechRequest struct {
	// Text is the line to synthesize. It must be non-empty.
	Text string
	// Voice is the prebuilt voice identifier of the remote service.
	Voice string
	// Style selects a delivery prefix such as "dramatic" or "gentle".
	Style string
}

// TierClient performs one synthesis request against one model of the remote
// service and returns raw PCM samples.
type TierClient interface {
	Generate(ctx context.Context, model string, req SpeechRequest) ([]byte, error)
}

// Synthesizer turns a speech request into raw PCM samples, hiding any retry or
// fallback policy behind a single call.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SpeechRequest) ([]byte, error)
}

// ItemPublisher announces a finished work item to interested listeners.
type ItemPublisher interface {
	PublishAudioCreated(ctx context.Context, itemKey, audioKey string) error
}

package websocket

import (
	"encoding/base64"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/callrelay/domain"
	"github.com/satriahrh/callrelay/domain/entities"
	"github.com/satriahrh/callrelay/internal/audio"
	"github.com/satriahrh/callrelay/internal/callsession"
)

var _ AudioSink = (*Relay)(nil)

// IngestDispatcherAudio takes base64 PCM16 at 16 kHz from the dispatcher
// console for the live call of callerNumber.
func (r *Relay) IngestDispatcherAudio(callerNumber, payload string) error {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		r.metrics.RecordCodecError(string(entities.TrackDispatcher))
		return fmt.Errorf("%w: dispatcher audio is not base64: %v", audio.ErrCodec, err)
	}
	samples, err := audio.PCMFromBytes(raw)
	if err != nil {
		r.metrics.RecordCodecError(string(entities.TrackDispatcher))
		return err
	}

	session, ok := r.registry.FindByCaller(callerNumber)
	if !ok {
		return fmt.Errorf("%w: no live call for %s", domain.ErrSessionNotFound, callerNumber)
	}
	r.HandleDispatcherAudio(session, samples)
	return nil
}

// HandleDispatcherAudio boosts dispatcher speech, feeds the dispatcher
// recognizer and relays the voice to the caller only while both parties
// share a language.
func (r *Relay) HandleDispatcherAudio(session *callsession.Session, samples []int16) {
	if len(samples) == 0 || session.Ended() {
		return
	}
	samples = audio.ApplyGain(samples, r.opts.DispatcherGain)
	session.CountDispatcherFrame()
	r.metrics.RecordFrame(string(entities.TrackDispatcher), "ingress")

	if t, ok := session.Transcriber(entities.TrackDispatcher); ok {
		t.StreamAudio(entities.NewAudioFrame(entities.TrackDispatcher, entities.WidebandPCM, audio.PCMToBytes(samples)))
	}

	if !r.translation.ShouldRelayDispatcherAudio(session) {
		return
	}
	frames, err := audio.EncodeTelephonyFrames(samples, audio.WidebandRate)
	if err != nil {
		session.CountCodecError()
		r.metrics.RecordCodecError(string(entities.TrackDispatcher))
		r.logger.Debug("Dropping dispatcher audio", zap.Error(err))
		return
	}
	session.Egress.TryEnqueue(frames)
}

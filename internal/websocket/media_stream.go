package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/callrelay/domain"
	"github.com/satriahrh/callrelay/domain/entities"
	"github.com/satriahrh/callrelay/internal/callsession"
)

// MediaConn is the telephony side of a media stream. *websocket.Conn
// satisfies it.
type MediaConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type streamState int

const (
	stateAwaitingStart streamState = iota
	stateStreaming
	stateEnded
)

func (s streamState) String() string {
	switch s {
	case stateAwaitingStart:
		return "awaiting_start"
	case stateStreaming:
		return "streaming"
	default:
		return "ended"
	}
}

// mediaStream drives one telephony connection through
// AwaitingStart -> Streaming -> Ended.
type mediaStream struct {
	relay   *Relay
	conn    MediaConn
	writeMu sync.Mutex
	drains  sync.WaitGroup
	logger  *zap.Logger

	state   streamState
	session *callsession.Session
}

// ServeMediaStream reads the telephony stream until it stops or the
// transport goes away, and tears the call down either way.
func (r *Relay) ServeMediaStream(ctx context.Context, conn MediaConn) error {
	ms := &mediaStream{
		relay:  r,
		conn:   conn,
		logger: r.logger.With(zap.String("component", "media_stream")),
	}
	defer ms.drains.Wait()
	return ms.run(ctx)
}

func (ms *mediaStream) run(ctx context.Context) error {
	for {
		_, data, err := ms.conn.ReadMessage()
		if err != nil {
			if ms.state == stateEnded {
				return nil
			}
			ms.end(entities.EndReasonDisconnect)
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("%w: %v", domain.ErrTransportDisconnect, err)
		}

		ev, err := ParseMediaEvent(data)
		if err != nil {
			ms.logger.Warn("Ignoring media stream message", zap.Error(err))
			continue
		}

		switch ev.Event {
		case EventStart:
			ms.start(ctx, ev.Start)
		case EventMedia:
			ms.media(ev.Media)
		case EventStop:
			ms.end(entities.EndReasonStop)
			return nil
		case EventConnected, EventMark:
			ms.logger.Debug("Media stream event", zap.String("event", string(ev.Event)))
		}
	}
}

func (ms *mediaStream) start(ctx context.Context, start *StartPayload) {
	if ms.state == stateEnded {
		return
	}
	if ms.session != nil && ms.session.CallSID() != start.CallSID {
		ms.logger.Warn("Start for a different call on a live stream",
			zap.String("callSid", ms.session.CallSID()),
			zap.String("newCallSid", start.CallSID))
		return
	}

	session, callCtx := ms.relay.StartCall(ctx, start.CallSID, start.StreamSID)
	ms.session = session
	ms.state = stateStreaming

	ms.drains.Add(1)
	go func() {
		defer ms.drains.Done()
		send := func(frame []byte) error { return ms.writeFrame(session, frame) }
		if err := ms.relay.DrainEgress(callCtx, session, send); err != nil {
			ms.logger.Warn("Egress stopped", zap.String("callSid", session.CallSID()), zap.Error(err))
			ms.conn.Close()
		}
	}()
}

func (ms *mediaStream) media(media *MediaPayload) {
	if ms.state != stateStreaming {
		ms.logger.Debug("Dropping media outside a live stream", zap.Stringer("state", ms.state))
		return
	}
	if media.Track != TrackInbound {
		return
	}
	ms.relay.HandleCallerMedia(ms.session, media.Payload)
}

func (ms *mediaStream) end(reason entities.EndReason) {
	if ms.state == stateEnded {
		return
	}
	ms.state = stateEnded
	if ms.session != nil {
		ms.relay.EndCall(ms.session, reason)
	}
}

func (ms *mediaStream) writeFrame(session *callsession.Session, frame []byte) error {
	payload, err := json.Marshal(NewOutboundMedia(session.StreamSID(), frame))
	if err != nil {
		return err
	}

	ms.writeMu.Lock()
	defer ms.writeMu.Unlock()
	if d, ok := ms.conn.(interface{ SetWriteDeadline(time.Time) error }); ok {
		d.SetWriteDeadline(time.Now().Add(writeWait))
	}
	return ms.conn.WriteMessage(websocket.TextMessage, payload)
}

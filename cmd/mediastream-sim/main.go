// Command mediastream-sim plays a WAV file into the relay as if it were a
// telephony media stream and reports how many frames came back.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/satriahrh/callrelay/internal/audio"
	"github.com/satriahrh/callrelay/internal/websocket"
)

func main() {
	godotenv.Load()

	server := flag.String("server", "localhost:8080", "relay host:port")
	wavPath := flag.String("wav", "sample_audio.wav", "WAV file to stream as the caller")
	from := flag.String("from", "+15550100", "caller number announced on the webhook")
	pace := flag.Duration("pace", 20*time.Millisecond, "delay between frames")
	linger := flag.Duration("linger", 3*time.Second, "how long to keep listening after the last frame")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	data, err := os.ReadFile(*wavPath)
	if err != nil {
		logger.Fatal("Failed to read audio file", zap.String("path", *wavPath), zap.Error(err))
	}
	samples, rate, err := audio.DecodeWAV(data)
	if err != nil {
		logger.Fatal("Failed to decode audio file", zap.Error(err))
	}
	frames, err := audio.EncodeTelephonyFrames(samples, rate)
	if err != nil {
		logger.Fatal("Failed to encode telephony frames", zap.Error(err))
	}
	logger.Info("Prepared caller audio",
		zap.String("path", *wavPath),
		zap.Int("sampleRate", rate),
		zap.Int("frames", len(frames)))

	callSID := "CA" + strconv.FormatInt(time.Now().UnixNano(), 16)
	streamSID := "MZ" + strconv.FormatInt(time.Now().UnixNano(), 16)

	if err := announceCall(*server, callSID, *from); err != nil {
		logger.Fatal("Failed to announce call", zap.Error(err))
	}

	u := url.URL{Scheme: "ws", Host: *server, Path: "/ws"}
	logger.Info("Connecting", zap.String("url", u.String()), zap.String("callSid", callSID))
	c, _, err := gorilla.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		logger.Fatal("dial", zap.Error(err))
	}
	defer c.Close()

	var outbound atomic.Int64
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				return
			}
			var ev websocket.OutboundMedia
			if json.Unmarshal(message, &ev) == nil && ev.Event == websocket.EventMedia {
				outbound.Add(1)
			}
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	send := func(ev websocket.MediaEvent) error {
		return c.WriteJSON(ev)
	}
	if err := send(websocket.MediaEvent{Event: websocket.EventConnected}); err != nil {
		logger.Fatal("Failed to send connected", zap.Error(err))
	}
	if err := send(websocket.MediaEvent{
		Event:     websocket.EventStart,
		StreamSID: streamSID,
		Start: &websocket.StartPayload{
			CallSID:   callSID,
			StreamSID: streamSID,
			Tracks:    []string{websocket.TrackInbound, websocket.TrackOutbound},
		},
	}); err != nil {
		logger.Fatal("Failed to send start", zap.Error(err))
	}

	ticker := time.NewTicker(*pace)
	defer ticker.Stop()
	sent := 0
streaming:
	for i, frame := range frames {
		select {
		case <-interrupt:
			logger.Info("interrupt")
			break streaming
		case <-done:
			logger.Warn("Relay closed the stream early")
			break streaming
		case <-ticker.C:
		}
		err := send(websocket.MediaEvent{
			Event:          websocket.EventMedia,
			SequenceNumber: strconv.Itoa(i + 2),
			StreamSID:      streamSID,
			Media: &websocket.MediaPayload{
				Track:     websocket.TrackInbound,
				Chunk:     strconv.Itoa(i + 1),
				Timestamp: strconv.Itoa(i * int(pace.Milliseconds())),
				Payload:   audio.EncodePayload(frame),
			},
		})
		if err != nil {
			logger.Error("Failed to send frame", zap.Int("frame", i), zap.Error(err))
			break
		}
		sent++
	}

	select {
	case <-time.After(*linger):
	case <-interrupt:
	case <-done:
	}

	send(websocket.MediaEvent{Event: websocket.EventStop, StreamSID: streamSID, Stop: &websocket.StopPayload{CallSID: callSID}})
	c.WriteMessage(gorilla.CloseMessage, gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, ""))
	select {
	case <-done:
	case <-time.After(time.Second):
	}

	logger.Info("Simulation finished",
		zap.String("callSid", callSID),
		zap.Int("sentFrames", sent),
		zap.Int64("outboundFrames", outbound.Load()))
	fmt.Printf("sent %d frames, received %d outbound frames\n", sent, outbound.Load())
}

// announceCall posts the voice webhook so the relay knows the caller
func announceCall(server, callSID, from string) error {
	form := url.Values{
		"CallSid": {callSID},
		"From":    {from},
		"To":      {"+15550000"},
	}
	resp, err := http.PostForm("http://"+server+"/twiml", form)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook answered %s", resp.Status)
	}
	return nil
}

package stt

import (
	"context"
	"fmt"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
)

// GoogleConfig configures Google Cloud streaming recognition
type GoogleConfig struct {
	CredentialsFile      string
	LanguageCode         string
	AlternativeLanguages []string
	SampleRate           int
}

// 100ms of linear16 silence at 16kHz
var googleKeepAlive = make([]byte, 3200)

// NewGoogleDialer returns a Dialer for Google Cloud Speech-to-Text
func NewGoogleDialer(cfg GoogleConfig) Dialer {
	return func(ctx context.Context) (Conn, error) {
		var opts []option.ClientOption
		if cfg.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		}

		client, err := speech.NewClient(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create speech client: %w", err)
		}

		// The stream outlives the dial context; Close cancels it.
		streamCtx, cancel := context.WithCancel(context.Background())
		stream, err := client.StreamingRecognize(streamCtx)
		if err != nil {
			cancel()
			client.Close()
			return nil, fmt.Errorf("failed to create streaming recognize: %w", err)
		}

		sampleRate := cfg.SampleRate
		if sampleRate == 0 {
			sampleRate = 16000
		}
		languageCode := cfg.LanguageCode
		if languageCode == "" {
			languageCode = "en-IN"
		}

		if err := stream.Send(&speechpb.StreamingRecognizeRequest{
			StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
				StreamingConfig: &speechpb.StreamingRecognitionConfig{
					Config: &speechpb.RecognitionConfig{
						Encoding:                   speechpb.RecognitionConfig_LINEAR16,
						SampleRateHertz:            int32(sampleRate),
						AudioChannelCount:          1,
						LanguageCode:               languageCode,
						AlternativeLanguageCodes:   cfg.AlternativeLanguages,
						EnableAutomaticPunctuation: true,
					},
					InterimResults: true,
				},
			},
		}); err != nil {
			cancel()
			client.Close()
			return nil, fmt.Errorf("failed to send streaming config: %w", err)
		}

		return &googleConn{client: client, stream: stream, cancel: cancel}, nil
	}
}

type googleConn struct {
	client *speech.Client
	stream speechpb.Speech_StreamingRecognizeClient
	cancel context.CancelFunc
}

func (g *googleConn) SendAudio(pcm []byte) error {
	return g.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: pcm,
		},
	})
}

func (g *googleConn) KeepAlive() error {
	return g.SendAudio(googleKeepAlive)
}

func (g *googleConn) Finalize() error {
	return g.stream.CloseSend()
}

func (g *googleConn) Receive() ([]Recognition, error) {
	for {
		resp, err := g.stream.Recv()
		if err != nil {
			return nil, err
		}

		var out []Recognition
		for _, result := range resp.GetResults() {
			alts := result.GetAlternatives()
			if len(alts) == 0 {
				continue
			}
			r := Recognition{
				Text:     alts[0].GetTranscript(),
				IsFinal:  result.GetIsFinal(),
				Language: result.GetLanguageCode(),
			}
			// interim results carry no confidence
			if r.IsFinal {
				confidence := float64(alts[0].GetConfidence())
				r.Confidence = &confidence
			}
			out = append(out, r)
		}
		if len(out) > 0 {
			return out, nil
		}
	}
}

func (g *googleConn) Close() error {
	g.cancel()
	return g.client.Close()
}

package tts

import (
	"context"
	"encoding/json/v2"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/noveldeck/noveldeck-server/internal/config"
	"github.com/noveldeck/noveldeck-server/internal/content"
	"github.com/noveldeck/noveldeck-server/internal/errors"
	"github.com/noveldeck/noveldeck-server/internal/logger"
)

// startMessage opens a synthesis task on the websocket endpoint.
type startMessage struct {
	Task       string `json:"task"`
	Voice      string `json:"voice"`
	Format     string `json:"format"`
	SampleRate int    `json:"sample_rate"`
	Text       string `json:"text"`
	Token      string `json:"token"`
}

// controlMessage is a JSON (non-binary) frame from the server.
type controlMessage struct {
	Task    string `json:"task"`
	Message string `json:"message,omitempty"`
}

// Client synthesizes one sentence per websocket connection: a start
// message, binary audio frames, and a task-end control message.
type Client struct {
	cfg config.TTSConfig
	log *logger.Logger
}

// NewClient creates a synthesis client.
func NewClient(cfg config.TTSConfig, log *logger.Logger) *Client {
	return &Client{cfg: cfg, log: log}
}

// Synthesize converts one sentence to audio bytes. The attempt is
// bounded by the configured watchdog timeout; a stalled connection
// surfaces as UNAVAILABLE so callers can retry.
func (c *Client) Synthesize(ctx context.Context, sentence string) ([]byte, error) {
	if c.cfg.Endpoint == "" {
		return nil, errors.NotConfigured("TTS endpoint is not configured")
	}
	if c.cfg.Token == "" {
		return nil, errors.NotConfigured("TTS auth token is not configured")
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	deadline, _ := attemptCtx.Deadline()

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.Timeout}
	conn, resp, err := dialer.DialContext(attemptCtx, c.cfg.Endpoint, nil)
	if err != nil {
		if resp != nil {
			switch resp.StatusCode {
			case http.StatusUnauthorized:
				return nil, errors.InvalidCredentials("TTS endpoint rejected the token")
			case http.StatusForbidden:
				return nil, errors.Forbidden("TTS endpoint denied access")
			}
		}
		if ctx.Err() != nil {
			return nil, errors.Canceled("synthesis canceled")
		}
		return nil, errors.Unavailable("TTS connection failed").WithCause(err)
	}
	defer conn.Close()

	conn.SetReadDeadline(deadline)
	conn.SetWriteDeadline(deadline)

	start := startMessage{
		Task:       "start",
		Voice:      c.cfg.Voice,
		Format:     c.cfg.Format,
		SampleRate: c.cfg.SampleRate,
		Text:       content.NormalizeForSpeech(sentence),
		Token:      c.cfg.Token,
	}
	payload, err := json.Marshal(start)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "encoding start message")
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return nil, errors.Unavailable("sending start message failed").WithCause(err)
	}

	var audio []byte
	for {
		if ctx.Err() != nil {
			return nil, errors.Canceled("synthesis canceled")
		}
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if time.Now().After(deadline) {
				return nil, errors.Unavailable("synthesis timed out")
			}
			if ctx.Err() != nil {
				return nil, errors.Canceled("synthesis canceled")
			}
			return nil, errors.Unavailable("TTS connection dropped").WithCause(err)
		}

		switch msgType {
		case websocket.BinaryMessage:
			audio = append(audio, data...)
		case websocket.TextMessage:
			var control controlMessage
			if err := json.Unmarshal(data, &control); err != nil {
				return nil, errors.BadResponse("unparseable control message").WithCause(err)
			}
			switch control.Task {
			case "end":
				if len(audio) == 0 {
					return nil, errors.BadResponse("synthesis produced no audio")
				}
				return audio, nil
			case "error":
				return nil, errors.BadResponse("synthesis failed: " + control.Message)
			}
			// Other control messages (progress etc.) are ignored.
		}
	}
}

package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

// Result is one recognition result from the provider. Interim results
// carry provisional text; only final results are non-revisable.
type Result struct {
	Text  string
	Final bool
}

// Session is one bidirectional recognition stream. Send pushes raw
// PCM16 audio; Recv blocks for the next result and returns io.EOF when
// the provider ends the session cleanly.
type Session interface {
	Send(pcm []byte) error
	Recv() (Result, error)
	Close() error
}

// Dialer opens a new recognition session.
type Dialer func(ctx context.Context) (Session, error)

// turnMessage is the provider's transcript event.
type turnMessage struct {
	Type       string `json:"type"`
	Transcript string `json:"transcript"`
	EndOfTurn  bool   `json:"end_of_turn"`
}

// errorMessage is the provider's error event.
type errorMessage struct {
	Type  string `json:"type"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

// wsSession is a realtime recognition session over a websocket.
type wsSession struct {
	conn *websocket.Conn
}

// NewDialer returns a Dialer for the configured websocket provider.
func NewDialer(cfg Config) Dialer {
	return func(ctx context.Context) (Session, error) {
		params := url.Values{}
		params.Set("sample_rate", strconv.Itoa(cfg.SampleRate))
		params.Set("encoding", "pcm_s16le")
		params.Set("language", cfg.Language)
		if cfg.Diarization {
			params.Set("speaker_labels", "true")
		}

		wsURL := fmt.Sprintf("%s?%s", cfg.URL, params.Encode())
		header := http.Header{"Authorization": {cfg.APIKey}}

		dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
		conn, resp, err := dialer.DialContext(ctx, wsURL, header)
		if err != nil {
			code := CodeUnavailable
			if resp != nil {
				switch resp.StatusCode {
				case http.StatusUnauthorized, http.StatusForbidden:
					code = CodeAuth
				case http.StatusTooManyRequests:
					code = CodeResourceExhausted
				}
			}
			return nil, &SessionError{Code: code, Err: err}
		}

		return &wsSession{conn: conn}, nil
	}
}

// Send writes one PCM chunk as a binary frame.
func (s *wsSession) Send(pcm []byte) error {
	if err := s.conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
		return &SessionError{Code: CodeUnavailable, Err: err}
	}
	return nil
}

// Recv reads provider events until a transcript arrives. Session
// termination maps to io.EOF so callers treat it as a clean reopen.
func (s *wsSession) Recv() (Result, error) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return Result{}, io.EOF
			}
			return Result{}, &SessionError{Code: CodeUnavailable, Err: err}
		}

		var base struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &base); err != nil {
			continue
		}

		switch base.Type {
		case "Turn":
			var msg turnMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			return Result{Text: msg.Transcript, Final: msg.EndOfTurn}, nil
		case "Termination":
			return Result{}, io.EOF
		case "Error":
			var msg errorMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			return Result{}, &SessionError{
				Code: classifyProviderCode(msg.Code),
				Err:  fmt.Errorf("provider: %s", msg.Error),
			}
		default:
			// Begin and other housekeeping events carry no transcript.
		}
	}
}

func classifyProviderCode(code string) Code {
	switch code {
	case "rate_limited", "resource_exhausted":
		return CodeResourceExhausted
	case "unavailable", "server_overloaded":
		return CodeUnavailable
	case "cancelled":
		return CodeCancelled
	case "deadline_exceeded", "session_expired":
		return CodeDeadlineExceeded
	case "unauthorized", "invalid_api_key":
		return CodeAuth
	case "invalid_request", "unsupported_encoding":
		return CodeBadRequest
	default:
		return CodeInternal
	}
}

// Close terminates the session politely, then closes the socket.
func (s *wsSession) Close() error {
	_ = s.conn.WriteJSON(map[string]string{"type": "Terminate"})
	return s.conn.Close()
}

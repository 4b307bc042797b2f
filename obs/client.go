// Package obs is the player adapter: an obs-websocket v5 client that drives
// scene switches and media sources and delivers the asynchronous
// MediaInputPlaybackEnded event through a registered handler.
package obs

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/AlexandroAurellino/live-shop-bot/logging"
	"github.com/AlexandroAurellino/live-shop-bot/metrics"
)

// obs-websocket v5 opcodes.
const (
	opHello           = 0
	opIdentify        = 1
	opIdentified      = 2
	opEvent           = 5
	opRequest         = 6
	opRequestResponse = 7
)

// eventSubMediaInputs is the MediaInputs bit of the EventSubscription
// bitmask. Playback-ended is the only event this client needs.
const eventSubMediaInputs = 1 << 8

const (
	subprotocol      = "obswebsocket.json"
	handshakeTimeout = 10 * time.Second
	requestTimeout   = 10 * time.Second
)

// Client is a connected obs-websocket session. Request methods are safe for
// concurrent use; the playback-ended handler must be registered before
// Connect.
type Client struct {
	url      string
	password string
	logger   *logging.Logger

	conn    *websocket.Conn
	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan requestResponse

	onPlaybackEnded func(inputName string)

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient creates a disconnected client for the given obs-websocket
// endpoint.
func NewClient(host string, port int, password string, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		url:      fmt.Sprintf("ws://%s:%d", host, port),
		password: password,
		logger:   logger,
		pending:  make(map[string]chan requestResponse),
		done:     make(chan struct{}),
	}
}

// OnPlaybackEnded registers the handler invoked when OBS reports that a
// media input finished playing. Must be called before Connect.
func (c *Client) OnPlaybackEnded(fn func(inputName string)) {
	c.onPlaybackEnded = fn
}

// message is the envelope every obs-websocket frame travels in.
type message struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

type helloData struct {
	ObsWebSocketVersion string `json:"obsWebSocketVersion"`
	RPCVersion          int    `json:"rpcVersion"`
	Authentication      *struct {
		Challenge string `json:"challenge"`
		Salt      string `json:"salt"`
	} `json:"authentication"`
}

type identifyData struct {
	RPCVersion         int    `json:"rpcVersion"`
	Authentication     string `json:"authentication,omitempty"`
	EventSubscriptions int    `json:"eventSubscriptions"`
}

type eventData struct {
	EventType string          `json:"eventType"`
	EventData json.RawMessage `json:"eventData"`
}

type requestResponse struct {
	RequestID     string `json:"requestId"`
	RequestStatus struct {
		Result  bool   `json:"result"`
		Code    int    `json:"code"`
		Comment string `json:"comment"`
	} `json:"requestStatus"`
	ResponseData json.RawMessage `json:"responseData"`
}

// Connect dials OBS, performs the hello/identify handshake, and starts the
// read loop that dispatches responses and events.
func (c *Client) Connect() error {
	c.logger.Info("connecting to OBS websocket", "url", c.url)

	dialer := websocket.Dialer{
		Subprotocols:     []string{subprotocol},
		HandshakeTimeout: handshakeTimeout,
	}
	conn, _, err := dialer.Dial(c.url, nil)
	if err != nil {
		return errors.Wrap(err, "failed to dial OBS websocket")
	}
	c.conn = conn

	hello, err := c.readHello()
	if err != nil {
		conn.Close()
		return err
	}

	ident := identifyData{
		RPCVersion:         1,
		EventSubscriptions: eventSubMediaInputs,
	}
	if hello.Authentication != nil {
		ident.Authentication = authToken(c.password, hello.Authentication.Challenge, hello.Authentication.Salt)
	}
	if err := c.write(opIdentify, ident); err != nil {
		conn.Close()
		return errors.Wrap(err, "failed to send identify")
	}

	if err := c.readIdentified(); err != nil {
		conn.Close()
		return err
	}

	c.logger.Info("OBS websocket session identified", "obsVersion", hello.ObsWebSocketVersion)
	go c.readLoop()
	return nil
}

// Disconnect closes the session. Safe to call more than once.
func (c *Client) Disconnect() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
		c.failPending()
		c.logger.Info("OBS websocket disconnected")
	})
}

// SwitchToScene sets the current program scene.
func (c *Client) SwitchToScene(sceneName string) error {
	_, err := c.call("SetCurrentProgramScene", map[string]any{
		"sceneName": sceneName,
	})
	return errors.Wrapf(err, "failed to switch to scene %q", sceneName)
}

// CurrentScene returns the current program scene name.
func (c *Client) CurrentScene() (string, error) {
	raw, err := c.call("GetCurrentProgramScene", nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to get current scene")
	}
	var resp struct {
		CurrentProgramSceneName string `json:"currentProgramSceneName"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", errors.Wrap(err, "failed to parse current scene response")
	}
	return resp.CurrentProgramSceneName, nil
}

// SetMediaFile points a media input at a local file. The path is made
// absolute because OBS resolves relative paths against its own working
// directory.
func (c *Client) SetMediaFile(inputName, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrapf(err, "failed to resolve media path %q", path)
	}
	c.logger.Debug("setting media source file", "input", inputName, "path", abs)
	_, err = c.call("SetInputSettings", map[string]any{
		"inputName": inputName,
		"inputSettings": map[string]any{
			"local_file": abs,
		},
		"overlay": true,
	})
	return errors.Wrapf(err, "failed to set media file on input %q", inputName)
}

func (c *Client) readHello() (*helloData, error) {
	var env message
	if err := c.conn.ReadJSON(&env); err != nil {
		return nil, errors.Wrap(err, "failed to read hello")
	}
	if env.Op != opHello {
		return nil, errors.Errorf("expected hello opcode %d, got %d", opHello, env.Op)
	}
	var hello helloData
	if err := json.Unmarshal(env.D, &hello); err != nil {
		return nil, errors.Wrap(err, "failed to parse hello")
	}
	return &hello, nil
}

func (c *Client) readIdentified() error {
	var env message
	if err := c.conn.ReadJSON(&env); err != nil {
		return errors.Wrap(err, "failed to read identified")
	}
	if env.Op != opIdentified {
		return errors.Errorf("identify rejected: expected opcode %d, got %d", opIdentified, env.Op)
	}
	return nil
}

// readLoop dispatches responses to waiting callers and events to the
// registered handler until the connection drops.
func (c *Client) readLoop() {
	for {
		var env message
		if err := c.conn.ReadJSON(&env); err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Error("OBS websocket read failed", "error", err.Error())
			}
			c.failPending()
			return
		}

		switch env.Op {
		case opEvent:
			c.handleEvent(env.D)
		case opRequestResponse:
			var resp requestResponse
			if err := json.Unmarshal(env.D, &resp); err != nil {
				c.logger.Error("failed to parse OBS request response", "error", err.Error())
				continue
			}
			c.deliver(resp)
		}
	}
}

func (c *Client) handleEvent(raw json.RawMessage) {
	var ev eventData
	if err := json.Unmarshal(raw, &ev); err != nil {
		c.logger.Error("failed to parse OBS event", "error", err.Error())
		return
	}
	if ev.EventType != "MediaInputPlaybackEnded" {
		return
	}

	var data struct {
		InputName string `json:"inputName"`
	}
	if err := json.Unmarshal(ev.EventData, &data); err != nil {
		c.logger.Error("failed to parse playback ended event", "error", err.Error())
		return
	}

	c.logger.Debug("media playback ended", "input", data.InputName)
	if c.onPlaybackEnded != nil {
		c.onPlaybackEnded(data.InputName)
	}
}

// call sends a request and blocks for its response.
func (c *Client) call(requestType string, data any) (json.RawMessage, error) {
	id := uuid.NewString()
	ch := make(chan requestResponse, 1)

	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	req := map[string]any{
		"requestType": requestType,
		"requestId":   id,
	}
	if data != nil {
		req["requestData"] = data
	}
	if err := c.write(opRequest, req); err != nil {
		metrics.PlayerRequestFailCount.Add(1)
		return nil, errors.Wrapf(err, "failed to send %s request", requestType)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, errors.New("connection lost")
		}
		if !resp.RequestStatus.Result {
			metrics.PlayerRequestFailCount.Add(1)
			return nil, errors.Errorf("%s rejected by OBS: code %d %s",
				requestType, resp.RequestStatus.Code, resp.RequestStatus.Comment)
		}
		return resp.ResponseData, nil
	case <-time.After(requestTimeout):
		metrics.PlayerRequestFailCount.Add(1)
		return nil, errors.Errorf("%s request timed out", requestType)
	case <-c.done:
		return nil, errors.New("connection closed")
	}
}

// deliver hands a response to its waiting caller. The send happens under
// pendingMu so it cannot race a concurrent failPending close; the channel is
// buffered so the send never blocks.
func (c *Client) deliver(resp requestResponse) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	if ch, ok := c.pending[resp.RequestID]; ok {
		ch <- resp
		delete(c.pending, resp.RequestID)
	}
}

// failPending unblocks every caller waiting on a response by closing its
// channel.
func (c *Client) failPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

func (c *Client) write(op int, d any) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(message{Op: op, D: raw})
}

// authToken derives the identify authentication string from the hello
// challenge: base64(sha256(base64(sha256(password+salt)) + challenge)).
func authToken(password, challenge, salt string) string {
	secret := sha256.Sum256([]byte(password + salt))
	secretB64 := base64.StdEncoding.EncodeToString(secret[:])
	token := sha256.Sum256([]byte(secretB64 + challenge))
	return base64.StdEncoding.EncodeToString(token[:])
}

// Package chat is the comment ingress adapter. It delivers (user, comment)
// pairs from a live channel's chat through a callback; the restart/backoff
// loop around it belongs to the engine, not to this package.
package chat

import (
	"strings"
	"sync/atomic"

	v2 "github.com/gempir/go-twitch-irc/v2"
	"github.com/pkg/errors"

	"github.com/AlexandroAurellino/live-shop-bot/logging"
	"github.com/AlexandroAurellino/live-shop-bot/metrics"
)

// Listener is a single chat connection attempt. Run blocks until the
// connection drops or Stop is called; create a fresh Listener per attempt.
type Listener struct {
	channel   string
	client    *v2.Client
	onComment func(user, text string)
	logger    *logging.Logger

	connected atomic.Bool
	stopping  atomic.Bool
}

// NewListener creates a listener for one channel. With empty credentials the
// connection is anonymous, which is enough for a read-only bot; set username
// and token to read chat as a specific account.
func NewListener(channel, username, token string, onComment func(user, text string), logger *logging.Logger) *Listener {
	if logger == nil {
		logger = logging.Default()
	}
	channel = strings.TrimPrefix(strings.TrimSpace(channel), "@")

	var client *v2.Client
	if username != "" && token != "" {
		client = v2.NewClient(username, "oauth:"+token)
	} else {
		client = v2.NewAnonymousClient()
	}

	l := &Listener{
		channel:   channel,
		client:    client,
		onComment: onComment,
		logger:    logger,
	}

	client.OnConnect(func() {
		l.connected.Store(true)
		metrics.ChatConnectionCount.Add(1)
		l.logger.Info("chat connection established", "channel", l.channel)
	})
	client.OnPrivateMessage(l.handleMessage)
	client.Join(channel)

	return l
}

// Run connects and blocks until the connection terminates. A Stop-initiated
// disconnect returns nil; anything else returns the transport error.
func (l *Listener) Run() error {
	err := l.client.Connect()
	if l.stopping.Load() {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "chat connection to %q lost", l.channel)
	}
	return nil
}

// Stop requests termination; it is safe to call from another goroutine and
// more than once.
func (l *Listener) Stop() {
	if l.stopping.Swap(true) {
		return
	}
	if err := l.client.Disconnect(); err != nil {
		l.logger.Debug("chat disconnect", "error", err.Error())
	}
}

// Connected reports whether this attempt ever established a connection. The
// engine uses it to reset its backoff counter.
func (l *Listener) Connected() bool {
	return l.connected.Load()
}

func (l *Listener) handleMessage(msg v2.PrivateMessage) {
	if l.stopping.Load() || l.onComment == nil {
		return
	}
	user := msg.User.DisplayName
	if user == "" {
		user = msg.User.Name
	}
	l.logger.Debug("received chat comment", "user", user)
	l.onComment(user, msg.Message)
}

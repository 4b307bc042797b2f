package chat

import (
	"testing"

	v2 "github.com/gempir/go-twitch-irc/v2"

	"github.com/AlexandroAurellino/live-shop-bot/logging"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.LogLevelError, nil)
}

func privateMessage(display, name, text string) v2.PrivateMessage {
	return v2.PrivateMessage{
		User:    v2.User{Name: name, DisplayName: display},
		Message: text,
	}
}

func TestListener_HandleMessage(t *testing.T) {
	var gotUser, gotText string
	l := NewListener("somechannel", "", "", func(user, text string) {
		gotUser = user
		gotText = text
	}, testLogger())

	l.handleMessage(privateMessage("Viewer1", "viewer1", "show me the lamp"))

	if gotUser != "Viewer1" || gotText != "show me the lamp" {
		t.Errorf("handleMessage delivered (%q, %q)", gotUser, gotText)
	}
}

func TestListener_HandleMessage_FallsBackToLoginName(t *testing.T) {
	var gotUser string
	l := NewListener("somechannel", "", "", func(user, text string) {
		gotUser = user
	}, testLogger())

	l.handleMessage(privateMessage("", "viewer1", "hi"))

	if gotUser != "viewer1" {
		t.Errorf("user = %q, want login name fallback", gotUser)
	}
}

func TestListener_HandleMessage_SuppressedWhileStopping(t *testing.T) {
	called := false
	l := NewListener("somechannel", "", "", func(user, text string) {
		called = true
	}, testLogger())

	l.stopping.Store(true)
	l.handleMessage(privateMessage("Viewer1", "viewer1", "show me the lamp"))

	if called {
		t.Error("comments must not be delivered after Stop")
	}
}

func TestNewListener_TrimsChannelPrefix(t *testing.T) {
	l := NewListener(" @SomeChannel", "", "", nil, testLogger())
	if l.channel != "SomeChannel" {
		t.Errorf("channel = %q, want %q", l.channel, "SomeChannel")
	}
}

package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessage_Data(t *testing.T) {
	update := []byte{0x01, 0x02}

	tests := []struct {
		name string
		msg  Message
		want []byte
	}{
		{name: "init", msg: Message{Event: EventInit, Payload: update}, want: update},
		{name: "update", msg: Message{Event: EventUpdate, Payload: update}, want: update},
		{name: "sync", msg: Sync("board", update), want: update},
		{name: "sync ignores payload", msg: Message{Event: EventSync, Payload: update}},
		{name: "ping", msg: Ping("board")},
		{name: "join", msg: Join("board")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.msg.Data())
		})
	}
}

package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	tests := []struct {
		name     string
		frame    string
		wantKind Kind
		wantText string
		wantErr  bool
	}{
		{"chat", `{"type":"message","message":"hi"}`, KindChatMessage, "hi", false},
		{"chat without text", `{"type":"message"}`, KindChatMessage, "", false},
		{"call offer", `{"type":"call-offer","sdp":"v=0"}`, KindCallOffer, "", false},
		{"call answer", `{"type":"call-answer","sdp":"v=0"}`, KindCallAnswer, "", false},
		{"ice candidate", `{"type":"ice-candidate","candidate":{}}`, KindIceCandidate, "", false},
		{"call end", `{"type":"call-end"}`, KindCallEnd, "", false},
		{"call reject", `{"type":"call-reject"}`, KindCallReject, "", false},
		{"typing", `{"type":"typing"}`, KindTyping, "", false},
		{"unknown tag", `{"type":"dance"}`, KindUnknown, "", false},
		{"non string tag", `{"type":5,"message":"x"}`, KindUnknown, "", false},
		{"legacy chat", `{"message":"hello"}`, KindChatMessage, "hello", false},
		{"legacy typing", `{"typing":true}`, KindTyping, "", false},
		{"legacy typing off", `{"typing":false}`, KindUnknown, "", false},
		{"empty object", `{}`, KindUnknown, "", false},
		{"not json", `hello`, KindUnknown, "", true},
		{"array", `[1,2]`, KindUnknown, "", true},
		{"null", `null`, KindUnknown, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseEvent([]byte(tt.frame))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, ev.Kind)
			assert.Equal(t, tt.wantText, ev.Text)
		})
	}
}

func TestKindIsCallSignal(t *testing.T) {
	for _, k := range []Kind{KindCallOffer, KindCallAnswer, KindIceCandidate, KindCallEnd, KindCallReject} {
		assert.True(t, k.IsCallSignal(), k.String())
	}
	for _, k := range []Kind{KindChatMessage, KindTyping, KindUnknown} {
		assert.False(t, k.IsCallSignal(), k.String())
	}
}

func TestSignalFrameOverwritesSender(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"type":"call-offer","sdp":"v=0","sender":1}`))
	require.NoError(t, err)

	b, err := json.Marshal(signalFrame(ev, 9))
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, "call-offer", out["type"])
	assert.Equal(t, "v=0", out["sdp"])
	assert.Equal(t, float64(9), out["sender"])
}

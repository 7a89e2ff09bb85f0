package ws

import "testing"

type samplePayload struct {
	PeerID   int `json:"peer_id"`
	DiceFace int `json:"dice_face"`
}

func TestEncodeDecodeEnvelopeRoundTrip(t *testing.T) {
	raw, err := encodeEnvelope("dice_send", samplePayload{PeerID: 1, DiceFace: 6})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	env, err := decodeEnvelope(raw)
	if err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Event != "dice_send" {
		t.Fatalf("event = %q, want dice_send", env.Event)
	}

	payload, err := decodePayload[samplePayload](env.Data)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.PeerID != 1 || payload.DiceFace != 6 {
		t.Fatalf("payload = %+v, want {1 6}", payload)
	}
}

func TestDecodeEnvelopeRejectsMalformedJSON(t *testing.T) {
	if _, err := decodeEnvelope([]byte("not json")); err == nil {
		t.Fatal("expected an error decoding malformed JSON")
	}
}

func TestDecodePayloadRejectsMalformedJSON(t *testing.T) {
	if _, err := decodePayload[samplePayload]("not json"); err == nil {
		t.Fatal("expected an error decoding malformed payload")
	}
}

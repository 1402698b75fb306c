package proto

import (
	"errors"
	"testing"
)

func TestDecodeClientVariants(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		check   func(t *testing.T, msg ClientMessage)
	}{
		{
			name:    "join",
			payload: `{"type":"join","id":"u-9","username":"Pilot","roomCode":"ABC123"}`,
			check: func(t *testing.T, msg ClientMessage) {
				join, ok := msg.(Join)
				if !ok {
					t.Fatalf("got %T", msg)
				}
				if join.ID != "u-9" || join.Username != "Pilot" || join.RoomCode != "ABC123" {
					t.Fatalf("join fields: %+v", join)
				}
			},
		},
		{
			name:    "input",
			payload: `{"type":"input","tick":42,"thrust":true,"rotateZ":0.5,"velX":1,"velY":2,"velZ":3}`,
			check: func(t *testing.T, msg ClientMessage) {
				input, ok := msg.(Input)
				if !ok {
					t.Fatalf("got %T", msg)
				}
				if input.Tick != 42 || !input.Thrust || input.Vel.Z != 3 {
					t.Fatalf("input fields: %+v", input)
				}
			},
		},
		{
			name:    "fire",
			payload: `{"type":"fire","tick":43,"dirX":0,"dirY":1,"dirZ":0}`,
			check: func(t *testing.T, msg ClientMessage) {
				fire, ok := msg.(Fire)
				if !ok {
					t.Fatalf("got %T", msg)
				}
				if fire.Dir.Y != 1 {
					t.Fatalf("fire dir: %+v", fire.Dir)
				}
			},
		},
		{
			name:    "interact",
			payload: `{"type":"interact","targetId":"node-1","targetType":"node","action":"nudge"}`,
			check: func(t *testing.T, msg ClientMessage) {
				in, ok := msg.(Interact)
				if !ok {
					t.Fatalf("got %T", msg)
				}
				if in.TargetID != "node-1" || in.TargetType != "node" || in.Action != "nudge" {
					t.Fatalf("interact fields: %+v", in)
				}
			},
		},
		{
			name:    "set-privacy",
			payload: `{"type":"set-privacy","isPrivate":true}`,
			check: func(t *testing.T, msg ClientMessage) {
				sp, ok := msg.(SetPrivacy)
				if !ok {
					t.Fatalf("got %T", msg)
				}
				if !sp.IsPrivate {
					t.Fatal("isPrivate not decoded")
				}
			},
		},
		{
			name:    "leave",
			payload: `{"type":"leave"}`,
			check: func(t *testing.T, msg ClientMessage) {
				if _, ok := msg.(Leave); !ok {
					t.Fatalf("got %T", msg)
				}
			},
		},
		{
			name:    "respawn",
			payload: `{"type":"respawn-request"}`,
			check: func(t *testing.T, msg ClientMessage) {
				if _, ok := msg.(RespawnRequest); !ok {
					t.Fatalf("got %T", msg)
				}
			},
		},
		{
			name:    "start-game",
			payload: `{"type":"start-game"}`,
			check: func(t *testing.T, msg ClientMessage) {
				if _, ok := msg.(StartGame); !ok {
					t.Fatalf("got %T", msg)
				}
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := DecodeClient([]byte(tc.payload))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			tc.check(t, msg)
		})
	}
}

func TestDecodeClientUnknownType(t *testing.T) {
	_, err := DecodeClient([]byte(`{"type":"warp-drive"}`))
	if !errors.Is(err, ErrUnknownType) {
		t.Fatalf("err = %v, want ErrUnknownType", err)
	}
}

func TestDecodeClientMalformed(t *testing.T) {
	if _, err := DecodeClient([]byte(`{"type":`)); err == nil {
		t.Fatal("expected decode error for truncated payload")
	}
}

package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Inbound message types.
const (
	MsgForge        = "forge"
	MsgOpenPit      = "openPit"
	MsgEnterPit     = "enterPit"
	MsgBetOnWarrior = "betOnWarrior"
	MsgUpgrade      = "upgrade"
	MsgRunRumble    = "runRumble"
	MsgResetRumble  = "resetRumble"
)

// ErrMalformed marks an inbound frame that does not match its schema.
var ErrMalformed = errors.New("malformed message")

// Envelope frames every message in both directions.
type Envelope struct {
	T string          `json:"t"`
	P json.RawMessage `json:"p,omitempty"`
}

type ForgeRequest struct {
	Name    string `json:"name"`
	Clothes string `json:"clothes"`
	Weapon  string `json:"weapon"`
}

type EnterPitRequest struct {
	Amount int `json:"amount"`
}

type BetRequest struct {
	WarriorID string `json:"warriorId"`
	Amount    int    `json:"amount"`
}

type UpgradeRequest struct {
	Stat string `json:"stat"`
	Cost int    `json:"cost"`
}

// Empty is the payload of openPit, runRumble and resetRumble.
type Empty struct{}

// Encode frames an already encoded payload.
func Encode(t string, payload json.RawMessage) ([]byte, error) {
	if t == "" {
		return nil, errors.New("encode envelope: empty type")
	}
	return json.Marshal(Envelope{T: t, P: payload})
}

// DecodeEnvelope parses a frame strictly.
func DecodeEnvelope(b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, fmt.Errorf("%w: empty frame", ErrMalformed)
	}
	var env Envelope
	if err := strictUnmarshal(b, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.T == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return env, nil
}

// DecodePayload parses the payload of env into T, rejecting unknown fields.
// An absent or null payload decodes to the zero value.
func DecodePayload[T any](env Envelope) (T, error) {
	var out T
	p := bytes.TrimSpace(env.P)
	if len(p) == 0 || bytes.Equal(p, []byte("null")) {
		p = []byte("{}")
	}
	if err := strictUnmarshal(p, &out); err != nil {
		return out, fmt.Errorf("%w: %s payload: %v", ErrMalformed, env.T, err)
	}
	return out, nil
}

func strictUnmarshal(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("trailing data after JSON value")
	}
	return nil
}

func (r ForgeRequest) validate() error {
	if len(r.Name) > 256 || len(r.Clothes) > 64 || len(r.Weapon) > 64 {
		return fmt.Errorf("%w: forge field too long", ErrMalformed)
	}
	return nil
}

func (r EnterPitRequest) validate() error {
	if r.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrMalformed)
	}
	return nil
}

func (r BetRequest) validate() error {
	switch {
	case r.WarriorID == "":
		return fmt.Errorf("%w: warriorId is required", ErrMalformed)
	case r.Amount <= 0:
		return fmt.Errorf("%w: amount must be positive", ErrMalformed)
	}
	return nil
}

func (r UpgradeRequest) validate() error {
	switch {
	case r.Stat == "":
		return fmt.Errorf("%w: stat is required", ErrMalformed)
	case r.Cost <= 0:
		return fmt.Errorf("%w: cost must be positive", ErrMalformed)
	}
	return nil
}

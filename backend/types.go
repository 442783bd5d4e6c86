package backend

import (
	"context"
	"github.com/GlintPay/gccs-vault/config"
)

type Backends []Backend

// Backend is a secret store that can be asked for the raw configuration held under one candidate key
type Backend interface {
	Ordering
	Init(ctxt context.Context, config config.ApplicationConfiguration) error
	Read(ctxt context.Context, key string, token string) (Payload, error)
	Close()
}

type Ordering interface {
	Order() int // lower is higher priority
}

// Payload is the serialized configuration stored under a key. The zero value means "not found".
type Payload struct {
	data  string
	found bool
}

func PayloadOf(data string) Payload {
	return Payload{data: data, found: true}
}

var Absent = Payload{}

func (p Payload) Get() (string, bool) {
	return p.data, p.found
}

func (p Payload) Found() bool {
	return p.found
}

const (
	TokenHeader = "X-Config-Token"
	StateHeader = "X-Config-State"
)

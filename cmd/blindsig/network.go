package main

import (
	"context"
	"errors"
)

type kind uint8

const (
	kindAnnounce kind = iota
	kindBlinded
	kindDisclosure
)

func (k kind) String() string {
	switch k {
	case kindAnnounce:
		return "announce"
	case kindBlinded:
		return "blinded"
	case kindDisclosure:
		return "disclosure"
	}
	return "unknown"
}

// envelope is what travels on the network. Payload holds a CBOR encoded
// protocol message.
type envelope struct {
	From    int
	Kind    kind
	Payload []byte
	Err     string
}

// network connects the requesters to the signer with channels.
// Each requester has at most one call in flight.
type network struct {
	inbox   chan envelope
	replies []chan envelope
}

func newNetwork(requesters int) *network {
	replies := make([]chan envelope, requesters)
	for i := range replies {
		replies[i] = make(chan envelope, 1)
	}
	return &network{
		inbox:   make(chan envelope, requesters),
		replies: replies,
	}
}

// Next returns the channel on which the signer receives requests.
func (n *network) Next() <-chan envelope {
	return n.inbox
}

// Reply answers the requester who sent req. It never blocks.
func (n *network) Reply(req envelope, payload []byte, err error) {
	e := envelope{From: req.From, Kind: req.Kind, Payload: payload}
	if err != nil {
		e.Err = err.Error()
	}
	n.replies[req.From] <- e
}

// Call sends a request from requester id and waits for the answer.
func (n *network) Call(ctx context.Context, id int, k kind, payload []byte) ([]byte, error) {
	select {
	case n.inbox <- envelope{From: id, Kind: k, Payload: payload}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case e := <-n.replies[id]:
		if e.Err != "" {
			return nil, errors.New(e.Err)
		}
		return e.Payload, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the signer once every requester is done.
func (n *network) Close() {
	close(n.inbox)
}

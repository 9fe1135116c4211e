package service

import (
	"sync"

	"github.com/zangapay/escrow.go/common"
)

// TopicAll receives a copy of every published event.
const TopicAll = "*"

type Pubsub struct {
	mu   sync.RWMutex
	subs map[string]map[string]chan common.Event
}

func NewPubsub() *Pubsub {
	ps := &Pubsub{}
	ps.subs = make(map[string]map[string]chan common.Event)
	return ps
}

func (ps *Pubsub) Subscribe(topic string, ch chan common.Event) (subId string, err error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.subs[topic] == nil {
		ps.subs[topic] = make(map[string]chan common.Event)
	}
	//re-use the release code generator for a subscription id
	subId, err = makeReleaseCode()
	if err != nil {
		return "", err
	}
	ps.subs[topic][subId] = ch
	return subId, nil
}

func (ps *Pubsub) Unsubscribe(id string, topic string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.subs[topic] == nil {
		return
	}
	if ps.subs[topic][id] == nil {
		return
	}
	close(ps.subs[topic][id])
	delete(ps.subs[topic], id)
}

func (ps *Pubsub) Publish(topic string, msg common.Event) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	for _, ch := range ps.subs[topic] {
		ch <- msg
	}
	if topic != TopicAll {
		for _, ch := range ps.subs[TopicAll] {
			ch <- msg
		}
	}
}

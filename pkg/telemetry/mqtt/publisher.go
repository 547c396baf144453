package mqtt

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/golang/glog"

	fx "github.com/robotalks/tokenring/pkg/framework"
	"github.com/robotalks/tokenring/pkg/telemetry"
	"github.com/robotalks/tokenring/pkg/telemetry/pb"
)

// Topic suffixes.
const (
	EventTopicSuffix = "/event"
	MetaTopicSuffix  = "/meta"

	// EventTopicPattern subscribes to events of all nodes.
	EventTopicPattern = "+" + EventTopicSuffix
)

// NodeMeta is published (retained) when a node connects.
type NodeMeta struct {
	Role  string `json:"role"`
	Token byte   `json:"token,omitempty"`
}

// Publisher publishes events of a single node.
type Publisher struct {
	// keep 64-bit aligned for atomic access on 32-bit platforms.
	dropped uint64

	Queue  *Queue
	NodeID string
	Meta   NodeMeta

	metaJSON []byte
	eventCh  chan telemetry.Event
	pub      func(topic string, payload []byte)
}

// NewPublisher creates a Publisher connecting to the broker.
func NewPublisher(brokerURL, nodeID string, meta NodeMeta) (*Publisher, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(topicPrefix+nodeID+MetaTopicSuffix, nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("ring:" + nodeID)
	}
	p := newPublisher(nodeID, meta)
	p.Queue = NewQueue(opts, topicPrefix)
	p.Queue.OnConnect = func(q *Queue) {
		q.PubWith(nodeID+MetaTopicSuffix, p.metaJSON, 1, true)
	}
	p.pub = func(topic string, payload []byte) {
		p.Queue.Pub(topic, payload)
	}
	return p, nil
}

func newPublisher(nodeID string, meta NodeMeta) *Publisher {
	metaJSON, err := json.Marshal(&meta)
	if err != nil {
		panic(err)
	}
	return &Publisher{
		NodeID:   nodeID,
		Meta:     meta,
		metaJSON: metaJSON,
		eventCh:  make(chan telemetry.Event, 64),
	}
}

// Dropped returns the number of events dropped because the queue was full.
func (p *Publisher) Dropped() uint64 {
	return atomic.LoadUint64(&p.dropped)
}

// Observe implements telemetry.Observer. It never blocks the node.
func (p *Publisher) Observe(ev telemetry.Event) {
	select {
	case p.eventCh <- ev:
	default:
		atomic.AddUint64(&p.dropped, 1)
	}
}

// Run implements Runnable.
func (p *Publisher) Run(ctx context.Context) error {
	if p.Queue != nil {
		p.connect()
		defer p.Queue.Close()
		defer p.Queue.PubWith(p.NodeID+MetaTopicSuffix, nil, 1, true)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-p.eventCh:
			p.publish(ev)
		}
	}
}

// connect waits for the first connection. A failure is logged only, the
// node keeps running and events go nowhere until the broker is reachable.
func (p *Publisher) connect() error {
	token := p.Queue.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		glog.Errorf("mqtt:%s connect error: %v", p.NodeID, err)
		return err
	}
	return nil
}

// AddToRunner implements RunnerAdder.
func (p *Publisher) AddToRunner(r *fx.Runner) {
	r.Go(fx.NamedRun("mqtt:"+p.NodeID, p))
}

func (p *Publisher) publish(ev telemetry.Event) {
	payload, err := pb.Encode(ev)
	if err != nil {
		glog.Errorf("encode event error: %v", err)
		return
	}
	p.pub(p.NodeID+EventTopicSuffix, payload)
}

// NodeFromTopic extracts the node ID from an event topic.
func NodeFromTopic(topic string) string {
	if i := len(topic) - len(EventTopicSuffix); i > 0 && topic[i:] == EventTopicSuffix {
		return topic[:i]
	}
	return ""
}

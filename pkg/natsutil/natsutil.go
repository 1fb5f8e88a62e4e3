// Package natsutil provides typed NATS publish/subscribe/request helpers
// with OpenTelemetry trace propagation.
package natsutil

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

// natsHeaderCarrier adapts nats.Msg headers for OTel TextMapCarrier.
type natsHeaderCarrier nats.Msg

func (c *natsHeaderCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *natsHeaderCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *natsHeaderCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// Publish serializes v as JSON and publishes to the given subject.
// Trace context from ctx is injected into NATS message headers.
func Publish[T any](ctx context.Context, nc *nats.Conn, subject string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
	}
	otel.GetTextMapPropagator().Inject(ctx, (*natsHeaderCarrier)(msg))
	return nc.PublishMsg(msg)
}

// Subscribe registers a handler that deserializes JSON messages of type T.
// Trace context is extracted from NATS message headers and passed to the handler.
// Malformed messages are silently dropped.
func Subscribe[T any](nc *nats.Conn, subject string, handler func(context.Context, T)) (*nats.Subscription, error) {
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			return // drop malformed messages
		}
		ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*natsHeaderCarrier)(msg))
		handler(ctx, v)
	})
}

// Request sends a JSON-encoded request and decodes the response. The ctx
// deadline bounds the wait; without one nats.DefaultTimeout applies.
func Request[Req, Resp any](ctx context.Context, nc *nats.Conn, subject string, req Req) (Resp, error) {
	var zero Resp
	data, err := json.Marshal(req)
	if err != nil {
		return zero, err
	}
	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
	}
	otel.GetTextMapPropagator().Inject(ctx, (*natsHeaderCarrier)(msg))

	var resp *nats.Msg
	if _, ok := ctx.Deadline(); ok {
		resp, err = nc.RequestMsgWithContext(ctx, msg)
	} else {
		resp, err = nc.RequestMsg(msg, nats.DefaultTimeout)
	}
	if err != nil {
		return zero, err
	}
	var result Resp
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return zero, err
	}
	return result, nil
}

// Reply is the envelope Respond answers with. Error is set when the handler
// failed, in which case Data is the zero value.
type Reply[T any] struct {
	Data  T      `json:"data"`
	Error string `json:"error,omitempty"`
}

// Unwrap returns the payload, or the remote failure as an error.
func (r Reply[T]) Unwrap() (T, error) {
	if r.Error != "" {
		var zero T
		return zero, errors.New(r.Error)
	}
	return r.Data, nil
}

// Call is Request for a subject served by Respond.
func Call[Req, Resp any](ctx context.Context, nc *nats.Conn, subject string, req Req) (Resp, error) {
	reply, err := Request[Req, Reply[Resp]](ctx, nc, subject, req)
	if err != nil {
		var zero Resp
		return zero, err
	}
	return reply.Unwrap()
}

// Respond serves request/reply on subject. Each request is decoded into Req,
// handled, and answered with a Reply. A non-empty queue load-balances the
// subject across responders of the same group. Malformed requests are
// answered with an error reply.
func Respond[Req, Resp any](nc *nats.Conn, subject, queue string, handler func(context.Context, Req) (Resp, error)) (*nats.Subscription, error) {
	cb := func(msg *nats.Msg) {
		var reply Reply[Resp]
		var req Req
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			reply.Error = "malformed request: " + err.Error()
		} else {
			ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*natsHeaderCarrier)(msg))
			resp, err := handler(ctx, req)
			if err != nil {
				reply.Error = err.Error()
			} else {
				reply.Data = resp
			}
		}
		data, err := json.Marshal(reply)
		if err != nil {
			data, _ = json.Marshal(Reply[Resp]{Error: err.Error()})
		}
		_ = msg.Respond(data)
	}
	if queue != "" {
		return nc.QueueSubscribe(subject, queue, cb)
	}
	return nc.Subscribe(subject, cb)
}

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"posorder/backend/internal/xid"
)

// DeliveryError reports a webhook response outside the 2xx range.
type DeliveryError struct {
	Status int
	Body   string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("webhook responded %d: %s", e.Status, e.Body)
}

type job struct {
	id      string
	url     string
	payload InvoicePayload
}

// Dispatcher delivers invoice payloads from a bounded queue on its own
// goroutine so a slow endpoint never holds up the request that produced them.
type Dispatcher struct {
	client     *http.Client
	webhookURL func() string
	queue      chan job
	timeout    time.Duration
	maxRetries int
	newBackOff func() backoff.BackOff
}

func NewDispatcher(webhookURL func() string, timeout time.Duration, maxRetries int, queueSize int) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if queueSize < 1 {
		queueSize = 64
	}
	return &Dispatcher{
		client:     &http.Client{},
		webhookURL: webhookURL,
		queue:      make(chan job, queueSize),
		timeout:    timeout,
		maxRetries: max(maxRetries, 0),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxElapsedTime = time.Minute
			return b
		},
	}
}

// Notify queues payload for delivery. It never blocks and never fails: a
// missing webhook URL or a full queue is logged and the payload dropped.
func (d *Dispatcher) Notify(_ context.Context, payload InvoicePayload) {
	url := d.webhookURL()
	if url == "" {
		log.Printf("[notify] MAKE_WEBHOOK_URL is not set; invoice for order %d not sent", payload.OrderID)
		return
	}

	j := job{id: xid.New("job"), url: url, payload: payload}
	select {
	case d.queue <- j:
	default:
		log.Printf("[notify] queue full; dropping invoice for order %d (job %s)", payload.OrderID, j.id)
	}
}

// Run delivers queued jobs until ctx is cancelled, then drains the queue
// within a bounded grace period.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			d.drain(nil)
			return nil
		case j := <-d.queue:
			if ctx.Err() != nil {
				d.drain(&j)
				return nil
			}
			d.deliver(ctx, j)
		}
	}
}

func (d *Dispatcher) drain(pending *job) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*d.timeout)
	defer cancel()

	if pending != nil {
		d.deliver(ctx, *pending)
	}
	for {
		select {
		case j := <-d.queue:
			d.deliver(ctx, j)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, j job) {
	attempts := 0
	operation := func() error {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		err := Send(attemptCtx, d.client, j.url, j.payload)
		var derr *DeliveryError
		if errors.As(err, &derr) && derr.Status >= 400 && derr.Status < 500 {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(d.newBackOff(), uint64(d.maxRetries)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		var derr *DeliveryError
		if errors.As(err, &derr) {
			log.Printf("[notify] failed to send invoice for order %d (job %s, attempts %d): status=%d body=%q",
				j.payload.OrderID, j.id, attempts, derr.Status, derr.Body)
			return
		}
		log.Printf("[notify] error sending invoice for order %d (job %s, attempts %d): %v",
			j.payload.OrderID, j.id, attempts, err)
		return
	}
	log.Printf("[notify] invoice for order %d sent (job %s)", j.payload.OrderID, j.id)
}

// Send performs a single POST of payload as JSON.
func Send(ctx context.Context, client *http.Client, url string, payload InvoicePayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &DeliveryError{Status: resp.StatusCode, Body: string(respBody)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

package jobs

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()
	for i := 0; i < 5; i++ {
		q.Enqueue(&Job{ID: fmt.Sprintf("job-%d", i)})
	}
	assert.Equal(t, 5, q.Len())
	for i := 0; i < 5; i++ {
		j, err := q.Dequeue(context.Background())
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("job-%d", i), j.ID)
	}
	assert.Zero(t, q.Len())
}

func TestQueueDequeueBlocksUntilEnqueue(t *testing.T) {
	q := NewQueue()
	got := make(chan *Job, 1)
	go func() {
		j, err := q.Dequeue(context.Background())
		assert.NoError(t, err)
		got <- j
	}()

	select {
	case <-got:
		t.Fatal("dequeue returned before anything was enqueued")
	case <-time.After(50 * time.Millisecond):
	}

	q.Enqueue(&Job{ID: "late"})
	select {
	case j := <-got:
		assert.Equal(t, "late", j.ID)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not wake after enqueue")
	}
}

func TestQueueDequeueHonorsContext(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	j, err := q.Dequeue(ctx)
	assert.Nil(t, j)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueExactlyOnceDelivery(t *testing.T) {
	const (
		producers       = 8
		jobsPerProducer = 100
		consumers       = 6
	)
	q := NewQueue()

	var producerWG sync.WaitGroup
	for p := 0; p < producers; p++ {
		producerWG.Add(1)
		go func(p int) {
			defer producerWG.Done()
			for i := 0; i < jobsPerProducer; i++ {
				q.Enqueue(&Job{ID: fmt.Sprintf("p%d-j%d", p, i)})
			}
		}(p)
	}

	total := producers * jobsPerProducer
	seen := make(chan string, total)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var consumerWG sync.WaitGroup
	for c := 0; c < consumers; c++ {
		consumerWG.Add(1)
		go func() {
			defer consumerWG.Done()
			for {
				j, err := q.Dequeue(ctx)
				if err != nil {
					return
				}
				seen <- j.ID
			}
		}()
	}

	producerWG.Wait()

	// Every unique marker delivered exactly once: no loss, no duplicates.
	delivered := make(map[string]int)
	for i := 0; i < total; i++ {
		select {
		case id := <-seen:
			delivered[id]++
		case <-ctx.Done():
			t.Fatalf("timed out after %d of %d deliveries", i, total)
		}
	}
	cancel()
	consumerWG.Wait()
	assert.Zero(t, q.Len())
	select {
	case id := <-seen:
		t.Fatalf("job %s delivered more than once", id)
	default:
	}
	require.Len(t, delivered, total)
	for id, count := range delivered {
		assert.Equal(t, 1, count, "job %s delivered %d times", id, count)
	}
}

func TestQueueSingleProducerOrderUnderConcurrentConsumption(t *testing.T) {
	// With a single consumer, order must match enqueue order even when
	// producers and the consumer interleave.
	q := NewQueue()
	done := make(chan []string, 1)
	go func() {
		var order []string
		for i := 0; i < 50; i++ {
			j, err := q.Dequeue(context.Background())
			if err != nil {
				return
			}
			order = append(order, j.ID)
		}
		done <- order
	}()
	for i := 0; i < 50; i++ {
		q.Enqueue(&Job{ID: fmt.Sprintf("job-%d", i)})
	}
	order := <-done
	for i, id := range order {
		assert.Equal(t, fmt.Sprintf("job-%d", i), id)
	}
}

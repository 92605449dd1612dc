package archive_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talkbase-io/go-chatpipe/pkg/archive"
	"github.com/talkbase-io/go-chatpipe/pkg/chatmodel"
	"github.com/talkbase-io/go-chatpipe/pkg/intent"
)

// fakeInserter records flushed batches.
type fakeInserter struct {
	mu      sync.Mutex
	batches [][]*archive.Record
	closed  bool
}

func (f *fakeInserter) InsertBatch(_ context.Context, records []*archive.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	batch := make([]*archive.Record, len(records))
	copy(batch, records)
	f.batches = append(f.batches, batch)
	return nil
}

func (f *fakeInserter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeInserter) totalRecords() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func (f *fakeInserter) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func testRecord(eventID string) *archive.Record {
	msg := chatmodel.NormalizedMessage{
		MerchantID: "m1",
		SessionID:  "s1",
		Channel:    chatmodel.ChannelTelegram,
		Role:       chatmodel.RoleCustomer,
		Text:       "7701234567",
		Timestamp:  time.Now().UTC(),
	}
	return archive.NewRecord(eventID, msg, intent.Result{Step: intent.StepOrders, Phone: "7701234567"})
}

func TestNewRecord_FlattensMessageAndIntent(t *testing.T) {
	rec := testRecord("ev-1")

	assert.Equal(t, "ev-1", rec.EventID)
	assert.Equal(t, "m1", rec.MerchantID)
	assert.Equal(t, "telegram", rec.Channel)
	assert.Equal(t, "orders", rec.IntentStep)
	assert.Equal(t, "7701234567", rec.Phone)
}

func TestArchiver_FlushesOnBatchSize(t *testing.T) {
	inserter := &fakeInserter{}
	archiver := archive.NewArchiver(&archive.ArchiverConfig{
		BatchSize:     3,
		FlushInterval: time.Hour, // size, not time, must trigger the flush
		InsertTimeout: time.Second,
	}, inserter, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	archiver.Start(ctx)

	archiver.Add(testRecord("a"))
	archiver.Add(testRecord("b"))
	archiver.Add(testRecord("c"))

	require.Eventually(t, func() bool { return inserter.totalRecords() == 3 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, inserter.batchCount())
}

func TestArchiver_FlushesPartialBatchOnInterval(t *testing.T) {
	inserter := &fakeInserter{}
	archiver := archive.NewArchiver(&archive.ArchiverConfig{
		BatchSize:     100,
		FlushInterval: 20 * time.Millisecond,
		InsertTimeout: time.Second,
	}, inserter, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	archiver.Start(ctx)

	archiver.Add(testRecord("only"))

	require.Eventually(t, func() bool { return inserter.totalRecords() == 1 }, time.Second, 10*time.Millisecond)
}

func TestArchiver_StopFlushesRemainder(t *testing.T) {
	inserter := &fakeInserter{}
	archiver := archive.NewArchiver(&archive.ArchiverConfig{
		BatchSize:     100,
		FlushInterval: time.Hour,
		InsertTimeout: time.Second,
	}, inserter, zerolog.Nop())

	ctx := context.Background()
	archiver.Start(ctx)

	archiver.Add(testRecord("x"))
	archiver.Add(testRecord("y"))

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, archiver.Stop(stopCtx))

	assert.Equal(t, 2, inserter.totalRecords())

	inserter.mu.Lock()
	defer inserter.mu.Unlock()
	assert.True(t, inserter.closed)
}

func TestArchiver_AddAfterStopDropsWithoutPanic(t *testing.T) {
	inserter := &fakeInserter{}
	archiver := archive.NewArchiver(archive.LoadArchiverDefaults(), inserter, zerolog.Nop())

	ctx := context.Background()
	archiver.Start(ctx)

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, archiver.Stop(stopCtx))

	// Fire-and-forget callers may still hold a reference through shutdown.
	archiver.Add(testRecord("late"))
	assert.Equal(t, 0, inserter.totalRecords())

	require.NoError(t, archiver.Stop(stopCtx), "Stop is idempotent")
}

func TestArchiver_ConcurrentAddDuringStop(t *testing.T) {
	inserter := &fakeInserter{}
	archiver := archive.NewArchiver(archive.LoadArchiverDefaults(), inserter, zerolog.Nop())

	ctx := context.Background()
	archiver.Start(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				archiver.Add(testRecord("race"))
			}
		}()
	}

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, archiver.Stop(stopCtx))
	wg.Wait()
}

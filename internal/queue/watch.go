package queue

import (
	"context"
	"time"
)

// Watch starts a consistency poll for one conversation without a queued
// job. Some transcripts arrive out of band (imports completed on another
// machine, direct database writes); the poll notices them and tells
// subscribers to refresh. Watching an id that already has a queued job,
// or is already watched, is a no-op.
func (q *Queue) Watch(conversationID int64) {
	q.mu.Lock()
	if _, queued := q.items[conversationID]; queued {
		q.mu.Unlock()
		return
	}
	if _, exists := q.watches[conversationID]; exists {
		q.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(q.ctx)
	q.watches[conversationID] = cancel
	q.mu.Unlock()

	q.wg.Add(1)
	go q.poll(ctx, conversationID)
}

// Unwatch stops the consistency poll for a conversation.
func (q *Queue) Unwatch(conversationID int64) {
	q.mu.Lock()
	if cancel, ok := q.watches[conversationID]; ok {
		cancel()
		delete(q.watches, conversationID)
	}
	q.mu.Unlock()
}

func (q *Queue) poll(ctx context.Context, conversationID int64) {
	defer q.wg.Done()
	defer q.Unwatch(conversationID)

	ticker := time.NewTicker(q.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// The conversation may have been enqueued since the watch
			// started; the queued lifecycle owns it now.
			q.mu.Lock()
			_, queued := q.items[conversationID]
			q.mu.Unlock()
			if queued {
				continue
			}

			_, present, err := q.opts.Store.GetTranscription(ctx, conversationID)
			if err != nil {
				q.opts.Log.Warn().Err(err).Int64("conversation_id", conversationID).Msg("consistency poll failed")
				continue
			}
			if present {
				if q.opts.Publish != nil {
					q.opts.Publish("transcription", conversationID, map[string]any{
						"conversation_id": conversationID,
						"status":          string(StatusCompleted),
					})
				}
				return
			}
		}
	}
}

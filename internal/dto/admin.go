package dto

// RetryQueueStatsResponse mirrors the retry queue depth by kind and status
type RetryQueueStatsResponse struct {
	PendingEmbeds         int64 `json:"pending_embeds"`
	PendingIndexDeletions int64 `json:"pending_index_deletions"`
	FailedEmbeds          int64 `json:"failed_embeds"`
	FailedIndexDeletions  int64 `json:"failed_index_deletions"`
}

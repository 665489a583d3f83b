package models

import (
	"io"
	"sync/atomic"
)

// TransferJob represents one in-flight multipart upload. It is transient and
// is destroyed when the transfer completes or aborts.
type TransferJob struct {
	Source      io.Reader
	Key         string
	ContentType string
	Size        int64

	// OnProgress, when set, is called with the running byte count after each
	// part is acknowledged by the store.
	OnProgress func(transferred, total int64)

	transferred atomic.Int64
}

// AddAcknowledged records n more bytes as acknowledged. Only call this for
// parts the store has accepted, never for bytes merely queued, so the counter
// stays monotonic.
func (j *TransferJob) AddAcknowledged(n int64) {
	total := j.transferred.Add(n)
	if j.OnProgress != nil {
		j.OnProgress(total, j.Size)
	}
}

func (j *TransferJob) BytesTransferred() int64 {
	return j.transferred.Load()
}

// Progress reports acknowledged bytes as a percentage, capped at 100.
func (j *TransferJob) Progress() uint8 {
	if j.Size <= 0 {
		return 0
	}

	p := (float64(j.BytesTransferred()) / float64(j.Size)) * 100
	if p > 100 {
		p = 100
	}
	return uint8(p)
}

package workers

import (
	"context"
	"time"

	"github.com/urlmg/urlkeeper/internal/indexnow"
	"github.com/urlmg/urlkeeper/internal/logger"
)

// submitTimeout bounds one background submission attempt.
const submitTimeout = 30 * time.Second

// StartSubmitWorkers launches a pool of goroutines draining IndexNow
// submission batches. Failures are logged and dropped: search engine
// notification is best-effort telemetry and must never fail or delay the
// operation that produced the URL.
func StartSubmitWorkers(workerCount int, submissions <-chan []string, svc *indexnow.Service, log logger.Logger) {
	log.Info("starting indexnow submit workers", logger.Int("count", workerCount))
	for i := 0; i < workerCount; i++ {
		go submitWorker(submissions, svc, log)
	}
}

// submitWorker drains the channel until it is closed.
func submitWorker(submissions <-chan []string, svc *indexnow.Service, log logger.Logger) {
	for urls := range submissions {
		ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
		result, err := svc.Submit(ctx, urls)
		cancel()
		if err != nil {
			log.Warn("indexnow submission failed",
				logger.Int("urls", len(urls)),
				logger.Error(err))
			continue
		}
		log.Info("indexnow submission accepted",
			logger.Int("urls", len(urls)),
			logger.Int("status", result.Status))
	}
}

// Enqueue offers a batch to the submission channel without blocking. When
// the buffer is full the batch is dropped; the caller's request must not
// wait on telemetry.
func Enqueue(submissions chan<- []string, urls []string, log logger.Logger) {
	select {
	case submissions <- urls:
	default:
		log.Warn("indexnow submission buffer full, dropping batch",
			logger.Int("urls", len(urls)))
	}
}

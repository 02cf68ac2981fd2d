package mailer

import "github.com/pure-golang/csvmail/mail"

// DefaultBatchSize is the target number of messages per SMTP session.
const DefaultBatchSize = 25

// NumBatches returns floor(total/size)+1. It is at least 1, even for an empty
// queue. A non-positive size falls back to DefaultBatchSize.
func NumBatches(total, size int) int {
	if size <= 0 {
		size = DefaultBatchSize
	}
	if total < 0 {
		total = 0
	}
	return total/size + 1
}

// Partition distributes msgs over n batches round-robin: the message at index
// i goes to batch i mod n. Order inside a batch follows the input.
func Partition(msgs []mail.Message, n int) [][]mail.Message {
	if n < 1 {
		n = 1
	}
	batches := make([][]mail.Message, n)
	for i, msg := range msgs {
		batches[i%n] = append(batches[i%n], msg)
	}
	return batches
}

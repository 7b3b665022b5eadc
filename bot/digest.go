package bot

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"wedsync/entity"
)

const maxTelegramMessageLen = 4096

// DigestEntry is one buffered line; Household is set for guest responses.
type DigestEntry struct {
	Message   string
	Topic     string
	Level     slog.Level
	Timestamp time.Time
	Household *entity.Household
}

// DigestBuffer collects notifications per chat and sends them together on
// every tick and once more on Stop.
type DigestBuffer struct {
	mu       sync.Mutex
	entries  map[int64][]DigestEntry
	interval time.Duration
	send     func(chatId int64, text string)
	now      func() time.Time
	stopCh   chan struct{}
	done     chan struct{}
	running  bool
}

func NewDigestBuffer(bot *TgBot, interval time.Duration) *DigestBuffer {
	d := &DigestBuffer{
		entries:  make(map[int64][]DigestEntry),
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	if bot != nil {
		d.send = bot.plainResponse
	}
	return d
}

// AddResponse buffers a guest response.
func (d *DigestBuffer) AddResponse(chatId int64, h *entity.Household) {
	d.add(chatId, DigestEntry{
		Message:   formatResponse(h),
		Topic:     entity.TopicResponse,
		Level:     slog.LevelInfo,
		Household: h.Copy(),
	})
}

// Add buffers a preformatted MarkdownV2 line; an unknown topic is filed under
// the log topic.
func (d *DigestBuffer) Add(chatId int64, msg string, topic string, level slog.Level) {
	if !entity.IsValidTopic(topic) {
		topic = entity.TopicLog
	}
	d.add(chatId, DigestEntry{Message: msg, Topic: topic, Level: level})
}

func (d *DigestBuffer) add(chatId int64, e DigestEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e.Timestamp = d.now()
	d.entries[chatId] = append(d.entries[chatId], e)
}

func (d *DigestBuffer) StartTicker() {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	go func() {
		defer close(d.done)
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d.Flush()
			case <-d.stopCh:
				d.Flush()
				return
			}
		}
	}()
}

func (d *DigestBuffer) Flush() {
	d.mu.Lock()
	snapshot := d.entries
	d.entries = make(map[int64][]DigestEntry)
	d.mu.Unlock()

	if d.send == nil {
		return
	}
	for chatId, entries := range snapshot {
		if len(entries) == 0 {
			continue
		}
		for _, part := range splitMessage(formatDigest(entries), maxTelegramMessageLen) {
			d.send(chatId, part)
		}
	}
}

// Stop flushes pending entries; it must be called once.
func (d *DigestBuffer) Stop() {
	d.mu.Lock()
	running := d.running
	d.mu.Unlock()
	if !running {
		d.Flush()
		return
	}
	close(d.stopCh)
	<-d.done
}

// responseTally sums the responses of one digest.
type responseTally struct {
	confirmed int
	guests    int
	rejected  int
}

func tally(entries []DigestEntry) responseTally {
	var t responseTally
	for _, e := range entries {
		if e.Household == nil {
			continue
		}
		switch e.Household.Status {
		case entity.StatusConfirmed:
			t.confirmed++
			t.guests += e.Household.ConfirmedAttendees
		case entity.StatusRejected:
			t.rejected++
		}
	}
	return t
}

func formatDigest(entries []DigestEntry) string {
	grouped := make(map[string][]DigestEntry)
	for _, e := range entries {
		grouped[e.Topic] = append(grouped[e.Topic], e)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*Digest* \\(%d messages\\)\n", len(entries)))
	if t := tally(entries); t.confirmed+t.rejected > 0 {
		sb.WriteString(fmt.Sprintf("Confirmed: `%d` \\(`%d` guests\\), declined: `%d`\n", t.confirmed, t.guests, t.rejected))
	}
	sb.WriteString("\n")

	topics := make([]string, 0, len(grouped))
	for topic := range grouped {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	for _, topic := range topics {
		topicEntries := grouped[topic]
		sb.WriteString(fmt.Sprintf("*%s* \\(%d\\):\n", Sanitize(topic), len(topicEntries)))
		for _, e := range topicEntries {
			// messages are already MarkdownV2
			sb.WriteString(fmt.Sprintf("`%s` %s\n", e.Timestamp.Format("15:04"), e.Message))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

package logger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"go.uber.org/zap"
)

func TestLokiLogger_PushesEntries(t *testing.T) {
	RegisterTestingT(t)

	received := make(chan LokiLogEntry, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Expect(r.URL.Path).To(Equal("/loki/api/v1/push"))

		var entry LokiLogEntry
		json.NewDecoder(r.Body).Decode(&entry)
		received <- entry

		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	l := newLokiLogger(zap.NewNop(), "todos-test", server.URL+"/")

	l.InfoWithTrace(context.Background(), "Todo added", zap.Int("todo_id", 7))

	var entry LokiLogEntry
	Eventually(received, 2*time.Second).Should(Receive(&entry))

	Expect(entry.Streams).To(HaveLen(1))
	Expect(entry.Streams[0].Stream["service"]).To(Equal("todos-test"))

	var line map[string]interface{}
	Expect(json.Unmarshal([]byte(entry.Streams[0].Values[0][1]), &line)).To(Succeed())
	Expect(line["message"]).To(Equal("Todo added"))
	Expect(line["todo_id"]).To(BeEquivalentTo(7))
}

func TestLokiLogger_SyncFlushesQueuedRecords(t *testing.T) {
	RegisterTestingT(t)

	received := make(chan LokiLogEntry, 4)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var entry LokiLogEntry
		json.NewDecoder(r.Body).Decode(&entry)
		received <- entry

		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	l := newLokiLogger(zap.NewNop(), "todos-test", server.URL)
	ctx := context.Background()

	l.InfoWithTrace(ctx, "first")
	l.ErrorWithTrace(ctx, "second")
	l.InfoWithTrace(ctx, "third")

	Expect(l.Sync()).To(Succeed())

	perLevel := map[string]int{}
	for len(received) > 0 {
		entry := <-received
		for _, stream := range entry.Streams {
			perLevel[stream.Stream["level"]] += len(stream.Values)
		}
	}

	Expect(perLevel).To(Equal(map[string]int{"info": 2, "error": 1}))
}

func TestLokiLogger_CloseShipsQueueAndStops(t *testing.T) {
	RegisterTestingT(t)

	received := make(chan LokiLogEntry, 4)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var entry LokiLogEntry
		json.NewDecoder(r.Body).Decode(&entry)
		received <- entry

		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	l := newLokiLogger(zap.NewNop(), "todos-test", server.URL)
	ctx := context.Background()

	l.InfoWithTrace(ctx, "before close")

	Expect(l.Close(ctx)).To(Succeed())
	Expect(l.stopped).To(BeClosed())
	Expect(received).To(HaveLen(1))

	l.InfoWithTrace(ctx, "after close")
	Expect(l.Sync()).To(Succeed())
	Expect(l.Close(ctx)).To(Succeed())
	Consistently(received, 200*time.Millisecond).Should(HaveLen(1))
}

func TestLokiLogger_NopDoesNotPush(t *testing.T) {
	RegisterTestingT(t)

	l := NewNop()

	Expect(l.lokiURL).To(BeEmpty())
	Expect(func() { l.ErrorWithTrace(context.Background(), "boom") }).ToNot(Panic())
}

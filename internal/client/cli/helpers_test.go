package cli

import (
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iudanet/boardsync/internal/client/api"
	"github.com/iudanet/boardsync/internal/client/iocli"
	"github.com/iudanet/boardsync/internal/client/session"
	"github.com/iudanet/boardsync/internal/client/storage"
	"github.com/iudanet/boardsync/internal/client/transport"
	"github.com/iudanet/boardsync/internal/server/hub"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// output потокобезопасный буфер вывода команд
type output struct {
	b  strings.Builder
	mu sync.Mutex
}

func (o *output) write(s string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.b.WriteString(s)
}

func (o *output) String() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.b.String()
}

func newTestIO(answer string) (*iocli.IOMock, *output) {
	out := &output{}
	mock := &iocli.IOMock{
		PrintlnFunc: func(a ...any) { out.write(fmt.Sprintln(a...)) },
		PrintfFunc:  func(format string, a ...any) { out.write(fmt.Sprintf(format, a...)) },
		ReadInputFunc: func(prompt string) (string, error) {
			out.write(prompt)
			return answer, nil
		},
		WriteFunc: func(p []byte) (int, error) {
			out.write(string(p))
			return len(p), nil
		},
	}
	return mock, out
}

func startRelay(t *testing.T) (*hub.Hub, string) {
	t.Helper()

	h := hub.New(hub.Options{Logger: testLogger})
	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		h.Close()
		srv.Close()
	})

	return h, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newBoardCli(url string, io iocli.IO, store storage.SnapshotStorage) *Cli {
	return New(io, &api.ClientAPIMock{}, store, Options{
		Logger: testLogger,
		Session: session.Options{
			Logger: testLogger,
			Transport: transport.Options{
				URL:            url,
				InitialBackoff: 10 * time.Millisecond,
				MaxBackoff:     50 * time.Millisecond,
				MaxAttempts:    3,
			},
		},
		Settle:  100 * time.Millisecond,
		Timeout: 3 * time.Second,
	})
}

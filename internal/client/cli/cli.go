// Package cli реализует команды headless клиента доски.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"text/template"
	"time"

	"github.com/iudanet/boardsync/internal/client/api"
	"github.com/iudanet/boardsync/internal/client/iocli"
	"github.com/iudanet/boardsync/internal/client/scene/memory"
	"github.com/iudanet/boardsync/internal/client/session"
	"github.com/iudanet/boardsync/internal/client/storage"
	"github.com/iudanet/boardsync/internal/client/transport"
)

const (
	// DefaultSettle сколько ждать после подключения, пока придет состояние комнаты
	// и уйдут собственные изменения
	DefaultSettle = 300 * time.Millisecond
	// DefaultTimeout ограничение ожидания подключения и появления объектов
	DefaultTimeout = 5 * time.Second
)

// ErrUnknownCommand неизвестная команда
var ErrUnknownCommand = errors.New("unknown command")

// Options параметры клиента
type Options struct {
	Logger *slog.Logger
	// Session шаблон параметров сессии; Surface, Room и OnStatus
	// заполняются командами
	Session session.Options
	Settle  time.Duration
	Timeout time.Duration
}

type Cli struct {
	io        iocli.IO
	apiClient api.ClientAPI
	store     storage.SnapshotStorage
	logger    *slog.Logger
	sessions  session.Options
	settle    time.Duration
	timeout   time.Duration
}

func New(io iocli.IO, apiClient api.ClientAPI, store storage.SnapshotStorage, opts Options) *Cli {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	return &Cli{
		io:        io,
		apiClient: apiClient,
		store:     store,
		logger:    opts.Logger,
		sessions:  opts.Session,
		settle:    opts.Settle,
		timeout:   opts.Timeout,
	}
}

// Run выполняет команду
func (c *Cli) Run(ctx context.Context, command string, args []string) error {
	switch command {
	case "watch":
		return c.RunWatch(ctx, args)
	case "draw":
		return c.RunDraw(ctx, args)
	case "move":
		return c.RunMove(ctx, args)
	case "delete":
		return c.RunDelete(ctx, args)
	case "show":
		return c.RunShow(ctx, args)
	case "info":
		return c.RunInfo(ctx, args)
	case "rooms":
		return c.RunRooms(ctx, args)
	case "snapshots":
		return c.RunSnapshots(ctx)
	case "forget":
		return c.RunForget(ctx, args)
	case "help":
		return c.PrintUsage()
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}
}

// PrintUsage выводит справку
func (c *Cli) PrintUsage() error {
	return c.render(usageTemplate, nil)
}

func (c *Cli) render(text string, data any) error {
	tmpl, err := template.New("output").Parse(text)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}
	if err := tmpl.Execute(c.io, data); err != nil {
		return fmt.Errorf("failed to render output: %w", err)
	}
	return nil
}

// board подключенная к комнате поверхность в памяти
type board struct {
	surface *memory.Surface
	session *session.Session
}

func (c *Cli) join(ctx context.Context, room string, surface *memory.Surface, onStatus func(transport.Status)) (*board, error) {
	opts := c.sessions
	opts.Surface = surface
	opts.Room = room
	opts.Store = c.store
	opts.OnStatus = onStatus
	if opts.Logger == nil {
		opts.Logger = c.logger
	}

	s, err := session.Start(ctx, opts)
	if err != nil {
		return nil, err
	}

	return &board{surface: surface, session: s}, nil
}

func (c *Cli) leave(b *board) {
	if err := b.session.Close(); err != nil {
		c.logger.Warn("Failed to close session", "room", b.session.Room(), "error", err)
	}
}

// waitConnected ждет подключения и состояния комнаты
func (c *Cli) waitConnected(ctx context.Context, b *board) error {
	if !c.waitUntil(ctx, func() bool { return b.session.Status() == transport.StatusConnected }) {
		return fmt.Errorf("room %s: %w", b.session.Room(), transport.ErrRoomUnreachable)
	}
	return c.pause(ctx)
}

func (c *Cli) pause(ctx context.Context) error {
	timer := time.NewTimer(c.settle)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// waitUntil опрашивает cond, пока она не выполнится или не выйдет timeout
func (c *Cli) waitUntil(ctx context.Context, cond func() bool) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if cond() {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

var (
	errObjectNotFound = errors.New("object not found in room")
	errNotAdded       = errors.New("object was not added to the document")
)

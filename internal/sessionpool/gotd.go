package sessionpool

import (
	"context"
	"fmt"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
)

// connectTimeout — время ожидания установки MTProto-соединения.
const connectTimeout = 30 * time.Second

// GotdConnector устанавливает соединения через gotd по строковым
// сессиям в формате Telethon.
type GotdConnector struct {
	apiID   int
	apiHash string
}

// NewGotdConnector создаёт Connector с учётными данными приложения.
func NewGotdConnector(apiID int, apiHash string) *GotdConnector {
	return &GotdConnector{apiID: apiID, apiHash: apiHash}
}

// gotdConn держит работающий в фоне клиент gotd. Соединение живёт,
// пока не отменён его контекст.
type gotdConn struct {
	client *telegram.Client
	api    *tg.Client
	cancel context.CancelFunc
	done   chan error
}

// Raw возвращает RPC-клиент соединения.
func (c *gotdConn) Raw() *tg.Client { return c.api }

// Stop отменяет фоновый контекст клиента и дожидается завершения.
func (c *gotdConn) Stop() error {
	c.cancel()
	if err := <-c.done; err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// Connect декодирует строковую сессию, запускает клиент в фоне и
// проверяет авторизацию. Неавторизованная сессия — ErrAuthenticationFailed.
func (c *GotdConnector) Connect(ctx context.Context, stringSession string) (Conn, error) {
	const op = "sessionpool.Connect"

	data, err := session.TelethonSession(stringSession)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrAuthenticationFailed, err)
	}

	storage := new(session.StorageMemory)
	loader := session.Loader{Storage: storage}
	if err := loader.Save(ctx, data); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	client := telegram.NewClient(c.apiID, c.apiHash, telegram.Options{
		SessionStorage: storage,
	})

	runCtx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- client.Run(runCtx, func(ctx context.Context) error {
			close(ready)
			<-ctx.Done()
			return ctx.Err()
		})
	}()

	select {
	case <-ready:
	case err := <-done:
		cancel()
		return nil, fmt.Errorf("%s: %w", op, err)
	case <-time.After(connectTimeout):
		cancel()
		<-done
		return nil, fmt.Errorf("%s: connect timeout", op)
	case <-ctx.Done():
		cancel()
		<-done
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	}

	status, err := client.Auth().Status(ctx)
	if err != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !status.Authorized {
		cancel()
		<-done
		return nil, fmt.Errorf("%s: %w", op, ErrAuthenticationFailed)
	}

	return &gotdConn{
		client: client,
		api:    client.API(),
		cancel: cancel,
		done:   done,
	}, nil
}

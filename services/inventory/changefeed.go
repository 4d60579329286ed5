package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/pb"
	"github.com/lib/pq"
)

// Namespaces do store que geram eventos de mudança
const (
	NamespaceItems        = "items"
	NamespaceTransactions = "transactions"
	NamespaceScannerMode  = "scannerMode"
)

// ChangeEvent é uma notificação de mudança vinda do store.
// Namespace vazio indica que o feed reconectou e os clientes devem ser ressincronizados.
type ChangeEvent struct {
	Namespace string `json:"namespace"`
	Op        string `json:"op"`
	Key       string `json:"key"`
}

// ChangeFeed entrega os eventos de mudança do store até o contexto ser cancelado
type ChangeFeed interface {
	Run(ctx context.Context, handle func(ChangeEvent)) error
}

// parseChangeEvent decodifica o payload JSON enviado pelo trigger do Postgres
func parseChangeEvent(payload string) (ChangeEvent, error) {
	var event ChangeEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return ChangeEvent{}, fmt.Errorf("invalid change payload %q: %w", payload, err)
	}
	switch event.Namespace {
	case NamespaceItems, NamespaceTransactions, NamespaceScannerMode:
		return event, nil
	default:
		return ChangeEvent{}, fmt.Errorf("unknown change namespace %q", event.Namespace)
	}
}

// PostgresChangeFeed escuta o canal LISTEN/NOTIFY alimentado pelos triggers do schema
type PostgresChangeFeed struct {
	dsn          string
	pingInterval time.Duration
}

// NewPostgresChangeFeed cria o feed a partir de um DSN no formato lib/pq
func NewPostgresChangeFeed(dsn string) *PostgresChangeFeed {
	return &PostgresChangeFeed{
		dsn:          dsn,
		pingInterval: 90 * time.Second,
	}
}

func (f *PostgresChangeFeed) Run(ctx context.Context, handle func(ChangeEvent)) error {
	listener := pq.NewListener(f.dsn, 2*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			log.Printf("✅ [CHANGE FEED] Listening on %s", changeChannel)
		case pq.ListenerEventDisconnected:
			log.Printf("⚠️ [CHANGE FEED] Disconnected: %v", err)
		case pq.ListenerEventReconnected:
			log.Printf("🔁 [CHANGE FEED] Reconnected")
		case pq.ListenerEventConnectionAttemptFailed:
			log.Printf("⏳ [CHANGE FEED] Connection attempt failed: %v", err)
		}
	})
	defer listener.Close()

	if err := listener.Listen(changeChannel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", changeChannel, err)
	}

	ticker := time.NewTicker(f.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case notification := <-listener.Notify:
			// nil after a reconnect: notifications may have been lost in between.
			if notification == nil {
				handle(ChangeEvent{})
				continue
			}
			event, err := parseChangeEvent(notification.Extra)
			if err != nil {
				log.Printf("❌ [CHANGE FEED] %v", err)
				continue
			}
			handle(event)

		case <-ticker.C:
			go func() {
				if err := listener.Ping(); err != nil {
					log.Printf("⚠️ [CHANGE FEED] Ping failed: %v", err)
				}
			}()
		}
	}
}

// BadgerChangeFeed assina as mudanças das chaves do inventário no BadgerDB
type BadgerChangeFeed struct {
	db *badger.DB
}

// NewBadgerChangeFeed cria o feed sobre o mecanismo de Subscribe do Badger
func NewBadgerChangeFeed(db *badger.DB) *BadgerChangeFeed {
	return &BadgerChangeFeed{db: db}
}

// badgerKeyEvent traduz uma chave alterada para o evento correspondente
func badgerKeyEvent(key string) (ChangeEvent, bool) {
	switch {
	case strings.HasPrefix(key, itemsPrefix):
		return ChangeEvent{Namespace: NamespaceItems, Op: "WRITE", Key: strings.TrimPrefix(key, itemsPrefix)}, true
	case strings.HasPrefix(key, transactionsPrefix):
		return ChangeEvent{Namespace: NamespaceTransactions, Op: "INSERT", Key: strings.TrimPrefix(key, transactionsPrefix)}, true
	case key == scannerModeKey:
		return ChangeEvent{Namespace: NamespaceScannerMode, Op: "WRITE", Key: scannerModeKey}, true
	}
	return ChangeEvent{}, false
}

func (f *BadgerChangeFeed) Run(ctx context.Context, handle func(ChangeEvent)) error {
	matches := []pb.Match{
		{Prefix: []byte(itemsPrefix)},
		{Prefix: []byte(transactionsPrefix)},
		{Prefix: []byte(scannerModeKey)},
	}

	log.Printf("✅ [CHANGE FEED] Subscribed to badger prefixes")
	err := f.db.Subscribe(ctx, func(kvs *badger.KVList) error {
		// One items_update per batch is enough; the list is re-read in full.
		itemsChanged := false
		for _, kv := range kvs.Kv {
			event, ok := badgerKeyEvent(string(kv.Key))
			if !ok {
				continue
			}
			if event.Namespace == NamespaceItems {
				if itemsChanged {
					continue
				}
				itemsChanged = true
			}
			handle(event)
		}
		return nil
	}, matches)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("badger subscription ended: %w", err)
	}
	return ctx.Err()
}

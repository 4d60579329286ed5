package main

import (
	"context"
	"errors"
	"log"
)

// InventoryReader é o que o relay precisa ler do inventário para montar as mensagens
type InventoryReader interface {
	ListItems(ctx context.Context) ([]Item, error)
	GetTransaction(ctx context.Context, id string) (*Transaction, error)
	GetScannerMode(ctx context.Context) (ScannerMode, error)
}

// Publisher distribui mensagens aos clientes conectados
type Publisher interface {
	Broadcast(msg Message)
}

// ChangeRelay transforma eventos do store em mensagens push
type ChangeRelay struct {
	reader    InventoryReader
	publisher Publisher
}

// NewChangeRelay cria uma nova instância de ChangeRelay
func NewChangeRelay(reader InventoryReader, publisher Publisher) *ChangeRelay {
	return &ChangeRelay{
		reader:    reader,
		publisher: publisher,
	}
}

// Run consome o feed até o contexto ser cancelado
func (r *ChangeRelay) Run(ctx context.Context, feed ChangeFeed) error {
	err := feed.Run(ctx, func(event ChangeEvent) {
		r.Handle(ctx, event)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Handle publica a mensagem correspondente a um evento; falhas de leitura só são registradas
func (r *ChangeRelay) Handle(ctx context.Context, event ChangeEvent) {
	switch event.Namespace {
	case NamespaceItems:
		r.publishItems(ctx)

	case NamespaceTransactions:
		if event.Op != "" && event.Op != "INSERT" {
			return
		}
		transaction, err := r.reader.GetTransaction(ctx, event.Key)
		if err != nil {
			log.Printf("❌ [RELAY] Failed to load transaction %s: %v", event.Key, err)
			return
		}
		r.publisher.Broadcast(Message{Type: MessageTransactionAdded, Data: transaction})

	case NamespaceScannerMode:
		r.publishScannerMode(ctx)

	case "":
		log.Printf("🔁 [RELAY] Resynchronizing clients")
		r.publishItems(ctx)
		r.publishScannerMode(ctx)
	}
}

func (r *ChangeRelay) publishItems(ctx context.Context) {
	items, err := r.reader.ListItems(ctx)
	if err != nil {
		log.Printf("❌ [RELAY] Failed to list items: %v", err)
		return
	}
	r.publisher.Broadcast(Message{Type: MessageItemsUpdate, Data: items})
}

func (r *ChangeRelay) publishScannerMode(ctx context.Context) {
	mode, err := r.reader.GetScannerMode(ctx)
	if err != nil {
		log.Printf("❌ [RELAY] Failed to load scanner mode: %v", err)
		return
	}
	r.publisher.Broadcast(Message{Type: MessageScannerModeUpdate, Data: mode})
}

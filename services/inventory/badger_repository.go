package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/dgraph-io/badger/v4"
)

// Layout das chaves no BadgerDB
const (
	itemsPrefix        = "items/"
	transactionsPrefix = "transactions/"
	scanRequestsPrefix = "scanRequests/"
	scannerModeKey     = "scannerMode"
)

func itemKey(barcode string) []byte { return []byte(itemsPrefix + barcode) }
func transactionKey(id string) []byte { return []byte(transactionsPrefix + id) }
func scanRequestKey(requestID string) []byte { return []byte(scanRequestsPrefix + requestID) }

// BadgerConfig configura o store embarcado
type BadgerConfig struct {
	// Path vazio abre o banco em memória (testes, demo)
	Path       string
	SyncWrites bool
}

// OpenBadger abre o BadgerDB e grava o modo padrão do scanner se ainda não existir
func OpenBadger(cfg BadgerConfig) (*badger.DB, error) {
	var opts badger.Options
	if cfg.Path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path).WithSyncWrites(cfg.SyncWrites)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	err = db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(scannerModeKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return setJSON(txn, []byte(scannerModeKey), DefaultScannerMode())
		}
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize scanner mode: %w", err)
	}
	return db, nil
}

// BadgerInventoryRepository implementa InventoryRepository usando BadgerDB
type BadgerInventoryRepository struct {
	db *badger.DB
}

// NewBadgerInventoryRepository cria uma nova instância de BadgerInventoryRepository
func NewBadgerInventoryRepository(db *badger.DB) InventoryRepository {
	return &BadgerInventoryRepository{
		db: db,
	}
}

// BadgerTx implementa a interface Tx sobre uma transação SSI do Badger
type BadgerTx struct {
	txn *badger.Txn
}

func (t *BadgerTx) Commit() error {
	if err := t.txn.Commit(); err != nil {
		return storeErr("commit", err)
	}
	return nil
}

func (t *BadgerTx) Rollback() error {
	t.txn.Discard()
	return nil
}

// BeginTx inicia uma nova transação de escrita
func (r *BadgerInventoryRepository) BeginTx(ctx context.Context) (Tx, error) {
	return &BadgerTx{txn: r.db.NewTransaction(true)}, nil
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	entry, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return entry.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, raw)
}

// badgerErr preserva os erros de domínio e embrulha o resto como indisponibilidade do store
func badgerErr(op string, err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return storeErr(op, err)
}

func sortItems(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].Barcode < items[j].Barcode
	})
}

// ListItems lista os itens do mais recente para o mais antigo
func (r *BadgerInventoryRepository) ListItems(ctx context.Context) ([]Item, error) {
	items := make([]Item, 0)
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(itemsPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var item Item
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &item)
			}); err != nil {
				return err
			}
			items = append(items, item)
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("list items", err)
	}
	sortItems(items)
	return items, nil
}

// GetItem busca um item pelo código de barras
func (r *BadgerInventoryRepository) GetItem(ctx context.Context, barcode string) (*Item, error) {
	var item Item
	err := r.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, itemKey(barcode), &item)
	})
	if err != nil {
		return nil, badgerErr("get item", err)
	}
	return &item, nil
}

// CreateItem grava o item se a chave ainda não existir; um commit concorrente na mesma chave conta como duplicado
func (r *BadgerInventoryRepository) CreateItem(ctx context.Context, item *Item) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(itemKey(item.Barcode))
		if err == nil {
			return ErrConflict
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return setJSON(txn, itemKey(item.Barcode), item)
	})
	if errors.Is(err, badger.ErrConflict) {
		return ErrConflict
	}
	if err != nil {
		return badgerErr("create item", err)
	}
	return nil
}

// UpdateItem sobrescreve a quantidade (e opcionalmente o originalStock) de um item
func (r *BadgerInventoryRepository) UpdateItem(ctx context.Context, barcode string, quantity int, originalStock *int) (*Item, error) {
	var item Item
	err := r.db.Update(func(txn *badger.Txn) error {
		if err := getJSON(txn, itemKey(barcode), &item); err != nil {
			return err
		}
		item.Quantity = quantity
		if originalStock != nil {
			item.OriginalStock = *originalStock
		}
		return setJSON(txn, itemKey(barcode), &item)
	})
	if err != nil {
		return nil, badgerErr("update item", err)
	}
	return &item, nil
}

// DeleteItem remove o item; as transações dele são mantidas
func (r *BadgerInventoryRepository) DeleteItem(ctx context.Context, barcode string) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(itemKey(barcode)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return txn.Delete(itemKey(barcode))
	})
	if err != nil {
		return badgerErr("delete item", err)
	}
	return nil
}

// GetItemForUpdate lê o item dentro da transação; o Badger detecta escritas concorrentes no commit
func (r *BadgerInventoryRepository) GetItemForUpdate(ctx context.Context, tx Tx, barcode string) (*Item, error) {
	txn := tx.(*BadgerTx).txn

	var item Item
	if err := getJSON(txn, itemKey(barcode), &item); err != nil {
		return nil, badgerErr("get item with lock", err)
	}
	return &item, nil
}

// SetItemQuantity grava a nova quantidade dentro da transação
func (r *BadgerInventoryRepository) SetItemQuantity(ctx context.Context, tx Tx, barcode string, quantity int) error {
	txn := tx.(*BadgerTx).txn

	var item Item
	if err := getJSON(txn, itemKey(barcode), &item); err != nil {
		return badgerErr("update stock", err)
	}
	item.Quantity = quantity
	if err := setJSON(txn, itemKey(barcode), &item); err != nil {
		return storeErr("update stock", err)
	}
	return nil
}

// AppendTransaction grava um registro no log; a chave UUIDv7 mantém a ordem de inserção
func (r *BadgerInventoryRepository) AppendTransaction(ctx context.Context, tx Tx, barcode string, action TransactionAction, quantity int) (*Transaction, error) {
	txn := tx.(*BadgerTx).txn

	id, err := newTransactionID()
	if err != nil {
		return nil, storeErr("generate transaction id", err)
	}
	transaction := NewTransaction(id, barcode, action, quantity)
	if err := setJSON(txn, transactionKey(id), transaction); err != nil {
		return nil, storeErr("insert transaction record", err)
	}
	return transaction, nil
}

func enrichFromTxn(txn *badger.Txn, transaction *Transaction) error {
	var item Item
	err := getJSON(txn, itemKey(transaction.Barcode), &item)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	transaction.Enrich(&item)
	return nil
}

// ListRecentTransactions retorna as últimas transações, da mais nova para a mais antiga
func (r *BadgerInventoryRepository) ListRecentTransactions(ctx context.Context, limit int) ([]Transaction, error) {
	transactions := make([]Transaction, 0, limit)
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(transactionsPrefix)
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(append(prefix, 0xFF)); it.ValidForPrefix(prefix) && len(transactions) < limit; it.Next() {
			var transaction Transaction
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &transaction)
			}); err != nil {
				return err
			}
			if err := enrichFromTxn(txn, &transaction); err != nil {
				return err
			}
			transactions = append(transactions, transaction)
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("list transactions", err)
	}

	sort.SliceStable(transactions, func(i, j int) bool {
		if transactions[i].Timestamp != transactions[j].Timestamp {
			return transactions[i].Timestamp > transactions[j].Timestamp
		}
		return transactions[i].ID > transactions[j].ID
	})
	return transactions, nil
}

// GetTransaction busca uma transação já enriquecida
func (r *BadgerInventoryRepository) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	var transaction Transaction
	err := r.db.View(func(txn *badger.Txn) error {
		if err := getJSON(txn, transactionKey(id), &transaction); err != nil {
			return err
		}
		return enrichFromTxn(txn, &transaction)
	})
	if err != nil {
		return nil, badgerErr("get transaction", err)
	}
	return &transaction, nil
}

// GetScannerMode retorna o modo atual, ou o padrão se nenhum foi gravado
func (r *BadgerInventoryRepository) GetScannerMode(ctx context.Context) (ScannerMode, error) {
	var mode ScannerMode
	err := r.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, []byte(scannerModeKey), &mode)
	})
	if errors.Is(err, ErrNotFound) {
		return DefaultScannerMode(), nil
	}
	if err != nil {
		return ScannerMode{}, storeErr("get scanner mode", err)
	}
	return mode, nil
}

// SetScannerMode sobrescreve o registro inteiro do modo
func (r *BadgerInventoryRepository) SetScannerMode(ctx context.Context, mode ScannerMode) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, []byte(scannerModeKey), mode)
	})
	if err != nil {
		return storeErr("set scanner mode", err)
	}
	return nil
}

// GetScanResult verifica se o requestId já foi processado
func (r *BadgerInventoryRepository) GetScanResult(ctx context.Context, tx Tx, requestID string) (*ScanResult, error) {
	txn := tx.(*BadgerTx).txn

	var result ScanResult
	err := getJSON(txn, scanRequestKey(requestID), &result)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("check idempotency", err)
	}
	return &result, nil
}

// SaveScanResult registra o resultado do scan para o requestId
func (r *BadgerInventoryRepository) SaveScanResult(ctx context.Context, tx Tx, requestID string, result *ScanResult) error {
	txn := tx.(*BadgerTx).txn

	if err := setJSON(txn, scanRequestKey(requestID), result); err != nil {
		return storeErr("insert scan request", err)
	}
	return nil
}

// closeBadger fecha o banco registrando falhas
func closeBadger(db *badger.DB) {
	if err := db.Close(); err != nil {
		log.Printf("Error closing badger database: %v", err)
	}
}

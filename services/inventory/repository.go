package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ItemRepository define as operações sobre os itens, indexados pelo código de barras
type ItemRepository interface {
	ListItems(ctx context.Context) ([]Item, error)
	GetItem(ctx context.Context, barcode string) (*Item, error)
	CreateItem(ctx context.Context, item *Item) error
	UpdateItem(ctx context.Context, barcode string, quantity int, originalStock *int) (*Item, error)
	DeleteItem(ctx context.Context, barcode string) error
	GetItemForUpdate(ctx context.Context, tx Tx, barcode string) (*Item, error)
	SetItemQuantity(ctx context.Context, tx Tx, barcode string, quantity int) error
}

// TransactionRepository define o log append-only de movimentações
type TransactionRepository interface {
	AppendTransaction(ctx context.Context, tx Tx, barcode string, action TransactionAction, quantity int) (*Transaction, error)
	ListRecentTransactions(ctx context.Context, limit int) ([]Transaction, error)
	GetTransaction(ctx context.Context, id string) (*Transaction, error)
}

// ScannerModeRepository define o registro singleton do modo do scanner
type ScannerModeRepository interface {
	GetScannerMode(ctx context.Context) (ScannerMode, error)
	SetScannerMode(ctx context.Context, mode ScannerMode) error
}

// ScanRequestRepository guarda o resultado de cada scan por requestId (idempotência)
type ScanRequestRepository interface {
	GetScanResult(ctx context.Context, tx Tx, requestID string) (*ScanResult, error)
	SaveScanResult(ctx context.Context, tx Tx, requestID string, result *ScanResult) error
}

// InventoryRepository agrupa todos os contratos do store
type InventoryRepository interface {
	ItemRepository
	TransactionRepository
	ScannerModeRepository
	ScanRequestRepository
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx interface para transações
type Tx interface {
	Commit() error
	Rollback() error
}

// newTransactionID gera um id ordenado no tempo (UUIDv7) para o log de transações
func newTransactionID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

// pgxQuerier é o subconjunto do *pgxpool.Pool usado pelo repositório
type pgxQuerier interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ pgxQuerier = (*pgxpool.Pool)(nil)

// PostgresInventoryRepository implementa InventoryRepository usando PostgreSQL
type PostgresInventoryRepository struct {
	db pgxQuerier
}

// NewInventoryRepository cria uma nova instância de PostgresInventoryRepository
func NewInventoryRepository(db *pgxpool.Pool) InventoryRepository {
	return newPostgresRepository(db)
}

func newPostgresRepository(db pgxQuerier) *PostgresInventoryRepository {
	return &PostgresInventoryRepository{
		db: db,
	}
}

// PostgresTx implementa a interface Tx
type PostgresTx struct {
	tx pgx.Tx
}

func (t *PostgresTx) Commit() error {
	if err := t.tx.Commit(context.Background()); err != nil {
		return storeErr("commit", err)
	}
	return nil
}

func (t *PostgresTx) Rollback() error {
	return t.tx.Rollback(context.Background())
}

// BeginTx inicia uma nova transação
func (r *PostgresInventoryRepository) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, storeErr("begin transaction", err)
	}
	return &PostgresTx{tx: tx}, nil
}

const itemColumns = `barcode, name, category, quantity, original_stock, created_at`

func scanItem(row pgx.Row) (*Item, error) {
	var item Item
	err := row.Scan(
		&item.Barcode,
		&item.Name,
		&item.Category,
		&item.Quantity,
		&item.OriginalStock,
		&item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.ID = item.Barcode
	return &item, nil
}

// ListItems lista os itens do mais recente para o mais antigo
func (r *PostgresInventoryRepository) ListItems(ctx context.Context) ([]Item, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+itemColumns+`
		FROM items
		ORDER BY created_at DESC, barcode ASC
	`)
	if err != nil {
		return nil, storeErr("list items", err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, storeErr("scan item", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list items", err)
	}
	return items, nil
}

// GetItem busca um item pelo código de barras
func (r *PostgresInventoryRepository) GetItem(ctx context.Context, barcode string) (*Item, error) {
	item, err := scanItem(r.db.QueryRow(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE barcode = $1
	`, barcode))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get item", err)
	}
	return item, nil
}

// CreateItem insere o item apenas se o código de barras ainda não existir
func (r *PostgresInventoryRepository) CreateItem(ctx context.Context, item *Item) error {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO items (barcode, name, category, quantity, original_stock, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (barcode) DO NOTHING
	`, item.Barcode, item.Name, item.Category, item.Quantity, item.OriginalStock, item.CreatedAt)
	if err != nil {
		return storeErr("create item", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// UpdateItem sobrescreve a quantidade (e opcionalmente o originalStock) de um item
func (r *PostgresInventoryRepository) UpdateItem(ctx context.Context, barcode string, quantity int, originalStock *int) (*Item, error) {
	item, err := scanItem(r.db.QueryRow(ctx, `
		UPDATE items
		SET quantity = $1,
		    original_stock = COALESCE($2, original_stock)
		WHERE barcode = $3
		RETURNING `+itemColumns, quantity, originalStock, barcode))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("update item", err)
	}
	return item, nil
}

// DeleteItem remove o item; as transações dele são mantidas
func (r *PostgresInventoryRepository) DeleteItem(ctx context.Context, barcode string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM items WHERE barcode = $1`, barcode)
	if err != nil {
		return storeErr("delete item", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetItemForUpdate obtém o item com lock pessimista (FOR UPDATE)
func (r *PostgresInventoryRepository) GetItemForUpdate(ctx context.Context, tx Tx, barcode string) (*Item, error) {
	pgTx := tx.(*PostgresTx).tx

	item, err := scanItem(pgTx.QueryRow(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE barcode = $1
		FOR UPDATE
	`, barcode))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get item with lock", err)
	}
	return item, nil
}

// SetItemQuantity grava a nova quantidade dentro da transação
func (r *PostgresInventoryRepository) SetItemQuantity(ctx context.Context, tx Tx, barcode string, quantity int) error {
	pgTx := tx.(*PostgresTx).tx

	_, err := pgTx.Exec(ctx, `UPDATE items SET quantity = $1 WHERE barcode = $2`, quantity, barcode)
	if err != nil {
		return storeErr("update stock", err)
	}
	return nil
}

// AppendTransaction insere um registro no log de transações
func (r *PostgresInventoryRepository) AppendTransaction(ctx context.Context, tx Tx, barcode string, action TransactionAction, quantity int) (*Transaction, error) {
	pgTx := tx.(*PostgresTx).tx

	id, err := newTransactionID()
	if err != nil {
		return nil, storeErr("generate transaction id", err)
	}
	transaction := NewTransaction(id, barcode, action, quantity)

	_, err = pgTx.Exec(ctx, `
		INSERT INTO transactions (id, barcode, action, quantity, timestamp_ms)
		VALUES ($1, $2, $3, $4, $5)
	`, transaction.ID, transaction.Barcode, string(transaction.Action), transaction.Quantity, transaction.Timestamp)
	if err != nil {
		return nil, storeErr("insert transaction record", err)
	}
	return transaction, nil
}

const transactionSelect = `
	SELECT t.id, t.barcode, t.action, t.quantity, t.timestamp_ms,
	       COALESCE(i.name, ''), COALESCE(i.category, '')
	FROM %s t
	LEFT JOIN items i ON i.barcode = t.barcode
`

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var (
		transaction Transaction
		action      string
	)
	err := row.Scan(
		&transaction.ID,
		&transaction.Barcode,
		&action,
		&transaction.Quantity,
		&transaction.Timestamp,
		&transaction.ItemName,
		&transaction.Category,
	)
	if err != nil {
		return nil, err
	}
	transaction.Action = TransactionAction(action)
	return &transaction, nil
}

// ListRecentTransactions retorna as últimas transações, da mais nova para a mais antiga
func (r *PostgresInventoryRepository) ListRecentTransactions(ctx context.Context, limit int) ([]Transaction, error) {
	recent := `(SELECT * FROM transactions ORDER BY timestamp_ms DESC, id DESC LIMIT $1)`
	rows, err := r.db.Query(ctx, fmt.Sprintf(transactionSelect, recent)+`
		ORDER BY t.timestamp_ms DESC, t.id DESC
	`, limit)
	if err != nil {
		return nil, storeErr("list transactions", err)
	}
	defer rows.Close()

	transactions := make([]Transaction, 0, limit)
	for rows.Next() {
		transaction, err := scanTransaction(rows)
		if err != nil {
			return nil, storeErr("scan transaction", err)
		}
		transactions = append(transactions, *transaction)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list transactions", err)
	}
	return transactions, nil
}

// GetTransaction busca uma transação já enriquecida
func (r *PostgresInventoryRepository) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	transaction, err := scanTransaction(r.db.QueryRow(ctx,
		fmt.Sprintf(transactionSelect, "transactions")+` WHERE t.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get transaction", err)
	}
	return transaction, nil
}

// GetScannerMode retorna o modo atual, ou o padrão se nenhum foi gravado
func (r *PostgresInventoryRepository) GetScannerMode(ctx context.Context) (ScannerMode, error) {
	var (
		mode     string
		quantity int
	)
	err := r.db.QueryRow(ctx, `SELECT mode, quantity FROM scanner_mode WHERE id = 1`).Scan(&mode, &quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return DefaultScannerMode(), nil
	}
	if err != nil {
		return ScannerMode{}, storeErr("get scanner mode", err)
	}
	return ScannerMode{Mode: Mode(mode), Quantity: quantity}, nil
}

// SetScannerMode sobrescreve o registro inteiro do modo
func (r *PostgresInventoryRepository) SetScannerMode(ctx context.Context, mode ScannerMode) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO scanner_mode (id, mode, quantity)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE
		SET mode = EXCLUDED.mode,
		    quantity = EXCLUDED.quantity
	`, string(mode.Mode), mode.Quantity)
	if err != nil {
		return storeErr("set scanner mode", err)
	}
	return nil
}

// GetScanResult verifica se o requestId já foi processado
func (r *PostgresInventoryRepository) GetScanResult(ctx context.Context, tx Tx, requestID string) (*ScanResult, error) {
	pgTx := tx.(*PostgresTx).tx

	var raw []byte
	err := pgTx.QueryRow(ctx, `SELECT result FROM scan_requests WHERE request_id = $1`, requestID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("check idempotency", err)
	}

	var result ScanResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, storeErr("decode scan result", err)
	}
	return &result, nil
}

// SaveScanResult registra o resultado do scan para o requestId
func (r *PostgresInventoryRepository) SaveScanResult(ctx context.Context, tx Tx, requestID string, result *ScanResult) error {
	pgTx := tx.(*PostgresTx).tx

	raw, err := json.Marshal(result)
	if err != nil {
		return storeErr("encode scan result", err)
	}
	_, err = pgTx.Exec(ctx, `
		INSERT INTO scan_requests (request_id, result)
		VALUES ($1, $2)
	`, requestID, string(raw))
	if err != nil {
		return storeErr("insert scan request", err)
	}
	return nil
}

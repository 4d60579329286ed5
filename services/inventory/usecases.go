package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

// RecentTransactionsLimit é quantas transações a leitura do log devolve
const RecentTransactionsLimit = 100

// InventoryUseCase contém a lógica de negócio do inventário e do processamento de scans
type InventoryUseCase struct {
	repository InventoryRepository
	tracer     trace.Tracer
	locks      *barcodeLocks

	scanCounter             metric.Int64Counter
	partialDeductionCounter metric.Int64Counter
}

// NewInventoryUseCase cria uma nova instância de InventoryUseCase
func NewInventoryUseCase(
	repository InventoryRepository,
	tracer trace.Tracer,
) *InventoryUseCase {
	meter := otel.Meter("inventory-service")

	scanCounter, err := meter.Int64Counter("inventory.scans",
		metric.WithDescription("Processed barcode scans by mode and outcome"))
	if err != nil {
		log.Printf("Error creating scan counter: %v", err)
		scanCounter = noop.Int64Counter{}
	}
	partialDeductionCounter, err := meter.Int64Counter("inventory.partial_deductions",
		metric.WithDescription("Decrement scans limited by available stock"))
	if err != nil {
		log.Printf("Error creating partial deduction counter: %v", err)
		partialDeductionCounter = noop.Int64Counter{}
	}

	return &InventoryUseCase{
		repository:              repository,
		tracer:                  tracer,
		locks:                   newBarcodeLocks(),
		scanCounter:             scanCounter,
		partialDeductionCounter: partialDeductionCounter,
	}
}

// ListItems lista todos os itens, do mais recente para o mais antigo
func (uc *InventoryUseCase) ListItems(ctx context.Context) ([]Item, error) {
	return uc.repository.ListItems(ctx)
}

// GetItem busca um item e calcula o status do estoque
func (uc *InventoryUseCase) GetItem(ctx context.Context, barcode string) (*ItemWithStatus, error) {
	item, err := uc.repository.GetItem(ctx, barcode)
	if err != nil {
		return nil, err
	}
	withStatus := item.WithStatus()
	return &withStatus, nil
}

// CreateItem cadastra um item novo; código de barras duplicado é rejeitado
func (uc *InventoryUseCase) CreateItem(ctx context.Context, req CreateItemRequest) (*Item, error) {
	barcode := strings.TrimSpace(req.Barcode)
	name := strings.TrimSpace(req.Name)
	category := strings.TrimSpace(req.Category)
	if barcode == "" || name == "" || category == "" || req.Quantity == nil {
		return nil, fmt.Errorf("%w: missing required fields", ErrValidation)
	}
	quantity := int(*req.Quantity)
	if quantity < 0 {
		return nil, fmt.Errorf("%w: quantity must be >= 0", ErrValidation)
	}

	log.Printf("➕ [CREATE ITEM] Barcode=%s | Name=%s | Quantity=%d", barcode, name, quantity)

	item := NewItem(barcode, name, category, quantity)
	if err := uc.repository.CreateItem(ctx, item); err != nil {
		if errors.Is(err, ErrConflict) {
			log.Printf("ℹ️ [CREATE ITEM] Barcode=%s already exists", barcode)
			return nil, fmt.Errorf("%w: item with this barcode already exists", ErrConflict)
		}
		return nil, err
	}

	log.Printf("✅ [CREATE ITEM] Success: Barcode=%s", barcode)
	return item, nil
}

// UpdateItem ajusta manualmente a quantidade (e opcionalmente o originalStock)
func (uc *InventoryUseCase) UpdateItem(ctx context.Context, barcode string, req UpdateItemRequest) (*Item, error) {
	if req.Quantity == nil {
		return nil, fmt.Errorf("%w: quantity is required", ErrValidation)
	}
	quantity := int(*req.Quantity)
	if quantity < 0 {
		return nil, fmt.Errorf("%w: quantity must be >= 0", ErrValidation)
	}
	var originalStock *int
	if req.OriginalStock != nil {
		value := int(*req.OriginalStock)
		if value < 0 {
			return nil, fmt.Errorf("%w: originalStock must be >= 0", ErrValidation)
		}
		originalStock = &value
	}

	unlock := uc.locks.Lock(barcode)
	defer unlock()

	item, err := uc.repository.UpdateItem(ctx, barcode, quantity, originalStock)
	if err != nil {
		return nil, err
	}

	log.Printf("✏️ [UPDATE ITEM] Barcode=%s | Quantity=%d | OriginalStock=%d", barcode, item.Quantity, item.OriginalStock)
	return item, nil
}

// DeleteItem remove o item; o histórico de transações é preservado
func (uc *InventoryUseCase) DeleteItem(ctx context.Context, barcode string) error {
	unlock := uc.locks.Lock(barcode)
	defer unlock()

	if err := uc.repository.DeleteItem(ctx, barcode); err != nil {
		return err
	}

	log.Printf("🗑️ [DELETE ITEM] Barcode=%s", barcode)
	return nil
}

// ListTransactions retorna as últimas 100 transações enriquecidas com o item atual
func (uc *InventoryUseCase) ListTransactions(ctx context.Context) ([]Transaction, error) {
	return uc.repository.ListRecentTransactions(ctx, RecentTransactionsLimit)
}

// GetTransaction busca uma transação enriquecida
func (uc *InventoryUseCase) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	return uc.repository.GetTransaction(ctx, id)
}

// GetScannerMode retorna o modo atual do scanner
func (uc *InventoryUseCase) GetScannerMode(ctx context.Context) (ScannerMode, error) {
	return uc.repository.GetScannerMode(ctx)
}

// SetScannerMode valida e sobrescreve o modo do scanner
func (uc *InventoryUseCase) SetScannerMode(ctx context.Context, mode ScannerMode) (ScannerMode, error) {
	mode = mode.Normalize()
	if err := mode.Validate(); err != nil {
		return ScannerMode{}, err
	}

	if err := uc.repository.SetScannerMode(ctx, mode); err != nil {
		return ScannerMode{}, err
	}

	log.Printf("⚙️ [SCANNER MODE] Mode=%s | Quantity=%d", mode.Mode, mode.Quantity)
	return mode, nil
}

// scanPlan é a mutação calculada para um scan, antes de tocar no store
type scanPlan struct {
	action      TransactionAction
	success     bool
	mutate      bool
	appendTx    bool
	newQuantity int
	changed     int
	requested   int
	partial     bool
	message     string
}

// planScan decide o efeito de um scan a partir do item e de um snapshot do modo
func planScan(item Item, mode ScannerMode) (scanPlan, error) {
	switch mode.Mode {
	case ModeDetails:
		return scanPlan{
			action:      ActionView,
			success:     true,
			appendTx:    true,
			newQuantity: item.Quantity,
			message:     "Item details retrieved",
		}, nil

	case ModeDecrement:
		if mode.Quantity < 1 {
			return scanPlan{}, fmt.Errorf("%w: decrement quantity must be >= 1, got %d", ErrConfiguration, mode.Quantity)
		}
		requested := mode.Quantity
		available := item.Quantity
		if available <= 0 {
			return scanPlan{
				action:      ActionDeduct,
				newQuantity: 0,
				requested:   requested,
				message:     "Item is out of stock",
			}, nil
		}

		deducted := min(requested, available)
		plan := scanPlan{
			action:      ActionDeduct,
			success:     true,
			mutate:      true,
			appendTx:    true,
			newQuantity: available - deducted,
			changed:     deducted,
			requested:   requested,
			partial:     deducted < requested,
			message:     fmt.Sprintf("Stock decreased by %d", deducted),
		}
		if plan.partial {
			plan.message = fmt.Sprintf("Only %d of %d requested units were in stock; stock decreased by %d", deducted, requested, deducted)
		}
		return plan, nil

	case ModeIncrement:
		if mode.Quantity < 1 {
			return scanPlan{}, fmt.Errorf("%w: increment quantity must be >= 1, got %d", ErrConfiguration, mode.Quantity)
		}
		if item.Quantity > 0 && mode.Quantity > math.MaxInt-item.Quantity {
			return scanPlan{}, fmt.Errorf("%w: stock of %d cannot grow by %d", ErrValidation, item.Quantity, mode.Quantity)
		}
		return scanPlan{
			action:      ActionAdd,
			success:     true,
			mutate:      true,
			appendTx:    true,
			newQuantity: item.Quantity + mode.Quantity,
			changed:     mode.Quantity,
			message:     fmt.Sprintf("Stock increased by %d", mode.Quantity),
		}, nil

	default:
		return scanPlan{}, fmt.Errorf("%w: unknown scanner mode %q", ErrConfiguration, mode.Mode)
	}
}

func buildScanResult(item Item, mode ScannerMode, plan scanPlan, transaction *Transaction) *ScanResult {
	item.Quantity = plan.newQuantity
	withStatus := item.WithStatus()

	result := &ScanResult{
		Success:             plan.success,
		Barcode:             item.Barcode,
		Action:              plan.action,
		Mode:                mode.Mode,
		Item:                &withStatus,
		Name:                item.Name,
		Category:            item.Category,
		NewStock:            plan.newQuantity,
		QuantityChanged:     plan.changed,
		WasPartialDeduction: plan.partial,
		StockHealth:         withStatus.Status,
		Message:             plan.message,
	}
	if plan.action == ActionDeduct {
		result.RequestedQuantity = plan.requested
	}
	if transaction != nil {
		result.TransactionID = transaction.ID
	}
	return result
}

// ProcessScan processa um código de barras segundo o modo atual do scanner.
// Leitura do item, mutação do estoque, registro da transação e resultado idempotente
// são gravados numa única transação do store.
func (uc *InventoryUseCase) ProcessScan(ctx context.Context, req ScanRequest) (*ScanResult, error) {
	ctx, span := uc.tracer.Start(ctx, "inventory.process_scan")
	defer span.End()

	barcode := strings.TrimSpace(req.Barcode)
	if barcode == "" {
		return nil, fmt.Errorf("%w: barcode is required", ErrValidation)
	}
	span.SetAttributes(
		attribute.String("barcode", barcode),
		attribute.String("request_id", req.RequestID),
	)

	log.Printf("➡️ [SCAN] Barcode=%s | RequestID=%s", barcode, req.RequestID)

	// 1. Serializa scans do mesmo código de barras
	unlock := uc.locks.Lock(barcode)
	defer unlock()

	// 2. Inicia a transação
	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer tx.Rollback()

	// 3. Verifica idempotência dentro da transação
	if req.RequestID != "" {
		previous, err := uc.repository.GetScanResult(ctx, tx, req.RequestID)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if previous != nil && previous.Barcode != barcode {
			log.Printf("❌ [IDEMPOTENCY] RequestID=%s reused | Barcode=%s | Original=%s", req.RequestID, barcode, previous.Barcode)
			return nil, fmt.Errorf("%w: requestId %s was already used for barcode %s", ErrValidation, req.RequestID, previous.Barcode)
		}
		if previous != nil {
			log.Printf("ℹ️ [IDEMPOTENCY] Scan already processed for RequestID=%s", req.RequestID)
			return previous, nil
		}
	}

	// 4. Obtém o item com lock
	item, err := uc.repository.GetItemForUpdate(ctx, tx, barcode)
	if errors.Is(err, ErrNotFound) {
		log.Printf("❌ [SCAN] Item not found | Barcode=%s", barcode)
		uc.recordScan(ctx, "", "not_found")
		return nil, fmt.Errorf("%w: item %s", ErrNotFound, barcode)
	}
	if err != nil {
		log.Printf("❌ SCAN FAILED: GetItemForUpdate | Barcode=%s | Error=%v", barcode, err)
		span.RecordError(err)
		return nil, err
	}

	// 5. Snapshot do modo: o scan inteiro usa o mesmo modo
	mode, err := uc.repository.GetScannerMode(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("mode", string(mode.Mode)))

	plan, err := planScan(*item, mode)
	if err != nil {
		log.Printf("❌ [SCAN] Invalid scanner configuration: %v", err)
		span.RecordError(err)
		return nil, err
	}

	// 6. Aplica a mutação e registra a transação
	if plan.mutate {
		if err := uc.repository.SetItemQuantity(ctx, tx, barcode, plan.newQuantity); err != nil {
			log.Printf("❌ [SCAN] | Barcode=%s Failed to update: %v", barcode, err)
			span.RecordError(err)
			return nil, err
		}
	}

	var transaction *Transaction
	if plan.appendTx {
		transaction, err = uc.repository.AppendTransaction(ctx, tx, barcode, plan.action, plan.changed)
		if err != nil {
			log.Printf("❌ [SCAN] | Barcode=%s Failed to append transaction: %v", barcode, err)
			span.RecordError(err)
			return nil, err
		}
	}

	result := buildScanResult(*item, mode, plan, transaction)

	if req.RequestID != "" {
		if err := uc.repository.SaveScanResult(ctx, tx, req.RequestID, result); err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	// 7. Commit da transação
	if err := tx.Commit(); err != nil {
		log.Printf("❌ [SCAN] Commit failed | Barcode=%s | Error=%v", barcode, err)
		span.RecordError(err)
		return nil, err
	}

	outcome := "success"
	if !plan.success {
		outcome = "out_of_stock"
	}
	uc.recordScan(ctx, mode.Mode, outcome)
	if plan.partial {
		uc.partialDeductionCounter.Add(ctx, 1)
		log.Printf("⚠️ [SCAN] Partial deduction | Barcode=%s | Requested=%d | Deducted=%d", barcode, plan.requested, plan.changed)
	}

	log.Printf("✅ [SCAN] %s | Barcode=%s | Action=%s | Changed=%d | NewStock=%d",
		outcome, barcode, plan.action, plan.changed, plan.newQuantity)
	return result, nil
}

func (uc *InventoryUseCase) recordScan(ctx context.Context, mode Mode, outcome string) {
	uc.scanCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", string(mode)),
		attribute.String("outcome", outcome),
	))
}

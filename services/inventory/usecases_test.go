package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

// MockRepository para testes que precisam simular falhas do store
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) ListItems(ctx context.Context) ([]Item, error) {
	args := m.Called(ctx)
	return args.Get(0).([]Item), args.Error(1)
}

func (m *MockRepository) GetItem(ctx context.Context, barcode string) (*Item, error) {
	args := m.Called(ctx, barcode)
	item, _ := args.Get(0).(*Item)
	return item, args.Error(1)
}

func (m *MockRepository) CreateItem(ctx context.Context, item *Item) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockRepository) UpdateItem(ctx context.Context, barcode string, quantity int, originalStock *int) (*Item, error) {
	args := m.Called(ctx, barcode, quantity, originalStock)
	item, _ := args.Get(0).(*Item)
	return item, args.Error(1)
}

func (m *MockRepository) DeleteItem(ctx context.Context, barcode string) error {
	args := m.Called(ctx, barcode)
	return args.Error(0)
}

func (m *MockRepository) GetItemForUpdate(ctx context.Context, tx Tx, barcode string) (*Item, error) {
	args := m.Called(ctx, tx, barcode)
	item, _ := args.Get(0).(*Item)
	return item, args.Error(1)
}

func (m *MockRepository) SetItemQuantity(ctx context.Context, tx Tx, barcode string, quantity int) error {
	args := m.Called(ctx, tx, barcode, quantity)
	return args.Error(0)
}

func (m *MockRepository) AppendTransaction(ctx context.Context, tx Tx, barcode string, action TransactionAction, quantity int) (*Transaction, error) {
	args := m.Called(ctx, tx, barcode, action, quantity)
	transaction, _ := args.Get(0).(*Transaction)
	return transaction, args.Error(1)
}

func (m *MockRepository) ListRecentTransactions(ctx context.Context, limit int) ([]Transaction, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]Transaction), args.Error(1)
}

func (m *MockRepository) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	args := m.Called(ctx, id)
	transaction, _ := args.Get(0).(*Transaction)
	return transaction, args.Error(1)
}

func (m *MockRepository) GetScannerMode(ctx context.Context) (ScannerMode, error) {
	args := m.Called(ctx)
	return args.Get(0).(ScannerMode), args.Error(1)
}

func (m *MockRepository) SetScannerMode(ctx context.Context, mode ScannerMode) error {
	args := m.Called(ctx, mode)
	return args.Error(0)
}

func (m *MockRepository) GetScanResult(ctx context.Context, tx Tx, requestID string) (*ScanResult, error) {
	args := m.Called(ctx, tx, requestID)
	result, _ := args.Get(0).(*ScanResult)
	return result, args.Error(1)
}

func (m *MockRepository) SaveScanResult(ctx context.Context, tx Tx, requestID string, result *ScanResult) error {
	args := m.Called(ctx, tx, requestID, result)
	return args.Error(0)
}

func (m *MockRepository) BeginTx(ctx context.Context) (Tx, error) {
	args := m.Called(ctx)
	tx, _ := args.Get(0).(Tx)
	return tx, args.Error(1)
}

// MockTx simula uma transação do store
type MockTx struct {
	mock.Mock
}

func (m *MockTx) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTx) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func newTestUseCase(t *testing.T) (*InventoryUseCase, InventoryRepository) {
	t.Helper()
	db, err := OpenBadger(BadgerConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { closeBadger(db) })

	repo := NewBadgerInventoryRepository(db)
	return NewInventoryUseCase(repo, otel.Tracer("test")), repo
}

func flex(v int) *FlexInt {
	f := FlexInt(v)
	return &f
}

func seedItem(t *testing.T, uc *InventoryUseCase, barcode string, quantity int) {
	t.Helper()
	_, err := uc.CreateItem(context.Background(), CreateItemRequest{
		Barcode:  barcode,
		Name:     "Item " + barcode,
		Category: "Testes",
		Quantity: flex(quantity),
	})
	require.NoError(t, err)
}

func setMode(t *testing.T, uc *InventoryUseCase, mode Mode, quantity int) {
	t.Helper()
	_, err := uc.SetScannerMode(context.Background(), ScannerMode{Mode: mode, Quantity: quantity})
	require.NoError(t, err)
}

func TestPlanScan(t *testing.T) {
	tests := []struct {
		name     string
		quantity int
		mode     ScannerMode
		expected scanPlan
	}{
		{
			name:     "decrement within stock",
			quantity: 5,
			mode:     ScannerMode{Mode: ModeDecrement, Quantity: 3},
			expected: scanPlan{action: ActionDeduct, success: true, mutate: true, appendTx: true, newQuantity: 2, changed: 3, requested: 3},
		},
		{
			name:     "decrement clamps to available",
			quantity: 2,
			mode:     ScannerMode{Mode: ModeDecrement, Quantity: 5},
			expected: scanPlan{action: ActionDeduct, success: true, mutate: true, appendTx: true, newQuantity: 0, changed: 2, requested: 5, partial: true},
		},
		{
			name:     "decrement out of stock",
			quantity: 0,
			mode:     ScannerMode{Mode: ModeDecrement, Quantity: 1},
			expected: scanPlan{action: ActionDeduct, newQuantity: 0, requested: 1},
		},
		{
			name:     "increment",
			quantity: 10,
			mode:     ScannerMode{Mode: ModeIncrement, Quantity: 5},
			expected: scanPlan{action: ActionAdd, success: true, mutate: true, appendTx: true, newQuantity: 15, changed: 5},
		},
		{
			name:     "details",
			quantity: 4,
			mode:     ScannerMode{Mode: ModeDetails, Quantity: 1},
			expected: scanPlan{action: ActionView, success: true, appendTx: true, newQuantity: 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := planScan(Item{Quantity: tt.quantity, OriginalStock: 20}, tt.mode)

			require.NoError(t, err)
			assert.NotEmpty(t, plan.message)
			plan.message = ""
			assert.Equal(t, tt.expected, plan)
		})
	}
}

func TestPlanScanRejectsBadConfiguration(t *testing.T) {
	modes := []ScannerMode{
		{Mode: "SIDEWAYS", Quantity: 1},
		{Mode: ModeDecrement, Quantity: 0},
		{Mode: ModeIncrement, Quantity: -1},
	}

	for _, mode := range modes {
		t.Run(fmt.Sprintf("%s/%d", mode.Mode, mode.Quantity), func(t *testing.T) {
			_, err := planScan(Item{Quantity: 3}, mode)

			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestPlanScanRejectsStockOverflow(t *testing.T) {
	// Arrange
	mode := ScannerMode{Mode: ModeIncrement, Quantity: 5}

	// Act
	_, err := planScan(Item{Quantity: math.MaxInt - 1}, mode)
	plan, okErr := planScan(Item{Quantity: math.MaxInt - 5}, mode)

	// Assert
	assert.ErrorIs(t, err, ErrValidation)
	require.NoError(t, okErr)
	assert.Equal(t, math.MaxInt, plan.newQuantity)
}

func TestPlanScanDecrementNeverNegative(t *testing.T) {
	for available := 0; available <= 6; available++ {
		for requested := 1; requested <= 6; requested++ {
			plan, err := planScan(Item{Quantity: available}, ScannerMode{Mode: ModeDecrement, Quantity: requested})

			require.NoError(t, err)
			assert.GreaterOrEqual(t, plan.newQuantity, 0)
			assert.Equal(t, available-plan.changed, plan.newQuantity)
			assert.Equal(t, plan.changed < requested && available > 0, plan.partial)
		}
	}
}

func TestProcessScanDecrement(t *testing.T) {
	// Arrange
	ctx := context.Background()
	uc, repo := newTestUseCase(t)
	seedItem(t, uc, "111", 20)
	_, err := uc.UpdateItem(ctx, "111", UpdateItemRequest{Quantity: flex(5)})
	require.NoError(t, err)
	setMode(t, uc, ModeDecrement, 3)

	// Act
	result, err := uc.ProcessScan(ctx, ScanRequest{Barcode: "111"})

	// Assert
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, ActionDeduct, result.Action)
	assert.Equal(t, 2, result.NewStock)
	assert.Equal(t, 3, result.QuantityChanged)
	assert.False(t, result.WasPartialDeduction)
	assert.Equal(t, StockLow, result.StockHealth)
	assert.Equal(t, "Item 111", result.Name)
	assert.NotEmpty(t, result.TransactionID)

	item, err := repo.GetItem(ctx, "111")
	require.NoError(t, err)
	assert.Equal(t, 2, item.Quantity)

	transactions, err := uc.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, transactions, 1)
	assert.Equal(t, result.TransactionID, transactions[0].ID)
	assert.Equal(t, ActionDeduct, transactions[0].Action)
	assert.Equal(t, 3, transactions[0].Quantity)
	assert.Equal(t, "Item 111", transactions[0].ItemName)
}

func TestProcessScanPartialDeduction(t *testing.T) {
	// Arrange
	ctx := context.Background()
	uc, _ := newTestUseCase(t)
	seedItem(t, uc, "222", 2)
	setMode(t, uc, ModeDecrement, 5)

	// Act
	result, err := uc.ProcessScan(ctx, ScanRequest{Barcode: "222"})

	// Assert
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.NewStock)
	assert.Equal(t, 2, result.QuantityChanged)
	assert.Equal(t, 5, result.RequestedQuantity)
	assert.True(t, result.WasPartialDeduction)
	assert.Equal(t, StockOutOfStock, result.StockHealth)

	transactions, err := uc.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, transactions, 1)
	assert.Equal(t, 2, transactions[0].Quantity)
}

func TestProcessScanOutOfStock(t *testing.T) {
	// Arrange
	ctx := context.Background()
	uc, repo := newTestUseCase(t)
	seedItem(t, uc, "333", 0)

	// Act
	result, err := uc.ProcessScan(ctx, ScanRequest{Barcode: "333"})

	// Assert
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, ActionDeduct, result.Action)
	assert.Equal(t, 0, result.QuantityChanged)
	assert.Equal(t, StockOutOfStock, result.StockHealth)
	assert.Empty(t, result.TransactionID)

	transactions, err := uc.ListTransactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, transactions)

	item, err := repo.GetItem(ctx, "333")
	require.NoError(t, err)
	assert.Equal(t, 0, item.Quantity)
}

func TestProcessScanIncrement(t *testing.T) {
	// Arrange
	ctx := context.Background()
	uc, _ := newTestUseCase(t)
	seedItem(t, uc, "444", 10)
	setMode(t, uc, ModeIncrement, 5)

	// Act
	result, err := uc.ProcessScan(ctx, ScanRequest{Barcode: "444"})

	// Assert
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, ActionAdd, result.Action)
	assert.Equal(t, 15, result.NewStock)
	assert.Equal(t, 5, result.QuantityChanged)
	assert.Zero(t, result.RequestedQuantity)
	assert.Equal(t, StockHealthy, result.StockHealth)

	transactions, err := uc.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, transactions, 1)
	assert.Equal(t, ActionAdd, transactions[0].Action)
	assert.Equal(t, 5, transactions[0].Quantity)
}

func TestProcessScanIncrementOverflowLeavesStockUntouched(t *testing.T) {
	// Arrange
	ctx := context.Background()
	uc, repo := newTestUseCase(t)
	require.NoError(t, repo.CreateItem(ctx, NewItem("445", "Item 445", "Testes", math.MaxInt-1)))
	setMode(t, uc, ModeIncrement, 5)

	// Act
	result, err := uc.ProcessScan(ctx, ScanRequest{Barcode: "445", RequestID: "req-overflow"})

	// Assert
	assert.ErrorIs(t, err, ErrValidation)
	assert.Nil(t, result)

	item, err := repo.GetItem(ctx, "445")
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt-1, item.Quantity)

	transactions, err := uc.ListTransactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, transactions)
}

func TestProcessScanDetails(t *testing.T) {
	// Arrange
	ctx := context.Background()
	uc, repo := newTestUseCase(t)
	seedItem(t, uc, "555", 8)
	setMode(t, uc, ModeDetails, 4)

	// Act
	result, err := uc.ProcessScan(ctx, ScanRequest{Barcode: "555"})

	// Assert
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, ActionView, result.Action)
	assert.Equal(t, 8, result.NewStock)
	assert.Equal(t, 0, result.QuantityChanged)
	require.NotNil(t, result.Item)
	assert.Equal(t, "555", result.Item.Barcode)

	item, err := repo.GetItem(ctx, "555")
	require.NoError(t, err)
	assert.Equal(t, 8, item.Quantity)

	transactions, err := uc.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, transactions, 1)
	assert.Equal(t, ActionView, transactions[0].Action)
	assert.Equal(t, 0, transactions[0].Quantity)
}

func TestProcessScanIdempotentRequestID(t *testing.T) {
	// Arrange
	ctx := context.Background()
	uc, repo := newTestUseCase(t)
	seedItem(t, uc, "666", 10)
	req := ScanRequest{Barcode: "666", RequestID: "req-1"}

	// Act
	first, err := uc.ProcessScan(ctx, req)
	require.NoError(t, err)
	second, err := uc.ProcessScan(ctx, req)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, first.TransactionID, second.TransactionID)
	assert.Equal(t, first.NewStock, second.NewStock)

	item, err := repo.GetItem(ctx, "666")
	require.NoError(t, err)
	assert.Equal(t, 9, item.Quantity)

	transactions, err := uc.ListTransactions(ctx)
	require.NoError(t, err)
	assert.Len(t, transactions, 1)

	// A new request id is a new scan
	_, err = uc.ProcessScan(ctx, ScanRequest{Barcode: "666", RequestID: "req-2"})
	require.NoError(t, err)
	item, err = repo.GetItem(ctx, "666")
	require.NoError(t, err)
	assert.Equal(t, 8, item.Quantity)
}

func TestProcessScanRejectsRequestIDReuseForOtherBarcode(t *testing.T) {
	// Arrange
	ctx := context.Background()
	uc, repo := newTestUseCase(t)
	seedItem(t, uc, "667", 10)
	seedItem(t, uc, "668", 10)
	first, err := uc.ProcessScan(ctx, ScanRequest{Barcode: "667", RequestID: "req-shared"})
	require.NoError(t, err)
	assert.Equal(t, "667", first.Barcode)

	// Act
	result, err := uc.ProcessScan(ctx, ScanRequest{Barcode: "668", RequestID: "req-shared"})

	// Assert
	assert.ErrorIs(t, err, ErrValidation)
	assert.Nil(t, result)

	item, err := repo.GetItem(ctx, "668")
	require.NoError(t, err)
	assert.Equal(t, 10, item.Quantity)

	transactions, err := uc.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, transactions, 1)
	assert.Equal(t, "667", transactions[0].Barcode)

	// The original barcode still replays its result
	replay, err := uc.ProcessScan(ctx, ScanRequest{Barcode: "667", RequestID: "req-shared"})
	require.NoError(t, err)
	assert.Equal(t, first.TransactionID, replay.TransactionID)
}

func TestProcessScanNotFound(t *testing.T) {
	// Arrange
	uc, _ := newTestUseCase(t)

	// Act
	result, err := uc.ProcessScan(context.Background(), ScanRequest{Barcode: "missing"})

	// Assert
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProcessScanRequiresBarcode(t *testing.T) {
	uc, _ := newTestUseCase(t)

	_, err := uc.ProcessScan(context.Background(), ScanRequest{Barcode: "   "})

	assert.ErrorIs(t, err, ErrValidation)
}

func TestProcessScanUnknownModeLeavesStockUntouched(t *testing.T) {
	// Arrange
	ctx := context.Background()
	uc, repo := newTestUseCase(t)
	seedItem(t, uc, "777", 4)
	require.NoError(t, repo.SetScannerMode(ctx, ScannerMode{Mode: "SIDEWAYS", Quantity: 1}))

	// Act
	_, err := uc.ProcessScan(ctx, ScanRequest{Barcode: "777"})

	// Assert
	assert.ErrorIs(t, err, ErrConfiguration)
	item, err := repo.GetItem(ctx, "777")
	require.NoError(t, err)
	assert.Equal(t, 4, item.Quantity)
	transactions, err := uc.ListTransactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, transactions)
}

func TestProcessScanConcurrentDecrements(t *testing.T) {
	// Arrange
	ctx := context.Background()
	uc, repo := newTestUseCase(t)
	seedItem(t, uc, "888", 30)
	seedItem(t, uc, "999", 30)

	// Act
	var wg sync.WaitGroup
	errs := make(chan error, 80)
	for i := 0; i < 40; i++ {
		for _, barcode := range []string{"888", "999"} {
			wg.Add(1)
			go func(barcode string) {
				defer wg.Done()
				if _, err := uc.ProcessScan(ctx, ScanRequest{Barcode: barcode}); err != nil {
					errs <- err
				}
			}(barcode)
		}
	}
	wg.Wait()
	close(errs)

	// Assert
	for err := range errs {
		t.Errorf("unexpected scan error: %v", err)
	}
	for _, barcode := range []string{"888", "999"} {
		item, err := repo.GetItem(ctx, barcode)
		require.NoError(t, err)
		assert.Equal(t, 0, item.Quantity)
	}

	transactions, err := repo.ListRecentTransactions(ctx, 1000)
	require.NoError(t, err)
	deducted := map[string]int{}
	for _, tx := range transactions {
		deducted[tx.Barcode] += tx.Quantity
	}
	assert.Equal(t, map[string]int{"888": 30, "999": 30}, deducted)
	assert.Len(t, transactions, 60, "scans on an empty item append nothing")
	assert.Equal(t, 0, uc.locks.size())
}

func TestProcessScanStoreFailureRollsBack(t *testing.T) {
	// Arrange
	ctx := context.Background()
	repo := new(MockRepository)
	tx := new(MockTx)
	uc := NewInventoryUseCase(repo, otel.Tracer("test"))

	item := NewItem("123", "Feijão", "Grãos", 10)
	storeDown := storeErr("insert transaction record", errors.New("connection reset"))

	repo.On("BeginTx", mock.Anything).Return(tx, nil)
	repo.On("GetItemForUpdate", mock.Anything, tx, "123").Return(item, nil)
	repo.On("GetScannerMode", mock.Anything).Return(DefaultScannerMode(), nil)
	repo.On("SetItemQuantity", mock.Anything, tx, "123", 9).Return(nil)
	repo.On("AppendTransaction", mock.Anything, tx, "123", ActionDeduct, 1).Return(nil, storeDown)
	tx.On("Rollback").Return(nil)

	// Act
	result, err := uc.ProcessScan(ctx, ScanRequest{Barcode: "123"})

	// Assert
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	tx.AssertCalled(t, "Rollback")
	tx.AssertNotCalled(t, "Commit")
	repo.AssertExpectations(t)
}

func TestProcessScanBeginTxFailure(t *testing.T) {
	// Arrange
	repo := new(MockRepository)
	uc := NewInventoryUseCase(repo, otel.Tracer("test"))
	repo.On("BeginTx", mock.Anything).Return(nil, storeErr("begin transaction", errors.New("pool closed")))

	// Act
	_, err := uc.ProcessScan(context.Background(), ScanRequest{Barcode: "123", RequestID: "r"})

	// Assert
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	repo.AssertNotCalled(t, "GetScanResult", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessScanReturnsStoredResult(t *testing.T) {
	// Arrange
	repo := new(MockRepository)
	tx := new(MockTx)
	uc := NewInventoryUseCase(repo, otel.Tracer("test"))
	stored := &ScanResult{Success: true, Barcode: "123", Action: ActionAdd, TransactionID: "tx-1", NewStock: 7}

	repo.On("BeginTx", mock.Anything).Return(tx, nil)
	repo.On("GetScanResult", mock.Anything, tx, "req-9").Return(stored, nil)
	tx.On("Rollback").Return(nil)

	// Act
	result, err := uc.ProcessScan(context.Background(), ScanRequest{Barcode: "123", RequestID: "req-9"})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, stored, result)
	repo.AssertNotCalled(t, "GetItemForUpdate", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateItem(t *testing.T) {
	ctx := context.Background()

	t.Run("sets originalStock from quantity", func(t *testing.T) {
		uc, _ := newTestUseCase(t)

		item, err := uc.CreateItem(ctx, CreateItemRequest{Barcode: " 42 ", Name: "Sal", Category: "Temperos", Quantity: flex(7)})

		require.NoError(t, err)
		assert.Equal(t, "42", item.Barcode)
		assert.Equal(t, 7, item.OriginalStock)
	})

	t.Run("rejects duplicate barcode", func(t *testing.T) {
		uc, _ := newTestUseCase(t)
		seedItem(t, uc, "42", 1)

		_, err := uc.CreateItem(ctx, CreateItemRequest{Barcode: "42", Name: "Outro", Category: "X", Quantity: flex(3)})

		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		uc, _ := newTestUseCase(t)

		_, err := uc.CreateItem(ctx, CreateItemRequest{Barcode: "42", Name: "", Category: "X", Quantity: flex(3)})

		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("rejects negative quantity", func(t *testing.T) {
		uc, _ := newTestUseCase(t)

		_, err := uc.CreateItem(ctx, CreateItemRequest{Barcode: "42", Name: "Sal", Category: "X", Quantity: flex(-1)})

		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestUpdateItem(t *testing.T) {
	ctx := context.Background()

	t.Run("keeps originalStock unless given", func(t *testing.T) {
		uc, _ := newTestUseCase(t)
		seedItem(t, uc, "1", 10)

		item, err := uc.UpdateItem(ctx, "1", UpdateItemRequest{Quantity: flex(3)})
		require.NoError(t, err)
		assert.Equal(t, 3, item.Quantity)
		assert.Equal(t, 10, item.OriginalStock)

		item, err = uc.UpdateItem(ctx, "1", UpdateItemRequest{Quantity: flex(3), OriginalStock: flex(4)})
		require.NoError(t, err)
		assert.Equal(t, 4, item.OriginalStock)
	})

	t.Run("unknown item", func(t *testing.T) {
		uc, _ := newTestUseCase(t)

		_, err := uc.UpdateItem(ctx, "nope", UpdateItemRequest{Quantity: flex(3)})

		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("negative quantity", func(t *testing.T) {
		uc, _ := newTestUseCase(t)
		seedItem(t, uc, "1", 10)

		_, err := uc.UpdateItem(ctx, "1", UpdateItemRequest{Quantity: flex(-3)})

		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestDeleteItemKeepsTransactions(t *testing.T) {
	// Arrange
	ctx := context.Background()
	uc, _ := newTestUseCase(t)
	seedItem(t, uc, "1", 10)
	_, err := uc.ProcessScan(ctx, ScanRequest{Barcode: "1"})
	require.NoError(t, err)

	// Act
	err = uc.DeleteItem(ctx, "1")

	// Assert
	require.NoError(t, err)
	_, err = uc.GetItem(ctx, "1")
	assert.ErrorIs(t, err, ErrNotFound)

	transactions, err := uc.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, transactions, 1)
	assert.Equal(t, "1", transactions[0].Barcode)
	assert.Empty(t, transactions[0].ItemName)

	assert.ErrorIs(t, uc.DeleteItem(ctx, "1"), ErrNotFound)
}

func TestSetScannerMode(t *testing.T) {
	ctx := context.Background()
	uc, _ := newTestUseCase(t)

	mode, err := uc.GetScannerMode(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultScannerMode(), mode)

	saved, err := uc.SetScannerMode(ctx, ScannerMode{Mode: ModeDetails, Quantity: 7})
	require.NoError(t, err)
	assert.Equal(t, ScannerMode{Mode: ModeDetails, Quantity: 1}, saved)

	mode, err = uc.GetScannerMode(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved, mode)

	_, err = uc.SetScannerMode(ctx, ScannerMode{Mode: ModeIncrement, Quantity: 0})
	assert.ErrorIs(t, err, ErrValidation)

	mode, err = uc.GetScannerMode(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved, mode, "rejected update leaves the mode unchanged")
}

func TestGetItemStatus(t *testing.T) {
	ctx := context.Background()
	uc, _ := newTestUseCase(t)
	seedItem(t, uc, "1", 100)
	_, err := uc.UpdateItem(ctx, "1", UpdateItemRequest{Quantity: flex(30)})
	require.NoError(t, err)

	item, err := uc.GetItem(ctx, "1")

	require.NoError(t, err)
	assert.Equal(t, StockLow, item.Status)
}

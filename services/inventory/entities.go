package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Item representa um item do inventário, identificado pelo código de barras
type Item struct {
	ID            string    `json:"id"`
	Barcode       string    `json:"barcode"`
	Name          string    `json:"name"`
	Category      string    `json:"category"`
	Quantity      int       `json:"quantity"`
	OriginalStock int       `json:"originalStock"`
	CreatedAt     time.Time `json:"createdAt"`
}

// NewItem cria uma nova instância de Item; originalStock nasce igual à quantidade inicial
func NewItem(barcode, name, category string, quantity int) *Item {
	return &Item{
		ID:            barcode,
		Barcode:       barcode,
		Name:          name,
		Category:      category,
		Quantity:      quantity,
		OriginalStock: quantity,
		CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}
}

// Health calcula a saúde do estoque a partir do originalStock atual
func (i *Item) Health() StockHealth {
	return ComputeStockHealth(i.Quantity, i.OriginalStock)
}

// ItemWithStatus é o item acrescido do status derivado (não persistido)
type ItemWithStatus struct {
	Item
	Status StockHealth `json:"status"`
}

// WithStatus devolve uma cópia do item com o status calculado
func (i *Item) WithStatus() ItemWithStatus {
	return ItemWithStatus{Item: *i, Status: i.Health()}
}

// StockHealth é a classificação derivada do estoque
type StockHealth string

const (
	StockHealthy    StockHealth = "healthy"
	StockLow        StockHealth = "low"
	StockOutOfStock StockHealth = "out_of_stock"
)

// HealthyThresholdPercent é o percentual mínimo de originalStock para um item ser "healthy"
const HealthyThresholdPercent = 31

// ComputeStockHealth aplica a regra: 0 → out_of_stock; >= 31% do originalStock → healthy; senão low
func ComputeStockHealth(quantity, originalStock int) StockHealth {
	if quantity <= 0 {
		return StockOutOfStock
	}
	// Without a baseline there is nothing to compare against.
	if originalStock <= 0 {
		return StockHealthy
	}
	// Produtos em 128 bits: quantity*100 estoura int perto de math.MaxInt
	qHi, qLo := bits.Mul64(uint64(quantity), 100)
	oHi, oLo := bits.Mul64(uint64(originalStock), HealthyThresholdPercent)
	if qHi > oHi || (qHi == oHi && qLo >= oLo) {
		return StockHealthy
	}
	return StockLow
}

// Transaction representa um registro do log append-only de movimentações
type Transaction struct {
	ID        string            `json:"id"`
	Barcode   string            `json:"barcode"`
	Action    TransactionAction `json:"action"`
	Quantity  int               `json:"quantity"`
	Timestamp int64             `json:"timestamp"`
	// Enriquecidos na leitura com os dados atuais do item
	ItemName string `json:"itemName,omitempty"`
	Category string `json:"category,omitempty"`
}

// NewTransaction cria uma nova instância de Transaction com timestamp do servidor
func NewTransaction(id, barcode string, action TransactionAction, quantity int) *Transaction {
	return &Transaction{
		ID:        id,
		Barcode:   barcode,
		Action:    action,
		Quantity:  quantity,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Enrich preenche nome e categoria a partir do item atual (join na leitura)
func (t *Transaction) Enrich(item *Item) {
	if item == nil {
		return
	}
	t.ItemName = item.Name
	t.Category = item.Category
}

// TransactionAction representa os tipos de movimentação registrados
type TransactionAction string

const (
	ActionAdd    TransactionAction = "ADD"
	ActionDeduct TransactionAction = "DEDUCT"
	ActionView   TransactionAction = "VIEW"
)

// Mode representa o modo de operação do scanner
type Mode string

const (
	ModeIncrement Mode = "INCREMENT"
	ModeDecrement Mode = "DECREMENT"
	ModeDetails   Mode = "DETAILS"
)

// ScannerMode é o registro singleton de configuração do scanner
type ScannerMode struct {
	Mode     Mode `json:"mode" validate:"required,oneof=INCREMENT DECREMENT DETAILS"`
	Quantity int  `json:"quantity" validate:"gte=1"`
}

// DefaultScannerMode é o modo usado enquanto nenhum foi configurado
func DefaultScannerMode() ScannerMode {
	return ScannerMode{Mode: ModeDecrement, Quantity: 1}
}

var modeValidator = validator.New()

// Normalize força a quantidade fixa do modo DETAILS
func (m ScannerMode) Normalize() ScannerMode {
	if m.Mode == ModeDetails {
		m.Quantity = 1
	}
	return m
}

// Validate valida modo e quantidade
func (m ScannerMode) Validate() error {
	if err := modeValidator.Struct(m); err != nil {
		return fmt.Errorf("%w: invalid scanner mode: %s", ErrValidation, err.Error())
	}
	return nil
}

// ScanResult é o descritor devolvido ao scanner após processar um código de barras
type ScanResult struct {
	Success             bool              `json:"success"`
	Barcode             string            `json:"barcode,omitempty"`
	Action              TransactionAction `json:"action,omitempty"`
	Mode                Mode              `json:"mode,omitempty"`
	Item                *ItemWithStatus   `json:"item,omitempty"`
	Name                string            `json:"name,omitempty"`
	Category            string            `json:"category,omitempty"`
	NewStock            int               `json:"newStock"`
	QuantityChanged     int               `json:"quantityChanged"`
	RequestedQuantity   int               `json:"requestedQuantity,omitempty"`
	WasPartialDeduction bool              `json:"wasPartialDeduction"`
	StockHealth         StockHealth       `json:"stockHealth,omitempty"`
	TransactionID       string            `json:"transactionId,omitempty"`
	Message             string            `json:"message"`
	Error               string            `json:"error,omitempty"`
}

// FlexInt aceita número ou string numérica no JSON e converte para inteiro
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("quantity must be a number")
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(s)
	}
	s := string(bytes.TrimSpace(data))

	n, err := strconv.ParseInt(s, 10, strconv.IntSize)
	if err == nil {
		*f = FlexInt(n)
		return nil
	}
	if errors.Is(err, strconv.ErrRange) {
		return fmt.Errorf("integer value %q out of range", s)
	}

	// Fração ou notação exponencial: trunca em direção a zero
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("invalid integer value %q", s)
	}
	v = math.Trunc(v)
	// float64(math.MaxInt) arredonda para 2^63, que já não cabe em int
	if v < math.MinInt || v >= math.MaxInt {
		return fmt.Errorf("integer value %q out of range", s)
	}
	*f = FlexInt(v)
	return nil
}

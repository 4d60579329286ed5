package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// InventoryUseCaseInterface define a interface para o use case
type InventoryUseCaseInterface interface {
	ListItems(ctx context.Context) ([]Item, error)
	GetItem(ctx context.Context, barcode string) (*ItemWithStatus, error)
	CreateItem(ctx context.Context, req CreateItemRequest) (*Item, error)
	UpdateItem(ctx context.Context, barcode string, req UpdateItemRequest) (*Item, error)
	DeleteItem(ctx context.Context, barcode string) error
	ListTransactions(ctx context.Context) ([]Transaction, error)
	GetScannerMode(ctx context.Context) (ScannerMode, error)
	SetScannerMode(ctx context.Context, mode ScannerMode) (ScannerMode, error)
	ProcessScan(ctx context.Context, req ScanRequest) (*ScanResult, error)
}

// InventoryHandler contém os handlers HTTP do inventário
type InventoryHandler struct {
	useCase InventoryUseCaseInterface
	tracer  trace.Tracer
}

// NewInventoryHandler cria uma nova instância de InventoryHandler
func NewInventoryHandler(useCase InventoryUseCaseInterface, tracer trace.Tracer) *InventoryHandler {
	return &InventoryHandler{
		useCase: useCase,
		tracer:  tracer,
	}
}

// NewRouter registra as rotas HTTP e o endpoint push
func NewRouter(serviceName string, handler *InventoryHandler, broadcaster *Broadcaster) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))

	// Health check
	r.GET("/health", handler.HealthCheck)
	r.GET("/healthz", handler.HealthCheck)

	// Push channel
	r.GET("/ws", broadcaster.HandleWebSocket)

	api := r.Group("/api")
	api.GET("/items", handler.ListItems)
	api.POST("/items", handler.CreateItem)
	api.PATCH("/items/:id", handler.UpdateItem)
	api.DELETE("/items/:id", handler.DeleteItem)
	api.GET("/item/:barcode", handler.GetItem)
	api.POST("/scan", handler.Scan)
	api.GET("/transactions", handler.ListTransactions)
	api.GET("/scanner-mode", handler.GetScannerMode)
	api.PUT("/scanner-mode", handler.SetScannerMode)

	return r
}

// respondError converte os erros de domínio em status HTTP; falhas de store viram 500 genérico
func respondError(c *gin.Context, span trace.Span, err error, fallback string) {
	switch {
	case errors.Is(err, ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrConflict):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Item with this barcode already exists"})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
	case errors.Is(err, ErrConfiguration):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("❌ %s: %v", fallback, err)
		span.RecordError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

// ListItems lista os itens
func (h *InventoryHandler) ListItems(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "list_items")
	defer span.End()

	items, err := h.useCase.ListItems(ctx)
	if err != nil {
		respondError(c, span, err, "Failed to fetch items")
		return
	}

	c.JSON(http.StatusOK, items)
}

// CreateItem cadastra um item
func (h *InventoryHandler) CreateItem(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "create_item")
	defer span.End()

	var req CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	span.SetAttributes(attribute.String("barcode", req.Barcode))

	item, err := h.useCase.CreateItem(ctx, req)
	if err != nil {
		respondError(c, span, err, "Failed to add item")
		return
	}

	c.JSON(http.StatusCreated, item)
}

// UpdateItem ajusta a quantidade de um item
func (h *InventoryHandler) UpdateItem(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "update_item")
	defer span.End()

	barcode := c.Param("id")
	span.SetAttributes(attribute.String("barcode", barcode))

	var req UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Quantity is required"})
		return
	}

	item, err := h.useCase.UpdateItem(ctx, barcode, req)
	if err != nil {
		respondError(c, span, err, "Failed to update item")
		return
	}

	c.JSON(http.StatusOK, item)
}

// DeleteItem remove um item
func (h *InventoryHandler) DeleteItem(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "delete_item")
	defer span.End()

	barcode := c.Param("id")
	span.SetAttributes(attribute.String("barcode", barcode))

	if err := h.useCase.DeleteItem(ctx, barcode); err != nil {
		respondError(c, span, err, "Failed to delete item")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetItem busca um item com o status do estoque
func (h *InventoryHandler) GetItem(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "get_item")
	defer span.End()

	barcode := c.Param("barcode")
	span.SetAttributes(attribute.String("barcode", barcode))

	item, err := h.useCase.GetItem(ctx, barcode)
	if err != nil {
		respondError(c, span, err, "Failed to fetch item")
		return
	}

	c.JSON(http.StatusOK, item)
}

// Scan é o endpoint chamado pelo scanner (ESP32 ou simulador)
func (h *InventoryHandler) Scan(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "scan_barcode")
	defer span.End()

	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Barcode is required"})
		return
	}

	span.SetAttributes(
		attribute.String("barcode", req.Barcode),
		attribute.String("request_id", req.RequestID),
	)

	result, err := h.useCase.ProcessScan(ctx, req)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, ScanResult{
				Success: false,
				Error:   "Item not found",
				Message: "Item not found",
			})
			return
		}
		respondError(c, span, err, "Failed to process scan")
		return
	}

	span.SetAttributes(
		attribute.Bool("success", result.Success),
		attribute.String("action", string(result.Action)),
	)
	c.JSON(http.StatusOK, result)
}

// ListTransactions lista as últimas transações
func (h *InventoryHandler) ListTransactions(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "list_transactions")
	defer span.End()

	transactions, err := h.useCase.ListTransactions(ctx)
	if err != nil {
		respondError(c, span, err, "Failed to fetch transactions")
		return
	}

	c.JSON(http.StatusOK, transactions)
}

// GetScannerMode retorna o modo atual do scanner
func (h *InventoryHandler) GetScannerMode(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "get_scanner_mode")
	defer span.End()

	mode, err := h.useCase.GetScannerMode(ctx)
	if err != nil {
		respondError(c, span, err, "Failed to fetch scanner mode")
		return
	}

	c.JSON(http.StatusOK, mode)
}

// SetScannerMode sobrescreve o modo do scanner
func (h *InventoryHandler) SetScannerMode(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "set_scanner_mode")
	defer span.End()

	var req ScannerModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mode := ScannerMode{Mode: req.Mode, Quantity: 1}
	if req.Quantity != nil {
		mode.Quantity = int(*req.Quantity)
	}
	span.SetAttributes(
		attribute.String("mode", string(mode.Mode)),
		attribute.Int("quantity", mode.Quantity),
	)

	saved, err := h.useCase.SetScannerMode(ctx, mode)
	if err != nil {
		respondError(c, span, err, "Failed to update scanner mode")
		return
	}

	c.JSON(http.StatusOK, saved)
}

// HealthCheck é o endpoint de health check
func (h *InventoryHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
